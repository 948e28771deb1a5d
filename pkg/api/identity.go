package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ErrUnauthenticated is returned when a request carries no usable identity.
var ErrUnauthenticated = errors.New("authentication required")

// Identity resolves the user a request acts for.
type Identity func(r *http.Request) (string, error)

// BearerIdentity reads the user from the "sub" claim of an HS256 JWT in the
// Authorization header.
func BearerIdentity(secret []byte) Identity {
	return func(r *http.Request) (string, error) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			return "", ErrUnauthenticated
		}

		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		}
		if claims.Subject == "" {
			return "", fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
		}
		return claims.Subject, nil
	}
}

// HeaderIdentity trusts a header set by an upstream proxy.
func HeaderIdentity(name string) Identity {
	return func(r *http.Request) (string, error) {
		user := strings.TrimSpace(r.Header.Get(name))
		if user == "" {
			return "", ErrUnauthenticated
		}
		return user, nil
	}
}

type contextKey struct{}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext returns the user set by RequireUser.
func UserFromContext(ctx context.Context) string {
	user, _ := ctx.Value(contextKey{}).(string)
	return user
}

// RequireUser rejects requests without an identity with 401.
func RequireUser(identity Identity, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := identity(r)
			if err != nil {
				logger.Warn("unauthenticated request",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
