package selection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/barekit/docscope/pkg/document"
	"go.uber.org/zap"
)

var (
	// ErrNoMatch is returned when a selection resolves to no documents. The
	// previous selection is left untouched.
	ErrNoMatch = errors.New("no matching documents found")
	// ErrValidation is returned for a blank user or an empty title list.
	ErrValidation = errors.New("validation error")
)

// Store persists the document ids each user has in scope.
// Replace must swap the whole set atomically for readers.
type Store interface {
	// Replace installs ids as the user's scope, discarding the previous one.
	Replace(ctx context.Context, user string, ids []string) error
	// Load returns the ids in the user's scope in storage order.
	Load(ctx context.Context, user string) ([]string, error)
	// Clear empties the user's scope. Clearing an empty scope succeeds.
	Clear(ctx context.Context, user string) error
	// Forget removes documentID from every user's scope.
	Forget(ctx context.Context, documentID string) error
}

// Closer is implemented by stores that hold a connection.
type Closer interface {
	Close(ctx context.Context) error
}

// Scope manages per-user selections on top of a Store. Writes for the same
// user are serialised; different users never wait on each other.
type Scope struct {
	store  Store
	docs   document.Store
	locks  sync.Map // user -> *sync.Mutex
	logger *zap.Logger
}

// Option configures a Scope.
type Option func(*Scope)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scope) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScope creates a Scope.
func NewScope(store Store, docs document.Store, opts ...Option) *Scope {
	s := &Scope{
		store:  store,
		docs:   docs,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scope) lock(user string) func() {
	mu, _ := s.locks.LoadOrStore(user, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// checkUser rejects blank ids and ids with surrounding whitespace. SQL
// backends ignore trailing spaces when comparing, so "alice" and "alice "
// could not be told apart.
func checkUser(user string) error {
	trimmed := strings.TrimSpace(user)
	if trimmed == "" {
		return fmt.Errorf("%w: user is required", ErrValidation)
	}
	if trimmed != user {
		return fmt.Errorf("%w: user must not have surrounding whitespace", ErrValidation)
	}
	return nil
}

// ReplaceSelection makes docs the user's scope.
func (s *Scope) ReplaceSelection(ctx context.Context, user string, docs []document.Document) error {
	if err := checkUser(user); err != nil {
		return err
	}
	if len(docs) == 0 {
		return ErrNoMatch
	}

	unlock := s.lock(user)
	defer unlock()
	return s.replace(ctx, user, docs)
}

func (s *Scope) replace(ctx context.Context, user string, docs []document.Document) error {
	ids := make([]string, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if _, ok := seen[d.ID]; ok {
			continue
		}
		seen[d.ID] = struct{}{}
		ids = append(ids, d.ID)
	}

	if err := s.store.Replace(ctx, user, ids); err != nil {
		s.logger.Error("failed to replace selection", zap.String("user", user), zap.Error(err))
		return fmt.Errorf("failed to replace selection: %w", err)
	}

	s.logger.Debug("selection replaced", zap.String("user", user), zap.Int("documents", len(ids)))
	return nil
}

// SelectTitles resolves titles and installs every matching document as the
// user's scope. Documents sharing a title are all selected.
func (s *Scope) SelectTitles(ctx context.Context, user string, titles []string) ([]document.Document, error) {
	if err := checkUser(user); err != nil {
		return nil, err
	}
	titles = document.UniqueTitles(titles)
	if len(titles) == 0 {
		return nil, fmt.Errorf("%w: no document titles provided", ErrValidation)
	}

	unlock := s.lock(user)
	defer unlock()

	docs, err := s.docs.FindByTitles(ctx, titles)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNoMatch
	}
	if err := s.replace(ctx, user, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// GetSelection returns the documents in the user's scope, in no particular
// order. References to documents that no longer exist are skipped.
func (s *Scope) GetSelection(ctx context.Context, user string) ([]document.Document, error) {
	if err := checkUser(user); err != nil {
		return nil, err
	}

	ids, err := s.store.Load(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to load selection: %w", err)
	}

	docs := make([]document.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := s.docs.Get(ctx, id)
		if errors.Is(err, document.ErrNotFound) {
			s.logger.Debug("dropping dangling selection", zap.String("user", user), zap.String("document_id", id))
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ClearSelection empties the user's scope.
func (s *Scope) ClearSelection(ctx context.Context, user string) error {
	if err := checkUser(user); err != nil {
		return err
	}

	unlock := s.lock(user)
	defer unlock()

	if err := s.store.Clear(ctx, user); err != nil {
		return fmt.Errorf("failed to clear selection: %w", err)
	}
	s.logger.Debug("selection cleared", zap.String("user", user))
	return nil
}

// RemoveDocument drops a deleted document from every scope.
func (s *Scope) RemoveDocument(ctx context.Context, documentID string) error {
	if err := s.store.Forget(ctx, documentID); err != nil {
		return fmt.Errorf("failed to remove document from selections: %w", err)
	}
	s.logger.Debug("document removed from selections", zap.String("document_id", documentID))
	return nil
}
