package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/barekit/docscope/pkg/vector"
	"go.uber.org/zap"
)

// DefaultMaxRunes is the input budget used when no WithMaxRunes option is given.
const DefaultMaxRunes = 2048

// ErrEmptyText is returned for blank input.
var ErrEmptyText = errors.New("embedding: text is empty")

// GenerationError reports that the model failed to produce a vector.
type GenerationError struct {
	Cause   error
	Timeout bool
}

func (e *GenerationError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("embedding generation timed out: %v", e.Cause)
	}
	return fmt.Sprintf("embedding generation failed: %v", e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// IsGenerationFailure reports whether err is (or wraps) a GenerationError.
func IsGenerationFailure(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr)
}

// IsTimeout reports whether err is a GenerationError caused by a deadline.
func IsTimeout(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr) && genErr.Timeout
}

// Embedder turns text into a unit vector of vector.Dim components.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Model is a raw embedding provider. Its output need not be normalised.
type Model interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
}

// Loader constructs a Model. It is retried until it succeeds once.
type Loader func(ctx context.Context) (Model, error)

// Shared is a lazily loaded, process-wide model handle. Only a successful
// load is kept; a failed or cancelled load is retried by the next Get.
type Shared struct {
	mu    sync.Mutex
	load  Loader
	model Model
}

// NewShared wraps a loader.
func NewShared(load Loader) *Shared {
	return &Shared{load: load}
}

// Static wraps an already constructed model.
func Static(m Model) *Shared {
	return NewShared(func(context.Context) (Model, error) { return m, nil })
}

// Get returns the loaded model.
func (s *Shared) Get(ctx context.Context) (Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model != nil {
		return s.model, nil
	}
	m, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.New("embedding: loader returned no model")
	}
	s.model = m
	return m, nil
}

// Service normalises, truncates and time-boxes calls to a shared Model.
type Service struct {
	model    *Shared
	timeout  time.Duration
	maxRunes int
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout bounds every Embed call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

// WithMaxRunes sets how many runes of input reach the model.
func WithMaxRunes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRunes = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Service over a shared model.
func New(model *Shared, opts ...Option) *Service {
	s := &Service{
		model:    model,
		maxRunes: DefaultMaxRunes,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dimension returns the size of every vector produced by Embed.
func (s *Service) Dimension() int {
	return vector.Dim
}

// Embed returns the unit-normalised embedding of text. Failures are never
// retried here.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	model, err := s.model.Get(ctx)
	if err != nil {
		return nil, &GenerationError{Cause: fmt.Errorf("failed to load model: %w", err)}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	raw, err := s.invoke(ctx, model, truncate(text, s.maxRunes))
	if err != nil {
		s.logger.Warn("embedding generation failed", zap.String("model", model.Name()), zap.Error(err))
		return nil, err
	}

	if len(raw) != vector.Dim {
		return nil, &GenerationError{Cause: fmt.Errorf("%w: model %s returned %d components", vector.ErrDimension, model.Name(), len(raw))}
	}

	vec, err := vector.Normalize(raw)
	if err != nil {
		return nil, &GenerationError{Cause: err}
	}
	return vec, nil
}

type result struct {
	vec []float32
	err error
}

// invoke runs the model in its own goroutine so that a model ignoring ctx is
// still abandoned once ctx is done.
func (s *Service) invoke(ctx context.Context, model Model, text string) ([]float32, error) {
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("model panicked: %v", r)}
			}
		}()
		vec, err := model.Embed(ctx, text)
		ch <- result{vec: vec, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, &GenerationError{Cause: r.err, Timeout: errors.Is(ctxErr, context.DeadlineExceeded)}
			}
			return nil, &GenerationError{Cause: r.err}
		}
		return r.vec, nil
	case <-ctx.Done():
		return nil, &GenerationError{Cause: ctx.Err(), Timeout: errors.Is(ctx.Err(), context.DeadlineExceeded)}
	}
}

func truncate(text string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	n := 0
	for i := range text {
		if n == maxRunes {
			return text[:i]
		}
		n++
	}
	return text
}
