package api

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/barekit/docscope/pkg/document"
	"github.com/barekit/docscope/pkg/retrieval"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Service is the set of operations exposed over HTTP. *knowledge.KnowledgeBase
// implements it.
type Service interface {
	Ingest(ctx context.Context, title, content string) (document.Document, error)
	Get(ctx context.Context, id string) (document.Document, error)
	Delete(ctx context.Context, id string) error
	Select(ctx context.Context, user string, titles []string) ([]document.Document, error)
	Selection(ctx context.Context, user string) ([]document.Document, error)
	ClearSelection(ctx context.Context, user string) error
	Ask(ctx context.Context, user, question string, k int) ([]retrieval.Result, error)
}

// IngestRequest is the body of POST /api/documents.
type IngestRequest struct {
	Title   string `json:"title" validate:"required,max=255"`
	Content string `json:"content" validate:"required"`
}

// IngestResponse is returned for a created document.
type IngestResponse struct {
	Message string `json:"message"`
	DocID   string `json:"doc_id"`
}

// DocumentResponse describes a stored document.
type DocumentResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	HasEmbedding bool      `json:"has_embedding"`
	CreatedAt    time.Time `json:"created_at"`
}

// SelectRequest is the body of POST /api/selection.
type SelectRequest struct {
	Titles []string `json:"titles" validate:"required,min=1,dive,required"`
}

// SelectionResponse lists the titles in scope.
type SelectionResponse struct {
	Message        string   `json:"message,omitempty"`
	SelectedTitles []string `json:"selected_titles"`
}

// AskRequest is the body of POST /api/qa. The question is checked by the
// retrieval engine so that an empty scope is reported first.
type AskRequest struct {
	Question string `json:"question"`
	K        *int   `json:"k,omitempty" validate:"omitempty,gt=0,max=100"`
}

// RetrievedDoc is one ranked answer.
type RetrievedDoc struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// AskResponse is returned by POST /api/qa.
type AskResponse struct {
	RetrievedDocs []RetrievedDoc `json:"retrieved_docs"`
}

// Handler serves the document, selection and question endpoints.
type Handler struct {
	svc      Service
	identity Identity
	validate *validator.Validate
	logger   *zap.Logger
	timeout  time.Duration
	origins  []string
	headers  []string
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithRequestTimeout bounds every request. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.timeout = d
	}
}

// WithCORS allows browser requests from the given origins.
func WithCORS(origins ...string) Option {
	return func(h *Handler) {
		h.origins = origins
	}
}

// WithCORSHeaders adds request headers, such as a custom identity header,
// that cross-origin requests may carry.
func WithCORSHeaders(headers ...string) Option {
	return func(h *Handler) {
		h.headers = append(h.headers, headers...)
	}
}

// NewHandler creates a Handler.
func NewHandler(svc Service, identity Identity, opts ...Option) *Handler {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	h := &Handler{
		svc:      svc,
		identity: identity,
		validate: validate,
		logger:   zap.NewNop(),
		timeout:  60 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router for every endpoint.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if h.timeout > 0 {
		r.Use(middleware.Timeout(h.timeout))
	}
	if len(h.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.origins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: append([]string{"Accept", "Authorization", "Content-Type"}, h.headers...),
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireUser(h.identity, h.logger))

		r.Post("/documents", h.handleIngest)
		r.Get("/documents/{id}", h.handleGetDocument)
		r.Delete("/documents/{id}", h.handleDeleteDocument)

		r.Post("/selection", h.handleSelect)
		r.Get("/selection", h.handleGetSelection)
		r.Delete("/selection", h.handleClearSelection)

		r.Post("/qa", h.handleAsk)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "endpoint not found")
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads and validates a JSON body. It writes the error response and
// returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.logger.Debug("request validation failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		handleValidationError(w, err)
		return false
	}
	return true
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if !h.decode(w, r, &req) {
		return
	}

	doc, err := h.svc.Ingest(r.Context(), req.Title, req.Content)
	if err != nil && doc.ID == "" {
		handleError(w, err, h.logger)
		return
	}
	if err != nil {
		// Stored, but a secondary index could not be updated.
		h.logger.Warn("document ingested with errors", zap.String("id", doc.ID), zap.Error(err))
	}

	writeJSON(w, http.StatusCreated, IngestResponse{
		Message: "Document ingested successfully",
		DocID:   doc.ID,
	})
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, DocumentResponse{
		ID:           doc.ID,
		Title:        doc.Title,
		Content:      doc.Content,
		HasEmbedding: doc.HasEmbedding(),
		CreatedAt:    doc.CreatedAt,
	})
}

func (h *Handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Document deleted"})
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if !h.decode(w, r, &req) {
		return
	}

	docs, err := h.svc.Select(r.Context(), UserFromContext(r.Context()), req.Titles)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, SelectionResponse{
		Message:        "Documents selected successfully",
		SelectedTitles: uniqueTitles(docs),
	})
}

func (h *Handler) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.Selection(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, SelectionResponse{SelectedTitles: uniqueTitles(docs)})
}

func (h *Handler) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearSelection(r.Context(), UserFromContext(r.Context())); err != nil {
		handleError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Document selection cleared"})
}

func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if !h.decode(w, r, &req) {
		return
	}
	k := retrieval.DefaultK
	if req.K != nil {
		k = *req.K
	}

	results, err := h.svc.Ask(r.Context(), UserFromContext(r.Context()), req.Question, k)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	docs := make([]RetrievedDoc, len(results))
	for i, res := range results {
		docs[i] = RetrievedDoc{Title: res.Document.Title, Content: res.Document.Content}
	}
	writeJSON(w, http.StatusOK, AskResponse{RetrievedDocs: docs})
}

func uniqueTitles(docs []document.Document) []string {
	titles := make([]string, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if _, ok := seen[d.Title]; ok {
			continue
		}
		seen[d.Title] = struct{}{}
		titles = append(titles, d.Title)
	}
	return titles
}
