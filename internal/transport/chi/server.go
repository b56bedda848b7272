package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain"
	dominter "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/interaction"
	logpkg "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/logger"
	contentuc "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/usecase/content"
	healthuc "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/usecase/health"
	interactionuc "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/usecase/interaction"
	sitemapuc "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/usecase/sitemap"
)

const (
	maxCommentBody = 64 << 10

	defaultSitemapMaxAge = time.Hour
)

// Error codes returned in error bodies.
const (
	CodeBadRequest         = "bad_request"
	CodeValidationFailed   = "validation_failed"
	CodeCollectionNotFound = "collection_not_found"
	CodeDocumentNotFound   = "document_not_found"
	CodePersistFailed      = "persist_failed"
	CodeInternalError      = "internal_error"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Options tune response headers.
type Options struct {
	// SitemapMaxAge is sent as Cache-Control max-age on /sitemap.xml.
	SitemapMaxAge time.Duration
}

// Server serves the content API on a chi router.
type Server struct {
	content       *contentuc.Service
	interactions  *interactionuc.Service
	sitemaps      *sitemapuc.Service
	health        *healthuc.Service
	opts          Options
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	content *contentuc.Service,
	interactions *interactionuc.Service,
	sitemaps *sitemapuc.Service,
	health *healthuc.Service,
	opts Options,
	logger *zap.Logger,
) *Server {
	if opts.SitemapMaxAge <= 0 {
		opts.SitemapMaxAge = defaultSitemapMaxAge
	}
	s := &Server{
		content:      content,
		interactions: interactions,
		sitemaps:     sitemaps,
		health:       health,
		opts:         opts,
		logger:       logger,
	}
	s.errorHandlers = []errorHandler{
		persistFailedHandler,
		sentinelHandler(domain.ErrCollectionNotFound, http.StatusNotFound, CodeCollectionNotFound),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, CodeDocumentNotFound),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeValidationFailed),
	}
	return s
}

// Register mounts every route on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Get("/sitemap.xml", s.Sitemap)

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.Search)

		r.Route("/items/{id}", func(r chi.Router) {
			r.Get("/", s.GetInteractions)
			r.Post("/like", s.Like)
			r.Post("/unlike", s.Unlike)
			r.Post("/comments", s.Comment)
		})

		r.Route("/{collection}", func(r chi.Router) {
			r.Get("/", s.ListDocuments)
			r.Get("/slug/{slug}", s.GetDocumentBySlug)
			r.Get("/{id}", s.GetDocument)
			r.Post("/{id}/like", s.collectionInteraction(s.Like))
			r.Post("/{id}/unlike", s.collectionInteraction(s.Unlike))
			r.Post("/{id}/comment", s.collectionInteraction(s.Comment))
		})
	})
}

// ListDocuments handles GET /api/{collection}.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, err := intParam(q.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "offset must be an integer")
		return
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "limit must be an integer")
		return
	}

	page, err := s.content.List(r.Context(), chi.URLParam(r, "collection"), contentuc.ListQuery{
		Query:  q.Get("q"),
		ID:     q.Get("id"),
		Slug:   q.Get("slug"),
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(page.Total))
	writeJSON(w, http.StatusOK, page.Items)
}

// GetDocument handles GET /api/{collection}/{id}. The id segment also matches slugs.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.content.Get(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// GetDocumentBySlug handles GET /api/{collection}/slug/{slug}.
func (s *Server) GetDocumentBySlug(w http.ResponseWriter, r *http.Request) {
	doc, err := s.content.GetBySlug(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "slug"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Search handles GET /api/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "limit must be an integer")
		return
	}
	hits, err := s.content.Search(r.Context(), contentuc.SearchQuery{
		Query:      q.Get("q"),
		Collection: q.Get("collection"),
		Limit:      limit,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

// Like handles POST /api/items/{id}/like.
func (s *Server) Like(w http.ResponseWriter, r *http.Request) {
	out, err := s.interactions.Like(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Unlike handles POST /api/items/{id}/unlike.
func (s *Server) Unlike(w http.ResponseWriter, r *http.Request) {
	out, err := s.interactions.Unlike(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Comment handles POST /api/items/{id}/comments.
func (s *Server) Comment(w http.ResponseWriter, r *http.Request) {
	var req interactionuc.CommentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommentBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	c, err := s.interactions.Comment(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// GetInteractions handles GET /api/items/{id}.
func (s *Server) GetInteractions(w http.ResponseWriter, r *http.Request) {
	rec, err := s.interactions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if rec.Comments == nil {
		rec.Comments = []dominter.Comment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"likes":    rec.Likes,
		"comments": rec.Comments,
	})
}

// collectionInteraction serves item interactions under a collection path. Only collections with
// interactions enabled accept them.
func (s *Server) collectionInteraction(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		col, err := s.content.Collection(chi.URLParam(r, "collection"))
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		if !col.Interactions() {
			writeError(w, http.StatusNotFound, CodeCollectionNotFound,
				fmt.Sprintf("%s does not accept interactions", col.Name()))
			return
		}
		next(w, r)
	}
}

// Sitemap handles GET /sitemap.xml.
func (s *Server) Sitemap(w http.ResponseWriter, r *http.Request) {
	doc, err := s.sitemaps.Get(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	h := w.Header()
	h.Set("Content-Type", "application/xml; charset=utf-8")
	h.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(s.opts.SitemapMaxAge.Seconds())))
	h.Set("X-Robots-Tag", "noindex")
	h.Set("Last-Modified", doc.GeneratedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.XML)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", v, err)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns the client-facing message for err. Validation errors keep their
// detail; anything else is reduced to its sentinel.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidInput) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrCollectionNotFound,
		domain.ErrDocumentNotFound,
		domain.ErrPersistFailed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// persistFailedHandler reports a failed ledger write with the last durably known like count.
func persistFailedHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrPersistFailed) {
		return false
	}
	body := map[string]any{
		"code":    CodePersistFailed,
		"message": msg,
	}
	var pe *domain.PersistError
	if errors.As(err, &pe) {
		body["likes"] = pe.LastKnown
	}
	w.Header().Set("Retry-After", "1")
	writeJSON(w, http.StatusServiceUnavailable, body)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
