package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apperrors "github.com/balkanpress/rassegna/internal/errors"
	"github.com/balkanpress/rassegna/internal/search"
	"github.com/balkanpress/rassegna/internal/store"
)

// searchRequest is the POST /api/search body. Zero values fall back to the
// configured defaults.
type searchRequest struct {
	Query          string   `json:"query"`
	Mode           string   `json:"mode,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	ApplyReranking bool     `json:"apply_reranking,omitempty"`
	LexicalWeight  *float64 `json:"lexical_weight,omitempty"`
	SemanticWeight *float64 `json:"semantic_weight,omitempty"`
	Sector         string   `json:"sector,omitempty"`
	Source         string   `json:"source,omitempty"`
	Status         string   `json:"status,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}

	opts := search.Options{
		Mode:           search.Mode(req.Mode),
		Limit:          req.Limit,
		ApplyReranking: req.ApplyReranking,
		Filter: store.Filter{
			Sector: req.Sector,
			Source: req.Source,
			Status: req.Status,
		},
	}
	if opts.Limit == 0 {
		opts.Limit = s.defaults.DefaultLimit
	}
	if req.LexicalWeight != nil && req.SemanticWeight != nil {
		opts.Weights = &search.Weights{
			Lexical:  *req.LexicalWeight,
			Semantic: *req.SemanticWeight,
		}
	}

	resp, err := s.engine.Search(r.Context(), req.Query, opts)
	if err != nil {
		slog.Error("search_request_failed",
			slog.String("code", apperrors.GetCode(err)),
			slog.String("error", err.Error()))
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIndexArticles(w http.ResponseWriter, r *http.Request) {
	var articles []*store.Article
	if err := json.NewDecoder(r.Body).Decode(&articles); err != nil {
		s.respondError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}
	if len(articles) == 0 {
		s.respondError(w, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, "no articles in request")
		return
	}
	for _, a := range articles {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
	}

	if err := s.engine.Index(r.Context(), articles); err != nil {
		slog.Error("index_request_failed",
			slog.String("code", apperrors.GetCode(err)),
			slog.String("error", err.Error()))
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]any{
		"indexed": len(articles),
	})
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.Filter{
		Sector: q.Get("sector"),
		Source: q.Get("source"),
		Status: q.Get("status"),
	}
	limit := s.defaults.DefaultLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, apperrors.ErrCodeInvalidLimit, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > s.defaults.MaxLimit {
		limit = s.defaults.MaxLimit
	}

	articles, err := s.articles.ListArticles(r.Context(), filter, limit)
	if err != nil {
		slog.Error("list_articles_failed", slog.String("error", err.Error()))
		s.respondError(w, http.StatusInternalServerError, apperrors.ErrCodeStoreFailed, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"articles": articles})
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	article, err := s.articles.GetArticle(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "", "article not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, apperrors.ErrCodeStoreFailed, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, article)
}

func (s *Server) handleDeleteArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.Delete(r.Context(), []string{id}); err != nil {
		slog.Error("delete_request_failed",
			slog.String("id", id),
			slog.String("error", err.Error()))
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}
	if !store.ValidStatus(req.Status) {
		s.respondError(w, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, "unknown status "+req.Status)
		return
	}

	if err := s.articles.SetStatus(r.Context(), id, req.Status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "", "article not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, apperrors.ErrCodeStoreFailed, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": req.Status})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"index": s.engine.Stats(r.Context()),
	}
	if s.metrics != nil {
		resp["queries"] = s.metrics.Snapshot()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusForCode maps application error codes to HTTP statuses. Input errors
// are the caller's fault; both-backends-down is a 503 so load balancers
// retry elsewhere.
func statusForCode(code string) int {
	switch code {
	case apperrors.ErrCodeInvalidInput,
		apperrors.ErrCodeInvalidLimit,
		apperrors.ErrCodeInvalidMode,
		apperrors.ErrCodeDimensionMismatch:
		return http.StatusBadRequest
	case apperrors.ErrCodeSearchUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) respondAppError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	s.respondError(w, statusForCode(code), code, err.Error())
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
