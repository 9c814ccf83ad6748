package web

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/memoria/internal/catalog"
	"github.com/conorfennell/memoria/internal/domain"
	"github.com/conorfennell/memoria/internal/identity"
	"github.com/conorfennell/memoria/internal/plan"
	"github.com/conorfennell/memoria/internal/review"
	"github.com/conorfennell/memoria/internal/storage"
)

//go:embed all:templates
var templateFiles embed.FS

// Server holds the dependencies for the HTTP server.
type Server struct {
	db        *storage.DB
	reviews   *review.Service
	syncer    *catalog.Syncer
	verifier  *identity.Verifier
	router    *http.ServeMux
	handler   http.Handler
	templates *template.Template
	validate  *validator.Validate
	admins    map[string]bool
	log       *slog.Logger
}

// NewServer creates and configures a new server. Only callers whose email is
// in admins may manage fiche sources.
func NewServer(db *storage.DB, reviews *review.Service, syncer *catalog.Syncer, verifier *identity.Verifier, admins []string, log *slog.Logger) (*Server, error) {
	tpl, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		db:        db,
		reviews:   reviews,
		syncer:    syncer,
		verifier:  verifier,
		router:    http.NewServeMux(),
		templates: tpl,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		admins:    make(map[string]bool, len(admins)),
		log:       log.With("component", "web"),
	}
	for _, email := range admins {
		if c := domain.NewCaller(email); c.Authenticated() {
			s.admins[c.UserID] = true
		}
	}
	s.routes()
	s.handler = verifier.Middleware(s.router)
	return s, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /{$}", s.handleGetDeck())

	s.router.HandleFunc("POST /api/reviews/{unit}/memorize", s.handleMarkMemorized())
	s.router.HandleFunc("POST /api/reviews/{unit}/outcome", s.handleRecordOutcome())
	s.router.HandleFunc("GET /api/reviews/due", s.handleListDue())
	s.router.HandleFunc("GET /api/stats", s.handleStats())

	s.router.HandleFunc("GET /api/units/{unit}", s.handleGetUnit())
	s.router.HandleFunc("GET /api/plan", s.handleGetPlan())

	// Source management routes
	s.router.HandleFunc("GET /api/sources", s.requireAdmin(s.handleGetSources()))
	s.router.HandleFunc("POST /api/sources", s.requireAdmin(s.handlePostSource()))
	s.router.HandleFunc("DELETE /api/sources/{id}", s.requireAdmin(s.handleDeleteSource()))
	s.router.HandleFunc("POST /api/sync", s.requireAdmin(s.handlePostSync()))

	s.router.HandleFunc("GET /healthz", s.handleHealth())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to encode response", "error", err)
	}
}

// requireAdmin rejects anonymous callers with 401 and callers outside the
// admin list with 403.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := identity.CallerFrom(r.Context())
		if !caller.Authenticated() {
			s.writeError(w, r, review.ErrUnauthenticated)
			return
		}
		if !s.admins[caller.UserID] {
			s.log.Warn("source management refused", "user", caller.UserID, "method", r.Method, "path", r.URL.Path)
			s.writeJSON(w, http.StatusForbidden, errorBody{Error: "admin access required"})
			return
		}
		next(w, r)
	}
}

type errorBody struct {
	Error  string              `json:"error"`
	Fields []review.FieldError `json:"fields,omitempty"`
}

// writeError maps service errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *review.ValidationError
	switch {
	case errors.Is(err, review.ErrUnauthenticated):
		s.writeJSON(w, http.StatusUnauthorized, errorBody{Error: "sign in required"})
	case errors.Is(err, review.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorBody{Error: "nothing to review yet"})
	case errors.Is(err, review.ErrConflict):
		s.writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.As(err, &ve):
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid input", Fields: ve.Fields})
	default:
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}

// handleGetDeck renders the deck view, showing the caller's due fiches.
func (s *Server) handleGetDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := identity.CallerFrom(r.Context())
		due, err := s.reviews.ListDueReviews(r.Context(), caller)
		if err != nil {
			s.log.Error("error getting due reviews for deck view", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		stats, err := s.reviews.GetUserStats(r.Context(), caller)
		if err != nil {
			s.log.Error("error getting stats for deck view", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		data := map[string]any{
			"Due":         due,
			"DueCount":    len(due),
			"HasDueCards": len(due) > 0,
			"Stats":       stats,
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := s.templates.ExecuteTemplate(w, "deck", data); err != nil {
			s.log.Error("error rendering deck", "error", err)
		}
	}
}

func (s *Server) handleMarkMemorized() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := identity.CallerFrom(r.Context())
		if err := s.reviews.MarkAsMemorized(r.Context(), caller, r.PathValue("unit")); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type outcomeRequest struct {
	Success *bool `json:"success" validate:"required"`
}

func (s *Server) handleRecordOutcome() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req outcomeRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
			return
		}
		if err := s.validate.Struct(req); err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorBody{
				Error:  "invalid input",
				Fields: []review.FieldError{{Field: "success", Error: "this field is required"}},
			})
			return
		}

		caller := identity.CallerFrom(r.Context())
		if err := s.reviews.RecordReviewOutcome(r.Context(), caller, r.PathValue("unit"), *req.Success); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleListDue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		due, err := s.reviews.ListDueReviews(r.Context(), identity.CallerFrom(r.Context()))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, due)
	}
}

func (s *Server) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.reviews.GetUserStats(r.Context(), identity.CallerFrom(r.Context()))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, stats)
	}
}

func (s *Server) handleGetUnit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unit, err := s.db.FindContentUnit(r.Context(), r.PathValue("unit"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if unit == nil {
			s.writeJSON(w, http.StatusNotFound, errorBody{Error: "content unit not found"})
			return
		}
		s.writeJSON(w, http.StatusOK, unit)
	}
}

// handleGetPlan builds a reading plan over the canon; ?days defaults to 365.
func (s *Server) handleGetPlan() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := 365
		if v := r.URL.Query().Get("days"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "days must be an integer"})
				return
			}
			days = n
		}
		p, err := plan.Generate(plan.Canon(), days)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		s.writeJSON(w, http.StatusOK, p)
	}
}

func (s *Server) sourceList(w http.ResponseWriter, r *http.Request, status int) {
	sources, err := s.db.GetAllSources(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sources == nil {
		sources = []storage.Source{}
	}
	s.writeJSON(w, status, sources)
}

// handleGetSources lists the configured fiche sources.
func (s *Server) handleGetSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.sourceList(w, r, http.StatusOK)
	}
}

type sourceRequest struct {
	Path string `json:"path" validate:"required"`
}

// handlePostSource adds a new source and returns the source list.
func (s *Server) handlePostSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sourceRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
			return
		}
		if err := s.validate.Struct(req); err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "path cannot be empty"})
			return
		}
		if _, err := s.syncer.AddSource(r.Context(), req.Path); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.sourceList(w, r, http.StatusCreated)
	}
}

// handleDeleteSource deletes a source and returns the source list.
func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid source ID"})
			return
		}
		deleted, err := s.db.DeleteSource(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if !deleted {
			s.writeJSON(w, http.StatusNotFound, errorBody{Error: "source not found"})
			return
		}
		s.sourceList(w, r, http.StatusOK)
	}
}

type syncResult struct {
	SourceID int64    `json:"sourceId"`
	Path     string   `json:"path"`
	Parsed   int      `json:"parsed"`
	Updated  int      `json:"updated"`
	Deleted  int      `json:"deleted"`
	Errors   []string `json:"errors,omitempty"`
}

// handlePostSync runs a sync in the foreground and reports per-source results.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reports, err := s.syncer.SyncAll(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		results := make([]syncResult, 0, len(reports))
		for _, rep := range reports {
			res := syncResult{
				SourceID: rep.SourceID,
				Path:     rep.Path,
				Parsed:   rep.Parsed,
				Updated:  rep.Updated,
				Deleted:  rep.Deleted,
			}
			for _, e := range rep.Errors {
				res.Errors = append(res.Errors, e.Error())
			}
			results = append(results, res)
		}
		s.writeJSON(w, http.StatusOK, results)
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.Ping(r.Context()); err != nil {
			s.writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "database unavailable"})
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
