// Package server exposes the stored articles, users, and feedback over a
// small JSON API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/newsmill/newsmill/internal/database"
	"github.com/newsmill/newsmill/internal/ingest"
	"github.com/newsmill/newsmill/internal/rank"
)

// DefaultLimit bounds article listings when the client gives no limit.
const DefaultLimit = 50

// MaxLimit caps how many articles a single request may ask for.
const MaxLimit = 500

// RefreshFunc triggers an ingestion cycle on demand.
type RefreshFunc func(ctx context.Context) (*ingest.RunReport, error)

// Server is the HTTP server for the article API.
type Server struct {
	db      *database.DB
	engine  *rank.Engine
	refresh RefreshFunc
	mux     *http.ServeMux
}

// New creates a Server. refresh may be nil, which disables POST /refresh.
func New(db *database.DB, engine *rank.Engine, refresh RefreshFunc) *Server {
	s := &Server{db: db, engine: engine, refresh: refresh, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/articles", s.handleArticles)
	s.mux.HandleFunc("/users", s.handleUsers)
	s.mux.HandleFunc("/users/", s.handleUserAction)
	s.mux.HandleFunc("/feedback", s.handleFeedback)
	s.mux.HandleFunc("/meta", s.handleMeta)
	s.mux.HandleFunc("/refresh", s.handleRefresh)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleArticles lists articles, ranked for the requesting user when
// user_id is given, otherwise in anonymous trending order.
func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := r.URL.Query()

	filter := database.ArticleFilter{
		Category: q.Get("category"),
		Country:  q.Get("country"),
		Language: q.Get("language"),
		Search:   q.Get("q"),
	}
	if v := q.Get("source_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid source_id")
			return
		}
		filter.SourceID = id
	}
	if v := q.Get("since_hours"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours < 1 {
			writeError(w, http.StatusBadRequest, "invalid since_hours")
			return
		}
		filter.Since = time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	}

	limit := DefaultLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, MaxLimit)
	}

	var prefs rank.Preferences
	if v := q.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		user, err := s.db.GetUser(id)
		if err != nil {
			s.internalError(w, "loading user", err)
			return
		}
		if user == nil {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		prefs = rank.ParsePreferences(user.Preferences)
	}

	articles, err := s.db.ListArticles(filter)
	if err != nil {
		s.internalError(w, "listing articles", err)
		return
	}
	ranked := s.engine.Rank(articles, prefs, limit, time.Now().UTC())

	writeJSON(w, http.StatusOK, map[string]any{
		"articles": emptyIfNil(ranked),
		"count":    len(ranked),
	})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "valid email required")
		return
	}

	user, err := s.db.CreateUser(req.Email)
	if err != nil {
		s.internalError(w, "creating user", err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse(user))
}

// handleUserAction serves GET /users/{id} and PUT /users/{id}/preferences.
func (s *Server) handleUserAction(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/users/")
	parts := strings.SplitN(path, "/", 2)

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	user, err := s.db.GetUser(id)
	if err != nil {
		s.internalError(w, "loading user", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, userResponse(user))
		return
	}

	if parts[1] != "preferences" || r.Method != http.MethodPut {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	var weights map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&weights); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	prefs := rank.Preferences{}
	for category, weight := range weights {
		if weight < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("negative weight for %q", category))
			return
		}
		prefs[category] = weight
	}

	if err := s.db.UpdateUserPreferences(id, prefs.Serialize()); err != nil {
		s.internalError(w, "updating preferences", err)
		return
	}
	user.Preferences = prefs.Serialize()
	writeJSON(w, http.StatusOK, userResponse(user))
}

// handleFeedback records a like or dislike and nudges the user's
// preference weight for the article's category.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		UserID    int64 `json:"user_id"`
		ArticleID int64 `json:"article_id"`
		Liked     *bool `json:"liked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Liked == nil {
		writeError(w, http.StatusBadRequest, "user_id, article_id and liked required")
		return
	}

	user, err := s.db.GetUser(req.UserID)
	if err != nil {
		s.internalError(w, "loading user", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	article, err := s.db.GetArticle(req.ArticleID)
	if err != nil {
		s.internalError(w, "loading article", err)
		return
	}
	if article == nil {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}

	prev, err := s.db.RecordFeedback(req.UserID, req.ArticleID, *req.Liked)
	if err != nil {
		s.internalError(w, "recording feedback", err)
		return
	}

	if article.Category != "" && (prev == nil || *prev != *req.Liked) {
		prefs := rank.ParsePreferences(user.Preferences)
		if prev != nil {
			// Flipped vote: take back the old nudge first.
			prefs.ApplyFeedback(article.Category, !*prev)
		}
		prefs.ApplyFeedback(article.Category, *req.Liked)
		if err := s.db.UpdateUserPreferences(req.UserID, prefs.Serialize()); err != nil {
			s.internalError(w, "updating preferences", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "recorded"})
}

// handleMeta lists the catalog a client needs to build filters.
func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	categories, err := s.db.DistinctCategories()
	if err != nil {
		s.internalError(w, "listing categories", err)
		return
	}
	sources, err := s.db.ListSources()
	if err != nil {
		s.internalError(w, "listing sources", err)
		return
	}
	stats, err := s.db.GetStats()
	if err != nil {
		s.internalError(w, "reading stats", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"categories": emptyIfNil(categories),
		"sources":    emptyIfNil(sources),
		"stats":      stats,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.refresh == nil {
		writeError(w, http.StatusNotImplemented, "refresh not available")
		return
	}

	report, err := s.refresh(r.Context())
	if err != nil {
		s.internalError(w, "running refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// userResponse augments the stored user with decoded preference weights.
func userResponse(u *database.User) map[string]any {
	return map[string]any{
		"id":          u.ID,
		"email":       u.Email,
		"preferences": rank.ParsePreferences(u.Preferences),
		"created_at":  u.CreatedAt,
	}
}

func (s *Server) internalError(w http.ResponseWriter, what string, err error) {
	log.Printf("%s: %v", what, err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, engine *rank.Engine, refresh RefreshFunc, port int) error {
	srv := New(db, engine, refresh)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
