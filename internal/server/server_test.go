package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/newsmill/newsmill/internal/database"
	"github.com/newsmill/newsmill/internal/ingest"
	"github.com/newsmill/newsmill/internal/rank"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testServer(t *testing.T, db *database.DB) *Server {
	t.Helper()
	return New(db, rank.New(rank.DefaultOptions()), nil)
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func seedArticle(t *testing.T, db *database.DB, sourceID int64, url, title, category string, published time.Time) int64 {
	t.Helper()
	id, err := db.InsertArticle(&database.Article{
		SourceID:     sourceID,
		CanonicalURL: url,
		Title:        title,
		PublishedAt:  published,
		Language:     "en",
		Category:     category,
		Labels:       []string{category},
	})
	if err != nil || id == 0 {
		t.Fatalf("seeding article: id=%d err=%v", id, err)
	}
	return id
}

func TestHealthRoute(t *testing.T) {
	srv := testServer(t, openTestDB(t))
	rec := do(t, srv, "GET", "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestArticlesAnonymousOrder(t *testing.T) {
	db := openTestDB(t)
	srcID, _ := db.RegisterSource("A", "https://a.example/rss", "", "")
	now := time.Now().UTC()
	seedArticle(t, db, srcID, "https://a.example/old", "Old story", "general", now.Add(-48*time.Hour))
	seedArticle(t, db, srcID, "https://a.example/new", "New story", "general", now.Add(-time.Hour))

	srv := testServer(t, db)
	rec := do(t, srv, "GET", "/articles", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Articles []database.Article `json:"articles"`
		Count    int                `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Count != 2 || len(resp.Articles) != 2 {
		t.Fatalf("count = %d, articles = %d", resp.Count, len(resp.Articles))
	}
	if resp.Articles[0].Title != "New story" {
		t.Errorf("expected the fresh article first, got %q", resp.Articles[0].Title)
	}
}

func TestArticlesFilterAndLimit(t *testing.T) {
	db := openTestDB(t)
	srcID, _ := db.RegisterSource("A", "https://a.example/rss", "", "")
	now := time.Now().UTC()
	seedArticle(t, db, srcID, "https://a.example/f", "Market report", "finance", now)
	seedArticle(t, db, srcID, "https://a.example/s", "Cup final", "sports", now)

	srv := testServer(t, db)
	rec := do(t, srv, "GET", "/articles?category=sports", "")

	var resp struct {
		Articles []database.Article `json:"articles"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Articles) != 1 || resp.Articles[0].Category != "sports" {
		t.Errorf("filtered articles = %+v", resp.Articles)
	}

	rec = do(t, srv, "GET", "/articles?limit=1", "")
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Articles) != 1 {
		t.Errorf("limit=1 returned %d articles", len(resp.Articles))
	}

	rec = do(t, srv, "GET", "/articles?limit=zero", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: expected 400, got %d", rec.Code)
	}
}

func TestArticlesSinceHours(t *testing.T) {
	db := openTestDB(t)
	srcID, _ := db.RegisterSource("A", "https://a.example/rss", "", "")
	now := time.Now().UTC()
	seedArticle(t, db, srcID, "https://a.example/old", "Old story", "general", now.Add(-48*time.Hour))
	seedArticle(t, db, srcID, "https://a.example/new", "New story", "general", now.Add(-time.Hour))

	srv := testServer(t, db)
	rec := do(t, srv, "GET", "/articles?since_hours=6", "")

	var resp struct {
		Articles []database.Article `json:"articles"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Articles) != 1 || resp.Articles[0].Title != "New story" {
		t.Errorf("since_hours=6 returned %+v", resp.Articles)
	}
}

func TestArticlesRankedForUser(t *testing.T) {
	db := openTestDB(t)
	srcID, _ := db.RegisterSource("A", "https://a.example/rss", "", "")
	now := time.Now().UTC().Add(-time.Hour)
	seedArticle(t, db, srcID, "https://a.example/f", "Market report", "finance", now)
	seedArticle(t, db, srcID, "https://a.example/s", "Cup final", "sports", now)

	user, _ := db.CreateUser("fan@example.com")
	db.UpdateUserPreferences(user.ID, "sports:2|finance:0.2")

	srv := testServer(t, db)
	rec := do(t, srv, "GET", fmt.Sprintf("/articles?user_id=%d", user.ID), "")

	var resp struct {
		Articles []database.Article `json:"articles"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Articles) != 2 || resp.Articles[0].Category != "sports" {
		t.Errorf("expected the preferred category first, got %+v", resp.Articles)
	}

	rec = do(t, srv, "GET", "/articles?user_id=999", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown user: expected 404, got %d", rec.Code)
	}
}

func TestCreateAndGetUser(t *testing.T) {
	srv := testServer(t, openTestDB(t))

	rec := do(t, srv, "POST", "/users", `{"email":"reader@example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID int64 `json:"id"`
	}
	json.Unmarshal(rec.Body.Bytes(), &created)
	if created.ID == 0 {
		t.Fatal("expected a user id")
	}

	rec = do(t, srv, "GET", fmt.Sprintf("/users/%d", created.ID), "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "reader@example.com") {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = do(t, srv, "POST", "/users", `{"email":"not-an-email"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid email: expected 400, got %d", rec.Code)
	}
}

func TestUpdatePreferences(t *testing.T) {
	db := openTestDB(t)
	user, _ := db.CreateUser("reader@example.com")
	srv := testServer(t, db)

	rec := do(t, srv, "PUT", fmt.Sprintf("/users/%d/preferences", user.ID),
		`{"finance": 1.4, "sports": 0.6}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	stored, _ := db.GetUser(user.ID)
	if stored.Preferences != "finance:1.4|sports:0.6" {
		t.Errorf("stored preferences = %q", stored.Preferences)
	}

	rec = do(t, srv, "PUT", fmt.Sprintf("/users/%d/preferences", user.ID), `{"x": -1}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative weight: expected 400, got %d", rec.Code)
	}
}

func TestFeedbackAdjustsPreferences(t *testing.T) {
	db := openTestDB(t)
	srcID, _ := db.RegisterSource("A", "https://a.example/rss", "", "")
	articleID := seedArticle(t, db, srcID, "https://a.example/f", "Market report", "finance", time.Now().UTC())
	user, _ := db.CreateUser("reader@example.com")
	srv := testServer(t, db)

	body := fmt.Sprintf(`{"user_id":%d,"article_id":%d,"liked":true}`, user.ID, articleID)
	rec := do(t, srv, "POST", "/feedback", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	stored, _ := db.GetUser(user.ID)
	prefs := rank.ParsePreferences(stored.Preferences)
	if w := prefs.Weight("finance"); w != 1.2 {
		t.Errorf("finance weight after like = %v, want 1.2", w)
	}
	article, _ := db.GetArticle(articleID)
	if article.LikeCount != 1 {
		t.Errorf("like count = %d, want 1", article.LikeCount)
	}

	// repeating the same vote changes nothing
	do(t, srv, "POST", "/feedback", body)
	stored, _ = db.GetUser(user.ID)
	if w := rank.ParsePreferences(stored.Preferences).Weight("finance"); w != 1.2 {
		t.Errorf("finance weight after repeat = %v, want 1.2", w)
	}

	// flipping retracts the like and applies a dislike
	flip := fmt.Sprintf(`{"user_id":%d,"article_id":%d,"liked":false}`, user.ID, articleID)
	do(t, srv, "POST", "/feedback", flip)
	stored, _ = db.GetUser(user.ID)
	if w := rank.ParsePreferences(stored.Preferences).Weight("finance"); w != 0.8 {
		t.Errorf("finance weight after flip = %v, want 0.8", w)
	}
	article, _ = db.GetArticle(articleID)
	if article.LikeCount != 0 || article.DislikeCount != 1 {
		t.Errorf("counts after flip = %d/%d", article.LikeCount, article.DislikeCount)
	}
}

func TestFeedbackUnknownTargets(t *testing.T) {
	db := openTestDB(t)
	user, _ := db.CreateUser("reader@example.com")
	srv := testServer(t, db)

	rec := do(t, srv, "POST", "/feedback",
		fmt.Sprintf(`{"user_id":%d,"article_id":999,"liked":true}`, user.ID))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown article: expected 404, got %d", rec.Code)
	}

	rec = do(t, srv, "POST", "/feedback", `{"user_id":999,"article_id":1,"liked":true}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown user: expected 404, got %d", rec.Code)
	}

	rec = do(t, srv, "POST", "/feedback", `{"user_id":1,"article_id":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing liked: expected 400, got %d", rec.Code)
	}
}

func TestMetaRoute(t *testing.T) {
	db := openTestDB(t)
	srcID, _ := db.RegisterSource("A", "https://a.example/rss", "us", "en")
	seedArticle(t, db, srcID, "https://a.example/f", "Market report", "finance", time.Now().UTC())

	srv := testServer(t, db)
	rec := do(t, srv, "GET", "/meta", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Categories []string          `json:"categories"`
		Sources    []database.Source `json:"sources"`
		Stats      database.Stats    `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Categories) != 1 || resp.Categories[0] != "finance" {
		t.Errorf("categories = %v", resp.Categories)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Name != "A" {
		t.Errorf("sources = %+v", resp.Sources)
	}
	if resp.Stats.Articles != 1 {
		t.Errorf("stats = %+v", resp.Stats)
	}
}

func TestRefreshRoute(t *testing.T) {
	db := openTestDB(t)

	called := false
	refresh := func(ctx context.Context) (*ingest.RunReport, error) {
		called = true
		return &ingest.RunReport{}, nil
	}
	srv := New(db, rank.New(rank.DefaultOptions()), refresh)

	rec := do(t, srv, "POST", "/refresh", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !called {
		t.Error("refresh func not invoked")
	}

	disabled := New(db, rank.New(rank.DefaultOptions()), nil)
	rec = do(t, disabled, "POST", "/refresh", "")
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("expected 501, got %d", rec.Code)
	}

	rec = do(t, srv, "GET", "/refresh", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}
