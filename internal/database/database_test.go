package database

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenMigratesToLatest(t *testing.T) {
	db := openTestDB(t)
	version, err := getSchemaVersion(db.conn)
	if err != nil {
		t.Fatalf("getSchemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("schema version = %d, want %d", version, latestVersion())
	}
}

func TestRegisterSourceUpsert(t *testing.T) {
	db := openTestDB(t)

	id1, err := db.RegisterSource("Example  News", "https://example.com/rss", "us", "en")
	if err != nil {
		t.Fatalf("RegisterSource: %v", err)
	}
	id2, err := db.RegisterSource("Example News Updated", "https://example.com/rss", "gb", "en")
	if err != nil {
		t.Fatalf("RegisterSource again: %v", err)
	}
	if id1 != id2 {
		t.Errorf("re-registering same feed URL gave id %d, want %d", id2, id1)
	}

	sources, err := db.ListSources()
	if err != nil {
		t.Fatalf("ListSources: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("got %d sources, want 1", len(sources))
	}
	if sources[0].Name != "Example News Updated" {
		t.Errorf("name = %q, want updated name", sources[0].Name)
	}
	if sources[0].Country != "gb" {
		t.Errorf("country = %q, want gb", sources[0].Country)
	}
}

func TestSetSourceEnabled(t *testing.T) {
	db := openTestDB(t)

	id, err := db.RegisterSource("A", "https://a.example/rss", "", "")
	if err != nil {
		t.Fatalf("RegisterSource: %v", err)
	}
	if err := db.SetSourceEnabled(id, false); err != nil {
		t.Fatalf("SetSourceEnabled: %v", err)
	}

	enabled, err := db.EnabledSources()
	if err != nil {
		t.Fatalf("EnabledSources: %v", err)
	}
	if len(enabled) != 0 {
		t.Errorf("got %d enabled sources, want 0", len(enabled))
	}
	if err := db.SetSourceEnabled(999, true); err == nil {
		t.Error("expected error for unknown source id")
	}
}

func testArticle(sourceID int64, url string) *Article {
	return &Article{
		SourceID:     sourceID,
		CanonicalURL: url,
		Title:        "Central bank raises rates",
		Body:         "The central bank raised interest rates by a quarter point.",
		PublishedAt:  time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC),
		Language:     "en",
		Category:     "finance",
		Labels:       []string{"finance", "economy"},
		Fingerprint:  0xdeadbeefcafe1234,
		Country:      "us",
	}
}

func TestInsertArticleDuplicateURL(t *testing.T) {
	db := openTestDB(t)
	srcID, _ := db.RegisterSource("A", "https://a.example/rss", "", "")

	a := testArticle(srcID, "https://a.example/story")
	id, err := db.InsertArticle(a)
	if err != nil {
		t.Fatalf("InsertArticle: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	dup, err := db.InsertArticle(testArticle(srcID, "https://a.example/story"))
	if err != nil {
		t.Fatalf("InsertArticle duplicate: %v", err)
	}
	if dup != 0 {
		t.Errorf("duplicate insert returned id %d, want 0", dup)
	}

	got, err := db.GetArticleByCanonicalURL("https://a.example/story")
	if err != nil {
		t.Fatalf("GetArticleByCanonicalURL: %v", err)
	}
	if got == nil || got.ID != id {
		t.Fatalf("lookup by URL = %+v, want id %d", got, id)
	}
	if got.Fingerprint != a.Fingerprint {
		t.Errorf("fingerprint = %x, want %x", got.Fingerprint, a.Fingerprint)
	}
	if len(got.Labels) != 2 || got.Labels[0] != "finance" || got.Labels[1] != "economy" {
		t.Errorf("labels = %v", got.Labels)
	}
	if !got.PublishedAt.Equal(a.PublishedAt) {
		t.Errorf("published_at = %v, want %v", got.PublishedAt, a.PublishedAt)
	}
}

func TestGetArticleAbsent(t *testing.T) {
	db := openTestDB(t)
	a, err := db.GetArticle(42)
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if a != nil {
		t.Errorf("got %+v, want nil", a)
	}
}

func TestRecentFingerprintsWindow(t *testing.T) {
	db := openTestDB(t)
	srcID, _ := db.RegisterSource("A", "https://a.example/rss", "", "")

	recent := testArticle(srcID, "https://a.example/recent")
	recent.PublishedAt = time.Now().UTC().Add(-2 * time.Hour)
	if _, err := db.InsertArticle(recent); err != nil {
		t.Fatalf("InsertArticle: %v", err)
	}

	old := testArticle(srcID, "https://a.example/old")
	old.PublishedAt = time.Now().UTC().Add(-10 * 24 * time.Hour)
	if _, err := db.InsertArticle(old); err != nil {
		t.Fatalf("InsertArticle: %v", err)
	}

	records, err := db.RecentFingerprints(72 * time.Hour)
	if err != nil {
		t.Fatalf("RecentFingerprints: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].CanonicalURL != "https://a.example/recent" {
		t.Errorf("got %q, want the recent article", records[0].CanonicalURL)
	}
	if records[0].Fingerprint != recent.Fingerprint {
		t.Errorf("fingerprint = %x, want %x", records[0].Fingerprint, recent.Fingerprint)
	}
}

func TestRecentFingerprintsFallsBackToCreatedAt(t *testing.T) {
	db := openTestDB(t)
	srcID, _ := db.RegisterSource("A", "https://a.example/rss", "", "")

	a := testArticle(srcID, "https://a.example/undated")
	a.PublishedAt = time.Time{}
	if _, err := db.InsertArticle(a); err != nil {
		t.Fatalf("InsertArticle: %v", err)
	}

	records, err := db.RecentFingerprints(time.Hour)
	if err != nil {
		t.Fatalf("RecentFingerprints: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records, want 1 (created_at inside window)", len(records))
	}
}

func TestRecordCrossSource(t *testing.T) {
	db := openTestDB(t)
	src1, _ := db.RegisterSource("A", "https://a.example/rss", "", "")
	src2, _ := db.RegisterSource("B", "https://b.example/rss", "", "")

	id, err := db.InsertArticle(testArticle(src1, "https://a.example/story"))
	if err != nil {
		t.Fatalf("InsertArticle: %v", err)
	}
	if err := db.RecordCrossSource(id, src2, "https://b.example/same-story"); err != nil {
		t.Fatalf("RecordCrossSource: %v", err)
	}
	// second sighting from the same source is ignored
	if err := db.RecordCrossSource(id, src2, "https://b.example/same-story-again"); err != nil {
		t.Fatalf("RecordCrossSource repeat: %v", err)
	}

	ids, err := db.ArticleSourceIDs(id)
	if err != nil {
		t.Fatalf("ArticleSourceIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d source ids, want 2", len(ids))
	}
}

func TestListArticlesFilters(t *testing.T) {
	db := openTestDB(t)
	src1, _ := db.RegisterSource("A", "https://a.example/rss", "", "")
	src2, _ := db.RegisterSource("B", "https://b.example/rss", "", "")

	finance := testArticle(src1, "https://a.example/finance")
	if _, err := db.InsertArticle(finance); err != nil {
		t.Fatalf("InsertArticle: %v", err)
	}

	sports := testArticle(src2, "https://b.example/sports")
	sports.Title = "Cup final goes to extra time"
	sports.Body = "A dramatic match in the stadium."
	sports.Category = "sports"
	sports.Labels = []string{"sports"}
	sports.Country = "gb"
	sports.PublishedAt = finance.PublishedAt.Add(time.Hour)
	if _, err := db.InsertArticle(sports); err != nil {
		t.Fatalf("InsertArticle: %v", err)
	}

	all, err := db.ListArticles(ArticleFilter{})
	if err != nil {
		t.Fatalf("ListArticles: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d articles, want 2", len(all))
	}
	if all[0].CanonicalURL != "https://b.example/sports" {
		t.Errorf("expected newest first, got %q", all[0].CanonicalURL)
	}

	cases := []struct {
		name   string
		filter ArticleFilter
		want   string
	}{
		{"category primary", ArticleFilter{Category: "sports"}, "https://b.example/sports"},
		{"category label", ArticleFilter{Category: "economy"}, "https://a.example/finance"},
		{"source", ArticleFilter{SourceID: src2}, "https://b.example/sports"},
		{"country", ArticleFilter{Country: "gb"}, "https://b.example/sports"},
		{"search title", ArticleFilter{Search: "extra time"}, "https://b.example/sports"},
		{"search body", ArticleFilter{Search: "quarter point"}, "https://a.example/finance"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := db.ListArticles(tc.filter)
			if err != nil {
				t.Fatalf("ListArticles: %v", err)
			}
			if len(got) != 1 || got[0].CanonicalURL != tc.want {
				t.Errorf("got %d articles, want exactly %q", len(got), tc.want)
			}
		})
	}

	limited, err := db.ListArticles(ArticleFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListArticles limit: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d articles", len(limited))
	}
}

func TestListArticlesCrossSourceFilter(t *testing.T) {
	db := openTestDB(t)
	src1, _ := db.RegisterSource("A", "https://a.example/rss", "", "")
	src2, _ := db.RegisterSource("B", "https://b.example/rss", "", "")

	id, err := db.InsertArticle(testArticle(src1, "https://a.example/story"))
	if err != nil {
		t.Fatalf("InsertArticle: %v", err)
	}
	if err := db.RecordCrossSource(id, src2, "https://b.example/story"); err != nil {
		t.Fatalf("RecordCrossSource: %v", err)
	}

	got, err := db.ListArticles(ArticleFilter{SourceID: src2})
	if err != nil {
		t.Fatalf("ListArticles: %v", err)
	}
	if len(got) != 1 || got[0].ID != id {
		t.Errorf("filtering by secondary source missed the article: %+v", got)
	}
}

func TestDistinctCategories(t *testing.T) {
	db := openTestDB(t)
	srcID, _ := db.RegisterSource("A", "https://a.example/rss", "", "")

	a := testArticle(srcID, "https://a.example/1")
	db.InsertArticle(a)
	b := testArticle(srcID, "https://a.example/2")
	b.Category = "sports"
	db.InsertArticle(b)

	got, err := db.DistinctCategories()
	if err != nil {
		t.Fatalf("DistinctCategories: %v", err)
	}
	if len(got) != 2 || got[0] != "finance" || got[1] != "sports" {
		t.Errorf("categories = %v", got)
	}
}

func TestCreateUserIdempotent(t *testing.T) {
	db := openTestDB(t)

	u1, err := db.CreateUser("reader@example.com")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	u2, err := db.CreateUser("reader@example.com")
	if err != nil {
		t.Fatalf("CreateUser again: %v", err)
	}
	if u1.ID != u2.ID {
		t.Errorf("re-creating user gave id %d, want %d", u2.ID, u1.ID)
	}

	absent, err := db.GetUser(999)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if absent != nil {
		t.Errorf("got %+v, want nil", absent)
	}
}

func TestUpdateUserPreferences(t *testing.T) {
	db := openTestDB(t)
	u, _ := db.CreateUser("reader@example.com")

	if err := db.UpdateUserPreferences(u.ID, "finance:1.2|sports:0.8"); err != nil {
		t.Fatalf("UpdateUserPreferences: %v", err)
	}
	got, _ := db.GetUser(u.ID)
	if got.Preferences != "finance:1.2|sports:0.8" {
		t.Errorf("preferences = %q", got.Preferences)
	}

	if err := db.UpdateUserPreferences(999, "x:1.0"); err == nil {
		t.Error("expected error for unknown user")
	}
}

func TestRecordFeedbackCounters(t *testing.T) {
	db := openTestDB(t)
	srcID, _ := db.RegisterSource("A", "https://a.example/rss", "", "")
	id, _ := db.InsertArticle(testArticle(srcID, "https://a.example/story"))
	u, _ := db.CreateUser("reader@example.com")

	prev, err := db.RecordFeedback(u.ID, id, true)
	if err != nil {
		t.Fatalf("RecordFeedback: %v", err)
	}
	if prev != nil {
		t.Errorf("first vote should have no prior, got %v", *prev)
	}

	a, _ := db.GetArticle(id)
	if a.LikeCount != 1 || a.DislikeCount != 0 {
		t.Errorf("counts = %d/%d, want 1/0", a.LikeCount, a.DislikeCount)
	}

	// same vote again is a no-op
	prev, err = db.RecordFeedback(u.ID, id, true)
	if err != nil {
		t.Fatalf("RecordFeedback repeat: %v", err)
	}
	if prev == nil || *prev != true {
		t.Errorf("repeat vote prior = %v, want true", prev)
	}
	a, _ = db.GetArticle(id)
	if a.LikeCount != 1 || a.DislikeCount != 0 {
		t.Errorf("counts after repeat = %d/%d, want 1/0", a.LikeCount, a.DislikeCount)
	}

	// flipping retracts the like and adds a dislike
	prev, err = db.RecordFeedback(u.ID, id, false)
	if err != nil {
		t.Fatalf("RecordFeedback flip: %v", err)
	}
	if prev == nil || *prev != true {
		t.Errorf("flip prior = %v, want true", prev)
	}
	a, _ = db.GetArticle(id)
	if a.LikeCount != 0 || a.DislikeCount != 1 {
		t.Errorf("counts after flip = %d/%d, want 0/1", a.LikeCount, a.DislikeCount)
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	srcID, _ := db.RegisterSource("A", "https://a.example/rss", "", "")
	db.InsertArticle(testArticle(srcID, "https://a.example/story"))
	db.CreateUser("reader@example.com")

	s, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if s.Sources != 1 || s.Articles != 1 || s.Users != 1 || s.Feedback != 0 {
		t.Errorf("stats = %+v", s)
	}
}
