package reddit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"ai-shorts-factory/internal/config"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func post(id, title string, score, comments int, age time.Duration, extra string) string {
	return fmt.Sprintf(`{"kind":"t3","data":{"id":%q,"name":"t3_%s","title":%q,"selftext":"","permalink":"/r/x/comments/%s/","url":"https://reddit.com/%s","score":%d,"num_comments":%d,"created_utc":%d%s}}`,
		id, id, title, id, id, score, comments, now.Add(-age).Unix(), extra)
}

func listing(posts ...string) string {
	return `{"kind":"Listing","data":{"after":"","before":"","children":[` + strings.Join(posts, ",") + `]}}`
}

func newTestSource(t *testing.T, cfg config.ResearchConfig, h http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	s, err := New(cfg, zaptest.NewLogger(t), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return now }
	return s
}

func TestFetch_Filters(t *testing.T) {
	cfg := config.Default().Research
	cfg.Subreddits = []string{"todayilearned"}
	cfg.MinScore, cfg.MinComments, cfg.LookbackDays = 100, 10, 2

	s := newTestSource(t, cfg, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/r/todayilearned/hot") {
			t.Errorf("path=%s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, listing(
			post("a1", "TIL the secret history of maps", 900, 40, time.Hour, ""),
			post("a2", "low score", 50, 40, time.Hour, ""),
			post("a3", "few comments", 900, 2, time.Hour, ""),
			post("a4", "too old", 900, 40, 96*time.Hour, ""),
			post("a5", "pinned", 900, 40, time.Hour, `,"stickied":true`),
			post("a6", "nsfw", 900, 40, time.Hour, `,"over_18":true`),
		))
	})

	topics, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(topics) != 1 {
		t.Fatalf("topics=%+v", topics)
	}
	got := topics[0]
	if got.ID != "reddit_a1" || got.Source != "r/todayilearned" || got.Score != 900 || got.Comments != 40 {
		t.Fatalf("topic=%+v", got)
	}
	if len(got.Keywords) != 1 || got.Keywords[0] != "secret" {
		t.Fatalf("keywords=%v", got.Keywords)
	}
}

func TestFetch_AllSubredditsFail(t *testing.T) {
	cfg := config.Default().Research
	cfg.Subreddits = []string{"a", "b"}
	s := newTestSource(t, cfg, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})
	if _, err := s.Fetch(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestFetch_OneSubredditFails(t *testing.T) {
	cfg := config.Default().Research
	cfg.Subreddits = []string{"broken", "ok"}
	cfg.MinScore, cfg.MinComments, cfg.LookbackDays = 0, 0, 0
	s := newTestSource(t, cfg, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "broken") {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, listing(post("b1", "hello", 1, 1, time.Hour, "")))
	})
	topics, err := s.Fetch(context.Background())
	if err != nil || len(topics) != 1 {
		t.Fatalf("topics=%v err=%v", topics, err)
	}
}

func TestMatchKeywords(t *testing.T) {
	got := MatchKeywords("The HIDDEN record nobody knew", []string{"hidden", "record", "mystery"})
	if len(got) != 2 || got[0] != "hidden" || got[1] != "record" {
		t.Fatalf("got %v", got)
	}
}
