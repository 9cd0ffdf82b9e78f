package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/cohortlab/tssd/internal/config"
	"github.com/cohortlab/tssd/internal/models"
	"github.com/cohortlab/tssd/internal/storage"
)

func testConfig(baseURL string) config.FetchConfig {
	return config.FetchConfig{
		BaseURL:           baseURL,
		PageSize:          2,
		RequestsPerSecond: 1000,
		Burst:             1000,
		MaxRetries:        2,
	}
}

// timelineServer serves pages of posts with ids descending from total..1.
func timelineServer(t *testing.T, total int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count, _ := strconv.Atoi(r.URL.Query().Get("count"))
		maxID := int64(total)
		if v := r.URL.Query().Get("max_id"); v != "" {
			maxID, _ = strconv.ParseInt(v, 10, 64)
		}
		var page []map[string]any
		for id := maxID; id >= 1 && len(page) < count; id-- {
			page = append(page, map[string]any{
				"id":         id,
				"text":       fmt.Sprintf("Post %d", id),
				"created_at": id * 10,
				"hashtags":   []string{"tag"},
			})
		}
		_ = json.NewEncoder(w).Encode(page)
	}))
}

func TestFetchUser_paginates(t *testing.T) {
	srv := timelineServer(t, 5)
	defer srv.Close()

	f := New(testConfig(srv.URL), nil)
	hist, err := f.FetchUser(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(hist.Posts) != 5 {
		t.Fatalf("got %d posts, want 5", len(hist.Posts))
	}
	// Newest first, text lowercased at fetch time.
	if hist.Posts[0].Text != "post 5" || hist.Posts[4].Text != "post 1" {
		t.Errorf("unexpected post order/text: %+v", hist.Posts)
	}
	if hist.Posts[0].Timestamp != 50 {
		t.Errorf("timestamp = %d, want 50", hist.Posts[0].Timestamp)
	}
	if len(hist.Hashtags) != 5 {
		t.Errorf("got %d hashtags, want 5", len(hist.Hashtags))
	}
}

func TestFetchAll_usesCache(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode([]map[string]any{})
	}))
	defer srv.Close()

	cache, err := storage.NewTimelineCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	ctx := context.Background()
	cached := &models.UserHistory{Posts: []models.Post{{Timestamp: 1, Text: "from cache"}}}
	if err := cache.Put(ctx, "u1", cached); err != nil {
		t.Fatal(err)
	}

	f := New(testConfig(srv.URL), cache)
	users, err := f.FetchAll(ctx, []string{"u1"})
	if err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 0 {
		t.Errorf("cached user still hit the API %d times", hits.Load())
	}
	if users["u1"] == nil || users["u1"].Posts[0].Text != "from cache" {
		t.Errorf("cache content not used: %+v", users["u1"])
	}
}

func TestFetchAll_storesFetchedUsers(t *testing.T) {
	srv := timelineServer(t, 1)
	defer srv.Close()

	cache, err := storage.NewTimelineCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	f := New(testConfig(srv.URL), cache)
	ctx := context.Background()
	if _, err := f.FetchAll(ctx, []string{"u9"}); err != nil {
		t.Fatal(err)
	}
	got, err := cache.Get(ctx, "u9")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got.Posts) != 1 {
		t.Errorf("fetched user not cached: %+v", got)
	}
}

func TestGetPage_retriesTransientErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{})
	}))
	defer srv.Close()

	f := New(testConfig(srv.URL), nil)
	hist, err := f.FetchUser(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 3 {
		t.Errorf("got %d calls, want 3 (two failures then success)", calls.Load())
	}
	if len(hist.Posts) != 0 {
		t.Errorf("expected empty timeline, got %+v", hist.Posts)
	}
}

func TestGetPage_permanentErrorNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(testConfig(srv.URL), nil)
	if _, err := f.FetchUser(context.Background(), "u1"); err == nil {
		t.Fatal("expected error for 404")
	}
	if calls.Load() != 1 {
		t.Errorf("got %d calls, want 1 (no retry on 404)", calls.Load())
	}
}

func TestFetchAll_skipsFailingUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("user_id") == "bad" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{})
	}))
	defer srv.Close()

	f := New(testConfig(srv.URL), nil)
	users, err := f.FetchAll(context.Background(), []string{"bad", "good"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := users["bad"]; ok {
		t.Error("failing user should be skipped")
	}
	if _, ok := users["good"]; !ok {
		t.Error("healthy user should be fetched")
	}
}
