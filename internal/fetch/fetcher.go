// Package fetch retrieves candidate user timelines from a paginated HTTP API,
// with rate limiting, bounded retry, and a local cache.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cohortlab/tssd/internal/config"
	"github.com/cohortlab/tssd/internal/models"
	"github.com/cohortlab/tssd/internal/storage"
)

const initialBackoff = 500 * time.Millisecond

// apiPost is one post as returned by the timeline endpoint.
type apiPost struct {
	ID        int64    `json:"id"`
	Text      string   `json:"text"`
	CreatedAt int64    `json:"created_at"`
	Hashtags  []string `json:"hashtags"`
}

// Fetcher pulls full user timelines page by page, newest first.
type Fetcher struct {
	baseURL    string
	token      string
	pageSize   int
	maxRetries int
	client     *http.Client
	limiter    *rate.Limiter
	cache      *storage.TimelineCache
	logger     *zap.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets a logger for per-user progress and retry diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithHTTPClient overrides the HTTP client (used by tests).
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// New creates a fetcher. cache may be nil to disable caching.
func New(cfg config.FetchConfig, cache *storage.TimelineCache, opts ...Option) *Fetcher {
	f := &Fetcher{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.BearerToken,
		pageSize:   cfg.PageSize,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1)),
		cache:      cache,
		logger:     zap.NewNop(),
	}
	if f.pageSize <= 0 {
		f.pageSize = 200
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAll fetches the timeline of every user, skipping users already in the
// cache. A user whose fetch fails is logged and skipped; the rest proceed.
func (f *Fetcher) FetchAll(ctx context.Context, userIDs []string) (map[string]*models.UserHistory, error) {
	users := make(map[string]*models.UserHistory, len(userIDs))
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return users, err
		}
		if f.cache != nil {
			cached, err := f.cache.Get(ctx, userID)
			if err != nil {
				return users, fmt.Errorf("cache lookup for %s: %w", userID, err)
			}
			if cached != nil {
				users[userID] = cached
				f.logger.Debug("cache hit", zap.String("user_id", userID))
				continue
			}
		}
		hist, err := f.FetchUser(ctx, userID)
		if err != nil {
			if ctx.Err() != nil {
				return users, err
			}
			f.logger.Warn("failed to fetch user timeline, skipping",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			continue
		}
		users[userID] = hist
		if f.cache != nil {
			if err := f.cache.Put(ctx, userID, hist); err != nil {
				return users, fmt.Errorf("cache store for %s: %w", userID, err)
			}
		}
		f.logger.Info("finished with user",
			zap.String("user_id", userID),
			zap.Int("posts", len(hist.Posts)),
		)
	}
	return users, nil
}

// FetchUser pulls one user's entire timeline in pages of up to pageSize,
// from most recent to oldest, using the max_id cursor to avoid duplicates.
func (f *Fetcher) FetchUser(ctx context.Context, userID string) (*models.UserHistory, error) {
	var all []apiPost
	var maxID int64 = -1
	for {
		page, err := f.getPage(ctx, userID, maxID)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		maxID = page[len(page)-1].ID - 1
	}

	hist := &models.UserHistory{}
	for _, p := range all {
		hist.Posts = append(hist.Posts, models.Post{
			Timestamp: p.CreatedAt,
			Text:      strings.ToLower(p.Text),
		})
		hist.Hashtags = append(hist.Hashtags, p.Hashtags...)
	}
	return hist, nil
}

// getPage requests one timeline page with bounded exponential-backoff retry.
func (f *Fetcher) getPage(ctx context.Context, userID string, maxID int64) ([]apiPost, error) {
	backoff := initialBackoff
	for attempt := 0; ; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, retryable, err := f.doPage(ctx, userID, maxID)
		if err == nil {
			return page, nil
		}
		if !retryable || attempt >= f.maxRetries {
			return nil, err
		}
		f.logger.Debug("retrying timeline page",
			zap.String("user_id", userID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (f *Fetcher) doPage(ctx context.Context, userID string, maxID int64) ([]apiPost, bool, error) {
	params := url.Values{}
	params.Set("user_id", userID)
	params.Set("count", strconv.Itoa(f.pageSize))
	if maxID >= 0 {
		params.Set("max_id", strconv.FormatInt(maxID, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/timeline?"+params.Encode(), nil)
	if err != nil {
		return nil, false, err
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// Transport errors are worth retrying.
		return nil, true, fmt.Errorf("timeline request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var page []apiPost
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			return nil, false, fmt.Errorf("failed to decode timeline page: %w", err)
		}
		return page, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("timeline request: status %d", resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("timeline request: status %d", resp.StatusCode)
	}
}

// SaveHistory writes users to path in the history-file format consumed by the
// match pipeline.
func SaveHistory(path string, users map[string]*models.UserHistory) error {
	data, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	return nil
}

// LoadUserIDs reads a candidates file (user id -> history object) and returns
// its user ids sorted for a stable fetch order.
func LoadUserIDs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidates file: %w", err)
	}
	var users map[string]json.RawMessage
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("failed to parse candidates file: %w", err)
	}
	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
