// Package storage provides the SQLite-backed cache of fetched user timelines.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cohortlab/tssd/internal/models"
)

// TimelineCache stores fetched user histories so repeated runs skip the API.
type TimelineCache struct {
	db *sql.DB
}

// NewTimelineCache opens or creates a SQLite database at dbPath and
// initializes the schema. Parent directories are created if they do not exist.
func NewTimelineCache(dbPath string) (*TimelineCache, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &TimelineCache{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS user_timelines (
		user_id TEXT PRIMARY KEY,
		posts TEXT NOT NULL,
		hashtags TEXT NOT NULL,
		fetched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_timelines_fetched_at ON user_timelines(fetched_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Put stores or replaces a user's timeline.
func (c *TimelineCache) Put(ctx context.Context, userID string, hist *models.UserHistory) error {
	postsJSON, err := json.Marshal(hist.Posts)
	if err != nil {
		return fmt.Errorf("failed to marshal posts: %w", err)
	}
	hashtagsJSON, err := json.Marshal(hist.Hashtags)
	if err != nil {
		return fmt.Errorf("failed to marshal hashtags: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO user_timelines (user_id, posts, hashtags, fetched_at)
		 VALUES (?, ?, ?, ?)`,
		userID, string(postsJSON), string(hashtagsJSON), time.Now(),
	)
	return err
}

// Get returns a cached timeline, or nil when the user is not cached.
func (c *TimelineCache) Get(ctx context.Context, userID string) (*models.UserHistory, error) {
	var postsJSON, hashtagsJSON string
	err := c.db.QueryRowContext(ctx,
		`SELECT posts, hashtags FROM user_timelines WHERE user_id = ?`, userID,
	).Scan(&postsJSON, &hashtagsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline for %s: %w", userID, err)
	}

	var hist models.UserHistory
	if err := json.Unmarshal([]byte(postsJSON), &hist.Posts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal posts for %s: %w", userID, err)
	}
	if err := json.Unmarshal([]byte(hashtagsJSON), &hist.Hashtags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal hashtags for %s: %w", userID, err)
	}
	return &hist, nil
}

// Has reports whether a user's timeline is cached.
func (c *TimelineCache) Has(ctx context.Context, userID string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx,
		`SELECT 1 FROM user_timelines WHERE user_id = ?`, userID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// All returns every cached timeline keyed by user id.
func (c *TimelineCache) All(ctx context.Context) (map[string]*models.UserHistory, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT user_id FROM user_timelines ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list timelines: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	users := make(map[string]*models.UserHistory, len(ids))
	for _, id := range ids {
		hist, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		users[id] = hist
	}
	return users, nil
}

// Count returns the number of cached users.
func (c *TimelineCache) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_timelines`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the underlying database.
func (c *TimelineCache) Close() error {
	return c.db.Close()
}
