// Package history reads per-group history files into slot-indexed, filtered,
// normalized post collections ready for vectorization.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cohortlab/tssd/internal/models"
	"github.com/cohortlab/tssd/internal/normalize"
	"github.com/cohortlab/tssd/internal/sentiment"
)

const (
	defaultWorkers  = 6
	defaultMaxPosts = 100
)

// diagnosisSynonyms is the closed list of diagnosis-label spellings (and
// common misspellings) scrubbed from the matching corpus by exact match.
var diagnosisSynonyms = map[string]struct{}{
	"schizophrenia":  {},
	"schizophrenic":  {},
	"schizo":         {},
	"schizoprenia":   {},
	"schizophernia":  {},
	"scizophrenia":   {},
	"shizophrenia":   {},
	"schitzophrenia": {},
}

// Reader turns group history files into aligned (documents, index) outputs.
// Per-user work runs under a bounded worker pool; results are placed by
// precomputed slot index so completion order never affects output.
type Reader struct {
	filter   *sentiment.TermFilter
	workers  int
	maxPosts int
	logger   *zap.Logger
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithLogger sets a logger for per-user diagnostics.
func WithLogger(l *zap.Logger) ReaderOption {
	return func(r *Reader) { r.logger = l }
}

// WithMaxPosts caps how many leading posts of a user's history are considered.
func WithMaxPosts(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.maxPosts = n
		}
	}
}

// NewReader creates a reader. filter scrubs posts with positive indicator
// terms from the corpus and may be nil to disable scrubbing. workers <= 0
// selects the default pool size.
func NewReader(filter *sentiment.TermFilter, workers int, opts ...ReaderOption) *Reader {
	r := &Reader{
		filter:   filter,
		workers:  workers,
		maxPosts: defaultMaxPosts,
		logger:   zap.NewNop(),
	}
	if r.workers <= 0 {
		r.workers = defaultWorkers
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type userEntry struct {
	id    string
	posts []models.Post
}

// ReadGroup reads the group's history files in argument order and returns the
// joined per-user documents plus the slot-aligned group index. Slot numbering
// continues across files. A file that cannot be parsed fails the whole call.
func (r *Reader) ReadGroup(ctx context.Context, files []string) ([]string, models.GroupIndex, error) {
	var users []userEntry
	for _, path := range files {
		entries, err := readHistoryFile(path)
		if err != nil {
			return nil, nil, err
		}
		users = append(users, entries...)
		r.logger.Debug("history file read",
			zap.String("path", path),
			zap.Int("users", len(entries)),
		)
	}

	// Pre-sized outputs written by slot keep the two collections aligned
	// regardless of worker completion order.
	docs := make([]string, len(users))
	index := make(models.GroupIndex, len(users))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for slot, user := range users {
		slot, user := slot, user
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			filtered := r.filterPosts(user.posts)
			index[slot] = models.UserPosts{UserID: user.id, Posts: filtered}
			docs[slot] = joinPosts(filtered)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("group read aborted: %w", err)
	}
	return docs, index, nil
}

// filterPosts normalizes at most the first maxPosts posts and drops any that
// carry a positive indicator term or exactly equal a diagnosis-label synonym.
func (r *Reader) filterPosts(posts []models.Post) []string {
	if len(posts) > r.maxPosts {
		posts = posts[:r.maxPosts]
	}
	filtered := make([]string, 0, len(posts))
	for _, p := range posts {
		norm := normalize.Normalize(p.Text)
		if r.filter != nil && r.filter.ContainsPositive(norm) {
			continue
		}
		if _, ok := diagnosisSynonyms[strings.TrimSpace(norm)]; ok {
			continue
		}
		filtered = append(filtered, norm)
	}
	return filtered
}

// joinPosts builds the user's joined document: each post trimmed, then
// newline-joined. An empty post still contributes its (empty) line.
func joinPosts(posts []string) string {
	trimmed := make([]string, len(posts))
	for i, p := range posts {
		trimmed[i] = strings.TrimSpace(p)
	}
	return strings.Join(trimmed, "\n")
}

// readHistoryFile parses one history file: a JSON object mapping user id to
// {"posts": [[timestamp, text], ...], "hashtags": [...]}. Decoding walks the
// object token by token so slot assignment follows the file's own key order
// (map-based decoding would randomize it).
func readHistoryFile(path string) ([]userEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to parse history file %s: %w", path, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("history file %s: top level must be an object", path)
	}

	var entries []userEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to parse history file %s: %w", path, err)
		}
		userID, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("history file %s: unexpected key token %v", path, keyTok)
		}
		var hist models.UserHistory
		if err := dec.Decode(&hist); err != nil {
			return nil, fmt.Errorf("history file %s: user %s: %w", path, userID, err)
		}
		entries = append(entries, userEntry{id: userID, posts: hist.Posts})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to parse history file %s: %w", path, err)
	}
	return entries, nil
}
