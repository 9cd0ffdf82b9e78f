// Package screen scans raw post streams for users self-reporting a diagnosis,
// producing the candidates file consumed by the timeline fetcher.
package screen

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cohortlab/tssd/internal/models"
	"github.com/cohortlab/tssd/internal/sentiment"
	"github.com/cohortlab/tssd/pkg/utils"
)

// createdAtLayout is the legacy stream timestamp format.
const createdAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

// maxLineBytes bounds a single raw stream line.
const maxLineBytes = 1 << 20

// selfTerms gate the default (non-high-precision) search; a post containing
// every one of them is skipped, mirroring the legacy screening behavior.
var selfTerms = []string{"i ", "i'm", "im", "i've", "ive", "me"}

// rawPost is one line of a raw stream file. Only the consulted fields are
// declared; quoted/retweet markers are kept raw since only presence matters.
type rawPost struct {
	Text          string `json:"text"`
	ExtendedTweet *struct {
		FullText string `json:"full_text"`
	} `json:"extended_tweet"`
	CreatedAt string `json:"created_at"`
	User      *struct {
		ID json.Number `json:"id"`
	} `json:"user"`
	Entities *struct {
		Hashtags []struct {
			Text string `json:"text"`
		} `json:"hashtags"`
	} `json:"entities"`
	QuotedStatus    json.RawMessage `json:"quoted_status"`
	QuotedPermalink json.RawMessage `json:"quoted_status_permalink"`
	RetweetedStatus json.RawMessage `json:"retweeted_status"`
}

// Screener accumulates candidate users from raw stream files.
type Screener struct {
	filter        *sentiment.TermFilter
	highPrecision bool
	logger        *zap.Logger
	users         map[string]*models.UserHistory
	totalMatches  int
}

// Option configures a Screener.
type Option func(*Screener)

// WithLogger sets a logger for per-file match counts and matched text.
func WithLogger(l *zap.Logger) Option {
	return func(s *Screener) { s.logger = l }
}

// New creates a screener. In high-precision mode posts must carry a positive
// indicator term and no negative one; otherwise the default diagnosis-mention
// search is used.
func New(filter *sentiment.TermFilter, highPrecision bool, opts ...Option) *Screener {
	s := &Screener{
		filter:        filter,
		highPrecision: highPrecision,
		logger:        zap.NewNop(),
		users:         make(map[string]*models.UserHistory),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run scans every file in order and logs the aggregate unique-user count.
func (s *Screener) Run(files []string) error {
	for _, path := range files {
		if err := s.ScanFile(path); err != nil {
			return err
		}
	}
	s.logger.Info("screening finished",
		zap.Int("matched_posts", s.totalMatches),
		zap.Int("unique_users", len(s.users)),
	)
	return nil
}

// ScanFile scans one newline-delimited raw stream file. Unparseable lines are
// skipped; an unreadable file is fatal.
func (s *Screener) ScanFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open stream file: %w", err)
	}
	defer f.Close()

	matched := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.Contains(line, "EOFError") {
			continue
		}
		var post rawPost
		if err := json.Unmarshal([]byte(line), &post); err != nil {
			continue
		}
		if s.accept(&post) {
			matched++
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to scan stream file %s: %w", path, err)
	}

	s.totalMatches += matched
	s.logger.Info("stream file screened",
		zap.String("path", path),
		zap.Int("matched_posts", matched),
	)
	return nil
}

// accept applies the screening rules and, on a hit, records the post under
// its user. Returns whether the post matched.
func (s *Screener) accept(post *rawPost) bool {
	if isRepost(post) {
		return false
	}
	text := post.Text
	if post.ExtendedTweet != nil && post.ExtendedTweet.FullText != "" {
		text = post.ExtendedTweet.FullText
	}
	text = strings.ToLower(text)
	if strings.Contains(text, "http") {
		// Link posts are overwhelmingly ads or shares, not self-reports.
		return false
	}

	if s.highPrecision {
		if !s.filter.ContainsPositive(text) {
			return false
		}
		if s.filter.ContainsNegative(text) {
			return false
		}
	} else {
		if containsAllSelfTerms(text) {
			return false
		}
		if !strings.Contains(text, "diagnos") {
			return false
		}
	}

	if post.User == nil {
		return false
	}
	userID := post.User.ID.String()
	if userID == "" {
		return false
	}

	rec := s.users[userID]
	if rec == nil {
		rec = &models.UserHistory{}
		s.users[userID] = rec
	}
	rec.Posts = append(rec.Posts, models.Post{
		Timestamp: parseCreatedAt(post.CreatedAt),
		Text:      text,
	})
	if post.Entities != nil {
		for _, h := range post.Entities.Hashtags {
			rec.Hashtags = append(rec.Hashtags, h.Text)
		}
	}

	s.logger.Debug("candidate post",
		zap.String("user_id", userID),
		zap.String("text", utils.Truncate(text, 140)),
	)
	return true
}

// Users returns the accumulated candidates keyed by user id.
func (s *Screener) Users() map[string]*models.UserHistory {
	return s.users
}

// SaveCandidates writes the accumulated users as one JSON object.
func (s *Screener) SaveCandidates(path string) error {
	data, err := json.Marshal(s.users)
	if err != nil {
		return fmt.Errorf("failed to marshal candidates: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write candidates file: %w", err)
	}
	return nil
}

func isRepost(post *rawPost) bool {
	return len(post.QuotedStatus) > 0 || len(post.QuotedPermalink) > 0 || len(post.RetweetedStatus) > 0
}

func containsAllSelfTerms(text string) bool {
	for _, term := range selfTerms {
		if !strings.Contains(text, term) {
			return false
		}
	}
	return true
}

func parseCreatedAt(raw string) int64 {
	t, err := time.Parse(createdAtLayout, raw)
	if err != nil {
		return 0
	}
	return t.Unix()
}
