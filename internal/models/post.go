// Package models defines core data structures for posts, user histories, and output records.
package models

import (
	"encoding/json"
	"fmt"
)

// Post is a single social-media post: a unix timestamp and its text.
// The wire format inside history files is a two-element array [timestamp, text].
type Post struct {
	Timestamp int64
	Text      string
}

// UnmarshalJSON decodes a [timestamp, text] pair. Decoding is best-effort:
// a malformed element leaves the corresponding field zero rather than failing,
// so one bad post never drops its enclosing user.
func (p *Post) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		// Not an array at all; treat as an empty post.
		*p = Post{}
		return nil
	}
	if len(pair) > 0 {
		var ts float64
		if err := json.Unmarshal(pair[0], &ts); err == nil {
			p.Timestamp = int64(ts)
		}
	}
	if len(pair) > 1 {
		var text string
		if err := json.Unmarshal(pair[1], &text); err == nil {
			p.Text = text
		}
	}
	return nil
}

// MarshalJSON encodes the post back to its [timestamp, text] wire form.
func (p Post) MarshalJSON() ([]byte, error) {
	pair := [2]any{p.Timestamp, p.Text}
	data, err := json.Marshal(pair)
	if err != nil {
		return nil, fmt.Errorf("failed to encode post: %w", err)
	}
	return data, nil
}

// UserHistory is one user's fetched timeline as stored in a history file.
type UserHistory struct {
	Posts    []Post   `json:"posts"`
	Hashtags []string `json:"hashtags"`
}
