// Package dataset assembles labeled output records and serializes them as
// newline-delimited JSON.
package dataset

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cohortlab/tssd/internal/models"
)

// Assemble walks the cases in slot order, emitting each not-yet-seen case
// followed by its matched controls in the matcher's ranked order. The shared
// seen-set is the only deduplication mechanism in the pipeline: a user id is
// emitted at most once, and on a cross-group collision the first write wins
// silently.
func Assemble(cases models.GroupIndex, matches map[int][]int, controls models.GroupIndex) []models.OutputRecord {
	seen := make(map[string]struct{}, len(cases))
	records := make([]models.OutputRecord, 0, len(cases))
	for slot, caseUser := range cases {
		records = emit(records, seen, caseUser, models.LabelCase)
		for _, controlSlot := range matches[slot] {
			records = emit(records, seen, controls[controlSlot], models.LabelControl)
		}
	}
	return records
}

func emit(records []models.OutputRecord, seen map[string]struct{}, user models.UserPosts, label string) []models.OutputRecord {
	if _, ok := seen[user.UserID]; ok {
		return records
	}
	seen[user.UserID] = struct{}{}
	posts := make([]models.PostText, len(user.Posts))
	for i, p := range user.Posts {
		posts[i] = models.PostText{Text: p}
	}
	return append(records, models.OutputRecord{
		ID:    user.UserID,
		Label: []string{label},
		Posts: posts,
	})
}

// WriteNDJSON writes one compact JSON object per line: no wrapper array, no
// trailing metadata.
func WriteNDJSON(w io.Writer, records []models.OutputRecord) error {
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
		}
	}
	return nil
}
