// Package match ranks control users by textual similarity to each case user
// inside one shared term-weighting vector space.
package match

import (
	"sort"

	"go.uber.org/zap"

	"github.com/cohortlab/tssd/internal/vectorize"
)

const (
	defaultControls      = 7
	defaultMinSimilarity = 0.2
	defaultMinAcceptable = 5
)

// Params tune the matcher.
type Params struct {
	// Controls is how many controls to keep per case (top-k by similarity).
	Controls int
	// MinSimilarity is the cosine score a control must exceed to qualify.
	MinSimilarity float64
	// MinAcceptable is the surviving-control count below which a
	// data-quality warning is logged for the case.
	MinAcceptable int
}

// Matcher matches each case to its most similar controls.
type Matcher struct {
	params Params
	logger *zap.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithLogger sets a logger for data-quality diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(m *Matcher) { m.logger = l }
}

// New creates a matcher, filling zero params with defaults.
func New(params Params, opts ...Option) *Matcher {
	if params.Controls <= 0 {
		params.Controls = defaultControls
	}
	if params.MinSimilarity == 0 {
		params.MinSimilarity = defaultMinSimilarity
	}
	if params.MinAcceptable <= 0 {
		params.MinAcceptable = defaultMinAcceptable
	}
	m := &Matcher{params: params, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match fits one TF-IDF model over all control documents followed by all case
// documents (controls occupy the low index range; the boundary drives the
// split back into the two matrices), then for each case ranks every control
// slot by descending cosine similarity and keeps the top Controls slots that
// exceed MinSimilarity. caseIDs is used for diagnostics only and may be nil.
//
// Ties in similarity break toward the lower control slot, so identical input
// always produces identical output.
func (m *Matcher) Match(caseDocs, controlDocs, caseIDs []string) map[int][]int {
	corpus := make([]string, 0, len(controlDocs)+len(caseDocs))
	corpus = append(corpus, controlDocs...)
	corpus = append(corpus, caseDocs...)

	model := vectorize.Fit(corpus)
	controlVecs := model.Vectors[:len(controlDocs)]
	caseVecs := model.Vectors[len(controlDocs):]

	matches := make(map[int][]int, len(caseVecs))
	for caseSlot, caseVec := range caseVecs {
		scores := make([]float64, len(controlVecs))
		order := make([]int, len(controlVecs))
		for j, ctrlVec := range controlVecs {
			scores[j] = vectorize.Cosine(caseVec, ctrlVec)
			order[j] = j
		}
		sort.SliceStable(order, func(a, b int) bool {
			return scores[order[a]] > scores[order[b]]
		})

		top := order
		if len(top) > m.params.Controls {
			top = top[:m.params.Controls]
		}
		selected := make([]int, 0, len(top))
		for _, j := range top {
			if scores[j] > m.params.MinSimilarity {
				selected = append(selected, j)
			}
		}
		if len(selected) < m.params.MinAcceptable {
			userID := ""
			if caseSlot < len(caseIDs) {
				userID = caseIDs[caseSlot]
			}
			m.logger.Warn("case has fewer qualifying controls than the acceptable minimum",
				zap.String("user_id", userID),
				zap.Int("case_slot", caseSlot),
				zap.Int("qualifying_controls", len(selected)),
				zap.Int("min_acceptable", m.params.MinAcceptable),
			)
		}
		matches[caseSlot] = selected
	}
	return matches
}
