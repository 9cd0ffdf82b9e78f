package models

// Label values for output records. A record carries exactly one of them.
const (
	LabelCase    = "case"
	LabelControl = "control"
)

// PostText is one post's text inside an output record.
type PostText struct {
	Text string `json:"text"`
}

// OutputRecord is one line of the emitted newline-delimited dataset.
type OutputRecord struct {
	ID    string     `json:"id"`
	Label []string   `json:"label"`
	Posts []PostText `json:"posts"`
}
