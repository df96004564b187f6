package models

import (
	"encoding/json"
	"time"
)

// Journal represents one journal's submission requirements as stored in the
// journals table. Optional numeric fields are pointers so an absent value is
// persisted as NULL rather than zero. The update_history and comments columns
// hold JSON-encoded append-only sequences.
type Journal struct {
	ID                     string    `db:"id" json:"id"`
	JournalName            string    `db:"journal_name" json:"journal_name"`
	ISSN                   *string   `db:"issn" json:"issn,omitempty"`
	Publisher              *string   `db:"publisher" json:"publisher,omitempty"`
	ImpactFactor           *float64  `db:"impact_factor" json:"impact_factor,omitempty"`
	FormattingRequirements *string   `db:"formatting_requirements" json:"formatting_requirements,omitempty"`
	FontSpecifications     *string   `db:"font_specifications" json:"font_specifications,omitempty"`
	WordCountLimit         *int      `db:"word_count_limit" json:"word_count_limit,omitempty"`
	ReferenceStyle         *string   `db:"reference_style" json:"reference_style,omitempty"`
	ReferenceCountLimit    *int      `db:"reference_count_limit" json:"reference_count_limit,omitempty"`
	SubmissionURL          *string   `db:"submission_url" json:"submission_url,omitempty"`
	OfficialGuidelinesURL  string    `db:"official_guidelines_url" json:"official_guidelines_url"`
	Notes                  *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt              time.Time `db:"created_at" json:"created_at"`
	LastUpdated            time.Time `db:"last_updated" json:"last_updated"`
	FlagsCount             int       `db:"flags_count" json:"flags_count"`
	UpdateHistory          string    `db:"update_history" json:"-"`
	EncodedComments        string    `db:"comments" json:"-"`
}

// HistoryEntry is one audit line in a journal's update history.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Author    string    `json:"author"`
	Changes   string    `json:"changes"`
}

// Comment is a user-authored annotation attached to a journal.
type Comment struct {
	Timestamp time.Time `json:"timestamp"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
}

// JournalDetail is the full projection with decoded history and comments.
type JournalDetail struct {
	Journal
	History  []HistoryEntry `json:"history"`
	Comments []Comment      `json:"comments"`
}

// JournalSummary is the listing projection. Large text fields are omitted.
type JournalSummary struct {
	ID             string    `db:"id" json:"id"`
	JournalName    string    `db:"journal_name" json:"journal_name"`
	ISSN           *string   `db:"issn" json:"issn,omitempty"`
	Publisher      *string   `db:"publisher" json:"publisher,omitempty"`
	ImpactFactor   *float64  `db:"impact_factor" json:"impact_factor,omitempty"`
	ReferenceStyle *string   `db:"reference_style" json:"reference_style,omitempty"`
	FlagsCount     int       `db:"flags_count" json:"flags_count"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	LastUpdated    time.Time `db:"last_updated" json:"last_updated"`
}

// JournalFilter captures the combinable search criteria. A nil
// MinImpactFactor means the filter is not applied.
type JournalFilter struct {
	Name            string
	MinImpactFactor *float64
}

// DecodeHistory parses a JSON-encoded history column. An empty column decodes
// to an empty sequence.
func DecodeHistory(raw string) ([]HistoryEntry, error) {
	if raw == "" {
		return []HistoryEntry{}, nil
	}
	var entries []HistoryEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// EncodeHistory serialises history entries preserving order.
func EncodeHistory(entries []HistoryEntry) (string, error) {
	if entries == nil {
		entries = []HistoryEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeComments parses a JSON-encoded comments column.
func DecodeComments(raw string) ([]Comment, error) {
	if raw == "" {
		return []Comment{}, nil
	}
	var comments []Comment
	if err := json.Unmarshal([]byte(raw), &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// EncodeComments serialises comments preserving order.
func EncodeComments(comments []Comment) (string, error) {
	if comments == nil {
		comments = []Comment{}
	}
	raw, err := json.Marshal(comments)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
