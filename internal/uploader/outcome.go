package uploader

import "fmt"

// Status classifies what happened to a single record.
type Status string

const (
	StatusInserted Status = "inserted"
	StatusSkipped  Status = "skipped-duplicate"
	StatusFailed   Status = "failed"
)

// Cause explains a StatusFailed outcome.
type Cause string

const (
	CauseNone          Cause = ""
	CauseCheckError    Cause = "check-error"
	CauseInsertError   Cause = "insert-error"
	CauseInvalidRecord Cause = "invalid-record"
)

// Outcome is the per-record result of an upload. Index is the position of
// the record in the input.
type Outcome struct {
	Index  int
	URL    string
	Title  string
	Status Status
	Cause  Cause
	Err    error
}

func (o Outcome) String() string {
	if o.Status == StatusFailed {
		return fmt.Sprintf("%s(%s)", o.Status, o.Cause)
	}
	return string(o.Status)
}

// Summary aggregates a run's outcomes.
type Summary struct {
	Total    int `json:"total"`
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case StatusInserted:
			s.Inserted++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}
