package ir

import "time"

// Outcome classifies the result of one attempted mutation.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
	OutcomeSimulated Outcome = "simulated"
)

// Skip and failure reasons recorded in the audit log message field.
const (
	ReasonPolicy          = "policy"
	ReasonNotApplicable   = "not-applicable"
	ReasonNotDeterminable = "not-determinable"
	ReasonUnreadable      = "cannot-read-original"
	ReasonWriteRejected   = "write-rejected"
)

// ActionRecord is one immutable entry of the audit trail, appended in
// the order mutations were attempted.
type ActionRecord struct {
	Key       Key
	Requested Value
	Outcome   Outcome
	Message   string
	At        time.Time
}

// Summary holds per-outcome counts for end-of-run reporting.
type Summary struct {
	Applied   int
	Skipped   int
	Failed    int
	Simulated int
}

func (s *Summary) Count(o Outcome) {
	switch o {
	case OutcomeApplied:
		s.Applied++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	case OutcomeSimulated:
		s.Simulated++
	}
}

func (s Summary) Total() int {
	return s.Applied + s.Skipped + s.Failed + s.Simulated
}

// OK reports whether the run should exit zero. With bestEffort set,
// partial failures still count as success; this is an explicit caller
// choice, never implicit.
func (s Summary) OK(bestEffort bool) bool {
	return s.Failed == 0 || bestEffort
}
