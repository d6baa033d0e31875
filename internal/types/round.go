package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// VerdictOutcome is the result of running one checker against solver output.
type VerdictOutcome string

const (
	// VerdictPassed means the checker confirmed the constraint holds.
	VerdictPassed VerdictOutcome = "passed"
	// VerdictFailed means the checker found a concrete violation.
	VerdictFailed VerdictOutcome = "failed"
	// VerdictErrored means the checker itself broke (exception, timeout).
	// Distinct from failed: the right reaction is to regenerate the checker,
	// not the encoding.
	VerdictErrored VerdictOutcome = "errored"
)

// IsValid checks if the outcome value is valid.
func (o VerdictOutcome) IsValid() bool {
	switch o {
	case VerdictPassed, VerdictFailed, VerdictErrored:
		return true
	}
	return false
}

// Status maps a verdict to the constraint status it implies.
func (o VerdictOutcome) Status() ConstraintStatus {
	switch o {
	case VerdictPassed:
		return ConstraintPassed
	case VerdictFailed:
		return ConstraintFailed
	default:
		return ConstraintCheckErrored
	}
}

// Verdict records the outcome of one checker run.
type Verdict struct {
	ConstraintID string         `json:"constraint_id"`
	CheckerID    string         `json:"checker_id"`
	Outcome      VerdictOutcome `json:"outcome"`
	Details      string         `json:"details,omitempty"`
	Duration     time.Duration  `json:"duration"`
}

// RoundSummary aggregates one validation round. It is what gets appended to
// the conversation as feedback for the next increment.
type RoundSummary struct {
	Round       int       `json:"round"`
	SolveStatus string    `json:"solve_status"`
	AnswerSets  int       `json:"answer_sets"`
	Verdicts    []Verdict `json:"verdicts"`
	StartedAt   time.Time `json:"started_at"`
}

// Counts returns (passed, failed, errored) totals.
func (s *RoundSummary) Counts() (passed, failed, errored int) {
	for _, v := range s.Verdicts {
		switch v.Outcome {
		case VerdictPassed:
			passed++
		case VerdictFailed:
			failed++
		case VerdictErrored:
			errored++
		}
	}
	return passed, failed, errored
}

// Render produces the deterministic text form of the summary. Verdicts are
// ordered by constraint ID regardless of checker completion order, so the
// same round always renders identically.
func (s *RoundSummary) Render() string {
	verdicts := make([]Verdict, len(s.Verdicts))
	copy(verdicts, s.Verdicts)
	sort.Slice(verdicts, func(i, j int) bool {
		return verdicts[i].ConstraintID < verdicts[j].ConstraintID
	})

	passed, failed, errored := s.Counts()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Round %d validation: solver=%s answer_sets=%d passed=%d failed=%d errored=%d\n",
		s.Round, s.SolveStatus, s.AnswerSets, passed, failed, errored)
	for _, v := range verdicts {
		fmt.Fprintf(&sb, "- %s: %s", v.ConstraintID, v.Outcome)
		if v.Details != "" {
			fmt.Fprintf(&sb, " (%s)", v.Details)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
