// Package conversation owns the ordered message history exchanged with the
// language model, including the compaction that keeps long sessions usable.
//
// The store is explicit process-scoped state: created at session start,
// passed to every component that reads or writes it, discarded at session
// end. Nothing in this package reaches for globals.
package conversation

import (
	"fmt"
	"strings"

	"github.com/aspforge/aspforge/internal/types"
)

// Store holds the ordered conversation turns. Ordering is significant and
// preserved except during compaction, which replaces a prefix wholesale.
type Store struct {
	turns []types.Turn

	// lastUsage is the token total reported by the most recent model call.
	// Zero until the first response arrives; the estimator falls back to a
	// character heuristic in that case.
	lastUsage int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Append adds a turn at the end of the history.
func (s *Store) Append(turn types.Turn) {
	s.turns = append(s.turns, turn)
}

// Turns returns a copy of the history in order.
func (s *Store) Turns() []types.Turn {
	out := make([]types.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns.
func (s *Store) Len() int {
	return len(s.turns)
}

// RecordUsage notes the prompt-side token total reported by the model for
// the latest call. Actual usage beats any local estimate, so the compaction
// policy prefers it.
func (s *Store) RecordUsage(totalTokens int64) {
	s.lastUsage = totalTokens
}

// EstimatedTokens returns the best available size signal for the history:
// reported usage when present, otherwise a chars/4 heuristic.
func (s *Store) EstimatedTokens() int64 {
	if s.lastUsage > 0 {
		return s.lastUsage
	}
	var chars int
	for _, t := range s.turns {
		chars += len(t.Content)
	}
	return int64(chars / 4)
}

// Seed carries the load-bearing state a compaction summary must preserve:
// the current encoding, the current instance, and every constraint that is
// not yet passed.
type Seed struct {
	EncodingText    string
	InstanceFacts   string
	OpenConstraints []types.Constraint

	// Digest is an optional terse model-written digest of the key decisions
	// in the turns being discarded. Compaction works without it; open
	// obligations never depend on it.
	Digest string
}

// Compact replaces all but the last retain turns with one synthesized
// summary turn built from the seed. It returns the number of turns removed.
//
// Compaction is lossy by design for resolved history, and lossless for open
// obligations: every constraint in the seed is re-listed verbatim in the
// summary. Compacting again with the same open set yields a summary with the
// same open set, so repeated compaction cannot drop an obligation.
func (s *Store) Compact(seed Seed, retain int) int {
	if retain < 0 {
		retain = 0
	}
	if len(s.turns) <= retain+1 {
		// Nothing worth replacing: the prefix would be empty or a single
		// turn, and the summary itself costs a turn.
		return 0
	}

	suffix := make([]types.Turn, retain)
	copy(suffix, s.turns[len(s.turns)-retain:])

	removed := len(s.turns) - retain

	summary := types.Turn{
		Role:    types.RoleSystem,
		Content: renderSummary(seed),
		Summary: true,
	}

	s.turns = append([]types.Turn{summary}, suffix...)

	// The last reported usage described the pre-compaction prompt; fall
	// back to the character heuristic until the next model call reports.
	s.lastUsage = 0

	return removed - 1
}

func renderSummary(seed Seed) string {
	var sb strings.Builder
	sb.WriteString("Conversation summary (earlier turns compacted).\n\n")

	sb.WriteString("Current encoding:\n")
	if strings.TrimSpace(seed.EncodingText) == "" {
		sb.WriteString("(empty)\n")
	} else {
		sb.WriteString(strings.TrimRight(seed.EncodingText, "\n"))
		sb.WriteString("\n")
	}

	sb.WriteString("\nCurrent instance:\n")
	if strings.TrimSpace(seed.InstanceFacts) == "" {
		sb.WriteString("(none)\n")
	} else {
		sb.WriteString(strings.TrimRight(seed.InstanceFacts, "\n"))
		sb.WriteString("\n")
	}

	sb.WriteString("\nOutstanding constraints:\n")
	if len(seed.OpenConstraints) == 0 {
		sb.WriteString("(none)\n")
	} else {
		for _, c := range seed.OpenConstraints {
			fmt.Fprintf(&sb, "- [%s] %s: %s\n", c.Status, c.ID, c.Statement)
		}
	}

	if seed.Digest != "" {
		sb.WriteString("\nKey decisions so far:\n")
		sb.WriteString(strings.TrimRight(seed.Digest, "\n"))
		sb.WriteString("\n")
	}

	return sb.String()
}
