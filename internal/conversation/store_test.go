package conversation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/aspforge/aspforge/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func turn(role types.Role, content string) types.Turn {
	return types.Turn{Role: role, Content: content}
}

func TestAppendPreservesOrder(t *testing.T) {
	s := NewStore()
	for i := 0; i < 5; i++ {
		s.Append(turn(types.RoleUser, fmt.Sprintf("turn %d", i)))
	}

	turns := s.Turns()
	require.Len(t, turns, 5)
	for i, tn := range turns {
		assert.Equal(t, fmt.Sprintf("turn %d", i), tn.Content)
	}
}

func TestTurnsReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Append(turn(types.RoleUser, "original"))

	turns := s.Turns()
	turns[0].Content = "mutated"

	assert.Equal(t, "original", s.Turns()[0].Content)
}

func TestCompactRetainsSuffixAndSeedsState(t *testing.T) {
	s := NewStore()
	for i := 0; i < 10; i++ {
		s.Append(turn(types.RoleUser, fmt.Sprintf("old %d", i)))
	}
	s.Append(turn(types.RoleAssistant, "recent a"))
	s.Append(turn(types.RoleUser, "recent b"))

	seed := Seed{
		EncodingText:  "% group: assign\n1 { assign(E,S) : shift(S) } 1 :- employee(E).",
		InstanceFacts: "employee(e1). shift(day).",
		OpenConstraints: []types.Constraint{
			{ID: "c-1", Statement: "every employee has exactly one shift", Status: types.ConstraintFailed},
		},
	}

	removed := s.Compact(seed, 2)
	assert.Equal(t, 9, removed, "10 old turns collapsed into 1 summary")

	turns := s.Turns()
	require.Len(t, turns, 3)
	assert.True(t, turns[0].Summary)
	assert.Equal(t, types.RoleSystem, turns[0].Role)
	assert.Equal(t, "recent a", turns[1].Content)
	assert.Equal(t, "recent b", turns[2].Content)

	// The summary reconstructs the load-bearing state.
	assert.Contains(t, turns[0].Content, "assign(E,S)")
	assert.Contains(t, turns[0].Content, "employee(e1)")
	assert.Contains(t, turns[0].Content, "every employee has exactly one shift")
	assert.Contains(t, turns[0].Content, string(types.ConstraintFailed))
}

func TestCompactListsEveryOpenConstraint(t *testing.T) {
	s := NewStore()
	for i := 0; i < 8; i++ {
		s.Append(turn(types.RoleUser, "x"))
	}

	open := []types.Constraint{
		{ID: "c-1", Statement: "alpha", Status: types.ConstraintUntested},
		{ID: "c-2", Statement: "beta", Status: types.ConstraintCheckErrored},
		{ID: "c-3", Statement: "gamma", Status: types.ConstraintFailed},
	}
	s.Compact(Seed{OpenConstraints: open}, 2)

	summary := s.Turns()[0].Content
	for _, c := range open {
		assert.Contains(t, summary, c.Statement)
	}
}

func TestCompactIdempotentOnOpenObligations(t *testing.T) {
	s := NewStore()
	for i := 0; i < 20; i++ {
		s.Append(turn(types.RoleUser, fmt.Sprintf("filler %d", i)))
	}

	seed := Seed{
		EncodingText: "a.",
		OpenConstraints: []types.Constraint{
			{ID: "c-1", Statement: "alpha", Status: types.ConstraintUntested},
			{ID: "c-2", Statement: "beta", Status: types.ConstraintFailed},
		},
	}

	s.Compact(seed, 3)
	first := s.Turns()[0].Content

	// Compacting again with no new unresolved constraints keeps the same
	// open-obligation set in the summary.
	s.Compact(seed, 3)
	second := s.Turns()[0].Content

	extractObligations := func(text string) []string {
		var lines []string
		inSection := false
		for _, line := range strings.Split(text, "\n") {
			if strings.HasPrefix(line, "Outstanding constraints:") {
				inSection = true
				continue
			}
			if inSection {
				if !strings.HasPrefix(line, "- ") {
					break
				}
				lines = append(lines, line)
			}
		}
		return lines
	}

	assert.Equal(t, extractObligations(first), extractObligations(second))
}

func TestCompactNoopOnShortHistory(t *testing.T) {
	s := NewStore()
	s.Append(turn(types.RoleUser, "a"))
	s.Append(turn(types.RoleAssistant, "b"))

	removed := s.Compact(Seed{}, 5)
	assert.Equal(t, 0, removed)
	assert.Equal(t, 2, s.Len())
}

func TestPolicyShouldCompact(t *testing.T) {
	s := NewStore()
	p := Policy{MaxTokens: 100, MaxTurns: 5, RetainTurns: 2}

	assert.False(t, p.ShouldCompact(s))

	// Token trigger via reported usage.
	s.RecordUsage(101)
	assert.True(t, p.ShouldCompact(s))

	// Turn-count trigger with no usage information.
	s2 := NewStore()
	for i := 0; i < 6; i++ {
		s2.Append(turn(types.RoleUser, "x"))
	}
	assert.True(t, p.ShouldCompact(s2))
}

func TestEstimatedTokensFallsBackToHeuristic(t *testing.T) {
	s := NewStore()
	s.Append(turn(types.RoleUser, strings.Repeat("a", 400)))
	assert.Equal(t, int64(100), s.EstimatedTokens())

	s.RecordUsage(5000)
	assert.Equal(t, int64(5000), s.EstimatedTokens())
}
