package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleGroupValidate(t *testing.T) {
	tests := []struct {
		name    string
		group   RuleGroup
		wantErr string
	}{
		{
			name:  "valid group",
			group: RuleGroup{ID: "assign", Rules: "1 { assign(E,S) : shift(S) } 1 :- employee(E)."},
		},
		{
			name:    "missing id",
			group:   RuleGroup{Rules: "a."},
			wantErr: "id is required",
		},
		{
			name:    "uppercase id rejected",
			group:   RuleGroup{ID: "Assign", Rules: "a."},
			wantErr: "invalid rule group id",
		},
		{
			name:    "empty rules",
			group:   RuleGroup{ID: "assign", Rules: "   \n"},
			wantErr: "has no rules",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.group.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestEncodingText(t *testing.T) {
	e := Encoding{Groups: []RuleGroup{
		{ID: "facts", Rules: "shift(day). shift(night)."},
		{ID: "assign", Rules: "1 { assign(E,S) : shift(S) } 1 :- employee(E).\n"},
	}}

	text := e.Text()

	// Groups appear in sequence order with their banner comments.
	factsIdx := strings.Index(text, "% group: facts")
	assignIdx := strings.Index(text, "% group: assign")
	require.GreaterOrEqual(t, factsIdx, 0)
	require.Greater(t, assignIdx, factsIdx)

	// Trailing newlines inside a group do not double up.
	assert.NotContains(t, text, "\n\n\n")
}

func TestEncodingReadsOnReturnedValue(t *testing.T) {
	byValue := func() Encoding {
		return Encoding{Groups: []RuleGroup{{ID: "facts", Rules: "shift(day)."}}}
	}

	// Accessors work directly on an rvalue, the shape accessor callers use.
	assert.Equal(t, []string{"facts"}, byValue().GroupIDs())
	g, ok := byValue().Group("facts")
	require.True(t, ok)
	assert.Equal(t, "shift(day).", g.Rules)
	assert.Contains(t, byValue().Text(), "% group: facts")
}

func TestEncodingCloneIsDeep(t *testing.T) {
	e := Encoding{Groups: []RuleGroup{{ID: "a", Rules: "a."}}}
	c := e.Clone()
	c.Groups[0].Rules = "b."

	assert.Equal(t, "a.", e.Groups[0].Rules)
}

func TestConstraintStatusOpen(t *testing.T) {
	assert.False(t, ConstraintPassed.Open())
	assert.True(t, ConstraintUntested.Open())
	assert.True(t, ConstraintFailed.Open())
	assert.True(t, ConstraintCheckErrored.Open())
}

func TestRoundSummaryRenderDeterministic(t *testing.T) {
	s := RoundSummary{
		Round:       3,
		SolveStatus: "SAT",
		AnswerSets:  1,
		Verdicts: []Verdict{
			{ConstraintID: "c-2", Outcome: VerdictFailed, Details: "employee e2 has 2 shifts"},
			{ConstraintID: "c-1", Outcome: VerdictPassed},
		},
	}

	rendered := s.Render()

	// Sorted by constraint ID, not insertion order.
	c1 := strings.Index(rendered, "c-1")
	c2 := strings.Index(rendered, "c-2")
	require.GreaterOrEqual(t, c1, 0)
	assert.Greater(t, c2, c1)
	assert.Contains(t, rendered, "passed=1 failed=1 errored=0")

	// Render must not mutate the summary's own ordering.
	assert.Equal(t, "c-2", s.Verdicts[0].ConstraintID)
}

func TestVerdictOutcomeStatus(t *testing.T) {
	assert.Equal(t, ConstraintPassed, VerdictPassed.Status())
	assert.Equal(t, ConstraintFailed, VerdictFailed.Status())
	assert.Equal(t, ConstraintCheckErrored, VerdictErrored.Status())
}
