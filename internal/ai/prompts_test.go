package ai

import (
	"testing"

	"github.com/aspforge/aspforge/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIncrement(t *testing.T) {
	text := "```json\n" + `{
  "new_groups": [{"id": "shift_gen", "rules": "1 { shift(E,S) : slot(S) } 1 :- employee(E).", "rationale": "exactly one shift each"}],
  "replace_groups": [],
  "instance_facts": "employee(e1). employee(e2). slot(s1). slot(s2).",
  "commentary": "core generator"
}` + "\n```"

	inc, err := ParseIncrement(text)
	require.NoError(t, err)
	require.Len(t, inc.NewGroups, 1)
	assert.Equal(t, "shift_gen", inc.NewGroups[0].ID)
	assert.Contains(t, inc.InstanceFacts, "employee(e1)")
}

func TestParseIncrement_Malformed(t *testing.T) {
	raw := "Sure! Here are some rules you could add."
	_, err := ParseIncrement(raw)
	require.Error(t, err)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, raw, genErr.RawText)
}

func TestParseIncrement_NoGroups(t *testing.T) {
	_, err := ParseIncrement(`{"new_groups": [], "replace_groups": [], "instance_facts": "a."}`)
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, genErr.Reason, "no rule groups")
}

func TestParseIncrement_MissingRules(t *testing.T) {
	_, err := ParseIncrement(`{"new_groups": [{"id": "g1", "rules": ""}]}`)
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, genErr.Reason, "missing id or rules")
}

func TestParseInstance(t *testing.T) {
	resp, err := ParseInstance(`{"facts": "employee(e1).", "commentary": "tiny"}`)
	require.NoError(t, err)
	assert.Equal(t, "employee(e1).", resp.Facts)

	_, err = ParseInstance(`{"facts": "  "}`)
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
}

func TestParseChecker(t *testing.T) {
	resp, err := ParseChecker(`{"language": "javascript", "program": "pass();"}`)
	require.NoError(t, err)
	assert.Equal(t, "pass();", resp.Program)

	_, err = ParseChecker(`{"language": "javascript", "program": ""}`)
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
}

func TestBuildCheckerPrompt_WithholdsEncoding(t *testing.T) {
	prompt := BuildCheckerPrompt("every employee has exactly one shift", "employee(e1).", types.CheckerJavaScript)
	assert.Contains(t, prompt, "every employee has exactly one shift")
	assert.Contains(t, prompt, "solverOutput")
	assert.NotContains(t, prompt, ":-")

	dl := BuildCheckerPrompt("no overlaps", "slot(s1).", types.CheckerDatalog)
	assert.Contains(t, dl, "violation()")
}

func TestToMessageParams_FoldsSystemTurns(t *testing.T) {
	turns := []types.Turn{
		{Role: types.RoleSystem, Content: "preamble"},
		{Role: types.RoleUser, Content: "problem"},
		{Role: types.RoleAssistant, Content: "increment"},
	}
	messages, err := toMessageParams(turns)
	require.NoError(t, err)
	require.Len(t, messages, 2)
}

func TestToMessageParams_RejectsEmptyAndBadRole(t *testing.T) {
	_, err := toMessageParams(nil)
	require.Error(t, err)

	_, err = toMessageParams([]types.Turn{{Role: "tool", Content: "x"}})
	require.Error(t, err)
}
