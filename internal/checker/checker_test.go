package checker

import (
	"context"
	"errors"
	"testing"

	"github.com/aspforge/aspforge/internal/ai"
	"github.com/aspforge/aspforge/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	response string
	err      error
	lastTurn string
	simple   bool
}

func (f *fakeModel) Complete(_ context.Context, turns []types.Turn, opts ai.CompleteOptions) (string, ai.Usage, error) {
	if len(turns) > 0 {
		f.lastTurn = turns[len(turns)-1].Content
	}
	f.simple = opts.Simple
	return f.response, ai.Usage{InputTokens: 10, OutputTokens: 5}, f.err
}

func TestGenerator_Generate(t *testing.T) {
	model := &fakeModel{response: `{"language": "javascript", "program": "pass();"}`}
	g := NewGenerator(model)

	ck, err := g.Generate(context.Background(), "every employee has exactly one shift",
		"employee(e1). slot(s1).", types.CheckerJavaScript)
	require.NoError(t, err)
	assert.NotEmpty(t, ck.ID)
	assert.Equal(t, types.CheckerJavaScript, ck.Language)
	assert.Equal(t, "pass();", ck.Program)
	assert.True(t, model.simple, "checker generation should use the simple model tier")
}

func TestGenerator_PromptWithholdsEncoding(t *testing.T) {
	model := &fakeModel{response: `{"language": "javascript", "program": "pass();"}`}
	g := NewGenerator(model)

	_, err := g.Generate(context.Background(), "no employee works two shifts",
		"employee(e1).", types.CheckerJavaScript)
	require.NoError(t, err)

	assert.Contains(t, model.lastTurn, "no employee works two shifts")
	assert.Contains(t, model.lastTurn, "employee(e1).")
	assert.NotContains(t, model.lastTurn, ":-", "prompt must not leak encoding rules")
}

func TestGenerator_MalformedResponse(t *testing.T) {
	model := &fakeModel{response: "here is a checker for you"}
	g := NewGenerator(model)

	_, err := g.Generate(context.Background(), "stmt", "facts.", types.CheckerJavaScript)
	var genErr *ai.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "here is a checker for you", genErr.RawText)
}

func TestGenerator_ModelError(t *testing.T) {
	model := &fakeModel{err: errors.New("503 service unavailable")}
	g := NewGenerator(model)

	_, err := g.Generate(context.Background(), "stmt", "facts.", types.CheckerJavaScript)
	require.Error(t, err)
}

func TestGenerator_InvalidLanguage(t *testing.T) {
	g := NewGenerator(&fakeModel{})
	_, err := g.Generate(context.Background(), "stmt", "facts.", "cobol")
	require.Error(t, err)
}
