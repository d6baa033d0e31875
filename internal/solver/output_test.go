package solver

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const satFixture = `{
  "Solver": "clingo version 5.6.2",
  "Input": ["encoding.lp", "instance.lp"],
  "Call": [
    {
      "Witnesses": [
        {"Value": ["assign(e1,day)", "assign(e2,day)", "assign(e3,night)"]},
        {"Value": ["assign(e1,night)", "assign(e2,day)", "assign(e3,day)"]}
      ]
    }
  ],
  "Result": "SATISFIABLE",
  "Models": {"Number": 2, "More": "yes"},
  "Calls": 1
}`

const unsatFixture = `{
  "Solver": "clingo version 5.6.2",
  "Call": [{}],
  "Result": "UNSATISFIABLE",
  "Models": {"Number": 0, "More": "no"}
}`

func TestParseClingoJSONSat(t *testing.T) {
	result, err := parseClingoJSON([]byte(satFixture))
	require.NoError(t, err)

	assert.Equal(t, StatusSAT, result.Status)
	require.Len(t, result.AnswerSets, 2)
	assert.Contains(t, result.AnswerSets[0].Atoms, "assign(e1,day)")
	assert.True(t, result.More)
}

func TestParseClingoJSONUnsat(t *testing.T) {
	result, err := parseClingoJSON([]byte(unsatFixture))
	require.NoError(t, err)

	assert.Equal(t, StatusUNSAT, result.Status)
	assert.Empty(t, result.AnswerSets)
	assert.False(t, result.More)
}

func TestParseClingoJSONGarbage(t *testing.T) {
	_, err := parseClingoJSON([]byte("clingo: error"))
	assert.Error(t, err)
}

func TestParseClingoJSONSatWithoutWitnesses(t *testing.T) {
	_, err := parseClingoJSON([]byte(`{"Result": "SATISFIABLE", "Models": {"Number": 1, "More": "no"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no witnesses")
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(&Error{Kind: KindTimeout, Msg: "solve exceeded 20s"}))
	assert.False(t, IsTimeout(&Error{Kind: KindSyntax, Msg: "bad program"}))
	assert.False(t, IsTimeout(assert.AnError))

	// A wrapped timeout still classifies.
	wrapped := fmt.Errorf("attempt 2: %w", &Error{Kind: KindTimeout, Msg: "solve exceeded 20s"})
	assert.True(t, IsTimeout(wrapped))
}

func TestIsSyntaxStderr(t *testing.T) {
	assert.True(t, isSyntaxStderr("<encoding.lp:3:1-9>: error: syntax error, unexpected <IDENTIFIER>"))
	assert.True(t, isSyntaxStderr("<encoding.lp:2:5-6>: error: unsafe variables in:"))
	assert.False(t, isSyntaxStderr("clingo version 5.6.2"))
}

func TestConstArgsDeterministic(t *testing.T) {
	args := constArgs(map[string]string{"n": "3", "k": "2", "m": "7"})
	assert.Equal(t, []string{"--const", "k=2", "--const", "m=7", "--const", "n=3"}, args)
}

func TestErrorString(t *testing.T) {
	e := &Error{Kind: KindSyntax, Msg: "program rejected by grounder", Stderr: "line 3: boom"}
	assert.Contains(t, e.Error(), "syntax")
	assert.Contains(t, e.Error(), "boom")
}
