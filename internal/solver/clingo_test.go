package solver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClingo writes a shell script standing in for the clingo binary.
func stubClingo(t *testing.T, stdout, stderr string, exitCode int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stub")
	}

	path := filepath.Join(t.TempDir(), "clingo")
	script := fmt.Sprintf("#!/bin/sh\nprintf '%%s' %q >&2\ncat <<'CLINGO_EOF'\n%s\nCLINGO_EOF\nexit %d\n",
		stderr, stdout, exitCode)
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestSolveReadsResultExitCodes(t *testing.T) {
	// Exit 10 means SAT, not a process failure.
	c := NewClingo(stubClingo(t, satFixture, "", 10))

	result, err := c.Solve(context.Background(), "a.", "", Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusSAT, result.Status)
	require.Len(t, result.AnswerSets, 2)
	assert.Contains(t, result.AnswerSets[0].Atoms, "assign(e1,day)")
}

func TestSolveMapsGrounderRejection(t *testing.T) {
	diag := "<encoding.lp:3:1-9>: error: syntax error, unexpected <IDENTIFIER>"
	c := NewClingo(stubClingo(t, "", diag, 65))

	_, err := c.Solve(context.Background(), "a b c", "", Options{})
	require.Error(t, err)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindSyntax, se.Kind)
	assert.Contains(t, se.Stderr, "syntax error")
}

func TestSolveUnreadableOutputCarriesStderr(t *testing.T) {
	c := NewClingo(stubClingo(t, "not json at all", "solver warning text", 10))

	_, err := c.Solve(context.Background(), "a.", "", Options{})
	require.Error(t, err)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindExec, se.Kind)
	assert.Contains(t, se.Stderr, "solver warning text")
}

func TestSolveMissingBinary(t *testing.T) {
	c := NewClingo(filepath.Join(t.TempDir(), "no-such-clingo"))

	_, err := c.Solve(context.Background(), "a.", "", Options{})
	require.Error(t, err)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindExec, se.Kind)
	assert.False(t, errors.Is(err, context.DeadlineExceeded))
}
