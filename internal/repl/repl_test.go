package repl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aspforge/aspforge/internal/ai"
	"github.com/aspforge/aspforge/internal/controller"
	"github.com/aspforge/aspforge/internal/conversation"
	"github.com/aspforge/aspforge/internal/repo"
	"github.com/aspforge/aspforge/internal/solver"
	"github.com/aspforge/aspforge/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopModel struct{}

func (noopModel) Complete(context.Context, []types.Turn, ai.CompleteOptions) (string, ai.Usage, error) {
	return "", ai.Usage{}, nil
}

type noopSolver struct{}

func (noopSolver) Solve(context.Context, string, string, solver.Options) (*solver.Result, error) {
	return &solver.Result{Status: solver.StatusSAT}, nil
}

func (noopSolver) CheckSyntax(context.Context, string, string) error { return nil }

func newTestREPL(t *testing.T) (*REPL, *repo.Repository) {
	t.Helper()
	repository := repo.New()
	ctrl, err := controller.New(controller.Config{
		Model:  noopModel{},
		Solver: noopSolver{},
		Store:  conversation.NewStore(),
		Repo:   repository,
	})
	require.NoError(t, err)

	r, err := New(&Config{Controller: ctrl, Repo: repository})
	require.NoError(t, err)
	r.ctx = context.Background()
	return r, repository
}

func TestFreeTextQueuesFeedback(t *testing.T) {
	r, _ := newTestREPL(t)

	require.NoError(t, r.processInput("prefer soft constraints for overtime"))
	require.NoError(t, r.processInput("use a penalty predicate"))
	assert.Len(t, r.feedback, 2)
}

func TestConstraintCommand(t *testing.T) {
	r, _ := newTestREPL(t)

	require.NoError(t, r.processInput("constraint every employee has exactly one shift"))
	constraints := r.ctrl.Constraints()
	require.Len(t, constraints, 1)
	assert.Equal(t, "every employee has exactly one shift", constraints[0].Statement)
	assert.Equal(t, types.ConstraintUntested, constraints[0].Status)
}

func TestConstraintCommandRequiresText(t *testing.T) {
	r, _ := newTestREPL(t)
	assert.Error(t, r.cmdConstraint(nil))
}

func TestUndoCommand(t *testing.T) {
	r, repository := newTestREPL(t)
	require.NoError(t, repository.Extend(types.RuleGroup{ID: "shift_gen", Rules: "shift(1..2)."}))
	require.NoError(t, repository.Extend(types.RuleGroup{ID: "shift_caps", Rules: ":- shift(3)."}))
	repository.ReplaceInstance(types.Instance{Facts: "employee(e1)."})

	require.NoError(t, r.processInput("undo"))
	assert.Equal(t, []string{"shift_gen"}, repository.Encoding().GroupIDs())

	// Dropping a group bumps the revision, so the instance goes stale.
	assert.True(t, repository.InstanceStale())
}

func TestUndoCommandEmptyEncodingFails(t *testing.T) {
	r, _ := newTestREPL(t)
	assert.Error(t, r.cmdUndo(nil))
}

func TestSaveCommand(t *testing.T) {
	r, repository := newTestREPL(t)
	require.NoError(t, repository.Extend(types.RuleGroup{ID: "shift_gen", Rules: "shift(1..2)."}))

	dest := filepath.Join(t.TempDir(), "out.lp")
	require.NoError(t, r.cmdSave([]string{dest}))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "shift(1..2).")
}

func TestSaveEmptyEncodingFails(t *testing.T) {
	r, _ := newTestREPL(t)
	assert.Error(t, r.cmdSave([]string{filepath.Join(t.TempDir(), "out.lp")}))
}

func TestShowAndStatusDoNotError(t *testing.T) {
	r, repository := newTestREPL(t)
	require.NoError(t, repository.Extend(types.RuleGroup{ID: "g1", Rules: "a."}))
	repository.ReplaceInstance(types.Instance{Facts: "b."})

	assert.NoError(t, r.cmdShow(nil))
	assert.NoError(t, r.cmdStatus(nil))
	assert.NoError(t, r.cmdHelp(nil))
}
