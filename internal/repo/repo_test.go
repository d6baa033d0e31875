package repo

import (
	"errors"
	"testing"

	"github.com/aspforge/aspforge/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtendRejectsDuplicateID(t *testing.T) {
	r := New()
	require.NoError(t, r.Extend(types.RuleGroup{ID: "assign", Rules: "a."}))

	err := r.Extend(types.RuleGroup{ID: "assign", Rules: "b."})
	require.Error(t, err)

	var dup *DuplicateRuleError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "assign", dup.ID)

	// The original group is untouched.
	enc := r.Encoding()
	require.Len(t, enc.Groups, 1)
	assert.Equal(t, "a.", enc.Groups[0].Rules)
}

func TestReplaceGroupKeepsPosition(t *testing.T) {
	r := New()
	require.NoError(t, r.Extend(types.RuleGroup{ID: "facts", Rules: "f."}))
	require.NoError(t, r.Extend(types.RuleGroup{ID: "assign", Rules: "a."}))

	require.NoError(t, r.ReplaceGroup(types.RuleGroup{ID: "facts", Rules: "g."}))

	enc := r.Encoding()
	assert.Equal(t, []string{"facts", "assign"}, enc.GroupIDs())
	assert.Equal(t, "g.", enc.Groups[0].Rules)
}

func TestReplaceGroupMissingID(t *testing.T) {
	r := New()
	err := r.ReplaceGroup(types.RuleGroup{ID: "nope", Rules: "a."})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rule group")
}

func TestUndoExtend(t *testing.T) {
	r := New()
	assert.False(t, r.UndoExtend())

	require.NoError(t, r.Extend(types.RuleGroup{ID: "a", Rules: "a."}))
	require.NoError(t, r.Extend(types.RuleGroup{ID: "b", Rules: "b."}))

	assert.True(t, r.UndoExtend())
	assert.Equal(t, []string{"a"}, r.Encoding().GroupIDs())
}

func TestInstanceStaleness(t *testing.T) {
	r := New()
	assert.True(t, r.InstanceStale(), "empty repository has no usable instance")

	require.NoError(t, r.Extend(types.RuleGroup{ID: "a", Rules: "a."}))
	r.ReplaceInstance(types.Instance{Facts: "employee(e1)."})
	assert.False(t, r.InstanceStale())

	// Any encoding mutation invalidates the instance.
	require.NoError(t, r.Extend(types.RuleGroup{ID: "b", Rules: "b."}))
	assert.True(t, r.InstanceStale())

	r.ReplaceInstance(types.Instance{Facts: "employee(e1). employee(e2)."})
	assert.False(t, r.InstanceStale())
}

func TestSnapshotRestore(t *testing.T) {
	r := New()
	require.NoError(t, r.Extend(types.RuleGroup{ID: "a", Rules: "a."}))
	r.ReplaceInstance(types.Instance{Facts: "f."})

	snap := r.Snapshot()

	require.NoError(t, r.Extend(types.RuleGroup{ID: "b", Rules: "b."}))
	r.ReplaceInstance(types.Instance{Facts: "g."})
	require.Equal(t, []string{"a", "b"}, r.Encoding().GroupIDs())

	r.Restore(snap)

	assert.Equal(t, []string{"a"}, r.Encoding().GroupIDs())
	require.NotNil(t, r.Instance())
	assert.Equal(t, "f.", r.Instance().Facts)
	assert.False(t, r.InstanceStale(), "restored instance matches restored revision")
}

func TestSnapshotIsIsolated(t *testing.T) {
	r := New()
	require.NoError(t, r.Extend(types.RuleGroup{ID: "a", Rules: "a."}))
	snap := r.Snapshot()

	// Mutating the live repository must not leak into the snapshot.
	require.NoError(t, r.ReplaceGroup(types.RuleGroup{ID: "a", Rules: "changed."}))
	r.Restore(snap)
	assert.Equal(t, "a.", r.Encoding().Groups[0].Rules)
}
