// Package repo holds the in-memory working state of a session: the encoding
// under construction and the current example instance.
//
// The repository is the single writer-owned holding area the controller
// commits to at round boundaries. It is not safe for concurrent use; the
// loop is sequential by design and the controller is the only writer.
package repo

import (
	"fmt"

	"github.com/aspforge/aspforge/internal/types"
)

// DuplicateRuleError reports an attempt to append a rule group whose ID is
// already present. The caller decides what to do; the repository never
// renames silently.
type DuplicateRuleError struct {
	ID string
}

func (e *DuplicateRuleError) Error() string {
	return fmt.Sprintf("duplicate rule group id: %s", e.ID)
}

// Repository is the holding area for the current encoding and instance.
type Repository struct {
	encoding types.Encoding
	instance *types.Instance

	// revision increments on every encoding mutation. Instances carry the
	// revision they were generated against so staleness is detectable.
	revision uint64
}

// New returns an empty repository.
func New() *Repository {
	return &Repository{}
}

// Revision returns the current encoding revision.
func (r *Repository) Revision() uint64 {
	return r.revision
}

// Encoding returns a deep copy of the current encoding.
func (r *Repository) Encoding() types.Encoding {
	return r.encoding.Clone()
}

// EncodingText renders the current encoding as a solver-ready program.
func (r *Repository) EncodingText() string {
	return r.encoding.Text()
}

// Extend appends a rule group, enforcing identifier uniqueness.
func (r *Repository) Extend(group types.RuleGroup) error {
	if err := group.Validate(); err != nil {
		return err
	}
	if _, ok := r.encoding.Group(group.ID); ok {
		return &DuplicateRuleError{ID: group.ID}
	}
	r.encoding.Groups = append(r.encoding.Groups, group)
	r.revision++
	return nil
}

// ReplaceGroup swaps the rule group with the same ID in place. Replacement is
// the only way to change a group mid-sequence; there is no delete.
func (r *Repository) ReplaceGroup(group types.RuleGroup) error {
	if err := group.Validate(); err != nil {
		return err
	}
	for i, g := range r.encoding.Groups {
		if g.ID == group.ID {
			r.encoding.Groups[i] = group
			r.revision++
			return nil
		}
	}
	return fmt.Errorf("no rule group with id %s to replace", group.ID)
}

// UndoExtend drops the most recently appended rule group. It reports whether
// anything was removed.
func (r *Repository) UndoExtend() bool {
	if len(r.encoding.Groups) == 0 {
		return false
	}
	r.encoding.Groups = r.encoding.Groups[:len(r.encoding.Groups)-1]
	r.revision++
	return true
}

// Instance returns the current instance, or nil if none has been set.
func (r *Repository) Instance() *types.Instance {
	if r.instance == nil {
		return nil
	}
	inst := *r.instance
	return &inst
}

// InstanceStale reports whether the current instance was generated against a
// now-superseded encoding. A nil instance is considered stale: there is
// nothing valid to reuse.
func (r *Repository) InstanceStale() bool {
	return r.instance == nil || r.instance.Revision != r.revision
}

// ReplaceInstance atomically swaps the instance. The old instance is
// discarded; each round's instance is disposable once validated.
func (r *Repository) ReplaceInstance(inst types.Instance) {
	inst.Revision = r.revision
	r.instance = &inst
}

// Snapshot captures the full repository state for round atomicity.
type Snapshot struct {
	encoding types.Encoding
	instance *types.Instance
	revision uint64
}

// Snapshot returns a deep copy of the current state.
func (r *Repository) Snapshot() Snapshot {
	snap := Snapshot{
		encoding: r.encoding.Clone(),
		revision: r.revision,
	}
	if r.instance != nil {
		inst := *r.instance
		snap.instance = &inst
	}
	return snap
}

// Restore rewinds the repository to a previously taken snapshot. Used by the
// controller when a round fails or is cancelled after staging changes.
func (r *Repository) Restore(snap Snapshot) {
	r.encoding = snap.encoding.Clone()
	r.revision = snap.revision
	if snap.instance != nil {
		inst := *snap.instance
		r.instance = &inst
	} else {
		r.instance = nil
	}
}
