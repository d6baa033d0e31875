// Package types defines the shared data model for the encoding development
// loop: rule groups, encodings, instances, constraints, and round results.
package types

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ruleIDPattern restricts rule group identifiers to something that survives
// round-tripping through prompts and file names.
var ruleIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// RuleGroup is a named, ordered fragment of an ASP encoding.
type RuleGroup struct {
	ID        string `json:"id"`
	Rules     string `json:"rules"`
	Rationale string `json:"rationale,omitempty"`
}

// Validate checks that the rule group is structurally usable.
func (g *RuleGroup) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("rule group id is required")
	}
	if !ruleIDPattern.MatchString(g.ID) {
		return fmt.Errorf("invalid rule group id %q (want lowercase identifier)", g.ID)
	}
	if strings.TrimSpace(g.Rules) == "" {
		return fmt.Errorf("rule group %s has no rules", g.ID)
	}
	return nil
}

// Encoding is an ordered sequence of rule groups with unique identifiers.
// The zero value is an empty encoding ready for use.
type Encoding struct {
	Groups []RuleGroup `json:"groups"`
}

// Text concatenates the rule groups in sequence order into a solver-ready
// program. Each group is preceded by a comment naming it, which clingo
// ignores but which makes saved encodings and solver errors readable.
func (e Encoding) Text() string {
	var sb strings.Builder
	for _, g := range e.Groups {
		fmt.Fprintf(&sb, "%% group: %s\n", g.ID)
		sb.WriteString(strings.TrimRight(g.Rules, "\n"))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// Group returns the rule group with the given ID, if present.
func (e Encoding) Group(id string) (RuleGroup, bool) {
	for _, g := range e.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return RuleGroup{}, false
}

// GroupIDs returns the identifiers in sequence order.
func (e Encoding) GroupIDs() []string {
	ids := make([]string, len(e.Groups))
	for i, g := range e.Groups {
		ids[i] = g.ID
	}
	return ids
}

// Clone returns a deep copy. Snapshots taken by the repository rely on this
// so a restored round cannot alias staged state.
func (e Encoding) Clone() Encoding {
	groups := make([]RuleGroup, len(e.Groups))
	copy(groups, e.Groups)
	return Encoding{Groups: groups}
}

// Instance is a concrete set of problem facts paired with the encoding
// revision it was generated against.
type Instance struct {
	Facts string `json:"facts"`

	// Revision is the repository revision the instance was generated for.
	// An instance whose revision trails the current encoding is stale and
	// must be regenerated rather than silently reused.
	Revision uint64 `json:"revision"`
}

// ConstraintStatus tracks where a constraint stands in the current session.
type ConstraintStatus string

const (
	ConstraintUntested     ConstraintStatus = "untested"
	ConstraintPassed       ConstraintStatus = "passed"
	ConstraintFailed       ConstraintStatus = "failed"
	ConstraintCheckErrored ConstraintStatus = "check-errored"
)

// IsValid checks if the status value is valid.
func (s ConstraintStatus) IsValid() bool {
	switch s {
	case ConstraintUntested, ConstraintPassed, ConstraintFailed, ConstraintCheckErrored:
		return true
	}
	return false
}

// Open reports whether the constraint still represents an obligation.
// Everything except "passed" is open: failed and errored constraints need
// another round, and untested ones have never been exercised.
func (s ConstraintStatus) Open() bool {
	return s != ConstraintPassed
}

// CheckerLanguage selects the engine a checker program runs on.
type CheckerLanguage string

const (
	CheckerJavaScript CheckerLanguage = "javascript"
	CheckerDatalog    CheckerLanguage = "datalog"
)

// IsValid checks if the language value is valid.
func (l CheckerLanguage) IsValid() bool {
	return l == CheckerJavaScript || l == CheckerDatalog
}

// Checker is an independently generated program that inspects solver output
// for one constraint. The program text is immutable once generated; a new
// round that needs a different checker generates a replacement with a new ID.
type Checker struct {
	ID       string          `json:"id"`
	Language CheckerLanguage `json:"language"`
	Program  string          `json:"program"`
	Created  time.Time       `json:"created"`
}

// Constraint is a natural-language statement of an intended property of the
// encoding, plus the generated checker that tests it.
type Constraint struct {
	ID        string           `json:"id"`
	Statement string           `json:"statement"`
	Checker   *Checker         `json:"checker,omitempty"`
	Status    ConstraintStatus `json:"status"`
}

// Validate checks the constraint is usable.
func (c *Constraint) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("constraint id is required")
	}
	if strings.TrimSpace(c.Statement) == "" {
		return fmt.Errorf("constraint %s has no statement", c.ID)
	}
	if !c.Status.IsValid() {
		return fmt.Errorf("invalid constraint status: %s", c.Status)
	}
	return nil
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid checks if the role value is valid.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is one conversation message. Ordinal positions are owned by the
// conversation store; a Turn by itself carries no position.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Summary marks a synthesized compaction turn so later compactions can
	// tell it apart from organic history.
	Summary bool `json:"summary,omitempty"`
}
