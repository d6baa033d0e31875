// Package solver adapts an external ASP solver (clingo) behind a small
// interface the controller can drive and tests can fake.
package solver

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status is the solver's verdict on a program.
type Status string

const (
	StatusSAT     Status = "SAT"
	StatusUNSAT   Status = "UNSAT"
	StatusUnknown Status = "UNKNOWN"
)

// AnswerSet is one stable model: the shown atoms, as printed by the solver.
type AnswerSet struct {
	Atoms []string `json:"atoms"`
}

// Result is a structured solve outcome.
type Result struct {
	Status     Status      `json:"status"`
	AnswerSets []AnswerSet `json:"answer_sets"`

	// More reports whether the solver stopped at the model cap with
	// further models unexplored.
	More bool `json:"more,omitempty"`
}

// ErrorKind classifies solver failures. Timeout is deliberately distinct:
// the controller retries it with a simplified instance instead of reading
// it as UNSAT.
type ErrorKind string

const (
	// KindTimeout means the solve exceeded its wall-clock budget.
	KindTimeout ErrorKind = "timeout"
	// KindSyntax means the program did not parse or ground.
	KindSyntax ErrorKind = "syntax"
	// KindExec means the solver process itself failed (missing binary,
	// crash, resource exhaustion).
	KindExec ErrorKind = "exec"
)

// Error is a structured solver failure.
type Error struct {
	Kind   ErrorKind
	Msg    string
	Stderr string
}

func (e *Error) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("solver %s: %s: %s", e.Kind, e.Msg, e.Stderr)
	}
	return fmt.Sprintf("solver %s: %s", e.Kind, e.Msg)
}

// IsTimeout reports whether err is, or wraps, a solver timeout.
func IsTimeout(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindTimeout
}

// Options tunes a single solve call.
type Options struct {
	// MaxModels caps enumeration; 0 means all models, subject to the
	// absolute cap.
	MaxModels int

	// Consts passes #const parameters to the grounder (--const k=v).
	Consts map[string]string

	// Timeout overrides the solver's default wall-clock budget.
	Timeout time.Duration
}

// Solver runs ASP programs. Implementations must treat encoding and
// instance as opaque program text and honor ctx cancellation.
type Solver interface {
	// Solve grounds and solves encoding+instance, returning answer sets or
	// UNSAT, or a *Error on failure.
	Solve(ctx context.Context, encoding, instance string, opts Options) (*Result, error)

	// CheckSyntax grounds the program without solving, returning a *Error
	// with KindSyntax if it does not parse.
	CheckSyntax(ctx context.Context, encoding, instance string) error
}
