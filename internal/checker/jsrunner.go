package checker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aspforge/aspforge/internal/types"
	"github.com/grafana/sobek"
)

// JSRunner executes JavaScript checkers in an embedded sobek runtime.
// The program reads the answer sets from a solverOutput global and must
// settle the verdict by calling pass() or fail(details).
type JSRunner struct {
	Budget time.Duration
}

func (r *JSRunner) Language() types.CheckerLanguage {
	return types.CheckerJavaScript
}

// Run executes the program in a fresh VM. The VM has no host access
// beyond solverOutput and the two verdict callbacks. Exceeding the time
// budget interrupts the VM and yields errored.
func (r *JSRunner) Run(ctx context.Context, program string, answerSets [][]string) (types.VerdictOutcome, string) {
	budget := r.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	vm := sobek.New()
	vm.SetFieldNameMapper(sobek.TagFieldNameMapper("json", true))

	if answerSets == nil {
		answerSets = [][]string{}
	}
	if err := vm.Set("solverOutput", answerSets); err != nil {
		return types.VerdictErrored, fmt.Sprintf("failed to bind solver output: %v", err)
	}

	var passed, failed bool
	var failDetails string
	_ = vm.Set("pass", func() {
		passed = true
	})
	_ = vm.Set("fail", func(details string) {
		failed = true
		failDetails = details
	})

	done := make(chan struct{})
	go func() {
		select {
		case <-runCtx.Done():
			vm.Interrupt("checker time budget exceeded")
		case <-done:
		}
	}()

	_, err := vm.RunString(program)
	close(done)

	if err != nil {
		var interrupted *sobek.InterruptedError
		if errors.As(err, &interrupted) || runCtx.Err() != nil {
			return types.VerdictErrored, fmt.Sprintf("checker exceeded %v time budget", budget)
		}
		var exception *sobek.Exception
		if errors.As(err, &exception) {
			return types.VerdictErrored, fmt.Sprintf("checker threw: %s", exception.Error())
		}
		return types.VerdictErrored, fmt.Sprintf("checker execution failed: %v", err)
	}

	// fail wins if the checker called both.
	switch {
	case failed:
		return types.VerdictFailed, failDetails
	case passed:
		return types.VerdictPassed, ""
	default:
		return types.VerdictErrored, "checker finished without calling pass() or fail()"
	}
}
