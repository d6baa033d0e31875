package checker

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aspforge/aspforge/internal/types"
	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
)

// violationPredicate is the zero-argument predicate a Datalog checker
// derives when the constraint is violated.
const violationPredicate = "violation"

// DatalogRunner evaluates Datalog checkers over answer-set atoms. Each
// answer set is loaded as facts alongside the checker's rules; deriving
// violation() fails the constraint.
type DatalogRunner struct {
	Budget time.Duration
}

func (r *DatalogRunner) Language() types.CheckerLanguage {
	return types.CheckerDatalog
}

type datalogResult struct {
	outcome types.VerdictOutcome
	details string
}

// Run evaluates the checker against every answer set; the constraint
// passes only when no set derives a violation. Evaluation past the time
// budget yields errored.
func (r *DatalogRunner) Run(ctx context.Context, program string, answerSets [][]string) (types.VerdictOutcome, string) {
	budget := r.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	resultCh := make(chan datalogResult, 1)
	go func() {
		resultCh <- r.evaluate(program, answerSets)
	}()

	select {
	case res := <-resultCh:
		return res.outcome, res.details
	case <-runCtx.Done():
		return types.VerdictErrored, fmt.Sprintf("checker exceeded %v time budget", budget)
	}
}

func (r *DatalogRunner) evaluate(program string, answerSets [][]string) datalogResult {
	if len(answerSets) == 0 {
		answerSets = [][]string{{}}
	}

	for i, atoms := range answerSets {
		violated, details, err := evalAnswerSet(program, atoms)
		if err != nil {
			return datalogResult{types.VerdictErrored, fmt.Sprintf("answer set %d: %v", i+1, err)}
		}
		if violated {
			if details == "" {
				details = fmt.Sprintf("violation derived for answer set %d", i+1)
			}
			return datalogResult{types.VerdictFailed, details}
		}
	}
	return datalogResult{types.VerdictPassed, ""}
}

// evalAnswerSet runs one answer set through the checker program. Facts
// and checker rules form a single source unit so the analyzer can infer
// predicate declarations for both.
func evalAnswerSet(program string, atoms []string) (violated bool, details string, err error) {
	var src strings.Builder
	for _, atom := range atoms {
		fact, err := atomToFact(atom)
		if err != nil {
			return false, "", fmt.Errorf("translate atom: %w", err)
		}
		src.WriteString(fact)
		src.WriteString("\n")
	}
	src.WriteString(program)
	src.WriteString("\n")

	unit, err := parse.Unit(bytes.NewReader([]byte(src.String())))
	if err != nil {
		return false, "", fmt.Errorf("parse checker program: %w", err)
	}

	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return false, "", fmt.Errorf("analyze checker program: %w", err)
	}

	var violationSym *ast.PredicateSym
	for sym := range programInfo.Decls {
		if sym.Symbol == violationPredicate {
			s := sym
			violationSym = &s
			break
		}
	}
	if violationSym == nil {
		return false, "", fmt.Errorf("checker defines no %s predicate", violationPredicate)
	}

	store := factstore.NewSimpleInMemoryStore()
	if _, err := mengine.EvalProgramWithStats(programInfo, store); err != nil {
		return false, "", fmt.Errorf("evaluate checker program: %w", err)
	}

	found := false
	queryErr := store.GetFacts(ast.NewQuery(*violationSym), func(a ast.Atom) error {
		found = true
		return nil
	})
	if queryErr != nil {
		return false, "", fmt.Errorf("query %s: %w", violationPredicate, queryErr)
	}
	return found, "", nil
}
