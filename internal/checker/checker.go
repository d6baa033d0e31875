// Package checker generates and runs independent verification programs
// against solver output. A checker never sees the encoding's rules; it is
// prompted from the constraint statement and the instance alone, so it
// tests declared intent rather than re-deriving whatever the encoding
// currently computes.
package checker

import (
	"context"
	"fmt"
	"time"

	"github.com/aspforge/aspforge/internal/ai"
	"github.com/aspforge/aspforge/internal/types"
	"github.com/google/uuid"
)

// DefaultBudget bounds a single checker execution.
const DefaultBudget = 5 * time.Second

// Runner executes a checker program against answer sets.
type Runner interface {
	Language() types.CheckerLanguage

	// Run returns the outcome and human-readable details. An execution
	// fault (exception, timeout, unparsable program) yields VerdictErrored,
	// never passed or failed.
	Run(ctx context.Context, program string, answerSets [][]string) (types.VerdictOutcome, string)
}

// Runners maps checker languages to their engines.
type Runners map[types.CheckerLanguage]Runner

// DefaultRunners builds the standard engine set.
func DefaultRunners(budget time.Duration) Runners {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return Runners{
		types.CheckerJavaScript: &JSRunner{Budget: budget},
		types.CheckerDatalog:    &DatalogRunner{Budget: budget},
	}
}

// Run dispatches to the engine for the checker's language.
func (r Runners) Run(ctx context.Context, ck *types.Checker, answerSets [][]string) (types.VerdictOutcome, string) {
	runner, ok := r[ck.Language]
	if !ok {
		return types.VerdictErrored, fmt.Sprintf("no engine for checker language %q", ck.Language)
	}
	return runner.Run(ctx, ck.Program, answerSets)
}

// Generator asks the model for checker programs.
type Generator struct {
	model ai.Completer
}

// NewGenerator creates a checker generator.
func NewGenerator(model ai.Completer) *Generator {
	return &Generator{model: model}
}

// Generate produces a checker for one constraint. The prompt carries the
// constraint statement and the instance facts only, not the encoding.
// Checker generation runs on the simple model tier.
func (g *Generator) Generate(ctx context.Context, statement, instanceFacts string, language types.CheckerLanguage) (*types.Checker, error) {
	if !language.IsValid() {
		return nil, fmt.Errorf("invalid checker language: %q", language)
	}

	prompt := ai.BuildCheckerPrompt(statement, instanceFacts, language)
	turns := []types.Turn{{Role: types.RoleUser, Content: prompt}}

	text, _, err := g.model.Complete(ctx, turns, ai.CompleteOptions{
		Simple:    true,
		Operation: "checker generation",
	})
	if err != nil {
		return nil, fmt.Errorf("checker generation: %w", err)
	}

	resp, err := ai.ParseChecker(text)
	if err != nil {
		return nil, err
	}

	// The model may answer in the other language; trust its self-report
	// when valid, otherwise keep the requested one.
	lang := language
	if reported := types.CheckerLanguage(resp.Language); reported.IsValid() {
		lang = reported
	}

	return &types.Checker{
		ID:       uuid.New().String(),
		Language: lang,
		Program:  resp.Program,
		Created:  time.Now(),
	}, nil
}
