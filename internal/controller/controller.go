// Package controller drives the refinement loop: request an encoding
// increment, materialize an instance, solve, validate constraints, feed
// the results back, and compact history when it grows. Rounds are atomic:
// shared state (repository, conversation) is committed only when a round
// step succeeds, so a failed or cancelled round leaves prior state intact.
package controller

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/aspforge/aspforge/internal/ai"
	"github.com/aspforge/aspforge/internal/checker"
	"github.com/aspforge/aspforge/internal/conversation"
	"github.com/aspforge/aspforge/internal/repo"
	"github.com/aspforge/aspforge/internal/solver"
	"github.com/aspforge/aspforge/internal/types"
	"golang.org/x/sync/errgroup"
)

// Recorder receives checkers and round outcomes for the audit trail.
// A nil Recorder disables auditing.
type Recorder interface {
	RecordChecker(ctx context.Context, constraintID string, ck *types.Checker, verdict *types.Verdict) error
	RecordRound(ctx context.Context, summary *types.RoundSummary) error
}

// Config wires the controller's collaborators.
type Config struct {
	Model    ai.Completer
	Solver   solver.Solver
	Store    *conversation.Store
	Repo     *repo.Repository
	Runners  checker.Runners
	Recorder Recorder // optional

	// Policy governs compaction. Zero value means DefaultPolicy.
	Policy conversation.Policy

	// SolveOptions is applied to every solve call.
	SolveOptions solver.Options

	// Workers bounds parallel checker execution. Zero means 4.
	Workers int

	// CheckerLanguage is the language requested from the generator.
	// Empty means JavaScript.
	CheckerLanguage types.CheckerLanguage
}

// Controller orchestrates rounds over the shared session state.
type Controller struct {
	model     ai.Completer
	solver    solver.Solver
	store     *conversation.Store
	repo      *repo.Repository
	runners   checker.Runners
	generator *checker.Generator
	recorder  Recorder

	policy    conversation.Policy
	solveOpts solver.Options
	workers   int
	language  types.CheckerLanguage

	round       int
	constraints []*types.Constraint
}

// New creates a controller. Model, Solver, Store, and Repo are required.
func New(cfg Config) (*Controller, error) {
	if cfg.Model == nil || cfg.Solver == nil || cfg.Store == nil || cfg.Repo == nil {
		return nil, fmt.Errorf("controller requires model, solver, store, and repo")
	}

	policy := cfg.Policy
	if policy == (conversation.Policy{}) {
		policy = conversation.DefaultPolicy()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	runners := cfg.Runners
	if runners == nil {
		runners = checker.DefaultRunners(0)
	}
	language := cfg.CheckerLanguage
	if language == "" {
		language = types.CheckerJavaScript
	}

	return &Controller{
		model:     cfg.Model,
		solver:    cfg.Solver,
		store:     cfg.Store,
		repo:      cfg.Repo,
		runners:   runners,
		generator: checker.NewGenerator(cfg.Model),
		recorder:  cfg.Recorder,
		policy:    policy,
		solveOpts: cfg.SolveOptions,
		workers:   workers,
		language:  language,
	}, nil
}

// Round returns the number of completed validation rounds.
func (c *Controller) Round() int {
	return c.round
}

// Constraints returns the accumulated constraints in declaration order.
func (c *Controller) Constraints() []*types.Constraint {
	out := make([]*types.Constraint, len(c.constraints))
	copy(out, c.constraints)
	return out
}

// AddConstraint registers a new natural-language constraint. Constraints
// accumulate across rounds and start untested.
func (c *Controller) AddConstraint(statement string) *types.Constraint {
	constraint := &types.Constraint{
		ID:        fmt.Sprintf("c%03d", len(c.constraints)+1),
		Statement: strings.TrimSpace(statement),
		Status:    types.ConstraintUntested,
	}
	c.constraints = append(c.constraints, constraint)
	return constraint
}

// Seed opens the session with the system preamble and the user's problem
// statement. Call once before the first RunIteration.
func (c *Controller) Seed(problem string) {
	c.store.Append(types.Turn{Role: types.RoleSystem, Content: ai.SessionPreamble()})
	c.store.Append(types.Turn{Role: types.RoleUser, Content: ai.BuildProblemPrompt(problem)})
}

// RunIteration requests one encoding increment from the model and commits
// it. feedback optionally steers the round. Malformed model output is
// retried once with the parse failure surfaced to the model; a second
// malformed response aborts the round with the raw text attached, leaving
// repository and conversation untouched.
func (c *Controller) RunIteration(ctx context.Context, feedback string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	snap := c.repo.Snapshot()

	var prompt string
	if c.store.Len() > 2 {
		prompt = ai.BuildIncrementPrompt(feedback)
	} else if strings.TrimSpace(feedback) != "" {
		// Round one: the seed turns already carry the request, but guidance
		// queued before the first round still has to reach the model.
		prompt = ai.BuildGuidancePrompt(feedback)
	}

	turns := c.store.Turns()
	if prompt != "" {
		turns = append(turns, types.Turn{Role: types.RoleUser, Content: prompt})
	}

	text, usage, err := c.model.Complete(ctx, turns, ai.CompleteOptions{Operation: "increment"})
	if err != nil {
		return fmt.Errorf("increment request: %w", err)
	}

	inc, err := ai.ParseIncrement(text)
	if err == nil {
		err = c.applyIncrement(inc)
	}
	if err != nil {
		var genErr *ai.GenerationError
		var dupErr *repo.DuplicateRuleError
		if !errors.As(err, &genErr) && !errors.As(err, &dupErr) {
			c.repo.Restore(snap)
			return err
		}

		// One corrective retry: show the model what was wrong with its
		// own output before giving up.
		c.repo.Restore(snap)
		fmt.Fprintf(os.Stderr, "increment response unusable (%v), retrying once\n", err)

		retryTurns := append(turns,
			types.Turn{Role: types.RoleAssistant, Content: text},
			types.Turn{Role: types.RoleUser, Content: fmt.Sprintf(
				"That response could not be applied: %v.\nRespond again with only the JSON increment format, fixing the problem.", err)})

		retryText, retryUsage, retryErr := c.model.Complete(ctx, retryTurns, ai.CompleteOptions{Operation: "increment retry"})
		if retryErr != nil {
			return fmt.Errorf("increment retry request: %w", retryErr)
		}
		usage = retryUsage

		inc, retryErr = ai.ParseIncrement(retryText)
		if retryErr == nil {
			retryErr = c.applyIncrement(inc)
		}
		if retryErr != nil {
			c.repo.Restore(snap)
			var retryGenErr *ai.GenerationError
			if errors.As(retryErr, &retryGenErr) && retryGenErr.RawText != "" {
				fmt.Fprintf(os.Stderr, "unusable model output was:\n%s\n", clip(retryGenErr.RawText, 500))
			}
			return fmt.Errorf("increment unusable after retry: %w", retryErr)
		}
		text = retryText
	}

	// Commit the conversation only after the repository accepted the round.
	if prompt != "" {
		c.store.Append(types.Turn{Role: types.RoleUser, Content: prompt})
	}
	c.store.Append(types.Turn{Role: types.RoleAssistant, Content: text})
	c.store.RecordUsage(usage.Total())

	fmt.Printf("increment applied: %d group(s), encoding now %d group(s)\n",
		len(inc.NewGroups)+len(inc.ReplaceGroups), len(c.repo.Encoding().Groups))
	return nil
}

// applyIncrement stages the model's rule groups and instance into the
// repository. Strictly all-or-nothing from the caller's perspective: the
// caller restores its snapshot on error.
func (c *Controller) applyIncrement(inc ai.IncrementResponse) error {
	for _, g := range inc.NewGroups {
		group := types.RuleGroup{ID: g.ID, Rules: g.Rules, Rationale: g.Rationale}
		if err := c.repo.Extend(group); err != nil {
			return err
		}
	}
	for _, g := range inc.ReplaceGroups {
		group := types.RuleGroup{ID: g.ID, Rules: g.Rules, Rationale: g.Rationale}
		if err := c.repo.ReplaceGroup(group); err != nil {
			return err
		}
	}
	if strings.TrimSpace(inc.InstanceFacts) != "" {
		c.repo.ReplaceInstance(types.Instance{Facts: inc.InstanceFacts})
	}
	return nil
}

// maxSolveAttempts bounds the timeout-simplify-retry cycle per round.
const maxSolveAttempts = 3

// ValidateRound solves the current encoding+instance and runs every
// constraint's checker against the answer sets. A solver timeout triggers
// an instance simplification and a bounded retry rather than a verdict.
// The aggregated summary is appended to the conversation as feedback for
// the next increment.
func (c *Controller) ValidateRound(ctx context.Context) (*types.RoundSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := c.repo.Snapshot()

	if c.repo.InstanceStale() {
		if err := c.regenerateInstance(ctx); err != nil {
			c.repo.Restore(snap)
			return nil, err
		}
	}

	result, err := c.solveWithSimplification(ctx)
	if err != nil {
		c.repo.Restore(snap)
		return nil, err
	}

	summary := &types.RoundSummary{
		Round:       c.round + 1,
		SolveStatus: string(result.Status),
		AnswerSets:  len(result.AnswerSets),
		StartedAt:   time.Now(),
	}

	if result.Status == solver.StatusSAT && len(c.constraints) > 0 {
		verdicts, err := c.runCheckers(ctx, result)
		if err != nil {
			c.repo.Restore(snap)
			return nil, err
		}
		summary.Verdicts = verdicts
	}

	// An abort arriving mid-round must not commit anything: checker runs
	// interrupted by cancellation report errored verdicts, which would
	// otherwise poison constraint state and the transcript.
	if err := ctx.Err(); err != nil {
		c.repo.Restore(snap)
		return nil, err
	}

	c.applyVerdicts(ctx, summary.Verdicts)

	c.store.Append(types.Turn{Role: types.RoleUser, Content: summary.Render()})
	c.round++

	if c.recorder != nil {
		if err := c.recorder.RecordRound(ctx, summary); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to record round: %v\n", err)
		}
	}

	passed, failed, errored := summary.Counts()
	fmt.Printf("round %d: solver=%s passed=%d failed=%d errored=%d\n",
		summary.Round, summary.SolveStatus, passed, failed, errored)
	return summary, nil
}

// regenerateInstance asks the model for fresh facts matching the current
// encoding revision. Stale instances are never silently reused.
func (c *Controller) regenerateInstance(ctx context.Context) error {
	prompt := ai.BuildInstancePrompt(c.repo.EncodingText())
	text, usage, err := c.model.Complete(ctx,
		[]types.Turn{{Role: types.RoleUser, Content: prompt}},
		ai.CompleteOptions{Operation: "instance regeneration"})
	if err != nil {
		return fmt.Errorf("instance regeneration: %w", err)
	}
	c.store.RecordUsage(usage.Total())

	resp, err := ai.ParseInstance(text)
	if err != nil {
		return err
	}
	c.repo.ReplaceInstance(types.Instance{Facts: resp.Facts})
	return nil
}

// solveWithSimplification runs the solver, trading the instance for a
// smaller one on each timeout, up to maxSolveAttempts.
func (c *Controller) solveWithSimplification(ctx context.Context) (*solver.Result, error) {
	for attempt := 1; ; attempt++ {
		result, err := c.solver.Solve(ctx, c.repo.EncodingText(), c.repo.Instance().Facts, c.solveOpts)
		if err == nil {
			return result, nil
		}
		if !solver.IsTimeout(err) || attempt >= maxSolveAttempts {
			return nil, fmt.Errorf("solve failed: %w", err)
		}

		fmt.Fprintf(os.Stderr, "solver timed out (attempt %d/%d), requesting simplified instance\n",
			attempt, maxSolveAttempts)
		if err := c.simplifyInstance(ctx); err != nil {
			return nil, err
		}
	}
}

func (c *Controller) simplifyInstance(ctx context.Context) error {
	prompt := ai.BuildSimplifyInstancePrompt(c.repo.EncodingText(), c.repo.Instance().Facts)
	text, usage, err := c.model.Complete(ctx,
		[]types.Turn{{Role: types.RoleUser, Content: prompt}},
		ai.CompleteOptions{Operation: "instance simplification"})
	if err != nil {
		return fmt.Errorf("instance simplification: %w", err)
	}
	c.store.RecordUsage(usage.Total())

	resp, err := ai.ParseInstance(text)
	if err != nil {
		return err
	}
	c.repo.ReplaceInstance(types.Instance{Facts: resp.Facts})
	return nil
}

// runCheckers ensures each constraint has a checker and executes them with
// bounded parallelism. The answer sets are immutable for the round, so
// checkers only read shared data; results are collected and ordered by
// constraint ID before anything is written back.
func (c *Controller) runCheckers(ctx context.Context, result *solver.Result) ([]types.Verdict, error) {
	instance := c.repo.Instance()

	// Generation is sequential: it talks to the model, which carries its
	// own concurrency bound, and checker programs must exist before the
	// parallel run starts.
	for _, constraint := range c.constraints {
		if constraint.Checker != nil {
			continue
		}
		ck, err := c.generator.Generate(ctx, constraint.Statement, instance.Facts, c.language)
		if err != nil {
			return nil, fmt.Errorf("generate checker for %s: %w", constraint.ID, err)
		}
		constraint.Checker = ck
	}

	answerSets := make([][]string, len(result.AnswerSets))
	for i, as := range result.AnswerSets {
		answerSets[i] = as.Atoms
	}

	verdicts := make([]types.Verdict, len(c.constraints))
	g, runCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, constraint := range c.constraints {
		g.Go(func() error {
			start := time.Now()
			outcome, details := c.runners.Run(runCtx, constraint.Checker, answerSets)
			verdicts[i] = types.Verdict{
				ConstraintID: constraint.ID,
				CheckerID:    constraint.Checker.ID,
				Outcome:      outcome,
				Details:      details,
				Duration:     time.Since(start),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(verdicts, func(i, j int) bool {
		return verdicts[i].ConstraintID < verdicts[j].ConstraintID
	})
	return verdicts, nil
}

// applyVerdicts updates constraint statuses and records the audit trail.
// An errored checker is discarded so the next round regenerates it instead
// of rolling back the encoding.
func (c *Controller) applyVerdicts(ctx context.Context, verdicts []types.Verdict) {
	byID := make(map[string]*types.Constraint, len(c.constraints))
	for _, constraint := range c.constraints {
		byID[constraint.ID] = constraint
	}

	for i := range verdicts {
		v := &verdicts[i]
		constraint, ok := byID[v.ConstraintID]
		if !ok {
			continue
		}
		constraint.Status = v.Outcome.Status()

		if c.recorder != nil && constraint.Checker != nil {
			if err := c.recorder.RecordChecker(ctx, constraint.ID, constraint.Checker, v); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to record checker: %v\n", err)
			}
		}

		if v.Outcome == types.VerdictErrored {
			constraint.Checker = nil
		}
	}
}

// MaybeCompact consults the policy and compacts the conversation when the
// history has outgrown it, seeding the summary with the current encoding,
// instance, and every open constraint. Returns whether compaction ran.
func (c *Controller) MaybeCompact(ctx context.Context) (bool, error) {
	if !c.policy.ShouldCompact(c.store) {
		return false, nil
	}

	seed := conversation.Seed{
		EncodingText: c.repo.EncodingText(),
	}
	if inst := c.repo.Instance(); inst != nil {
		seed.InstanceFacts = inst.Facts
	}
	for _, constraint := range c.constraints {
		if constraint.Status.Open() {
			seed.OpenConstraints = append(seed.OpenConstraints, *constraint)
		}
	}

	// A digest of the discarded prefix is best-effort: compaction remains
	// lossless for open obligations without it.
	turns := c.store.Turns()
	retain := c.policy.RetainTurns
	if len(turns) > retain {
		digest, usage, err := c.model.Complete(ctx,
			[]types.Turn{{Role: types.RoleUser, Content: ai.BuildDigestPrompt(turns[:len(turns)-retain])}},
			ai.CompleteOptions{Simple: true, Operation: "compaction digest"})
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: compaction digest failed, proceeding without: %v\n", err)
		} else {
			seed.Digest = strings.TrimSpace(digest)
			c.store.RecordUsage(usage.Total())
		}
	}

	removed := c.store.Compact(seed, retain)
	if removed > 0 {
		fmt.Printf("compacted conversation: %d turn(s) folded into summary\n", removed)
	}
	return removed > 0, nil
}

// clip bounds text written to the operational log.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "... (truncated)"
}
