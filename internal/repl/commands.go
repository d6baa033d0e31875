package repl

import (
	"fmt"
	"os"
	"strings"

	"github.com/aspforge/aspforge/internal/types"
	"github.com/fatih/color"
)

func writeFile(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// cmdContinue runs one full round: increment, solve, validate, and
// compaction check. Queued guidance is consumed by the round.
func (r *REPL) cmdContinue(args []string) error {
	feedback := strings.Join(r.feedback, "\n")
	r.feedback = nil

	if err := r.ctrl.RunIteration(r.ctx, feedback); err != nil {
		return fmt.Errorf("round aborted: %w", err)
	}

	summary, err := r.ctrl.ValidateRound(r.ctx)
	if err != nil {
		return fmt.Errorf("validation aborted: %w", err)
	}
	r.printSummary(summary)

	if _, err := r.ctrl.MaybeCompact(r.ctx); err != nil {
		return err
	}
	return nil
}

// cmdConstraint registers a new constraint for every future round.
func (r *REPL) cmdConstraint(args []string) error {
	statement := strings.TrimSpace(strings.Join(args, " "))
	if statement == "" {
		return fmt.Errorf("usage: constraint <natural-language statement>")
	}

	c := r.ctrl.AddConstraint(statement)
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s constraint %s added: %s\n", green("✓"), c.ID, c.Statement)
	return nil
}

// cmdUndo drops the most recently appended rule group.
func (r *REPL) cmdUndo(args []string) error {
	ids := r.repo.Encoding().GroupIDs()
	if !r.repo.UndoExtend() {
		return fmt.Errorf("nothing to undo: encoding is empty")
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s removed rule group %s\n", green("✓"), ids[len(ids)-1])
	if r.repo.InstanceStale() {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("%s instance is stale and will be regenerated next round\n", yellow("!"))
	}
	return nil
}

// cmdShow prints the current encoding and instance.
func (r *REPL) cmdShow(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()

	text := r.repo.EncodingText()
	fmt.Printf("\n%s\n", cyan("Current encoding:"))
	if strings.TrimSpace(text) == "" {
		fmt.Println("(empty)")
	} else {
		fmt.Println(text)
	}

	fmt.Printf("%s\n", cyan("Current instance:"))
	if inst := r.repo.Instance(); inst != nil {
		fmt.Println(inst.Facts)
		if r.repo.InstanceStale() {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("%s instance is stale and will be regenerated next round\n", yellow("!"))
		}
	} else {
		fmt.Println("(none)")
	}
	fmt.Println()
	return nil
}

// cmdStatus shows the session overview.
func (r *REPL) cmdStatus(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n\n", cyan("Session Status"))
	fmt.Printf("  Rounds completed:  %d\n", r.ctrl.Round())
	fmt.Printf("  Rule groups:       %s\n", strings.Join(r.repo.Encoding().GroupIDs(), ", "))

	constraints := r.ctrl.Constraints()
	if len(constraints) == 0 {
		fmt.Println("  Constraints:       (none)")
	} else {
		fmt.Println("  Constraints:")
		for _, c := range constraints {
			fmt.Printf("    %s [%s] %s\n", c.ID, r.colorStatus(c.Status), c.Statement)
		}
	}
	if len(r.feedback) > 0 {
		fmt.Printf("  Queued guidance:   %d item(s)\n", len(r.feedback))
	}
	if r.costs != nil {
		snap := r.costs.Snapshot()
		fmt.Printf("  Model usage:       %d call(s), %d in / %d out tokens, ~$%.4f",
			snap.Calls, snap.InputTokens, snap.OutputTokens, snap.SpendUSD)
		if snap.BudgetUSD > 0 {
			fmt.Printf(" of $%.2f [%s]", snap.BudgetUSD, snap.Status)
		}
		fmt.Println()
	}
	fmt.Println()
	return nil
}

// cmdSave writes the current encoding to a file, recording the save when
// the audit store is available.
func (r *REPL) cmdSave(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: save <file>")
	}
	dest := args[0]

	text := r.repo.EncodingText()
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("nothing to save: encoding is empty")
	}

	if r.audit != nil {
		if err := r.audit.SaveEncoding(r.ctx, dest, text); err != nil {
			return err
		}
	} else if err := writeFile(dest, text); err != nil {
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s encoding saved to %s\n", green("✓"), dest)
	return nil
}

func (r *REPL) printSummary(summary *types.RoundSummary) {
	passed, failed, errored := summary.Counts()

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s solver=%s answer_sets=%d\n", cyan(fmt.Sprintf("Round %d:", summary.Round)),
		summary.SolveStatus, summary.AnswerSets)

	for _, v := range summary.Verdicts {
		line := fmt.Sprintf("  %s: %s", v.ConstraintID, v.Outcome)
		if v.Details != "" {
			line += fmt.Sprintf(" (%s)", v.Details)
		}
		switch v.Outcome {
		case types.VerdictPassed:
			color.Green(line)
		case types.VerdictFailed:
			color.Red(line)
		default:
			color.Yellow(line)
		}
	}
	fmt.Printf("  passed=%d failed=%d errored=%d\n\n", passed, failed, errored)
}

func (r *REPL) colorStatus(s types.ConstraintStatus) string {
	switch s {
	case types.ConstraintPassed:
		return color.GreenString(string(s))
	case types.ConstraintFailed:
		return color.RedString(string(s))
	case types.ConstraintCheckErrored:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}
