package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aspforge/aspforge/internal/solver"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	solveModels  int
	solveTimeout int
	solveConsts  []string
	solveCheck   bool
	solvePath    string
)

var solveCmd = &cobra.Command{
	Use:   "solve <encoding.lp> [instance.lp]",
	Short: "Run clingo on encoding and instance files",
	Long: `One-shot solver invocation outside a session, useful for inspecting a
saved encoding.

Example:
  aspforge solve shifts.lp instance.lp --models 3
  aspforge solve shifts.lp --check
  aspforge solve shifts.lp instance.lp --const max_shifts=2`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		encoding, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read encoding: %w", err)
		}
		var instance []byte
		if len(args) == 2 {
			instance, err = os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read instance: %w", err)
			}
		}

		clingo := solver.NewClingo(solvePath)
		if solveTimeout > 0 {
			clingo.Timeout = time.Duration(solveTimeout) * time.Second
		}

		ctx := context.Background()
		if solveCheck {
			if err := clingo.CheckSyntax(ctx, string(encoding), string(instance)); err != nil {
				return err
			}
			fmt.Printf("%s syntax OK\n", color.GreenString("✓"))
			return nil
		}

		consts := make(map[string]string)
		for _, kv := range solveConsts {
			key, value, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("invalid --const %q (want name=value)", kv)
			}
			consts[key] = value
		}

		result, err := clingo.Solve(ctx, string(encoding), string(instance), solver.Options{
			MaxModels: solveModels,
			Consts:    consts,
		})
		if err != nil {
			return err
		}

		switch result.Status {
		case solver.StatusSAT:
			fmt.Printf("%s %d answer set(s)", color.GreenString("SAT:"), len(result.AnswerSets))
			if result.More {
				fmt.Print(" (more exist)")
			}
			fmt.Println()
			for i, as := range result.AnswerSets {
				fmt.Printf("Answer %d: %s\n", i+1, strings.Join(as.Atoms, " "))
			}
		case solver.StatusUNSAT:
			color.Red("UNSAT")
		default:
			color.Yellow("UNKNOWN")
		}
		return nil
	},
}

func init() {
	solveCmd.Flags().IntVar(&solveModels, "models", 1, "answer sets to enumerate (0 = all)")
	solveCmd.Flags().IntVar(&solveTimeout, "timeout", 0, "wall-clock budget in seconds")
	solveCmd.Flags().StringArrayVar(&solveConsts, "const", nil, "grounder constant name=value (repeatable)")
	solveCmd.Flags().BoolVar(&solveCheck, "check", false, "syntax check only, do not solve")
	solveCmd.Flags().StringVar(&solvePath, "clingo", "clingo", "clingo binary path")
	rootCmd.AddCommand(solveCmd)
}
