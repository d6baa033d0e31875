package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aspforge/aspforge/internal/ai"
	"github.com/aspforge/aspforge/internal/audit"
	"github.com/aspforge/aspforge/internal/checker"
	"github.com/aspforge/aspforge/internal/config"
	"github.com/aspforge/aspforge/internal/controller"
	"github.com/aspforge/aspforge/internal/conversation"
	"github.com/aspforge/aspforge/internal/cost"
	"github.com/aspforge/aspforge/internal/repl"
	"github.com/aspforge/aspforge/internal/repo"
	"github.com/aspforge/aspforge/internal/solver"
	"github.com/aspforge/aspforge/internal/types"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

var (
	sessionProblem string
	sessionNoAudit bool
)

var sessionCmd = &cobra.Command{
	Use:   "session [problem-file]",
	Short: "Start an interactive encoding session",
	Long: `Start an interactive session for one combinatorial problem.

The problem statement seeds the first round. Provide it as a file argument
or with --problem; with neither, you will be prompted for it.

In the session shell, 'continue' runs a round, free text steers the next
increment, 'constraint <text>' adds a validated constraint, and
'save <file>' writes the encoding out. Type 'help' there for the rest.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		problem, err := resolveProblem(args)
		if err != nil {
			return err
		}

		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		cfg, err := config.Load(cwd)
		if err != nil {
			return err
		}

		costCfg := cost.DefaultConfig()
		costCfg.SessionBudgetUSD = cfg.Model.SessionBudgetUSD
		costs := cost.NewTracker(costCfg)

		retry := ai.DefaultRetryConfig()
		retry.MaxRetries = cfg.Model.MaxRetries
		client, err := ai.NewClient(&ai.Config{
			Model:       cfg.Model.Default,
			SimpleModel: cfg.Model.Simple,
			Retry:       retry,
			RateLimit:   rate.Limit(cfg.Model.RateLimitPerSec),
			Costs:       costs,
		})
		if err != nil {
			return err
		}

		clingo := solver.NewClingo(cfg.Solver.Path)
		clingo.Timeout = time.Duration(cfg.Solver.TimeoutSeconds) * time.Second

		var auditStore *audit.Store
		if !sessionNoAudit {
			path := dbPath
			if path == "" {
				path = audit.DiscoverPath(cwd)
			}
			auditStore, err = audit.Open(path, problem)
			if err != nil {
				return err
			}
			defer auditStore.Close()
			fmt.Printf("audit trail: %s (session %s)\n", path, auditStore.SessionID())
		}

		store := conversation.NewStore()
		repository := repo.New()

		ctrlCfg := controller.Config{
			Model:   client,
			Solver:  clingo,
			Store:   store,
			Repo:    repository,
			Runners: checker.DefaultRunners(time.Duration(cfg.Checker.BudgetSeconds) * time.Second),
			Policy: conversation.Policy{
				MaxTokens:   cfg.Compaction.MaxTokens,
				MaxTurns:    cfg.Compaction.MaxTurns,
				RetainTurns: cfg.Compaction.RetainTurns,
			},
			SolveOptions:    solver.Options{MaxModels: cfg.Solver.MaxModels},
			Workers:         cfg.Checker.Workers,
			CheckerLanguage: types.CheckerLanguage(cfg.Checker.Language),
		}
		if auditStore != nil {
			ctrlCfg.Recorder = auditStore
		}
		ctrl, err := controller.New(ctrlCfg)
		if err != nil {
			return err
		}
		ctrl.Seed(problem)

		shell, err := repl.New(&repl.Config{
			Controller: ctrl,
			Repo:       repository,
			Audit:      auditStore,
			Costs:      costs,
		})
		if err != nil {
			return err
		}

		// Ctrl+C during a round cancels between rounds; committed state
		// survives for inspection or resumption.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return shell.Run(ctx)
	},
}

// resolveProblem picks the problem statement from the file argument, the
// --problem flag, or an interactive prompt, in that order.
func resolveProblem(args []string) (string, error) {
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to read problem file: %w", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return "", fmt.Errorf("problem file %s is empty", args[0])
		}
		return string(data), nil
	}
	if strings.TrimSpace(sessionProblem) != "" {
		return sessionProblem, nil
	}

	fmt.Print("Describe the combinatorial problem to encode:\n> ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read problem statement: %w", err)
	}
	problem := strings.TrimSpace(line)
	if problem == "" {
		return "", fmt.Errorf("a problem statement is required")
	}
	return problem, nil
}

func init() {
	sessionCmd.Flags().StringVar(&sessionProblem, "problem", "", "problem statement text")
	sessionCmd.Flags().BoolVar(&sessionNoAudit, "no-audit", false, "disable the audit database")
	rootCmd.AddCommand(sessionCmd)
}
