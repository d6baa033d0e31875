// Package repl is the interactive session shell: the user steers the
// refinement loop from here with per-round continue/stop/save directives
// and free-text guidance.
package repl

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aspforge/aspforge/internal/audit"
	"github.com/aspforge/aspforge/internal/controller"
	"github.com/aspforge/aspforge/internal/cost"
	"github.com/aspforge/aspforge/internal/repo"
	"github.com/chzyer/readline"
	"github.com/fatih/color"
)

// REPL represents the interactive shell.
type REPL struct {
	ctrl  *controller.Controller
	repo  *repo.Repository
	audit *audit.Store  // optional
	costs *cost.Tracker // optional

	rl       *readline.Instance
	ctx      context.Context
	commands map[string]CommandHandler

	// feedback accumulates free-text guidance until the next round runs.
	feedback []string
}

// CommandHandler handles a specific command.
type CommandHandler func(args []string) error

// Config holds REPL configuration.
type Config struct {
	Controller *controller.Controller
	Repo       *repo.Repository
	Audit      *audit.Store
	Costs      *cost.Tracker
}

// New creates a new REPL instance.
func New(cfg *Config) (*REPL, error) {
	if cfg.Controller == nil || cfg.Repo == nil {
		return nil, fmt.Errorf("controller and repo are required")
	}

	r := &REPL{
		ctrl:     cfg.Controller,
		repo:     cfg.Repo,
		audit:    cfg.Audit,
		costs:    cfg.Costs,
		commands: make(map[string]CommandHandler),
	}
	r.registerCommands()
	return r, nil
}

// Run starts the REPL loop. It returns when the user stops the session or
// closes the input.
func (r *REPL) Run(ctx context.Context) error {
	r.ctx = ctx

	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("aspforge> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	r.printWelcome()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			} else if err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := r.processInput(line); err != nil {
			if err == io.EOF {
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s %v\n", red("Error:"), err)
		}
	}
}

// processInput dispatches one line: a registered command, or free text
// which becomes guidance for the next round.
func (r *REPL) processInput(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	if handler, ok := r.commands[parts[0]]; ok {
		return handler(parts[1:])
	}

	r.feedback = append(r.feedback, line)
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Printf("%s guidance queued for the next round (run 'continue')\n", yellow("Noted:"))
	return nil
}

func (r *REPL) registerCommands() {
	r.commands["help"] = r.cmdHelp
	r.commands["?"] = r.cmdHelp
	r.commands["continue"] = r.cmdContinue
	r.commands["c"] = r.cmdContinue
	r.commands["constraint"] = r.cmdConstraint
	r.commands["show"] = r.cmdShow
	r.commands["undo"] = r.cmdUndo
	r.commands["status"] = r.cmdStatus
	r.commands["save"] = r.cmdSave
	r.commands["stop"] = r.cmdStop
	r.commands["exit"] = r.cmdStop
	r.commands["quit"] = r.cmdStop
}

func (r *REPL) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n", cyan("aspforge - interactive ASP encoding assistant"))
	fmt.Println("The encoding grows one round at a time; you decide when it is done.")
	fmt.Println()
	fmt.Println("Type 'continue' to run a round, 'help' for commands, 'stop' to quit")
	fmt.Println()
}

func (r *REPL) cmdHelp(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s\n\n", cyan("Available Commands:"))

	commands := []struct {
		name string
		desc string
	}{
		{"continue, c", "Run the next round (increment, solve, validate)"},
		{"constraint <text>", "Add a constraint to validate every round"},
		{"show", "Print the current encoding and instance"},
		{"undo", "Remove the most recently added rule group"},
		{"status", "Show round count and constraint statuses"},
		{"save <file>", "Write the current encoding to a file"},
		{"stop, exit, quit", "End the session"},
		{"help, ?", "Show this help message"},
	}
	for _, cmd := range commands {
		fmt.Printf("  %-20s %s\n", green(cmd.name), cmd.desc)
	}

	fmt.Println()
	fmt.Println("Anything else you type becomes guidance for the next round, e.g.")
	fmt.Println("  'prefer a weighted penalty over a hard constraint'")
	fmt.Println()
	return nil
}

func (r *REPL) cmdStop(args []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s Session ended.\n", green("✓"))
	r.rl.Close()
	return io.EOF
}
