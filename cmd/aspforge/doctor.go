package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"

	"github.com/aspforge/aspforge/internal/audit"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"
)

// Oldest clingo release whose --outf=2 JSON output we rely on.
const minClingoVersion = "v5.4.0"

var clingoVersionRegexp = regexp.MustCompile(`clingo version (\d+\.\d+\.\d+)`)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check installation and environment health",
	Long: `Run health checks to diagnose common configuration and environment issues.

This command checks for:
- clingo binary presence and version
- ANTHROPIC_API_KEY
- Audit database accessibility

Exit codes:
  0 - All checks passed
  1 - One or more checks failed`,
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		clingoPath, _ := cmd.Flags().GetString("clingo")

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		fmt.Printf("Running aspforge health checks...\n\n")

		var failures []string
		var warnings []string

		// Check 1: clingo binary
		fmt.Printf("%s Solver binary\n", cyan("→"))
		resolved, err := exec.LookPath(clingoPath)
		if err != nil {
			failures = append(failures, fmt.Sprintf("clingo not found: %v", err))
			fmt.Printf("  %s clingo not found in PATH\n", red("✗"))
			fmt.Printf("    Install clingo (https://potassco.org) or pass --clingo\n")
		} else {
			fmt.Printf("  %s Found clingo: %s\n", green("✓"), resolved)
		}

		// Check 2: clingo version
		if err == nil {
			fmt.Printf("%s Solver version\n", cyan("→"))
			out, err := exec.Command(resolved, "--version").Output()
			if match := clingoVersionRegexp.FindSubmatch(out); err != nil || match == nil {
				warnings = append(warnings, "cannot determine clingo version")
				fmt.Printf("  %s Cannot determine clingo version\n", yellow("⚠"))
				if verbose && err != nil {
					fmt.Printf("    Error: %v\n", err)
				}
			} else {
				version := "v" + string(match[1])
				if semver.Compare(version, minClingoVersion) < 0 {
					failures = append(failures, fmt.Sprintf("clingo %s is older than %s", version, minClingoVersion))
					fmt.Printf("  %s clingo %s is older than required %s\n", red("✗"), version, minClingoVersion)
				} else {
					fmt.Printf("  %s clingo %s\n", green("✓"), version)
				}
			}
		}

		// Check 3: API key
		fmt.Printf("%s Environment variables\n", cyan("→"))
		if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey == "" {
			failures = append(failures, "ANTHROPIC_API_KEY not set")
			fmt.Printf("  %s ANTHROPIC_API_KEY not set\n", red("✗"))
			fmt.Printf("    Encoding synthesis will not work\n")
		} else {
			fmt.Printf("  %s ANTHROPIC_API_KEY is set\n", green("✓"))
			if verbose && len(apiKey) > 14 {
				fmt.Printf("    Key: %s...%s\n", apiKey[:10], apiKey[len(apiKey)-4:])
			}
		}

		// Check 4: Audit database
		fmt.Printf("%s Audit database\n", cyan("→"))
		path := dbPath
		if path == "" {
			cwd, _ := os.Getwd()
			path = audit.DiscoverPath(cwd)
		}
		if _, err := os.Stat(path); err != nil {
			fmt.Printf("  %s No audit database yet (created on first session)\n", green("✓"))
			if verbose {
				fmt.Printf("    Would use: %s\n", path)
			}
		} else if err := audit.Probe(context.Background(), path); err != nil {
			failures = append(failures, fmt.Sprintf("audit database unhealthy: %v", err))
			fmt.Printf("  %s Audit database unhealthy\n", red("✗"))
			if verbose {
				fmt.Printf("    Error: %v\n", err)
			}
		} else {
			fmt.Printf("  %s Audit database accessible: %s\n", green("✓"), path)
		}

		// Summary
		fmt.Printf("\n")
		if len(failures) == 0 && len(warnings) == 0 {
			fmt.Printf("%s All checks passed\n", green("✓"))
			return
		}
		if len(warnings) > 0 {
			fmt.Printf("%s %d warning(s):\n", yellow("⚠"), len(warnings))
			for _, w := range warnings {
				fmt.Printf("  - %s\n", w)
			}
		}
		if len(failures) > 0 {
			fmt.Printf("%s %d check(s) failed:\n", red("✗"), len(failures))
			for _, f := range failures {
				fmt.Printf("  - %s\n", f)
			}
			os.Exit(1)
		}
	},
}

func init() {
	doctorCmd.Flags().BoolP("verbose", "v", false, "show detailed diagnostic output")
	doctorCmd.Flags().String("clingo", "clingo", "clingo binary path")
	rootCmd.AddCommand(doctorCmd)
}
