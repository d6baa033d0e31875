package solver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"
)

const (
	// DefaultTimeout is the wall-clock budget for one solve call.
	DefaultTimeout = 20 * time.Second

	// absoluteModelCap bounds enumeration even when the caller asks for
	// all models. Unbounded enumeration on a buggy encoding can produce
	// astronomically many models.
	absoluteModelCap = 10000
)

// Clingo shells out to the clingo binary with JSON output.
type Clingo struct {
	// Path is the clingo executable; defaults to "clingo" on $PATH.
	Path string

	// Timeout is the default wall-clock budget, overridable per call.
	Timeout time.Duration
}

var _ Solver = (*Clingo)(nil)

// NewClingo returns a Clingo adapter with defaults.
func NewClingo(path string) *Clingo {
	if path == "" {
		path = "clingo"
	}
	return &Clingo{Path: path, Timeout: DefaultTimeout}
}

// Solve implements Solver.
func (c *Clingo) Solve(ctx context.Context, encoding, instance string, opts Options) (*Result, error) {
	maxModels := opts.MaxModels
	if maxModels <= 0 || maxModels > absoluteModelCap {
		maxModels = absoluteModelCap
	}

	args := []string{"--outf=2", "--models", fmt.Sprintf("%d", maxModels)}
	args = append(args, constArgs(opts.Consts)...)

	stdout, stderr, err := c.run(ctx, opts.Timeout, args, encoding, instance)
	if err != nil {
		return nil, err
	}

	result, perr := parseClingoJSON(stdout)
	if perr != nil {
		return nil, &Error{Kind: KindExec, Msg: fmt.Sprintf("unreadable solver output: %v", perr), Stderr: stderr}
	}
	return result, nil
}

// CheckSyntax implements Solver. Grounding without solving surfaces parse
// errors and unsafe-variable diagnostics without paying for search.
func (c *Clingo) CheckSyntax(ctx context.Context, encoding, instance string) error {
	args := []string{"--mode=gringo", "--text"}
	_, _, err := c.run(ctx, 0, args, encoding, instance)
	return err
}

// run writes the program parts to temp files, invokes clingo, and maps
// process-level failures to the error taxonomy. clingo's exit codes encode
// solve results (10 SAT, 20 UNSAT, 30 exhausted), so a non-zero exit alone
// is not an error; anything without parseable output is.
func (c *Clingo) run(ctx context.Context, timeout time.Duration, args []string, encoding, instance string) (stdout []byte, stderr string, err error) {
	if timeout <= 0 {
		timeout = c.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dir, err := os.MkdirTemp("", "aspforge-solve-")
	if err != nil {
		return nil, "", &Error{Kind: KindExec, Msg: fmt.Sprintf("temp dir: %v", err)}
	}
	defer os.RemoveAll(dir)

	encPath := filepath.Join(dir, "encoding.lp")
	if err := os.WriteFile(encPath, []byte(encoding), 0644); err != nil {
		return nil, "", &Error{Kind: KindExec, Msg: fmt.Sprintf("write encoding: %v", err)}
	}
	files := []string{encPath}

	if instance != "" {
		instPath := filepath.Join(dir, "instance.lp")
		if err := os.WriteFile(instPath, []byte(instance), 0644); err != nil {
			return nil, "", &Error{Kind: KindExec, Msg: fmt.Sprintf("write instance: %v", err)}
		}
		files = append(files, instPath)
	}

	cmd := exec.CommandContext(runCtx, c.Path, append(args, files...)...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, "", &Error{Kind: KindTimeout, Msg: fmt.Sprintf("solve exceeded %v", timeout)}
	}
	if ctx.Err() != nil {
		return nil, "", ctx.Err()
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			code := exitErr.ExitCode()
			// 10/20/30 are solve results, not failures.
			if code == 10 || code == 20 || code == 30 {
				return outBuf.Bytes(), errBuf.String(), nil
			}
			if isSyntaxStderr(errBuf.String()) {
				return nil, "", &Error{Kind: KindSyntax, Msg: "program rejected by grounder", Stderr: trimStderr(errBuf.String())}
			}
			return nil, "", &Error{Kind: KindExec, Msg: fmt.Sprintf("clingo exited %d", code), Stderr: trimStderr(errBuf.String())}
		}
		return nil, "", &Error{Kind: KindExec, Msg: fmt.Sprintf("clingo failed to start: %v", runErr)}
	}

	return outBuf.Bytes(), errBuf.String(), nil
}

func constArgs(consts map[string]string) []string {
	if len(consts) == 0 {
		return nil
	}
	// Deterministic command lines keep logs and the audit trail diffable.
	keys := make([]string, 0, len(consts))
	for k := range consts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		args = append(args, "--const", fmt.Sprintf("%s=%s", k, consts[k]))
	}
	return args
}
