package solver

import (
	"encoding/json"
	"fmt"
	"strings"
)

// clingoOutput mirrors the subset of clingo's --outf=2 JSON document we
// consume. Witnesses live under Call; each witness's Value is the list of
// shown atoms.
type clingoOutput struct {
	Result string `json:"Result"`
	Call   []struct {
		Witnesses []struct {
			Value []string `json:"Value"`
		} `json:"Witnesses"`
	} `json:"Call"`
	Models struct {
		Number int    `json:"Number"`
		More   string `json:"More"`
	} `json:"Models"`
}

// parseClingoJSON converts clingo's JSON document into a Result.
func parseClingoJSON(data []byte) (*Result, error) {
	var out clingoOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode clingo JSON: %w", err)
	}

	result := &Result{More: strings.EqualFold(out.Models.More, "yes")}

	switch out.Result {
	case "SATISFIABLE", "OPTIMUM FOUND":
		result.Status = StatusSAT
	case "UNSATISFIABLE":
		result.Status = StatusUNSAT
	case "UNKNOWN", "":
		result.Status = StatusUnknown
	default:
		return nil, fmt.Errorf("unrecognized solver result %q", out.Result)
	}

	for _, call := range out.Call {
		for _, w := range call.Witnesses {
			atoms := make([]string, len(w.Value))
			copy(atoms, w.Value)
			result.AnswerSets = append(result.AnswerSets, AnswerSet{Atoms: atoms})
		}
	}

	if result.Status == StatusSAT && len(result.AnswerSets) == 0 {
		// SAT with no witnesses happens with --quiet or project settings we
		// never pass; treat it as unreadable rather than invent a model.
		return nil, fmt.Errorf("satisfiable result carried no witnesses")
	}

	return result, nil
}

// isSyntaxStderr recognizes grounder diagnostics in clingo's stderr.
func isSyntaxStderr(stderr string) bool {
	for _, marker := range []string{"syntax error", "error: ", "unsafe variables", "lexer error"} {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}

// trimStderr bounds diagnostics carried inside errors; grounder output on a
// badly broken program can be enormous.
func trimStderr(s string) string {
	const max = 2000
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n... (truncated)"
}
