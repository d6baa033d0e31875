package ai

import (
	"fmt"
	"strings"

	"github.com/aspforge/aspforge/internal/types"
)

// GenerationError reports model output that could not be parsed into the
// expected structure. It carries the raw text so the caller can surface
// it instead of dropping it.
type GenerationError struct {
	Operation string
	Reason    string
	RawText   string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Operation, e.Reason)
}

// GroupSpec is a rule group as the model proposes it.
type GroupSpec struct {
	ID        string `json:"id"`
	Rules     string `json:"rules"`
	Rationale string `json:"rationale"`
}

// IncrementResponse is the model's answer to an increment request: rule
// groups to add or replace, plus the instance facts that match the grown
// encoding.
type IncrementResponse struct {
	NewGroups     []GroupSpec `json:"new_groups"`
	ReplaceGroups []GroupSpec `json:"replace_groups"`
	InstanceFacts string      `json:"instance_facts"`
	Commentary    string      `json:"commentary"`
}

// InstanceResponse carries regenerated or simplified instance facts.
type InstanceResponse struct {
	Facts      string `json:"facts"`
	Commentary string `json:"commentary"`
}

// CheckerResponse carries a generated checker program.
type CheckerResponse struct {
	Language string `json:"language"`
	Program  string `json:"program"`
}

// SessionPreamble is the system turn that opens every session. It fixes
// the model's role and the JSON contract for increments up front so
// per-round prompts stay short.
func SessionPreamble() string {
	return `You are an expert in Answer Set Programming (ASP) using clingo syntax.
You help the user grow a correct ASP encoding for their combinatorial problem,
one small increment at a time. Each increment adds or replaces named rule
groups and supplies a small example instance (ground facts) that exercises the
rules added so far.

Rules for every increment:
- Rule group identifiers are lowercase snake_case, unique, and stable.
- Each group is a few related rules with a one-sentence rationale.
- The instance must be ground facts only, small enough to solve instantly.
- Keep earlier groups unchanged unless the user's feedback demands a fix;
  fixing a group means replacing it under the same identifier.

When asked for an increment, respond with JSON only, no prose outside it:
{
  "new_groups": [{"id": "...", "rules": "...", "rationale": "..."}],
  "replace_groups": [{"id": "...", "rules": "...", "rationale": "..."}],
  "instance_facts": "...",
  "commentary": "one short paragraph on what this increment covers"
}`
}

// BuildProblemPrompt opens round one from the user's problem statement.
func BuildProblemPrompt(problem string) string {
	return fmt.Sprintf(`Problem to encode:

%s

Produce the first increment: the most fundamental rule groups (domain
predicates and the core generator), plus a minimal instance. Respond with
the JSON increment format.`, strings.TrimSpace(problem))
}

// BuildIncrementPrompt requests the next increment. feedback is the
// user's steering text for the round, possibly empty.
func BuildIncrementPrompt(feedback string) string {
	var b strings.Builder
	b.WriteString("Produce the next increment, building on the validation results above.")
	if strings.TrimSpace(feedback) != "" {
		b.WriteString("\n\nUser guidance for this round:\n")
		b.WriteString(strings.TrimSpace(feedback))
	}
	b.WriteString("\n\nRespond with the JSON increment format.")
	return b.String()
}

// BuildGuidancePrompt carries user guidance into the opening round, where
// the seed turns already hold the increment request itself.
func BuildGuidancePrompt(feedback string) string {
	return fmt.Sprintf("User guidance for this round:\n%s\n\nRespond with the JSON increment format.",
		strings.TrimSpace(feedback))
}

// BuildInstancePrompt requests fresh instance facts for the current
// encoding. Used when the stored instance has gone stale against a newer
// encoding revision.
func BuildInstancePrompt(encodingText string) string {
	return fmt.Sprintf(`The current ASP encoding is:

%s

Generate a small example instance (ground facts only) consistent with this
encoding's predicates, suitable for quickly testing it. Respond with JSON
only: {"facts": "...", "commentary": "..."}`, encodingText)
}

// BuildSimplifyInstancePrompt asks for a smaller instance after the
// solver timed out on the current one.
func BuildSimplifyInstancePrompt(encodingText, facts string) string {
	return fmt.Sprintf(`The solver timed out on the instance below. Produce a strictly smaller
instance (fewer objects, fewer facts) that still exercises the encoding.

Encoding:

%s

Instance that timed out:

%s

Respond with JSON only: {"facts": "...", "commentary": "..."}`, encodingText, facts)
}

// BuildCheckerPrompt asks for an independent checking program for one
// constraint. The encoding's rule text is deliberately not included: the
// checker must test the stated intent against solver output, not re-derive
// whatever the encoding happens to compute.
func BuildCheckerPrompt(statement, instanceFacts string, language types.CheckerLanguage) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Write an independent checking program for this constraint on an ASP
answer set:

  %s

The problem instance (ground facts) is:

%s

`, strings.TrimSpace(statement), instanceFacts)

	switch language {
	case types.CheckerDatalog:
		b.WriteString(`Write the checker as Datalog rules. Every atom of the answer set is loaded
as a fact (same predicate names and arguments). Derive the zero-argument
predicate 'violation()' if and only if the constraint is violated. Declare
any helper predicates you need.

Respond with JSON only: {"language": "datalog", "program": "..."}`)
	default:
		b.WriteString(`Write the checker in JavaScript. A global 'solverOutput' holds an array of
answer sets; each answer set is an array of atom strings like "shift(e1,s2)".
Call pass() if the constraint holds for every answer set, otherwise call
fail(details) with a short explanation naming the violating atoms. Do not
reference any ASP rules; work only from the atoms and the constraint as
stated.

Respond with JSON only: {"language": "javascript", "program": "..."}`)
	}
	return b.String()
}

// BuildDigestPrompt asks for a terse digest of turns about to be
// discarded by compaction. Plain text response, not JSON.
func BuildDigestPrompt(turns []types.Turn) string {
	var b strings.Builder
	b.WriteString(`Summarize the key decisions in the conversation excerpt below in at most
eight short bullet points. Keep only decisions that affect how the ASP
encoding should evolve (chosen representations, rejected approaches, fixed
bugs). Plain text bullets, nothing else.

Excerpt:

`)
	for _, t := range turns {
		fmt.Fprintf(&b, "[%s] %s\n\n", t.Role, truncate(t.Content, 2000))
	}
	return b.String()
}

// ParseIncrement parses an increment response, strictly: a response with
// no usable groups and no parse is malformed, never partially accepted.
func ParseIncrement(text string) (IncrementResponse, error) {
	result := Parse[IncrementResponse](text, "increment")
	if !result.Success {
		return IncrementResponse{}, &GenerationError{
			Operation: "increment generation",
			Reason:    result.Error,
			RawText:   text,
		}
	}
	inc := result.Data
	if len(inc.NewGroups) == 0 && len(inc.ReplaceGroups) == 0 {
		return IncrementResponse{}, &GenerationError{
			Operation: "increment generation",
			Reason:    "response contains no rule groups",
			RawText:   text,
		}
	}
	for _, g := range append(append([]GroupSpec{}, inc.NewGroups...), inc.ReplaceGroups...) {
		if strings.TrimSpace(g.ID) == "" || strings.TrimSpace(g.Rules) == "" {
			return IncrementResponse{}, &GenerationError{
				Operation: "increment generation",
				Reason:    fmt.Sprintf("rule group %q missing id or rules", g.ID),
				RawText:   text,
			}
		}
	}
	return inc, nil
}

// ParseInstance parses an instance response.
func ParseInstance(text string) (InstanceResponse, error) {
	result := Parse[InstanceResponse](text, "instance")
	if !result.Success {
		return InstanceResponse{}, &GenerationError{
			Operation: "instance generation",
			Reason:    result.Error,
			RawText:   text,
		}
	}
	if strings.TrimSpace(result.Data.Facts) == "" {
		return InstanceResponse{}, &GenerationError{
			Operation: "instance generation",
			Reason:    "response contains no facts",
			RawText:   text,
		}
	}
	return result.Data, nil
}

// ParseChecker parses a checker response.
func ParseChecker(text string) (CheckerResponse, error) {
	result := Parse[CheckerResponse](text, "checker")
	if !result.Success {
		return CheckerResponse{}, &GenerationError{
			Operation: "checker generation",
			Reason:    result.Error,
			RawText:   text,
		}
	}
	if strings.TrimSpace(result.Data.Program) == "" {
		return CheckerResponse{}, &GenerationError{
			Operation: "checker generation",
			Reason:    "response contains no program",
			RawText:   text,
		}
	}
	return result.Data, nil
}
