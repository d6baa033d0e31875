package checker

import (
	"fmt"
	"strconv"
	"strings"
)

// atomToFact translates one ASP answer-set atom ("shift(e1,s2)") into a
// Datalog fact clause for the checker engine. Lowercase identifiers
// become name constants, integers stay numbers, everything else (quoted
// or nested terms) becomes a string constant.
func atomToFact(atom string) (string, error) {
	atom = strings.TrimSpace(atom)
	if atom == "" {
		return "", fmt.Errorf("empty atom")
	}

	open := strings.IndexByte(atom, '(')
	if open == -1 {
		if !isIdentifier(atom) {
			return "", fmt.Errorf("malformed atom %q", atom)
		}
		return atom + "().", nil
	}
	if !strings.HasSuffix(atom, ")") {
		return "", fmt.Errorf("malformed atom %q", atom)
	}

	name := atom[:open]
	if !isIdentifier(name) {
		return "", fmt.Errorf("malformed atom %q", atom)
	}

	args, err := splitArgs(atom[open+1 : len(atom)-1])
	if err != nil {
		return "", fmt.Errorf("atom %q: %w", atom, err)
	}

	rendered := make([]string, len(args))
	for i, arg := range args {
		rendered[i] = renderTerm(arg)
	}
	return fmt.Sprintf("%s(%s).", name, strings.Join(rendered, ", ")), nil
}

// splitArgs splits an argument list at top-level commas, honoring nested
// parentheses and quoted strings.
func splitArgs(s string) ([]string, error) {
	var args []string
	depth := 0
	inQuote := false
	start := 0

	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case inQuote:
			if c == '\\' {
				i++
			} else if c == '"' {
				inQuote = false
			}
		case c == '"':
			inQuote = true
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses")
			}
		case c == ',' && depth == 0:
			args = append(args, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if depth != 0 || inQuote {
		return nil, fmt.Errorf("unbalanced parentheses or quotes")
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" || len(args) > 0 {
		args = append(args, tail)
	}
	return args, nil
}

func renderTerm(term string) string {
	if term == "" {
		return `""`
	}
	if _, err := strconv.ParseInt(term, 10, 64); err == nil {
		return term
	}
	if strings.HasPrefix(term, `"`) && strings.HasSuffix(term, `"`) && len(term) >= 2 {
		return term
	}
	if isIdentifier(term) {
		return "/" + term
	}
	// Nested function terms and anything else survive as opaque strings.
	return strconv.Quote(term)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	if s[0] < 'a' || s[0] > 'z' {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' {
			continue
		}
		return false
	}
	return true
}
