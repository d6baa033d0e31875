package ai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Pre-compiled patterns for model-response cleanup. Compiling per parse
// is an order of magnitude slower.
var (
	// Code fences around the payload: ```json\n{...}\n```, ```{...}```, etc.
	fenceWholeRegex = regexp.MustCompile(`(?s)^` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}\s*$`)
	fenceAnyRegex   = regexp.MustCompile(`(?s)` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}`)

	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)
	unquotedKeyRegex   = regexp.MustCompile(`([{,]\s*)([a-zA-Z_$][a-zA-Z0-9_$]*)\s*:`)
	lineCommentRegex   = regexp.MustCompile(`(?m)//.*$`)
	blockCommentRegex  = regexp.MustCompile(`(?s)/\*.*?\*/`)

	// Greedy so nested structures are captured whole.
	jsonObjectRegex = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	jsonArrayRegex  = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
)

// maxResponseSize bounds the text we attempt to parse.
const maxResponseSize = 10 * 1024 * 1024

// ParseResult reports the outcome of extracting a typed JSON payload
// from a model response.
type ParseResult[T any] struct {
	Success      bool
	Data         T
	Error        string
	OriginalText string
}

// Parse extracts a JSON value of type T from a model response, working
// around the usual formatting quirks. Strategy sequence:
//
//  1. Direct JSON parse
//  2. Strip markdown code fences and retry
//  3. Fix common JSON issues (trailing commas, comments, unquoted keys)
//  4. Extract a JSON object/array embedded in prose
//
// context names the operation for error messages and debug logs.
func Parse[T any](text, context string) ParseResult[T] {
	if len(text) > maxResponseSize {
		return parseFailure[T](
			fmt.Sprintf("response exceeds size limit (%d > %d bytes)", len(text), maxResponseSize),
			text[:1000]+"...", context)
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return parseFailure[T]("empty response", text, context)
	}

	if data, err := tryUnmarshal[T](trimmed); err == nil {
		return ParseResult[T]{Success: true, Data: data, OriginalText: text}
	} else {
		slog.Debug("direct JSON parse failed, trying cleanup strategies",
			"error", err.Error(),
			"preview", truncate(text, 100),
			"context", context)
	}

	withoutFences := stripCodeFences(trimmed)
	if withoutFences != trimmed {
		if data, err := tryUnmarshal[T](withoutFences); err == nil {
			return ParseResult[T]{Success: true, Data: data, OriginalText: text}
		}
	}

	cleaned := cleanupJSON(withoutFences)
	if data, err := tryUnmarshal[T](cleaned); err == nil {
		return ParseResult[T]{Success: true, Data: data, OriginalText: text}
	}

	if extracted := extractJSON(cleaned); extracted != "" {
		if data, err := tryUnmarshal[T](extracted); err == nil {
			return ParseResult[T]{Success: true, Data: data, OriginalText: text}
		}
	}

	return parseFailure[T]("all JSON parsing strategies failed", text, context)
}

func tryUnmarshal[T any](text string) (T, error) {
	var result T
	err := json.Unmarshal([]byte(text), &result)
	return result, err
}

// stripCodeFences removes markdown fences wrapping the payload. Handles
// triple backticks with optional language tags, and single backticks
// wrapping the whole content.
func stripCodeFences(text string) string {
	cleaned := fenceWholeRegex.ReplaceAllString(text, "$1")
	if cleaned == text {
		cleaned = fenceAnyRegex.ReplaceAllString(text, "$1")
	}
	if strings.HasPrefix(cleaned, "`") && strings.HasSuffix(cleaned, "`") {
		cleaned = strings.TrimSuffix(strings.TrimPrefix(cleaned, "`"), "`")
	}
	return strings.TrimSpace(cleaned)
}

// cleanupJSON fixes trailing commas, JS-style comments, and unquoted
// object keys. Single quotes are left alone: converting them would
// corrupt valid JSON containing apostrophes.
func cleanupJSON(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = trailingCommaRegex.ReplaceAllString(cleaned, "$1")
	cleaned = unquotedKeyRegex.ReplaceAllString(cleaned, `$1"$2":`)
	cleaned = lineCommentRegex.ReplaceAllString(cleaned, "")
	cleaned = blockCommentRegex.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// extractJSON pulls a JSON object or array out of surrounding prose.
// The first-character check keeps an array response from being mangled
// into its first element.
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) > 0 {
		switch trimmed[0] {
		case '[':
			if match := jsonArrayRegex.FindString(text); match != "" {
				return match
			}
		case '{':
			if match := jsonObjectRegex.FindString(text); match != "" {
				return match
			}
		}
	}
	if match := jsonObjectRegex.FindString(text); match != "" {
		return match
	}
	return jsonArrayRegex.FindString(text)
}

func parseFailure[T any](message, text, context string) ParseResult[T] {
	var zero T
	if context != "" {
		message = context + ": " + message
	}
	return ParseResult[T]{Success: false, Data: zero, Error: message, OriginalText: text}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
