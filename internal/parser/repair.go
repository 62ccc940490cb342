package parser

import (
	"regexp"
	"strings"
)

var (
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	bareKeyRe       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
)

// StripFence removes a single enclosing fenced block (triple-backtick
// markers with an optional language tag) and returns the inner text.
// ok=false when the text is not fenced.
func StripFence(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return "", false
	}
	trimmed = strings.TrimPrefix(trimmed, "```")

	// Drop the optional language tag on the opening line
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(trimmed[:idx])
		if firstLine == "" || isLanguageTag(firstLine) {
			trimmed = trimmed[idx+1:]
		}
	}

	end := strings.LastIndex(trimmed, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(trimmed[:end]), true
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return s != ""
}

// SliceBraces returns the text between the first '{' and the last '}',
// tolerating leading and trailing prose around a JSON object.
// ok=false when no such slice exists.
func SliceBraces(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

// RepairJSON applies conservative textual repairs to almost-JSON:
// trailing commas before '}' or ']' are removed, single-quoted strings are
// normalized to double quotes, and bare object keys are quoted. The input
// is never shrunk beyond these rewrites, so valid JSON passes unchanged.
func RepairJSON(text string) string {
	text = trailingCommaRe.ReplaceAllString(text, "$1")
	text = normalizeQuotes(text)
	text = bareKeyRe.ReplaceAllString(text, `$1"$2":`)
	return text
}

// normalizeQuotes rewrites single-quote string delimiters to double
// quotes, leaving apostrophes inside double-quoted strings alone.
func normalizeQuotes(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	inDouble := false
	inSingle := false
	escaped := false

	for _, r := range text {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		switch r {
		case '\\':
			b.WriteRune(r)
			escaped = true
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
			b.WriteRune(r)
		case '\'':
			if inDouble {
				b.WriteRune(r)
			} else {
				inSingle = !inSingle
				b.WriteRune('"')
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
