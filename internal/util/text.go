package util

import (
	"strings"
	"unicode"
)

// CleanText trims s and drops control and invisible formatting characters.
// Use it for single-line fields such as names and addresses.
func CleanText(s string) string {
	return clean(s, false)
}

// CleanMultiline is CleanText that keeps line breaks and tabs.
func CleanMultiline(s string) string {
	return clean(s, true)
}

func clean(s string, keepLines bool) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ""
	}

	builder := strings.Builder{}
	builder.Grow(len(trimmed))

	for _, char := range trimmed {
		if keepLines && (char == '\n' || char == '\t') {
			builder.WriteRune(char)
			continue
		}
		if char == '\r' && keepLines {
			continue
		}
		if unicode.IsControl(char) || isInvisibleUnicode(char) {
			continue
		}
		builder.WriteRune(char)
	}

	return strings.TrimSpace(builder.String())
}

// CleanTextPtr applies CleanText to an optional field.
func CleanTextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	cleaned := CleanText(*s)
	return &cleaned
}

// isInvisibleUnicode returns true for zero-width, formatting, and other
// invisible Unicode characters.
func isInvisibleUnicode(r rune) bool {
	switch r {
	case
		'\u200B', // Zero-Width Space
		'\u200C', // Zero-Width Non-Joiner
		'\u200D', // Zero-Width Joiner
		'\u200E', // Left-to-Right Mark
		'\u200F', // Right-to-Left Mark
		'\u2060', // Word Joiner
		'\uFEFF', // Zero-Width No-Break Space / BOM
		'\uFFF9', // Interlinear Annotation Anchor
		'\uFFFA', // Interlinear Annotation Separator
		'\uFFFB': // Interlinear Annotation Terminator
		return true
	}

	return unicode.Is(unicode.Cf, r)
}
