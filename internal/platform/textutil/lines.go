// Package textutil has small text helpers shared by extraction and the CLI.
package textutil

import "strings"

const utf8BOM = "\uFEFF"

// FirstNonEmptyLine returns the first line containing non-space characters,
// trimmed. OCR output is reduced to this line before conversion.
func FirstNonEmptyLine(s string) string {
	for line := range strings.Lines(s) {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// StripBOM removes a leading UTF-8 byte order mark.
func StripBOM(s string) string {
	return strings.TrimPrefix(s, utf8BOM)
}
