package middleware

import (
	"path/filepath"
	"strings"
)

// Upload input hygiene utilities

// SanitizeFileName strips any directory components and control characters
// from a client-supplied filename. Returns "" when nothing usable remains,
// which callers must treat as a validation failure.
func SanitizeFileName(name string) string {
	// Browsers may send full paths; keep only the base name
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = SanitizeString(name)

	if name == "" || name == "." || name == ".." || strings.Contains(name, "..") {
		return ""
	}
	return name
}

// SanitizeString removes null bytes and control characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}
