package ui

import (
	"io"
	"strings"

	"github.com/fatih/color"
)

// NotFound formats a lookup failure with "did you mean" suggestions and a hint
//
//	✗ RESOURCE NOT FOUND: prodcut
//	   Did you mean: product?
//	   → See all resources: pim schema
func NotFound(kind, name string, suggestions []string, hint string, noColor bool) string {
	var b strings.Builder
	paint(noColor, color.FgRed, color.Bold).Fprintf(&b, "✗ %s NOT FOUND: %s\n", strings.ToUpper(kind), name)
	if len(suggestions) > 0 {
		paint(noColor, color.FgYellow).Fprintf(&b, "   Did you mean: %s?\n", strings.Join(suggestions, ", "))
	}
	if hint != "" {
		paint(noColor, color.FgCyan).Fprintf(&b, "   → %s\n", hint)
	}
	return b.String()
}

// WriteError writes an error line in red
func WriteError(w io.Writer, err error, noColor bool) {
	paint(noColor, color.FgRed, color.Bold).Fprintf(w, "Error: %v\n", err)
}

// Success formats a confirmation line
func Success(msg string, noColor bool) string {
	return paint(noColor, color.FgGreen, color.Bold).Sprintf("✓ %s", msg)
}
