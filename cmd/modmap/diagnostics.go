package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"modmap/internal/diag"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	noteColor    = color.New(color.FgHiBlack)
	okColor      = color.New(color.FgGreen, color.Bold)
)

// printDiagnostics writes items in diag.Format layout with the leading
// severity word colored. Quiet output keeps errors only.
func printDiagnostics(out io.Writer, items []diag.Diagnostic, quiet bool) error {
	for _, d := range items {
		if quiet && d.Severity < diag.SevError {
			continue
		}
		for _, line := range strings.Split(diag.Format([]diag.Diagnostic{d}, true), "\n") {
			word, rest, _ := strings.Cut(line, " ")
			if _, err := fmt.Fprintf(out, "%s %s\n", wordColor(word).Sprint(word), rest); err != nil {
				return err
			}
		}
	}
	return nil
}

func wordColor(word string) *color.Color {
	switch word {
	case "error":
		return errorColor
	case "warning":
		return warningColor
	case "note":
		return noteColor
	default:
		return infoColor
	}
}
