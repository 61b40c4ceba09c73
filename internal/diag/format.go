package diag

import (
	"strings"
)

// Format renders diagnostics one per line:
//
//	error GRAPH2001 //app:main depends on undeclared target //lib:missing
//
// Notes follow their diagnostic on lines starting with "note". Multi-line
// messages are folded onto one line.
func Format(diags []Diagnostic, includeNotes bool) string {
	var sb strings.Builder
	for i, d := range diags {
		if i > 0 {
			sb.WriteByte('\n')
		}
		writeLine(&sb, d.Severity.String(), d.Code.ID(), d.Subject, d.Message)
		if !includeNotes {
			continue
		}
		for _, n := range d.Notes {
			sb.WriteByte('\n')
			writeLine(&sb, "note", d.Code.ID(), n.Subject, n.Msg)
		}
	}
	return sb.String()
}

func writeLine(sb *strings.Builder, sev, code, subject, msg string) {
	sb.WriteString(sev)
	sb.WriteByte(' ')
	sb.WriteString(code)
	if subject != "" {
		sb.WriteByte(' ')
		sb.WriteString(subject)
	}
	sb.WriteByte(' ')
	sb.WriteString(strings.Join(strings.Fields(msg), " "))
}
