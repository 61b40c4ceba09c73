package diag

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	// SevInfo is for informational diagnostics.
	SevInfo Severity = iota
	// SevWarning is for warning diagnostics.
	SevWarning
	// SevError fails the run.
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "info"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	}
	return "unknown"
}

// Note adds context about another subject, e.g. the first declaration of a
// duplicated target.
type Note struct {
	Subject string
	Msg     string
}

// Diagnostic is one finding.
type Diagnostic struct {
	Severity Severity
	Code     Code
	// Subject is what the finding is about: a target label or a file path.
	Subject string
	Message string
	Notes   []Note
}

// New creates a diagnostic.
func New(sev Severity, code Code, subject, msg string) Diagnostic {
	return Diagnostic{Severity: sev, Code: code, Subject: subject, Message: msg}
}

// WithNote returns a copy with an extra note.
func (d Diagnostic) WithNote(subject, msg string) Diagnostic {
	d.Notes = append(append([]Note(nil), d.Notes...), Note{Subject: subject, Msg: msg})
	return d
}
