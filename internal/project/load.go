package project

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"modmap/internal/diag"
	"modmap/internal/label"
	"modmap/internal/modulemap"
)

// rawTarget is the format-independent shape of a target declaration, filled
// by the TOML and HCL decoders.
type rawTarget struct {
	Label       string
	Rule        string
	Kind        *string
	Tags        []string
	Hdrs        []string
	TextualHdrs []string
	Deps        *[]string
	ModuleName  string
	Generated   []string
}

// LoadGraph reads a graph file, choosing the decoder by extension.
//
// Syntax errors abort the load. Problems with individual targets (bad labels,
// bad header paths) are reported through r and the offending target or
// entry is dropped, so the rest of the graph can still be processed.
func LoadGraph(path string, r diag.Reporter) (*Graph, error) {
	if r == nil {
		r = diag.NopReporter{}
	}
	var (
		ws  Workspace
		raw []rawTarget
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		ws, raw, err = decodeTOML(path, r)
	case ".hcl":
		ws, raw, err = decodeHCL(path)
	default:
		return nil, fmt.Errorf("%s: unsupported graph file (expected .toml or .hcl)", path)
	}
	if err != nil {
		return nil, err
	}
	digest, err := FileDigest(path)
	if err != nil {
		return nil, err
	}

	g := &Graph{Path: path, Digest: digest, Workspace: ws, Targets: make([]TargetMeta, 0, len(raw))}
	for i := range raw {
		meta, ok := convertTarget(path, &raw[i], r)
		if ok {
			g.Targets = append(g.Targets, meta)
		}
	}
	return g, nil
}

func convertTarget(source string, raw *rawTarget, r diag.Reporter) (TargetMeta, bool) {
	if strings.TrimSpace(raw.Label) == "" {
		r.Report(diag.New(diag.SevError, diag.LoadMissingLabel, source, "target entry has no label"))
		return TargetMeta{}, false
	}
	l, err := label.Parse(raw.Label)
	if err != nil {
		r.Report(diag.New(diag.SevError, diag.LoadBadLabel, source, err.Error()))
		return TargetMeta{}, false
	}

	meta := TargetMeta{
		Label:       l,
		Rule:        strings.TrimSpace(raw.Rule),
		Tags:        raw.Tags,
		HasDepsAttr: raw.Deps != nil,
		ModuleName:  norm.NFC.String(strings.TrimSpace(raw.ModuleName)),
		Generated:   raw.Generated,
		Source:      source,
	}

	if raw.Deps != nil {
		meta.Deps = make([]label.Label, 0, len(*raw.Deps))
		for _, dep := range *raw.Deps {
			dl, err := label.ParseRelative(l, dep)
			if err != nil {
				r.Report(diag.New(diag.SevError, diag.LoadBadLabel, l.String(), fmt.Sprintf("bad dependency: %v", err)))
				continue
			}
			meta.Deps = append(meta.Deps, dl)
		}
	}

	meta.Hdrs = validHeaders(l, raw.Hdrs, r)
	meta.TextualHdrs = validHeaders(l, raw.TextualHdrs, r)

	if raw.Kind != nil {
		kind, err := ParseKind(*raw.Kind)
		if err != nil {
			r.Report(diag.New(diag.SevError, diag.LoadUnknownField, l.String(), err.Error()))
			return TargetMeta{}, false
		}
		meta.Kind = kind
	} else {
		meta.Kind = ResolveKind(meta.Rule, meta.ModuleName, meta.HasDepsAttr)
	}

	if meta.Kind != modulemap.KindHeaderLibrary && len(meta.Hdrs)+len(meta.TextualHdrs) > 0 {
		r.Report(diag.New(diag.SevWarning, diag.LoadHeadersIgnored, l.String(),
			fmt.Sprintf("headers are ignored for %s targets", meta.Kind)))
	}
	return meta, true
}

func validHeaders(owner label.Label, hdrs []string, r diag.Reporter) []string {
	if len(hdrs) == 0 {
		return nil
	}
	out := make([]string, 0, len(hdrs))
	for _, h := range hdrs {
		// headers are compared and rendered in NFC
		h = norm.NFC.String(h)
		if err := ValidateHeaderPath(h); err != nil {
			r.Report(diag.New(diag.SevError, diag.LoadBadHeaderPath, owner.String(), err.Error()))
			continue
		}
		out = append(out, h)
	}
	return out
}
