package project

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"modmap/internal/diag"
)

type tomlGraph struct {
	Workspace tomlWorkspace `toml:"workspace"`
	Targets   []tomlTarget  `toml:"target"`
}

type tomlWorkspace struct {
	Name              string `toml:"name"`
	OutputRoot        string `toml:"output_root"`
	WorkspaceRelative *bool  `toml:"workspace_relative"`
}

type tomlTarget struct {
	Label       string    `toml:"label"`
	Rule        string    `toml:"rule"`
	Kind        *string   `toml:"kind"`
	Tags        []string  `toml:"tags"`
	Hdrs        []string  `toml:"hdrs"`
	TextualHdrs []string  `toml:"textual_hdrs"`
	Deps        *[]string `toml:"deps"` // nil when the attribute is absent
	ModuleName  string    `toml:"module_name"`
	Generated   []string  `toml:"generated"`
}

// decodeTOML parses a modmap.toml:
//
//	[workspace]
//	name = "demo"
//	output_root = "bazel-bin"
//	workspace_relative = false
//
//	[[target]]
//	label = "//third_party/zlib:zlib"
//	rule = "cc_library"
//	hdrs = ["third_party/zlib/zlib.h"]
//	deps = []
func decodeTOML(path string, r diag.Reporter) (Workspace, []rawTarget, error) {
	var cfg tomlGraph
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Workspace{}, nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	for _, key := range meta.Undecoded() {
		r.Report(diag.New(diag.SevWarning, diag.LoadUnknownField, path, fmt.Sprintf("unknown key %q", key.String())))
	}

	ws := Workspace{
		Name:              cfg.Workspace.Name,
		OutputRoot:        cfg.Workspace.OutputRoot,
		WorkspaceRelative: cfg.Workspace.WorkspaceRelative,
	}
	raw := make([]rawTarget, len(cfg.Targets))
	for i, t := range cfg.Targets {
		raw[i] = rawTarget{
			Label:       t.Label,
			Rule:        t.Rule,
			Kind:        t.Kind,
			Tags:        t.Tags,
			Hdrs:        t.Hdrs,
			TextualHdrs: t.TextualHdrs,
			Deps:        t.Deps,
			ModuleName:  t.ModuleName,
			Generated:   t.Generated,
		}
	}
	return ws, raw, nil
}
