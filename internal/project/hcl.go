package project

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// hclHeader is decoded first; target blocks are decoded from Remain once the
// workspace settings are known.
type hclHeader struct {
	Workspace *hclWorkspace `hcl:"workspace,block"`
	Remain    hcl.Body      `hcl:",remain"`
}

type hclTargets struct {
	Targets []*hclTarget `hcl:"target,block"`
}

type hclWorkspace struct {
	Name              *string `hcl:"name,optional"`
	OutputRoot        *string `hcl:"output_root,optional"`
	WorkspaceRelative *bool   `hcl:"workspace_relative,optional"`
}

type hclTarget struct {
	Label       string    `hcl:"label,label"`
	Rule        *string   `hcl:"rule,optional"`
	Kind        *string   `hcl:"kind,optional"`
	Tags        []string  `hcl:"tags,optional"`
	Hdrs        []string  `hcl:"hdrs,optional"`
	TextualHdrs []string  `hcl:"textual_hdrs,optional"`
	Deps        *[]string `hcl:"deps,optional"`
	ModuleName  *string   `hcl:"module_name,optional"`
	Generated   []string  `hcl:"generated,optional"`
}

// decodeHCL parses a modmap.hcl:
//
//	workspace {
//	  output_root = "bazel-bin"
//	}
//
//	target "//third_party/zlib:zlib" {
//	  rule = "cc_library"
//	  hdrs = ["third_party/zlib/zlib.h"]
//	}
//
// Target attributes may reference `output_root` and `workspace` (the
// workspace name), e.g. generated = ["${output_root}/app/Core.modulemap"].
func decodeHCL(path string) (Workspace, []rawTarget, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return Workspace{}, nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	var header hclHeader
	diags = gohcl.DecodeBody(file.Body, nil, &header)
	if diags.HasErrors() {
		return Workspace{}, nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	var ws Workspace
	if header.Workspace != nil {
		ws.Name = deref(header.Workspace.Name)
		ws.OutputRoot = deref(header.Workspace.OutputRoot)
		ws.WorkspaceRelative = header.Workspace.WorkspaceRelative
	}

	var body hclTargets
	diags = gohcl.DecodeBody(header.Remain, evalContext(ws), &body)
	if diags.HasErrors() {
		return Workspace{}, nil, fmt.Errorf("failed to decode HCL targets in %s: %w", path, diags)
	}

	raw := make([]rawTarget, len(body.Targets))
	for i, t := range body.Targets {
		raw[i] = rawTarget{
			Label:       t.Label,
			Rule:        deref(t.Rule),
			Kind:        t.Kind,
			Tags:        t.Tags,
			Hdrs:        t.Hdrs,
			TextualHdrs: t.TextualHdrs,
			Deps:        t.Deps,
			ModuleName:  deref(t.ModuleName),
			Generated:   t.Generated,
		}
	}
	return ws, raw, nil
}

func evalContext(ws Workspace) *hcl.EvalContext {
	return &hcl.EvalContext{Variables: map[string]cty.Value{
		"output_root": cty.StringVal(ws.OutputRootOrDefault()),
		"workspace":   cty.StringVal(ws.Name),
	}}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
