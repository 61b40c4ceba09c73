package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"modmap/internal/buildpipeline"
	"modmap/internal/label"
	"modmap/internal/modulemap"
	"modmap/internal/project"
)

var renderCmd = &cobra.Command{
	Use:   "render [flags] <label>",
	Short: "Render the modulemap of a single header library",
	Long: `Render the modulemap a header library target would get, without a graph
file. The output goes to stdout unless --write is given.`,
	Args: cobra.ExactArgs(1),
	RunE: renderExecution,
}

func init() {
	renderCmd.Flags().StringArrayP("tag", "t", nil, "target tag (repeatable)")
	renderCmd.Flags().StringArray("hdr", nil, "public header, relative to the build root (repeatable)")
	renderCmd.Flags().StringArray("textual-hdr", nil, "textual header, relative to the build root (repeatable)")
	renderCmd.Flags().String("output-root", project.DefaultOutputRoot, "build-root relative directory for generated files")
	renderCmd.Flags().Bool("workspace-relative", false, "embed header paths relative to the build root")
	renderCmd.Flags().String("write", "", "write the modulemap below this directory instead of printing it")
}

func renderExecution(cmd *cobra.Command, args []string) error {
	tags, err := cmd.Flags().GetStringArray("tag")
	if err != nil {
		return err
	}
	hdrs, err := cmd.Flags().GetStringArray("hdr")
	if err != nil {
		return err
	}
	textual, err := cmd.Flags().GetStringArray("textual-hdr")
	if err != nil {
		return err
	}
	outputRoot, err := cmd.Flags().GetString("output-root")
	if err != nil {
		return err
	}
	workspaceRelative, err := cmd.Flags().GetBool("workspace-relative")
	if err != nil {
		return err
	}
	writeDir, err := cmd.Flags().GetString("write")
	if err != nil {
		return err
	}

	l, err := label.Parse(args[0])
	if err != nil {
		return err
	}
	for _, h := range append(append([]string(nil), hdrs...), textual...) {
		if err := project.ValidateHeaderPath(h); err != nil {
			return err
		}
	}

	node := &modulemap.Node{
		Label:          l,
		Kind:           modulemap.KindHeaderLibrary,
		Tags:           tags,
		Headers:        hdrs,
		TextualHeaders: textual,
	}
	cfg := modulemap.Config{WorkspaceRelative: workspaceRelative, OutputRoot: outputRoot}

	var w modulemap.ArtifactWriter = buildpipeline.NewMemoryWriter()
	if writeDir != "" {
		w = buildpipeline.DirWriter{Root: writeDir}
	}

	res, err := modulemap.NewPropagator(cfg, w).Visit(node, nil)
	if err != nil {
		return err
	}
	if res.Skipped != nil {
		return fmt.Errorf("%s: %s", l, res.Skipped.Reason)
	}
	if writeDir != "" {
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okColor.Sprint("wrote"), res.Written.Path)
		return err
	}
	_, err = cmd.OutOrStdout().Write(res.Content)
	return err
}
