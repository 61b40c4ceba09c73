package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"modmap/internal/buildpipeline"
	"modmap/internal/diag"
	"modmap/internal/prof"
	"modmap/internal/project"
	"modmap/internal/snapshot"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] [graph]",
	Short: "Generate modulemaps for a build graph",
	Long: `Generate modulemaps for every header library in a build graph and
propagate module descriptors to dependent targets.

Without an argument the graph is looked up as modmap.toml or modmap.hcl in
the current directory and its parents.`,
	Args: cobra.MaximumNArgs(1),
	RunE: buildExecution,
}

func init() {
	buildCmd.Flags().StringP("out", "o", "", "directory standing for the build root (default: the graph's directory, env "+envOutputDir+")")
	buildCmd.Flags().Bool("workspace-relative", false, "embed header paths relative to the build root (env "+envWorkspaceRelative+")")
	buildCmd.Flags().IntP("jobs", "j", 0, "parallel target visits (default: GOMAXPROCS, env "+envJobs+")")
	buildCmd.Flags().Bool("dry-run", false, "compute everything but write nothing")
	buildCmd.Flags().Bool("print", false, "print generated modulemaps to stdout")
	buildCmd.Flags().String("snapshot", "", "snapshot path (default: <out>/.modmap/snapshot.mp)")
	buildCmd.Flags().Bool("no-snapshot", false, "do not write a snapshot")
	buildCmd.Flags().String("ui", "auto", "user interface (auto|on|off)")
	buildCmd.Flags().String("cpuprofile", "", "write a CPU profile to file")
	buildCmd.Flags().String("memprofile", "", "write a heap profile to file")
	buildCmd.Flags().String("runtime-trace", "", "write a Go runtime trace to file")
}

func buildExecution(cmd *cobra.Command, args []string) error {
	outFlag, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	jobsFlag, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	workspaceRelative, err := cmd.Flags().GetBool("workspace-relative")
	if err != nil {
		return err
	}
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}
	printMaps, err := cmd.Flags().GetBool("print")
	if err != nil {
		return err
	}
	snapshotPath, err := cmd.Flags().GetString("snapshot")
	if err != nil {
		return err
	}
	noSnapshot, err := cmd.Flags().GetBool("no-snapshot")
	if err != nil {
		return err
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	uiModeValue, err := readUIMode(uiValue)
	if err != nil {
		return err
	}
	var profOpts prof.Options
	if profOpts.CPU, err = cmd.Flags().GetString("cpuprofile"); err != nil {
		return err
	}
	if profOpts.Mem, err = cmd.Flags().GetString("memprofile"); err != nil {
		return err
	}
	if profOpts.Trace, err = cmd.Flags().GetString("runtime-trace"); err != nil {
		return err
	}

	root := cmd.Root().PersistentFlags()
	quiet, err := root.GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	showTimings, err := root.GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	maxDiagnostics, err := root.GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	traceOutput, err := root.GetString("trace")
	if err != nil {
		return fmt.Errorf("failed to get trace flag: %w", err)
	}

	graphPath, err := resolveGraphPath(args)
	if err != nil {
		return err
	}
	env, err := loadEnvDefaults()
	if err != nil {
		return err
	}

	req := buildpipeline.Request{
		GraphPath:      graphPath,
		OutputDir:      env.OutputDir,
		Jobs:           env.Jobs,
		DryRun:         dryRun,
		MaxDiagnostics: maxDiagnostics,
	}
	req.WorkspaceRelative = env.WorkspaceRelative
	if cmd.Flags().Changed("workspace-relative") {
		req.WorkspaceRelative = &workspaceRelative
	}
	if cmd.Flags().Changed("out") {
		req.OutputDir = outFlag
	}
	if cmd.Flags().Changed("jobs") {
		req.Jobs = jobsFlag
	}

	profiler, err := prof.Start(profOpts)
	if err != nil {
		return err
	}
	defer func() {
		if stopErr := profiler.Stop(); stopErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "profile: %v\n", stopErr)
		}
	}()

	useTUI := shouldUseTUI(uiModeValue, quiet, traceOutput == "-")
	var res buildpipeline.Result
	if useTUI {
		res, err = runPipelineWithUI(cmd.Context(), "modmap build", &req)
	} else {
		res, err = buildpipeline.Run(cmd.Context(), &req)
	}

	stdout := cmd.OutOrStdout()
	if res.Bag != nil {
		if printErr := printDiagnostics(cmd.ErrOrStderr(), res.Bag.Items(), quiet); printErr != nil {
			return printErr
		}
	}
	if showTimings {
		if timingErr := printStageTimings(stdout, res.Timings); timingErr != nil {
			return timingErr
		}
	}
	if err != nil {
		if errors.Is(err, buildpipeline.ErrGraphErrors) {
			return fmt.Errorf("%s: %d error(s), nothing written", graphPath, res.Bag.Count(diag.SevError))
		}
		return err
	}

	if printMaps {
		if err := printModulemaps(stdout, &res); err != nil {
			return err
		}
	}
	if !dryRun && !noSnapshot {
		if snapshotPath == "" {
			snapshotPath = snapshot.DefaultPath(res.OutputDir)
		}
		if err := snapshot.Save(snapshotPath, snapshot.FromResult(&res)); err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
	}
	if quiet {
		return nil
	}
	return printBuildSummary(stdout, &res, dryRun)
}

// resolveGraphPath returns the graph named on the command line or the
// nearest workspace file above the working directory.
func resolveGraphPath(args []string) (string, error) {
	if len(args) > 0 {
		info, err := os.Stat(args[0])
		if err != nil {
			return "", err
		}
		if !info.IsDir() {
			return args[0], nil
		}
		return project.FindWorkspaceFile(args[0])
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return project.FindWorkspaceFile(cwd)
}

func printModulemaps(out io.Writer, res *buildpipeline.Result) error {
	for _, a := range res.Written {
		if _, err := fmt.Fprintf(out, "# %s (%s)\n%s\n", a.Path, a.Owner, res.Contents[a.Path]); err != nil {
			return err
		}
	}
	return nil
}

func printBuildSummary(out io.Writer, res *buildpipeline.Result, dryRun bool) error {
	verb := "wrote"
	if dryRun {
		verb = "would write"
	}
	summary := fmt.Sprintf("%s %d modulemap(s)", verb, len(res.Written))
	if res.Unchanged > 0 {
		summary += fmt.Sprintf(", %d unchanged", res.Unchanged)
	}
	if len(res.Skipped) > 0 {
		summary += fmt.Sprintf(", %d target(s) skipped", len(res.Skipped))
	}
	_, err := fmt.Fprintf(out, "%s %s for %d target(s) under %s\n",
		okColor.Sprint("done:"), summary, len(res.Order), formatOutputDir(res.OutputDir))
	return err
}

func formatOutputDir(dir string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return dir
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	rel, err := filepath.Rel(cwd, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return abs
	}
	return filepath.ToSlash(rel)
}
