package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"modmap/internal/label"
	"modmap/internal/modulemap"
)

var nameCmd = &cobra.Command{
	Use:   "name [flags] <label>",
	Short: "Print the module name derived for a target",
	Long: `Print the module name a header library would get. A
` + modulemap.ModuleNameTag + `=<name> tag overrides the derived name; targets whose name
contains '/' or '+' get no module unless they carry one.`,
	Args: cobra.ExactArgs(1),
	RunE: nameExecution,
}

func init() {
	nameCmd.Flags().StringArrayP("tag", "t", nil, "target tag (repeatable)")
}

func nameExecution(cmd *cobra.Command, args []string) error {
	tags, err := cmd.Flags().GetStringArray("tag")
	if err != nil {
		return err
	}
	l, err := label.Parse(args[0])
	if err != nil {
		return err
	}
	name, ok := modulemap.DeriveModuleName(l, tags)
	if !ok {
		return fmt.Errorf("%s: no module name can be derived; add a %s=<name> tag", l, modulemap.ModuleNameTag)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), name)
	return err
}
