package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pgavlin/twig/parser"
)

func newLintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint <template> [template...]",
		Short: "Compile one or more templates and report the first error in each",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runLint,
	}
	return cmd
}

func runLint(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}

	failed := 0
	for _, name := range args {
		if _, err := e.Program(name); err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", name, parser.FormatError(err, colorEnabled()))
			continue
		}
		ok := color.New(color.FgGreen).Sprint("ok")
		if !colorEnabled() {
			ok = "ok"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, ok)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d template(s) failed to compile", failed, len(args))
	}
	return nil
}
