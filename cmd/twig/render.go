package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgavlin/twig/parser"
)

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <template>",
		Short: "Render a template against --var values and print the result",
		Args:  cobra.ExactArgs(1),
		RunE:  runRender,
	}
	return cmd
}

func runRender(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	out, err := e.Render(args[0], nil)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), parser.FormatError(err, colorEnabled()))
		return fmt.Errorf("rendering %s failed", args[0])
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}
