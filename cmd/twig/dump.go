package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgavlin/twig/ast"
	"github.com/pgavlin/twig/internal/errors"
	"github.com/pgavlin/twig/parser"
	"github.com/pgavlin/twig/token"
)

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <template>",
		Short: "Parse a template and print its syntax tree",
		Args:  cobra.ExactArgs(1),
		RunE:  runDump,
	}
	return cmd
}

func runDump(cmd *cobra.Command, args []string) error {
	ld, _, err := newLoader()
	if err != nil {
		return err
	}
	name := args[0]
	data, ok := ld.Load(name)
	if !ok {
		return errors.New(errors.Loader, errors.TemplateNotFound, token.Position{}, "template %q not found", name)
	}
	root, err := parser.Parse(string(data))
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), parser.FormatError(err, colorEnabled()))
		return fmt.Errorf("parsing %s failed", name)
	}
	return ast.Dump(cmd.OutOrStdout(), root)
}
