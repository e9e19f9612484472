package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
	"github.com/spf13/cobra"

	"github.com/pgavlin/twig/engine"
	"github.com/pgavlin/twig/loader"
)

var (
	flagConfig      string
	flagSearchPaths []string
	flagSuffix      string
	flagLocale      string
	flagCacheSize   int
	flagVars        []string
	flagNoColor     bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "twig",
		Short:         "Render, lint and inspect Twig-compatible templates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flagConfig, "config", "twig.yaml", "path to a twig.yaml config file")
	cmd.PersistentFlags().StringSliceVar(&flagSearchPaths, "path", nil, "template search path (repeatable, highest priority first)")
	cmd.PersistentFlags().StringVar(&flagSuffix, "suffix", "", "suffix appended to template names that lack it")
	cmd.PersistentFlags().StringVar(&flagLocale, "locale", "", "locale passed to date/number_format")
	cmd.PersistentFlags().IntVar(&flagCacheSize, "cache-size", 64, "max compiled templates held at once (0 = unbounded)")
	cmd.PersistentFlags().StringArrayVar(&flagVars, "var", nil, "name=value, repeatable")
	cmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colorized diagnostics")

	cmd.AddCommand(newRenderCmd())
	cmd.AddCommand(newLintCmd())
	cmd.AddCommand(newDumpCmd())
	return cmd
}

// newLoader resolves twig.yaml plus --path/--suffix into a ready
// loader.Loader and the rest of the decoded config, shared by every
// subcommand that needs template bytes (render, lint, dump all do).
func newLoader() (*loader.FileLoader, fileConfig, error) {
	cfg, err := loadConfig(flagConfig)
	if err != nil {
		return nil, cfg, fmt.Errorf("reading %s: %w", flagConfig, err)
	}

	paths := cfg.SearchPaths
	if len(flagSearchPaths) > 0 {
		paths = flagSearchPaths
	}
	if len(paths) == 0 {
		paths = []string{"."}
	}
	suffix := cfg.Suffix
	if flagSuffix != "" {
		suffix = flagSuffix
	}
	return loader.NewFileLoader(paths, suffix), cfg, nil
}

// newEngine builds an *engine.Engine from twig.yaml plus whatever
// --path/--suffix/--locale/--cache-size/--var flags the caller passed
// over it, in that precedence order (config file first, flags win).
func newEngine() (*engine.Engine, error) {
	ld, cfg, err := newLoader()
	if err != nil {
		return nil, err
	}

	econf := cfg.Config
	if flagLocale != "" {
		econf.Locale = flagLocale
	}
	if flagCacheSize != 64 {
		econf.MaxCacheSize = flagCacheSize
	} else if econf.MaxCacheSize == 0 {
		econf.MaxCacheSize = flagCacheSize
	}

	e := engine.New(ld, econf, nil)

	for name, raw := range cfg.Variables {
		e.SetValue(name, fromInterface(raw))
	}
	for name, v := range parseVarFlags(flagVars) {
		e.SetValue(name, v)
	}
	return e, nil
}

func colorEnabled() bool {
	return !flagNoColor
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(colorable.NewColorableStderr(), color.New(color.FgRed, color.Bold).Sprint("error:"), err)
		os.Exit(1)
	}
}
