package parser

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/pgavlin/twig/internal/errors"
)

// FormatError renders a parse (or compile) error for a terminal, in the
// style `cmd/twig` uses for its lint/render diagnostics: component and
// kind colorized, followed by the source location and message. Errors
// that did not originate from this module's own *errors.Error are just
// passed through via their own Error() string.
func FormatError(e error, colored bool) string {
	terr, ok := e.(*errors.Error)
	if !ok {
		return e.Error()
	}
	if !colored {
		return fmt.Sprintf("%s: %s at %s: %s", terr.Component(), terr.Kind(), terr.Location(), terr.Message)
	}
	tag := color.New(color.FgRed, color.Bold).Sprintf("%s/%s", terr.Component(), terr.Kind())
	loc := color.New(color.FgYellow).Sprintf("%s", terr.Location())
	return fmt.Sprintf("%s %s: %s", tag, loc, terr.Message)
}
