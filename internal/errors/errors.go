// Package errors defines the typed error value returned by every stage
// of the template engine: a (component, kind, message, location) tuple.
// Wrap additionally attaches an underlying cause that stays inspectable
// via errors.As/errors.Is; the engine's own stages build their errors
// with New.
package errors

import (
	"fmt"

	"golang.org/x/xerrors"

	"github.com/pgavlin/twig/token"
)

// Component names the subsystem that raised the error.
type Component int

const (
	None Component = iota
	Engine
	Loader
	Tokenizer
	Parser
	Compiler
	Renderer
)

func (c Component) String() string {
	switch c {
	case Engine:
		return "Engine"
	case Loader:
		return "Loader"
	case Tokenizer:
		return "Tokenizer"
	case Parser:
		return "Parser"
	case Compiler:
		return "Compiler"
	case Renderer:
		return "Renderer"
	default:
		return "None"
	}
}

// Kind enumerates the closed set of error codes.
type Kind int

const (
	NoError Kind = iota
	TemplateNotFound
	UnknownToken
	SyntaxError
	BadEndblockName
	NonConstantExpression
	EmptyTemplateName
	NoParentBlock
	InvalidRegularExpression
	InvalidEscapeMode
	NoProgram
	VariableNotSet
)

var kindNames = map[Kind]string{
	NoError:                  "NoError",
	TemplateNotFound:         "TemplateNotFound",
	UnknownToken:             "UnknownToken",
	SyntaxError:              "SyntaxError",
	BadEndblockName:          "BadEndblockName",
	NonConstantExpression:    "NonConstantExpression",
	EmptyTemplateName:        "EmptyTemplateName",
	NoParentBlock:            "NoParentBlock",
	InvalidRegularExpression: "InvalidRegularExpression",
	InvalidEscapeMode:        "InvalidEscapeMode",
	NoProgram:                "NoProgram",
	VariableNotSet:           "VariableNotSet",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// Error is the value every package boundary in this module returns on
// failure. It satisfies the standard error interface and xerrors'
// Wrapper interface so callers can unwrap to an underlying cause.
type Error struct {
	Comp    Component
	K       Kind
	Message string
	Loc     token.Position
	cause   error
}

// New builds an Error with a formatted message.
func New(comp Component, kind Kind, loc token.Position, format string, args ...interface{}) *Error {
	return &Error{Comp: comp, K: kind, Message: fmt.Sprintf(format, args...), Loc: loc}
}

// Wrap builds an Error that carries an underlying cause, inspectable via
// xerrors.As/errors.As and surfaced in Unwrap.
func Wrap(comp Component, kind Kind, loc token.Position, cause error, format string, args ...interface{}) *Error {
	return &Error{Comp: comp, K: kind, Message: fmt.Sprintf(format, args...), Loc: loc, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s/%s at %s: %s: %v", e.Comp, e.K, e.Loc, e.Message, e.cause)
	}
	return fmt.Sprintf("%s/%s at %s: %s", e.Comp, e.K, e.Loc, e.Message)
}

// Unwrap exposes the wrapped cause, if any, to xerrors.As/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Component returns the subsystem that raised the error.
func (e *Error) Component() Component { return e.Comp }

// Kind returns the error code.
func (e *Error) Kind() Kind { return e.K }

// Location returns where in the template source the error occurred.
func (e *Error) Location() token.Position { return e.Loc }

// Is lets errors.Is(err, Kind) style matching work against a sentinel
// built with just a kind by comparing both component and kind when the
// target is also an *Error.
func (e *Error) Is(target error) bool {
	var other *Error
	if !xerrors.As(target, &other) {
		return false
	}
	if other.K != NoError && other.K != e.K {
		return false
	}
	if other.Comp != None && other.Comp != e.Comp {
		return false
	}
	return true
}
