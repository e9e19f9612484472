// Package compiler implements the single bottom-up compile pass and the
// Program record it produces. Program is the concrete ast.Context every
// node compiles and renders against — one shared struct serving both
// phases, behind an interface so package ast never imports package
// compiler (see ast.Context's doc comment).
package compiler

import (
	"sort"
	"time"

	"github.com/pgavlin/twig/ast"
	"github.com/pgavlin/twig/internal/errors"
	"github.com/pgavlin/twig/token"
	"github.com/pgavlin/twig/value"
)

// usage is one VariableUsage record: a read or write of a slot at a
// source location, tagged constant when a write's value is known
// entirely at compile time.
type usage struct {
	loc        token.Position
	isWrite    bool
	isConstant bool
}

// LoadAndParseFunc resolves and parses a template by name; supplied by
// package engine (which owns a loader.Loader and package parser) so
// compiler never has to import either and risk a cycle.
type LoadAndParseFunc func(name string) (ast.Node, error)

// Options configures a single Compile call.
type Options struct {
	Locale       string
	Functions    []ast.Function
	LoadAndParse LoadAndParseFunc
}

// Program is the compiled, render-ready form of a template: root node,
// variable slot table with usage history, function table, block map,
// dependency list and ambient render state.
type Program struct {
	root ast.Node

	varSlots map[string]int
	varNames []string
	values   []value.Value
	usages   [][]usage

	initialValues []value.Value

	functions map[string]ast.Function
	blocks    map[string]*ast.BlockBody

	dependencies []string
	compiledAt   time.Time
	locale       string
	versionID    int64

	escapeMode ast.EscapeMode
	spaceless  bool

	loadAndParse LoadAndParseFunc

	lastErr error
}

// Compile runs the compiler's single pass over root and returns a
// render-ready Program, or the first compile-time error encountered;
// compile-time errors propagate and abort the whole compile, unlike
// render-time errors.
func Compile(root ast.Node, opts Options) (*Program, error) {
	p := &Program{
		varSlots:     map[string]int{},
		functions:    map[string]ast.Function{},
		blocks:       map[string]*ast.BlockBody{},
		locale:       opts.Locale,
		loadAndParse: opts.LoadAndParse,
	}
	for _, fn := range opts.Functions {
		p.functions[fn.Name] = fn
	}

	compiled, err := root.Compile(p, ast.NewCompileInfo())
	if err != nil {
		return nil, err
	}
	p.root = compiled
	p.compiledAt = time.Now()
	p.versionID = p.compiledAt.UnixNano()
	p.initialValues = append([]value.Value(nil), p.values...)
	return p, nil
}

// --- ast.Context ---

func (p *Program) VariableSlot(name string) int {
	if slot, ok := p.varSlots[name]; ok {
		return slot
	}
	slot := len(p.varNames)
	p.varSlots[name] = slot
	p.varNames = append(p.varNames, name)
	p.values = append(p.values, value.Null)
	p.usages = append(p.usages, nil)
	return slot
}

func (p *Program) LookupVariable(name string) (int, bool) {
	slot, ok := p.varSlots[name]
	return slot, ok
}

func (p *Program) AddUsage(slot int, loc token.Position, isWrite, isConstant bool) {
	if slot < 0 || slot >= len(p.usages) {
		return
	}
	p.usages[slot] = append(p.usages[slot], usage{loc: loc, isWrite: isWrite, isConstant: isConstant})
}

func (p *Program) PrependWriteUsage(slot int, loc token.Position) {
	if slot < 0 || slot >= len(p.usages) {
		return
	}
	p.usages[slot] = append([]usage{{loc: loc, isWrite: true, isConstant: false}}, p.usages[slot]...)
}

func (p *Program) IsFirstUsageWriting(slot int) bool {
	if slot < 0 || slot >= len(p.usages) || len(p.usages[slot]) == 0 {
		return false
	}
	return p.usages[slot][0].isWrite
}

func (p *Program) Value(slot int) value.Value {
	if slot < 0 || slot >= len(p.values) {
		return value.Null
	}
	return p.values[slot]
}

func (p *Program) SetValue(slot int, v value.Value) {
	if slot < 0 || slot >= len(p.values) {
		return
	}
	p.values[slot] = v
}

func (p *Program) IsVariableConstant(slot int) bool {
	if slot < 0 || slot >= len(p.usages) {
		return false
	}
	for i := len(p.usages[slot]) - 1; i >= 0; i-- {
		if p.usages[slot][i].isWrite {
			return p.usages[slot][i].isConstant
		}
	}
	return false
}

func (p *Program) Function(name string) (ast.Function, bool) {
	fn, ok := p.functions[name]
	return fn, ok
}

func (p *Program) AddFunction(fn ast.Function) {
	p.functions[fn.Name] = fn
}

func (p *Program) Block(name string) (*ast.BlockBody, bool) {
	b, ok := p.blocks[name]
	return b, ok
}

func (p *Program) SetBlock(name string, b *ast.BlockBody) {
	p.blocks[name] = b
}

func (p *Program) SwapBlocks(next map[string]*ast.BlockBody) map[string]*ast.BlockBody {
	prev := p.blocks
	if next == nil {
		next = map[string]*ast.BlockBody{}
	}
	p.blocks = next
	return prev
}

func (p *Program) EscapeMode() ast.EscapeMode { return p.escapeMode }

func (p *Program) SetEscapeMode(mode ast.EscapeMode) ast.EscapeMode {
	prev := p.escapeMode
	p.escapeMode = mode
	return prev
}

func (p *Program) Spaceless() bool { return p.spaceless }

func (p *Program) SetSpaceless(v bool) bool {
	prev := p.spaceless
	p.spaceless = v
	return prev
}

func (p *Program) AddDependency(name string) {
	for _, d := range p.dependencies {
		if d == name {
			return
		}
	}
	p.dependencies = append(p.dependencies, name)
}

func (p *Program) LoadAndParse(name string) (ast.Node, error) {
	if p.loadAndParse == nil {
		return nil, errors.New(errors.Compiler, errors.TemplateNotFound, token.Position{}, "no loader configured, cannot load %q", name)
	}
	return p.loadAndParse(name)
}

func (p *Program) Locale() string { return p.locale }

func (p *Program) SetError(err error) {
	if p.lastErr == nil {
		p.lastErr = err
	}
}

func (p *Program) Error() error { return p.lastErr }

// --- introspection ---

// Dependencies returns the template names this Program's includes,
// extends and embeds resolved at compile time, in first-referenced order.
func (p *Program) Dependencies() []string { return append([]string(nil), p.dependencies...) }

// CompiledAt returns when Compile produced this Program.
func (p *Program) CompiledAt() time.Time { return p.compiledAt }

// VersionID changes every time a template is recompiled: it is the
// compile timestamp in nanoseconds.
func (p *Program) VersionID() int64 { return p.versionID }

// NeededVariables returns the names that must be supplied by the caller
// before Render: those whose first compile-time usage was a read rather
// than a `set`/loop-induction write.
func (p *Program) NeededVariables() []string {
	var out []string
	for _, name := range p.varNames {
		slot := p.varSlots[name]
		if !p.IsFirstUsageWriting(slot) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// CanRender reports whether vars supplies every NeededVariables name,
// returning the (sorted) names that are missing when it does not.
func (p *Program) CanRender(vars map[string]value.Value) (bool, []string) {
	var missing []string
	for _, name := range p.NeededVariables() {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	return len(missing) == 0, missing
}

// Render executes the compiled root against the supplied variables,
// resetting the slot table to its post-compile snapshot first so the
// same Program can be rendered repeatedly (sequentially — concurrent
// rendering of one Program is not supported). Render-time node failures
// are recorded via SetError and do not abort the walk; Render surfaces
// that first error as its own return value once rendering completes.
func (p *Program) Render(vars map[string]value.Value) (string, error) {
	if p.root == nil {
		return "", errors.New(errors.Renderer, errors.NoProgram, token.Position{}, "program has no compiled root")
	}
	if ok, missing := p.CanRender(vars); !ok {
		return "", errors.New(errors.Renderer, errors.VariableNotSet, token.Position{},
			"required variable(s) not set: %v", missing)
	}

	p.values = append([]value.Value(nil), p.initialValues...)
	p.lastErr = nil
	// Verbatim outside any enclosing {% autoescape %}: output is never
	// auto-escaped at the top level (Escape only applies while rendering
	// inside an Autoescape node); an explicit top-level
	// default comes from package engine wrapping the compiled root in an
	// Autoescape node, not from this baseline.
	p.escapeMode = ast.Verbatim
	p.spaceless = false

	for name, v := range vars {
		if slot, ok := p.varSlots[name]; ok {
			p.values[slot] = v
		}
	}

	out, err := p.root.Render(p)
	if err != nil {
		return out, err
	}
	return out, p.lastErr
}
