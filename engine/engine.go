// Package engine is the library façade: it owns a loader.Loader, the
// fixed builtin.All table plus
// any caller-registered functions, a global variable environment, and a
// bounded cache of compiled Programs keyed by template name. Render,
// Program, SetValue/MergeValues/AddFunction and the cache-control methods
// are the whole of the module's public surface most callers ever touch.
package engine

import (
	"math/rand"
	"time"

	"github.com/pgavlin/twig/ast"
	"github.com/pgavlin/twig/builtin"
	"github.com/pgavlin/twig/compiler"
	"github.com/pgavlin/twig/internal/errors"
	"github.com/pgavlin/twig/loader"
	"github.com/pgavlin/twig/parser"
	"github.com/pgavlin/twig/token"
	"github.com/pgavlin/twig/value"
)

// Logger is the ambient diagnostic sink; an Engine with no Logger
// configured uses nopLogger and stays silent.
type Logger interface {
	Printf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...interface{}) {}

// Config holds the construction-time knobs for the engine façade.
type Config struct {
	// MaxCacheSize bounds the number of compiled Programs held at once;
	// zero means unbounded.
	MaxCacheSize int
	// Locale is passed through to every Compile call, used by
	// `date`/`number_format`.
	Locale string
	// DefaultAutoescape names the escape mode new templates start under
	// absent an explicit {% autoescape %}; empty means no autoescaping
	// (Verbatim) — a template must opt in, either via this setting or
	// its own {% autoescape %} block.
	DefaultAutoescape string
}

type cacheEntry struct {
	name          string
	program       *compiler.Program
	compiledAt    time.Time
	syncedVersion int64
}

// Engine ties package loader, parser, compiler and builtin together
// behind one façade. Zero value is not usable; construct with New.
type Engine struct {
	ld     loader.Loader
	logger Logger
	config Config
	rng    *rand.Rand

	functions map[string]ast.Function
	env       map[string]value.Value
	versionID int64

	cache      map[string]*cacheEntry
	cacheOrder []string

	lastErr error
}

// New builds an Engine backed by ld. A nil logger installs a no-op one.
func New(ld loader.Loader, cfg Config, logger Logger) *Engine {
	if logger == nil {
		logger = nopLogger{}
	}
	e := &Engine{
		ld:        ld,
		logger:    logger,
		config:    cfg,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		functions: map[string]ast.Function{},
		env:       map[string]value.Value{},
		cache:     map[string]*cacheEntry{},
	}
	for _, fn := range builtin.All(e.rng) {
		e.functions[fn.Name] = fn
	}
	if ld != nil {
		ld.Subscribe(e.onLoaderEvent)
	}
	return e
}

func (e *Engine) onLoaderEvent(ev loader.Event) {
	switch ev.Kind {
	case loader.AllTemplatesChanged:
		e.FlushCache()
	case loader.TemplateChanged:
		e.evict(ev.Name)
	}
}

// SetValue sets a single name in the engine's global environment,
// visible to every subsequent Render/Program call that doesn't shadow
// it with an explicit vars argument of its own.
func (e *Engine) SetValue(name string, v value.Value) {
	e.env[name] = v
	e.versionID++
}

// MergeValues adds every entry of vars into the environment, leaving
// names it doesn't mention untouched.
func (e *Engine) MergeValues(vars map[string]value.Value) {
	for k, v := range vars {
		e.env[k] = v
	}
	e.versionID++
}

// ReplaceValues discards the current environment and installs vars in
// its place.
func (e *Engine) ReplaceValues(vars map[string]value.Value) {
	e.env = map[string]value.Value{}
	for k, v := range vars {
		e.env[k] = v
	}
	e.versionID++
}

// AddFunction registers name for every template compiled after this
// call (templates already cached keep whatever function table they
// compiled against; evict or FlushCache to force a recompile against the
// new table).
func (e *Engine) AddFunction(name string, isConstant bool, call func(ctx ast.Context, args []value.Value) (value.Value, error)) {
	e.functions[name] = ast.Function{Name: name, IsConstant: isConstant, Call: call}
}

func (e *Engine) functionTable() []ast.Function {
	out := make([]ast.Function, 0, len(e.functions))
	for _, fn := range e.functions {
		out = append(out, fn)
	}
	return out
}

// loadAndParse is the compiler.LoadAndParseFunc every Program this
// engine compiles is given, so include/extends/embed resolve through
// this same engine's loader without package compiler ever importing
// package loader or package parser.
func (e *Engine) loadAndParse(name string) (ast.Node, error) {
	if e.ld == nil || !e.ld.HasTemplate(name) {
		return nil, errors.New(errors.Loader, errors.TemplateNotFound, token.Position{}, "template %q not found", name)
	}
	data, ok := e.ld.Load(name)
	if !ok {
		return nil, errors.New(errors.Loader, errors.TemplateNotFound, token.Position{}, "template %q not found", name)
	}
	return parser.Parse(string(data))
}

func (e *Engine) compile(name string) (*compiler.Program, error) {
	if e.ld == nil {
		return nil, errors.New(errors.Engine, errors.TemplateNotFound, token.Position{}, "engine has no loader configured")
	}
	data, ok := e.ld.Load(name)
	if !ok {
		return nil, errors.New(errors.Engine, errors.TemplateNotFound, token.Position{}, "template %q not found", name)
	}
	root, err := parser.Parse(string(data))
	if err != nil {
		return nil, err
	}
	if e.config.DefaultAutoescape != "" {
		root = &ast.Autoescape{ModeName: e.config.DefaultAutoescape, Body: root}
	}
	return compiler.Compile(root, compiler.Options{
		Locale:       e.config.Locale,
		Functions:    e.functionTable(),
		LoadAndParse: e.loadAndParse,
	})
}

// evict drops name's cache entry, if any.
func (e *Engine) evict(name string) {
	if _, ok := e.cache[name]; !ok {
		return
	}
	delete(e.cache, name)
	for i, n := range e.cacheOrder {
		if n == name {
			e.cacheOrder = append(e.cacheOrder[:i], e.cacheOrder[i+1:]...)
			break
		}
	}
}

func (e *Engine) touch(entry *cacheEntry) {
	for i, n := range e.cacheOrder {
		if n == entry.name {
			e.cacheOrder = append(e.cacheOrder[:i], e.cacheOrder[i+1:]...)
			break
		}
	}
	e.cacheOrder = append(e.cacheOrder, entry.name)
}

func (e *Engine) insert(entry *cacheEntry) {
	e.cache[entry.name] = entry
	e.touch(entry)
	if e.config.MaxCacheSize <= 0 {
		return
	}
	for len(e.cacheOrder) > e.config.MaxCacheSize {
		oldest := e.cacheOrder[0]
		e.cacheOrder = e.cacheOrder[1:]
		delete(e.cache, oldest)
	}
}

// stale reports whether entry's dependency set (the template itself plus
// every include/extends/embed it resolved at compile time) has changed
// since it was compiled.
func (e *Engine) stale(entry *cacheEntry) bool {
	if e.ld == nil {
		return false
	}
	if e.ld.HasTemplateChanged(entry.name, entry.compiledAt) {
		return true
	}
	for _, dep := range entry.program.Dependencies() {
		if e.ld.HasTemplateChanged(dep, entry.compiledAt) {
			return true
		}
	}
	return false
}

// ensureSynced pushes the current global environment into entry's
// compiled slot table when the engine's environment has changed since
// the last sync: a cached Program carries the version ID under which
// its slot values were last refreshed, and re-syncs on mismatch, so a
// Program obtained via Program() reflects the current environment even
// before Render is called on it.
func (e *Engine) ensureSynced(entry *cacheEntry) {
	if entry.syncedVersion == e.versionID {
		return
	}
	for name, v := range e.env {
		if slot, ok := entry.program.LookupVariable(name); ok {
			entry.program.SetValue(slot, v)
		}
	}
	entry.syncedVersion = e.versionID
}

// Program returns name's compiled Program, compiling and caching it if
// necessary, and recompiling it if the loader reports its dependencies
// changed since the cached copy was built.
func (e *Engine) Program(name string) (*compiler.Program, error) {
	if entry, ok := e.cache[name]; ok && !e.stale(entry) {
		e.ensureSynced(entry)
		e.touch(entry)
		return entry.program, nil
	}
	program, err := e.compile(name)
	if err != nil {
		e.lastErr = err
		return nil, err
	}
	entry := &cacheEntry{name: name, program: program, compiledAt: time.Now()}
	e.ensureSynced(entry)
	e.insert(entry)
	return program, nil
}

// IsOutdated reports whether p (previously obtained from Program) no
// longer matches what Program(name) would return right now — either
// because its dependencies changed on the loader or because it has
// since been evicted from the cache entirely.
func (e *Engine) IsOutdated(p *compiler.Program) bool {
	for _, entry := range e.cache {
		if entry.program == p {
			return e.stale(entry)
		}
	}
	return true
}

// Render compiles (or reuses) name's Program and renders it against the
// engine's global environment overlaid with vars (vars wins on a key
// collision).
func (e *Engine) Render(name string, vars map[string]value.Value) (string, error) {
	program, err := e.Program(name)
	if err != nil {
		return "", err
	}
	merged := make(map[string]value.Value, len(e.env)+len(vars))
	for k, v := range e.env {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}
	out, err := program.Render(merged)
	if err != nil {
		e.lastErr = err
		e.logger.Printf("twig: render %q: %v", name, err)
	}
	return out, err
}

// LastError returns the most recent error raised by Program or Render,
// or nil if none has occurred yet.
func (e *Engine) LastError() error { return e.lastErr }

// FlushCache discards every compiled Program, forcing the next
// Program/Render call for any name to recompile from the loader.
func (e *Engine) FlushCache() {
	e.cache = map[string]*cacheEntry{}
	e.cacheOrder = nil
}

// SetMaxCacheSize changes the cache bound, evicting the oldest entries
// immediately if the new bound is smaller than the current cache size.
// n <= 0 means unbounded.
func (e *Engine) SetMaxCacheSize(n int) {
	e.config.MaxCacheSize = n
	if n <= 0 {
		return
	}
	for len(e.cacheOrder) > n {
		oldest := e.cacheOrder[0]
		e.cacheOrder = e.cacheOrder[1:]
		delete(e.cache, oldest)
	}
}
