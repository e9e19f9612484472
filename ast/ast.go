// Package ast defines the Twig abstract syntax tree: the closed set of
// node kinds, the two render-time contracts every node satisfies
// (Render/Evaluate), and the Compile contract each node satisfies for
// the compiler's single bottom-up rewrite pass. Nodes call back into a
// Context, which is implemented by package compiler's Program and
// serves as one shared struct for both the mutable compile-time state
// and the render-time variable/function/block table.
package ast

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pgavlin/twig/token"
	"github.com/pgavlin/twig/value"
)

// NodeType tags the concrete Go type of a Node for diagnostics and dumps.
type NodeType int

const (
	TypeText NodeType = iota
	TypeNoop
	TypeLiteral
	TypeVariable
	TypeChainedVariable
	TypeMultipleValue
	TypeExpression
	TypeMatchesTest
	TypeTernary
	TypeMethodCall
	TypeValueMap
	TypeString
	TypeMultiple
	TypeIfClause
	TypeForLoop
	TypeSet
	TypeBlock
	TypeInclude
	TypeEmbed
	TypeFilter
	TypeAutoescape
	TypeSpaceless
)

var typeNames = [...]string{
	"Text", "Noop", "Literal", "Variable", "ChainedVariable", "MultipleValue",
	"Expression", "MatchesTest", "Ternary", "MethodCall", "ValueMap", "String",
	"Multiple", "IfClause", "ForLoop", "Set", "Block", "Include", "Embed",
	"Filter", "Autoescape", "Spaceless",
}

func (t NodeType) String() string {
	if int(t) >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// EscapeMode selects the output transform applied to expansion output
// while an Autoescape scope (or the ambient program default) is active.
type EscapeMode int

const (
	Verbatim EscapeMode = iota
	Html
	JavaScript
	Css
	Url
	HtmlAttr
)

// ResolveEscapeMode maps a mode name (as written in `{% autoescape "x" %}`
// or passed to the `escape` filter) to an EscapeMode. The empty string and
// "html" both mean Html; an unrecognized name reports ok=false.
func ResolveEscapeMode(name string) (mode EscapeMode, ok bool) {
	switch name {
	case "", "html":
		return Html, true
	case "js":
		return JavaScript, true
	case "css":
		return Css, true
	case "url":
		return Url, true
	case "html_attr":
		return HtmlAttr, true
	default:
		return Verbatim, false
	}
}

func (m EscapeMode) String() string {
	switch m {
	case Html:
		return "html"
	case JavaScript:
		return "js"
	case Css:
		return "css"
	case Url:
		return "url"
	case HtmlAttr:
		return "html_attr"
	default:
		return "verbatim"
	}
}

// Escape applies mode's output transform to data, as used by both
// Autoescape and the `escape`/`e` filter: Verbatim discards its input;
// Html replaces & < > " ' with entities; JavaScript and Css share one
// backslash escaper for " ' \r \n \t; Url query-escapes; HtmlAttr keeps
// ASCII letters, digits and -._~ and writes every other rune as &#xXX;.
// Lives here rather than in package
// builtin so Autoescape.Render and the `escape` filter share one
// implementation without an ast->builtin import cycle.
func Escape(mode EscapeMode, data string) string {
	switch mode {
	case Verbatim:
		return ""
	case Html:
		return htmlEscaper.Replace(data)
	case JavaScript, Css:
		// the original's escape() switch falls JavaScript and Css
		// through to the same five replacements rather than giving Css
		// its own transform; kept as one shared escaper here too.
		return jsEscaper.Replace(data)
	case Url:
		return url.QueryEscape(data)
	case HtmlAttr:
		var b strings.Builder
		for _, r := range data {
			if strings.ContainsRune("-._~", r) ||
				(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
				b.WriteRune(r)
				continue
			}
			fmt.Fprintf(&b, "&#x%X;", r)
		}
		return b.String()
	default:
		return ""
	}
}

var htmlEscaper = strings.NewReplacer(
	`&`, "&amp;",
	`<`, "&lt;",
	`>`, "&gt;",
	`"`, "&quot;",
	`'`, "&#39;",
)

var jsEscaper = strings.NewReplacer(
	`"`, `\"`, `'`, `\'`, "\r", `\r`, "\n", `\n`, "\t", `\t`,
)

// TrimMode is a bit set of whitespace-trim directives attached to a node
// via the side table in CompileInfo.Trim.
type TrimMode int

const (
	TrimNone       TrimMode = 0
	TrimLeft       TrimMode = 1
	TrimRight      TrimMode = 2
	TrimInnerLeft  TrimMode = 4
	TrimInnerRight TrimMode = 8
)

// BlockBody is the shared, reference-counted-by-GC container for a
// block's body. Every Block node registered under a name points at the
// same master *BlockBody; overriding a block mutates Node in place rather
// than replacing the pointer, so the master Block already placed in the
// base template's tree renders the override. parent() references do not
// share the master: they point at a frozen copy of the body as it was
// just before the override (see Block.Compile).
type BlockBody struct {
	Node Node
}

// Function is a named callable registered in a Program's function
// table: a built-in filter/function/test or a user-registered one,
// tagged constant when repeated calls with equal arguments always
// produce equal results.
type Function struct {
	Name       string
	IsConstant bool
	Call       func(ctx Context, args []value.Value) (value.Value, error)
}

// CompileInfo is the compiler's ephemeral, compile-only state, owned by
// the compilation pass and dropped before the Program is published. It
// is passed by explicit reference through every Compile call.
type CompileInfo struct {
	// ConditionBranchDepth is 0 at the top level and incremented while
	// compiling the branches of a non-constant `if` (never for `for`).
	ConditionBranchDepth int

	// CurrentParentBlock is the master BlockBody that a parent() call
	// encountered right now should resolve against, or nil.
	CurrentParentBlock *BlockBody

	// Trim is the whitespace-trim side table: node identity -> TrimMode.
	Trim map[Node]TrimMode
}

// NewCompileInfo returns a zeroed CompileInfo ready for a fresh compile.
func NewCompileInfo() *CompileInfo {
	return &CompileInfo{Trim: map[Node]TrimMode{}}
}

// TrimOf returns the trim mode recorded for n, or TrimNone.
func (ci *CompileInfo) TrimOf(n Node) TrimMode {
	return ci.Trim[n]
}

// SetTrim records (ORs in) a trim mode for n.
func (ci *CompileInfo) SetTrim(n Node, mode TrimMode) {
	ci.Trim[n] = ci.Trim[n] | mode
}

// Transfer moves whatever trim entry `prev` carries onto `now` — a
// node replacing another must carry its trim entry forward — returning
// now for convenient chaining at call sites that replace a child pointer.
func (ci *CompileInfo) Transfer(prev, now Node) Node {
	if prev == now || prev == nil || now == nil {
		return now
	}
	if mode, ok := ci.Trim[prev]; ok {
		delete(ci.Trim, prev)
		ci.Trim[now] = mode
	}
	// A replacement node (e.g. a fold to *Literal) starts with a zero
	// Trimmable of its own; carry over whatever raw bits the parser
	// recorded on the node it is replacing so a later Multiple.Compile
	// still sees them when it seeds the side table from TrimBits.
	if prevT, ok := prev.(HasTrim); ok {
		if bits := prevT.GetTrim(); bits != TrimNone {
			if nowT, ok := now.(interface{ SetTrimBits(TrimMode) }); ok {
				nowT.SetTrimBits(bits)
			}
		}
	}
	return now
}

// Context is the interface nodes call back into for both compilation and
// rendering; package compiler's Program implements it. Keeping this as
// an interface (rather than nodes importing package compiler directly)
// avoids an import cycle between ast and compiler while letting a single
// concrete struct serve both phases.
type Context interface {
	// Variable slot table.
	VariableSlot(name string) int
	// LookupVariable returns the slot for name only if it has already
	// been referenced; it never creates a slot. Used by ForLoop to
	// detect whether `loop` was actually referenced by its body without
	// forcing it into the needed-variables list when it wasn't.
	LookupVariable(name string) (int, bool)
	AddUsage(slot int, loc token.Position, isWrite, isConstant bool)
	PrependWriteUsage(slot int, loc token.Position)
	IsFirstUsageWriting(slot int) bool
	Value(slot int) value.Value
	SetValue(slot int, v value.Value)
	// IsVariableConstant reports whether the most recent write usage
	// recorded so far for slot had isConstant=true: a Variable is
	// constant at a compile-point iff its latest preceding write usage
	// is constant. Set's compile already folds branch depth into the
	// recorded flag, so this needs no extra depth check.
	IsVariableConstant(slot int) bool

	// Function table: filters, functions and tests share one namespace.
	Function(name string) (Function, bool)
	AddFunction(fn Function)

	// Block map.
	Block(name string) (*BlockBody, bool)
	SetBlock(name string, b *BlockBody)
	SwapBlocks(next map[string]*BlockBody) map[string]*BlockBody

	// Ambient escape/spaceless render+compile state, scoped
	// acquire/restore per design note "Scoped push/restore".
	EscapeMode() EscapeMode
	SetEscapeMode(mode EscapeMode) EscapeMode
	Spaceless() bool
	SetSpaceless(v bool) bool

	// Template composition (includes/extends/embeds).
	AddDependency(name string)
	LoadAndParse(name string) (Node, error)

	Locale() string

	// First-error-wins sink: ancestor nodes continue rendering but the
	// caller observes the error via Error() once rendering returns.
	SetError(err error)
	Error() error
}

// Node is the interface every AST node kind implements.
type Node interface {
	Type() NodeType
	Pos() token.Position

	// Render produces this node's contribution to the output text.
	Render(ctx Context) (string, error)

	// Evaluate produces this node's value; only meaningful for
	// ValueNodes. Render of a ValueNode equals String() of its
	// Evaluate result.
	Evaluate(ctx Context) (value.Value, error)

	// IsConstant is the compile-time constant predicate.
	IsConstant(ctx Context) bool

	// Compile runs this node's share of the single bottom-up compile
	// pass and returns its replacement (itself, unless folded/rewritten).
	Compile(ctx Context, info *CompileInfo) (Node, error)
}

// Trimmable is embedded by every node struct to carry the raw trim bits
// the parser read off its originating tag's delimiters. CompileInfo.Trim
// is seeded from this in each Multiple's compile step, once its children
// have compiled, and
// is the side table of record from then on, transferred on replacement.
type Trimmable struct {
	TrimBits TrimMode
}

// GetTrim returns the raw trim bits the parser attached to this node.
func (t *Trimmable) GetTrim() TrimMode { return t.TrimBits }

// SetTrimBits records the parser-observed trim bits for this node.
func (t *Trimmable) SetTrimBits(mode TrimMode) { t.TrimBits = mode }

// HasTrim is implemented by every node via an embedded Trimmable.
type HasTrim interface {
	GetTrim() TrimMode
}

// foldIfConstant is the single constant-folding rule: any ValueNode
// whose IsConstant reports true is replaced by a Literal carrying the
// Evaluate of the node. Nodes excluded from folding (ChainedVariable,
// MatchesTest, Block) simply always report IsConstant()==false, so
// this helper never special-cases them.
func foldIfConstant(n Node, ctx Context, info *CompileInfo) (Node, error) {
	if _, isLit := n.(*Literal); isLit {
		return n, nil
	}
	if !n.IsConstant(ctx) {
		return n, nil
	}
	v, err := n.Evaluate(ctx)
	if err != nil {
		return n, nil
	}
	lit := &Literal{Val: v, P: n.Pos()}
	return info.Transfer(n, lit), nil
}

// renderValue is the shared Render implementation for ValueNodes: render
// of a value node equals the string conversion of its Evaluate.
func renderValue(n Node, ctx Context) (string, error) {
	v, err := n.Evaluate(ctx)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}
