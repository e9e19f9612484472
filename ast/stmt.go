package ast

import (
	"regexp"
	"strings"

	"github.com/pgavlin/twig/internal/errors"
	"github.com/pgavlin/twig/token"
	"github.com/pgavlin/twig/value"
)

// Text is a run of literal template bytes copied verbatim to output.
type Text struct {
	Trimmable
	Bytes string
	P     token.Position
}

func (n *Text) Type() NodeType                                     { return TypeText }
func (n *Text) Pos() token.Position                                 { return n.P }
func (n *Text) Render(Context) (string, error)                     { return n.Bytes, nil }
func (n *Text) Evaluate(Context) (value.Value, error)               { return value.String(n.Bytes), nil }
func (n *Text) IsConstant(Context) bool                            { return true }
func (n *Text) Compile(Context, *CompileInfo) (Node, error)        { return n, nil }

// Noop renders to nothing: the residue of a folded condition, an
// overridden Block, or an empty Multiple.
type Noop struct {
	Trimmable
	P token.Position
}

func (n *Noop) Type() NodeType                                { return TypeNoop }
func (n *Noop) Pos() token.Position                           { return n.P }
func (n *Noop) Render(Context) (string, error)                { return "", nil }
func (n *Noop) Evaluate(Context) (value.Value, error)          { return value.Null, nil }
func (n *Noop) IsConstant(Context) bool                       { return true }
func (n *Noop) Compile(Context, *CompileInfo) (Node, error)   { return n, nil }

// Multiple is an ordered sequence of statement nodes: a template body, an
// if/for/block/filter/etc body. Its Compile step runs the
// side-table-driven whitespace trim and the Text/Literal merge pass.
type Multiple struct {
	Trimmable
	Items []Node
	P     token.Position
}

func (n *Multiple) Type() NodeType         { return TypeMultiple }
func (n *Multiple) Pos() token.Position    { return n.P }

func (n *Multiple) Render(ctx Context) (string, error) {
	var b strings.Builder
	for _, it := range n.Items {
		s, err := it.Render(ctx)
		if err != nil {
			ctx.SetError(err)
			continue
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

func (n *Multiple) Evaluate(ctx Context) (value.Value, error) {
	s, err := n.Render(ctx)
	return value.String(s), err
}

func (n *Multiple) IsConstant(ctx Context) bool {
	for _, it := range n.Items {
		if !it.IsConstant(ctx) {
			return false
		}
	}
	return true
}

func (n *Multiple) Compile(ctx Context, info *CompileInfo) (Node, error) {
	for i, it := range n.Items {
		nc, err := it.Compile(ctx, info)
		if err != nil {
			return nil, err
		}
		n.Items[i] = info.Transfer(it, nc)
	}

	for _, it := range n.Items {
		if _, ok := info.Trim[it]; ok {
			continue
		}
		if bits := trimOf(it); bits != TrimNone {
			info.Trim[it] = bits
		}
	}

	own := n.GetTrim()
	if len(n.Items) > 0 {
		if own&TrimInnerLeft != 0 {
			trimTrailingWhitespace(n.Items[0])
		}
		if own&TrimInnerRight != 0 {
			trimLeadingWhitespace(n.Items[len(n.Items)-1])
		}
	}

	for i, it := range n.Items {
		mode := info.Trim[it]
		if mode&TrimLeft != 0 && i > 0 {
			trimTrailingWhitespace(n.Items[i-1])
		}
		if mode&TrimRight != 0 && i < len(n.Items)-1 {
			trimLeadingWhitespace(n.Items[i+1])
		}
	}

	merged := make([]Node, 0, len(n.Items))
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			merged = append(merged, &Text{Bytes: buf.String(), P: n.P})
			buf.Reset()
		}
	}
	for _, it := range n.Items {
		switch v := it.(type) {
		case *Noop:
			// dropped
		case *Text:
			buf.WriteString(v.Bytes)
		case *Literal:
			buf.WriteString(v.Val.String())
		default:
			flush()
			merged = append(merged, it)
		}
	}
	flush()

	switch len(merged) {
	case 0:
		return info.Transfer(n, &Noop{P: n.P}), nil
	case 1:
		return info.Transfer(n, merged[0]), nil
	default:
		n.Items = merged
		return n, nil
	}
}

// trimOf returns the raw trim bits a node carries, or TrimNone if it does
// not implement HasTrim.
func trimOf(n Node) TrimMode {
	if t, ok := n.(HasTrim); ok {
		return t.GetTrim()
	}
	return TrimNone
}

func trimTrailingWhitespace(n Node) {
	if t, ok := n.(*Text); ok {
		t.Bytes = strings.TrimRightFunc(t.Bytes, isTemplateSpace)
	}
}

func trimLeadingWhitespace(n Node) {
	if t, ok := n.(*Text); ok {
		t.Bytes = strings.TrimLeftFunc(t.Bytes, isTemplateSpace)
	}
}

func isTemplateSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// IfClause is `if cond`/`elseif`/`else`, the elseif chain already folded
// into nested IfClauses by the parser.
type IfClause struct {
	Trimmable
	Cond    Node
	OnTrue  Node
	OnFalse Node // nil, another *IfClause (elseif), or a plain body (else)
	P       token.Position
}

func (n *IfClause) Type() NodeType      { return TypeIfClause }
func (n *IfClause) Pos() token.Position { return n.P }

func (n *IfClause) Render(ctx Context) (string, error) {
	v, err := n.Cond.Evaluate(ctx)
	if err != nil {
		ctx.SetError(err)
		return "", nil
	}
	if v.Truthy() {
		return n.OnTrue.Render(ctx)
	}
	if n.OnFalse != nil {
		return n.OnFalse.Render(ctx)
	}
	return "", nil
}

func (n *IfClause) Evaluate(ctx Context) (value.Value, error) {
	s, err := n.Render(ctx)
	return value.String(s), err
}

func (n *IfClause) IsConstant(ctx Context) bool {
	return n.Cond.IsConstant(ctx)
}

func (n *IfClause) Compile(ctx Context, info *CompileInfo) (Node, error) {
	newCond, err := n.Cond.Compile(ctx, info)
	if err != nil {
		return nil, err
	}
	n.Cond = info.Transfer(n.Cond, newCond)

	if n.Cond.IsConstant(ctx) {
		condVal, err := n.Cond.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		var chosen Node
		if condVal.Truthy() {
			chosen, err = n.OnTrue.Compile(ctx, info)
		} else if n.OnFalse != nil {
			chosen, err = n.OnFalse.Compile(ctx, info)
		} else {
			chosen = &Noop{P: n.P}
		}
		if err != nil {
			return nil, err
		}
		return info.Transfer(n, chosen), nil
	}

	info.ConditionBranchDepth++
	newTrue, err := n.OnTrue.Compile(ctx, info)
	if err != nil {
		info.ConditionBranchDepth--
		return nil, err
	}
	n.OnTrue = info.Transfer(n.OnTrue, newTrue)
	if n.OnFalse != nil {
		newFalse, err := n.OnFalse.Compile(ctx, info)
		if err != nil {
			info.ConditionBranchDepth--
			return nil, err
		}
		n.OnFalse = info.Transfer(n.OnFalse, newFalse)
	}
	info.ConditionBranchDepth--
	return n, nil
}

// ForLoop iterates a list or map value, optionally filtered by an `if`
// condition, optionally falling back to Else when nothing iterated.
// Its Compile step resolves the `loop` meta-variable's slot when the body
// references it; Render fills that slot on every iteration.
type ForLoop struct {
	Trimmable
	KeyVar     *Variable // nil unless the source wrote `for k, v in ...`
	ValueVar   *Variable
	Iterable   Node
	FilterCond Node // the optional `if` condition on the for tag
	Body       Node
	Else       Node
	LoopSlot   int // >=0 only when Body references `loop`
	P          token.Position
}

type loopElem struct {
	key value.Value
	val value.Value
}

func iterateElements(v value.Value) []loopElem {
	switch v.Kind() {
	case value.KindList:
		items := v.ListValue()
		out := make([]loopElem, len(items))
		for i, e := range items {
			out[i] = loopElem{key: value.Int(int64(i)), val: e}
		}
		return out
	case value.KindMap:
		keys := v.Keys()
		out := make([]loopElem, len(keys))
		for i, k := range keys {
			ev, _ := v.Get(k)
			out[i] = loopElem{key: value.String(k), val: ev}
		}
		return out
	default:
		if v.Truthy() {
			return []loopElem{{key: value.Null, val: v}}
		}
		return nil
	}
}

func (n *ForLoop) Type() NodeType      { return TypeForLoop }
func (n *ForLoop) Pos() token.Position { return n.P }

func (n *ForLoop) Evaluate(ctx Context) (value.Value, error) {
	s, err := n.Render(ctx)
	return value.String(s), err
}

func (n *ForLoop) IsConstant(Context) bool { return false }

func (n *ForLoop) Render(ctx Context) (string, error) {
	iterVal, err := n.Iterable.Evaluate(ctx)
	if err != nil {
		ctx.SetError(err)
		return "", nil
	}
	elems := iterateElements(iterVal)

	var prevLoop value.Value
	if n.LoopSlot >= 0 {
		prevLoop = ctx.Value(n.LoopSlot)
	}

	var out strings.Builder
	ran := false
	for idx, e := range elems {
		ctx.SetValue(n.ValueVar.Slot, e.val)
		if n.KeyVar != nil {
			ctx.SetValue(n.KeyVar.Slot, e.key)
		}
		if n.LoopSlot >= 0 {
			ctx.SetValue(n.LoopSlot, buildLoopMeta(idx, len(elems), n.FilterCond == nil, prevLoop))
		}
		if n.FilterCond != nil {
			fv, err := n.FilterCond.Evaluate(ctx)
			if err != nil {
				ctx.SetError(err)
				continue
			}
			if !fv.Truthy() {
				continue
			}
		}
		ran = true
		s, err := n.Body.Render(ctx)
		if err != nil {
			ctx.SetError(err)
			continue
		}
		out.WriteString(s)
	}

	if n.LoopSlot >= 0 {
		ctx.SetValue(n.LoopSlot, prevLoop)
	}

	if !ran && n.Else != nil {
		return n.Else.Render(ctx)
	}
	return out.String(), nil
}

func buildLoopMeta(idx, total int, withExtras bool, prevLoop value.Value) value.Value {
	keys := []string{"index", "index0", "first", "parent"}
	m := map[string]value.Value{
		"index":  value.Int(int64(idx + 1)),
		"index0": value.Int(int64(idx)),
		"first":  value.Bool(idx == 0),
		"parent": value.NewMap([]string{"loop"}, map[string]value.Value{"loop": prevLoop}),
	}
	if withExtras {
		keys = append([]string{"index", "index0", "first", "revindex", "revindex0", "length", "last", "parent"})
		m["revindex"] = value.Int(int64(total - idx))
		m["revindex0"] = value.Int(int64(total - idx - 1))
		m["length"] = value.Int(int64(total))
		m["last"] = value.Bool(idx == total-1)
	}
	return value.NewMap(keys, m)
}

func (n *ForLoop) Compile(ctx Context, info *CompileInfo) (Node, error) {
	newIterable, err := n.Iterable.Compile(ctx, info)
	if err != nil {
		return nil, err
	}
	n.Iterable = info.Transfer(n.Iterable, newIterable)

	n.ValueVar.Slot = ctx.VariableSlot(n.ValueVar.Name)
	n.ValueVar.Write = true
	ctx.AddUsage(n.ValueVar.Slot, n.P, true, false)
	if n.KeyVar != nil {
		n.KeyVar.Slot = ctx.VariableSlot(n.KeyVar.Name)
		n.KeyVar.Write = true
		ctx.AddUsage(n.KeyVar.Slot, n.P, true, false)
	}

	newBody, err := n.Body.Compile(ctx, info)
	if err != nil {
		return nil, err
	}
	n.Body = info.Transfer(n.Body, newBody)
	if n.FilterCond != nil {
		newCond, err := n.FilterCond.Compile(ctx, info)
		if err != nil {
			return nil, err
		}
		n.FilterCond = info.Transfer(n.FilterCond, newCond)
	}

	if n.Else != nil {
		newElse, err := n.Else.Compile(ctx, info)
		if err != nil {
			return nil, err
		}
		n.Else = info.Transfer(n.Else, newElse)
	}

	n.LoopSlot = -1
	if slot, ok := ctx.LookupVariable("loop"); ok {
		n.LoopSlot = slot
		ctx.PrependWriteUsage(slot, n.P)
	}

	return n, nil
}

// Set assigns the value of an expression to a variable slot, tracking
// the write's constancy for later IsVariableConstant checks.
type Set struct {
	Trimmable
	Target *Variable
	Val    Node
	P      token.Position
}

func (n *Set) Type() NodeType      { return TypeSet }
func (n *Set) Pos() token.Position { return n.P }

func (n *Set) Render(ctx Context) (string, error) {
	v, err := n.Val.Evaluate(ctx)
	if err != nil {
		ctx.SetError(err)
		return "", nil
	}
	ctx.SetValue(n.Target.Slot, v)
	return "", nil
}

func (n *Set) Evaluate(ctx Context) (value.Value, error) {
	_, err := n.Render(ctx)
	return value.Null, err
}

func (n *Set) IsConstant(Context) bool { return false }

func (n *Set) Compile(ctx Context, info *CompileInfo) (Node, error) {
	newVal, err := n.Val.Compile(ctx, info)
	if err != nil {
		return nil, err
	}
	n.Val = info.Transfer(n.Val, newVal)

	n.Target.Slot = ctx.VariableSlot(n.Target.Name)
	n.Target.Write = true

	isConst := info.ConditionBranchDepth == 0 && n.Val.IsConstant(ctx)
	ctx.AddUsage(n.Target.Slot, n.P, true, isConst)

	if isConst {
		v, err := n.Val.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		ctx.SetValue(n.Target.Slot, v)
	}
	return n, nil
}

// Block is a named, overridable body. The first Block registered for a
// name becomes the master; later Blocks with the same name swap their
// compiled body into the master's shared BlockBody and reduce themselves
// to Noop.
type Block struct {
	Trimmable
	Name string
	Body *BlockBody
	P    token.Position
}

func (n *Block) Type() NodeType      { return TypeBlock }
func (n *Block) Pos() token.Position { return n.P }

func (n *Block) Render(ctx Context) (string, error) {
	if n.Body == nil || n.Body.Node == nil {
		return "", nil
	}
	return n.Body.Node.Render(ctx)
}

func (n *Block) Evaluate(ctx Context) (value.Value, error) {
	s, err := n.Render(ctx)
	return value.String(s), err
}

func (n *Block) IsConstant(Context) bool { return false }

// Compile is only meaningful for a freshly-parsed Block (Body here holds
// the just-parsed, not-yet-compiled statement body under a temporary
// *BlockBody set by the parser). The Block that MethodCall.Compile
// synthesizes for parent() points at a frozen copy of the master body
// and never has its own Compile called; it is placed directly into the
// tree.
func (n *Block) Compile(ctx Context, info *CompileInfo) (Node, error) {
	pending := n.Body.Node
	master, exists := ctx.Block(n.Name)
	if !exists {
		prevParent := info.CurrentParentBlock
		info.CurrentParentBlock = nil
		compiled, err := pending.Compile(ctx, info)
		info.CurrentParentBlock = prevParent
		if err != nil {
			return nil, err
		}
		bb := &BlockBody{Node: info.Transfer(pending, compiled)}
		ctx.SetBlock(n.Name, bb)
		n.Body = bb
		return n, nil
	}

	// parent() inside this override must resolve to the body the block
	// held immediately before this override, frozen here: master itself
	// is about to be mutated in place to the override's own content, and
	// a parent() reference pointing at master directly would observe
	// that mutation and render itself.
	frozen := &BlockBody{Node: master.Node}
	prevParent := info.CurrentParentBlock
	info.CurrentParentBlock = frozen
	compiled, err := pending.Compile(ctx, info)
	info.CurrentParentBlock = prevParent
	if err != nil {
		return nil, err
	}
	master.Node = info.Transfer(pending, compiled)
	n.Body = master
	return info.Transfer(n, &Noop{P: n.P}), nil
}

// Include loads, compiles and renders another template's root in place.
// `extends` is parsed as an Include whose caller-template tail follows it
// in the same Multiple: the included template's blocks register as
// masters first, then the caller's own `{% block %}` overrides win by
// virtue of compiling later, with no separate extends machinery needed.
type Include struct {
	Trimmable
	NameExpr Node
	Extends  bool
	Compiled Node
	P        token.Position
}

func (n *Include) Type() NodeType      { return TypeInclude }
func (n *Include) Pos() token.Position { return n.P }

func (n *Include) Render(ctx Context) (string, error) {
	if n.Compiled == nil {
		return "", nil
	}
	return n.Compiled.Render(ctx)
}

func (n *Include) Evaluate(ctx Context) (value.Value, error) {
	s, err := n.Render(ctx)
	return value.String(s), err
}

func (n *Include) IsConstant(Context) bool { return false }

// resolveCandidates evaluates a compiled, constant name expression into
// the ordered list of template names to probe (a single string, or a
// list of strings tried in order until one loads).
func resolveCandidates(v value.Value) []string {
	if v.Kind() == value.KindList {
		out := make([]string, 0, len(v.ListValue()))
		for _, e := range v.ListValue() {
			out = append(out, e.String())
		}
		return out
	}
	return []string{v.String()}
}

func loadFirstExisting(ctx Context, candidates []string, pos token.Position) (Node, error) {
	var lastErr error
	for _, c := range candidates {
		if c == "" {
			continue
		}
		root, err := ctx.LoadAndParse(c)
		if err == nil {
			ctx.AddDependency(c)
			return root, nil
		}
		lastErr = err
		if terr, ok := err.(*errors.Error); ok && terr.Kind() == errors.TemplateNotFound {
			continue
		}
		return nil, err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New(errors.Compiler, errors.EmptyTemplateName, pos, "no template name to include")
}

func (n *Include) Compile(ctx Context, info *CompileInfo) (Node, error) {
	newName, err := n.NameExpr.Compile(ctx, info)
	if err != nil {
		return nil, err
	}
	n.NameExpr = info.Transfer(n.NameExpr, newName)

	if !n.NameExpr.IsConstant(ctx) {
		return nil, errors.New(errors.Compiler, errors.NonConstantExpression, n.P,
			"include/extends/embed name must be a compile-time constant")
	}
	nameVal, err := n.NameExpr.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	candidates := resolveCandidates(nameVal)
	if len(candidates) == 0 {
		return nil, errors.New(errors.Compiler, errors.EmptyTemplateName, n.P, "include/extends/embed name is empty")
	}

	subRoot, err := loadFirstExisting(ctx, candidates, n.P)
	if err != nil {
		return nil, err
	}
	compiled, err := subRoot.Compile(ctx, info)
	if err != nil {
		return nil, err
	}
	n.Compiled = compiled
	return n, nil
}

// Embed is Include plus an inline override body, compiled against a
// block map swapped to empty for the duration so the embedded
// template's own blocks (and the caller's inline overrides of them)
// never collide with the enclosing template's blocks.
type Embed struct {
	Trimmable
	NameExpr     Node
	OverrideBody Node
	Compiled     Node
	P            token.Position
}

func (n *Embed) Type() NodeType      { return TypeEmbed }
func (n *Embed) Pos() token.Position { return n.P }

func (n *Embed) Render(ctx Context) (string, error) {
	if n.Compiled == nil {
		return "", nil
	}
	return n.Compiled.Render(ctx)
}

func (n *Embed) Evaluate(ctx Context) (value.Value, error) {
	s, err := n.Render(ctx)
	return value.String(s), err
}

func (n *Embed) IsConstant(Context) bool { return false }

func (n *Embed) Compile(ctx Context, info *CompileInfo) (Node, error) {
	newName, err := n.NameExpr.Compile(ctx, info)
	if err != nil {
		return nil, err
	}
	n.NameExpr = info.Transfer(n.NameExpr, newName)
	if !n.NameExpr.IsConstant(ctx) {
		return nil, errors.New(errors.Compiler, errors.NonConstantExpression, n.P,
			"embed name must be a compile-time constant")
	}
	nameVal, err := n.NameExpr.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	candidates := resolveCandidates(nameVal)
	if len(candidates) == 0 {
		return nil, errors.New(errors.Compiler, errors.EmptyTemplateName, n.P, "embed name is empty")
	}
	subRoot, err := loadFirstExisting(ctx, candidates, n.P)
	if err != nil {
		return nil, err
	}

	saved := ctx.SwapBlocks(map[string]*BlockBody{})
	combined := &Multiple{Items: []Node{subRoot, n.OverrideBody}, P: n.P}
	compiled, err := combined.Compile(ctx, info)
	ctx.SwapBlocks(saved)
	if err != nil {
		return nil, err
	}
	n.Compiled = compiled
	return n, nil
}

// Filter is `{% filter name1|name2 %}…{% endfilter %}`: the body renders
// to a string which is spliced in as the innermost filter call's first
// argument, then the whole chain evaluates.
// Outer/Inner are built by the parser as a chain of MethodCalls each
// marked NoFold, since Placeholder's value mutates on every render.
type Filter struct {
	Trimmable
	Outer       Node
	Inner       *MethodCall
	Placeholder *Literal
	Body        Node
	P           token.Position
}

func (n *Filter) Type() NodeType      { return TypeFilter }
func (n *Filter) Pos() token.Position { return n.P }

func (n *Filter) Render(ctx Context) (string, error) {
	body, err := n.Body.Render(ctx)
	if err != nil {
		ctx.SetError(err)
		body = ""
	}
	n.Placeholder.Val = value.String(body)
	v, err := n.Outer.Evaluate(ctx)
	if err != nil {
		ctx.SetError(err)
		return "", nil
	}
	return v.String(), nil
}

func (n *Filter) Evaluate(ctx Context) (value.Value, error) {
	s, err := n.Render(ctx)
	return value.String(s), err
}

func (n *Filter) IsConstant(Context) bool { return false }

func (n *Filter) Compile(ctx Context, info *CompileInfo) (Node, error) {
	newBody, err := n.Body.Compile(ctx, info)
	if err != nil {
		return nil, err
	}
	n.Body = info.Transfer(n.Body, newBody)

	newOuter, err := n.Outer.Compile(ctx, info)
	if err != nil {
		return nil, err
	}
	n.Outer = info.Transfer(n.Outer, newOuter)
	return n, nil
}

// Autoescape scopes the active escape mode to its body: the mode name
// resolves at compile time; Verbatim is InvalidEscapeMode.
type Autoescape struct {
	Trimmable
	ModeName string
	Mode     EscapeMode
	Body     Node
	P        token.Position
}

func (n *Autoescape) Type() NodeType      { return TypeAutoescape }
func (n *Autoescape) Pos() token.Position { return n.P }

func (n *Autoescape) Render(ctx Context) (string, error) {
	prev := ctx.SetEscapeMode(n.Mode)
	s, err := n.Body.Render(ctx)
	ctx.SetEscapeMode(prev)
	if err != nil {
		return s, err
	}
	return Escape(n.Mode, s), nil
}

func (n *Autoescape) Evaluate(ctx Context) (value.Value, error) {
	s, err := n.Render(ctx)
	return value.String(s), err
}

func (n *Autoescape) IsConstant(Context) bool { return false }

func (n *Autoescape) Compile(ctx Context, info *CompileInfo) (Node, error) {
	mode, ok := ResolveEscapeMode(n.ModeName)
	if !ok || mode == Verbatim {
		return nil, errors.New(errors.Compiler, errors.InvalidEscapeMode, n.P, "invalid autoescape mode %q", n.ModeName)
	}
	n.Mode = mode

	newBody, err := n.Body.Compile(ctx, info)
	if err != nil {
		return nil, err
	}
	n.Body = info.Transfer(n.Body, newBody)
	return n, nil
}

var spacelessBoundary = regexp.MustCompile(`>\s+<`)

// Spaceless scopes rendering so that whitespace runs sitting between two
// HTML-like tags in its rendered output collapse to nothing, with
// leading/trailing boundary whitespace dropped as well.
type Spaceless struct {
	Trimmable
	Body Node
	P    token.Position
}

func (n *Spaceless) Type() NodeType      { return TypeSpaceless }
func (n *Spaceless) Pos() token.Position { return n.P }

func (n *Spaceless) Render(ctx Context) (string, error) {
	prev := ctx.SetSpaceless(true)
	s, err := n.Body.Render(ctx)
	ctx.SetSpaceless(prev)
	collapsed := spacelessBoundary.ReplaceAllString(s, "><")
	return strings.TrimSpace(collapsed), err
}

func (n *Spaceless) Evaluate(ctx Context) (value.Value, error) {
	s, err := n.Render(ctx)
	return value.String(s), err
}

func (n *Spaceless) IsConstant(Context) bool { return false }

func (n *Spaceless) Compile(ctx Context, info *CompileInfo) (Node, error) {
	newBody, err := n.Body.Compile(ctx, info)
	if err != nil {
		return nil, err
	}
	n.Body = info.Transfer(n.Body, newBody)
	return n, nil
}
