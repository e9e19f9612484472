package ast

import (
	"regexp"
	"sort"

	"github.com/pgavlin/twig/internal/errors"
	"github.com/pgavlin/twig/token"
	"github.com/pgavlin/twig/value"
)

// Literal is a constant value.
type Literal struct {
	Trimmable
	Val value.Value
	P   token.Position
}

func (n *Literal) Type() NodeType { return TypeLiteral }
func (n *Literal) Pos() token.Position { return n.P }
func (n *Literal) Render(ctx Context) (string, error) { return renderValue(n, ctx) }
func (n *Literal) Evaluate(Context) (value.Value, error) { return n.Val, nil }
func (n *Literal) IsConstant(Context) bool { return true }
func (n *Literal) Compile(Context, *CompileInfo) (Node, error) { return n, nil }

// Variable is a named read or write access, resolved to a slot (with
// write-flag and constant-flag) during compile.
type Variable struct {
	Trimmable
	Name string
	Write bool
	Slot int
	P    token.Position
}

func NewVariable(name string, pos token.Position) *Variable {
	return &Variable{Name: name, Slot: -1, P: pos}
}

func (n *Variable) Type() NodeType { return TypeVariable }
func (n *Variable) Pos() token.Position { return n.P }
func (n *Variable) Render(ctx Context) (string, error) { return renderValue(n, ctx) }

func (n *Variable) Evaluate(ctx Context) (value.Value, error) {
	if n.Slot < 0 {
		return value.Null, nil
	}
	return ctx.Value(n.Slot), nil
}

func (n *Variable) IsConstant(ctx Context) bool {
	return !n.Write && n.Slot >= 0 && ctx.IsVariableConstant(n.Slot)
}

func (n *Variable) Compile(ctx Context, info *CompileInfo) (Node, error) {
	n.Slot = ctx.VariableSlot(n.Name)
	ctx.AddUsage(n.Slot, n.P, n.Write, false)
	if n.Write {
		return n, nil
	}
	return foldIfConstant(n, ctx, info)
}

// ChainedVariable is a base Variable followed by an ordered sequence of
// key/index ValueNodes. Never constant.
type ChainedVariable struct {
	Trimmable
	Base  Node
	Chain []Node
	P     token.Position
}

func (n *ChainedVariable) Type() NodeType { return TypeChainedVariable }
func (n *ChainedVariable) Pos() token.Position { return n.P }
func (n *ChainedVariable) Render(ctx Context) (string, error) { return renderValue(n, ctx) }

func (n *ChainedVariable) Evaluate(ctx Context) (value.Value, error) {
	base, err := n.Base.Evaluate(ctx)
	if err != nil {
		return value.Null, err
	}
	steps := make([]value.Value, len(n.Chain))
	for i, c := range n.Chain {
		v, err := c.Evaluate(ctx)
		if err != nil {
			return value.Null, err
		}
		steps[i] = v
	}
	result, ok := value.Walk(base, steps)
	if !ok {
		return value.Null, nil
	}
	return result, nil
}

func (n *ChainedVariable) IsConstant(Context) bool { return false }

func (n *ChainedVariable) Compile(ctx Context, info *CompileInfo) (Node, error) {
	newBase, err := n.Base.Compile(ctx, info)
	if err != nil {
		return nil, err
	}
	n.Base = info.Transfer(n.Base, newBase)
	for i, c := range n.Chain {
		nc, err := c.Compile(ctx, info)
		if err != nil {
			return nil, err
		}
		n.Chain[i] = info.Transfer(c, nc)
	}
	return n, nil
}

// MultipleValue is an ordered sequence of ValueNodes: argument lists and
// list literals.
type MultipleValue struct {
	Trimmable
	Items []Node
	P     token.Position
}

func (n *MultipleValue) Type() NodeType { return TypeMultipleValue }
func (n *MultipleValue) Pos() token.Position { return n.P }
func (n *MultipleValue) Render(ctx Context) (string, error) { return renderValue(n, ctx) }

func (n *MultipleValue) Evaluate(ctx Context) (value.Value, error) {
	items := make([]value.Value, len(n.Items))
	for i, it := range n.Items {
		v, err := it.Evaluate(ctx)
		if err != nil {
			return value.Null, err
		}
		items[i] = v
	}
	return value.List(items), nil
}

func (n *MultipleValue) IsConstant(ctx Context) bool {
	for _, it := range n.Items {
		if !it.IsConstant(ctx) {
			return false
		}
	}
	return true
}

func (n *MultipleValue) Compile(ctx Context, info *CompileInfo) (Node, error) {
	for i, it := range n.Items {
		nc, err := it.Compile(ctx, info)
		if err != nil {
			return nil, err
		}
		n.Items[i] = info.Transfer(it, nc)
	}
	return foldIfConstant(n, ctx, info)
}

// Operator is the closed set of operators, tests and unaries consumed by
// Expression's single evaluator (design note: "Operators as a closed
// tag" — no per-operator polymorphic classes).
type Operator int

const (
	OpAdd Operator = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpConcat
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpNot
	OpNeg
	OpIn
	OpNotIn
	OpDivisibleBy
	OpStartsWith
	OpEndsWith
	OpDefined
	OpIsNull
	OpEmpty
	OpIterable
	OpEven
	OpOdd
)

// Expression is a single operator applied to one or two operands.
type Expression struct {
	Trimmable
	Op    Operator
	Left  Node
	Right Node
	P     token.Position
}

func (n *Expression) Type() NodeType { return TypeExpression }
func (n *Expression) Pos() token.Position { return n.P }
func (n *Expression) Render(ctx Context) (string, error) { return renderValue(n, ctx) }

func (n *Expression) IsConstant(ctx Context) bool {
	if !n.Left.IsConstant(ctx) {
		return false
	}
	return n.Right == nil || n.Right.IsConstant(ctx)
}

func (n *Expression) Evaluate(ctx Context) (value.Value, error) {
	left, err := n.Left.Evaluate(ctx)
	if err != nil {
		return value.Null, err
	}

	unary := map[Operator]bool{OpNot: true, OpNeg: true, OpDefined: true, OpIsNull: true,
		OpEmpty: true, OpIterable: true, OpEven: true, OpOdd: true}
	if unary[n.Op] {
		return evalUnary(n.Op, left)
	}

	var right value.Value
	if n.Right != nil {
		right, err = n.Right.Evaluate(ctx)
		if err != nil {
			return value.Null, err
		}
	}
	return evalBinary(n.Op, left, right)
}

func evalUnary(op Operator, v value.Value) (value.Value, error) {
	switch op {
	case OpNot:
		return value.Bool(!v.Truthy()), nil
	case OpNeg:
		f, _ := v.Number()
		return value.Float(-f), nil
	case OpDefined:
		return value.Bool(!v.IsNull()), nil
	case OpIsNull:
		return value.Bool(v.IsNull()), nil
	case OpEmpty:
		return value.Bool(!v.Truthy()), nil
	case OpIterable:
		return value.Bool(v.Kind() == value.KindList || v.Kind() == value.KindMap), nil
	case OpEven:
		f, _ := v.Number()
		return value.Bool(int64(f)%2 == 0), nil
	case OpOdd:
		f, _ := v.Number()
		return value.Bool(int64(f)%2 != 0), nil
	}
	return value.Null, nil
}

func evalBinary(op Operator, left, right value.Value) (value.Value, error) {
	switch op {
	case OpAdd:
		a, _ := left.Number()
		b, _ := right.Number()
		return numberResult(left, right, a+b), nil
	case OpSub:
		a, _ := left.Number()
		b, _ := right.Number()
		return numberResult(left, right, a-b), nil
	case OpMul:
		a, _ := left.Number()
		b, _ := right.Number()
		return numberResult(left, right, a*b), nil
	case OpDiv:
		a, _ := left.Number()
		b, _ := right.Number()
		if b == 0 {
			return value.Float(0), nil
		}
		return value.Float(a / b), nil
	case OpMod:
		a, _ := left.Number()
		b, _ := right.Number()
		if int64(b) == 0 {
			return value.Int(0), nil
		}
		return value.Int(int64(a) % int64(b)), nil
	case OpPow:
		a, _ := left.Number()
		b, _ := right.Number()
		return value.Float(pow(a, b)), nil
	case OpConcat:
		return value.String(left.String() + right.String()), nil
	case OpEq:
		return value.Bool(value.Equal(left, right)), nil
	case OpNe:
		return value.Bool(!value.Equal(left, right)), nil
	case OpLt:
		return value.Bool(value.Less(left, right)), nil
	case OpLe:
		return value.Bool(value.Less(left, right) || value.Equal(left, right)), nil
	case OpGt:
		return value.Bool(value.Less(right, left)), nil
	case OpGe:
		return value.Bool(value.Less(right, left) || value.Equal(left, right)), nil
	case OpAnd:
		return value.Bool(left.Truthy() && right.Truthy()), nil
	case OpOr:
		return value.Bool(left.Truthy() || right.Truthy()), nil
	case OpIn:
		return value.Bool(value.Contains(left, right)), nil
	case OpNotIn:
		return value.Bool(!value.Contains(left, right)), nil
	case OpDivisibleBy:
		a, _ := left.Number()
		b, _ := right.Number()
		if int64(b) == 0 {
			return value.Bool(false), nil
		}
		return value.Bool(int64(a)%int64(b) == 0), nil
	case OpStartsWith:
		return value.Bool(hasPrefix(left.String(), right.String())), nil
	case OpEndsWith:
		return value.Bool(hasSuffix(left.String(), right.String())), nil
	}
	return value.Null, nil
}

func numberResult(left, right value.Value, f float64) value.Value {
	if left.IsIntegral() && right.IsIntegral() && f == float64(int64(f)) {
		return value.Int(int64(f))
	}
	return value.Float(f)
}

func pow(a, b float64) float64 {
	r := 1.0
	neg := b < 0
	n := int(b)
	if float64(n) != b || neg {
		// only non-negative integer exponents are computed, by repeated
		// multiplication; negative or non-integer exponents yield 0.
		return 0
	}
	for i := 0; i < n; i++ {
		r *= a
	}
	return r
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

func (n *Expression) Compile(ctx Context, info *CompileInfo) (Node, error) {
	newLeft, err := n.Left.Compile(ctx, info)
	if err != nil {
		return nil, err
	}
	n.Left = info.Transfer(n.Left, newLeft)
	if n.Right != nil {
		newRight, err := n.Right.Compile(ctx, info)
		if err != nil {
			return nil, err
		}
		n.Right = info.Transfer(n.Right, newRight)
	}
	return foldIfConstant(n, ctx, info)
}

// MatchesTest is the `matches` test producing a boolean from a regex
// match. Never constant; its regex is precompiled at compile time only
// when the regex operand is itself constant.
type MatchesTest struct {
	Trimmable
	Val      Node
	Regex    Node
	Compiled *regexp.Regexp
	P        token.Position
}

func (n *MatchesTest) Type() NodeType { return TypeMatchesTest }
func (n *MatchesTest) Pos() token.Position { return n.P }
func (n *MatchesTest) Render(ctx Context) (string, error) { return renderValue(n, ctx) }
func (n *MatchesTest) IsConstant(Context) bool { return false }

func (n *MatchesTest) Evaluate(ctx Context) (value.Value, error) {
	v, err := n.Val.Evaluate(ctx)
	if err != nil {
		return value.Null, err
	}
	re := n.Compiled
	if re == nil {
		rv, err := n.Regex.Evaluate(ctx)
		if err != nil {
			return value.Null, err
		}
		re, err = regexp.Compile(rv.String())
		if err != nil {
			return value.Null, errors.New(errors.Renderer, errors.InvalidRegularExpression, n.P, "%v", err)
		}
	}
	return value.Bool(re.MatchString(v.String())), nil
}

func (n *MatchesTest) Compile(ctx Context, info *CompileInfo) (Node, error) {
	newVal, err := n.Val.Compile(ctx, info)
	if err != nil {
		return nil, err
	}
	n.Val = info.Transfer(n.Val, newVal)

	newRegex, err := n.Regex.Compile(ctx, info)
	if err != nil {
		return nil, err
	}
	n.Regex = info.Transfer(n.Regex, newRegex)

	if n.Regex.IsConstant(ctx) {
		rv, err := n.Regex.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(rv.String())
		if err != nil {
			return nil, errors.New(errors.Compiler, errors.InvalidRegularExpression, n.P, "%v", err)
		}
		n.Compiled = re
	}
	return n, nil
}

// Ternary is `cond ? onTrue : onFalse`, with the shorthand `cond ?: b`
// parsed as OnTrue == nil meaning "reuse cond's own value".
type Ternary struct {
	Trimmable
	Cond    Node
	OnTrue  Node
	OnFalse Node
	P       token.Position
}

func (n *Ternary) Type() NodeType { return TypeTernary }
func (n *Ternary) Pos() token.Position { return n.P }
func (n *Ternary) Render(ctx Context) (string, error) { return renderValue(n, ctx) }

func (n *Ternary) IsConstant(ctx Context) bool {
	if !n.Cond.IsConstant(ctx) {
		return false
	}
	if n.OnTrue != nil && !n.OnTrue.IsConstant(ctx) {
		return false
	}
	return n.OnFalse.IsConstant(ctx)
}

func (n *Ternary) Evaluate(ctx Context) (value.Value, error) {
	cond, err := n.Cond.Evaluate(ctx)
	if err != nil {
		return value.Null, err
	}
	if cond.Truthy() {
		if n.OnTrue == nil {
			return cond, nil
		}
		return n.OnTrue.Evaluate(ctx)
	}
	return n.OnFalse.Evaluate(ctx)
}

func (n *Ternary) Compile(ctx Context, info *CompileInfo) (Node, error) {
	newCond, err := n.Cond.Compile(ctx, info)
	if err != nil {
		return nil, err
	}
	n.Cond = info.Transfer(n.Cond, newCond)
	if n.OnTrue != nil {
		newTrue, err := n.OnTrue.Compile(ctx, info)
		if err != nil {
			return nil, err
		}
		n.OnTrue = info.Transfer(n.OnTrue, newTrue)
	}
	newFalse, err := n.OnFalse.Compile(ctx, info)
	if err != nil {
		return nil, err
	}
	n.OnFalse = info.Transfer(n.OnFalse, newFalse)
	return foldIfConstant(n, ctx, info)
}

// MethodCall is a filter or function invocation: `name(args...)` or the
// desugared form of `value|name(args...)`.
type MethodCall struct {
	Trimmable
	Name   string
	Args   *MultipleValue
	NoFold bool // true for the synthetic calls built by a {% filter %} block
	P      token.Position
}

func (n *MethodCall) Type() NodeType { return TypeMethodCall }
func (n *MethodCall) Pos() token.Position { return n.P }
func (n *MethodCall) Render(ctx Context) (string, error) { return renderValue(n, ctx) }

func (n *MethodCall) Evaluate(ctx Context) (value.Value, error) {
	fn, ok := ctx.Function(n.Name)
	if !ok {
		return value.Null, nil
	}
	args := make([]value.Value, len(n.Args.Items))
	for i, a := range n.Args.Items {
		v, err := a.Evaluate(ctx)
		if err != nil {
			return value.Null, err
		}
		args[i] = v
	}
	return fn.Call(ctx, args)
}

func (n *MethodCall) IsConstant(ctx Context) bool {
	if n.NoFold {
		return false
	}
	fn, ok := ctx.Function(n.Name)
	return ok && fn.IsConstant && n.Args.IsConstant(ctx)
}

func (n *MethodCall) Compile(ctx Context, info *CompileInfo) (Node, error) {
	if n.Name == "parent" && len(n.Args.Items) == 0 {
		if info.CurrentParentBlock == nil {
			return nil, errors.New(errors.Compiler, errors.NoParentBlock, n.P,
				"parent() called outside of a block or in a block's initial definition")
		}
		return &Block{Body: info.CurrentParentBlock, P: n.P}, nil
	}
	newArgs, err := n.Args.Compile(ctx, info)
	if err != nil {
		return nil, err
	}
	if mv, ok := newArgs.(*MultipleValue); ok {
		n.Args = mv
	}
	return foldIfConstant(n, ctx, info)
}

// ValueMap is an ordered key -> ValueNode map literal; preserves
// insertion order.
type ValueMap struct {
	Trimmable
	Keys   []string
	Values []Node
	P      token.Position
}

func (n *ValueMap) Type() NodeType { return TypeValueMap }
func (n *ValueMap) Pos() token.Position { return n.P }
func (n *ValueMap) Render(ctx Context) (string, error) { return renderValue(n, ctx) }

func (n *ValueMap) Evaluate(ctx Context) (value.Value, error) {
	m := make(map[string]value.Value, len(n.Keys))
	for i, k := range n.Keys {
		v, err := n.Values[i].Evaluate(ctx)
		if err != nil {
			return value.Null, err
		}
		m[k] = v
	}
	return value.NewMap(n.Keys, m), nil
}

func (n *ValueMap) IsConstant(ctx Context) bool {
	for _, v := range n.Values {
		if !v.IsConstant(ctx) {
			return false
		}
	}
	return true
}

func (n *ValueMap) Compile(ctx Context, info *CompileInfo) (Node, error) {
	for i, v := range n.Values {
		nv, err := v.Compile(ctx, info)
		if err != nil {
			return nil, err
		}
		n.Values[i] = info.Transfer(v, nv)
	}
	return foldIfConstant(n, ctx, info)
}

// StringInsert is one `#{…}` interpolation site within a String node's
// literal template: the byte range it replaces and the node producing
// the replacement text.
type StringInsert struct {
	Offset int
	Length int
	Node   Node
}

// String is a string literal that contains one or more `#{…}`
// interpolations. A literal with no interpolation is emitted directly
// as a Literal by the parser.
type String struct {
	Trimmable
	Template string
	Inserts  []StringInsert
	P        token.Position
}

func (n *String) Type() NodeType { return TypeString }
func (n *String) Pos() token.Position { return n.P }
func (n *String) Render(ctx Context) (string, error) { return renderValue(n, ctx) }

func (n *String) Evaluate(ctx Context) (value.Value, error) {
	if len(n.Inserts) == 0 {
		return value.String(n.Template), nil
	}
	ordered := append([]StringInsert(nil), n.Inserts...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Offset < ordered[j].Offset })

	result := []byte(n.Template)
	delta := 0
	for _, ins := range ordered {
		v, err := ins.Node.Evaluate(ctx)
		if err != nil {
			return value.Null, err
		}
		repl := []byte(v.String())
		start := ins.Offset + delta
		end := start + ins.Length
		if start < 0 || end > len(result) || start > end {
			continue
		}
		next := append([]byte{}, result[:start]...)
		next = append(next, repl...)
		next = append(next, result[end:]...)
		result = next
		delta += len(repl) - ins.Length
	}
	return value.String(string(result)), nil
}

func (n *String) IsConstant(ctx Context) bool {
	for _, ins := range n.Inserts {
		if !ins.Node.IsConstant(ctx) {
			return false
		}
	}
	return true
}

func (n *String) Compile(ctx Context, info *CompileInfo) (Node, error) {
	for i, ins := range n.Inserts {
		nc, err := ins.Node.Compile(ctx, info)
		if err != nil {
			return nil, err
		}
		n.Inserts[i].Node = info.Transfer(ins.Node, nc)
	}
	return foldIfConstant(n, ctx, info)
}
