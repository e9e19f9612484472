package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgavlin/twig/ast"
	"github.com/pgavlin/twig/value"
)

func byName(t *testing.T) map[string]ast.Function {
	t.Helper()
	out := map[string]ast.Function{}
	for _, fn := range All(nil) {
		out[fn.Name] = fn
	}
	return out
}

func call(t *testing.T, name string, args ...value.Value) value.Value {
	t.Helper()
	fns := byName(t)
	fn, ok := fns[name]
	require.True(t, ok, "no such function %q", name)
	v, err := fn.Call(nil, args)
	require.NoError(t, err)
	return v
}

func TestAllConstancyTags(t *testing.T) {
	fns := byName(t)
	constant := []string{"abs", "upper", "lower", "length", "join", "range", "escape", "e"}
	for _, name := range constant {
		assert.True(t, fns[name].IsConstant, "%s should be constant-foldable", name)
	}
	localeOnly := []string{"date", "number_format"}
	for _, name := range localeOnly {
		assert.False(t, fns[name].IsConstant, "%s is only constant modulo locale", name)
	}
	never := []string{"dump", "random", "block"}
	for _, name := range never {
		assert.False(t, fns[name].IsConstant, "%s should never fold", name)
	}
}

func TestFnAbs(t *testing.T) {
	assert.Equal(t, "5", call(t, "abs", value.Int(-5)).String())
	assert.Equal(t, "5", call(t, "abs", value.Int(5)).String())
}

func TestFnUpperLower(t *testing.T) {
	assert.Equal(t, "ABC", call(t, "upper", value.String("aBc")).String())
	assert.Equal(t, "abc", call(t, "lower", value.String("aBc")).String())
}

func TestFnLength(t *testing.T) {
	assert.Equal(t, "3", call(t, "length", value.String("abc")).String())
	assert.Equal(t, "2", call(t, "length", value.List([]value.Value{value.Int(1), value.Int(2)})).String())
}

func TestFnJoin(t *testing.T) {
	list := value.List([]value.Value{value.String("a"), value.String("b"), value.String("c")})
	assert.Equal(t, "abc", call(t, "join", list).String())
	assert.Equal(t, "a-b-c", call(t, "join", list, value.String("-")).String())
}

func TestFnDefault(t *testing.T) {
	assert.Equal(t, "x", call(t, "default", value.String(""), value.String("x")).String())
	assert.Equal(t, "y", call(t, "default", value.String("y"), value.String("x")).String())
}

func TestFnFirstLast(t *testing.T) {
	list := value.List([]value.Value{value.Int(1), value.Int(2), value.Int(3)})
	assert.Equal(t, "1", call(t, "first", list).String())
	assert.Equal(t, "3", call(t, "last", list).String())
	assert.Equal(t, "a", call(t, "first", value.String("abc")).String())
}

func TestFnKeys(t *testing.T) {
	m := value.NewMap([]string{"b", "a"}, map[string]value.Value{"a": value.Int(1), "b": value.Int(2)})
	ks := call(t, "keys", m)
	require.Equal(t, value.KindList, ks.Kind())
	require.Len(t, ks.ListValue(), 2)
	assert.Equal(t, "b", ks.ListValue()[0].String())
	assert.Equal(t, "a", ks.ListValue()[1].String())
}

func TestFnRange(t *testing.T) {
	r := call(t, "range", value.Int(1), value.Int(3))
	require.Equal(t, value.KindList, r.Kind())
	got := make([]string, len(r.ListValue()))
	for i, v := range r.ListValue() {
		got[i] = v.String()
	}
	assert.Equal(t, []string{"1", "2", "3"}, got)
}

func TestFnReplace(t *testing.T) {
	m := value.NewMap([]string{"%name%"}, map[string]value.Value{"%name%": value.String("world")})
	assert.Equal(t, "hello world", call(t, "replace", value.String("hello %name%"), m).String())
}

func TestFnSplit(t *testing.T) {
	parts := call(t, "split", value.String("a,b,c"), value.String(","))
	require.Equal(t, value.KindList, parts.Kind())
	require.Len(t, parts.ListValue(), 3)
	assert.Equal(t, "b", parts.ListValue()[1].String())
}

func TestFnSort(t *testing.T) {
	list := value.List([]value.Value{value.Int(3), value.Int(1), value.Int(2)})
	sorted := call(t, "sort", list)
	got := make([]string, len(sorted.ListValue()))
	for i, v := range sorted.ListValue() {
		got[i] = v.String()
	}
	assert.Equal(t, []string{"1", "2", "3"}, got)
}

func TestFnTrim(t *testing.T) {
	assert.Equal(t, "hi", call(t, "trim", value.String("  hi  ")).String())
}

func TestFnStripTags(t *testing.T) {
	assert.Equal(t, "hi", call(t, "striptags", value.String("<b>hi</b>")).String())
}

func TestFnMerge(t *testing.T) {
	a := value.List([]value.Value{value.Int(1), value.Int(2)})
	b := value.List([]value.Value{value.Int(3)})
	merged := call(t, "merge", a, b)
	require.Len(t, merged.ListValue(), 3)
}

func TestFnMinMax(t *testing.T) {
	list := value.List([]value.Value{value.Int(3), value.Int(1), value.Int(2)})
	assert.Equal(t, "1", call(t, "min", list).String())
	assert.Equal(t, "3", call(t, "max", list).String())
}
