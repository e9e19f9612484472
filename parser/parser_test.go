package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgavlin/twig/ast"
	"github.com/pgavlin/twig/internal/errors"
)

func parseRoot(t *testing.T, src string) *ast.Multiple {
	t.Helper()
	n, err := Parse(src)
	require.NoError(t, err)
	m, ok := n.(*ast.Multiple)
	require.True(t, ok, "root is %T, want *ast.Multiple", n)
	return m
}

func TestParseText(t *testing.T) {
	root := parseRoot(t, "hello")
	require.Len(t, root.Items, 1)
	text, ok := root.Items[0].(*ast.Text)
	require.True(t, ok)
	assert.Equal(t, "hello", text.Bytes)
}

func TestParseExpansion(t *testing.T) {
	root := parseRoot(t, "{{ name }}")
	require.Len(t, root.Items, 1)
	v, ok := root.Items[0].(*ast.Variable)
	require.True(t, ok)
	assert.Equal(t, "name", v.Name)
}

func TestParseSet(t *testing.T) {
	root := parseRoot(t, "{% set x = 1 %}")
	require.Len(t, root.Items, 1)
	set, ok := root.Items[0].(*ast.Set)
	require.True(t, ok)
	assert.Equal(t, "x", set.Target.Name)
}

func TestParseIfElseIf(t *testing.T) {
	root := parseRoot(t, "{% if a %}A{% elseif b %}B{% else %}C{% endif %}")
	require.Len(t, root.Items, 1)
	top, ok := root.Items[0].(*ast.IfClause)
	require.True(t, ok)
	elseif, ok := top.OnFalse.(*ast.IfClause)
	require.True(t, ok, "elseif should fold into a nested IfClause")
	assert.NotNil(t, elseif.OnFalse)
}

func TestParseForWithKeyAndElse(t *testing.T) {
	root := parseRoot(t, "{% for k, v in items %}{{ v }}{% else %}empty{% endfor %}")
	require.Len(t, root.Items, 1)
	loop, ok := root.Items[0].(*ast.ForLoop)
	require.True(t, ok)
	require.NotNil(t, loop.KeyVar)
	assert.Equal(t, "k", loop.KeyVar.Name)
	assert.Equal(t, "v", loop.ValueVar.Name)
	assert.NotNil(t, loop.Else)
}

func TestParseBlock(t *testing.T) {
	root := parseRoot(t, "{% block content %}hi{% endblock content %}")
	require.Len(t, root.Items, 1)
	block, ok := root.Items[0].(*ast.Block)
	require.True(t, ok)
	assert.Equal(t, "content", block.Name)
}

func TestParseBadEndblockName(t *testing.T) {
	_, err := Parse("{% block a %}hi{% endblock b %}")
	require.Error(t, err)
	terr, ok := err.(*errors.Error)
	require.True(t, ok)
	assert.Equal(t, errors.BadEndblockName, terr.Kind())
}

func TestParseExtendsAndInclude(t *testing.T) {
	root := parseRoot(t, `{% extends "base.twig" %}{% include "partial.twig" %}`)
	require.Len(t, root.Items, 2)
	ext, ok := root.Items[0].(*ast.Include)
	require.True(t, ok)
	assert.True(t, ext.Extends)
	inc, ok := root.Items[1].(*ast.Include)
	require.True(t, ok)
	assert.False(t, inc.Extends)
}

func TestParseEmbed(t *testing.T) {
	root := parseRoot(t, `{% embed "card.twig" %}{% block title %}hi{% endblock %}{% endembed %}`)
	require.Len(t, root.Items, 1)
	_, ok := root.Items[0].(*ast.Embed)
	require.True(t, ok)
}

func TestParseFilterTag(t *testing.T) {
	root := parseRoot(t, "{% filter upper %}hi{% endfilter %}")
	require.Len(t, root.Items, 1)
	_, ok := root.Items[0].(*ast.Filter)
	require.True(t, ok)
}

func TestParseAutoescapeAndSpaceless(t *testing.T) {
	root := parseRoot(t, `{% autoescape "html" %}x{% endautoescape %}{% spaceless %}y{% endspaceless %}`)
	require.Len(t, root.Items, 2)
	auto, ok := root.Items[0].(*ast.Autoescape)
	require.True(t, ok)
	assert.Equal(t, "html", auto.ModeName)
	_, ok = root.Items[1].(*ast.Spaceless)
	require.True(t, ok)
}

func TestParseFilterChain(t *testing.T) {
	root := parseRoot(t, "{{ name|upper|trim }}")
	require.Len(t, root.Items, 1)
	outer, ok := root.Items[0].(*ast.MethodCall)
	require.True(t, ok)
	assert.Equal(t, "trim", outer.Name)
	inner, ok := outer.Args.Items[0].(*ast.MethodCall)
	require.True(t, ok)
	assert.Equal(t, "upper", inner.Name)
}

func TestParseTernary(t *testing.T) {
	root := parseRoot(t, "{{ a ? b : c }}")
	require.Len(t, root.Items, 1)
	tern, ok := root.Items[0].(*ast.Ternary)
	require.True(t, ok)
	assert.NotNil(t, tern.Cond)
	assert.NotNil(t, tern.OnTrue)
	assert.NotNil(t, tern.OnFalse)
}

func TestParseUnexpectedTrailingToken(t *testing.T) {
	_, err := Parse("{% endif %}")
	require.Error(t, err)
	terr, ok := err.(*errors.Error)
	require.True(t, ok)
	assert.Equal(t, errors.Parser, terr.Component())
}
