package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgavlin/twig/ast"
	"github.com/pgavlin/twig/internal/errors"
	"github.com/pgavlin/twig/parser"
	"github.com/pgavlin/twig/token"
	"github.com/pgavlin/twig/value"
)

func compileSrc(t *testing.T, src string, opts Options) *Program {
	t.Helper()
	root, err := parser.Parse(src)
	require.NoError(t, err)
	p, err := Compile(root, opts)
	require.NoError(t, err)
	return p
}

// A single top-level item whose whole value folds to a constant is not
// just folded to a *ast.Literal but further merged into the enclosing
// Multiple's adjacent-Text run; when that run is the template's only
// item, Multiple.Compile replaces the whole root with it (see
// ast.Multiple.Compile's merge pass), so a fully constant one-expression
// template compiles straight down to a bare *ast.Text root.
func TestCompileConstantFolding(t *testing.T) {
	p := compileSrc(t, "{{ 1 + 2 }}", Options{})
	text, ok := p.root.(*ast.Text)
	require.True(t, ok, "expected constant 1+2 to fold all the way to Text, got %T", p.root)
	assert.Equal(t, "3", text.Bytes)

	out, err := p.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "3", out)
}

func TestCompileConstantIfFoldsAwayEntirely(t *testing.T) {
	p := compileSrc(t, "{% if 1 > 2 %}A{% else %}B{% endif %}", Options{})
	text, ok := p.root.(*ast.Text)
	require.True(t, ok, "expected constant if/else to fold to Text, got %T", p.root)
	assert.Equal(t, "B", text.Bytes)

	out, err := p.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "B", out)
}

func TestCompileNonConstantExpressionSurvives(t *testing.T) {
	p := compileSrc(t, "{{ 1 + n }}", Options{})
	_, ok := p.root.(*ast.Expression)
	assert.True(t, ok, "expected non-constant expression to remain unfolded, got %T", p.root)
}

func TestCompileTrimMarkers(t *testing.T) {
	p := compileSrc(t, "a \n{{- 1 -}}\n b", Options{})
	out, err := p.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "a1b", out)
}

func TestCompileNeededVariables(t *testing.T) {
	p := compileSrc(t, "{% set x = 1 %}{{ x }}{{ y }}", Options{})
	assert.Equal(t, []string{"y"}, p.NeededVariables())
}

func TestCompileCanRender(t *testing.T) {
	p := compileSrc(t, "{{ y }}", Options{})
	ok, missing := p.CanRender(map[string]value.Value{})
	assert.False(t, ok)
	assert.Equal(t, []string{"y"}, missing)

	ok, missing = p.CanRender(map[string]value.Value{"y": value.Int(1)})
	assert.True(t, ok)
	assert.Empty(t, missing)
}

func TestCompileNonConstantIncludeName(t *testing.T) {
	_, err := Compile(mustParse(t, "{% include name %}"), Options{
		LoadAndParse: func(string) (ast.Node, error) { return nil, nil },
	})
	require.Error(t, err)
	terr, ok := err.(*errors.Error)
	require.True(t, ok)
	assert.Equal(t, errors.NonConstantExpression, terr.Kind())
}

func TestCompileExtendsBlockOverrideAndParent(t *testing.T) {
	templates := map[string]string{
		"base.twig":  `{% block content %}base{% endblock %}`,
		"child.twig": `{% extends "base.twig" %}{% block content %}child-{{ parent() }}{% endblock %}`,
	}
	load := func(name string) (ast.Node, error) {
		src, ok := templates[name]
		if !ok {
			return nil, errors.New(errors.Compiler, errors.TemplateNotFound, token.Position{}, "template %q not found", name)
		}
		return parser.Parse(src)
	}
	root, err := parser.Parse(templates["child.twig"])
	require.NoError(t, err)
	p, err := Compile(root, Options{LoadAndParse: load})
	require.NoError(t, err)

	out, err := p.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "child-base", out)
	assert.Contains(t, p.Dependencies(), "base.twig")
}

func mustParse(t *testing.T, src string) ast.Node {
	t.Helper()
	n, err := parser.Parse(src)
	require.NoError(t, err)
	return n
}
