package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgavlin/twig/internal/errors"
	"github.com/pgavlin/twig/loader"
	"github.com/pgavlin/twig/value"
)

func newTestEngine(t *testing.T, templates map[string]string) (*Engine, *loader.MemoryLoader) {
	t.Helper()
	ld := loader.NewMemoryLoader()
	for name, src := range templates {
		ld.Add(name, []byte(src), time.Now())
	}
	return New(ld, Config{}, nil), ld
}

func TestScenario1ConstantArithmetic(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{"t": "{{ 1 + 2 * 3 }}"})
	out, err := e.Render("t", nil)
	require.NoError(t, err)
	assert.Equal(t, "7", out)
}

func TestScenario2VariableSubstitutionAndMissing(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{"t": "Hello {{ name }}!"})

	out, err := e.Render("t", map[string]value.Value{"name": value.String("World")})
	require.NoError(t, err)
	assert.Equal(t, "Hello World!", out)

	_, err = e.Render("t", nil)
	require.Error(t, err)
	terr, ok := err.(*errors.Error)
	require.True(t, ok)
	assert.Equal(t, errors.Renderer, terr.Component())
	assert.Equal(t, errors.VariableNotSet, terr.Kind())
}

func TestScenario3ConstantIfFolds(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{"t": "{% if 1 > 2 %}A{% else %}B{% endif %}"})
	out, err := e.Render("t", nil)
	require.NoError(t, err)
	assert.Equal(t, "B", out)
}

func TestScenario4ExtendsBlockOverride(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"base":  `{% block b %}X{% endblock %}`,
		"child": `{% extends "base" %}{% block b %}Y{% endblock %}`,
	})

	out, err := e.Render("child", nil)
	require.NoError(t, err)
	assert.Equal(t, "Y", out)

	out, err = e.Render("base", nil)
	require.NoError(t, err)
	assert.Equal(t, "X", out)
}

func TestScenario5ForLoopNeedsValueNotLoop(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"t": "{% for i in [1,2,3] %}{{ loop.index }}:{{ i }};{% endfor %}",
	})
	out, err := e.Render("t", nil)
	require.NoError(t, err)
	assert.Equal(t, "1:1;2:2;3:3;", out)

	p, err := e.Program("t")
	require.NoError(t, err)
	assert.NotContains(t, p.NeededVariables(), "loop")
}

func TestScenario6AutoescapeNoDoubleEscape(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"t":  `{% autoescape "html" %}{{ s }}{% endautoescape %}`,
		"t2": `{% autoescape "html" %}{{ s|escape }}{% endautoescape %}`,
	})
	vars := map[string]value.Value{"s": value.String("<a>")}

	out, err := e.Render("t", vars)
	require.NoError(t, err)
	assert.Equal(t, "&lt;a&gt;", out)

	out2, err := e.Render("t2", vars)
	require.NoError(t, err)
	assert.Equal(t, "&lt;a&gt;", out2)
}

func TestBareExpansionNotAutoescaped(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{"t": "{{ s }}"})
	out, err := e.Render("t", map[string]value.Value{"s": value.String("<a>")})
	require.NoError(t, err)
	assert.Equal(t, "<a>", out)
}

func TestDefaultAutoescapeWrapsWholeTemplate(t *testing.T) {
	ld := loader.NewMemoryLoader()
	ld.Add("t", []byte("{{ s }}"), time.Now())
	e := New(ld, Config{DefaultAutoescape: "html"}, nil)

	out, err := e.Render("t", map[string]value.Value{"s": value.String("<a>")})
	require.NoError(t, err)
	assert.Equal(t, "&lt;a&gt;", out)
}

func TestEngineCachePersistsUntilTemplateChanges(t *testing.T) {
	e, ld := newTestEngine(t, map[string]string{"t": "{{ 1 + 1 }}"})
	first, err := e.Program("t")
	require.NoError(t, err)
	second, err := e.Program("t")
	require.NoError(t, err)
	assert.Same(t, first, second, "unchanged template should reuse the cached Program")

	ld.Add("t", []byte("{{ 2 + 2 }}"), time.Now().Add(time.Hour))
	third, err := e.Program("t")
	require.NoError(t, err)
	assert.NotSame(t, first, third, "changed template should recompile")
	out, err := third.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "4", out)
}

func TestEngineFlushCache(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{"t": "{{ 1 }}"})
	first, err := e.Program("t")
	require.NoError(t, err)
	e.FlushCache()
	second, err := e.Program("t")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestEngineSetValueFeedsRender(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{"t": "{{ name }}"})
	e.SetValue("name", value.String("Ambient"))
	out, err := e.Render("t", nil)
	require.NoError(t, err)
	assert.Equal(t, "Ambient", out)

	out, err = e.Render("t", map[string]value.Value{"name": value.String("Override")})
	require.NoError(t, err)
	assert.Equal(t, "Override", out)
}
