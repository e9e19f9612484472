package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pgavlin/twig/token"
)

func typesOf(toks token.Tokens) []token.Type {
	out := make([]token.Type, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func TestLexText(t *testing.T) {
	toks, err := Lex("hello world")
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, []token.Type{token.Text, token.EOF}, typesOf(toks))
	assert.Equal(t, "hello world", toks[0].Value)
}

func TestLexExpansion(t *testing.T) {
	toks, err := Lex("{{ name }}")
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, []token.Type{
		token.ExpansionBegin, token.Symbol, token.ExpansionEnd, token.EOF,
	}, typesOf(toks))
	assert.Equal(t, "name", toks[1].Value)
}

func TestLexCommandKeywords(t *testing.T) {
	toks, err := Lex("{% if cond %}body{% endif %}")
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, []token.Type{
		token.CommandBegin, token.If, token.Symbol, token.CommandEnd,
		token.Text,
		token.CommandBegin, token.EndIf, token.CommandEnd,
		token.EOF,
	}, typesOf(toks))
}

func TestLexComment(t *testing.T) {
	toks, err := Lex("before{# dropped #}after")
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, []token.Type{token.Text, token.Text, token.EOF}, typesOf(toks))
	assert.Equal(t, "before", toks[0].Value)
	assert.Equal(t, "after", toks[1].Value)
}

func TestLexTrimMarkers(t *testing.T) {
	toks, err := Lex("a {{- x -}} b")
	if !assert.NoError(t, err) {
		return
	}
	var begin, end token.Token
	for _, tk := range toks {
		switch tk.Type {
		case token.ExpansionBegin:
			begin = tk
		case token.ExpansionEnd:
			end = tk
		}
	}
	assert.True(t, begin.TrimLeft)
	assert.True(t, end.TrimRight)
}

func TestLexStandaloneCommandAbsorbsTrailingNewline(t *testing.T) {
	toks, err := Lex("before\n{% set x = 1 %}\nafter")
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, []token.Type{
		token.Text,
		token.CommandBegin, token.Set, token.Symbol, token.Assign, token.Integer, token.CommandEnd,
		token.Text,
		token.EOF,
	}, typesOf(toks))
	assert.Equal(t, "before\n", toks[0].Value)
	assert.Equal(t, "after", toks[len(toks)-2].Value)
}

func TestLexIndentedStandaloneCommandAbsorbsTrailingNewline(t *testing.T) {
	toks, err := Lex("  {% set x = 1 %}  \nafter")
	if !assert.NoError(t, err) {
		return
	}
	var text []string
	for _, tk := range toks {
		if tk.Type == token.Text {
			text = append(text, tk.Value)
		}
	}
	assert.Equal(t, []string{"  ", "after"}, text)
}

func TestLexNonStandaloneCommandKeepsTrailingNewline(t *testing.T) {
	toks, err := Lex("x {% set x = 1 %}\nafter")
	if !assert.NoError(t, err) {
		return
	}
	var text []string
	for _, tk := range toks {
		if tk.Type == token.Text {
			text = append(text, tk.Value)
		}
	}
	assert.Equal(t, []string{"x ", "\nafter"}, text)
}

func TestLexLiterals(t *testing.T) {
	cases := map[string][]token.Type{
		`{{ 1 }}`:        {token.ExpansionBegin, token.Integer, token.ExpansionEnd, token.EOF},
		`{{ 1.5 }}`:      {token.ExpansionBegin, token.Number, token.ExpansionEnd, token.EOF},
		`{{ "s" }}`:      {token.ExpansionBegin, token.String, token.ExpansionEnd, token.EOF},
		`{{ true }}`:     {token.ExpansionBegin, token.True, token.ExpansionEnd, token.EOF},
		`{{ false }}`:    {token.ExpansionBegin, token.False, token.ExpansionEnd, token.EOF},
		`{{ a.b }}`:      {token.ExpansionBegin, token.Symbol, token.Dot, token.Symbol, token.ExpansionEnd, token.EOF},
		`{{ a[0] }}`:     {token.ExpansionBegin, token.Symbol, token.LBracket, token.Integer, token.RBracket, token.ExpansionEnd, token.EOF},
		`{{ a|b }}`:      {token.ExpansionBegin, token.Symbol, token.Pipe, token.Symbol, token.ExpansionEnd, token.EOF},
		`{{ a ~ b }}`:    {token.ExpansionBegin, token.Symbol, token.Tilde, token.Symbol, token.ExpansionEnd, token.EOF},
		`{{ a ** b }}`:   {token.ExpansionBegin, token.Symbol, token.StarStar, token.Symbol, token.ExpansionEnd, token.EOF},
		`{{ a is b }}`:   {token.ExpansionBegin, token.Symbol, token.Is, token.Symbol, token.ExpansionEnd, token.EOF},
	}
	for src, want := range cases {
		t.Run(src, func(t *testing.T) {
			toks, err := Lex(src)
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, want, typesOf(toks))
		})
	}
}

func TestLexUnknownToken(t *testing.T) {
	_, err := Lex(`{{ @ }}`)
	assert.Error(t, err)
}
