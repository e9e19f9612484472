// Package parser implements a recursive-descent parser: it consumes the
// token.Tokens stream produced by package lexer and produces a single
// ast.Node tree (always an *ast.Multiple at the root) ready for package
// compiler. Grammar errors are reported as typed *errors.Error values
// with errors.Parser/errors.SyntaxError (or the more specific
// errors.BadEndblockName), returned as ordinary Go errors threaded back
// through every parse function; the parser does not panic.
package parser

import (
	"strconv"

	"github.com/pgavlin/twig/ast"
	"github.com/pgavlin/twig/internal/errors"
	"github.com/pgavlin/twig/lexer"
	"github.com/pgavlin/twig/token"
	"github.com/pgavlin/twig/value"
)

// Parse tokenizes and parses src, returning the template's root node.
func Parse(src string) (ast.Node, error) {
	toks, err := lexer.Lex(src)
	if err != nil {
		return nil, err
	}
	return ParseTokens(toks)
}

// ParseTokens parses an already-tokenized template.
func ParseTokens(toks token.Tokens) (ast.Node, error) {
	p := &templateParser{toks: toks}
	body, err := p.parseItems(nil)
	if err != nil {
		return nil, err
	}
	if !p.check(token.EOF) {
		return nil, errors.New(errors.Parser, errors.SyntaxError, p.cur().Pos,
			"unexpected trailing %s", p.cur().Type)
	}
	return body, nil
}

// templateParser walks a flat token.Tokens slice with a small amount of
// lookahead; it holds no channel, no goroutine and no funcs map, since
// Twig's function/filter table lives entirely in the compiler's Context,
// resolved by name at compile time.
type templateParser struct {
	toks token.Tokens
	pos  int
}

func (p *templateParser) at(i int) token.Token {
	idx := p.pos + i
	if idx < 0 || idx >= len(p.toks) {
		return token.Token{Type: token.EOF}
	}
	return p.toks[idx]
}

func (p *templateParser) cur() token.Token { return p.at(0) }

func (p *templateParser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *templateParser) check(t token.Type) bool { return p.cur().Type == t }

func (p *templateParser) expect(t token.Type) (token.Token, error) {
	if !p.check(t) {
		return token.Token{}, errors.New(errors.Parser, errors.SyntaxError, p.cur().Pos,
			"expected %s, got %s", t, p.cur())
	}
	return p.advance(), nil
}

// setTrim applies raw trim bits to a freshly-built node via the
// ast.Trimmable mixin every node type embeds.
func setTrim(n ast.Node, bits ast.TrimMode) {
	if bits == ast.TrimNone {
		return
	}
	if t, ok := n.(interface{ SetTrimBits(ast.TrimMode) }); ok {
		t.SetTrimBits(bits)
	}
}

func trimGet(n ast.Node) ast.TrimMode {
	if t, ok := n.(ast.HasTrim); ok {
		return t.GetTrim()
	}
	return ast.TrimNone
}

// applyTagTrim sets Left from a single tag's opening delimiter and Right
// from its own (or its matching end-tag's) closing delimiter; used by the
// single-tag forms (set, extends, include, embed's own open tag).
func applyTagTrim(n ast.Node, begin, end token.Token) {
	var bits ast.TrimMode
	if begin.TrimLeft {
		bits |= ast.TrimLeft
	}
	if end.TrimRight {
		bits |= ast.TrimRight
	}
	setTrim(n, bits)
}

// parseItems collects statement-level nodes until EOF or, when stop is
// non-nil, until the upcoming command tag's keyword is in stop — in which
// case that tag is left unconsumed for the caller to handle.
func (p *templateParser) parseItems(stop map[token.Type]bool) (*ast.Multiple, error) {
	var items []ast.Node
	for {
		switch p.cur().Type {
		case token.EOF:
			return &ast.Multiple{Items: items}, nil
		case token.Text:
			tok := p.advance()
			items = append(items, &ast.Text{Bytes: tok.Value, P: tok.Pos})
		case token.ExpansionBegin:
			node, err := p.parseExpansion()
			if err != nil {
				return nil, err
			}
			items = append(items, node)
		case token.CommandBegin:
			if stop != nil {
				kw := p.at(1).Type
				if stop[kw] {
					return &ast.Multiple{Items: items}, nil
				}
			}
			node, err := p.parseCommand()
			if err != nil {
				return nil, err
			}
			items = append(items, node)
		default:
			return nil, errors.New(errors.Parser, errors.SyntaxError, p.cur().Pos,
				"unexpected %s", p.cur())
		}
	}
}

func (p *templateParser) parseExpansion() (ast.Node, error) {
	begin := p.advance() // ExpansionBegin
	val, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(token.ExpansionEnd)
	if err != nil {
		return nil, err
	}
	applyTagTrim(val, begin, end)
	return val, nil
}

func (p *templateParser) parseCommand() (ast.Node, error) {
	begin := p.advance() // CommandBegin
	switch p.cur().Type {
	case token.Set:
		return p.parseSet(begin)
	case token.If:
		return p.parseIf(begin)
	case token.For:
		return p.parseFor(begin)
	case token.Block:
		return p.parseBlock(begin)
	case token.Extends:
		return p.parseExtends(begin)
	case token.Include:
		return p.parseInclude(begin)
	case token.Embed:
		return p.parseEmbed(begin)
	case token.Filter:
		return p.parseFilterTag(begin)
	case token.Autoescape:
		return p.parseAutoescape(begin)
	case token.Spaceless:
		return p.parseSpacelessTag(begin)
	default:
		return nil, errors.New(errors.Parser, errors.SyntaxError, p.cur().Pos,
			"unexpected tag %s", p.cur())
	}
}

// parseScopedBody parses a body up to (not consuming) one of the stop
// keywords, then consumes the stop tag's CommandBegin so the caller can
// switch on its keyword; it sets the body's InnerLeft/InnerRight trim
// bits from the trim markers bracketing it.
func (p *templateParser) parseScopedBody(openEnd token.Token, stop map[token.Type]bool) (*ast.Multiple, token.Token, token.Token, error) {
	body, err := p.parseItems(stop)
	if err != nil {
		return nil, token.Token{}, token.Token{}, err
	}
	nextBegin, err := p.expect(token.CommandBegin)
	if err != nil {
		return nil, token.Token{}, token.Token{}, err
	}
	nextKw := p.cur()
	var bits ast.TrimMode
	if openEnd.TrimRight {
		bits |= ast.TrimInnerLeft
	}
	if nextBegin.TrimLeft {
		bits |= ast.TrimInnerRight
	}
	setTrim(body, bits)
	return body, nextBegin, nextKw, nil
}

func (p *templateParser) parseSet(begin token.Token) (ast.Node, error) {
	p.advance() // 'set'
	nameTok, err := p.expect(token.Symbol)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Assign); err != nil {
		return nil, err
	}
	val, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(token.CommandEnd)
	if err != nil {
		return nil, err
	}
	n := &ast.Set{Target: ast.NewVariable(nameTok.Value, nameTok.Pos), Val: val, P: begin.Pos}
	applyTagTrim(n, begin, end)
	return n, nil
}

func (p *templateParser) parseIf(begin token.Token) (ast.Node, error) {
	p.advance() // 'if' or 'elseif'
	cond, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	openEnd, err := p.expect(token.CommandEnd)
	if err != nil {
		return nil, err
	}
	trueBody, nextBegin, nextKw, err := p.parseScopedBody(openEnd, map[token.Type]bool{
		token.ElseIf: true, token.Else: true, token.EndIf: true,
	})
	if err != nil {
		return nil, err
	}

	node := &ast.IfClause{Cond: cond, OnTrue: trueBody, P: begin.Pos}
	var bits ast.TrimMode
	if begin.TrimLeft {
		bits |= ast.TrimLeft
	}

	switch nextKw.Type {
	case token.ElseIf:
		elseNode, err := p.parseIf(nextBegin)
		if err != nil {
			return nil, err
		}
		node.OnFalse = elseNode
		if trimGet(elseNode)&ast.TrimRight != 0 {
			bits |= ast.TrimRight
		}
		setTrim(node, bits)
		return node, nil

	case token.Else:
		p.advance() // 'else'
		elseEnd, err := p.expect(token.CommandEnd)
		if err != nil {
			return nil, err
		}
		falseBody, endBegin, endKw, err := p.parseScopedBody(elseEnd, map[token.Type]bool{token.EndIf: true})
		if err != nil {
			return nil, err
		}
		if endKw.Type != token.EndIf {
			return nil, errors.New(errors.Parser, errors.SyntaxError, endBegin.Pos, "expected endif")
		}
		node.OnFalse = falseBody
		p.advance() // 'endif'
		endClose, err := p.expect(token.CommandEnd)
		if err != nil {
			return nil, err
		}
		if endClose.TrimRight {
			bits |= ast.TrimRight
		}
		setTrim(node, bits)
		return node, nil

	case token.EndIf:
		p.advance() // 'endif' (nextBegin already consumed)
		endClose, err := p.expect(token.CommandEnd)
		if err != nil {
			return nil, err
		}
		if endClose.TrimRight {
			bits |= ast.TrimRight
		}
		setTrim(node, bits)
		return node, nil

	default:
		return nil, errors.New(errors.Parser, errors.SyntaxError, nextBegin.Pos, "expected elseif, else or endif")
	}
}

func (p *templateParser) parseFor(begin token.Token) (ast.Node, error) {
	p.advance() // 'for'
	first, err := p.expect(token.Symbol)
	if err != nil {
		return nil, err
	}
	var keyVar, valueVar *ast.Variable
	if p.check(token.Comma) {
		p.advance()
		second, err := p.expect(token.Symbol)
		if err != nil {
			return nil, err
		}
		keyVar = ast.NewVariable(first.Value, first.Pos)
		valueVar = ast.NewVariable(second.Value, second.Pos)
	} else {
		valueVar = ast.NewVariable(first.Value, first.Pos)
	}
	if _, err := p.expect(token.In); err != nil {
		return nil, err
	}
	iterable, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	var filterCond ast.Node
	if p.check(token.If) {
		p.advance()
		filterCond, err = p.parseValue()
		if err != nil {
			return nil, err
		}
	}
	openEnd, err := p.expect(token.CommandEnd)
	if err != nil {
		return nil, err
	}

	body, nextBegin, nextKw, err := p.parseScopedBody(openEnd, map[token.Type]bool{
		token.Else: true, token.EndFor: true,
	})
	if err != nil {
		return nil, err
	}

	node := &ast.ForLoop{KeyVar: keyVar, ValueVar: valueVar, Iterable: iterable, FilterCond: filterCond, Body: body, P: begin.Pos}
	var bits ast.TrimMode
	if begin.TrimLeft {
		bits |= ast.TrimLeft
	}

	if nextKw.Type == token.Else {
		p.advance() // 'else'
		elseEnd, err := p.expect(token.CommandEnd)
		if err != nil {
			return nil, err
		}
		elseBody, endBegin, endKw, err := p.parseScopedBody(elseEnd, map[token.Type]bool{token.EndFor: true})
		if err != nil {
			return nil, err
		}
		if endKw.Type != token.EndFor {
			return nil, errors.New(errors.Parser, errors.SyntaxError, endBegin.Pos, "expected endfor")
		}
		node.Else = elseBody
		nextBegin = endBegin
	} else if nextKw.Type != token.EndFor {
		return nil, errors.New(errors.Parser, errors.SyntaxError, nextBegin.Pos, "expected else or endfor")
	}

	p.advance() // 'endfor'
	endClose, err := p.expect(token.CommandEnd)
	if err != nil {
		return nil, err
	}
	if endClose.TrimRight {
		bits |= ast.TrimRight
	}
	setTrim(node, bits)
	return node, nil
}

func (p *templateParser) parseBlock(begin token.Token) (ast.Node, error) {
	p.advance() // 'block'
	nameTok, err := p.expect(token.Symbol)
	if err != nil {
		return nil, err
	}
	openEnd, err := p.expect(token.CommandEnd)
	if err != nil {
		return nil, err
	}
	body, endBegin, endKw, err := p.parseScopedBody(openEnd, map[token.Type]bool{token.EndBlock: true})
	if err != nil {
		return nil, err
	}
	if endKw.Type != token.EndBlock {
		return nil, errors.New(errors.Parser, errors.SyntaxError, endBegin.Pos, "expected endblock")
	}
	p.advance() // 'endblock'
	if p.check(token.Symbol) {
		closeName := p.advance()
		if closeName.Value != nameTok.Value {
			return nil, errors.New(errors.Parser, errors.BadEndblockName, closeName.Pos,
				"endblock name %q does not match block name %q", closeName.Value, nameTok.Value)
		}
	}
	endClose, err := p.expect(token.CommandEnd)
	if err != nil {
		return nil, err
	}
	node := &ast.Block{Name: nameTok.Value, Body: &ast.BlockBody{Node: body}, P: begin.Pos}
	var bits ast.TrimMode
	if begin.TrimLeft {
		bits |= ast.TrimLeft
	}
	if endClose.TrimRight {
		bits |= ast.TrimRight
	}
	setTrim(node, bits)
	return node, nil
}

func (p *templateParser) parseExtends(begin token.Token) (ast.Node, error) {
	p.advance() // 'extends'
	name, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(token.CommandEnd)
	if err != nil {
		return nil, err
	}
	n := &ast.Include{NameExpr: name, Extends: true, P: begin.Pos}
	applyTagTrim(n, begin, end)
	return n, nil
}

func (p *templateParser) parseInclude(begin token.Token) (ast.Node, error) {
	p.advance() // 'include'
	name, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(token.CommandEnd)
	if err != nil {
		return nil, err
	}
	n := &ast.Include{NameExpr: name, P: begin.Pos}
	applyTagTrim(n, begin, end)
	return n, nil
}

func (p *templateParser) parseEmbed(begin token.Token) (ast.Node, error) {
	p.advance() // 'embed'
	name, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	openEnd, err := p.expect(token.CommandEnd)
	if err != nil {
		return nil, err
	}
	body, endBegin, endKw, err := p.parseScopedBody(openEnd, map[token.Type]bool{token.EndEmbed: true})
	if err != nil {
		return nil, err
	}
	if endKw.Type != token.EndEmbed {
		return nil, errors.New(errors.Parser, errors.SyntaxError, endBegin.Pos, "expected endembed")
	}
	p.advance() // 'endembed'
	endClose, err := p.expect(token.CommandEnd)
	if err != nil {
		return nil, err
	}
	n := &ast.Embed{NameExpr: name, OverrideBody: body, P: begin.Pos}
	var bits ast.TrimMode
	if begin.TrimLeft {
		bits |= ast.TrimLeft
	}
	if endClose.TrimRight {
		bits |= ast.TrimRight
	}
	setTrim(n, bits)
	return n, nil
}

func (p *templateParser) parseFilterTag(begin token.Token) (ast.Node, error) {
	p.advance() // 'filter'
	placeholder := &ast.Literal{}
	outer, inner, err := p.parseFilterChain(&ast.MultipleValue{Items: []ast.Node{placeholder}})
	if err != nil {
		return nil, err
	}
	openEnd, err := p.expect(token.CommandEnd)
	if err != nil {
		return nil, err
	}
	body, endBegin, endKw, err := p.parseScopedBody(openEnd, map[token.Type]bool{token.EndFilter: true})
	if err != nil {
		return nil, err
	}
	if endKw.Type != token.EndFilter {
		return nil, errors.New(errors.Parser, errors.SyntaxError, endBegin.Pos, "expected endfilter")
	}
	p.advance() // 'endfilter'
	endClose, err := p.expect(token.CommandEnd)
	if err != nil {
		return nil, err
	}
	n := &ast.Filter{Outer: outer, Inner: inner, Placeholder: placeholder, Body: body, P: begin.Pos}
	var bits ast.TrimMode
	if begin.TrimLeft {
		bits |= ast.TrimLeft
	}
	if endClose.TrimRight {
		bits |= ast.TrimRight
	}
	setTrim(n, bits)
	return n, nil
}

// parseFilterChain parses one or more `|name(args)` filter applications
// starting from firstArgs (the first call's argument list, already
// populated with the piped-in value as its first item), desugaring
// `a|b|c` into `c(b(a))`; every synthesized MethodCall is marked NoFold
// since the {% filter %} tag's placeholder argument mutates every render.
func (p *templateParser) parseFilterChain(firstArgs *ast.MultipleValue) (outer ast.Node, inner *ast.MethodCall, err error) {
	nameTok, err := p.expect(token.Symbol)
	if err != nil {
		return nil, nil, err
	}
	call := &ast.MethodCall{Name: nameTok.Value, Args: firstArgs, NoFold: true, P: nameTok.Pos}
	if p.check(token.LParen) {
		extra, err := p.parseCallArgs()
		if err != nil {
			return nil, nil, err
		}
		call.Args.Items = append(call.Args.Items, extra...)
	}
	inner = call
	outer = call
	for p.check(token.Pipe) {
		p.advance()
		nameTok, err := p.expect(token.Symbol)
		if err != nil {
			return nil, nil, err
		}
		next := &ast.MethodCall{Name: nameTok.Value, Args: &ast.MultipleValue{Items: []ast.Node{outer}}, NoFold: true, P: nameTok.Pos}
		if p.check(token.LParen) {
			extra, err := p.parseCallArgs()
			if err != nil {
				return nil, nil, err
			}
			next.Args.Items = append(next.Args.Items, extra...)
		}
		outer = next
	}
	return outer, inner, nil
}

func (p *templateParser) parseAutoescape(begin token.Token) (ast.Node, error) {
	p.advance() // 'autoescape'
	modeName := ""
	if p.check(token.String) {
		modeName = p.advance().Value
	}
	openEnd, err := p.expect(token.CommandEnd)
	if err != nil {
		return nil, err
	}
	body, endBegin, endKw, err := p.parseScopedBody(openEnd, map[token.Type]bool{token.EndAutoescape: true})
	if err != nil {
		return nil, err
	}
	if endKw.Type != token.EndAutoescape {
		return nil, errors.New(errors.Parser, errors.SyntaxError, endBegin.Pos, "expected endautoescape")
	}
	p.advance() // 'endautoescape'
	endClose, err := p.expect(token.CommandEnd)
	if err != nil {
		return nil, err
	}
	n := &ast.Autoescape{ModeName: modeName, Body: body, P: begin.Pos}
	var bits ast.TrimMode
	if begin.TrimLeft {
		bits |= ast.TrimLeft
	}
	if endClose.TrimRight {
		bits |= ast.TrimRight
	}
	setTrim(n, bits)
	return n, nil
}

func (p *templateParser) parseSpacelessTag(begin token.Token) (ast.Node, error) {
	p.advance() // 'spaceless'
	openEnd, err := p.expect(token.CommandEnd)
	if err != nil {
		return nil, err
	}
	body, endBegin, endKw, err := p.parseScopedBody(openEnd, map[token.Type]bool{token.EndSpaceless: true})
	if err != nil {
		return nil, err
	}
	if endKw.Type != token.EndSpaceless {
		return nil, errors.New(errors.Parser, errors.SyntaxError, endBegin.Pos, "expected endspaceless")
	}
	p.advance() // 'endspaceless'
	endClose, err := p.expect(token.CommandEnd)
	if err != nil {
		return nil, err
	}
	n := &ast.Spaceless{Body: body, P: begin.Pos}
	var bits ast.TrimMode
	if begin.TrimLeft {
		bits |= ast.TrimLeft
	}
	if endClose.TrimRight {
		bits |= ast.TrimRight
	}
	setTrim(n, bits)
	return n, nil
}

// --- expression grammar (precedence table, low to high: ternary, or,
// and, in/not-in, comparison, concat, additive, multiplicative, power,
// unary, test, filter, call/subscript/member, atom) ---

func (p *templateParser) parseValue() (ast.Node, error) { return p.parseTernary() }

func (p *templateParser) parseTernary() (ast.Node, error) {
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.check(token.Question) {
		return cond, nil
	}
	pos := p.advance().Pos
	if p.check(token.Colon) {
		p.advance()
		onFalse, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		return &ast.Ternary{Cond: cond, OnFalse: onFalse, P: pos}, nil
	}
	onTrue, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Colon); err != nil {
		return nil, err
	}
	onFalse, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	return &ast.Ternary{Cond: cond, OnTrue: onTrue, OnFalse: onFalse, P: pos}, nil
}

func (p *templateParser) parseOr() (ast.Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.check(token.Or) {
		pos := p.advance().Pos
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.Expression{Op: ast.OpOr, Left: left, Right: right, P: pos}
	}
	return left, nil
}

func (p *templateParser) parseAnd() (ast.Node, error) {
	left, err := p.parseInTest()
	if err != nil {
		return nil, err
	}
	for p.check(token.And) {
		pos := p.advance().Pos
		right, err := p.parseInTest()
		if err != nil {
			return nil, err
		}
		left = &ast.Expression{Op: ast.OpAnd, Left: left, Right: right, P: pos}
	}
	return left, nil
}

func (p *templateParser) parseInTest() (ast.Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		if p.check(token.In) {
			pos := p.advance().Pos
			right, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			left = &ast.Expression{Op: ast.OpIn, Left: left, Right: right, P: pos}
			continue
		}
		if p.check(token.Not) && p.at(1).Type == token.In {
			pos := p.advance().Pos
			p.advance() // 'in'
			right, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			left = &ast.Expression{Op: ast.OpNotIn, Left: left, Right: right, P: pos}
			continue
		}
		break
	}
	return left, nil
}

var comparisonOps = map[token.Type]ast.Operator{
	token.Eq: ast.OpEq, token.Ne: ast.OpNe,
	token.Lt: ast.OpLt, token.Le: ast.OpLe,
	token.Gt: ast.OpGt, token.Ge: ast.OpGe,
}

func (p *templateParser) parseComparison() (ast.Node, error) {
	left, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := comparisonOps[p.cur().Type]
		if !ok {
			break
		}
		pos := p.advance().Pos
		right, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		left = &ast.Expression{Op: op, Left: left, Right: right, P: pos}
	}
	return left, nil
}

func (p *templateParser) parseConcat() (ast.Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.check(token.Tilde) {
		pos := p.advance().Pos
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.Expression{Op: ast.OpConcat, Left: left, Right: right, P: pos}
	}
	return left, nil
}

func (p *templateParser) parseAdditive() (ast.Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.check(token.Plus) || p.check(token.Minus) {
		op := ast.OpAdd
		if p.cur().Type == token.Minus {
			op = ast.OpSub
		}
		pos := p.advance().Pos
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.Expression{Op: op, Left: left, Right: right, P: pos}
	}
	return left, nil
}

func (p *templateParser) parseMultiplicative() (ast.Node, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}
	for p.check(token.Star) || p.check(token.Slash) || p.check(token.Percent) {
		var op ast.Operator
		switch p.cur().Type {
		case token.Star:
			op = ast.OpMul
		case token.Slash:
			op = ast.OpDiv
		case token.Percent:
			op = ast.OpMod
		}
		pos := p.advance().Pos
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		left = &ast.Expression{Op: op, Left: left, Right: right, P: pos}
	}
	return left, nil
}

func (p *templateParser) parsePower() (ast.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.check(token.StarStar) {
		pos := p.advance().Pos
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return &ast.Expression{Op: ast.OpPow, Left: left, Right: right, P: pos}, nil
	}
	return left, nil
}

func (p *templateParser) parseUnary() (ast.Node, error) {
	if p.check(token.Not) {
		pos := p.advance().Pos
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Expression{Op: ast.OpNot, Left: operand, P: pos}, nil
	}
	if p.check(token.Minus) {
		pos := p.advance().Pos
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Expression{Op: ast.OpNeg, Left: operand, P: pos}, nil
	}
	return p.parseTest()
}

func (p *templateParser) parseTest() (ast.Node, error) {
	left, err := p.parseFilterExpr()
	if err != nil {
		return nil, err
	}
	if !p.check(token.Is) {
		return left, nil
	}
	pos := p.advance().Pos
	neg := false
	if p.check(token.Not) {
		neg = true
		p.advance()
	}
	nameTok, err := p.expect(token.Symbol)
	if err != nil {
		return nil, err
	}
	node, err := p.buildTest(left, nameTok.Value, pos)
	if err != nil {
		return nil, err
	}
	if neg {
		node = &ast.Expression{Op: ast.OpNot, Left: node, P: pos}
	}
	return node, nil
}

func (p *templateParser) buildTest(left ast.Node, name string, pos token.Position) (ast.Node, error) {
	switch name {
	case "defined":
		return &ast.Expression{Op: ast.OpDefined, Left: left, P: pos}, nil
	case "null", "none":
		return &ast.Expression{Op: ast.OpIsNull, Left: left, P: pos}, nil
	case "empty":
		return &ast.Expression{Op: ast.OpEmpty, Left: left, P: pos}, nil
	case "iterable":
		return &ast.Expression{Op: ast.OpIterable, Left: left, P: pos}, nil
	case "even":
		return &ast.Expression{Op: ast.OpEven, Left: left, P: pos}, nil
	case "odd":
		return &ast.Expression{Op: ast.OpOdd, Left: left, P: pos}, nil
	case "divisible":
		by, err := p.expect(token.Symbol)
		if err != nil || by.Value != "by" {
			return nil, errors.New(errors.Parser, errors.SyntaxError, pos, "expected 'by' after 'divisible'")
		}
		arg, err := p.parseTestArg()
		if err != nil {
			return nil, err
		}
		return &ast.Expression{Op: ast.OpDivisibleBy, Left: left, Right: arg, P: pos}, nil
	case "starts":
		if _, err := p.expect(token.Symbol); err != nil { // 'with'
			return nil, err
		}
		arg, err := p.parseTestArg()
		if err != nil {
			return nil, err
		}
		return &ast.Expression{Op: ast.OpStartsWith, Left: left, Right: arg, P: pos}, nil
	case "ends":
		if _, err := p.expect(token.Symbol); err != nil { // 'with'
			return nil, err
		}
		arg, err := p.parseTestArg()
		if err != nil {
			return nil, err
		}
		return &ast.Expression{Op: ast.OpEndsWith, Left: left, Right: arg, P: pos}, nil
	case "matches":
		arg, err := p.parseTestArg()
		if err != nil {
			return nil, err
		}
		return &ast.MatchesTest{Val: left, Regex: arg, P: pos}, nil
	default:
		return nil, errors.New(errors.Parser, errors.SyntaxError, pos, "unknown test %q", name)
	}
}

// parseTestArg parses a test's single argument, written either bare
// (`is divisible by 3`) or parenthesized (`is divisible by(3)`).
func (p *templateParser) parseTestArg() (ast.Node, error) {
	if p.check(token.LParen) {
		p.advance()
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return v, nil
	}
	return p.parseCallMember()
}

func (p *templateParser) parseFilterExpr() (ast.Node, error) {
	left, err := p.parseCallMember()
	if err != nil {
		return nil, err
	}
	for p.check(token.Pipe) {
		p.advance()
		nameTok, err := p.expect(token.Symbol)
		if err != nil {
			return nil, err
		}
		args := &ast.MultipleValue{Items: []ast.Node{left}, P: nameTok.Pos}
		if p.check(token.LParen) {
			extra, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			args.Items = append(args.Items, extra...)
		}
		left = &ast.MethodCall{Name: nameTok.Value, Args: args, P: nameTok.Pos}
	}
	return left, nil
}

func (p *templateParser) parseCallArgs() ([]ast.Node, error) {
	p.advance() // LParen
	var args []ast.Node
	for !p.check(token.RParen) {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		if p.check(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *templateParser) parseCallMember() (ast.Node, error) {
	base, err := p.parseAtom()
	if err != nil {
		return nil, err
	}

	if v, ok := base.(*ast.Variable); ok && p.check(token.LParen) {
		if v.Name == "constant" || v.Name == "source" {
			return nil, errors.New(errors.Parser, errors.SyntaxError, v.P, "unsupported function %q", v.Name)
		}
		args, err := p.parseCallArgs()
		if err != nil {
			return nil, err
		}
		base = &ast.MethodCall{Name: v.Name, Args: &ast.MultipleValue{Items: args, P: v.P}, P: v.P}
	}

	var chain []ast.Node
	for {
		switch {
		case p.check(token.Dot):
			p.advance()
			nameTok, err := p.expect(token.Symbol)
			if err != nil {
				return nil, err
			}
			chain = append(chain, &ast.Literal{Val: strValue(nameTok.Value), P: nameTok.Pos})
		case p.check(token.LBracket):
			pos := p.advance().Pos
			idx, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBracket); err != nil {
				return nil, err
			}
			_ = pos
			chain = append(chain, idx)
		default:
			if len(chain) == 0 {
				return base, nil
			}
			return &ast.ChainedVariable{Base: base, Chain: chain, P: base.Pos()}, nil
		}
	}
}

func (p *templateParser) parseAtom() (ast.Node, error) {
	tok := p.cur()
	switch tok.Type {
	case token.Integer:
		p.advance()
		return &ast.Literal{Val: intValue(tok.Value), P: tok.Pos}, nil
	case token.Number:
		p.advance()
		return &ast.Literal{Val: floatValue(tok.Value), P: tok.Pos}, nil
	case token.String:
		p.advance()
		return p.parseStringLiteral(tok)
	case token.True:
		p.advance()
		return &ast.Literal{Val: boolValue(true), P: tok.Pos}, nil
	case token.False:
		p.advance()
		return &ast.Literal{Val: boolValue(false), P: tok.Pos}, nil
	case token.LParen:
		p.advance()
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return v, nil
	case token.LBracket:
		return p.parseListLiteral()
	case token.LBrace:
		return p.parseMapLiteral()
	case token.Symbol:
		p.advance()
		if tok.Value == "null" || tok.Value == "none" {
			return &ast.Literal{Val: nullValue(), P: tok.Pos}, nil
		}
		return ast.NewVariable(tok.Value, tok.Pos), nil
	default:
		return nil, errors.New(errors.Parser, errors.SyntaxError, tok.Pos, "unexpected %s", tok)
	}
}

func (p *templateParser) parseListLiteral() (ast.Node, error) {
	pos := p.advance().Pos // LBracket
	var items []ast.Node
	for !p.check(token.RBracket) {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		if p.check(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.RBracket); err != nil {
		return nil, err
	}
	return &ast.MultipleValue{Items: items, P: pos}, nil
}

func (p *templateParser) parseMapLiteral() (ast.Node, error) {
	pos := p.advance().Pos // LBrace
	var keys []string
	var values []ast.Node
	for !p.check(token.RBrace) {
		var key string
		switch p.cur().Type {
		case token.String:
			key = p.advance().Value
		case token.Symbol:
			key = p.advance().Value
		case token.Integer:
			key = p.advance().Value
		default:
			return nil, errors.New(errors.Parser, errors.SyntaxError, p.cur().Pos, "expected map key")
		}
		if _, err := p.expect(token.Colon); err != nil {
			return nil, err
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
		values = append(values, v)
		if p.check(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return &ast.ValueMap{Keys: keys, Values: values, P: pos}, nil
}

// parseStringLiteral scans tok.Value (already escape-processed by the
// lexer) for `#{…}` interpolation spans, balanced on brace depth so a
// nested map literal inside an interpolation doesn't terminate it early;
// each span's raw source is re-lexed and parsed as a standalone
// expression via lexer.LexExpression.
func (p *templateParser) parseStringLiteral(tok token.Token) (ast.Node, error) {
	s := tok.Value
	var inserts []ast.StringInsert
	i := 0
	for i < len(s) {
		if s[i] == '#' && i+1 < len(s) && s[i+1] == '{' {
			start := i
			depth := 1
			j := i + 2
			for j < len(s) && depth > 0 {
				switch s[j] {
				case '{':
					depth++
				case '}':
					depth--
				}
				if depth == 0 {
					break
				}
				j++
			}
			if depth != 0 {
				return nil, errors.New(errors.Parser, errors.SyntaxError, tok.Pos, "unterminated #{ interpolation")
			}
			inner := s[start+2 : j]
			toks, err := lexer.LexExpression(inner, tok.Pos)
			if err != nil {
				return nil, err
			}
			sub := &templateParser{toks: toks}
			val, err := sub.parseValue()
			if err != nil {
				return nil, err
			}
			inserts = append(inserts, ast.StringInsert{Offset: start, Length: j - start + 1, Node: val})
			i = j + 1
			continue
		}
		i++
	}
	if len(inserts) == 0 {
		return &ast.Literal{Val: strValue(s), P: tok.Pos}, nil
	}
	return &ast.String{Template: s, Inserts: inserts, P: tok.Pos}, nil
}

func strValue(s string) value.Value { return value.String(s) }

func intValue(s string) value.Value {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, _ := strconv.ParseFloat(s, 64)
		return value.Float(f)
	}
	return value.Int(i)
}

func floatValue(s string) value.Value {
	f, _ := strconv.ParseFloat(s, 64)
	return value.Float(f)
}

func boolValue(b bool) value.Value { return value.Bool(b) }
func nullValue() value.Value       { return value.Null }
