// Package lexer implements the tokenizer's two stages: Stage A splits
// raw template bytes into alternating Text spans and raw
// Command/Expansion/Comment regions (noting `-` trim markers and
// dropping comments outright); Stage B relexes each region's payload
// into typed token.Tokens via a maximal-munch scanner. This lexer is not
// a streaming consumer — every token is needed before parsing starts —
// so Stage B accumulates directly into a slice on the calling goroutine
// rather than fanning items out over a channel from a dedicated one.
package lexer

import (
	"strings"
	"unicode/utf8"

	"github.com/pgavlin/twig/internal/errors"
	"github.com/pgavlin/twig/token"
)

const (
	leftExpansion  = "{{"
	rightExpansion = "}}"
	leftCommand    = "{%"
	rightCommand   = "%}"
	leftComment    = "{#"
	rightComment   = "#}"
	trimMark       = '-'
)

// region is a raw Stage-A span: either literal Text, or the payload of a
// Command/Expansion region with its trim markers noted.
type region struct {
	kind      regionKind
	text      string // raw source text of this region (Text) or its payload (Command/Expansion)
	pos       token.Position
	trimLeft  bool // opening delimiter carried '-'
	trimRight bool // closing delimiter carried '-'
	isCommand bool // true for Command, false for Expansion (only meaningful when kind==regionTag)
}

type regionKind int

const (
	regionText regionKind = iota
	regionTag
)

// Lex runs both stages over src and returns the full ordered token
// stream, or an UnknownToken error.
func Lex(src string) (token.Tokens, error) {
	regions, err := splitRegions(src)
	if err != nil {
		return nil, err
	}
	var toks token.Tokens
	for _, r := range regions {
		if r.kind == regionText {
			toks = append(toks, token.Token{
				Type:      token.Text,
				Value:     r.text,
				Pos:       r.pos,
				TrimLeft:  r.trimLeft,
				TrimRight: r.trimRight,
			})
			continue
		}
		beginTyp, endTyp := token.ExpansionBegin, token.ExpansionEnd
		if r.isCommand {
			beginTyp, endTyp = token.CommandBegin, token.CommandEnd
		}
		toks = append(toks, token.Token{Type: beginTyp, Pos: r.pos, TrimLeft: r.trimLeft})
		payload, err := lexPayload(r.text, r.pos)
		if err != nil {
			return nil, err
		}
		toks = append(toks, payload...)
		toks = append(toks, token.Token{Type: endTyp, Pos: r.pos, TrimRight: r.trimRight})
	}
	toks = append(toks, token.Token{Type: token.EOF})
	return toks, nil
}

// splitRegions implements Stage A: a single linear walk over src.
func splitRegions(src string) ([]region, error) {
	var out []region
	pos := 0
	row, col := 0, 0
	advance := func(n int) {
		for i := 0; i < n; i++ {
			if src[pos+i] == '\n' {
				row++
				col = 0
			} else {
				col++
			}
		}
		pos += n
	}
	positionAt := func(r, c int) token.Position { return token.Position{Row: r, Column: c} }

	for pos < len(src) {
		next, openKind := nextDelim(src, pos)
		if next < 0 {
			out = append(out, region{kind: regionText, text: src[pos:], pos: positionAt(row, col)})
			advance(len(src) - pos)
			break
		}
		if next > pos {
			out = append(out, region{kind: regionText, text: src[pos:next], pos: positionAt(row, col)})
			advance(next - pos)
		}

		startPos := positionAt(row, col)
		openLen := 2
		trimLeft := false
		if next+2 < len(src) && src[next+2] == trimMark {
			trimLeft = true
			openLen = 3
		}
		advance(openLen)

		var closeDelim string
		switch openKind {
		case leftExpansion:
			closeDelim = rightExpansion
		case leftCommand:
			closeDelim = rightCommand
		case leftComment:
			closeDelim = rightComment
		}

		closeIdx := strings.Index(src[pos:], closeDelim)
		if closeIdx < 0 {
			return nil, errors.New(errors.Tokenizer, errors.UnknownToken, startPos, "unterminated %q", openKind)
		}
		closeIdx += pos

		payloadEnd := closeIdx
		trimRight := false
		if payloadEnd > pos && src[payloadEnd-1] == trimMark {
			trimRight = true
			payloadEnd--
		}
		payload := src[pos:payloadEnd]
		advance(closeIdx - pos)
		advance(len(closeDelim))

		if openKind == leftComment {
			continue
		}
		if openKind == leftCommand && blankSinceLineStart(src, next) {
			if n := absorbLen(src, pos); n > 0 {
				advance(n)
			}
		}
		out = append(out, region{
			kind:      regionTag,
			text:      payload,
			pos:       startPos,
			trimLeft:  trimLeft,
			trimRight: trimRight,
			isCommand: openKind == leftCommand,
		})
	}
	return out, nil
}

// blankSinceLineStart reports whether everything between the start of
// the line containing openStart and openStart itself is horizontal
// whitespace, i.e. the delimiter is the first non-blank thing on its line.
func blankSinceLineStart(src string, openStart int) bool {
	for i := openStart - 1; i >= 0; i-- {
		switch src[i] {
		case ' ', '\t':
			continue
		case '\n':
			return true
		default:
			return false
		}
	}
	return true
}

// absorbLen reports how many bytes starting at from (the position right
// after a Command region's closing delimiter) are horizontal whitespace
// followed by a single newline, i.e. the rest of the command's own line.
// Returns 0 if anything other than blank space stands before the next
// newline, or if the region runs off the end of src first.
func absorbLen(src string, from int) int {
	i := from
	for i < len(src) && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	if i < len(src) && src[i] == '\n' {
		return i + 1 - from
	}
	return 0
}

func nextDelim(src string, from int) (idx int, kind string) {
	best := -1
	bestKind := ""
	for _, d := range []string{leftExpansion, leftCommand, leftComment} {
		if i := strings.Index(src[from:], d); i >= 0 {
			if best < 0 || i < best {
				best = i
				bestKind = d
			}
		}
	}
	if best < 0 {
		return -1, ""
	}
	return from + best, bestKind
}

// --- Stage B: maximal-munch scanner over one region's payload ---

type payloadLexer struct {
	input  string
	base   token.Position
	pos    int
	row    int
	col    int
	tokens token.Tokens
}

// LexExpression tokenizes a bare expression fragment (no surrounding
// `{{ }}`/`{% %}` delimiters) found inside a `#{…}` string interpolation
// span, reusing the same Stage B scanner the tag payloads use, with an
// appended EOF so callers can parse it as a standalone token stream.
func LexExpression(src string, base token.Position) (token.Tokens, error) {
	toks, err := lexPayload(src, base)
	if err != nil {
		return nil, err
	}
	return append(toks, token.Token{Type: token.EOF}), nil
}

func lexPayload(src string, base token.Position) (token.Tokens, error) {
	l := &payloadLexer{input: src, base: base, row: base.Row, col: base.Column}
	for {
		done, err := l.step()
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}
	return l.tokens, nil
}

func (l *payloadLexer) curPos() token.Position {
	return token.Position{Row: l.row, Column: l.col}
}

func (l *payloadLexer) peekByte() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *payloadLexer) advanceByte() byte {
	b := l.input[l.pos]
	l.pos++
	if b == '\n' {
		l.row++
		l.col = 0
	} else {
		l.col++
	}
	return b
}

func (l *payloadLexer) emit(typ token.Type, val string, pos token.Position) {
	l.tokens = append(l.tokens, token.Token{Type: typ, Value: val, Pos: pos})
}

// step consumes one token's worth of input (or returns done==true at
// end of payload). Returns an UnknownToken error on unrecognized input.
func (l *payloadLexer) step() (done bool, err error) {
	for l.pos < len(l.input) && isSpaceByte(l.input[l.pos]) {
		l.advanceByte()
	}
	if l.pos >= len(l.input) {
		return true, nil
	}

	pos := l.curPos()
	c := l.peekByte()

	switch {
	case c == '"' || c == '\'':
		return false, l.lexString(c, pos)
	case isDigit(c):
		return false, l.lexNumber(pos)
	case isIdentStart(c):
		return false, l.lexIdent(pos)
	default:
		return false, l.lexOperator(pos)
	}
}

func isSpaceByte(b byte) bool { return b == ' ' || b == '\t' || b == '\r' || b == '\n' }
func isDigit(b byte) bool     { return b >= '0' && b <= '9' }
func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
func isIdentCont(b byte) bool { return isIdentStart(b) || isDigit(b) }

func (l *payloadLexer) lexIdent(pos token.Position) error {
	start := l.pos
	for l.pos < len(l.input) && isIdentCont(l.input[l.pos]) {
		l.advanceByte()
	}
	word := l.input[start:l.pos]
	if typ, ok := token.Keywords[word]; ok {
		l.emit(typ, word, pos)
	} else {
		l.emit(token.Symbol, word, pos)
	}
	return nil
}

func (l *payloadLexer) lexNumber(pos token.Position) error {
	start := l.pos
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.advanceByte()
	}
	isFloat := false
	// a '.' followed by a digit starts the fraction; a trailing '.' is
	// taken only when an exponent or the end of the number follows it, so
	// `1..5` still lexes as Integer, DotDot, Integer and `1.foo` keeps its
	// Dot.
	if l.peekByte() == '.' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1]) {
		isFloat = true
		l.advanceByte()
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.advanceByte()
		}
	} else if l.peekByte() == '.' {
		rest := l.input[l.pos+1:]
		exp := len(rest) > 1 && (rest[0] == 'e' || rest[0] == 'E') &&
			(isDigit(rest[1]) || ((rest[1] == '+' || rest[1] == '-') && len(rest) > 2 && isDigit(rest[2])))
		if rest == "" || exp || !(rest[0] == '.' || rest[0] == '_' || isDigit(rest[0]) || (rest[0]|0x20 >= 'a' && rest[0]|0x20 <= 'z')) {
			isFloat = true
			l.advanceByte()
		}
	}
	if c := l.peekByte(); c == 'e' || c == 'E' {
		save := l.pos
		saveRow, saveCol := l.row, l.col
		l.advanceByte()
		if c := l.peekByte(); c == '+' || c == '-' {
			l.advanceByte()
		}
		if isDigit(l.peekByte()) {
			isFloat = true
			for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
				l.advanceByte()
			}
		} else {
			l.pos, l.row, l.col = save, saveRow, saveCol
		}
	}
	text := l.input[start:l.pos]
	typ := token.Integer
	if isFloat {
		typ = token.Number
	}
	l.emit(typ, text, pos)
	return nil
}

func (l *payloadLexer) lexString(quote byte, pos token.Position) error {
	l.advanceByte() // opening quote
	var b strings.Builder
	for {
		if l.pos >= len(l.input) {
			return errors.New(errors.Tokenizer, errors.UnknownToken, pos, "unterminated string literal")
		}
		c := l.peekByte()
		if c == quote {
			l.advanceByte()
			break
		}
		if c == '\\' && l.pos+1 < len(l.input) {
			next := l.input[l.pos+1]
			if next == '\\' || next == '"' || next == '\'' {
				l.advanceByte()
				b.WriteByte(l.advanceByte())
				continue
			}
		}
		r, w := utf8.DecodeRuneInString(l.input[l.pos:])
		if r == utf8.RuneError && w <= 1 {
			return errors.New(errors.Tokenizer, errors.UnknownToken, pos, "invalid UTF-8 in string literal")
		}
		for i := 0; i < w; i++ {
			l.advanceByte()
		}
		b.WriteRune(r)
	}
	l.emit(token.String, b.String(), pos)
	return nil
}

// composites must be tried before their single-character prefixes.
// `!`, `&&`, `||` are the aliases for not/and/or and are folded
// directly onto those keyword token types so the parser never has to
// special-case the symbolic spelling.
var composites = []struct {
	text string
	typ  token.Type
}{
	{"==", token.Eq}, {"!=", token.Ne}, {"<=", token.Le}, {">=", token.Ge},
	{"..", token.DotDot}, {"**", token.StarStar}, {"&&", token.And}, {"||", token.Or},
}

var singles = map[byte]token.Type{
	'+': token.Plus, '-': token.Minus, '*': token.Star, '/': token.Slash, '%': token.Percent,
	'~': token.Tilde, '<': token.Lt, '>': token.Gt, '=': token.Assign, '(': token.LParen,
	')': token.RParen, '[': token.LBracket, ']': token.RBracket,
	'{': token.LBrace, '}': token.RBrace,
	',': token.Comma, '.': token.Dot, ':': token.Colon, '|': token.Pipe, '?': token.Question,
	'!': token.Not,
}

func (l *payloadLexer) lexOperator(pos token.Position) error {
	for _, c := range composites {
		if strings.HasPrefix(l.input[l.pos:], c.text) {
			for range c.text {
				l.advanceByte()
			}
			l.emit(c.typ, c.text, pos)
			return nil
		}
	}
	c := l.peekByte()
	if typ, ok := singles[c]; ok {
		l.advanceByte()
		l.emit(typ, string(c), pos)
		return nil
	}
	return errors.New(errors.Tokenizer, errors.UnknownToken, pos, "unexpected character %q", string(rune(c)))
}
