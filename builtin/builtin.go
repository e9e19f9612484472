// Package builtin implements the fixed filter/function table from spec
// §6: the names every template can call without registering a user
// function, grouped by constancy (pure and constant-foldable; constant
// only modulo locale; never constant). Registered into a compiler.Program
// by package engine at construction time via All().
package builtin

import (
	"encoding/json"
	"math"
	"math/rand"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pgavlin/twig/ast"
	"github.com/pgavlin/twig/internal/errors"
	"github.com/pgavlin/twig/token"
	"github.com/pgavlin/twig/value"
)

// All returns the full built-in table, ready to register into a
// Program's function table. rng backs `random`; pass nil to use the
// package-level, process-seeded default.
func All(rng *rand.Rand) []ast.Function {
	if rng == nil {
		rng = defaultRand
	}
	fns := []ast.Function{
		{Name: "abs", IsConstant: true, Call: fnAbs},
		{Name: "batch", IsConstant: true, Call: fnBatch},
		{Name: "capitalize", IsConstant: true, Call: fnCapitalize},
		{Name: "cycle", IsConstant: true, Call: fnCycle},
		{Name: "default", IsConstant: true, Call: fnDefault},
		{Name: "first", IsConstant: true, Call: fnFirst},
		{Name: "join", IsConstant: true, Call: fnJoin},
		{Name: "json_encode", IsConstant: true, Call: fnJSONEncode},
		{Name: "keys", IsConstant: true, Call: fnKeys},
		{Name: "last", IsConstant: true, Call: fnLast},
		{Name: "length", IsConstant: true, Call: fnLength},
		{Name: "lower", IsConstant: true, Call: fnLower},
		{Name: "merge", IsConstant: true, Call: fnMerge},
		{Name: "nl2br", IsConstant: true, Call: fnNl2Br},
		{Name: "max", IsConstant: true, Call: fnMax},
		{Name: "min", IsConstant: true, Call: fnMin},
		{Name: "upper", IsConstant: true, Call: fnUpper},
		{Name: "range", IsConstant: true, Call: fnRange},
		{Name: "replace", IsConstant: true, Call: fnReplace},
		{Name: "reverse", IsConstant: true, Call: fnReverse},
		{Name: "round", IsConstant: true, Call: fnRound},
		{Name: "slice", IsConstant: true, Call: fnSlice},
		{Name: "sort", IsConstant: true, Call: fnSort},
		{Name: "split", IsConstant: true, Call: fnSplit},
		{Name: "striptags", IsConstant: true, Call: fnStripTags},
		{Name: "title", IsConstant: true, Call: fnTitle},
		{Name: "trim", IsConstant: true, Call: fnTrim},
		{Name: "url_encode", IsConstant: true, Call: fnURLEncode},

		// escape/e need the Program's active escape mode, but that mode
		// is ambient render state rather than an argument the compiler
		// could fold against, so they are listed pure/constant-foldable
		// yet still take ctx to read EscapeMode().
		{Name: "escape", IsConstant: true, Call: fnEscape},
		{Name: "e", IsConstant: true, Call: fnEscape},

		// constant only modulo locale
		{Name: "date", IsConstant: false, Call: fnDate},
		{Name: "number_format", IsConstant: false, Call: fnNumberFormat},

		// never constant
		{Name: "dump", IsConstant: false, Call: fnDump},
		{Name: "random", IsConstant: false, Call: randomFn(rng)},
		{Name: "block", IsConstant: false, Call: fnBlock},
	}
	return fns
}

var defaultRand = rand.New(rand.NewSource(time.Now().UnixNano()))

func arg(args []value.Value, i int) value.Value {
	if i < 0 || i >= len(args) {
		return value.Null
	}
	return args[i]
}

func fnAbs(_ ast.Context, args []value.Value) (value.Value, error) {
	if len(args) < 1 {
		return value.Null, nil
	}
	n, _ := arg(args, 0).Number()
	return numberResult(math.Abs(n), arg(args, 0).IsIntegral()), nil
}

func numberResult(f float64, preferInt bool) value.Value {
	if preferInt && math.Trunc(f) == f {
		return value.Int(int64(f))
	}
	return value.Float(f)
}

func fnBatch(_ ast.Context, args []value.Value) (value.Value, error) {
	if len(args) < 3 {
		return value.Null, nil
	}
	list := append([]value.Value(nil), arg(args, 0).ListValue()...)
	count, _ := arg(args, 1).Number()
	n := int(count)
	if len(list) >= n {
		return value.List(list), nil
	}
	fill := arg(args, 2)
	for len(list) < n {
		list = append(list, fill)
	}
	return value.List(list), nil
}

func fnCapitalize(_ ast.Context, args []value.Value) (value.Value, error) {
	s := arg(args, 0).String()
	if s == "" {
		return value.String(s), nil
	}
	r := []rune(s)
	return value.String(strings.ToUpper(string(r[0])) + string(r[1:])), nil
}

func fnCycle(_ ast.Context, args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Null, nil
	}
	list := arg(args, 0).ListValue()
	idx, _ := arg(args, 1).Number()
	if len(list) == 0 || idx < 0 {
		return value.Null, nil
	}
	return list[int(idx)%len(list)], nil
}

func fnDefault(_ ast.Context, args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Null, nil
	}
	v := arg(args, 0)
	if v.IsNull() {
		return arg(args, 1), nil
	}
	if isEmptyValue(v) {
		return arg(args, 1), nil
	}
	return v, nil
}

func isEmptyValue(v value.Value) bool {
	switch v.Kind() {
	case value.KindString:
		return v.StringValue() == ""
	case value.KindList, value.KindMap:
		return v.Len() == 0
	default:
		return false
	}
}

func fnFirst(_ ast.Context, args []value.Value) (value.Value, error) {
	return firstOrLast(arg(args, 0), true), nil
}

func fnLast(_ ast.Context, args []value.Value) (value.Value, error) {
	return firstOrLast(arg(args, 0), false), nil
}

func firstOrLast(v value.Value, first bool) value.Value {
	switch v.Kind() {
	case value.KindString:
		s := v.StringValue()
		if s == "" {
			return value.String("")
		}
		r := []rune(s)
		if first {
			return value.String(string(r[0]))
		}
		return value.String(string(r[len(r)-1]))
	case value.KindList:
		list := v.ListValue()
		if len(list) == 0 {
			return value.Null
		}
		if first {
			return list[0]
		}
		return list[len(list)-1]
	case value.KindMap:
		keys := v.Keys()
		if len(keys) == 0 {
			return value.Null
		}
		val, _ := v.Get(keys[0])
		if first {
			return val
		}
		val, _ = v.Get(keys[len(keys)-1])
		return val
	default:
		return value.Null
	}
}

func fnJoin(_ ast.Context, args []value.Value) (value.Value, error) {
	list := arg(args, 0).ListValue()
	delim := ""
	if len(args) > 1 {
		delim = arg(args, 1).String()
	}
	parts := make([]string, len(list))
	for i, v := range list {
		parts[i] = v.String()
	}
	return value.String(strings.Join(parts, delim)), nil
}

func fnJSONEncode(_ ast.Context, args []value.Value) (value.Value, error) {
	data, err := json.Marshal(toPlain(arg(args, 0)))
	if err != nil {
		return value.Null, err
	}
	return value.String(string(data)), nil
}

func toPlain(v value.Value) interface{} {
	switch v.Kind() {
	case value.KindNull:
		return nil
	case value.KindBool:
		return v.BoolValue()
	case value.KindInt:
		return v.IntValue()
	case value.KindFloat:
		return v.FloatValue()
	case value.KindString:
		return v.StringValue()
	case value.KindList:
		list := v.ListValue()
		out := make([]interface{}, len(list))
		for i, e := range list {
			out[i] = toPlain(e)
		}
		return out
	case value.KindMap:
		out := make(map[string]interface{}, len(v.Keys()))
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			out[k] = toPlain(val)
		}
		return out
	default:
		return v.String()
	}
}

func fnKeys(_ ast.Context, args []value.Value) (value.Value, error) {
	v := arg(args, 0)
	if v.Kind() != value.KindMap {
		return value.Null, nil
	}
	keys := v.Keys()
	items := make([]value.Value, len(keys))
	for i, k := range keys {
		items[i] = value.String(k)
	}
	return value.List(items), nil
}

func fnLength(_ ast.Context, args []value.Value) (value.Value, error) {
	return value.Int(int64(arg(args, 0).Len())), nil
}

func fnLower(_ ast.Context, args []value.Value) (value.Value, error) {
	return value.String(strings.ToLower(arg(args, 0).String())), nil
}

func fnMerge(_ ast.Context, args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Null, nil
	}
	a, b := arg(args, 0), arg(args, 1)
	if a.Kind() == value.KindMap && b.Kind() == value.KindMap {
		keys := append([]string(nil), a.Keys()...)
		m := map[string]value.Value{}
		for _, k := range a.Keys() {
			m[k], _ = a.Get(k)
		}
		for _, k := range b.Keys() {
			if _, exists := m[k]; !exists {
				keys = append(keys, k)
			}
			v, _ := b.Get(k)
			m[k] = v
		}
		return value.NewMap(keys, m), nil
	}
	if a.Kind() == value.KindList && b.Kind() == value.KindList {
		out := append([]value.Value(nil), a.ListValue()...)
		out = append(out, b.ListValue()...)
		return value.List(out), nil
	}
	return value.Null, nil
}

func fnNl2Br(_ ast.Context, args []value.Value) (value.Value, error) {
	return value.String(strings.ReplaceAll(arg(args, 0).String(), "\n", "<br />")), nil
}

func fnMax(_ ast.Context, args []value.Value) (value.Value, error) {
	return minMax(listOrArgs(args), false), nil
}

func fnMin(_ ast.Context, args []value.Value) (value.Value, error) {
	return minMax(listOrArgs(args), true), nil
}

func listOrArgs(args []value.Value) []value.Value {
	if len(args) == 1 {
		v := args[0]
		if v.Kind() == value.KindList {
			return v.ListValue()
		}
		if v.Kind() == value.KindMap {
			out := make([]value.Value, 0, len(v.Keys()))
			for _, k := range v.Keys() {
				val, _ := v.Get(k)
				out = append(out, val)
			}
			return out
		}
	}
	return args
}

func minMax(list []value.Value, min bool) value.Value {
	if len(list) == 0 {
		return value.Null
	}
	cur := list[0]
	for _, v := range list[1:] {
		if min && value.Less(v, cur) {
			cur = v
		} else if !min && value.Less(cur, v) {
			cur = v
		}
	}
	return cur
}

func fnUpper(_ ast.Context, args []value.Value) (value.Value, error) {
	return value.String(strings.ToUpper(arg(args, 0).String())), nil
}

func randomFn(rng *rand.Rand) func(ast.Context, []value.Value) (value.Value, error) {
	return func(_ ast.Context, args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Int(rng.Int63()), nil
		}
		v := arg(args, 0)
		switch v.Kind() {
		case value.KindInt, value.KindFloat:
			n, _ := v.Number()
			barrier := int64(n)
			if barrier == 0 {
				return value.Int(0), nil
			}
			return value.Int(rng.Int63n(barrier)), nil
		case value.KindString:
			r := []rune(v.StringValue())
			if len(r) == 0 {
				return value.String(""), nil
			}
			return value.String(string(r[rng.Intn(len(r))])), nil
		case value.KindList:
			list := v.ListValue()
			if len(list) == 0 {
				return value.Null, nil
			}
			return list[rng.Intn(len(list))], nil
		case value.KindMap:
			keys := v.Keys()
			if len(keys) == 0 {
				return value.Null, nil
			}
			val, _ := v.Get(keys[rng.Intn(len(keys))])
			return val, nil
		default:
			return value.Null, nil
		}
	}
}

func fnRange(_ ast.Context, args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Null, nil
	}
	from, max := arg(args, 0), arg(args, 1)
	step := 1.0
	if len(args) > 2 {
		step, _ = arg(args, 2).Number()
	}
	if step == 0 {
		return value.List(nil), nil
	}
	if from.Kind() == value.KindString && len(from.StringValue()) > 0 {
		return charRange(from.StringValue(), max.String(), int(step)), nil
	}
	fromN, _ := from.Number()
	maxN, _ := max.Number()
	return numberRange(fromN, maxN, step), nil
}

func numberRange(start, max, step float64) value.Value {
	var out []value.Value
	if start > max {
		if step > 0 {
			step = -step
		}
		for cur := start; cur >= max; cur += step {
			out = append(out, numberResult(cur, cur == math.Trunc(cur)))
		}
	} else {
		if step < 0 {
			step = -step
		}
		for cur := start; cur <= max; cur += step {
			out = append(out, numberResult(cur, cur == math.Trunc(cur)))
		}
	}
	return value.List(out)
}

const rangeAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func normalizeRangeChar(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 36, true
	default:
		return 0, false
	}
}

func charRange(from, max string, step int) value.Value {
	start, ok1 := normalizeRangeChar(from[0])
	end, ok2 := normalizeRangeChar(max[0])
	if !ok1 || !ok2 || step == 0 {
		return value.List(nil)
	}
	var out []value.Value
	if start > end {
		if step > 0 {
			step = -step
		}
		for cur := start; cur >= end; cur += step {
			out = append(out, value.String(string(rangeAlphabet[cur])))
		}
	} else {
		if step < 0 {
			step = -step
		}
		for cur := start; cur <= end; cur += step {
			out = append(out, value.String(string(rangeAlphabet[cur])))
		}
	}
	return value.List(out)
}

func fnReplace(_ ast.Context, args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Null, nil
	}
	s := arg(args, 0).String()
	m := arg(args, 1)
	if m.Kind() != value.KindMap {
		return value.String(s), nil
	}
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		s = strings.ReplaceAll(s, k, v.String())
	}
	return value.String(s), nil
}

func fnReverse(_ ast.Context, args []value.Value) (value.Value, error) {
	v := arg(args, 0)
	switch v.Kind() {
	case value.KindString:
		r := []rune(v.StringValue())
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return value.String(string(r)), nil
	case value.KindList:
		list := v.ListValue()
		out := make([]value.Value, len(list))
		for i, e := range list {
			out[len(list)-1-i] = e
		}
		return value.List(out), nil
	default:
		return value.Null, nil
	}
}

func fnRound(_ ast.Context, args []value.Value) (value.Value, error) {
	n, _ := arg(args, 0).Number()
	precision := 0.0
	if len(args) > 1 {
		precision, _ = arg(args, 1).Number()
	}
	mode := "common"
	if len(args) > 2 {
		mode = arg(args, 2).String()
	}
	div := math.Pow(10, precision)
	var result float64
	switch mode {
	case "", "common":
		result = math.Round(n*div) / div
	case "ceil":
		result = math.Ceil(n*div) / div
	case "floor":
		result = math.Floor(n*div) / div
	default:
		return value.Null, nil
	}
	return numberResult(result, precision <= 0), nil
}

func calculateStartLength(start, length, size int) (int, int) {
	if start < 0 {
		start += size
	}
	if length < 0 {
		length = size + length - start
	}
	return start, length
}

func fnSlice(_ ast.Context, args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Null, nil
	}
	data := arg(args, 0)
	startF, _ := arg(args, 1).Number()
	start := int(startF)
	length := math.MaxInt32
	if len(args) > 2 {
		lf, _ := arg(args, 2).Number()
		length = int(lf)
	}
	switch data.Kind() {
	case value.KindString:
		r := []rune(data.StringValue())
		start, length = calculateStartLength(start, length, len(r))
		end := start + length
		if end > len(r) {
			end = len(r)
		}
		if start < 0 || start > len(r) || end < start {
			return value.String(""), nil
		}
		return value.String(string(r[start:end])), nil
	case value.KindList:
		list := data.ListValue()
		start, length = calculateStartLength(start, length, len(list))
		end := start + length
		if end > len(list) {
			end = len(list)
		}
		if start < 0 || start > len(list) || end < start {
			return value.List(nil), nil
		}
		return value.List(append([]value.Value(nil), list[start:end]...)), nil
	default:
		return value.Null, nil
	}
}

func fnSort(_ ast.Context, args []value.Value) (value.Value, error) {
	v := arg(args, 0)
	if v.Kind() != value.KindList {
		return value.Null, nil
	}
	out := append([]value.Value(nil), v.ListValue()...)
	sort.SliceStable(out, func(i, j int) bool { return value.Less(out[i], out[j]) })
	return value.List(out), nil
}

func fnSplit(_ ast.Context, args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Null, nil
	}
	s := arg(args, 0).String()
	delim := arg(args, 1).String()
	maxLength := math.MaxInt32
	if len(args) > 2 {
		mf, _ := arg(args, 2).Number()
		maxLength = int(mf)
	}

	var parts []string
	if delim == "" && maxLength < math.MaxInt32 {
		chars := maxLength
		if chars < 1 {
			chars = 1
		}
		r := []rune(s)
		for i := 0; i < len(r); i += chars {
			end := i + chars
			if end > len(r) {
				end = len(r)
			}
			parts = append(parts, string(r[i:end]))
		}
	} else {
		parts = strings.Split(s, delim)
	}

	if delim != "" && len(parts) > maxLength && maxLength > 0 {
		tail := strings.Join(parts[maxLength-1:], delim)
		parts = append(append([]string(nil), parts[:maxLength-1]...), tail)
	}

	out := make([]value.Value, len(parts))
	for i, p := range parts {
		out[i] = value.String(p)
	}
	return value.List(out), nil
}

var stripTagsRE = regexp.MustCompile(`<[^>]*>`)

func fnStripTags(_ ast.Context, args []value.Value) (value.Value, error) {
	s := stripTagsRE.ReplaceAllString(arg(args, 0).String(), "")
	return value.String(strings.Join(strings.Fields(s), " ")), nil
}

func fnTitle(_ ast.Context, args []value.Value) (value.Value, error) {
	return value.String(strings.Title(strings.ToLower(arg(args, 0).String()))), nil
}

func fnTrim(_ ast.Context, args []value.Value) (value.Value, error) {
	s := arg(args, 0).String()
	if len(args) > 1 {
		mask := arg(args, 1).String()
		return value.String(strings.Trim(s, mask)), nil
	}
	return value.String(strings.TrimSpace(s)), nil
}

func fnURLEncode(_ ast.Context, args []value.Value) (value.Value, error) {
	v := arg(args, 0)
	switch v.Kind() {
	case value.KindList:
		parts := make([]string, 0, len(v.ListValue()))
		for _, e := range v.ListValue() {
			parts = append(parts, url.QueryEscape(e.String()))
		}
		return value.String(strings.Join(parts, "&")), nil
	case value.KindMap:
		parts := make([]string, 0, len(v.Keys()))
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(val.String()))
		}
		return value.String(strings.Join(parts, "&")), nil
	default:
		return value.String(url.QueryEscape(v.String())), nil
	}
}

func fnEscape(ctx ast.Context, args []value.Value) (value.Value, error) {
	data := arg(args, 0).String()
	modeName := ""
	if len(args) > 1 {
		modeName = arg(args, 1).String()
	}
	mode, ok := ast.ResolveEscapeMode(modeName)
	if !ok {
		return value.Null, errors.New(errors.Renderer, errors.InvalidEscapeMode, token.Position{}, "invalid escape mode %q", modeName)
	}
	if mode == ctx.EscapeMode() {
		// already escaped under the currently active mode: no-op,
		// matching the autoescape/escape-filter double-escape guard.
		return arg(args, 0), nil
	}
	return value.String(ast.Escape(mode, data)), nil
}

func fnDate(ctx ast.Context, args []value.Value) (value.Value, error) {
	var t time.Time
	if len(args) > 0 && !arg(args, 0).IsNull() {
		v := arg(args, 0)
		if v.Kind() == value.KindString {
			parsed, err := parseFlexibleDate(v.StringValue())
			if err != nil {
				return value.Null, err
			}
			t = parsed
		} else {
			n, _ := v.Number()
			t = time.Unix(int64(n), 0)
		}
	} else {
		t = time.Now()
	}
	if len(args) > 1 {
		return value.String(t.Format(goLayout(arg(args, 1).String()))), nil
	}
	_ = ctx.Locale()
	return value.String(t.Format("Monday, 02 January 2006 15:04:05")), nil
}

var dateLayouts = []string{
	time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02", "15:04:05",
}

func parseFlexibleDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

// goLayout translates the small subset of PHP's date() format letters
// Twig templates commonly pass (Y-m-d H:i:s and friends) into a Go
// reference-time layout; unrecognized letters pass through unchanged.
func goLayout(phpFormat string) string {
	replacer := strings.NewReplacer(
		"Y", "2006", "y", "06",
		"m", "01", "n", "1",
		"d", "02", "j", "2",
		"H", "15", "G", "15",
		"i", "04", "s", "05",
	)
	return replacer.Replace(phpFormat)
}

func fnNumberFormat(ctx ast.Context, args []value.Value) (value.Value, error) {
	n, _ := arg(args, 0).Number()
	decimals := 0
	if len(args) > 1 {
		d, _ := arg(args, 1).Number()
		decimals = int(d)
	}
	decimalPoint := "."
	if len(args) > 2 {
		decimalPoint = arg(args, 2).String()
	}
	groupSep := ","
	if len(args) > 3 {
		groupSep = arg(args, 3).String()
	}
	_ = ctx.Locale()
	s := strconv.FormatFloat(n, 'f', decimals, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	intPart = groupDigits(intPart, groupSep)
	out := intPart
	if fracPart != "" {
		out += decimalPoint + fracPart
	}
	if neg {
		out = "-" + out
	}
	return value.String(out), nil
}

func groupDigits(digits, sep string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}
	var b strings.Builder
	first := n % 3
	if first == 0 {
		first = 3
	}
	b.WriteString(digits[:first])
	for i := first; i < n; i += 3 {
		b.WriteString(sep)
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

func fnDump(ctx ast.Context, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.String(""), nil
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = dumpOne(a)
	}
	return value.String(strings.Join(parts, ", ")), nil
}

func dumpOne(v value.Value) string {
	switch v.Kind() {
	case value.KindString:
		return strconv.Quote(v.StringValue())
	case value.KindList:
		parts := make([]string, len(v.ListValue()))
		for i, e := range v.ListValue() {
			parts[i] = dumpOne(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case value.KindMap:
		parts := make([]string, 0, len(v.Keys()))
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			parts = append(parts, strconv.Quote(k)+": "+dumpOne(val))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return v.String()
	}
}

// fnBlock implements the `block(name)` function: never constant-
// foldable, renders the named block's currently winning body, or ""
// if undefined.
func fnBlock(ctx ast.Context, args []value.Value) (value.Value, error) {
	name := arg(args, 0).String()
	b, ok := ctx.Block(name)
	if !ok || b.Node == nil {
		return value.String(""), nil
	}
	out, err := b.Node.Render(ctx)
	if err != nil {
		return value.Null, err
	}
	return value.String(out), nil
}
