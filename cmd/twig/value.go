package main

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pgavlin/twig/value"
)

// fromInterface turns a value produced by yaml.Unmarshal into a
// value.Value, recursing through the handful of dynamic shapes the YAML
// decoder itself produces (map[string]interface{}, []interface{}, and
// the scalar kinds) rather than a general-purpose reflection walk, since
// that's the entire shape this command line ever needs to bridge.
func fromInterface(v interface{}) value.Value {
	switch v := v.(type) {
	case nil:
		return value.Null
	case bool:
		return value.Bool(v)
	case int:
		return value.Int(int64(v))
	case int64:
		return value.Int(v)
	case float64:
		return value.Float(v)
	case string:
		return value.String(v)
	case []interface{}:
		items := make([]value.Value, len(v))
		for i, e := range v {
			items[i] = fromInterface(e)
		}
		return value.List(items)
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := make(map[string]value.Value, len(v))
		for _, k := range keys {
			m[k] = fromInterface(v[k])
		}
		return value.NewMap(keys, m)
	case map[interface{}]interface{}:
		m2 := make(map[string]interface{}, len(v))
		for k, e := range v {
			if ks, ok := k.(string); ok {
				m2[ks] = e
			}
		}
		return fromInterface(m2)
	default:
		return value.Null
	}
}

// parseVarFlags turns a list of "--var name=value" strings into a
// map from name to value.Value.
func parseVarFlags(flags []string) map[string]value.Value {
	out := map[string]value.Value{}
	for _, f := range flags {
		name, raw, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		out[name] = parseScalar(raw)
	}
	return out
}

// parseScalar interprets a --var value the way a shell argument arrives:
// no quoting convention of its own, just int/float/bool/string in that
// order of preference.
func parseScalar(raw string) value.Value {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return value.Int(i)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return value.Float(f)
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return value.Bool(b)
	}
	return value.String(raw)
}
