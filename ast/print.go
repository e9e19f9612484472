package ast

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

var opNames = [...]string{
	"Add", "Sub", "Mul", "Div", "Mod", "Pow", "Concat",
	"Eq", "Ne", "Lt", "Le", "Gt", "Ge", "And", "Or", "Not", "Neg",
	"In", "NotIn", "DivisibleBy", "StartsWith", "EndsWith",
	"Defined", "IsNull", "Empty", "Iterable", "Even", "Odd",
}

func (op Operator) String() string {
	if int(op) >= 0 && int(op) < len(opNames) {
		return opNames[op]
	}
	return "Unknown"
}

func dumpf(w io.Writer, indentLevel int, typ fmt.Stringer, properties ...string) error {
	indent := strings.Repeat("    ", indentLevel)
	if _, err := fmt.Fprintf(w, "%s- *%s*\n", indent, typ); err != nil {
		return err
	}
	for i := 0; i < len(properties); i += 2 {
		key, val := properties[i], ""
		if i+1 < len(properties) {
			val = properties[i+1]
		}
		val = strconv.Quote(val)
		val = val[1 : len(val)-1]
		if _, err := fmt.Fprintf(w, "%s    - %s: `%s`\n", indent, key, val); err != nil {
			return err
		}
	}
	return nil
}

// dump renders one node and its children; children is every sub-Node the
// concrete type holds, in source order, gathered via a type switch over
// the closed node set rather than reflection.
func dump(w io.Writer, indentLevel int, n Node) error {
	if n == nil {
		return nil
	}

	var properties []string
	var children []Node

	switch n := n.(type) {
	case *Text:
		properties = []string{"Bytes", n.Bytes}
	case *Noop:
	case *Literal:
		properties = []string{"Value", n.Val.String()}
	case *Variable:
		properties = []string{"Name", n.Name, "Write", fmt.Sprintf("%v", n.Write), "Slot", fmt.Sprintf("%d", n.Slot)}
	case *ChainedVariable:
		children = append(children, n.Base)
		children = append(children, n.Chain...)
	case *MultipleValue:
		children = append(children, n.Items...)
	case *Expression:
		properties = []string{"Op", n.Op.String()}
		children = append(children, n.Left)
		if n.Right != nil {
			children = append(children, n.Right)
		}
	case *MatchesTest:
		children = append(children, n.Val, n.Regex)
	case *Ternary:
		children = append(children, n.Cond)
		if n.OnTrue != nil {
			children = append(children, n.OnTrue)
		}
		children = append(children, n.OnFalse)
	case *MethodCall:
		properties = []string{"Name", n.Name, "NoFold", fmt.Sprintf("%v", n.NoFold)}
		children = append(children, n.Args)
	case *ValueMap:
		for i, k := range n.Keys {
			properties = append(properties, "Key", k)
			children = append(children, n.Values[i])
		}
	case *String:
		properties = []string{"Template", n.Template}
		for _, ins := range n.Inserts {
			children = append(children, ins.Node)
		}
	case *Multiple:
		children = append(children, n.Items...)
	case *IfClause:
		children = append(children, n.Cond, n.OnTrue)
		if n.OnFalse != nil {
			children = append(children, n.OnFalse)
		}
	case *ForLoop:
		if n.KeyVar != nil {
			properties = append(properties, "Key", n.KeyVar.Name)
		}
		properties = append(properties, "Value", n.ValueVar.Name)
		children = append(children, n.Iterable)
		if n.FilterCond != nil {
			children = append(children, n.FilterCond)
		}
		children = append(children, n.Body)
		if n.Else != nil {
			children = append(children, n.Else)
		}
	case *Set:
		properties = []string{"Target", n.Target.Name}
		children = append(children, n.Val)
	case *Block:
		properties = []string{"Name", n.Name}
		if n.Body != nil && n.Body.Node != nil {
			children = append(children, n.Body.Node)
		}
	case *Include:
		properties = []string{"Extends", fmt.Sprintf("%v", n.Extends)}
		children = append(children, n.NameExpr)
	case *Embed:
		children = append(children, n.NameExpr, n.OverrideBody)
	case *Filter:
		children = append(children, n.Body, n.Outer)
	case *Autoescape:
		properties = []string{"Mode", n.ModeName}
		children = append(children, n.Body)
	case *Spaceless:
		children = append(children, n.Body)
	default:
		properties = []string{"GoType", fmt.Sprintf("%T", n)}
	}

	if err := dumpf(w, indentLevel, n.Type(), properties...); err != nil {
		return err
	}
	for _, c := range children {
		if err := dump(w, indentLevel+1, c); err != nil {
			return err
		}
	}
	return nil
}

// Dump writes an indented, human-readable tree of n to w — the
// `cmd/twig dump` subcommand's one piece of rendering logic.
func Dump(w io.Writer, n Node) error {
	return dump(w, 0, n)
}
