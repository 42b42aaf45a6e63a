// Package rules evaluates control applicability predicates over a project's
// scope answers.
package rules

import (
	"fmt"
	"strings"
)

// Predicate is a node of the applicability expression tree. The set of node
// types is closed.
type Predicate interface {
	// String renders the node in a compact, stable form.
	String() string
	eval(s Scope) (bool, []string)
}

// Always applies unconditionally. It is what an empty rule parses to.
type Always struct{}

// All applies when every child applies.
type All struct{ Children []Predicate }

// Any applies when at least one child applies.
type Any struct{ Children []Predicate }

// Not inverts its child.
type Not struct{ Child Predicate }

// Equals compares a resolved key with a literal.
type Equals struct {
	Key   string
	Value any
}

// NotEquals is the negated comparison. An absent key never matches.
type NotEquals struct {
	Key   string
	Value any
}

// In matches when the resolved value (or any element of a list value) is in Values.
type In struct {
	Key    string
	Values []any
}

// IsTrue matches a boolean true.
type IsTrue struct{ Key string }

// IsFalse matches a boolean false, including one supplied by a default.
type IsFalse struct{ Key string }

// Exists matches when the key resolves to any value.
type Exists struct{ Key string }

// Contains matches a list value holding Value, or a string value containing it.
type Contains struct {
	Key   string
	Value any
}

// HasTag matches a use-case tag.
type HasTag struct{ Tag string }

func (Always) String() string { return "always" }

func (p All) String() string { return "all(" + joinChildren(p.Children) + ")" }

func (p Any) String() string { return "any(" + joinChildren(p.Children) + ")" }

func (p Not) String() string { return "not(" + p.Child.String() + ")" }

func (p Equals) String() string { return fmt.Sprintf("%s == %s", p.Key, formatValue(p.Value)) }

func (p NotEquals) String() string { return fmt.Sprintf("%s != %s", p.Key, formatValue(p.Value)) }

func (p In) String() string { return fmt.Sprintf("%s in %s", p.Key, formatValue(p.Values)) }

func (p IsTrue) String() string { return p.Key + " is true" }

func (p IsFalse) String() string { return p.Key + " is false" }

func (p Exists) String() string { return "exists(" + p.Key + ")" }

func (p Contains) String() string {
	return fmt.Sprintf("%s contains %s", p.Key, formatValue(p.Value))
}

func (p HasTag) String() string { return "has_tag(" + p.Tag + ")" }

func joinChildren(children []Predicate) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

// Keys returns every scope key referenced by p, in declaration order and
// without duplicates.
func Keys(p Predicate) []string {
	var out []string
	seen := map[string]bool{}
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	var walk func(Predicate)
	walk = func(p Predicate) {
		switch n := p.(type) {
		case All:
			for _, c := range n.Children {
				walk(c)
			}
		case Any:
			for _, c := range n.Children {
				walk(c)
			}
		case Not:
			walk(n.Child)
		case Equals:
			add(n.Key)
		case NotEquals:
			add(n.Key)
		case In:
			add(n.Key)
		case IsTrue:
			add(n.Key)
		case IsFalse:
			add(n.Key)
		case Exists:
			add(n.Key)
		case Contains:
			add(n.Key)
		}
	}
	walk(p)
	return out
}
