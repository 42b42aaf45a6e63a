package rules

import (
	"fmt"
	"strings"
)

// NoRuleTrace is recorded for controls without an applicability rule.
const NoRuleTrace = "(no applicability rule)"

// Result is the outcome of evaluating a predicate.
type Result struct {
	Applicable bool
	// Matched lists the satisfied conditions in declaration order.
	Matched []string
}

// Evaluate runs p against s. Every child is evaluated so the trace depends
// only on the rule and the scope, never on evaluation shortcuts. A nil
// predicate behaves like Always.
func Evaluate(p Predicate, s Scope) Result {
	if p == nil {
		p = Always{}
	}
	ok, matched := p.eval(s)
	if !ok {
		return Result{Applicable: false}
	}
	return Result{Applicable: true, Matched: matched}
}

// Why builds the why_applies text from a control's rationale and the trace.
func (r Result) Why(rationale string) string {
	trigger := "Triggered by: " + strings.Join(r.Matched, "; ")
	rationale = strings.TrimSpace(rationale)
	if rationale == "" {
		return trigger
	}
	return rationale + "\n" + trigger
}

func (Always) eval(Scope) (bool, []string) {
	return true, []string{NoRuleTrace}
}

func (p All) eval(s Scope) (bool, []string) {
	ok := true
	var matched []string
	for _, c := range p.Children {
		cok, cm := c.eval(s)
		if !cok {
			ok = false
			continue
		}
		matched = append(matched, cm...)
	}
	if !ok {
		return false, nil
	}
	return true, matched
}

func (p Any) eval(s Scope) (bool, []string) {
	ok := false
	var matched []string
	for _, c := range p.Children {
		cok, cm := c.eval(s)
		if cok {
			ok = true
			matched = append(matched, cm...)
		}
	}
	if !ok {
		return false, nil
	}
	return true, matched
}

func (p Not) eval(s Scope) (bool, []string) {
	ok, _ := p.Child.eval(s)
	if ok {
		return false, nil
	}
	return true, []string{p.String()}
}

func (p Equals) eval(s Scope) (bool, []string) {
	v, src, ok := s.Lookup(p.Key)
	if !ok || !equal(v, p.Value) {
		return false, nil
	}
	return true, []string{leafTrace(p.String(), v, src)}
}

func (p NotEquals) eval(s Scope) (bool, []string) {
	v, src, ok := s.Lookup(p.Key)
	if !ok || equal(v, p.Value) {
		return false, nil
	}
	return true, []string{leafTrace(p.String(), v, src)}
}

func (p In) eval(s Scope) (bool, []string) {
	v, src, ok := s.Lookup(p.Key)
	if !ok {
		return false, nil
	}
	candidates := []any{v}
	if list, isList := v.([]any); isList {
		candidates = list
	}
	for _, c := range candidates {
		for _, want := range p.Values {
			if equal(c, want) {
				return true, []string{leafTrace(p.String(), v, src)}
			}
		}
	}
	return false, nil
}

func (p IsTrue) eval(s Scope) (bool, []string) {
	v, src, ok := s.Lookup(p.Key)
	if b, isBool := v.(bool); !ok || !isBool || !b {
		return false, nil
	}
	return true, []string{leafTrace(p.String(), v, src)}
}

func (p IsFalse) eval(s Scope) (bool, []string) {
	v, src, ok := s.Lookup(p.Key)
	if b, isBool := v.(bool); !ok || !isBool || b {
		return false, nil
	}
	return true, []string{leafTrace(p.String(), v, src)}
}

func (p Exists) eval(s Scope) (bool, []string) {
	if _, _, ok := s.Lookup(p.Key); !ok {
		return false, nil
	}
	return true, []string{p.String()}
}

func (p Contains) eval(s Scope) (bool, []string) {
	v, src, ok := s.Lookup(p.Key)
	if !ok {
		return false, nil
	}
	found := false
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			if equal(e, p.Value) {
				found = true
				break
			}
		}
	case string:
		needle, isString := normalize(p.Value).(string)
		found = isString && strings.Contains(t, needle)
	}
	if !found {
		return false, nil
	}
	return true, []string{leafTrace(p.String(), v, src)}
}

func (p HasTag) eval(s Scope) (bool, []string) {
	if !s.HasTag(p.Tag) {
		return false, nil
	}
	return true, []string{p.String()}
}

func leafTrace(desc string, resolved any, src Source) string {
	if src == SourceDefault {
		return fmt.Sprintf("%s (resolved %s from default)", desc, formatValue(resolved))
	}
	return fmt.Sprintf("%s (resolved %s)", desc, formatValue(resolved))
}
