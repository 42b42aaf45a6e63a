package rules

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Fact keys resolved from the project's taxonomy selection.
const (
	FactIndustry = "taxonomy.industry"
	FactSegment  = "taxonomy.segment"
	FactUseCase  = "taxonomy.use_case"
)

// Source tells where a resolved value came from.
type Source int

const (
	SourceNone Source = iota
	SourceAnswer
	SourceDefault
	SourceFact
)

// Scope is the environment a predicate is evaluated against. Lookups consult
// answers, then question defaults, then taxonomy facts.
type Scope struct {
	Answers  map[string]any
	Defaults map[string]any
	Facts    map[string]any
	Tags     []string
}

// Lookup resolves key to a normalized value.
func (s Scope) Lookup(key string) (any, Source, bool) {
	key = strings.TrimPrefix(key, "scope.")
	if v, ok := s.Answers[key]; ok && v != nil {
		return normalize(v), SourceAnswer, true
	}
	if v, ok := s.Defaults[key]; ok && v != nil {
		return normalize(v), SourceDefault, true
	}
	if v, ok := s.Facts[key]; ok && v != nil {
		return normalize(v), SourceFact, true
	}
	return nil, SourceNone, false
}

// HasTag reports whether the use case carries tag.
func (s Scope) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// normalize maps decoded YAML/JSON values onto bool, float64, string and []any.
func normalize(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	}
	return v
}

func equal(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func formatValue(v any) string {
	switch t := normalize(v).(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case string:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", t)
	}
}
