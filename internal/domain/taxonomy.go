package domain

import (
	"fmt"
	"slices"
)

// QuestionType is the value type a scope question accepts
type QuestionType string

const (
	QuestionTypeBoolean     QuestionType = "boolean"
	QuestionTypeSelect      QuestionType = "select"
	QuestionTypeMultiselect QuestionType = "multiselect"
	QuestionTypeString      QuestionType = "string"
	QuestionTypeNumber      QuestionType = "number"
)

// IsValid reports whether t is a known question type.
func (t QuestionType) IsValid() bool {
	switch t {
	case QuestionTypeBoolean, QuestionTypeSelect, QuestionTypeMultiselect, QuestionTypeString, QuestionTypeNumber:
		return true
	}
	return false
}

// Industry is the root of the taxonomy tree
type Industry struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Segments    []Segment `json:"segments" yaml:"-"`
}

// Segment groups use cases within an industry
type Segment struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	UseCases    []UseCase `json:"use_cases" yaml:"-"`
}

// UseCase owns the scope questions asked when a project is created
type UseCase struct {
	ID             string          `json:"id" yaml:"id"`
	Name           string          `json:"name" yaml:"name"`
	Description    string          `json:"description,omitempty" yaml:"description,omitempty"`
	Tags           []string        `json:"tags,omitempty" yaml:"tags,omitempty"`
	ScopeQuestions []ScopeQuestion `json:"scope_questions" yaml:"scope_questions"`
}

// ScopeQuestion is a single scoping prompt with an optional default
type ScopeQuestion struct {
	ID      string       `json:"id" yaml:"id"`
	Prompt  string       `json:"prompt" yaml:"prompt"`
	Type    QuestionType `json:"type" yaml:"type"`
	Options []string     `json:"options,omitempty" yaml:"options,omitempty"`
	Default any          `json:"default,omitempty" yaml:"default,omitempty"`
}

// HasDefault reports whether the question declares a default answer.
func (q ScopeQuestion) HasDefault() bool {
	return q.Default != nil
}

// Question returns the scope question with the given id.
func (u *UseCase) Question(id string) (ScopeQuestion, bool) {
	for _, q := range u.ScopeQuestions {
		if q.ID == id {
			return q, true
		}
	}
	return ScopeQuestion{}, false
}

// Defaults returns the declared default of every question that has one.
func (u *UseCase) Defaults() map[string]any {
	out := make(map[string]any)
	for _, q := range u.ScopeQuestions {
		if q.HasDefault() {
			out[q.ID] = q.Default
		}
	}
	return out
}

// CheckAnswer validates a single answer against the question's type and options.
func (q ScopeQuestion) CheckAnswer(value any) error {
	switch q.Type {
	case QuestionTypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean")
		}
	case QuestionTypeString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string")
		}
	case QuestionTypeNumber:
		switch value.(type) {
		case int, int32, int64, float32, float64:
		default:
			return fmt.Errorf("expected number")
		}
	case QuestionTypeSelect:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string")
		}
		if len(q.Options) > 0 && !slices.Contains(q.Options, s) {
			return fmt.Errorf("%q is not one of %v", s, q.Options)
		}
	case QuestionTypeMultiselect:
		values, ok := stringList(value)
		if !ok {
			return fmt.Errorf("expected list of strings")
		}
		for _, s := range values {
			if len(q.Options) > 0 && !slices.Contains(q.Options, s) {
				return fmt.Errorf("%q is not one of %v", s, q.Options)
			}
		}
	default:
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	return nil
}

func stringList(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
