package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeQuestion_CheckAnswer(t *testing.T) {
	tests := []struct {
		name     string
		question ScopeQuestion
		value    any
		wantErr  bool
	}{
		{"boolean ok", ScopeQuestion{Type: QuestionTypeBoolean}, true, false},
		{"boolean wrong type", ScopeQuestion{Type: QuestionTypeBoolean}, "yes", true},
		{"string ok", ScopeQuestion{Type: QuestionTypeString}, "x", false},
		{"number int", ScopeQuestion{Type: QuestionTypeNumber}, 3, false},
		{"number float", ScopeQuestion{Type: QuestionTypeNumber}, 3.5, false},
		{"number wrong type", ScopeQuestion{Type: QuestionTypeNumber}, "3", true},
		{"select in options", ScopeQuestion{Type: QuestionTypeSelect, Options: []string{"a", "b"}}, "a", false},
		{"select outside options", ScopeQuestion{Type: QuestionTypeSelect, Options: []string{"a", "b"}}, "c", true},
		{"multiselect ok", ScopeQuestion{Type: QuestionTypeMultiselect, Options: []string{"EU", "US"}}, []any{"EU"}, false},
		{"multiselect typed slice", ScopeQuestion{Type: QuestionTypeMultiselect, Options: []string{"EU", "US"}}, []string{"US", "EU"}, false},
		{"multiselect outside options", ScopeQuestion{Type: QuestionTypeMultiselect, Options: []string{"EU"}}, []any{"UK"}, true},
		{"multiselect non string", ScopeQuestion{Type: QuestionTypeMultiselect}, []any{1}, true},
		{"unknown type", ScopeQuestion{Type: "color"}, "red", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.question.CheckAnswer(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUseCase_Defaults(t *testing.T) {
	uc := UseCase{ScopeQuestions: []ScopeQuestion{
		{ID: "processes_biometric_data", Type: QuestionTypeBoolean, Default: false},
		{ID: "notes", Type: QuestionTypeString},
	}}

	defaults := uc.Defaults()
	assert.Equal(t, map[string]any{"processes_biometric_data": false}, defaults)

	q, ok := uc.Question("notes")
	require.True(t, ok)
	assert.False(t, q.HasDefault())
}

func TestSeverity_Rank(t *testing.T) {
	assert.Greater(t, SeverityCritical.Rank(), SeverityHigh.Rank())
	assert.Greater(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	assert.Greater(t, SeverityMedium.Rank(), SeverityLow.Rank())
	assert.False(t, Severity("urgent").IsValid())
}

func TestItemStatus_IsValid(t *testing.T) {
	for _, s := range ItemStatuses {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, ItemStatus("done").IsValid())
}

func TestDomainError_Wrapping(t *testing.T) {
	err := NewEvidenceError("attach evidence", ErrItemNotFound)

	assert.True(t, errors.Is(err, ErrItemNotFound))
	assert.Contains(t, err.Error(), ErrCodeEvidence)

	verr := NewValidationError("status", "bad value")
	assert.Equal(t, "[VALIDATION_ERROR] status: bad value", verr.Error())
}

func TestParsePackRef(t *testing.T) {
	ref, err := ParsePackRef("security/baseline@1.0.0")
	require.NoError(t, err)
	assert.Equal(t, PackRef{Domain: "security", PackID: "baseline", Version: "1.0.0"}, ref)
	assert.Equal(t, "security/baseline@1.0.0", ref.String())

	for _, bad := range []string{"", "security/baseline", "baseline@1", "/baseline@1", "security/@1", "security/baseline@", "a/b/c@1"} {
		_, err := ParsePackRef(bad)
		assert.Error(t, err, bad)
	}
}
