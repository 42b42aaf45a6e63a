package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnswers(t *testing.T) {
	answers, err := ParseAnswers([]string{
		"processes_biometric_data=true",
		"hosting=on_prem",
		"users=1200",
		"regions=[eu, us]",
		"notes=",
		"greeting=yes",
	})
	require.NoError(t, err)

	assert.Equal(t, true, answers["processes_biometric_data"])
	assert.Equal(t, "on_prem", answers["hosting"])
	assert.Equal(t, 1200, answers["users"])
	assert.Equal(t, []any{"eu", "us"}, answers["regions"])
	assert.Equal(t, "", answers["notes"])
	assert.Equal(t, "yes", answers["greeting"])
}

func TestParseAnswers_Invalid(t *testing.T) {
	for _, bad := range []string{"novalue", "=true", "x=[unclosed"} {
		_, err := ParseAnswers([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestParsePacks(t *testing.T) {
	refs, err := ParsePacks([]string{"security/baseline@1.0.0", " safety/eval@2 "})
	require.NoError(t, err)
	assert.Equal(t, []domain.PackRef{
		{Domain: "security", PackID: "baseline", Version: "1.0.0"},
		{Domain: "safety", PackID: "eval", Version: "2"},
	}, refs)

	_, err = ParsePacks([]string{"baseline"})
	assert.Error(t, err)
}

func TestLoadProjectFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`name: Clinic Bot
industry_id: healthcare
segment_id: clinical
use_case_id: triage
scope_answers:
  processes_biometric_data: true
selected_packs:
  - security/baseline@1.0.0
`), 0o644))

	pf, err := LoadProjectFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Clinic Bot", pf.Name)
	assert.Equal(t, "triage", pf.UseCaseID)
	assert.Equal(t, true, pf.ScopeAnswers["processes_biometric_data"])
	assert.Equal(t, []string{"security/baseline@1.0.0"}, pf.SelectedPacks)

	mergeProjectFlags(pf, ProjectFile{Name: "Renamed"})
	assert.Equal(t, "Renamed", pf.Name)
	assert.Equal(t, "healthcare", pf.IndustryID)
}
