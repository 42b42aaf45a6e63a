// Package registrytest writes small configuration roots for tests.
package registrytest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Fixture paths and the ids they declare.
const (
	IndustryID = "healthcare"
	SegmentID  = "clinical"
	UseCaseID  = "triage"

	UseCasePath  = "taxonomy/industries/healthcare/segments/clinical/use-cases/triage/use_case.yaml"
	PackPath     = "packs/security/baseline/1.0.0/pack.yaml"
	ControlsPath = "packs/security/baseline/1.0.0/controls/controls.yaml"
)

const (
	IndustryYAML = `id: healthcare
name: Healthcare
`
	SegmentYAML = `id: clinical
name: Clinical
`
	UseCaseYAML = `id: triage
name: Triage assistant
tags: [llm]
scope_questions:
  - id: processes_biometric_data
    prompt: Does the system process biometric data?
    type: boolean
    default: false
  - id: hosting
    prompt: Where is it hosted?
    type: select
    options: [cloud, on_prem]
`
	PackYAML = `pack:
  id: baseline
  name: Security Baseline
  version: "1.0.0"
  domain: security
  type: control_catalog
  source:
    name: Internal
    reference: SB-1
`
	// C1 applies only to biometric processing; C2 always applies.
	ControlsYAML = `controls:
  - id: C1
    title: Biometric consent
    objective: Obtain consent before processing biometrics.
    severity: high
    why: Biometric data is special category data.
    applicability:
      is_true: processes_biometric_data
    evidence_required:
      - type: document
        name: Consent form
  - id: C2
    title: Access control
    objective: Restrict access to production.
    severity: critical
    evidence_required:
      - type: screenshot
        name: IAM policy
`
)

// BaseFiles returns the default fixture keyed by path relative to the root.
func BaseFiles() map[string]string {
	return map[string]string{
		"taxonomy/industries/healthcare/industry.yaml":                  IndustryYAML,
		"taxonomy/industries/healthcare/segments/clinical/segment.yaml": SegmentYAML,
		UseCasePath:  UseCaseYAML,
		PackPath:     PackYAML,
		ControlsPath: ControlsYAML,
	}
}

// WriteFiles writes files below root, creating directories as needed.
func WriteFiles(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// NewRoot writes the base fixture with overrides applied into a temp dir and
// returns its path. An empty override removes the file.
func NewRoot(t testing.TB, overrides map[string]string) string {
	t.Helper()
	root := t.TempDir()
	files := BaseFiles()
	for k, v := range overrides {
		if v == "" {
			delete(files, k)
			continue
		}
		files[k] = v
	}
	WriteFiles(t, root, files)
	return root
}
