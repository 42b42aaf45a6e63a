package checklist

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/cloo-solutions/truststack/internal/registry"
	"github.com/cloo-solutions/truststack/internal/registry/registrytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baselineRef = domain.PackRef{Domain: "security", PackID: "baseline", Version: "1.0.0"}

func loadRegistry(t *testing.T, overrides map[string]string) *registry.Registry {
	t.Helper()
	reg, err := registry.Load(registrytest.NewRoot(t, overrides))
	require.NoError(t, err)
	return reg
}

func inputs(answers map[string]any, packs ...domain.PackRef) domain.ProjectInputs {
	return domain.ProjectInputs{
		IndustryID:    registrytest.IndustryID,
		SegmentID:     registrytest.SegmentID,
		UseCaseID:     registrytest.UseCaseID,
		ScopeAnswers:  answers,
		SelectedPacks: packs,
	}
}

func generate(t *testing.T, reg *registry.Registry, in domain.ProjectInputs) *Result {
	t.Helper()
	uc, err := reg.UseCase(in.IndustryID, in.SegmentID, in.UseCaseID)
	require.NoError(t, err)
	res, err := Generate(reg, in, uc)
	require.NoError(t, err)
	return res
}

func controlIDs(items []domain.ChecklistItem) []string {
	var ids []string
	for _, it := range items {
		ids = append(ids, it.ControlID)
	}
	return ids
}

func TestItemID(t *testing.T) {
	id := ItemID(baselineRef, "C1")
	assert.Len(t, id, 16)
	assert.Equal(t, id, ItemID(baselineRef, "C1"))
	assert.NotEqual(t, id, ItemID(baselineRef, "C2"))

	other := baselineRef
	other.Version = "1.0.1"
	assert.NotEqual(t, id, ItemID(other, "C1"))
}

func TestGenerate_DefaultsApply(t *testing.T) {
	reg := loadRegistry(t, nil)

	res := generate(t, reg, inputs(map[string]any{}, baselineRef))
	require.Len(t, res.Candidates, 1)

	c2 := res.Candidates[0]
	assert.Equal(t, "C2", c2.ControlID)
	assert.Equal(t, domain.StatusNotStarted, c2.Status)
	assert.Equal(t, ItemID(baselineRef, "C2"), c2.ItemID)
	assert.Equal(t, domain.SeverityCritical, c2.Severity)
	assert.Equal(t, "Triggered by: (no applicability rule)", c2.WhyApplies)
	assert.NotNil(t, c2.Evidence)
	assert.Empty(t, res.Missing)
	assert.Contains(t, res.PackHashes, baselineRef.String())
}

func TestGenerate_AnswerTriggersControl(t *testing.T) {
	reg := loadRegistry(t, nil)

	res := generate(t, reg, inputs(map[string]any{"processes_biometric_data": true}, baselineRef))
	assert.Equal(t, []string{"C1", "C2"}, controlIDs(res.Candidates))
	assert.Equal(t,
		"Biometric data is special category data.\nTriggered by: processes_biometric_data is true (resolved true)",
		res.Candidates[0].WhyApplies)
}

func TestGenerate_CrossPackDuplicatesStayDistinct(t *testing.T) {
	reg := loadRegistry(t, map[string]string{
		"packs/governance/gov/1.0.0/pack.yaml": `pack:
  id: gov
  name: Governance
  version: "1.0.0"
  domain: governance
  type: control_catalog
  source: {name: Internal, reference: G}
`,
		"packs/governance/gov/1.0.0/controls/c.yaml": `controls:
  - id: C2
    title: Access control
    objective: Board oversight of access.
    severity: low
`,
	})
	govRef := domain.PackRef{Domain: "governance", PackID: "gov", Version: "1.0.0"}

	res := generate(t, reg, inputs(nil, baselineRef, govRef))
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "C2", res.Candidates[0].ControlID)
	assert.Equal(t, "C2", res.Candidates[1].ControlID)
	assert.NotEqual(t, res.Candidates[0].ItemID, res.Candidates[1].ItemID)
}

func TestGenerate_MissingPack(t *testing.T) {
	reg := loadRegistry(t, nil)
	gone := domain.PackRef{Domain: "security", PackID: "retired", Version: "1"}

	res := generate(t, reg, inputs(nil, gone, baselineRef))
	assert.Equal(t, []domain.PackRef{gone}, res.Missing)
	assert.Len(t, res.Candidates, 1)
}

func TestGenerate_Deterministic(t *testing.T) {
	reg := loadRegistry(t, nil)
	in := inputs(map[string]any{"processes_biometric_data": true}, baselineRef)

	first := Reconcile(nil, generate(t, reg, in).Candidates, reg, time.Now())
	second := Reconcile(nil, generate(t, reg, in).Candidates, reg, time.Now())
	assert.Equal(t, first, second)

	h1, err := Hash(first)
	require.NoError(t, err)
	h2, err := Hash(second)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestReconcile_PreservesState(t *testing.T) {
	reg := loadRegistry(t, nil)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	items := Reconcile(nil, generate(t, reg, inputs(map[string]any{}, baselineRef)).Candidates, reg, now)
	require.Equal(t, []string{"C2"}, controlIDs(items))

	items[0].Status = domain.StatusImplemented
	items[0].Owner = "alice"
	items[0].Notes = "x"
	items[0].Evidence = []domain.Evidence{{EvidenceID: "e1", FileName: "iam.png"}}

	// an unrelated answer change
	items = Reconcile(items, generate(t, reg, inputs(map[string]any{"hosting": "cloud"}, baselineRef)).Candidates, reg, now)
	require.Len(t, items, 1)
	assert.Equal(t, domain.StatusImplemented, items[0].Status)
	assert.Equal(t, "x", items[0].Notes)
	assert.Equal(t, "alice", items[0].Owner)
	assert.Len(t, items[0].Evidence, 1)

	// enabling biometrics adds C1 without touching C2
	items = Reconcile(items, generate(t, reg, inputs(map[string]any{"processes_biometric_data": true}, baselineRef)).Candidates, reg, now)
	require.Len(t, items, 2)
	c2 := items[0]
	assert.Equal(t, "C2", c2.ControlID, "critical sorts before high")
	assert.Equal(t, domain.StatusImplemented, c2.Status)
	assert.Equal(t, "x", c2.Notes)
	assert.Equal(t, "C1", items[1].ControlID)
	assert.Equal(t, domain.StatusNotStarted, items[1].Status)
}

func TestReconcile_OrphansAreRetained(t *testing.T) {
	reg := loadRegistry(t, nil)
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)

	items := Reconcile(nil, generate(t, reg, inputs(map[string]any{"processes_biometric_data": true}, baselineRef)).Candidates, reg, t1)
	require.Len(t, items, 2)
	items[1].Status = domain.StatusInProgress

	off := generate(t, reg, inputs(map[string]any{"processes_biometric_data": false}, baselineRef)).Candidates
	items = Reconcile(items, off, reg, t2)
	require.Len(t, items, 2)
	c1 := items[1]
	assert.Equal(t, "C1", c1.ControlID)
	assert.True(t, c1.Orphaned)
	require.NotNil(t, c1.OrphanedAt)
	assert.Equal(t, t2, *c1.OrphanedAt)
	assert.Equal(t, domain.StatusInProgress, c1.Status)

	// orphaned_at is set once
	items = Reconcile(items, off, reg, t3)
	assert.Equal(t, t2, *items[1].OrphanedAt)

	counts := Summarize(items)
	assert.Equal(t, 2, counts.Total)
	assert.Equal(t, 1, counts.Orphaned)

	// applying again clears the flag and keeps state
	items = Reconcile(items, generate(t, reg, inputs(map[string]any{"processes_biometric_data": true}, baselineRef)).Candidates, reg, t3)
	assert.False(t, items[1].Orphaned)
	assert.Nil(t, items[1].OrphanedAt)
	assert.Equal(t, domain.StatusInProgress, items[1].Status)
}

func TestReconcile_RemovedPackOrphansItems(t *testing.T) {
	reg := loadRegistry(t, nil)
	items := Reconcile(nil, generate(t, reg, inputs(nil, baselineRef)).Candidates, reg, time.Now())
	require.Len(t, items, 1)

	items = Reconcile(items, nil, reg, time.Now())
	require.Len(t, items, 1)
	assert.True(t, items[0].Orphaned)
}

func TestReconcile_RefreshesDefinitions(t *testing.T) {
	old := loadRegistry(t, nil)
	items := Reconcile(nil, generate(t, old, inputs(nil, baselineRef)).Candidates, old, time.Now())
	items[0].Notes = "keep me"

	updated := loadRegistry(t, map[string]string{
		registrytest.ControlsPath: `controls:
  - id: C2
    title: Access control (revised)
    objective: Restrict and review access.
    severity: medium
`,
	})
	items = Reconcile(items, generate(t, updated, inputs(nil, baselineRef)).Candidates, updated, time.Now())
	require.Len(t, items, 1)
	assert.Equal(t, "Access control (revised)", items[0].Title)
	assert.Equal(t, domain.SeverityMedium, items[0].Severity)
	assert.Empty(t, items[0].EvidenceRequired)
	assert.Equal(t, "keep me", items[0].Notes)
}

func TestSort(t *testing.T) {
	items := []domain.ChecklistItem{
		{ItemID: "6", Domain: "privacy", Severity: domain.SeverityCritical, Title: "A"},
		{ItemID: "5", Domain: "governance", Severity: domain.SeverityCritical, Title: "A"},
		{ItemID: "4", Domain: "safety", Severity: domain.SeverityLow, Title: "A"},
		{ItemID: "3", Domain: "security", Severity: domain.SeverityLow, Title: "A"},
		{ItemID: "2", Domain: "security", Severity: domain.SeverityHigh, Title: "B"},
		{ItemID: "1", Domain: "security", Severity: domain.SeverityHigh, Title: "A"},
		{ItemID: "0", Domain: "security", Severity: domain.SeverityHigh, Title: "A"},
	}
	Sort(items, nil)

	var order []string
	for _, it := range items {
		order = append(order, it.ItemID)
	}
	assert.Equal(t, []string{"0", "1", "2", "3", "4", "5", "6"}, order)
}

func TestSummarize(t *testing.T) {
	counts := Summarize([]domain.ChecklistItem{
		{Domain: "security", Status: domain.StatusImplemented},
		{Domain: "security", Status: domain.StatusNotStarted},
		{Domain: "safety", Status: domain.StatusNotStarted, Orphaned: true},
	})
	assert.Equal(t, 3, counts.Total)
	assert.Equal(t, 1, counts.Orphaned)
	assert.Equal(t, 2, counts.ByStatus[domain.StatusNotStarted])
	assert.Equal(t, 1, counts.ByStatus[domain.StatusImplemented])
	assert.Equal(t, 0, counts.ByStatus[domain.StatusRiskAccepted])
	assert.Len(t, counts.ByStatus, len(domain.ItemStatuses))
	assert.Equal(t, map[string]int{"security": 2, "safety": 1}, counts.ByDomain)

	empty := Build(nil)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 0, empty.Counts.Total)
}

func TestHash_IgnoresProjectState(t *testing.T) {
	items := []domain.ChecklistItem{{ItemID: "a", Severity: domain.SeverityLow, Title: "T"}}
	before, err := Hash(items)
	require.NoError(t, err)

	items[0].Status = domain.StatusImplemented
	items[0].Notes = "n"
	after, err := Hash(items)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	items[0].Title = "T2"
	changed, err := Hash(items)
	require.NoError(t, err)
	assert.NotEqual(t, before, changed)
}

func TestGenerate_BundledRegistry(t *testing.T) {
	reg, err := registry.Load(filepath.Join("..", "..", "registry"))
	require.NoError(t, err)

	var packs []domain.PackRef
	for _, s := range []string{
		"security/ai-security-baseline@1.0.0",
		"safety/model-safety@1.0.0",
		"governance/ai-governance@1.0.0",
		"privacy/data-protection@1.1.0",
	} {
		ref, err := domain.ParsePackRef(s)
		require.NoError(t, err)
		packs = append(packs, ref)
	}

	in := domain.ProjectInputs{
		IndustryID: "healthcare",
		SegmentID:  "clinical",
		UseCaseID:  "triage-assistant",
		ScopeAnswers: map[string]any{
			"hosting":      "vendor_api",
			"regions":      []any{"eu", "uk"},
			"human_review": false,
		},
		SelectedPacks: packs,
	}
	items := Reconcile(nil, generate(t, reg, in).Candidates, reg, time.Now())

	assert.ElementsMatch(t, []string{
		"SEC-01", "SEC-02", "SEC-10", "SEC-11",
		"SAFE-01", "SAFE-02",
		"GOV-01", "GOV-02", "GOV-03",
		"PRIV-01", "PRIV-03",
	}, controlIDs(items))
	assert.Equal(t, "security", items[0].Domain)
	assert.Equal(t, "privacy", items[len(items)-1].Domain)
}
