package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testSnapshot() *Snapshot {
	uploaded := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	items := []domain.ChecklistItem{
		{
			ItemID: "aaaaaaaaaaaaaaaa", Domain: "security", PackID: "baseline", PackVersion: "1.0.0",
			ControlID: "C2", Severity: domain.SeverityCritical, Title: "Access control",
			Objective: "Restrict access.", WhyApplies: "Triggered by: (no applicability rule)",
			EvidenceRequired: []domain.EvidenceSpec{{Type: "screenshot", Name: "IAM policy"}},
			Status:           domain.StatusImplemented, Owner: "alice",
			Evidence: []domain.Evidence{{
				EvidenceID: "e1", FileName: "iam.png", SHA256: strings.Repeat("ab", 32),
				Size: 3, UploadedAt: uploaded,
			}},
		},
		{
			ItemID: "bbbbbbbbbbbbbbbb", Domain: "safety", PackID: "harm", PackVersion: "2.0.0",
			ControlID: "S1", Severity: domain.SeverityLow, Title: "Harm review, \"quoted\"",
			WhyApplies: "Triggered by: hosting == \"cloud\" (resolved \"cloud\")",
			Status:     domain.StatusNotStarted, Orphaned: true,
			Evidence: []domain.Evidence{},
		},
	}
	rec := &domain.ProjectRecord{
		Project: domain.Project{ID: "demo-1234abcd", Name: "Demo <Triage>", Revision: 4},
		Inputs: domain.ProjectInputs{
			IndustryID: "healthcare", SegmentID: "clinical", UseCaseID: "triage",
			SelectedPacks: []domain.PackRef{{Domain: "security", PackID: "baseline", Version: "1.0.0"}},
		},
		Checklist: items,
	}
	counts := domain.Counts{
		Total:    2,
		Orphaned: 1,
		ByStatus: map[domain.ItemStatus]int{domain.StatusImplemented: 1, domain.StatusNotStarted: 1},
		ByDomain: map[string]int{"security": 1, "safety": 1},
	}
	return NewSnapshot(rec, counts, asOf)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatHTML, f)

	f, err = ParseFormat("PDF")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)

	_, err = ParseFormat("docx")
	assert.ErrorIs(t, err, domain.ErrInvalidReportFormat)
}

func TestNewSnapshot_CopiesItems(t *testing.T) {
	rec := &domain.ProjectRecord{Checklist: []domain.ChecklistItem{{ItemID: "a", Title: "before"}}}
	snap := NewSnapshot(rec, domain.Counts{}, asOf.In(time.FixedZone("x", 3600)))
	rec.Checklist[0].Title = "after"

	assert.Equal(t, "before", snap.Items[0].Title)
	assert.Equal(t, time.UTC, snap.AsOf.Location())
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, testSnapshot()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, []string{"aaaaaaaaaaaaaaaa", "security", "critical", "implemented", "Access control", "alice", "1", "security/baseline@1.0.0", "false"}, rows[1])
	assert.Equal(t, "Harm review, \"quoted\"", rows[2][4])
	assert.Equal(t, "true", rows[2][8])
}

func TestHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, testSnapshot()))
	out := buf.String()

	assert.Contains(t, out, "Demo &lt;Triage&gt;")
	assert.Contains(t, out, "2026-03-01T12:00:00Z")
	assert.Contains(t, out, `id="item-aaaaaaaaaaaaaaaa"`)
	assert.Contains(t, out, "iam.png <code>abababababab</code>")
	assert.Contains(t, out, "no longer applicable")
	assert.Contains(t, out, "risk accepted")
	assert.Less(t, strings.Index(out, "<h2>security"), strings.Index(out, "<h2>safety"))
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, testSnapshot()))

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, asOf, decoded.AsOf)
	assert.Len(t, decoded.Items, 2)
}

func TestPDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PDF(&buf, testSnapshot()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestPDF_NonLatinText(t *testing.T) {
	snap := testSnapshot()
	snap.Project.Name = "Überprüfung Κλινική διαλογή"
	snap.Items[0].Notes = "Проверено ✓"
	snap.Items[0].Evidence[0].FileName = "политика-доступа.pdf"

	var buf bytes.Buffer
	require.NoError(t, PDF(&buf, snap))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Contains(t, buf.String(), "/Encoding /Identity-H", "text is written with an embedded unicode font")
	assert.Contains(t, buf.String(), "/FontFile2")

	var again bytes.Buffer
	require.NoError(t, PDF(&again, snap))
	assert.Equal(t, buf.Bytes(), again.Bytes())
}

func TestRender_Deterministic(t *testing.T) {
	for _, f := range Formats {
		t.Run(string(f), func(t *testing.T) {
			first, err := Render(f, testSnapshot())
			require.NoError(t, err)
			second, err := Render(f, testSnapshot())
			require.NoError(t, err)

			assert.Equal(t, first.Body, second.Body)
			assert.Equal(t, f.ContentType(), first.ContentType)
			assert.Equal(t, "demo-1234abcd-report."+string(f), first.FileName)
		})
	}
}

func TestRender_UnknownFormat(t *testing.T) {
	_, err := Render(Format("docx"), testSnapshot())
	assert.ErrorIs(t, err, domain.ErrInvalidReportFormat)
}
