// Package report renders a checklist snapshot. Rendering is a pure function
// of the snapshot: the only timestamp in the output is Snapshot.AsOf.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloo-solutions/truststack/internal/domain"
)

// Format is an output representation
type Format string

const (
	FormatHTML Format = "html"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatJSON Format = "json"
)

// Formats lists every supported format.
var Formats = []Format{FormatHTML, FormatCSV, FormatPDF, FormatJSON}

// ParseFormat resolves a format name case-insensitively. An empty name means HTML.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatHTML, nil
	}
	f := Format(strings.ToLower(s))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", domain.ErrInvalidReportFormat
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	case FormatJSON:
		return "application/json"
	}
	return "application/octet-stream"
}

// Snapshot is a point-in-time view of one project's checklist.
type Snapshot struct {
	Project    domain.Project         `json:"project"`
	Inputs     domain.ProjectInputs   `json:"inputs"`
	Generation domain.Generation      `json:"generation"`
	Items      []domain.ChecklistItem `json:"items"`
	Counts     domain.Counts          `json:"counts"`
	AsOf       time.Time              `json:"as_of"`
}

// NewSnapshot captures a project record at asOf. Items are copied so later
// mutation of the record does not leak into a rendering in progress.
func NewSnapshot(rec *domain.ProjectRecord, counts domain.Counts, asOf time.Time) *Snapshot {
	items := make([]domain.ChecklistItem, len(rec.Checklist))
	copy(items, rec.Checklist)
	return &Snapshot{
		Project:    rec.Project,
		Inputs:     rec.Inputs,
		Generation: rec.Generation,
		Items:      items,
		Counts:     counts,
		AsOf:       asOf.UTC(),
	}
}

// Output is a rendered report.
type Output struct {
	Format      Format
	ContentType string
	FileName    string
	Body        []byte
}

// Render produces the report in the requested format.
func Render(f Format, snap *Snapshot) (*Output, error) {
	var buf bytes.Buffer
	var err error
	switch f {
	case FormatHTML:
		err = HTML(&buf, snap)
	case FormatCSV:
		err = CSV(&buf, snap)
	case FormatPDF:
		err = PDF(&buf, snap)
	case FormatJSON:
		err = JSON(&buf, snap)
	default:
		return nil, domain.ErrInvalidReportFormat
	}
	if err != nil {
		return nil, fmt.Errorf("render %s report: %w", f, err)
	}
	return &Output{
		Format:      f,
		ContentType: f.ContentType(),
		FileName:    fmt.Sprintf("%s-report.%s", snap.Project.ID, f),
		Body:        buf.Bytes(),
	}, nil
}

// JSON writes the snapshot as indented JSON.
func JSON(w io.Writer, snap *Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// domainOrder lists the domains present in items in the order they first appear.
func domainOrder(items []domain.ChecklistItem) []string {
	var out []string
	seen := map[string]bool{}
	for _, it := range items {
		if !seen[it.Domain] {
			seen[it.Domain] = true
			out = append(out, it.Domain)
		}
	}
	return out
}

func statusLabel(s domain.ItemStatus) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
