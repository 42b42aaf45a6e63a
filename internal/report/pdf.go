package report

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/cloo-solutions/truststack/internal/domain"
)

const (
	pdfMargin     = 15.0
	pdfLineHeight = 5.0
	pdfFont       = "DejaVu"
)

// DejaVu Sans Condensed as distributed with go-pdf/fpdf.
var (
	//go:embed fonts/DejaVuSansCondensed.ttf
	fontRegular []byte
	//go:embed fonts/DejaVuSansCondensed-Bold.ttf
	fontBold []byte
	//go:embed fonts/DejaVuSansCondensed-Oblique.ttf
	fontItalic []byte
)

// PDF writes a paginated rendering of the same content as the HTML view.
// Document dates are pinned to AsOf so equal snapshots yield equal files.
func PDF(w io.Writer, snap *Snapshot) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(snap.AsOf)
	pdf.SetModificationDate(snap.AsOf)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(snap.Project.Name+" - Compliance checklist", true)
	pdf.SetCreator("truststack", false)
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.AliasNbPages("")
	pdf.AddUTF8FontFromBytes(pdfFont, "", fontRegular)
	pdf.AddUTF8FontFromBytes(pdfFont, "B", fontBold)
	pdf.AddUTF8FontFromBytes(pdfFont, "I", fontItalic)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont(pdfFont, "I", 8)
		pdf.SetTextColor(110, 110, 110)
		pdf.CellFormat(0, 5, fmt.Sprintf("%s - as of %s - page %d/{nb}",
			snap.Project.ID, formatTime(snap.AsOf), pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont(pdfFont, "B", 18)
	pdf.MultiCell(0, 9, snap.Project.Name, "", "L", false)
	pdf.SetFont(pdfFont, "", 9)
	pdf.SetTextColor(90, 90, 90)
	pdf.MultiCell(0, pdfLineHeight, fmt.Sprintf("Project %s, revision %d, as of %s",
		snap.Project.ID, snap.Project.Revision, formatTime(snap.AsOf)), "", "L", false)
	pdf.SetTextColor(0, 0, 0)
	if snap.Project.Description != "" {
		pdf.Ln(2)
		pdf.MultiCell(0, pdfLineHeight, snap.Project.Description, "", "L", false)
	}

	heading(pdf, "Scope")
	packs := make([]string, len(snap.Inputs.SelectedPacks))
	for i, p := range snap.Inputs.SelectedPacks {
		packs[i] = p.String()
	}
	keyValue(pdf, "Industry", snap.Inputs.IndustryID)
	keyValue(pdf, "Segment", snap.Inputs.SegmentID)
	keyValue(pdf, "Use case", snap.Inputs.UseCaseID)
	keyValue(pdf, "Packs", strings.Join(packs, ", "))

	heading(pdf, "Summary")
	keyValue(pdf, "Total items", fmt.Sprint(snap.Counts.Total))
	for _, s := range domain.ItemStatuses {
		keyValue(pdf, statusLabel(s), fmt.Sprint(snap.Counts.ByStatus[s]))
	}
	keyValue(pdf, "orphaned", fmt.Sprint(snap.Counts.Orphaned))

	for _, d := range domainOrder(snap.Items) {
		heading(pdf, fmt.Sprintf("%s (%d)", d, snap.Counts.ByDomain[d]))
		for i := range snap.Items {
			if snap.Items[i].Domain == d {
				pdfItem(pdf, &snap.Items[i])
			}
		}
	}

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.Output(w)
}

func heading(pdf *fpdf.Fpdf, text string) {
	pdf.Ln(4)
	pdf.SetFont(pdfFont, "B", 13)
	pdf.CellFormat(0, 8, text, "B", 1, "L", false, 0, "")
	pdf.Ln(1)
}

func keyValue(pdf *fpdf.Fpdf, key, value string) {
	pdf.SetFont(pdfFont, "B", 9)
	pdf.CellFormat(35, pdfLineHeight, key, "", 0, "L", false, 0, "")
	pdf.SetFont(pdfFont, "", 9)
	pdf.MultiCell(0, pdfLineHeight, value, "", "L", false)
}

func pdfItem(pdf *fpdf.Fpdf, it *domain.ChecklistItem) {
	pdf.Ln(2)
	pdf.SetFont(pdfFont, "B", 10)
	title := fmt.Sprintf("%s [%s]", it.Title, strings.ToUpper(string(it.Severity)))
	pdf.MultiCell(0, pdfLineHeight+1, title, "", "L", false)

	pdf.SetFont(pdfFont, "", 8)
	pdf.SetTextColor(90, 90, 90)
	meta := fmt.Sprintf("%s - %s - %s - status: %s", it.ItemID, it.ControlID, it.PackRef().String(), statusLabel(it.Status))
	if it.Owner != "" {
		meta += " - owner: " + it.Owner
	}
	if it.Orphaned {
		meta += " - no longer applicable"
	}
	pdf.MultiCell(0, 4, meta, "", "L", false)
	pdf.SetTextColor(0, 0, 0)

	pdf.SetFont(pdfFont, "", 9)
	if it.Objective != "" {
		pdf.MultiCell(0, pdfLineHeight, it.Objective, "", "L", false)
	}
	pdf.SetFont(pdfFont, "I", 9)
	pdf.MultiCell(0, pdfLineHeight, it.WhyApplies, "", "L", false)
	pdf.SetFont(pdfFont, "", 9)

	for _, req := range it.EvidenceRequired {
		line := fmt.Sprintf("Required: %s (%s)", req.Name, req.Type)
		if req.Optional {
			line += ", optional"
		}
		pdf.MultiCell(0, pdfLineHeight, line, "", "L", false)
	}
	for _, ev := range it.Evidence {
		pdf.MultiCell(0, pdfLineHeight, fmt.Sprintf("Provided: %s %s %s",
			ev.FileName, ev.HashPrefix(12), formatTime(ev.UploadedAt)), "", "L", false)
	}
	if it.Notes != "" {
		pdf.MultiCell(0, pdfLineHeight, "Notes: "+it.Notes, "", "L", false)
	}
}
