package report

import (
	"embed"
	"html/template"
	"io"
	"sync"

	"github.com/cloo-solutions/truststack/internal/domain"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var reportTemplate = sync.OnceValue(func() *template.Template {
	return template.Must(template.New("report.html.tmpl").Funcs(template.FuncMap{
		"status":     statusLabel,
		"time":       formatTime,
		"hashPrefix": func(e domain.Evidence) string { return e.HashPrefix(12) },
	}).ParseFS(templateFS, "templates/report.html.tmpl"))
})

type htmlView struct {
	*Snapshot
	Statuses []domain.ItemStatus
	Domains  []string
}

// HTML writes a standalone HTML page.
func HTML(w io.Writer, snap *Snapshot) error {
	return reportTemplate().Execute(w, htmlView{
		Snapshot: snap,
		Statuses: domain.ItemStatuses,
		Domains:  domainOrder(snap.Items),
	})
}
