package domain

import "time"

// ItemStatus is the remediation state of a checklist item
type ItemStatus string

const (
	StatusNotStarted    ItemStatus = "not_started"
	StatusInProgress    ItemStatus = "in_progress"
	StatusImplemented   ItemStatus = "implemented"
	StatusNotApplicable ItemStatus = "not_applicable"
	StatusRiskAccepted  ItemStatus = "risk_accepted"
)

// ItemStatuses lists every status in display order.
var ItemStatuses = []ItemStatus{
	StatusNotStarted,
	StatusInProgress,
	StatusImplemented,
	StatusNotApplicable,
	StatusRiskAccepted,
}

// IsValid reports whether s is a known status. Any transition between valid
// statuses is allowed.
func (s ItemStatus) IsValid() bool {
	for _, v := range ItemStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ChecklistItem is the project-scoped instance of a control
type ChecklistItem struct {
	ItemID           string         `json:"item_id" yaml:"item_id"`
	Domain           string         `json:"domain" yaml:"domain"`
	PackID           string         `json:"pack_id" yaml:"pack_id"`
	PackVersion      string         `json:"pack_version" yaml:"pack_version"`
	ControlID        string         `json:"control_id" yaml:"control_id"`
	Severity         Severity       `json:"severity" yaml:"severity"`
	Category         string         `json:"category,omitempty" yaml:"category,omitempty"`
	Title            string         `json:"title" yaml:"title"`
	Objective        string         `json:"objective" yaml:"objective"`
	WhyApplies       string         `json:"why_applies" yaml:"why_applies"`
	EvidenceRequired []EvidenceSpec `json:"evidence_required" yaml:"evidence_required"`
	TestProcedures   []string       `json:"test_procedures,omitempty" yaml:"test_procedures,omitempty"`

	Status   ItemStatus `json:"status" yaml:"status"`
	Owner    string     `json:"owner,omitempty" yaml:"owner,omitempty"`
	Notes    string     `json:"notes,omitempty" yaml:"notes,omitempty"`
	Evidence []Evidence `json:"evidence" yaml:"evidence"`

	// Orphaned items no longer derive from the current inputs but are kept
	// so their history stays visible.
	Orphaned   bool       `json:"orphaned" yaml:"orphaned"`
	OrphanedAt *time.Time `json:"orphaned_at,omitempty" yaml:"orphaned_at,omitempty"`
}

// PackRef returns the pack the item was derived from.
func (i *ChecklistItem) PackRef() PackRef {
	return PackRef{Domain: i.Domain, PackID: i.PackID, Version: i.PackVersion}
}

// ItemPatch carries the project-local fields a caller may change
type ItemPatch struct {
	Status *ItemStatus
	Owner  *string
	Notes  *string
}

// IsEmpty reports whether the patch changes nothing.
func (p ItemPatch) IsEmpty() bool {
	return p.Status == nil && p.Owner == nil && p.Notes == nil
}

// Counts aggregates a checklist
type Counts struct {
	Total    int                `json:"total"`
	Orphaned int                `json:"orphaned"`
	ByStatus map[ItemStatus]int `json:"by_status"`
	ByDomain map[string]int     `json:"by_domain"`
}

// Checklist is an ordered set of items and their aggregate
type Checklist struct {
	Items  []ChecklistItem `json:"items"`
	Counts Counts          `json:"counts"`
}
