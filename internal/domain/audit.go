package domain

import "time"

// Audit event types
const (
	AuditProjectCreated       = "project.created"
	AuditChecklistRegenerated = "checklist.regenerated"
	AuditItemUpdated          = "checklist.item.updated"
	AuditEvidenceUploaded     = "evidence.uploaded"
)

// AuditEvent is one line of a project's append-only audit log
type AuditEvent struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"project_id"`
	Type      string         `json:"type"`
	Actor     string         `json:"actor"`
	At        time.Time      `json:"at"`
	ItemID    string         `json:"item_id,omitempty"`
	Before    map[string]any `json:"before,omitempty"`
	After     map[string]any `json:"after,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}
