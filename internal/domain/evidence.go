package domain

import (
	"fmt"
	"time"
)

// Evidence is one uploaded artifact attached to a checklist item. Records are
// append-only; identical bytes share one blob.
type Evidence struct {
	EvidenceID  string    `json:"evidence_id" yaml:"evidence_id"`
	FileName    string    `json:"file_name" yaml:"file_name"`
	SHA256      string    `json:"sha256" yaml:"sha256"`
	Size        int64     `json:"size" yaml:"size"`
	ContentType string    `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at" yaml:"uploaded_at"`
	StorageKey  string    `json:"storage_key" yaml:"storage_key"`
}

// HashPrefix returns the first n hex characters of the content hash.
func (e Evidence) HashPrefix(n int) string {
	if len(e.SHA256) <= n {
		return e.SHA256
	}
	return e.SHA256[:n]
}

// ValidateEvidence validates an Evidence record
func ValidateEvidence(e *Evidence) error {
	if e == nil {
		return fmt.Errorf("evidence cannot be nil")
	}
	if e.EvidenceID == "" {
		return fmt.Errorf("evidence ID is required")
	}
	if e.FileName == "" {
		return fmt.Errorf("evidence FileName is required")
	}
	if len(e.SHA256) != 64 {
		return fmt.Errorf("evidence SHA256 must be 64 hex characters")
	}
	return nil
}
