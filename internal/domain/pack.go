package domain

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/truststack/internal/rules"
)

// Built-in pack domains, in report order
const (
	DomainSecurity   = "security"
	DomainSafety     = "safety"
	DomainGovernance = "governance"
)

// BuiltinDomains lists the domains every registry knows about.
var BuiltinDomains = []string{DomainSecurity, DomainSafety, DomainGovernance}

// Severity ranks a control's importance
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank orders severities from critical (highest) to low.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// IsValid reports whether s is a known severity.
func (s Severity) IsValid() bool {
	return s.Rank() > 0
}

// PackType describes what kind of catalog a pack is
type PackType string

const (
	PackTypeControlCatalog    PackType = "control_catalog"
	PackTypeThreatCatalog     PackType = "threat_catalog"
	PackTypeSuggestionCatalog PackType = "suggestion_catalog"
)

// PackRef identifies one version of a pack
type PackRef struct {
	Domain  string `json:"domain" yaml:"domain"`
	PackID  string `json:"pack_id" yaml:"pack_id"`
	Version string `json:"version" yaml:"version"`
}

// String renders the ref as domain/pack_id@version.
func (r PackRef) String() string {
	return fmt.Sprintf("%s/%s@%s", r.Domain, r.PackID, r.Version)
}

// ParsePackRef parses the "domain/pack@version" form produced by String.
func ParsePackRef(s string) (PackRef, error) {
	path, version, ok := strings.Cut(s, "@")
	if !ok {
		return PackRef{}, fmt.Errorf("pack %q: expected domain/pack@version", s)
	}
	d, id, ok := strings.Cut(path, "/")
	if !ok || d == "" || id == "" || version == "" || strings.Contains(id, "/") {
		return PackRef{}, fmt.Errorf("pack %q: expected domain/pack@version", s)
	}
	return PackRef{Domain: d, PackID: id, Version: version}, nil
}

// PackSource records where a pack's content was derived from
type PackSource struct {
	Name      string `json:"name" yaml:"name"`
	Reference string `json:"reference" yaml:"reference"`
	URL       string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Pack is a versioned, domain-tagged bundle of controls
type Pack struct {
	Ref         PackRef    `json:"ref"`
	Name        string     `json:"name"`
	Type        PackType   `json:"type"`
	Description string     `json:"description,omitempty"`
	LicenseHint string     `json:"license_hint,omitempty"`
	Source      PackSource `json:"source"`
	Controls    []Control  `json:"controls"`
	Hash        string     `json:"hash"`
}

// Control returns the control with the given id.
func (p *Pack) Control(id string) (*Control, bool) {
	for i := range p.Controls {
		if p.Controls[i].ID == id {
			return &p.Controls[i], true
		}
	}
	return nil, false
}

// EvidenceSpec names a kind of evidence a control expects
type EvidenceSpec struct {
	Type     string `json:"type" yaml:"type"`
	Name     string `json:"name" yaml:"name"`
	Optional bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// ControlReference links a control to an external framework clause
type ControlReference struct {
	Name string `json:"name" yaml:"name"`
	Ref  string `json:"ref" yaml:"ref"`
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Control is a single audit requirement
type Control struct {
	ID               string             `json:"id"`
	CanonicalID      string             `json:"canonical_id,omitempty"`
	Title            string             `json:"title"`
	Objective        string             `json:"objective"`
	Severity         Severity           `json:"severity"`
	Category         string             `json:"category,omitempty"`
	Why              string             `json:"why,omitempty"`
	EvidenceRequired []EvidenceSpec     `json:"evidence_required"`
	TestProcedures   []string           `json:"test_procedures,omitempty"`
	References       []ControlReference `json:"references,omitempty"`
	Applicability    map[string]any     `json:"applicability,omitempty"`
	Rule             rules.Predicate    `json:"-"`
}

// PackListing is the catalog entry for a pack with all its known versions
type PackListing struct {
	Domain   string   `json:"domain"`
	PackID   string   `json:"pack_id"`
	Name     string   `json:"name"`
	Versions []string `json:"versions"`
}
