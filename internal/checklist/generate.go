// Package checklist derives checklist items from a project's inputs and
// merges them with previously persisted item state.
package checklist

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"slices"

	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/cloo-solutions/truststack/internal/registry"
	"github.com/cloo-solutions/truststack/internal/rules"
)

// GeneratorVersion is recorded with every generation. Bump it when the
// derivation of items changes.
const GeneratorVersion = "1"

// ItemID is the stable identifier of a control instantiated from a pack.
// Two packs defining the same control id yield different items.
func ItemID(ref domain.PackRef, controlID string) string {
	sum := sha256.Sum256([]byte(ref.Domain + "/" + ref.PackID + "/" + ref.Version + "/" + controlID))
	return hex.EncodeToString(sum[:])[:16]
}

// NewScope builds the evaluation scope for a project's inputs.
func NewScope(inputs domain.ProjectInputs, uc *domain.UseCase) rules.Scope {
	s := rules.Scope{
		Answers: inputs.ScopeAnswers,
		Facts: map[string]any{
			rules.FactIndustry: inputs.IndustryID,
			rules.FactSegment:  inputs.SegmentID,
			rules.FactUseCase:  inputs.UseCaseID,
		},
	}
	if uc != nil {
		s.Defaults = uc.Defaults()
		s.Tags = uc.Tags
	}
	return s
}

// Result is the output of Generate.
type Result struct {
	// Candidates are the applicable controls in pack selection order, then
	// control declaration order.
	Candidates []domain.ChecklistItem
	// PackHashes maps each resolved pack ref to its content hash.
	PackHashes map[string]string
	// Missing lists selected packs the registry no longer has. Their items
	// are not candidates.
	Missing []domain.PackRef
}

// Generate evaluates every control of every selected pack against the
// project's scope.
func Generate(reg *registry.Registry, inputs domain.ProjectInputs, uc *domain.UseCase) (*Result, error) {
	scope := NewScope(inputs, uc)
	res := &Result{PackHashes: make(map[string]string, len(inputs.SelectedPacks))}

	for _, ref := range inputs.SelectedPacks {
		pack, err := reg.Pack(ref)
		if errors.Is(err, domain.ErrPackNotFound) {
			res.Missing = append(res.Missing, ref)
			continue
		}
		if err != nil {
			return nil, err
		}
		res.PackHashes[ref.String()] = pack.Hash

		for i := range pack.Controls {
			c := &pack.Controls[i]
			r := rules.Evaluate(c.Rule, scope)
			if !r.Applicable {
				continue
			}
			item := domain.ChecklistItem{
				ItemID:      ItemID(ref, c.ID),
				Domain:      ref.Domain,
				PackID:      ref.PackID,
				PackVersion: ref.Version,
				ControlID:   c.ID,
				WhyApplies:  r.Why(c.Why),
				Status:      domain.StatusNotStarted,
				Evidence:    []domain.Evidence{},
			}
			applyDefinition(&item, c)
			res.Candidates = append(res.Candidates, item)
		}
	}
	return res, nil
}

// applyDefinition copies the pack-derived fields of c onto item.
func applyDefinition(item *domain.ChecklistItem, c *domain.Control) {
	item.Severity = c.Severity
	item.Category = c.Category
	item.Title = c.Title
	item.Objective = c.Objective
	item.EvidenceRequired = slices.Clone(c.EvidenceRequired)
	item.TestProcedures = slices.Clone(c.TestProcedures)
}
