package checklist

import (
	"sort"
	"time"

	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/cloo-solutions/truststack/internal/registry"
)

// Reconcile merges fresh candidates with the items already stored for a
// project. Items keep their status, owner, notes and evidence; only the
// pack-derived fields are refreshed. Items that are no longer candidates are
// kept and flagged as orphaned. The result is sorted.
func Reconcile(existing, candidates []domain.ChecklistItem, reg *registry.Registry, now time.Time) []domain.ChecklistItem {
	byID := make(map[string]*domain.ChecklistItem, len(existing))
	for i := range existing {
		byID[existing[i].ItemID] = &existing[i]
	}

	out := make([]domain.ChecklistItem, 0, len(candidates)+len(existing))
	seen := make(map[string]bool, len(candidates))
	for _, cand := range candidates {
		if seen[cand.ItemID] {
			continue
		}
		seen[cand.ItemID] = true

		prev, ok := byID[cand.ItemID]
		if !ok {
			out = append(out, cand)
			continue
		}
		item := cand
		item.Status = prev.Status
		item.Owner = prev.Owner
		item.Notes = prev.Notes
		item.Evidence = prev.Evidence
		if item.Evidence == nil {
			item.Evidence = []domain.Evidence{}
		}
		item.Orphaned = false
		item.OrphanedAt = nil
		out = append(out, item)
	}

	for _, prev := range existing {
		if seen[prev.ItemID] {
			continue
		}
		seen[prev.ItemID] = true

		item := prev
		if !item.Orphaned || item.OrphanedAt == nil {
			at := now
			item.OrphanedAt = &at
		}
		item.Orphaned = true
		if reg != nil {
			if pack, err := reg.Pack(item.PackRef()); err == nil {
				if c, ok := pack.Control(item.ControlID); ok {
					applyDefinition(&item, c)
				}
			}
		}
		out = append(out, item)
	}

	Sort(out, reg)
	return out
}

// Sort orders items by domain rank, then severity from critical down, then
// title. Item id breaks remaining ties.
func Sort(items []domain.ChecklistItem, reg *registry.Registry) {
	rank := func(d string) int {
		if reg == nil {
			return builtinRank(d)
		}
		return reg.DomainRank(d)
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := &items[i], &items[j]
		if ra, rb := rank(a.Domain), rank(b.Domain); ra != rb {
			return ra < rb
		}
		if a.Domain != b.Domain {
			return a.Domain < b.Domain
		}
		if sa, sb := a.Severity.Rank(), b.Severity.Rank(); sa != sb {
			return sa > sb
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ItemID < b.ItemID
	})
}

func builtinRank(d string) int {
	for i, b := range domain.BuiltinDomains {
		if b == d {
			return i
		}
	}
	return len(domain.BuiltinDomains)
}
