package checklist

import (
	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/cloo-solutions/truststack/internal/registry"
)

// Summarize counts items by status and domain. Every known status is present
// in ByStatus, zero or not.
func Summarize(items []domain.ChecklistItem) domain.Counts {
	c := domain.Counts{
		Total:    len(items),
		ByStatus: make(map[domain.ItemStatus]int, len(domain.ItemStatuses)),
		ByDomain: make(map[string]int),
	}
	for _, s := range domain.ItemStatuses {
		c.ByStatus[s] = 0
	}
	for i := range items {
		c.ByStatus[items[i].Status]++
		c.ByDomain[items[i].Domain]++
		if items[i].Orphaned {
			c.Orphaned++
		}
	}
	return c
}

// Build pairs items with their counts.
func Build(items []domain.ChecklistItem) domain.Checklist {
	if items == nil {
		items = []domain.ChecklistItem{}
	}
	return domain.Checklist{Items: items, Counts: Summarize(items)}
}

type hashEntry struct {
	ItemID   string          `json:"item_id"`
	Severity domain.Severity `json:"severity"`
	Title    string          `json:"title"`
	Orphaned bool            `json:"orphaned"`
}

// Hash digests the structure of a checklist. Project-local state such as
// status and evidence does not contribute.
func Hash(items []domain.ChecklistItem) (string, error) {
	entries := make([]hashEntry, len(items))
	for i := range items {
		entries[i] = hashEntry{
			ItemID:   items[i].ItemID,
			Severity: items[i].Severity,
			Title:    items[i].Title,
			Orphaned: items[i].Orphaned,
		}
	}
	return registry.CanonicalHash(entries)
}
