// Package registry loads the taxonomy and the versioned packs from the
// configuration root and serves them as an immutable value.
package registry

import (
	"fmt"
	"slices"
	"time"

	"github.com/cloo-solutions/truststack/internal/domain"
)

// Registry is a fully validated snapshot of the configuration root. It is
// never mutated after Load returns; reloading produces a new value.
type Registry struct {
	root         string
	industries   []domain.Industry
	domains      []string
	packs        map[domain.PackRef]*domain.Pack
	listings     []domain.PackListing
	taxonomyHash string
	fingerprint  string
	loadedAt     time.Time
}

// Root returns the directory the registry was loaded from.
func (r *Registry) Root() string { return r.root }

// Fingerprint identifies the on-disk state the registry was loaded from.
func (r *Registry) Fingerprint() string { return r.fingerprint }

// TaxonomyHash is the canonical hash of the taxonomy tree.
func (r *Registry) TaxonomyHash() string { return r.taxonomyHash }

// LoadedAt returns when the registry was loaded.
func (r *Registry) LoadedAt() time.Time { return r.loadedAt }

// ListIndustries returns the whole taxonomy tree.
func (r *Registry) ListIndustries() []domain.Industry {
	return r.industries
}

// Industry returns one industry with its segments and use cases.
func (r *Registry) Industry(id string) (*domain.Industry, error) {
	for i := range r.industries {
		if r.industries[i].ID == id {
			return &r.industries[i], nil
		}
	}
	return nil, domain.ErrIndustryNotFound
}

// UseCase resolves a use case through its industry and segment.
func (r *Registry) UseCase(industryID, segmentID, useCaseID string) (*domain.UseCase, error) {
	ind, err := r.Industry(industryID)
	if err != nil {
		return nil, err
	}
	for si := range ind.Segments {
		seg := &ind.Segments[si]
		if seg.ID != segmentID {
			continue
		}
		for ui := range seg.UseCases {
			if seg.UseCases[ui].ID == useCaseID {
				return &seg.UseCases[ui], nil
			}
		}
	}
	return nil, domain.ErrUseCaseNotFound
}

// ListPacks returns every pack with its versions in lexicographic order.
func (r *Registry) ListPacks() []domain.PackListing {
	return r.listings
}

// Versions returns the known versions of one pack.
func (r *Registry) Versions(packDomain, packID string) ([]string, error) {
	for _, l := range r.listings {
		if l.Domain == packDomain && l.PackID == packID {
			return l.Versions, nil
		}
	}
	return nil, domain.ErrPackNotFound
}

// Pack returns an exact pack version. The registry never picks a version on
// the caller's behalf.
func (r *Registry) Pack(ref domain.PackRef) (*domain.Pack, error) {
	p, ok := r.packs[ref]
	if !ok {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeNotFound, fmt.Sprintf("pack %s not found", ref), domain.ErrPackNotFound)
	}
	return p, nil
}

// Domains returns the domain order used for checklist grouping.
func (r *Registry) Domains() []string {
	return r.domains
}

// DomainRank positions a domain in the checklist order. Unknown domains sort last.
func (r *Registry) DomainRank(d string) int {
	if i := slices.Index(r.domains, d); i >= 0 {
		return i
	}
	return len(r.domains)
}
