package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"time"

	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/cloo-solutions/truststack/internal/rules"
	"golang.org/x/sync/errgroup"
)

const (
	taxonomyDir    = "taxonomy"
	industriesDir  = "industries"
	segmentsDir    = "segments"
	useCasesDir    = "use-cases"
	packsDir       = "packs"
	controlsDir    = "controls"
	domainsFile    = "domains.yaml"
	industryFile   = "industry.yaml"
	segmentFile    = "segment.yaml"
	useCaseFile    = "use_case.yaml"
	packFile       = "pack.yaml"
	maxPackLoaders = 8
)

type domainsDoc struct {
	Domains []string `yaml:"domains"`
}

type packManifest struct {
	Pack struct {
		ID          string            `yaml:"id"`
		Name        string            `yaml:"name"`
		Version     string            `yaml:"version"`
		Domain      string            `yaml:"domain"`
		Type        domain.PackType   `yaml:"type"`
		Description string            `yaml:"description"`
		LicenseHint string            `yaml:"license_hint"`
		Source      domain.PackSource `yaml:"source"`
	} `yaml:"pack"`
}

type controlsDoc struct {
	Controls []controlDoc `yaml:"controls"`
}

type controlDoc struct {
	ID               string                    `yaml:"id"`
	CanonicalID      string                    `yaml:"canonical_id"`
	Title            string                    `yaml:"title"`
	Objective        string                    `yaml:"objective"`
	Severity         domain.Severity           `yaml:"severity"`
	Category         string                    `yaml:"category"`
	Why              string                    `yaml:"why"`
	Applicability    map[string]any            `yaml:"applicability"`
	EvidenceRequired []domain.EvidenceSpec     `yaml:"evidence_required"`
	TestProcedures   []string                  `yaml:"test_procedures"`
	References       []domain.ControlReference `yaml:"references"`
}

// Load reads and validates the configuration root. Any problem is reported as
// a CONFIG_ERROR naming the offending file.
func Load(root string) (*Registry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, domain.NewConfigError("config root not readable", err)
	}
	if !info.IsDir() {
		return nil, domain.NewConfigError(fmt.Sprintf("config root %s is not a directory", root), nil)
	}

	// Taken before reading so a concurrent edit is picked up by the next poll.
	fingerprint, err := DirFingerprint(root)
	if err != nil {
		return nil, domain.NewConfigError("fingerprint config root", err)
	}

	declared, hasDeclared, err := loadDomains(root)
	if err != nil {
		return nil, err
	}

	industries, err := loadTaxonomy(filepath.Join(root, taxonomyDir, industriesDir))
	if err != nil {
		return nil, err
	}

	packs, err := loadPacks(filepath.Join(root, packsDir))
	if err != nil {
		return nil, err
	}

	reg := &Registry{
		root:       root,
		industries: industries,
		packs:      make(map[domain.PackRef]*domain.Pack, len(packs)),
		loadedAt:   time.Now().UTC(),
	}
	reg.fingerprint = fingerprint

	reg.domains = slices.Clone(domain.BuiltinDomains)
	if hasDeclared {
		for _, d := range declared {
			if !slices.Contains(reg.domains, d) {
				reg.domains = append(reg.domains, d)
			}
		}
	} else {
		var extra []string
		for _, p := range packs {
			if !slices.Contains(reg.domains, p.Ref.Domain) && !slices.Contains(extra, p.Ref.Domain) {
				extra = append(extra, p.Ref.Domain)
			}
		}
		sort.Strings(extra)
		reg.domains = append(reg.domains, extra...)
	}

	for _, p := range packs {
		if !slices.Contains(reg.domains, p.Ref.Domain) {
			return nil, domain.NewConfigError(fmt.Sprintf("pack %s uses undeclared domain %q", p.Ref, p.Ref.Domain), nil)
		}
		if _, dup := reg.packs[p.Ref]; dup {
			return nil, domain.NewConfigError(fmt.Sprintf("duplicate pack %s", p.Ref), nil)
		}
		reg.packs[p.Ref] = p
	}
	reg.listings = buildListings(reg)

	reg.taxonomyHash, err = CanonicalHash(industries)
	if err != nil {
		return nil, domain.NewConfigError("hash taxonomy", err)
	}

	return reg, nil
}

func loadDomains(root string) ([]string, bool, error) {
	data, err := os.ReadFile(filepath.Join(root, domainsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, domain.NewConfigError(domainsFile, err)
	}
	var doc domainsDoc
	if err := decodeDocument(data, schemaDomains, &doc); err != nil {
		return nil, false, domain.NewConfigError(domainsFile, err)
	}
	return doc.Domains, true, nil
}

func loadTaxonomy(dir string) ([]domain.Industry, error) {
	industryDirs, err := subdirs(dir)
	if err != nil {
		return nil, domain.NewConfigError("read taxonomy", err)
	}

	industries := make([]domain.Industry, 0, len(industryDirs))
	seen := map[string]string{}
	for _, name := range industryDirs {
		indPath := filepath.Join(dir, name)
		var ind domain.Industry
		if err := readDocument(filepath.Join(indPath, industryFile), schemaIndustry, &ind); err != nil {
			return nil, err
		}
		if prev, dup := seen[ind.ID]; dup {
			return nil, domain.NewConfigError(fmt.Sprintf("duplicate industry id %q in %s and %s", ind.ID, prev, indPath), nil)
		}
		seen[ind.ID] = indPath

		segments, err := loadSegments(filepath.Join(indPath, segmentsDir))
		if err != nil {
			return nil, err
		}
		ind.Segments = segments
		industries = append(industries, ind)
	}
	return industries, nil
}

func loadSegments(dir string) ([]domain.Segment, error) {
	segDirs, err := optionalSubdirs(dir)
	if err != nil {
		return nil, domain.NewConfigError("read segments", err)
	}

	segments := make([]domain.Segment, 0, len(segDirs))
	seen := map[string]bool{}
	for _, name := range segDirs {
		segPath := filepath.Join(dir, name)
		var seg domain.Segment
		if err := readDocument(filepath.Join(segPath, segmentFile), schemaSegment, &seg); err != nil {
			return nil, err
		}
		if seen[seg.ID] {
			return nil, domain.NewConfigError(fmt.Sprintf("duplicate segment id %q in %s", seg.ID, dir), nil)
		}
		seen[seg.ID] = true

		useCases, err := loadUseCases(filepath.Join(segPath, useCasesDir))
		if err != nil {
			return nil, err
		}
		seg.UseCases = useCases
		segments = append(segments, seg)
	}
	return segments, nil
}

func loadUseCases(dir string) ([]domain.UseCase, error) {
	ucDirs, err := optionalSubdirs(dir)
	if err != nil {
		return nil, domain.NewConfigError("read use cases", err)
	}

	useCases := make([]domain.UseCase, 0, len(ucDirs))
	seen := map[string]bool{}
	for _, name := range ucDirs {
		path := filepath.Join(dir, name, useCaseFile)
		var uc domain.UseCase
		if err := readDocument(path, schemaUseCase, &uc); err != nil {
			return nil, err
		}
		if seen[uc.ID] {
			return nil, domain.NewConfigError(fmt.Sprintf("duplicate use case id %q in %s", uc.ID, dir), nil)
		}
		seen[uc.ID] = true
		if err := checkQuestions(uc); err != nil {
			return nil, domain.NewConfigError(path, err)
		}
		useCases = append(useCases, uc)
	}
	return useCases, nil
}

func checkQuestions(uc domain.UseCase) error {
	seen := map[string]bool{}
	for _, q := range uc.ScopeQuestions {
		if seen[q.ID] {
			return fmt.Errorf("duplicate scope question id %q", q.ID)
		}
		seen[q.ID] = true
		if (q.Type == domain.QuestionTypeSelect || q.Type == domain.QuestionTypeMultiselect) && len(q.Options) == 0 {
			return fmt.Errorf("question %q of type %s needs options", q.ID, q.Type)
		}
		if q.HasDefault() {
			if err := q.CheckAnswer(q.Default); err != nil {
				return fmt.Errorf("question %q default: %w", q.ID, err)
			}
		}
	}
	return nil
}

func loadPacks(dir string) ([]*domain.Pack, error) {
	var packDirs []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == packFile {
			packDirs = append(packDirs, filepath.Dir(path))
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewConfigError("read packs", err)
	}
	sort.Strings(packDirs)

	// Loaded concurrently, assembled in path order.
	results := make([]*domain.Pack, len(packDirs))
	g := new(errgroup.Group)
	g.SetLimit(min(maxPackLoaders, runtime.GOMAXPROCS(0)))
	for i, packDir := range packDirs {
		g.Go(func() error {
			p, err := loadPack(packDir)
			if err != nil {
				return err
			}
			results[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func loadPack(dir string) (*domain.Pack, error) {
	var manifest packManifest
	if err := readDocument(filepath.Join(dir, packFile), schemaPack, &manifest); err != nil {
		return nil, err
	}
	m := manifest.Pack

	pack := &domain.Pack{
		Ref:         domain.PackRef{Domain: m.Domain, PackID: m.ID, Version: m.Version},
		Name:        m.Name,
		Type:        m.Type,
		Description: m.Description,
		LicenseHint: m.LicenseHint,
		Source:      m.Source,
	}

	files, err := controlFiles(filepath.Join(dir, controlsDir))
	if err != nil {
		return nil, domain.NewConfigError(dir, err)
	}

	seen := map[string]bool{}
	for _, file := range files {
		var doc controlsDoc
		if err := readDocument(file, schemaControls, &doc); err != nil {
			return nil, err
		}
		for _, cd := range doc.Controls {
			if seen[cd.ID] {
				return nil, domain.NewConfigError(fmt.Sprintf("%s: duplicate control id %q in pack %s", file, cd.ID, pack.Ref), nil)
			}
			seen[cd.ID] = true

			rule, err := rules.Parse(cd.Applicability)
			if err != nil {
				return nil, domain.NewConfigError(fmt.Sprintf("%s: control %s", file, cd.ID), err)
			}
			pack.Controls = append(pack.Controls, domain.Control{
				ID:               cd.ID,
				CanonicalID:      cd.CanonicalID,
				Title:            cd.Title,
				Objective:        cd.Objective,
				Severity:         cd.Severity,
				Category:         cd.Category,
				Why:              cd.Why,
				EvidenceRequired: cd.EvidenceRequired,
				TestProcedures:   cd.TestProcedures,
				References:       cd.References,
				Applicability:    cd.Applicability,
				Rule:             rule,
			})
		}
	}

	pack.Hash, err = DirHash(dir)
	if err != nil {
		return nil, domain.NewConfigError(dir, err)
	}
	return pack, nil
}

func buildListings(reg *Registry) []domain.PackListing {
	type key struct{ domain, packID string }
	byPack := map[key]*domain.PackListing{}
	for ref := range reg.packs {
		k := key{ref.Domain, ref.PackID}
		l, ok := byPack[k]
		if !ok {
			l = &domain.PackListing{Domain: ref.Domain, PackID: ref.PackID}
			byPack[k] = l
		}
		l.Versions = append(l.Versions, ref.Version)
	}

	listings := make([]domain.PackListing, 0, len(byPack))
	for _, l := range byPack {
		sort.Strings(l.Versions)
		latest := reg.packs[domain.PackRef{Domain: l.Domain, PackID: l.PackID, Version: l.Versions[len(l.Versions)-1]}]
		l.Name = latest.Name
		listings = append(listings, *l)
	}
	sort.Slice(listings, func(i, j int) bool {
		ri, rj := reg.DomainRank(listings[i].Domain), reg.DomainRank(listings[j].Domain)
		if ri != rj {
			return ri < rj
		}
		return listings[i].PackID < listings[j].PackID
	})
	return listings
}

func readDocument(path, schema string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.NewConfigError(path, err)
	}
	if err := decodeDocument(data, schema, out); err != nil {
		return domain.NewConfigError(path, err)
	}
	return nil
}

func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func optionalSubdirs(dir string) ([]string, error) {
	out, err := subdirs(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return out, err
}

func controlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
