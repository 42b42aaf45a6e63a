package registry

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/cloo-solutions/truststack/internal/rules"
)

// Finding is a non-fatal problem in otherwise loadable configuration.
type Finding struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (f Finding) String() string {
	return f.Subject + ": " + f.Message
}

// Lint reports authoring problems that do not stop the registry from loading.
func Lint(reg *Registry) []Finding {
	var findings []Finding

	known := map[string]bool{
		rules.FactIndustry: true,
		rules.FactSegment:  true,
		rules.FactUseCase:  true,
	}
	for _, ind := range reg.industries {
		for _, seg := range ind.Segments {
			for _, uc := range seg.UseCases {
				for _, q := range uc.ScopeQuestions {
					known[q.ID] = true
				}
			}
		}
	}

	for _, l := range reg.listings {
		subject := l.Domain + "/" + l.PackID
		findings = append(findings, lintVersions(subject, l.Versions)...)

		for _, v := range l.Versions {
			p := reg.packs[domain.PackRef{Domain: l.Domain, PackID: l.PackID, Version: v}]
			if len(p.Controls) == 0 {
				findings = append(findings, Finding{Subject: p.Ref.String(), Message: "pack defines no controls"})
			}
			for _, c := range p.Controls {
				subject := p.Ref.String() + " " + c.ID
				for _, key := range rules.Keys(c.Rule) {
					if !known[strings.TrimPrefix(key, "scope.")] {
						findings = append(findings, Finding{Subject: subject, Message: fmt.Sprintf("rule references %q, which no use case asks", key)})
					}
				}
				if len(c.EvidenceRequired) == 0 {
					findings = append(findings, Finding{Subject: subject, Message: "no evidence_required declared"})
				}
			}
		}
	}
	return findings
}

// lintVersions flags versions that are not semver and packs whose lexical
// version order, which clients use to pick a default, disagrees with semver.
func lintVersions(subject string, versions []string) []Finding {
	var findings []Finding
	parsed := make([]*semver.Version, 0, len(versions))
	for _, v := range versions {
		sv, err := semver.NewVersion(v)
		if err != nil {
			findings = append(findings, Finding{Subject: subject, Message: fmt.Sprintf("version %q is not semver", v)})
			continue
		}
		parsed = append(parsed, sv)
	}
	if len(parsed) != len(versions) {
		return findings
	}

	bySemver := slices.Clone(parsed)
	sort.Sort(semver.Collection(bySemver))
	for i := range parsed {
		if !parsed[i].Equal(bySemver[i]) {
			findings = append(findings, Finding{
				Subject: subject,
				Message: fmt.Sprintf("lexical version order %v differs from semver order; clients will treat %s as latest", versions, versions[len(versions)-1]),
			})
			break
		}
	}
	return findings
}
