// Package sbom combines per-package dependency subgraphs into one
// document and converts between CycloneDX and SPDX formats.
package sbom

import (
	"strings"

	"github.com/depscope/depscope/model"
	"github.com/depscope/depscope/util"
)

// Merge unions N dependency subgraphs into one CycloneDX document.
// Components merge by purl with last-write-wins on conflicting
// attributes; dependency edges merge by ref with dependsOn as a set.
func Merge(trees []*model.DependencyTree) *model.CycloneDX {
	doc := model.NewCycloneDX()

	componentIdx := make(map[string]int)
	for _, tree := range trees {
		if tree == nil {
			continue
		}
		for _, comp := range tree.Components {
			key := comp.Purl
			if key == "" {
				key = comp.BomRef
			}
			if key == "" {
				key = comp.Name + "@" + comp.Version
			}
			if i, ok := componentIdx[key]; ok {
				doc.Components[i] = comp
				continue
			}
			componentIdx[key] = len(doc.Components)
			doc.Components = append(doc.Components, comp)
		}
	}

	depIdx := make(map[string]int)
	for _, tree := range trees {
		if tree == nil {
			continue
		}
		for _, dep := range tree.Dependencies {
			i, ok := depIdx[dep.Ref]
			if !ok {
				depIdx[dep.Ref] = len(doc.Dependencies)
				doc.Dependencies = append(doc.Dependencies, model.Dependency{Ref: dep.Ref})
				i = depIdx[dep.Ref]
			}
			existing := doc.Dependencies[i].DependsOn
			for _, target := range dep.DependsOn {
				if !util.Contains(existing, target) {
					existing = append(existing, target)
				}
			}
			doc.Dependencies[i].DependsOn = existing
		}
	}

	return doc
}

// enrichmentInfo carries the external URLs available for a component.
type enrichmentInfo struct {
	RepoURL  string
	Homepage string
	NpmURL   string
}

// Enrich fills structural defaults on every merged component: type,
// scope, a synthesized bom-ref, external references, empty hashes, and
// license evidence mirroring the license list.
func Enrich(doc *model.CycloneDX, lookup func(name string) enrichmentInfo) {
	for i := range doc.Components {
		comp := &doc.Components[i]

		if comp.Type == "" {
			comp.Type = "library"
		}
		if comp.Scope == "" {
			comp.Scope = "required"
		}
		if comp.BomRef == "" {
			if comp.Purl != "" {
				comp.BomRef = comp.Purl
			} else {
				comp.BomRef = comp.Name + "@" + comp.Version
			}
		}
		if comp.Hashes == nil {
			comp.Hashes = []model.Hash{}
		}

		if lookup != nil {
			info := lookup(comp.Name)
			addExternalReference(comp, "vcs", info.RepoURL)
			addExternalReference(comp, "website", info.Homepage)
			addExternalReference(comp, "distribution", info.NpmURL)
		}

		if len(comp.Licenses) > 0 {
			comp.Evidence = &model.Evidence{
				Licenses: append([]model.LicenseChoice(nil), comp.Licenses...),
			}
		}
	}
}

// addExternalReference appends a reference only when the URL is set
// and no reference of that type exists yet.
func addExternalReference(comp *model.Component, refType, url string) {
	if url == "" {
		return
	}
	for _, ref := range comp.ExternalReferences {
		if ref.Type == refType {
			return
		}
	}
	comp.ExternalReferences = append(comp.ExternalReferences, model.ExternalReference{
		URL:  url,
		Type: refType,
	})
}

// Exclude drops components whose name matches any entry in names
// (case-insensitive substring) and prunes dependency edges referencing
// an excluded name.
func Exclude(doc *model.CycloneDX, names []string) {
	if len(names) == 0 {
		return
	}

	needles := make([]string, 0, len(names))
	for _, name := range names {
		if trimmed := strings.ToLower(strings.TrimSpace(name)); trimmed != "" {
			needles = append(needles, trimmed)
		}
	}
	if len(needles) == 0 {
		return
	}

	matches := func(s string) bool {
		lowered := strings.ToLower(s)
		for _, needle := range needles {
			if strings.Contains(lowered, needle) {
				return true
			}
		}
		return false
	}

	kept := doc.Components[:0]
	for _, comp := range doc.Components {
		if !matches(comp.Name) {
			kept = append(kept, comp)
		}
	}
	doc.Components = kept

	keptDeps := doc.Dependencies[:0]
	for _, dep := range doc.Dependencies {
		if matches(dep.Ref) {
			continue
		}
		targets := dep.DependsOn[:0]
		for _, target := range dep.DependsOn {
			if !matches(target) {
				targets = append(targets, target)
			}
		}
		dep.DependsOn = targets
		keptDeps = append(keptDeps, dep)
	}
	doc.Dependencies = keptDeps
}
