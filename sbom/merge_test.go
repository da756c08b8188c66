package sbom

import (
	"reflect"
	"testing"

	"github.com/depscope/depscope/model"
)

func component(name, version string) model.Component {
	return model.Component{
		Name:    name,
		Version: version,
		Purl:    "pkg:npm/" + name + "@" + version,
	}
}

func TestMerge_ComponentsUnionByPurl(t *testing.T) {
	shared := component("lodash", "4.17.21")
	sharedUpdated := shared
	sharedUpdated.Licenses = []model.LicenseChoice{{License: &model.LicenseEntry{ID: "MIT"}}}

	treeA := &model.DependencyTree{Components: []model.Component{component("a", "1.0.0"), shared}}
	treeB := &model.DependencyTree{Components: []model.Component{sharedUpdated, component("b", "2.0.0")}}

	doc := Merge([]*model.DependencyTree{treeA, treeB, nil})

	if len(doc.Components) != 3 {
		t.Fatalf("expected 3 components, got %d", len(doc.Components))
	}
	// last write wins: the later tree's license survives
	for _, comp := range doc.Components {
		if comp.Name == "lodash" && len(comp.Licenses) == 0 {
			t.Error("expected merged lodash to carry the later tree's licenses")
		}
	}
}

func TestMerge_DependsOnSetUnion(t *testing.T) {
	treeA := &model.DependencyTree{Dependencies: []model.Dependency{
		{Ref: "pkg:npm/a@1.0.0", DependsOn: []string{"pkg:npm/x@1.0.0", "pkg:npm/y@1.0.0"}},
	}}
	treeB := &model.DependencyTree{Dependencies: []model.Dependency{
		{Ref: "pkg:npm/a@1.0.0", DependsOn: []string{"pkg:npm/y@1.0.0", "pkg:npm/z@1.0.0"}},
		{Ref: "pkg:npm/b@1.0.0", DependsOn: []string{"pkg:npm/x@1.0.0"}},
	}}

	doc := Merge([]*model.DependencyTree{treeA, treeB})

	if len(doc.Dependencies) != 2 {
		t.Fatalf("expected 2 dependency entries, got %d", len(doc.Dependencies))
	}
	want := []string{"pkg:npm/x@1.0.0", "pkg:npm/y@1.0.0", "pkg:npm/z@1.0.0"}
	if !reflect.DeepEqual(doc.Dependencies[0].DependsOn, want) {
		t.Errorf("dependsOn union = %v, want %v", doc.Dependencies[0].DependsOn, want)
	}
}

func TestMerge_FallbackComponentKeys(t *testing.T) {
	// no purl: bom-ref keys the merge; no bom-ref either: name@version
	byRef := model.Component{BomRef: "ref-1", Name: "a", Version: "1.0.0"}
	byName := model.Component{Name: "b", Version: "2.0.0"}

	doc := Merge([]*model.DependencyTree{
		{Components: []model.Component{byRef, byName}},
		{Components: []model.Component{byRef, byName}},
	})

	if len(doc.Components) != 2 {
		t.Errorf("expected fallback keys to deduplicate, got %d components", len(doc.Components))
	}
}

func TestEnrich(t *testing.T) {
	doc := model.NewCycloneDX()
	doc.Components = []model.Component{
		{Name: "lodash", Version: "4.17.21", Purl: "pkg:npm/lodash@4.17.21",
			Licenses: []model.LicenseChoice{{License: &model.LicenseEntry{ID: "MIT"}}}},
		{Name: "preset", Version: "1.0.0", Type: "application", Scope: "optional",
			ExternalReferences: []model.ExternalReference{{URL: "https://existing.example", Type: "vcs"}}},
	}

	lookup := func(name string) enrichmentInfo {
		return enrichmentInfo{
			RepoURL:  "https://github.com/example/" + name,
			Homepage: "https://example.com/" + name,
			NpmURL:   "https://www.npmjs.com/package/" + name,
		}
	}
	Enrich(doc, lookup)

	first := doc.Components[0]
	if first.Type != "library" || first.Scope != "required" {
		t.Errorf("expected structural defaults, got type=%q scope=%q", first.Type, first.Scope)
	}
	if first.BomRef != first.Purl {
		t.Errorf("expected bom-ref synthesized from purl, got %q", first.BomRef)
	}
	if first.Hashes == nil {
		t.Error("expected empty hash list, got nil")
	}
	if len(first.ExternalReferences) != 3 {
		t.Errorf("expected 3 external references, got %+v", first.ExternalReferences)
	}
	if first.Evidence == nil || len(first.Evidence.Licenses) != 1 {
		t.Errorf("expected license evidence mirror, got %+v", first.Evidence)
	}

	second := doc.Components[1]
	if second.Type != "application" || second.Scope != "optional" {
		t.Errorf("existing type/scope must be preserved, got type=%q scope=%q", second.Type, second.Scope)
	}
	// the pre-existing vcs reference blocks the lookup's repo URL
	vcsCount := 0
	for _, ref := range second.ExternalReferences {
		if ref.Type == "vcs" {
			vcsCount++
			if ref.URL != "https://existing.example" {
				t.Errorf("existing vcs reference replaced: %q", ref.URL)
			}
		}
	}
	if vcsCount != 1 {
		t.Errorf("expected exactly one vcs reference, got %d", vcsCount)
	}
	if second.BomRef != "preset@1.0.0" {
		t.Errorf("expected name@version bom-ref fallback, got %q", second.BomRef)
	}
	if second.Evidence != nil {
		t.Error("component without licenses must not gain evidence")
	}
}

func TestExclude(t *testing.T) {
	doc := model.NewCycloneDX()
	doc.Components = []model.Component{
		component("lodash", "4.17.21"),
		component("lodash.merge", "4.6.2"),
		component("express", "4.18.2"),
	}
	doc.Dependencies = []model.Dependency{
		{Ref: "pkg:npm/express@4.18.2", DependsOn: []string{"pkg:npm/lodash@4.17.21", "pkg:npm/cookie@0.5.0"}},
		{Ref: "pkg:npm/lodash@4.17.21", DependsOn: []string{"pkg:npm/lodash.merge@4.6.2"}},
	}

	Exclude(doc, []string{" Lodash "})

	if len(doc.Components) != 1 || doc.Components[0].Name != "express" {
		t.Fatalf("expected only express to survive, got %+v", doc.Components)
	}
	if len(doc.Dependencies) != 1 {
		t.Fatalf("expected the lodash dependency entry dropped, got %+v", doc.Dependencies)
	}
	want := []string{"pkg:npm/cookie@0.5.0"}
	if !reflect.DeepEqual(doc.Dependencies[0].DependsOn, want) {
		t.Errorf("expected lodash targets pruned, got %v", doc.Dependencies[0].DependsOn)
	}
}

func TestExclude_NoNames(t *testing.T) {
	doc := model.NewCycloneDX()
	doc.Components = []model.Component{component("lodash", "4.17.21")}

	Exclude(doc, nil)
	Exclude(doc, []string{"", "   "})

	if len(doc.Components) != 1 {
		t.Errorf("empty exclusion lists must not drop components")
	}
}
