// Package importer parses CycloneDX documents into package nodes and
// dependency edges and upserts them into the graph idempotently.
package importer

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/depscope/depscope/database"
	"github.com/depscope/depscope/model"
	"github.com/depscope/depscope/taskqueue"
	"github.com/depscope/depscope/util"
)

// enrichmentLimit bounds concurrent registry lookups during import.
const enrichmentLimit = 10

// Registry is the subset of the registry client the importer needs
// for best-effort component enrichment.
type Registry interface {
	GetLicense(ctx context.Context, purl string) (string, error)
	GetRepoURL(ctx context.Context, name string) (string, error)
}

// Store is the subset of the relational store used for root-component
// fallback resolution. May be nil when no store is configured.
type Store interface {
	GetPackageByID(ctx context.Context, id string) (*model.PackageRecord, error)
}

// Importer writes SBOM documents into the dependency graph.
type Importer struct {
	graph    database.Graph
	registry Registry
	store    Store
	queue    taskqueue.Queue
	logger   *zap.Logger
}

// New creates an Importer. registry, store and queue may be nil; every
// use of them is best-effort.
func New(graph database.Graph, reg Registry, store Store, queue taskqueue.Queue, logger *zap.Logger) *Importer {
	if queue == nil {
		queue = taskqueue.NopQueue{}
	}
	return &Importer{
		graph:    graph,
		registry: reg,
		store:    store,
		queue:    queue,
		logger:   logger,
	}
}

// componentInfo is the staged form of one component before the batch
// upsert.
type componentInfo struct {
	purl    string
	name    string
	version string
	license string
	comp    model.Component
}

// ImportSBOM imports one CycloneDX-shaped document under the given
// opaque SBOM id. All graph writes are merge-upserts, so a retried
// import after partial failure converges to the same end state.
func (im *Importer) ImportSBOM(ctx context.Context, sbomID string, doc *model.CycloneDX) error {
	if util.IsEmpty(sbomID) {
		return model.NewValidationError("sbomId", "must not be empty")
	}
	if doc == nil {
		return model.NewValidationError("document", "must not be nil")
	}

	root := im.resolveRootComponent(ctx, sbomID, doc)

	components := doc.Components
	if root != nil {
		components = append([]model.Component{*root}, components...)
	}

	infos := im.stageComponents(components)
	if im.registry != nil {
		im.enrichLicenses(ctx, infos)
	}

	if err := im.upsertSbomNode(ctx, sbomID, doc, root); err != nil {
		return err
	}

	newPurls, err := im.upsertPackages(ctx, infos)
	if err != nil {
		return err
	}

	if err := im.upsertDependencyEdges(ctx, doc, infos); err != nil {
		return err
	}

	if err := im.linkToSbom(ctx, sbomID, infos); err != nil {
		return err
	}

	im.queueNewDependencies(infos, newPurls)

	return nil
}

// resolveRootComponent returns the document's root component,
// synthesizing one from the SBOM node or the relational store when the
// document omits metadata.component. The root is always an application.
func (im *Importer) resolveRootComponent(ctx context.Context, sbomID string, doc *model.CycloneDX) *model.Component {
	if doc.Metadata != nil && doc.Metadata.Component != nil {
		root := *doc.Metadata.Component
		root.Type = "application"
		return &root
	}

	name, version := "", ""

	// A prior import may have recorded the package behind this id.
	var existing []model.SbomNode
	query := `
		FOR s IN sbom
			FILTER s.id == @id
			LIMIT 1
			RETURN s
	`
	if err := im.graph.ReadAll(ctx, query, map[string]any{"id": sbomID}, &existing); err == nil && len(existing) > 0 {
		name = existing[0].PackageName
		version = existing[0].Version
	}

	if name == "" && im.store != nil {
		if record, err := im.store.GetPackageByID(ctx, sbomID); err == nil && record != nil {
			name = record.PackageName
		}
	}

	if name == "" {
		return nil
	}

	return &model.Component{
		Type:    "application",
		Name:    name,
		Version: version,
		Purl:    util.SynthesizePurl(name, version),
	}
}

// stageComponents resolves canonical purls and raw license strings for
// every component, deduplicated by purl.
func (im *Importer) stageComponents(components []model.Component) []*componentInfo {
	var infos []*componentInfo
	seen := make(map[string]bool)

	for _, comp := range components {
		purl := util.ResolveComponentPurl(comp.Purl, comp.BomRef, comp.Name, comp.Version)
		if purl == "" || seen[purl] {
			continue
		}
		seen[purl] = true

		name := comp.Name
		if name == "" {
			name = util.ExtractNameFromPurl(purl)
		}

		infos = append(infos, &componentInfo{
			purl:    purl,
			name:    name,
			version: comp.Version,
			license: util.LicenseStringFromChoices(comp.Licenses),
			comp:    comp,
		})
	}

	return infos
}

// enrichLicenses fills missing license fields from the registry with
// bounded concurrency. A failed or empty lookup leaves the field unset
// and never fails the import.
func (im *Importer) enrichLicenses(ctx context.Context, infos []*componentInfo) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichmentLimit)

	for _, info := range infos {
		if info.license != "" {
			continue
		}
		info := info
		g.Go(func() error {
			license, err := im.registry.GetLicense(gctx, info.purl)
			if err != nil {
				im.logger.Warn("license enrichment failed",
					zap.String("purl", info.purl), zap.Error(err))
				return nil
			}
			info.license = license
			return nil
		})
	}

	_ = g.Wait()
}

// upsertSbomNode creates or refreshes the SBOM vertex.
func (im *Importer) upsertSbomNode(ctx context.Context, sbomID string, doc *model.CycloneDX, root *model.Component) error {
	node := map[string]any{
		"id":        sbomID,
		"source":    "cyclonedx",
		"createdat": time.Now().UTC().Format(time.RFC3339),
		"objtype":   "SbomNode",
	}
	if doc.Metadata != nil && len(doc.Metadata.Tools) > 0 {
		node["tool"] = doc.Metadata.Tools[0].Name
	}
	if root != nil {
		node["packagename"] = root.Name
		if root.Version != "" {
			node["version"] = root.Version
		}
		if root.Purl != "" {
			node["purl"] = util.ResolveComponentPurl(root.Purl, root.BomRef, root.Name, root.Version)
		}
	}

	query := `
		UPSERT { id: @node.id }
		INSERT @node
		UPDATE @node
		IN sbom
	`
	return im.graph.Exec(ctx, query, map[string]any{"node": node})
}

// upsertPackages writes all components in one batch statement and
// returns the purls that did not exist before this import.
func (im *Importer) upsertPackages(ctx context.Context, infos []*componentInfo) (map[string]bool, error) {
	if len(infos) == 0 {
		return map[string]bool{}, nil
	}

	packages := make([]map[string]any, 0, len(infos))
	for _, info := range infos {
		pkg := map[string]any{
			"purl":    info.purl,
			"name":    info.name,
			"objtype": "PackageNode",
		}
		// Only set fields that carry a value so a re-import never
		// clobbers previously enriched attributes.
		if info.version != "" {
			pkg["version"] = info.version
		}
		if info.license != "" {
			pkg["license"] = info.license
		}
		if info.comp.Type != "" {
			pkg["type"] = info.comp.Type
		}
		if info.comp.Scope != "" {
			pkg["scope"] = info.comp.Scope
		}
		if info.comp.BomRef != "" {
			pkg["bomref"] = info.comp.BomRef
		}
		if len(info.comp.Hashes) > 0 {
			pkg["hashes"] = info.comp.Hashes
		}
		packages = append(packages, pkg)
	}

	query := `
		FOR pkg IN @packages
			UPSERT { purl: pkg.purl }
			INSERT pkg
			UPDATE pkg
			IN package
			RETURN { purl: pkg.purl, isNew: OLD == null }
	`

	var results []struct {
		Purl  string `json:"purl"`
		IsNew bool   `json:"isNew"`
	}
	if err := im.graph.ReadAll(ctx, query, map[string]any{"packages": packages}, &results); err != nil {
		return nil, err
	}

	newPurls := make(map[string]bool)
	for _, r := range results {
		if r.IsNew {
			newPurls[r.Purl] = true
		}
	}
	return newPurls, nil
}

// upsertDependencyEdges writes all dependency pairs in one batch
// statement. Duplicate ordered pairs collapse via the upsert match.
func (im *Importer) upsertDependencyEdges(ctx context.Context, doc *model.CycloneDX, infos []*componentInfo) error {
	refToPurl := make(map[string]string, len(infos))
	for _, info := range infos {
		if info.comp.BomRef != "" {
			refToPurl[info.comp.BomRef] = info.purl
		}
		if info.comp.Purl != "" {
			refToPurl[info.comp.Purl] = info.purl
		}
		refToPurl[info.purl] = info.purl
	}

	resolve := func(ref string) string {
		if purl, ok := refToPurl[ref]; ok {
			return purl
		}
		if cleaned, err := util.CleanPURL(ref); err == nil {
			return cleaned
		}
		return ref
	}

	type edgePair struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	var edges []edgePair
	seen := make(map[string]bool)

	for _, dep := range doc.Dependencies {
		from := resolve(dep.Ref)
		for _, target := range dep.DependsOn {
			to := resolve(target)
			if from == "" || to == "" || from == to {
				continue
			}
			key := from + "|" + to
			if seen[key] {
				continue
			}
			seen[key] = true
			edges = append(edges, edgePair{From: from, To: to})
		}
	}

	if len(edges) == 0 {
		return nil
	}

	query := `
		FOR edge IN @edges
			LET fromId = FIRST(FOR p IN package FILTER p.purl == edge.from LIMIT 1 RETURN p._id)
			LET toId = FIRST(FOR p IN package FILTER p.purl == edge.to LIMIT 1 RETURN p._id)
			FILTER fromId != null AND toId != null
			UPSERT { _from: fromId, _to: toId }
			INSERT { _from: fromId, _to: toId }
			UPDATE {}
			IN depends_on
	`
	return im.graph.Exec(ctx, query, map[string]any{"edges": edges})
}

// linkToSbom connects every imported package to the SBOM vertex.
func (im *Importer) linkToSbom(ctx context.Context, sbomID string, infos []*componentInfo) error {
	if len(infos) == 0 {
		return nil
	}

	purls := make([]string, 0, len(infos))
	for _, info := range infos {
		purls = append(purls, info.purl)
	}

	query := `
		LET sbomId = FIRST(FOR s IN sbom FILTER s.id == @sbomId LIMIT 1 RETURN s._id)
		FOR purl IN @purls
			LET pkgId = FIRST(FOR p IN package FILTER p.purl == purl LIMIT 1 RETURN p._id)
			FILTER pkgId != null AND sbomId != null
			UPSERT { _from: pkgId, _to: sbomId }
			INSERT { _from: pkgId, _to: sbomId }
			UPDATE {}
			IN belongs_to
	`
	return im.graph.Exec(ctx, query, map[string]any{"sbomId": sbomID, "purls": purls})
}

// queueNewDependencies hands first-seen packages to the task system.
// Fire and forget: failures are logged, never propagated.
func (im *Importer) queueNewDependencies(infos []*componentInfo, newPurls map[string]bool) {
	if len(newPurls) == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		for _, info := range infos {
			if !newPurls[info.purl] {
				continue
			}
			setup := model.DependencySetupRequest{PackageName: info.name}
			if im.registry != nil {
				if repoURL, err := im.registry.GetRepoURL(ctx, info.name); err == nil {
					setup.RepoURL = repoURL
				}
			}
			if err := im.queue.QueueDependencySetup(ctx, setup); err != nil {
				im.logger.Warn("dependency setup queue failed",
					zap.String("package", info.name), zap.Error(err))
			}
		}
	}()
}
