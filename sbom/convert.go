package sbom

import (
	"fmt"
	"strings"
	"time"

	"github.com/depscope/depscope/model"
	"github.com/depscope/depscope/util"
)

// ConvertToSPDX converts a CycloneDX document to SPDX 2.3. Each
// component gets a sequential SPDXRef id; dependency edges become
// DEPENDS_ON relationships resolved through a ref map, falling back to
// "NONE" when a target is unknown.
func ConvertToSPDX(doc *model.CycloneDX, docName string) *model.SPDX {
	spdx := &model.SPDX{
		SPDXVersion:       "SPDX-2.3",
		DataLicense:       "CC0-1.0",
		SPDXID:            "SPDXRef-DOCUMENT",
		Name:              docName,
		DocumentNamespace: fmt.Sprintf("https://depscope.io/spdx/%s", docName),
		CreationInfo: model.SPDXCreationInfo{
			Created:  time.Now().UTC().Format(time.RFC3339),
			Creators: []string{"Tool: depscope"},
		},
		Packages:      make([]model.SPDXPackage, 0, len(doc.Components)),
		Relationships: make([]model.SPDXRelationship, 0, len(doc.Dependencies)+1),
	}

	refToSpdxID := make(map[string]string, len(doc.Components))

	for i, comp := range doc.Components {
		spdxID := fmt.Sprintf("SPDXRef-%d", i)

		if comp.BomRef != "" {
			refToSpdxID[comp.BomRef] = spdxID
		}
		if comp.Purl != "" {
			refToSpdxID[comp.Purl] = spdxID
		}

		pkg := model.SPDXPackage{
			SPDXID:           spdxID,
			Name:             comp.Name,
			VersionInfo:      comp.Version,
			DownloadLocation: "NOASSERTION",
			FilesAnalyzed:    false,
			CopyrightText:    "NOASSERTION",
		}

		declared := declaredLicense(comp.Licenses)
		if declared == "" {
			declared = "NOASSERTION"
		}
		pkg.LicenseDeclared = declared
		pkg.LicenseConcluded = "NOASSERTION"

		if comp.Purl != "" {
			pkg.ExternalRefs = []model.SPDXExternalRef{
				{
					ReferenceCategory: "PACKAGE-MANAGER",
					ReferenceType:     "purl",
					ReferenceLocator:  comp.Purl,
				},
			}
		}

		spdx.Packages = append(spdx.Packages, pkg)
	}

	if rootID := rootSpdxID(doc, refToSpdxID); rootID != "" {
		spdx.Relationships = append(spdx.Relationships, model.SPDXRelationship{
			SpdxElementID:      "SPDXRef-DOCUMENT",
			RelationshipType:   "DESCRIBES",
			RelatedSpdxElement: rootID,
		})
	}

	for _, dep := range doc.Dependencies {
		fromID, ok := refToSpdxID[dep.Ref]
		if !ok {
			continue
		}
		for _, target := range dep.DependsOn {
			toID, ok := refToSpdxID[target]
			if !ok {
				toID = "NONE"
			}
			spdx.Relationships = append(spdx.Relationships, model.SPDXRelationship{
				SpdxElementID:      fromID,
				RelationshipType:   "DEPENDS_ON",
				RelatedSpdxElement: toID,
			})
		}
	}

	return spdx
}

// declaredLicense joins a component's license list with AND, mapping
// licenses flagged Public Domain to CC0-1.0 and keeping only
// well-formed SPDX id strings as identifiers.
func declaredLicense(licenses []model.LicenseChoice) string {
	var tokens []string

	add := func(token string) {
		token = strings.TrimSpace(token)
		if token == "" {
			return
		}
		if strings.EqualFold(token, "Public Domain") {
			tokens = append(tokens, "CC0-1.0")
			return
		}
		tokens = append(tokens, token)
	}

	for _, lc := range licenses {
		switch {
		case lc.Expression != "":
			for _, token := range util.SplitLicenseExpression(lc.Expression) {
				add(token)
			}
		case lc.License != nil && lc.License.ID != "":
			add(lc.License.ID)
		case lc.License != nil && lc.License.Name != "":
			if util.IsSpdxIDString(lc.License.Name) || strings.EqualFold(lc.License.Name, "Public Domain") {
				add(lc.License.Name)
			} else {
				// Free-text license name; passed through as-is.
				tokens = append(tokens, lc.License.Name)
			}
		}
	}

	return strings.Join(tokens, " AND ")
}

// rootSpdxID resolves the document's root package. The metadata
// component wins; the first package is the fallback.
func rootSpdxID(doc *model.CycloneDX, refToSpdxID map[string]string) string {
	if doc.Metadata != nil && doc.Metadata.Component != nil {
		root := doc.Metadata.Component
		if id, ok := refToSpdxID[root.BomRef]; ok {
			return id
		}
		if id, ok := refToSpdxID[root.Purl]; ok {
			return id
		}
	}
	if len(doc.Components) > 0 {
		return "SPDXRef-0"
	}
	return ""
}
