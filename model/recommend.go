package model

// Requirement records one semver range collected for a dependency,
// together with the package that declared it.
type Requirement struct {
	RequiredBy        string `json:"required_by"`
	RequiredByVersion string `json:"required_by_version"`
	Range             string `json:"range"`
}

// ConflictDetail describes one conflicting dependency name: the
// versions observed in the project and every range collected for it.
type ConflictDetail struct {
	Name         string        `json:"name"`
	Versions     []string      `json:"versions"`
	Requirements []Requirement `json:"requirements"`
	Resolved     bool          `json:"resolved"`
	Recommended  string        `json:"recommended,omitempty"`
}

// FootprintStats counts the transitive dependencies of a package that
// are unique to it (separate) versus shared with the rest of the
// project.
type FootprintStats struct {
	SeparateCount int `json:"separate_count"`
	SharedCount   int `json:"shared_count"`
}

// Recommendation is one version recommendation produced by the
// upgrade optimizer. BeforeStats/AfterStats are nil when the footprint
// computation failed rather than carrying stale values.
type Recommendation struct {
	Name        string          `json:"name"`
	OldVersion  string          `json:"old_version"`
	NewVersion  string          `json:"new_version"`
	IsDowngrade bool            `json:"is_downgrade"`
	Resolved    bool            `json:"resolved"`
	Impact      string          `json:"impact"`
	BeforeStats *FootprintStats `json:"before_stats,omitempty"`
	AfterStats  *FootprintStats `json:"after_stats,omitempty"`
}

// LowSimilarityPackage is an anchor candidate: a project package whose
// dependency footprint barely overlaps the rest of the project.
type LowSimilarityPackage struct {
	Name            string   `json:"name"`
	Purl            string   `json:"purl,omitempty"`
	Version         string   `json:"version,omitempty"`
	DependencyCount int      `json:"dependency_count"`
	Shared          int      `json:"shared"`
	Ratio           float64  `json:"ratio"`
	Dependents      []string `json:"dependents,omitempty"`
}

// FlatteningAnalysis summarizes how much a project's dependency set
// could be consolidated.
type FlatteningAnalysis struct {
	Score                 int                    `json:"score"`
	ConflictCount         int                    `json:"conflict_count"`
	RecommendationCount   int                    `json:"recommendation_count"`
	UnresolvableConflicts int                    `json:"unresolvable_conflicts"`
	LowSimilarityPackages []LowSimilarityPackage `json:"low_similarity_packages"`
	ProjectBefore         *FootprintStats        `json:"project_before,omitempty"`
	ProjectAfter          *FootprintStats        `json:"project_after,omitempty"`
}

// UpgradeReport is the optimizer output for one project.
type UpgradeReport struct {
	Score                 int                    `json:"score"`
	Recommendations       []Recommendation       `json:"recommendations"`
	Conflicts             []ConflictDetail       `json:"conflicts"`
	LowSimilarityPackages []LowSimilarityPackage `json:"low_similarity_packages"`
	ProjectBefore         *FootprintStats        `json:"project_before,omitempty"`
	ProjectAfter          *FootprintStats        `json:"project_after,omitempty"`
}
