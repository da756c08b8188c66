package model

// ProjectDependency is one entry of a project's resolved dependency
// set, owned by the relational store and read-only here.
type ProjectDependency struct {
	PackageID string `json:"package_id"`
	Name      string `json:"name"`
	Version   string `json:"version"`
}

// PackageRecord is the relational store's canonical package row.
type PackageRecord struct {
	PackageID   string `json:"package_id"`
	PackageName string `json:"package_name"`
}

// PackageMetadata is what the registry reports for a package at a
// specific version: its declared requirement ranges and the full list
// of published versions.
type PackageMetadata struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Dependencies         map[string]string `json:"dependencies,omitempty"`
	PeerDependencies     map[string]string `json:"peerDependencies,omitempty"`
	OptionalDependencies map[string]string `json:"optionalDependencies,omitempty"`
	Versions             []string          `json:"versions,omitempty"`
	License              string            `json:"license,omitempty"`
	RepoURL              string            `json:"repo_url,omitempty"`
	Homepage             string            `json:"homepage,omitempty"`
}

// AllRequirements merges dependencies, peerDependencies and
// optionalDependencies into one name -> range map.
func (m PackageMetadata) AllRequirements() map[string]string {
	merged := make(map[string]string, len(m.Dependencies)+len(m.PeerDependencies)+len(m.OptionalDependencies))
	for name, rng := range m.Dependencies {
		merged[name] = rng
	}
	for name, rng := range m.PeerDependencies {
		merged[name] = rng
	}
	for name, rng := range m.OptionalDependencies {
		merged[name] = rng
	}
	return merged
}

// DependencySetupRequest asks the task system to process a dependency
// that was seen for the first time.
type DependencySetupRequest struct {
	PackageID   string `json:"package_id,omitempty"`
	PackageName string `json:"package_name"`
	RepoURL     string `json:"repo_url,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
}
