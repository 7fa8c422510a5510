package domain

// WorkUnitKey is the composite identity of one (resource, category) pair.
// Two resources with equal keys describe the same detail fetch; equality is
// exact structural equality over the full tuple.
type WorkUnitKey struct {
	ResourceUUID string
	RepoID       string
	ScanBranch   string
	CodeCategory string
	Counter      int
}

// Resource is the reduced projection of one branch-scan error item: the
// work-unit key fields plus the descriptive fields carried through to the
// export. The fetch stage produces resources in page order; collections are
// read-only once handed to the aggregator.
type Resource struct {
	ResourceUUID string
	RepoID       string
	ScanBranch   string
	CodeCategory string
	Counter      int

	// Repository is the owner/name key linking back to repository metadata.
	Repository string

	SourceType      string
	FrameworkType   string
	FilePath        string
	ResourceName    string
	ResourceID      string
	IacResourceName string
}

// Key returns the composite work-unit key for this resource.
func (r Resource) Key() WorkUnitKey {
	return WorkUnitKey{
		ResourceUUID: r.ResourceUUID,
		RepoID:       r.RepoID,
		ScanBranch:   r.ScanBranch,
		CodeCategory: r.CodeCategory,
		Counter:      r.Counter,
	}
}

// WorkUnit is a deduplicated resource: exactly one per distinct WorkUnitKey
// survives aggregation. It carries the first-seen resource's descriptive
// fields for the join stage.
type WorkUnit struct {
	Resource
}

// MissingField returns the name of the first empty required identifier, or
// an empty string when the unit is fetchable. Units with missing fields are
// skipped rather than fetched.
func (u WorkUnit) MissingField() string {
	switch {
	case u.ResourceUUID == "":
		return "resourceUuid"
	case u.RepoID == "":
		return "repoId"
	case u.ScanBranch == "":
		return "scanBranch"
	case u.CodeCategory == "":
		return "codeCategory"
	}
	return ""
}

// ResourceQuery describes one partition-level fetch against the branch-scan
// resources endpoint.
type ResourceQuery struct {
	// RepoIDs is the partition's repository id slice.
	RepoIDs []string

	// Branch scopes the query to one scanned branch.
	Branch string

	// Categories restricts results to the configured code categories.
	Categories []string
}
