package domain

// Repository is one repository known to the code-security platform,
// as returned by the repositories endpoint. Identity is the platform id;
// the owner/name pair forms the derived key used for metadata lookup
// during the join stage.
type Repository struct {
	// ID is the platform-assigned repository identifier.
	ID string

	// Name is the repository name without the owner prefix.
	Name string

	// Owner is the organisation or user owning the repository.
	Owner string

	// DefaultBranch is the branch scans run against.
	DefaultBranch string

	// IsPublic reports the repository visibility.
	IsPublic bool

	// Runs is the number of scans recorded for this repository.
	Runs int

	// Source identifies the VCS integration (e.g. "Github", "Gitlab").
	Source string

	// CreationDate and LastScanDate are kept as the platform's own
	// timestamp strings; they are echoed into the export, never parsed.
	CreationDate string
	LastScanDate string

	// Description is the repository description, possibly empty.
	Description string

	// URL links to the repository on its VCS host.
	URL string
}

// DerivedKey returns the owner/name key resources reference in their
// repository field. Join lookups match on this value exactly.
func (r Repository) DerivedKey() string {
	return r.Owner + "/" + r.Name
}
