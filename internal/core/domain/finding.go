package domain

// Finding is one policy violation returned by the per-resource detail
// endpoint. Findings carry the same composite key as the work unit that
// produced them plus the violation fields destined for the export. Optional
// fields stay empty when the category does not populate them (secret fields
// on an IaC finding and so on).
type Finding struct {
	ResourceUUID string
	RepoID       string
	ScanBranch   string
	CodeCategory string

	Severity    string
	Issue       string
	ViolationID string
	PolicyID    string

	RiskFactors []string
	CVSS        float64

	CausePackageName string
	CausePackageID   string
	FirstDetected    string

	ContainerImageName string
	MetadataInfo       string

	SecretsValidationStatus string
	SecretValidationCode    string
	SecretCreateDate        string

	License string
}

// DetailKey identifies the detail dataset a finding belongs to. The second
// join matches on this pair.
type DetailKey struct {
	ResourceUUID string
	CodeCategory string
}

// DetailKey returns the (resource, category) join key for this finding.
func (f Finding) DetailKey() DetailKey {
	return DetailKey{ResourceUUID: f.ResourceUUID, CodeCategory: f.CodeCategory}
}

// FindingGroup is a numbered batch of findings covering up to a fixed number
// of processed work units. Groups bound the size of any single intermediate
// collection between the detail stage and the join.
type FindingGroup struct {
	// Seq is the 1-based group number in processing order.
	Seq int

	// Units is the number of work units contributing to this group.
	Units int

	Findings []Finding
}
