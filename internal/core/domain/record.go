package domain

// JoinedRecord is one exportable row: a finding merged with its work unit's
// descriptive fields and the owning repository's metadata. The invariant is
// that the repository fields always belong to the repository whose derived
// key equals the resource's repository field.
type JoinedRecord struct {
	// Resource context (work-unit descriptive fields).
	SourceType      string
	Repository      string
	CodeCategory    string
	FrameworkType   string
	ScanBranch      string
	FilePath        string
	ResourceName    string
	ResourceID      string
	IacResourceName string

	// Repository metadata. RepoID, DefaultBranch and Runs are attached for
	// downstream consumers even though the CSV column set omits them.
	RepoID           string
	DefaultBranch    string
	Runs             int
	IsPublic         bool
	RepoCreationDate string
	RepoLastScanDate string
	RepoDescription  string
	RepoURL          string

	// Violation detail.
	Severity                string
	Issue                   string
	ViolationID             string
	RiskFactors             []string
	CVSS                    float64
	CausePackageName        string
	CausePackageID          string
	FirstDetected           string
	ContainerImageName      string
	MetadataInfo            string
	SecretsValidationStatus string
	SecretValidationCode    string
	SecretCreateDate        string
	License                 string
}

// NewJoinedRecord merges a work unit, its repository metadata and one
// finding into an exportable record.
func NewJoinedRecord(unit WorkUnit, repo Repository, finding Finding) JoinedRecord {
	return JoinedRecord{
		SourceType:      unit.SourceType,
		Repository:      unit.Repository,
		CodeCategory:    unit.CodeCategory,
		FrameworkType:   unit.FrameworkType,
		ScanBranch:      unit.ScanBranch,
		FilePath:        unit.FilePath,
		ResourceName:    unit.ResourceName,
		ResourceID:      unit.ResourceID,
		IacResourceName: unit.IacResourceName,

		RepoID:           repo.ID,
		DefaultBranch:    repo.DefaultBranch,
		Runs:             repo.Runs,
		IsPublic:         repo.IsPublic,
		RepoCreationDate: repo.CreationDate,
		RepoLastScanDate: repo.LastScanDate,
		RepoDescription:  repo.Description,
		RepoURL:          repo.URL,

		Severity:                finding.Severity,
		Issue:                   finding.Issue,
		ViolationID:             finding.ViolationID,
		RiskFactors:             finding.RiskFactors,
		CVSS:                    finding.CVSS,
		CausePackageName:        finding.CausePackageName,
		CausePackageID:          finding.CausePackageID,
		FirstDetected:           finding.FirstDetected,
		ContainerImageName:      finding.ContainerImageName,
		MetadataInfo:            finding.MetadataInfo,
		SecretsValidationStatus: finding.SecretsValidationStatus,
		SecretValidationCode:    finding.SecretValidationCode,
		SecretCreateDate:        finding.SecretCreateDate,
		License:                 finding.License,
	}
}
