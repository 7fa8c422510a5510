package prismacloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/domain"
	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/logger"
)

// policyItem mirrors one entry of the per-resource policies payload.
type policyItem struct {
	Severity    string `json:"severity"`
	Title       string `json:"title"`
	ViolationID string `json:"violationId"`
	PolicyID    string `json:"policyId"`

	RiskFactors []string `json:"riskFactors"`
	CVSS        float64  `json:"cvss"`

	CausePackageName string `json:"causePackageName"`
	CausePackageID   string `json:"causePackageId"`
	FirstDetected    string `json:"firstDetected"`

	ContainerImageName string `json:"containerImageName"`
	MetadataInfo       string `json:"metaDataInfo"`

	SecretsValidationStatus string `json:"secretsValidationStatus"`
	SecretValidationCode    string `json:"secretValidationCode"`
	SecretCreateDate        string `json:"secretCreateDate"`

	License string `json:"license"`
}

// toDomain stamps the violation fields with the work unit's composite key
// so the join can match it back without re-deriving anything.
func (it policyItem) toDomain(unit domain.WorkUnit) domain.Finding {
	return domain.Finding{
		ResourceUUID: unit.ResourceUUID,
		RepoID:       unit.RepoID,
		ScanBranch:   unit.ScanBranch,
		CodeCategory: unit.CodeCategory,

		Severity:    it.Severity,
		Issue:       it.Title,
		ViolationID: it.ViolationID,
		PolicyID:    it.PolicyID,

		RiskFactors: it.RiskFactors,
		CVSS:        it.CVSS,

		CausePackageName: it.CausePackageName,
		CausePackageID:   it.CausePackageID,
		FirstDetected:    it.FirstDetected,

		ContainerImageName: it.ContainerImageName,
		MetadataInfo:       it.MetadataInfo,

		SecretsValidationStatus: it.SecretsValidationStatus,
		SecretValidationCode:    it.SecretValidationCode,
		SecretCreateDate:        it.SecretCreateDate,

		License: it.License,
	}
}

// EachPolicyPage drains the policy detail sequence for one work unit. The
// endpoint is GET with a JSON body, a quirk of the platform contract, and
// takes the same filter shape as the resources endpoint narrowed to the
// unit's repository, branch, and category.
func (c *Client) EachPolicyPage(ctx context.Context, unit domain.WorkUnit, fn func([]domain.Finding) error) error {
	path := resourcesPath + "/" + url.PathEscape(unit.ResourceUUID) + "/policies"
	filters := branchScanFilters{
		Repositories:   []string{unit.RepoID},
		Branch:         unit.ScanBranch,
		CheckStatus:    checkStatusError,
		CodeCategories: []string{unit.CodeCategory},
	}
	fetch := func(ctx context.Context, offset, limit int) (*Page, error) {
		return c.fetchPage(ctx, http.MethodGet, path, newPagedRequest(filters, offset, limit))
	}
	return drainPages(ctx, c.pageSize, fetch, func(page Page) error {
		findings := make([]domain.Finding, 0, len(page.Items))
		for _, item := range page.Items {
			var it policyItem
			if err := json.Unmarshal(item, &it); err != nil {
				logger.L().Warn("skipping undecodable policy item",
					zap.String("resource_uuid", unit.ResourceUUID),
					zap.Int("offset", page.Offset),
					zap.Error(err))
				continue
			}
			findings = append(findings, it.toDomain(unit))
		}
		return fn(findings)
	})
}
