package prismacloud

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/domain"
	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/logger"
)

const (
	resourcesPath = "/errors/branch_scan/resources"

	// checkStatusError restricts both paged endpoints to failing checks.
	checkStatusError = "Error"
)

// branchScanFilters is the filter block shared by the resources and
// policies endpoints.
type branchScanFilters struct {
	Repositories   []string `json:"repositories"`
	Branch         string   `json:"branch"`
	CheckStatus    string   `json:"checkStatus"`
	CodeCategories []string `json:"codeCategories"`
}

// pagedRequest is the request body shared by both paged endpoints.
type pagedRequest struct {
	Filters branchScanFilters `json:"filters"`
	Offset  int               `json:"offset"`
	Limit   int               `json:"limit"`
	Search  string            `json:"search"`
	SortBy  []string          `json:"sortBy"`
}

func newPagedRequest(filters branchScanFilters, offset, limit int) pagedRequest {
	return pagedRequest{
		Filters: filters,
		Offset:  offset,
		Limit:   limit,
		SortBy:  []string{},
	}
}

// resourceItem mirrors one entry of the branch-scan resources payload.
type resourceItem struct {
	ResourceUUID    string `json:"resourceUuid"`
	RepoID          string `json:"repoId"`
	Repository      string `json:"repository"`
	ScanBranch      string `json:"scanBranch"`
	CodeCategory    string `json:"codeCategory"`
	Counter         int    `json:"counter"`
	SourceType      string `json:"sourceType"`
	FrameworkType   string `json:"frameworkType"`
	FilePath        string `json:"filePath"`
	ResourceName    string `json:"resourceName"`
	ResourceID      string `json:"resourceId"`
	IacResourceName string `json:"iacResourceName"`
}

// toDomain maps the wire item, filling the scanned branch from the query
// when the platform omits it on the item itself.
func (it resourceItem) toDomain(branch string) domain.Resource {
	scanBranch := it.ScanBranch
	if scanBranch == "" {
		scanBranch = branch
	}
	return domain.Resource{
		ResourceUUID:    it.ResourceUUID,
		RepoID:          it.RepoID,
		Repository:      it.Repository,
		ScanBranch:      scanBranch,
		CodeCategory:    it.CodeCategory,
		Counter:         it.Counter,
		SourceType:      it.SourceType,
		FrameworkType:   it.FrameworkType,
		FilePath:        it.FilePath,
		ResourceName:    it.ResourceName,
		ResourceID:      it.ResourceID,
		IacResourceName: it.IacResourceName,
	}
}

// EachResourcePage drains the branch-scan resources sequence for one
// partition, handing each decoded page to fn in arrival order.
func (c *Client) EachResourcePage(ctx context.Context, query domain.ResourceQuery, fn func([]domain.Resource) error) error {
	filters := branchScanFilters{
		Repositories:   query.RepoIDs,
		Branch:         query.Branch,
		CheckStatus:    checkStatusError,
		CodeCategories: query.Categories,
	}
	fetch := func(ctx context.Context, offset, limit int) (*Page, error) {
		return c.fetchPage(ctx, http.MethodPost, resourcesPath, newPagedRequest(filters, offset, limit))
	}
	return drainPages(ctx, c.pageSize, fetch, func(page Page) error {
		resources := make([]domain.Resource, 0, len(page.Items))
		for _, item := range page.Items {
			var it resourceItem
			if err := json.Unmarshal(item, &it); err != nil {
				logger.L().Warn("skipping undecodable resource item",
					zap.String("branch", query.Branch),
					zap.Int("offset", page.Offset),
					zap.Error(err))
				continue
			}
			resources = append(resources, it.toDomain(query.Branch))
		}
		return fn(resources)
	})
}
