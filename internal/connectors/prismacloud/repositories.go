package prismacloud

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/domain"
)

const repositoriesPath = "/repositories"

// repositoryItem mirrors one entry of the GET /repositories payload.
type repositoryItem struct {
	ID            string `json:"id"`
	Repository    string `json:"repository"`
	Owner         string `json:"owner"`
	DefaultBranch string `json:"defaultBranch"`
	IsPublic      bool   `json:"isPublic"`
	Runs          int    `json:"runs"`
	Source        string `json:"source"`
	CreationDate  string `json:"creationDate"`
	LastScanDate  string `json:"lastScanDate"`
	Description   string `json:"description"`
	URL           string `json:"url"`
}

func (it repositoryItem) toDomain() domain.Repository {
	return domain.Repository{
		ID:            it.ID,
		Name:          it.Repository,
		Owner:         it.Owner,
		DefaultBranch: it.DefaultBranch,
		IsPublic:      it.IsPublic,
		Runs:          it.Runs,
		Source:        it.Source,
		CreationDate:  it.CreationDate,
		LastScanDate:  it.LastScanDate,
		Description:   it.Description,
		URL:           it.URL,
	}
}

// ListRepositories fetches every repository the credential can see. The
// endpoint is not paginated; the platform returns the full set.
func (c *Client) ListRepositories(ctx context.Context) ([]domain.Repository, error) {
	raw, err := c.do(ctx, http.MethodGet, repositoriesPath, nil)
	if err != nil {
		return nil, err
	}
	var items []repositoryItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, c.apiFailure(repositoriesPath, http.StatusOK, "undecodable repository list", raw)
	}
	repos := make([]domain.Repository, 0, len(items))
	for _, it := range items {
		repos = append(repos, it.toDomain())
	}
	return repos, nil
}
