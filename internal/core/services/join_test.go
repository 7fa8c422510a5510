package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/domain"
)

func TestBuildRepoIndex(t *testing.T) {
	t.Run("indexes by derived key", func(t *testing.T) {
		repos := []domain.Repository{
			{ID: "r-1", Owner: "acme", Name: "alpha"},
			{ID: "r-2", Owner: "acme", Name: "beta"},
		}

		index := BuildRepoIndex(repos)

		require.Len(t, index, 2)
		assert.Equal(t, "r-1", index["acme/alpha"].ID)
		assert.Equal(t, "r-2", index["acme/beta"].ID)
	})

	t.Run("first repository wins a duplicate derived key", func(t *testing.T) {
		repos := []domain.Repository{
			{ID: "r-1", Owner: "acme", Name: "alpha", Description: "kept"},
			{ID: "r-9", Owner: "acme", Name: "alpha", Description: "ignored"},
		}

		index := BuildRepoIndex(repos)

		require.Len(t, index, 1)
		assert.Equal(t, "r-1", index["acme/alpha"].ID)
		assert.Equal(t, "kept", index["acme/alpha"].Description)
	})
}

func TestBuildDetailIndex(t *testing.T) {
	t.Run("groups findings by resource and category", func(t *testing.T) {
		groups := []domain.FindingGroup{
			{Seq: 1, Findings: []domain.Finding{
				{ResourceUUID: "u-1", CodeCategory: domain.CategorySecrets, Severity: "HIGH"},
				{ResourceUUID: "u-2", CodeCategory: domain.CategoryVulnerabilities, Severity: "LOW"},
			}},
			{Seq: 2, Findings: []domain.Finding{
				{ResourceUUID: "u-1", CodeCategory: domain.CategorySecrets, Severity: "MEDIUM"},
			}},
		}

		index := BuildDetailIndex(groups)

		require.Len(t, index, 2)
		secrets := index[domain.DetailKey{ResourceUUID: "u-1", CodeCategory: domain.CategorySecrets}]
		require.Len(t, secrets, 2)
		assert.Equal(t, "HIGH", secrets[0].Severity)
		assert.Equal(t, "MEDIUM", secrets[1].Severity)
	})
}

func TestJoin(t *testing.T) {
	repo := domain.Repository{
		ID:            "r-1",
		Owner:         "acme",
		Name:          "alpha",
		DefaultBranch: "main",
		IsPublic:      true,
		Runs:          4,
		CreationDate:  "2024-01-01T00:00:00Z",
		LastScanDate:  "2024-06-01T00:00:00Z",
		Description:   "demo",
		URL:           "https://github.com/acme/alpha",
	}
	unit := domain.WorkUnit{Resource: domain.Resource{
		ResourceUUID: "u-1",
		RepoID:       "r-1",
		ScanBranch:   "main",
		CodeCategory: domain.CategorySecrets,
		Repository:   "acme/alpha",
		SourceType:   "Github",
		FilePath:     "config/db.tf",
	}}
	key := domain.DetailKey{ResourceUUID: "u-1", CodeCategory: domain.CategorySecrets}

	t.Run("fans out one record per matching detail finding", func(t *testing.T) {
		repos := map[string]domain.Repository{"acme/alpha": repo}
		details := map[domain.DetailKey][]domain.Finding{
			key: {
				{ResourceUUID: "u-1", CodeCategory: domain.CategorySecrets, Severity: "HIGH", Issue: "AWS key"},
				{ResourceUUID: "u-1", CodeCategory: domain.CategorySecrets, Severity: "LOW", Issue: "Weak hash"},
			},
		}

		records := Join([]domain.WorkUnit{unit}, repos, details)

		require.Len(t, records, 2)
		assert.Equal(t, "HIGH", records[0].Severity)
		assert.Equal(t, "LOW", records[1].Severity)
		for _, rec := range records {
			assert.Equal(t, "acme/alpha", rec.Repository)
			assert.Equal(t, "r-1", rec.RepoID, "metadata belongs to the derived-key match")
			assert.True(t, rec.IsPublic)
			assert.Equal(t, "2024-01-01T00:00:00Z", rec.RepoCreationDate)
			assert.Equal(t, "config/db.tf", rec.FilePath)
		}
	})

	t.Run("drops units with no detail findings", func(t *testing.T) {
		repos := map[string]domain.Repository{"acme/alpha": repo}

		records := Join([]domain.WorkUnit{unit}, repos, map[domain.DetailKey][]domain.Finding{})

		assert.Empty(t, records)
	})

	t.Run("skips units with no repository metadata", func(t *testing.T) {
		details := map[domain.DetailKey][]domain.Finding{
			key: {{ResourceUUID: "u-1", CodeCategory: domain.CategorySecrets}},
		}

		records := Join([]domain.WorkUnit{unit}, map[string]domain.Repository{}, details)

		assert.Empty(t, records)
	})

	t.Run("matches details on both resource and category", func(t *testing.T) {
		repos := map[string]domain.Repository{"acme/alpha": repo}
		details := map[domain.DetailKey][]domain.Finding{
			{ResourceUUID: "u-1", CodeCategory: domain.CategoryVulnerabilities}: {
				{ResourceUUID: "u-1", CodeCategory: domain.CategoryVulnerabilities},
			},
		}

		records := Join([]domain.WorkUnit{unit}, repos, details)

		assert.Empty(t, records, "category mismatch means no join")
	})
}
