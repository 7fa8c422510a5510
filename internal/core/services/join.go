package services

import (
	"go.uber.org/zap"

	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/domain"
	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/logger"
)

// BuildRepoIndex maps each repository's derived key owner/name to its
// metadata. Exactly one repository is expected per key; when two share one,
// the first wins and the conflict is logged so the tenant can be cleaned
// up.
func BuildRepoIndex(repos []domain.Repository) map[string]domain.Repository {
	index := make(map[string]domain.Repository, len(repos))
	for _, repo := range repos {
		key := repo.DerivedKey()
		if kept, ok := index[key]; ok {
			logger.L().Warn("duplicate repository derived key, keeping the first",
				zap.String("key", key),
				zap.String("kept_id", kept.ID),
				zap.String("ignored_id", repo.ID))
			continue
		}
		index[key] = repo
	}
	return index
}

// BuildDetailIndex flattens finding groups into a lookup by the
// (resourceUuid, codeCategory) join key, preserving arrival order within
// each key.
func BuildDetailIndex(groups []domain.FindingGroup) map[domain.DetailKey][]domain.Finding {
	index := make(map[domain.DetailKey][]domain.Finding)
	for _, group := range groups {
		for _, f := range group.Findings {
			key := f.DetailKey()
			index[key] = append(index[key], f)
		}
	}
	return index
}

// Join produces the exportable records. Two joins run per unit: the unit's
// repository field is matched against the derived-key index, attaching
// repository metadata, then the unit fans out to one record per detail
// finding under its (resourceUuid, codeCategory) key. Units with no
// matching repository are skipped with a warning; units with no detail
// findings drop out silently (inner join).
func Join(units []domain.WorkUnit, repos map[string]domain.Repository, details map[domain.DetailKey][]domain.Finding) []domain.JoinedRecord {
	records := make([]domain.JoinedRecord, 0, len(units))
	for _, unit := range units {
		repo, ok := repos[unit.Repository]
		if !ok {
			logger.L().Warn("no repository metadata for work unit, skipping",
				zap.String("repository", unit.Repository),
				zap.String("resource_uuid", unit.ResourceUUID))
			continue
		}
		key := domain.DetailKey{ResourceUUID: unit.ResourceUUID, CodeCategory: unit.CodeCategory}
		for _, finding := range details[key] {
			records = append(records, domain.NewJoinedRecord(unit, repo, finding))
		}
	}
	return records
}
