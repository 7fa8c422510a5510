package services

import (
	"regexp"
	"sort"

	"go.uber.org/zap"

	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/domain"
	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/logger"
)

var labelSanitizer = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeLabel maps a branch name onto the artifact-safe alphabet. Every
// rune outside [A-Za-z0-9._-] becomes an underscore.
func SanitizeLabel(branch string) string {
	return labelSanitizer.ReplaceAllString(branch, "_")
}

// PartitionRepositories groups repository ids by default branch and splits
// each branch's ids into contiguous groups of ceil(count/workers), so a
// branch never produces more than workers partitions and produces fewer
// when it has fewer repositories. Repositories without a default branch or
// an id are skipped with a warning.
//
// Branches are walked in sorted order: the same repository list always
// yields the same partitions in the same order, and every kept id lands in
// exactly one partition.
func PartitionRepositories(repos []domain.Repository, workers int) []domain.Partition {
	if workers < 1 {
		workers = 1
	}

	byBranch := make(map[string][]string)
	for _, repo := range repos {
		switch {
		case repo.DefaultBranch == "":
			logger.L().Warn("skipping repository without a default branch",
				zap.String("repo", repo.DerivedKey()))
			continue
		case repo.ID == "":
			logger.L().Warn("skipping repository without an id",
				zap.String("repo", repo.DerivedKey()))
			continue
		}
		byBranch[repo.DefaultBranch] = append(byBranch[repo.DefaultBranch], repo.ID)
	}

	branches := make([]string, 0, len(byBranch))
	for branch := range byBranch {
		branches = append(branches, branch)
	}
	sort.Strings(branches)

	var parts []domain.Partition
	for _, branch := range branches {
		ids := byBranch[branch]
		size := (len(ids) + workers - 1) / workers
		label := SanitizeLabel(branch)
		for start, idx := 0, 0; start < len(ids); start, idx = start+size, idx+1 {
			end := start + size
			if end > len(ids) {
				end = len(ids)
			}
			parts = append(parts, domain.Partition{
				Branch:  branch,
				Label:   label,
				Index:   idx,
				RepoIDs: ids[start:end],
			})
		}
	}
	return parts
}
