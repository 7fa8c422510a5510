package services

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/domain"
	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/logger"
)

// Merge concatenates per-partition resource collections into one, in the
// order the partitions completed. Overlap between partitions is possible
// when the platform reports a resource under more than one repository id;
// Deduplicate collapses it.
func Merge(batches [][]domain.Resource) []domain.Resource {
	total := 0
	for _, b := range batches {
		total += len(b)
	}
	merged := make([]domain.Resource, 0, total)
	for _, b := range batches {
		merged = append(merged, b...)
	}
	return merged
}

// Deduplicate collapses resources to unique work units by exact structural
// equality over the composite key. The first occurrence wins and first-seen
// order is preserved, so the detail stage schedules each (resource,
// category) pair exactly once.
func Deduplicate(resources []domain.Resource) []domain.WorkUnit {
	seen := make(map[domain.WorkUnitKey]struct{}, len(resources))
	units := make([]domain.WorkUnit, 0, len(resources))
	for _, res := range resources {
		key := res.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		units = append(units, domain.WorkUnit{Resource: res})
	}
	return units
}

// groupCollector accumulates per-unit findings into numbered groups of at
// most size processed units each, bounding any single intermediate
// collection. Safe for concurrent add; sequence numbers follow seal order.
type groupCollector struct {
	mu      sync.Mutex
	size    int
	seq     int
	units   int
	pending []domain.Finding
	sealedG []domain.FindingGroup
}

func newGroupCollector(size int) *groupCollector {
	if size < 1 {
		size = 1
	}
	return &groupCollector{size: size, seq: 1}
}

// add records one processed unit's findings. When the unit count reaches
// the group size, the group is sealed and returned for persistence.
func (c *groupCollector) add(findings []domain.Finding) *domain.FindingGroup {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.units++
	c.pending = append(c.pending, findings...)
	if c.units < c.size {
		return nil
	}
	return c.sealLocked()
}

// flush seals the trailing partial group, if any units are pending.
func (c *groupCollector) flush() *domain.FindingGroup {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.units == 0 {
		return nil
	}
	return c.sealLocked()
}

func (c *groupCollector) sealLocked() *domain.FindingGroup {
	group := domain.FindingGroup{Seq: c.seq, Units: c.units, Findings: c.pending}
	c.sealedG = append(c.sealedG, group)
	c.seq++
	c.units = 0
	c.pending = nil
	return &group
}

// groups returns the sealed groups in sequence order.
func (c *groupCollector) groups() []domain.FindingGroup {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sealedG
}

// DecodeArtifacts rebuilds a merged resource collection from persisted
// stage artifacts. An artifact whose payload fails to decode is excluded
// from the merge and logged; everything that parsed is kept. Returns the
// merged resources and the number of excluded artifacts.
func DecodeArtifacts(artifacts []domain.Artifact) ([]domain.Resource, int) {
	var merged []domain.Resource
	excluded := 0
	for _, art := range artifacts {
		var batch []domain.Resource
		if err := json.Unmarshal(art.Payload, &batch); err != nil {
			excluded++
			logger.L().Warn("excluding malformed artifact from merge",
				zap.String("run_id", art.RunID),
				zap.String("label", art.Label),
				zap.Int("seq", art.Seq),
				zap.NamedError("reason", domain.ErrMalformedArtifact),
				zap.Error(err))
			continue
		}
		merged = append(merged, batch...)
	}
	return merged, excluded
}
