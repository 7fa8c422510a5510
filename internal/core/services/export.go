package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/domain"
	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/ports/driven"
	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/ports/driving"
	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/logger"
)

// Ensure ExportService implements the interface.
var _ driving.ExportOrchestrator = (*ExportService)(nil)

// ExportService coordinates the pipeline: partition the repository set,
// drain the branch-scan resource pages per partition, deduplicate into work
// units, drain the detail pages per unit, join against repository metadata,
// and hand the joined records to the export writer. Both fetch stages share
// one concurrency limiter and one credential.
type ExportService struct {
	api    driven.ScanAPI
	store  driven.RunStore
	writer driven.RecordWriter
	cfg    domain.Config

	limiter *Limiter
}

// NewExportService creates the orchestrator. The limiter bound comes from
// cfg.MaxInFlight and applies across both fetch stages.
func NewExportService(api driven.ScanAPI, store driven.RunStore, writer driven.RecordWriter, cfg domain.Config) *ExportService {
	return &ExportService{
		api:     api,
		store:   store,
		writer:  writer,
		cfg:     cfg,
		limiter: NewLimiter(cfg.MaxInFlight),
	}
}

// Run executes the full pipeline under a run record. Fatal failures (auth,
// export sink) fail the run; pagination sequences aborted by the platform
// degrade the output and show up in the report's error counter instead.
func (s *ExportService) Run(ctx context.Context, opts driving.ExportOptions) (*driving.ExportReport, error) {
	run := domain.Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Status:    domain.RunStatusRunning,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	logger.L().Info("export run starting", zap.String("run_id", run.ID))

	report, err := s.execute(ctx, run.ID, opts)

	run.FinishedAt = time.Now()
	if err != nil {
		run.Status = domain.RunStatusFailed
	} else {
		run.Status = domain.RunStatusSucceeded
	}
	if report != nil {
		run.Resources = report.Resources
		run.WorkUnits = report.WorkUnits
		run.Findings = report.Findings
		run.Records = report.Records
		run.Errors = report.Errors
	}
	if finishErr := s.store.FinishRun(ctx, run); finishErr != nil {
		logger.L().Warn("could not finalise run record",
			zap.String("run_id", run.ID), zap.Error(finishErr))
	}

	if err != nil {
		logger.L().Error("export run failed", zap.String("run_id", run.ID), zap.Error(err))
		return nil, err
	}
	logger.L().Info("export run complete",
		zap.String("run_id", run.ID),
		zap.String("output", report.OutputPath),
		zap.Int("records", report.Records),
		zap.Int("errors", report.Errors))
	return report, nil
}

func (s *ExportService) execute(ctx context.Context, runID string, opts driving.ExportOptions) (*driving.ExportReport, error) {
	report := &driving.ExportReport{RunID: runID}

	// 1. Initial login. Without a credential nothing can proceed.
	if err := s.api.RefreshToken(ctx); err != nil {
		return report, fmt.Errorf("initial login: %w", err)
	}

	// 2. Repository metadata, needed for partitioning and the join.
	repos, err := s.api.ListRepositories(ctx)
	if err != nil {
		return report, fmt.Errorf("list repositories: %w", err)
	}
	if len(repos) == 0 {
		return report, domain.ErrNoRepositories
	}
	report.Repositories = len(repos)

	// 3. The resource collection: fetched fresh, or rebuilt from a prior
	// run's partition artifacts when resuming.
	var resources []domain.Resource
	if opts.ResumeRunID != "" {
		resources, err = s.resumeResources(ctx, opts.ResumeRunID, report)
	} else {
		resources, err = s.fetchResources(ctx, runID, repos, report)
	}
	if err != nil {
		return report, err
	}
	report.Resources = len(resources)

	// 4. Collapse to unique work units.
	units := Deduplicate(resources)
	report.WorkUnits = len(units)
	logger.L().Info("aggregation complete",
		zap.Int("resources", len(resources)),
		zap.Int("work_units", len(units)))

	// 5. Per-unit detail fetch.
	groups, err := s.fetchDetails(ctx, runID, units, report)
	if err != nil {
		return report, err
	}

	// 6. Join work units with repository metadata and detail findings.
	records := Join(units, BuildRepoIndex(repos), BuildDetailIndex(groups))
	report.Records = len(records)

	// 7. Export.
	path, err := s.writer.Write(ctx, records)
	if err != nil {
		return report, fmt.Errorf("write export: %w", err)
	}
	report.OutputPath = path

	return report, nil
}

// fetchResources drains every partition's pagination sequence under the
// concurrency bound and merges the results in completion order. A sequence
// aborted by the platform only loses its own remaining pages; an auth
// failure stops new submissions and fails the stage once in-flight tasks
// have drained.
func (s *ExportService) fetchResources(ctx context.Context, runID string, repos []domain.Repository, report *driving.ExportReport) ([]domain.Resource, error) {
	parts := PartitionRepositories(repos, s.cfg.Workers)
	report.Partitions = len(parts)
	if len(parts) == 0 {
		logger.L().Warn("no usable partitions, nothing to fetch")
		return nil, nil
	}
	logger.L().Info("resource fetch starting",
		zap.Int("partitions", len(parts)),
		zap.Int("max_in_flight", s.limiter.Cap()))

	var (
		wg        sync.WaitGroup
		fatal     fatalGate
		apiErrors atomic.Int64

		mu      sync.Mutex
		batches [][]domain.Resource
	)

	for i, part := range parts {
		if fatal.Err() != nil {
			break
		}
		if err := s.limiter.Acquire(ctx); err != nil {
			fatal.Set(err)
			break
		}
		wg.Add(1)
		go func(seq int, part domain.Partition) {
			defer wg.Done()
			defer s.limiter.Release()

			batch, err := s.fetchPartition(ctx, part)
			if err != nil {
				if isFatal(err) {
					fatal.Set(err)
					return
				}
				apiErrors.Add(1)
				logger.L().Error("partition fetch aborted",
					zap.String("partition", part.ArtifactLabel()),
					zap.Error(err))
			}
			if len(batch) == 0 {
				return
			}
			s.saveArtifact(ctx, runID, domain.StageResources, part.ArtifactLabel(), seq, batch)
			mu.Lock()
			batches = append(batches, batch)
			mu.Unlock()
		}(i, part)
	}
	wg.Wait()

	report.Errors += int(apiErrors.Load())
	if err := fatal.Err(); err != nil {
		return nil, err
	}
	return Merge(batches), nil
}

// fetchPartition drains one partition's resource sequence. Pages delivered
// before an abort stay in the batch.
func (s *ExportService) fetchPartition(ctx context.Context, part domain.Partition) ([]domain.Resource, error) {
	query := domain.ResourceQuery{
		RepoIDs:    part.RepoIDs,
		Branch:     part.Branch,
		Categories: s.cfg.Categories,
	}
	var batch []domain.Resource
	err := s.api.EachResourcePage(ctx, query, func(page []domain.Resource) error {
		batch = append(batch, page...)
		return nil
	})
	return batch, err
}

// resumeResources rebuilds the merged resource collection from a previous
// run's persisted partition artifacts instead of refetching.
func (s *ExportService) resumeResources(ctx context.Context, resumeID string, report *driving.ExportReport) ([]domain.Resource, error) {
	if _, err := s.store.GetRun(ctx, resumeID); err != nil {
		return nil, fmt.Errorf("resume run %s: %w", resumeID, err)
	}
	artifacts, err := s.store.Artifacts(ctx, resumeID, domain.StageResources)
	if err != nil {
		return nil, fmt.Errorf("load artifacts of run %s: %w", resumeID, err)
	}
	resources, excluded := DecodeArtifacts(artifacts)
	report.Errors += excluded
	logger.L().Info("resource collection resumed from artifacts",
		zap.String("resume_run_id", resumeID),
		zap.Int("artifacts", len(artifacts)),
		zap.Int("excluded", excluded))
	return resources, nil
}

// fetchDetails runs the per-unit detail fetch under the shared concurrency
// bound. Findings accumulate into numbered groups of cfg.GroupSize
// processed units; the credential is refreshed before the stage and after
// every cfg.RefreshEvery processed units. Units with an empty required
// field are skipped with a warning instead of fetched.
func (s *ExportService) fetchDetails(ctx context.Context, runID string, units []domain.WorkUnit, report *driving.ExportReport) ([]domain.FindingGroup, error) {
	if len(units) == 0 {
		return nil, nil
	}
	logger.L().Info("detail fetch starting",
		zap.Int("work_units", len(units)),
		zap.Int("group_size", s.cfg.GroupSize))

	if err := s.api.RefreshToken(ctx); err != nil {
		return nil, fmt.Errorf("refresh before detail stage: %w", err)
	}

	var (
		wg        sync.WaitGroup
		fatal     fatalGate
		apiErrors atomic.Int64
		processed atomic.Int64
		skipped   int
		collector = newGroupCollector(s.cfg.GroupSize)
	)

	for _, unit := range units {
		if field := unit.MissingField(); field != "" {
			skipped++
			logger.L().Warn("skipping work unit with empty required field",
				zap.String("field", field),
				zap.String("resource_uuid", unit.ResourceUUID),
				zap.String("repo_id", unit.RepoID),
				zap.NamedError("reason", domain.ErrMissingField))
			continue
		}
		if fatal.Err() != nil {
			break
		}
		if err := s.limiter.Acquire(ctx); err != nil {
			fatal.Set(err)
			break
		}
		wg.Add(1)
		go func(unit domain.WorkUnit) {
			defer wg.Done()
			defer s.limiter.Release()

			var findings []domain.Finding
			err := s.api.EachPolicyPage(ctx, unit, func(page []domain.Finding) error {
				findings = append(findings, page...)
				return nil
			})
			if err != nil {
				if isFatal(err) {
					fatal.Set(err)
					return
				}
				apiErrors.Add(1)
				logger.L().Error("detail fetch aborted for work unit",
					zap.String("resource_uuid", unit.ResourceUUID),
					zap.String("category", unit.CodeCategory),
					zap.Error(err))
				// Findings from pages delivered before the abort still count.
			}
			if sealed := collector.add(findings); sealed != nil {
				s.saveArtifact(ctx, runID, domain.StagePolicies, groupLabel(sealed.Seq), sealed.Seq, sealed.Findings)
			}

			n := processed.Add(1)
			if s.cfg.RefreshEvery > 0 && n%int64(s.cfg.RefreshEvery) == 0 {
				if err := s.api.RefreshToken(ctx); err != nil {
					fatal.Set(err)
				}
			}
		}(unit)
	}
	wg.Wait()

	if sealed := collector.flush(); sealed != nil {
		s.saveArtifact(ctx, runID, domain.StagePolicies, groupLabel(sealed.Seq), sealed.Seq, sealed.Findings)
	}

	report.SkippedUnits = skipped
	report.Errors += int(apiErrors.Load())
	if err := fatal.Err(); err != nil {
		return nil, err
	}

	groups := collector.groups()
	total := 0
	for _, g := range groups {
		total += len(g.Findings)
	}
	report.Findings = total
	logger.L().Info("detail fetch complete",
		zap.Int("groups", len(groups)),
		zap.Int("findings", total),
		zap.Int("skipped_units", skipped))
	return groups, nil
}

// saveArtifact persists one stage output. Persistence failures cost
// resumability, never the run.
func (s *ExportService) saveArtifact(ctx context.Context, runID, stage, label string, seq int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.L().Warn("could not encode stage artifact",
			zap.String("stage", stage), zap.String("label", label), zap.Error(err))
		return
	}
	art := domain.Artifact{
		RunID:     runID,
		Stage:     stage,
		Label:     label,
		Seq:       seq,
		Payload:   data,
		CreatedAt: time.Now(),
	}
	if err := s.store.SaveArtifact(ctx, art); err != nil {
		logger.L().Warn("could not persist stage artifact",
			zap.String("stage", stage), zap.String("label", label), zap.Error(err))
	}
}

func groupLabel(seq int) string {
	return fmt.Sprintf("group_%d", seq)
}

// isFatal classifies errors that must stop the whole run rather than
// degrade it: losing the credential, or the run context ending.
func isFatal(err error) bool {
	return errors.Is(err, domain.ErrAuthFailure) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// fatalGate latches the first fatal error so scheduling loops stop
// submitting new tasks while in-flight ones drain.
type fatalGate struct {
	mu  sync.Mutex
	err error
}

func (g *fatalGate) Set(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err == nil {
		g.err = err
	}
}

func (g *fatalGate) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}
