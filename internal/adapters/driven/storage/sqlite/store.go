package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/domain"
	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/ports/driven"
)

// Store is the SQLite-backed run store.
type Store struct {
	db   *sql.DB
	path string
}

var _ driven.RunStore = (*Store)(nil)

// NewStore opens (or creates) the run database under stateDir.
// If stateDir is empty, defaults to ~/.pcs-code-export/data.
func NewStore(stateDir string) (*Store, error) {
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		stateDir = filepath.Join(home, ".pcs-code-export", "data")
	}

	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	dbPath := filepath.Join(stateDir, "runs.db")

	// WAL mode keeps concurrent artifact writes from partition workers
	// from blocking each other.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// CreateRun records the start of a run.
func (s *Store) CreateRun(ctx context.Context, run domain.Run) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = domain.RunStatusRunning
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, status, started_at)
		VALUES (?, ?, ?)
	`, run.ID, string(run.Status), run.StartedAt)

	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}
	return nil
}

// FinishRun stamps the run's final status and counters.
func (s *Store) FinishRun(ctx context.Context, run domain.Run) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			status = ?,
			finished_at = ?,
			resources = ?,
			work_units = ?,
			findings = ?,
			records = ?,
			errors = ?
		WHERE id = ?
	`, string(run.Status), run.FinishedAt,
		run.Resources, run.WorkUnits, run.Findings, run.Records, run.Errors,
		run.ID)

	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrRunNotFound, run.ID)
	}
	return nil
}

// GetRun returns a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, started_at, finished_at, resources, work_units, findings, records, errors
		FROM runs WHERE id = ?
	`, id)

	var run domain.Run
	var status string
	var startedAt, finishedAt sql.NullTime
	if err := row.Scan(&run.ID, &status, &startedAt, &finishedAt,
		&run.Resources, &run.WorkUnits, &run.Findings, &run.Records, &run.Errors); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	run.Status = domain.RunStatus(status)
	if startedAt.Valid {
		run.StartedAt = startedAt.Time
	}
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}

	return &run, nil
}

// SaveArtifact persists one stage output. Saving the same (run, stage, label)
// again replaces the payload, so a resumed stage overwrites its own partials.
func (s *Store) SaveArtifact(ctx context.Context, artifact domain.Artifact) error {
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (run_id, stage, label, seq, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, stage, label) DO UPDATE SET
			seq = excluded.seq,
			payload = excluded.payload,
			created_at = excluded.created_at
	`, artifact.RunID, artifact.Stage, artifact.Label, artifact.Seq,
		artifact.Payload, artifact.CreatedAt)

	if err != nil {
		return fmt.Errorf("saving artifact: %w", err)
	}
	return nil
}

// Artifacts returns a run's artifacts for one stage in Seq order.
func (s *Store) Artifacts(ctx context.Context, runID, stage string) ([]domain.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, stage, label, seq, payload, created_at
		FROM artifacts
		WHERE run_id = ? AND stage = ?
		ORDER BY seq
	`, runID, stage)
	if err != nil {
		return nil, fmt.Errorf("querying artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []domain.Artifact //nolint:prealloc // size unknown from query
	for rows.Next() {
		var a domain.Artifact
		var createdAt sql.NullTime
		if err := rows.Scan(&a.RunID, &a.Stage, &a.Label, &a.Seq, &a.Payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning artifact: %w", err)
		}
		if createdAt.Valid {
			a.CreatedAt = createdAt.Time
		}
		artifacts = append(artifacts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating artifacts: %w", err)
	}

	return artifacts, nil
}
