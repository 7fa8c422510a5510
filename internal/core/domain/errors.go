package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrAuthFailure indicates the login exchange did not yield a usable
	// token. This is the only unconditionally fatal pipeline error: there is
	// no fallback credential, so the whole run aborts.
	ErrAuthFailure = errors.New("authentication failure")

	// ErrMissingField indicates a required identifier is empty at the
	// partitioning or work-unit stage. The offending unit or branch is
	// skipped with a warning; the run continues.
	ErrMissingField = errors.New("required field missing")

	// ErrMalformedArtifact indicates a persisted intermediate collection
	// could not be decoded during a merge. The artifact is excluded from the
	// merge; the run continues with degraded output.
	ErrMalformedArtifact = errors.New("malformed artifact")

	// ErrInvalidConfig indicates the resolved configuration is unusable
	// (missing credentials, non-positive bounds).
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrRunNotFound indicates a referenced run id has no record in the
	// run store (e.g. a --resume argument that never ran here).
	ErrRunNotFound = errors.New("run not found")

	// ErrNoRepositories indicates the platform reported no scanned
	// repositories, leaving the pipeline nothing to partition.
	ErrNoRepositories = errors.New("no repositories to export")
)
