package driven

import (
	"context"

	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/domain"
)

// ScanAPI is the remote code-security platform surface consumed by the
// pipeline. The prismacloud connector implements it.
//
// Both Each methods drain an offset/limit pagination sequence: the callback
// receives one decoded page at a time, in offset order, and a callback error
// stops the drain. A sequence that hits the platform's error marker is
// aborted with a *prismacloud.APIError; sibling sequences are unaffected.
type ScanAPI interface {
	// RefreshToken performs the login exchange and atomically replaces the
	// shared credential. Concurrent calls coalesce into a single exchange.
	// A failed exchange wraps domain.ErrAuthFailure and is fatal to the run.
	RefreshToken(ctx context.Context) error

	// ListRepositories returns every repository known to the platform.
	ListRepositories(ctx context.Context) ([]domain.Repository, error)

	// EachResourcePage drains the partition-level branch-scan resources
	// endpoint for one query, invoking fn once per non-empty page.
	EachResourcePage(ctx context.Context, query domain.ResourceQuery, fn func(resources []domain.Resource) error) error

	// EachPolicyPage drains the per-resource detail endpoint for one work
	// unit, invoking fn once per non-empty page. Findings are stamped with
	// the unit's composite key.
	EachPolicyPage(ctx context.Context, unit domain.WorkUnit, fn func(findings []domain.Finding) error) error
}
