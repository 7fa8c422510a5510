// Package prismacloud implements the connector for the Prisma Cloud
// code-security API.
//
// The connector is the only package that speaks the platform's wire format.
// It comprises the following components:
//
//   - Client: request shaping, credential injection, rate limiting, and the
//     typed endpoint calls (repositories, branch-scan resources, policies)
//   - Authenticator: the login exchange and the shared refreshing credential
//   - drainPages: the offset/limit pagination loop shared by both paged
//     endpoints
//
// # Authentication
//
// An access-key/secret-key pair is exchanged at POST /login for a bearer
// token. The token expires server-side, so the client re-runs the exchange
// after every RefreshEvery completed requests and callers re-run it before
// starting each pipeline stage. The credential is shared by every in-flight
// request; replacement is atomic and concurrent refresh attempts collapse
// into a single login exchange.
//
// # Pagination
//
// Both paged endpoints accept an offset/limit pair and answer with
// {data, hasNext}. The drain loop stops on the first empty page, then on
// hasNext=false, and otherwise advances the offset by the page size. One
// request completes before the next in the same sequence is issued, so
// offsets within a sequence increase strictly monotonically.
//
// # Error Handling
//
// A response carrying the platform's top-level error marker (or a non-2xx
// status) aborts only its own pagination sequence and surfaces as
// *APIError with the raw payload preserved for the log. There is no retry.
// A failed login exchange wraps domain.ErrAuthFailure and is fatal to the
// whole pipeline.
package prismacloud
