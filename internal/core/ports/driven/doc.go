// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - ScanAPI: the remote code-security platform (login, repositories,
//     branch-scan resources, per-resource policies)
//   - RecordWriter: the tabular export sink
//
// # Optional Interfaces
//
// These can be nil - the pipeline degrades gracefully:
//
//   - RunStore: run bookkeeping and intermediate-artifact persistence.
//     Without it, runs are not resumable and leave no post-mortem trail.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
