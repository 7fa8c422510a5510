// Package domain defines the core business entities for the code-security
// export pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Repository: A scanned repository with its metadata
//   - Resource: One branch-scan error resource as reported by the platform
//   - WorkUnit: A deduplicated (resource, category) pair awaiting detail fetch
//   - Finding: One policy violation returned by the detail endpoint
//   - JoinedRecord: A Finding merged with repository and resource context
//   - Partition: A worker-assigned slice of repository ids for one branch
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
