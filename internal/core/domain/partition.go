package domain

import "strconv"

// Partition is a worker-assigned contiguous subset of repository ids for one
// branch. Partitions are produced once, before fetching starts, and are
// read-only thereafter.
type Partition struct {
	// Branch is the scanned branch label exactly as reported.
	Branch string

	// Label is the sanitized branch label safe for artifact naming.
	Label string

	// Index is the 0-based position of this partition within its branch.
	Index int

	// RepoIDs is the contiguous id slice assigned to this partition.
	RepoIDs []string
}

// ArtifactLabel names this partition's persisted fetch output:
// "<sanitized-branch>_<index>".
func (p Partition) ArtifactLabel() string {
	return p.Label + "_" + strconv.Itoa(p.Index)
}
