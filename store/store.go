package store

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agenttools/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/agenttools", "store")

// ErrNotFound is returned when the snapshot does not exist
var ErrNotFound = errors.New("snapshot not found")

// SnapshotStore persists tool snapshots by ID
type SnapshotStore interface {
	// Save creates or replaces the snapshot
	Save(ctx context.Context, id string, s *tools.Snapshot) error
	// Load returns the snapshot, or ErrNotFound
	Load(ctx context.Context, id string) (*tools.Snapshot, error)
	// List returns the sorted IDs of the stored snapshots
	List(ctx context.Context) ([]string, error)
	// Delete removes the snapshot. Deleting a missing snapshot is not an error.
	Delete(ctx context.Context, id string) error
}

func checkID(id string) error {
	if id == "" {
		return errors.New("invalid snapshot ID")
	}
	return nil
}

func notFound(id string) error {
	return errors.Mark(errors.Newf("snapshot %s not found", id), ErrNotFound)
}
