// Package rulestore implements the versioned rule-storage repository
// described in SUPPLEMENTED FEATURES item 5: named, semver-tagged GRL
// rule sets persisted to a pluggable backend, with lookup by exact
// version or by range constraint.
//
// The teacher's nearest analogue is core/storage.go's Storage
// interface (Load/Add/Remove/Clear/Delete/GetStats/Close/Health),
// implemented by storage/bolt, storage/cassandra, and
// storage/dynamodb. Repository keeps that same small-interface,
// multiple-backend shape, generalized from the teacher's
// location-keyed byte-pair store to this module's name+version-keyed
// rule-source store.
package rulestore

import "context"

// Record is one named, versioned rule set.
type Record struct {
	Name    string
	Version string // semver, e.g. "1.2.3" or "1.2.3-beta"
	Source  string // raw GRL source
}

// Stats mirrors core/storage.go's StorageStats.
type Stats struct {
	NumRecords       int
	DateOfLastRecord string
}

// Repository is the storage-backend seam every rulestore
// implementation satisfies, grounded directly on core/storage.go's
// Storage interface.
type Repository interface {
	// Put stores (or replaces) a Record under its Name+Version.
	Put(ctx context.Context, rec Record) error

	// Get returns the exact Record for name@version.
	Get(ctx context.Context, name, version string) (Record, bool, error)

	// ListVersions returns every stored version string for name.
	ListVersions(ctx context.Context, name string) ([]string, error)

	// Remove deletes one name@version.
	Remove(ctx context.Context, name, version string) error

	// Clear deletes every version of name, returning the count
	// removed.
	Clear(ctx context.Context, name string) (int64, error)

	// Stats reports aggregate counts for name.
	Stats(ctx context.Context, name string) (Stats, error)

	Close(ctx context.Context) error

	Health(ctx context.Context) error
}

// Resolve finds the Record for name satisfying constraint (see
// semver.go), picking the highest matching version. ok is false if no
// stored version satisfies constraint.
func Resolve(ctx context.Context, repo Repository, name, constraint string) (Record, bool, error) {
	versions, err := repo.ListVersions(ctx, name)
	if err != nil {
		return Record{}, false, err
	}
	best, ok := BestMatch(versions, constraint)
	if !ok {
		return Record{}, false, nil
	}
	rec, found, err := repo.Get(ctx, name, best)
	if err != nil || !found {
		return Record{}, false, err
	}
	return rec, true, nil
}
