package mediable

import (
	"context"

	apperrors "github.com/hoffnungslabor/mediable/pkg/errors"
)

// AssociationStore is the persistence contract this package consumes. The
// engine surfaces store failures to its caller unchanged (wrapped with %w for
// operation context) and never retries; retry policy belongs to the caller.
//
// Soft-deleted media must be invisible to every query. FindAll and FindByTags
// return records in creation order (created_at ascending, ID ascending as the
// tie-break), which is the order FirstMedia and LastMedia are defined against.
type AssociationStore interface {
	// FindAll returns every media record associated with host.
	FindAll(ctx context.Context, host HostRef) ([]*Media, error)

	// FindByTags returns the host's media matching tags: any shared tag when
	// matchAll is false, the full requested set when true. The filter is
	// applied by the store; results are identical to filtering FindAll in
	// memory with TagSet predicates.
	FindByTags(ctx context.Context, host HostRef, tags TagSet, matchAll bool) ([]*Media, error)

	// FindByIDs returns the records for the given IDs, in creation order.
	// Unknown IDs are simply absent from the result, not an error.
	FindByIDs(ctx context.Context, ids []string) ([]*Media, error)

	// Save inserts or updates one record.
	Save(ctx context.Context, media *Media) error

	// SaveMany inserts or updates a batch. Stores with transactions apply the
	// batch atomically; the engine does not rely on it.
	SaveMany(ctx context.Context, media []*Media) error

	// Delete removes one record.
	Delete(ctx context.Context, media *Media) error
}

// HostFinder is an optional reverse-lookup capability: which hosts of a type
// have media matching the given tags. Stores that cannot express the query
// simply do not implement the interface.
type HostFinder interface {
	// FindHostsWithMedia returns one page of matching host references plus
	// the total match count. Empty tags means "any media at all".
	FindHostsWithMedia(ctx context.Context, hostType string, tags TagSet, matchAll bool, offset, limit int) ([]HostRef, int, error)
}

// FindHostsWithMedia runs the reverse lookup through store's HostFinder
// capability. Stores without the capability fail immediately with an
// unsupported-operation error; the query is never partially emulated.
func FindHostsWithMedia(ctx context.Context, store AssociationStore, hostType string, tags TagSet, matchAll bool, offset, limit int) ([]HostRef, int, error) {
	finder, ok := store.(HostFinder)
	if !ok {
		return nil, 0, apperrors.Unsupported("find hosts with media")
	}
	return finder.FindHostsWithMedia(ctx, hostType, tags, matchAll, offset, limit)
}
