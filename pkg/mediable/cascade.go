package mediable

import (
	"context"
	"fmt"
)

// Cascader applies the delete cascade: when a host entity is removed, its
// associated media records go with it. Hard deletes always cascade; soft
// deletes cascade only when Options.DetachOnSoftDelete is set.
type Cascader struct {
	store AssociationStore
	opts  Options
}

// NewCascader creates a cascader over store with the given options.
func NewCascader(store AssociationStore, opts Options) *Cascader {
	return &Cascader{store: store, opts: opts}
}

// HostDeleted runs the cascade for a deleted host and returns how many media
// records were removed. A soft delete with the soft-delete cascade disabled
// is a no-op. Deletion is synchronous and in relation order; the first store
// error aborts the remaining cascade with no rollback of records already
// deleted. Retrying is the caller's responsibility.
func (c *Cascader) HostDeleted(ctx context.Context, host HostRef, soft bool) (int, error) {
	if soft && !c.opts.DetachOnSoftDelete {
		return 0, nil
	}

	media, err := c.store.FindAll(ctx, host)
	if err != nil {
		return 0, fmt.Errorf("load media for deleted host %s: %w", host, err)
	}

	deleted := 0
	for _, m := range media {
		if err := c.store.Delete(ctx, m); err != nil {
			return deleted, fmt.Errorf("cascade delete media %s: %w", m.ID, err)
		}
		deleted++
	}
	return deleted, nil
}
