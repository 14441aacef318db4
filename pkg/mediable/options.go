package mediable

// Options control rehydration and cascade behavior for one host type.
type Options struct {
	// RehydrateMedia makes reads reload the cached relation from the store
	// whenever a tag they touch has been mutated in this session, and makes
	// Attach re-fetch authoritative copies before mutating them. Disabling it
	// trades read-your-writes consistency for fewer store round trips.
	RehydrateMedia bool

	// DetachOnSoftDelete extends the delete cascade to soft deletes. Hard
	// deletes always cascade regardless of this flag.
	DetachOnSoftDelete bool
}

// DefaultOptions returns the package defaults: rehydration on, soft-delete
// cascade off.
func DefaultOptions() Options {
	return Options{
		RehydrateMedia:     true,
		DetachOnSoftDelete: false,
	}
}
