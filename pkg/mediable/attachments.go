package mediable

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	apperrors "github.com/hoffnungslabor/mediable/pkg/errors"
)

// Attachments manages one host's media relation for the duration of a logical
// request. It caches the relation after the first load and tracks which tags
// have been mutated since, so reads can decide whether the cache is still
// trustworthy. Construct one per request; it is not safe for concurrent use.
//
// Consistency is read-your-writes within the session only. Writes from other
// processes become visible on the next reload, never before.
type Attachments struct {
	store AssociationStore
	host  HostRef
	opts  Options

	media  []*Media
	loaded bool

	dirty    TagSet
	allDirty bool
}

// NewAttachments creates a session for host over store.
func NewAttachments(store AssociationStore, host HostRef, opts Options) *Attachments {
	return &Attachments{
		store: store,
		host:  host,
		opts:  opts,
		dirty: NewTagSet(),
	}
}

// Host returns the host this session is scoped to.
func (a *Attachments) Host() HostRef {
	return a.host
}

// Load fetches the full media relation from the store, replacing the cached
// copy. Loading always clears the dirty state, whether or not rehydration is
// enabled.
func (a *Attachments) Load(ctx context.Context) error {
	media, err := a.store.FindAll(ctx, a.host)
	if err != nil {
		return fmt.Errorf("load media for host %s: %w", a.host, err)
	}
	a.media = media
	a.loaded = true
	a.clearDirty()
	return nil
}

// IsDirty reports whether the cached relation may be stale for the given
// tags. Without arguments it reports whether anything was mutated since the
// last load. A full detach marks the whole relation dirty, so IsDirty is then
// true for every tag.
func (a *Attachments) IsDirty(tags ...string) bool {
	if a.allDirty {
		return true
	}
	if len(tags) == 0 {
		return !a.dirty.IsEmpty()
	}
	return a.dirty.MatchesAny(tags...)
}

// markDirty records that the given tags were mutated. Without arguments the
// whole relation is marked dirty.
func (a *Attachments) markDirty(tags ...string) {
	if len(tags) == 0 {
		a.allDirty = true
		return
	}
	a.dirty.Add(tags...)
}

func (a *Attachments) clearDirty() {
	a.dirty = NewTagSet()
	a.allDirty = false
}

// rehydrateIfNeeded runs before every read. It loads the relation when it was
// never loaded, and reloads it when rehydration is enabled and a tag the read
// touches is dirty. Without tags it reloads on any dirt at all.
func (a *Attachments) rehydrateIfNeeded(ctx context.Context, tags ...string) error {
	if !a.loaded {
		return a.Load(ctx)
	}
	if a.opts.RehydrateMedia && a.IsDirty(tags...) {
		return a.Load(ctx)
	}
	return nil
}

// Attach associates the referenced media with the host under the given tags.
// Each reference is resolved to its persisted record (re-fetched when
// rehydration is enabled, so a stale copy does not clobber concurrent tag
// changes), the tags are unioned into its set, unowned records are claimed
// for this host, and the batch is persisted. A record already owned by a
// different host is refused with a conflict error; a record carries exactly
// one host reference and attach never re-homes it. Attaching the same tags
// twice is idempotent. Empty tags or refs is a no-op.
//
// An ID that does not resolve proceeds as a bare record rather than failing
// here; the store rejects it at save time, so nothing is silently dropped.
func (a *Attachments) Attach(ctx context.Context, refs []MediaRef, tags ...string) error {
	set := NewTagSet(tags...)
	if set.IsEmpty() || len(refs) == 0 {
		return nil
	}

	records, err := a.resolveRefs(ctx, refs)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	for _, m := range records {
		if !m.Host.IsZero() && m.Host != a.host {
			return fmt.Errorf("media %s belongs to host %s: %w", m.ID, m.Host, apperrors.ErrConflict)
		}
	}

	attach := set.Values()
	for _, m := range records {
		if m.Tags == nil {
			m.Tags = NewTagSet()
		}
		m.Tags.Add(attach...)
		if m.Host.IsZero() {
			m.Host = a.host
		}
	}

	if err := a.saveBatch(ctx, records); err != nil {
		return err
	}

	a.markDirty(attach...)
	return nil
}

// Sync replaces whichever media currently hold any of the given tags with the
// referenced media: a DetachTags followed by an Attach. The two phases are
// separate store operations, not one transaction; if the attach phase fails,
// the tags stay detached and no replacement is attached. Callers that need
// atomicity must retry or reconcile at their level.
func (a *Attachments) Sync(ctx context.Context, refs []MediaRef, tags ...string) error {
	if err := a.DetachTags(ctx, tags...); err != nil {
		return err
	}
	return a.Attach(ctx, refs, tags...)
}

// Detach removes tags from one media record and persists it. With tags it
// removes exactly those; without tags it clears the record's entire tag set,
// regardless of which host's session runs it. The record itself is never
// deleted, even when its tag set becomes empty.
func (a *Attachments) Detach(ctx context.Context, media *Media, tags ...string) error {
	if media == nil {
		return nil
	}
	if media.Tags == nil {
		media.Tags = NewTagSet()
	}

	if len(tags) == 0 {
		media.Tags = NewTagSet()
	} else {
		media.Tags.Remove(tags...)
	}

	if err := a.store.Save(ctx, media); err != nil {
		return fmt.Errorf("detach media %s: %w", media.ID, err)
	}

	a.markDirty(tags...)
	return nil
}

// DetachTags removes the given tags from every media record of the host that
// carries at least one of them. Empty tags is a no-op.
func (a *Attachments) DetachTags(ctx context.Context, tags ...string) error {
	set := NewTagSet(tags...)
	if set.IsEmpty() {
		return nil
	}

	matched, err := a.store.FindByTags(ctx, a.host, set, false)
	if err != nil {
		return fmt.Errorf("find media to detach for host %s: %w", a.host, err)
	}

	remove := set.Values()
	for _, m := range matched {
		m.Tags.Remove(remove...)
	}

	if err := a.saveBatch(ctx, matched); err != nil {
		return err
	}

	a.markDirty(remove...)
	return nil
}

// Media returns the host's media carrying any of the given tags, in creation
// order. Without tags it returns the whole relation. The filter runs in
// memory against the (rehydrated) cache.
func (a *Attachments) Media(ctx context.Context, tags ...string) ([]*Media, error) {
	set := NewTagSet(tags...)
	if err := a.rehydrateIfNeeded(ctx, set.Values()...); err != nil {
		return nil, err
	}

	if set.IsEmpty() {
		return append([]*Media(nil), a.media...), nil
	}

	requested := set.Values()
	out := make([]*Media, 0, len(a.media))
	for _, m := range a.media {
		if m.Tags.MatchesAny(requested...) {
			out = append(out, m)
		}
	}
	return out, nil
}

// MediaMatchAll returns the host's media carrying every one of the given
// tags, in creation order. When the cached relation is present and
// trustworthy the filter runs in memory; otherwise the predicate is pushed to
// the store, which by contract yields identical results. Without tags it
// behaves like Media.
func (a *Attachments) MediaMatchAll(ctx context.Context, tags ...string) ([]*Media, error) {
	set := NewTagSet(tags...)
	if set.IsEmpty() {
		return a.Media(ctx)
	}

	requested := set.Values()
	if a.loaded && !(a.opts.RehydrateMedia && a.IsDirty(requested...)) {
		out := make([]*Media, 0, len(a.media))
		for _, m := range a.media {
			if m.Tags.MatchesAll(requested...) {
				out = append(out, m)
			}
		}
		return out, nil
	}

	media, err := a.store.FindByTags(ctx, a.host, set, true)
	if err != nil {
		return nil, fmt.Errorf("find media for host %s: %w", a.host, err)
	}
	return media, nil
}

// HasMedia reports whether the host has media carrying any of the given tags.
func (a *Attachments) HasMedia(ctx context.Context, tags ...string) (bool, error) {
	media, err := a.Media(ctx, tags...)
	if err != nil {
		return false, err
	}
	return len(media) > 0, nil
}

// HasMediaMatchAll reports whether the host has media carrying all of the
// given tags.
func (a *Attachments) HasMediaMatchAll(ctx context.Context, tags ...string) (bool, error) {
	media, err := a.MediaMatchAll(ctx, tags...)
	if err != nil {
		return false, err
	}
	return len(media) > 0, nil
}

// FirstMedia returns the oldest matching media under creation order.
func (a *Attachments) FirstMedia(ctx context.Context, tags ...string) (*Media, error) {
	media, err := a.Media(ctx, tags...)
	if err != nil {
		return nil, err
	}
	if len(media) == 0 {
		return nil, fmt.Errorf("no media for host %s: %w", a.host, apperrors.ErrNotFound)
	}
	return media[0], nil
}

// LastMedia returns the newest matching media under creation order.
func (a *Attachments) LastMedia(ctx context.Context, tags ...string) (*Media, error) {
	media, err := a.Media(ctx, tags...)
	if err != nil {
		return nil, err
	}
	if len(media) == 0 {
		return nil, fmt.Errorf("no media for host %s: %w", a.host, apperrors.ErrNotFound)
	}
	return media[len(media)-1], nil
}

// MediaByTag buckets the host's media by tag. A record with N tags appears in
// N buckets; each bucket keeps creation order.
func (a *Attachments) MediaByTag(ctx context.Context) (map[string][]*Media, error) {
	if err := a.rehydrateIfNeeded(ctx); err != nil {
		return nil, err
	}

	buckets := make(map[string][]*Media)
	for _, m := range a.media {
		for _, tag := range m.Tags.Values() {
			buckets[tag] = append(buckets[tag], m)
		}
	}
	return buckets, nil
}

// TagsForMedia returns the tag set of one media record. The relation is
// rehydrated first (unscoped, on any dirt). When rehydration is enabled the
// record is re-fetched so the answer is authoritative; a record that does not
// resolve yields an empty set, not an error.
func (a *Attachments) TagsForMedia(ctx context.Context, media *Media) (TagSet, error) {
	if err := a.rehydrateIfNeeded(ctx); err != nil {
		return nil, err
	}
	if media == nil || media.ID == "" {
		return NewTagSet(), nil
	}

	if a.opts.RehydrateMedia {
		records, err := a.store.FindByIDs(ctx, []string{media.ID})
		if err != nil {
			return nil, fmt.Errorf("refetch media %s: %w", media.ID, err)
		}
		if len(records) == 0 || records[0].Tags == nil {
			return NewTagSet(), nil
		}
		return records[0].Tags.Clone(), nil
	}

	if media.Tags == nil {
		return NewTagSet(), nil
	}
	return media.Tags.Clone(), nil
}

// resolveRefs turns refs into the records Attach will mutate. IDs with no
// usable in-memory copy are always fetched; records the session already holds
// are re-fetched only when rehydration is enabled. Inline values with a new
// identity get a generated ID. Repeated refs to the same record collapse to
// one entry.
func (a *Attachments) resolveRefs(ctx context.Context, refs []MediaRef) ([]*Media, error) {
	cached := make(map[string]*Media)
	if a.loaded {
		for _, m := range a.media {
			cached[m.ID] = m
		}
	}

	fetchIDs := make([]string, 0, len(refs))
	for _, ref := range refs {
		switch {
		case ref.Media != nil:
			if a.opts.RehydrateMedia && ref.Media.ID != "" {
				fetchIDs = append(fetchIDs, ref.Media.ID)
			}
		case ref.ID != "":
			if a.opts.RehydrateMedia || cached[ref.ID] == nil {
				fetchIDs = append(fetchIDs, ref.ID)
			}
		}
	}

	fetched := make(map[string]*Media, len(fetchIDs))
	if len(fetchIDs) > 0 {
		records, err := a.store.FindByIDs(ctx, fetchIDs)
		if err != nil {
			return nil, fmt.Errorf("resolve media refs: %w", err)
		}
		for _, m := range records {
			fetched[m.ID] = m
		}
	}

	out := make([]*Media, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		var m *Media
		switch {
		case ref.Media != nil:
			m = ref.Media
			if auth, ok := fetched[m.ID]; ok {
				m = auth
			}
			if m.ID == "" {
				m.ID = uuid.New().String()
			}
		case ref.ID != "":
			m = fetched[ref.ID]
			if m == nil {
				m = cached[ref.ID]
			}
			if m == nil {
				// Unresolved reference; Attach documents why this proceeds.
				m = &Media{ID: ref.ID, Tags: NewTagSet()}
			}
		default:
			continue
		}

		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, m)
	}
	return out, nil
}

// saveBatch persists the records, using the store's batch operation when
// there is more than one.
func (a *Attachments) saveBatch(ctx context.Context, records []*Media) error {
	switch len(records) {
	case 0:
		return nil
	case 1:
		if err := a.store.Save(ctx, records[0]); err != nil {
			return fmt.Errorf("save media %s: %w", records[0].ID, err)
		}
		return nil
	default:
		if err := a.store.SaveMany(ctx, records); err != nil {
			return fmt.Errorf("save %d media records: %w", len(records), err)
		}
		return nil
	}
}
