// Package memory provides an in-process implementation of the media store for
// development and tests. It mirrors the PostgreSQL store's visible behavior:
// creation-order reads, location uniqueness, empty-location rejection,
// soft-delete filtering, and store-owned timestamps.
//
// Reverse host lookup is intentionally not implemented; deployments that need
// it run against PostgreSQL.
package memory

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/hoffnungslabor/mediable/pkg/errors"
	"github.com/hoffnungslabor/mediable/pkg/mediable"
)

// MediaStore implements repository.MediaStore using a mutex-guarded map.
type MediaStore struct {
	mu    sync.RWMutex
	media map[string]*mediable.Media
	// order holds IDs in insertion order, which stands in for the
	// created_at/id ordering of the SQL store.
	order []string
}

// New creates an empty in-memory media store.
func New() *MediaStore {
	return &MediaStore{media: make(map[string]*mediable.Media)}
}

// FindAll returns every live record of the host in creation order.
func (s *MediaStore) FindAll(_ context.Context, host mediable.HostRef) ([]*mediable.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*mediable.Media
	for _, id := range s.order {
		m := s.media[id]
		if m.Host == host && m.DeletedAt == nil {
			out = append(out, clone(m))
		}
	}
	return out, nil
}

// FindByTags returns the host's live records matching the tag filter in
// creation order.
func (s *MediaStore) FindByTags(_ context.Context, host mediable.HostRef, tags mediable.TagSet, matchAll bool) ([]*mediable.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	requested := tags.Values()
	var out []*mediable.Media
	for _, id := range s.order {
		m := s.media[id]
		if m.Host != host || m.DeletedAt != nil {
			continue
		}
		if matchAll {
			if m.Tags.MatchesAll(requested...) {
				out = append(out, clone(m))
			}
		} else if m.Tags.MatchesAny(requested...) {
			out = append(out, clone(m))
		}
	}
	return out, nil
}

// FindByIDs returns the live records for the given IDs in creation order.
func (s *MediaStore) FindByIDs(_ context.Context, ids []string) ([]*mediable.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	var out []*mediable.Media
	for _, id := range s.order {
		m := s.media[id]
		if want[id] && m.DeletedAt == nil {
			out = append(out, clone(m))
		}
	}
	return out, nil
}

// Save inserts or updates one record. The stored copy is detached from the
// caller's, so later mutations only take effect through another save.
func (s *MediaStore) Save(_ context.Context, m *mediable.Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(m)
}

// SaveMany saves a batch sequentially. Unlike the SQL store there is no
// transaction; a failure partway leaves the earlier records saved.
func (s *MediaStore) SaveMany(_ context.Context, media []*mediable.Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range media {
		if err := s.saveLocked(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *MediaStore) saveLocked(m *mediable.Media) error {
	if m.Disk == "" || m.Filename == "" {
		return apperrors.InvalidInput("media disk and filename must not be empty")
	}
	for id, other := range s.media {
		if id != m.ID && sameLocation(other, m) {
			return apperrors.AlreadyExists("media", "location", m.StoragePath())
		}
	}

	now := time.Now().UTC()
	existing, ok := s.media[m.ID]
	if !ok {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		s.order = append(s.order, m.ID)
	}
	m.UpdatedAt = now

	stored := clone(m)
	stored.DeletedAt = nil
	if ok {
		// Updates keep the original creation time and any soft-delete
		// marker; both are owned by the store.
		stored.CreatedAt = existing.CreatedAt
		stored.DeletedAt = existing.DeletedAt
	}
	s.media[m.ID] = stored
	return nil
}

// Delete removes one record permanently, whether or not it was soft-deleted.
func (s *MediaStore) Delete(_ context.Context, m *mediable.Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.media[m.ID]; !ok {
		return apperrors.NotFound("media", m.ID)
	}
	delete(s.media, m.ID)
	for i, id := range s.order {
		if id == m.ID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get retrieves one live record by ID.
func (s *MediaStore) Get(_ context.Context, id string) (*mediable.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.media[id]
	if !ok || m.DeletedAt != nil {
		return nil, apperrors.NotFound("media", id)
	}
	return clone(m), nil
}

// SoftDelete marks one record deleted. Already soft-deleted or missing
// records are not found.
func (s *MediaStore) SoftDelete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.media[id]
	if !ok || m.DeletedAt != nil {
		return apperrors.NotFound("media", id)
	}
	now := time.Now().UTC()
	m.DeletedAt = &now
	m.UpdatedAt = now
	return nil
}

func sameLocation(a, b *mediable.Media) bool {
	return a.Disk == b.Disk && a.Directory == b.Directory &&
		a.Filename == b.Filename && a.Extension == b.Extension
}

func clone(m *mediable.Media) *mediable.Media {
	c := *m
	if m.Tags != nil {
		c.Tags = m.Tags.Clone()
	} else {
		c.Tags = mediable.NewTagSet()
	}
	if m.DeletedAt != nil {
		t := *m.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}
