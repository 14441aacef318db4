package repository

import (
	"context"

	"github.com/hoffnungslabor/mediable/pkg/mediable"
)

// MediaStore is the persistence contract of the service layer. It extends the
// association store consumed by the attachments engine with the record-level
// operations the HTTP API exposes directly.
//
// Reverse host lookup is an optional capability: stores that can express the
// query additionally implement mediable.HostFinder.
type MediaStore interface {
	mediable.AssociationStore

	// Get retrieves a media record by its ID. Soft-deleted records are not
	// found.
	Get(ctx context.Context, id string) (*mediable.Media, error)

	// SoftDelete marks a record deleted without removing the row. The record
	// disappears from every association query but keeps its storage location
	// reserved.
	SoftDelete(ctx context.Context, id string) error
}
