package mediable

import (
	"time"
)

// HostRef identifies a host entity by its type and ID. Host types are
// free-form strings chosen by the owning service ("post", "user", ...).
type HostRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// IsZero reports whether the reference identifies no host.
func (h HostRef) IsZero() bool {
	return h.Type == "" && h.ID == ""
}

// String returns the reference in "type:id" form for logs and event keys.
func (h HostRef) String() string {
	return h.Type + ":" + h.ID
}

// Media is one media resource owned by a single host. The tags on the record
// constitute its association with the host; there is no separate join entity.
// A record whose TagSet became empty through detaching stays persisted until
// a caller deletes it explicitly.
type Media struct {
	ID string `json:"id"`

	// Storage location. Opaque to this package except that the
	// (disk, directory, filename, extension) tuple is unique across all
	// records, enforced by the store.
	Disk      string `json:"disk"`
	Directory string `json:"directory"`
	Filename  string `json:"filename"`
	Extension string `json:"extension"`

	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`

	Tags TagSet  `json:"tags"`
	Host HostRef `json:"host"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// StoragePath returns "directory/filename.extension" for logs and events.
// The disk is not included; it names the backend, not a path segment.
func (m *Media) StoragePath() string {
	path := m.Filename
	if m.Extension != "" {
		path += "." + m.Extension
	}
	if m.Directory != "" {
		path = m.Directory + "/" + path
	}
	return path
}

// IsSoftDeleted reports whether the record carries a soft-delete marker.
func (m *Media) IsSoftDeleted() bool {
	return m.DeletedAt != nil
}

// MediaRef points Attach and Sync at a media record: either an existing
// record by ID, or a record value carried inline (new, or pre-loaded by the
// caller). Exactly one of the two fields is set.
type MediaRef struct {
	ID    string
	Media *Media
}

// RefID references an existing media record by its ID.
func RefID(id string) MediaRef {
	return MediaRef{ID: id}
}

// Ref references a media record value directly.
func Ref(m *Media) MediaRef {
	return MediaRef{Media: m}
}
