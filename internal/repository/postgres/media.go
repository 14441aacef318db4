package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hoffnungslabor/mediable/pkg/database"
	apperrors "github.com/hoffnungslabor/mediable/pkg/errors"
	"github.com/hoffnungslabor/mediable/pkg/mediable"
)

// MediaStore implements repository.MediaStore backed by PostgreSQL. Tags live
// in a text[] column; the overlap (&&) and containment (@>) operators give the
// pushed-down filters the same semantics as the in-memory TagSet predicates.
// It also implements mediable.HostFinder for reverse host lookups.
type MediaStore struct {
	db database.DBTX
}

// NewMediaStore creates a new PostgreSQL-backed media store.
func NewMediaStore(db database.DBTX) *MediaStore {
	return &MediaStore{db: db}
}

const mediaColumns = `id, disk, directory, filename, extension, mime_type, size, tags, host_type, host_id, created_at, updated_at`

const upsertQuery = `
	INSERT INTO media (id, disk, directory, filename, extension, mime_type, size, tags, host_type, host_id, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO UPDATE SET
		disk = EXCLUDED.disk,
		directory = EXCLUDED.directory,
		filename = EXCLUDED.filename,
		extension = EXCLUDED.extension,
		mime_type = EXCLUDED.mime_type,
		size = EXCLUDED.size,
		tags = EXCLUDED.tags,
		host_type = EXCLUDED.host_type,
		host_id = EXCLUDED.host_id,
		updated_at = EXCLUDED.updated_at`

// FindAll returns every live media record of the host in creation order.
func (s *MediaStore) FindAll(ctx context.Context, host mediable.HostRef) (media []*mediable.Media, err error) {
	query := `
		SELECT ` + mediaColumns + `
		FROM media
		WHERE host_type = $1 AND host_id = $2 AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC`

	ctx, end := database.TraceQuery(ctx, "FindAll", query)
	defer func() { end(err) }()

	rows, err := s.db.Query(ctx, query, host.Type, host.ID)
	if err != nil {
		return nil, fmt.Errorf("query media for host: %w", err)
	}
	defer rows.Close()

	return collectMedia(rows)
}

// FindByTags returns the host's live media matching the tag filter in creation
// order. The filter runs in the database: && for match-any, @> for match-all.
func (s *MediaStore) FindByTags(ctx context.Context, host mediable.HostRef, tags mediable.TagSet, matchAll bool) (media []*mediable.Media, err error) {
	op := "&&"
	if matchAll {
		op = "@>"
	}
	query := `
		SELECT ` + mediaColumns + `
		FROM media
		WHERE host_type = $1 AND host_id = $2 AND tags ` + op + ` $3 AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC`

	ctx, end := database.TraceQuery(ctx, "FindByTags", query)
	defer func() { end(err) }()

	rows, err := s.db.Query(ctx, query, host.Type, host.ID, tags.Values())
	if err != nil {
		return nil, fmt.Errorf("query media by tags: %w", err)
	}
	defer rows.Close()

	return collectMedia(rows)
}

// FindByIDs returns the live records for the given IDs in creation order.
// Unknown IDs are absent from the result.
func (s *MediaStore) FindByIDs(ctx context.Context, ids []string) (media []*mediable.Media, err error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + mediaColumns + `
		FROM media
		WHERE id = ANY($1) AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC`

	ctx, end := database.TraceQuery(ctx, "FindByIDs", query)
	defer func() { end(err) }()

	rows, err := s.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("query media by ids: %w", err)
	}
	defer rows.Close()

	return collectMedia(rows)
}

// Save inserts or updates one record. The store owns the timestamps: CreatedAt
// is set on first save and never changed afterwards, UpdatedAt on every save.
// A location collision maps to an already-exists error.
func (s *MediaStore) Save(ctx context.Context, m *mediable.Media) (err error) {
	ctx, end := database.TraceQuery(ctx, "Save", upsertQuery)
	defer func() { end(err) }()

	if err = upsertMedia(ctx, s.db, m); err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("media", "location", m.StoragePath())
		}
		return fmt.Errorf("save media: %w", err)
	}
	return nil
}

// SaveMany inserts or updates a batch inside a single transaction.
func (s *MediaStore) SaveMany(ctx context.Context, media []*mediable.Media) (err error) {
	if len(media) == 0 {
		return nil
	}

	ctx, end := database.TraceQuery(ctx, "SaveMany", upsertQuery)
	defer func() { end(err) }()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, m := range media {
		if err = upsertMedia(ctx, tx, m); err != nil {
			if isUniqueViolation(err) {
				return apperrors.AlreadyExists("media", "location", m.StoragePath())
			}
			return fmt.Errorf("save media %s: %w", m.ID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Delete removes one record permanently.
func (s *MediaStore) Delete(ctx context.Context, m *mediable.Media) (err error) {
	query := `DELETE FROM media WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "Delete", query)
	defer func() { end(err) }()

	ct, err := s.db.Exec(ctx, query, m.ID)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("media", m.ID)
	}
	return nil
}

// Get retrieves one live record by ID.
func (s *MediaStore) Get(ctx context.Context, id string) (m *mediable.Media, err error) {
	query := `
		SELECT ` + mediaColumns + `
		FROM media
		WHERE id = $1 AND deleted_at IS NULL`

	ctx, end := database.TraceQuery(ctx, "Get", query)
	defer func() { end(err) }()

	m, err = scanMedia(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("media", id)
		}
		return nil, fmt.Errorf("scan media: %w", err)
	}
	return m, nil
}

// SoftDelete marks one record deleted. Already soft-deleted or missing
// records are not found.
func (s *MediaStore) SoftDelete(ctx context.Context, id string) (err error) {
	query := `UPDATE media SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`

	ctx, end := database.TraceQuery(ctx, "SoftDelete", query)
	defer func() { end(err) }()

	ct, err := s.db.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("soft delete media: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("media", id)
	}
	return nil
}

// FindHostsWithMedia returns one page of hosts of the given type that have at
// least one live media record matching the tag filter, together with the
// total number of matching hosts. Hosts are ordered by their earliest media
// record so pagination is stable. Empty tags matches hosts with any media.
func (s *MediaStore) FindHostsWithMedia(ctx context.Context, hostType string, tags mediable.TagSet, matchAll bool, offset, limit int) (hosts []mediable.HostRef, total int, err error) {
	query := `
		SELECT host_id, count(*) OVER() AS total_count
		FROM media
		WHERE host_type = $1 AND host_id <> '' AND deleted_at IS NULL`
	args := []any{hostType}

	if !tags.IsEmpty() {
		op := "&&"
		if matchAll {
			op = "@>"
		}
		query += fmt.Sprintf(" AND tags %s $%d", op, len(args)+1)
		args = append(args, tags.Values())
	}

	query += fmt.Sprintf(`
		GROUP BY host_id
		ORDER BY MIN(created_at) ASC, host_id ASC
		LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	ctx, end := database.TraceQuery(ctx, "FindHostsWithMedia", query)
	defer func() { end(err) }()

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query hosts with media: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hostID string
		if err := rows.Scan(&hostID, &total); err != nil {
			return nil, 0, fmt.Errorf("scan host row: %w", err)
		}
		hosts = append(hosts, mediable.HostRef{Type: hostType, ID: hostID})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate host rows: %w", err)
	}

	return hosts, total, nil
}

// execer is the subset of DBTX shared with pgx.Tx, so the same upsert runs
// standalone and inside a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func upsertMedia(ctx context.Context, db execer, m *mediable.Media) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	_, err := db.Exec(ctx, upsertQuery,
		m.ID,
		m.Disk,
		m.Directory,
		m.Filename,
		m.Extension,
		m.MimeType,
		m.Size,
		m.Tags.Values(),
		m.Host.Type,
		m.Host.ID,
		m.CreatedAt,
		m.UpdatedAt,
	)
	return err
}

// scanMedia reads one row into a media record. The tags column scans into a
// string slice and is normalized into a TagSet.
func scanMedia(row pgx.Row) (*mediable.Media, error) {
	var (
		m    mediable.Media
		tags []string
	)
	err := row.Scan(
		&m.ID,
		&m.Disk,
		&m.Directory,
		&m.Filename,
		&m.Extension,
		&m.MimeType,
		&m.Size,
		&tags,
		&m.Host.Type,
		&m.Host.ID,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Tags = mediable.NewTagSet(tags...)
	return &m, nil
}

func collectMedia(rows pgx.Rows) ([]*mediable.Media, error) {
	var media []*mediable.Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media row: %w", err)
		}
		media = append(media, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media rows: %w", err)
	}
	return media, nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
