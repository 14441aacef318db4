package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoffnungslabor/mediable/pkg/database"
	apperrors "github.com/hoffnungslabor/mediable/pkg/errors"
	"github.com/hoffnungslabor/mediable/pkg/mediable"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func setupStore(t *testing.T) (*MediaStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	store := NewMediaStore(mock)
	return store, mock
}

var mediaRowColumns = []string{
	"id", "disk", "directory", "filename", "extension",
	"mime_type", "size", "tags", "host_type", "host_id",
	"created_at", "updated_at",
}

func sampleMedia() *mediable.Media {
	return &mediable.Media{
		ID:        "media-1",
		Disk:      "uploads",
		Directory: "posts/2026",
		Filename:  "banner",
		Extension: "jpg",
		MimeType:  "image/jpeg",
		Size:      204800,
		Tags:      mediable.NewTagSet("hero", "gallery"),
		Host:      mediable.HostRef{Type: "post", ID: "42"},
		CreatedAt: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func addMediaRow(rows *pgxmock.Rows, m *mediable.Media) *pgxmock.Rows {
	return rows.AddRow(
		m.ID, m.Disk, m.Directory, m.Filename, m.Extension,
		m.MimeType, m.Size, m.Tags.Values(), m.Host.Type, m.Host.ID,
		m.CreatedAt, m.UpdatedAt,
	)
}

// ---------------------------------------------------------------------------
// FindAll
// ---------------------------------------------------------------------------

func TestMediaStore_FindAll_Success(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	m := sampleMedia()
	mock.ExpectQuery("SELECT .+ FROM media WHERE host_type").
		WithArgs("post", "42").
		WillReturnRows(addMediaRow(pgxmock.NewRows(mediaRowColumns), m))

	media, err := store.FindAll(context.Background(), mediable.HostRef{Type: "post", ID: "42"})

	require.NoError(t, err)
	require.Len(t, media, 1)
	assert.Equal(t, "media-1", media[0].ID)
	assert.ElementsMatch(t, []string{"gallery", "hero"}, media[0].Tags.Values())
	assert.Equal(t, mediable.HostRef{Type: "post", ID: "42"}, media[0].Host)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaStore_FindAll_Empty(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM media WHERE host_type").
		WithArgs("post", "404").
		WillReturnRows(pgxmock.NewRows(mediaRowColumns))

	media, err := store.FindAll(context.Background(), mediable.HostRef{Type: "post", ID: "404"})

	require.NoError(t, err)
	assert.Empty(t, media)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaStore_FindAll_QueryError(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM media WHERE host_type").
		WithArgs("post", "42").
		WillReturnError(errors.New("connection refused"))

	media, err := store.FindAll(context.Background(), mediable.HostRef{Type: "post", ID: "42"})

	assert.Nil(t, media)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "query media for host")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// FindByTags
// ---------------------------------------------------------------------------

func TestMediaStore_FindByTags_MatchAnyUsesOverlap(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	m := sampleMedia()
	mock.ExpectQuery(`SELECT .+ FROM media WHERE host_type = \$1 AND host_id = \$2 AND tags && \$3`).
		WithArgs("post", "42", []string{"gallery", "hero"}).
		WillReturnRows(addMediaRow(pgxmock.NewRows(mediaRowColumns), m))

	media, err := store.FindByTags(context.Background(),
		mediable.HostRef{Type: "post", ID: "42"}, mediable.NewTagSet("hero", "gallery"), false)

	require.NoError(t, err)
	require.Len(t, media, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaStore_FindByTags_MatchAllUsesContainment(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	m := sampleMedia()
	mock.ExpectQuery(`SELECT .+ FROM media WHERE host_type = \$1 AND host_id = \$2 AND tags @> \$3`).
		WithArgs("post", "42", []string{"gallery", "hero"}).
		WillReturnRows(addMediaRow(pgxmock.NewRows(mediaRowColumns), m))

	media, err := store.FindByTags(context.Background(),
		mediable.HostRef{Type: "post", ID: "42"}, mediable.NewTagSet("hero", "gallery"), true)

	require.NoError(t, err)
	require.Len(t, media, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaStore_FindByTags_QueryError(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM media WHERE host_type").
		WithArgs("post", "42", []string{"hero"}).
		WillReturnError(errors.New("timeout"))

	media, err := store.FindByTags(context.Background(),
		mediable.HostRef{Type: "post", ID: "42"}, mediable.NewTagSet("hero"), false)

	assert.Nil(t, media)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "query media by tags")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// FindByIDs
// ---------------------------------------------------------------------------

func TestMediaStore_FindByIDs_Success(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	m := sampleMedia()
	mock.ExpectQuery(`SELECT .+ FROM media WHERE id = ANY`).
		WithArgs([]string{"media-1", "media-404"}).
		WillReturnRows(addMediaRow(pgxmock.NewRows(mediaRowColumns), m))

	media, err := store.FindByIDs(context.Background(), []string{"media-1", "media-404"})

	require.NoError(t, err)
	require.Len(t, media, 1, "unknown IDs are absent, not an error")
	assert.Equal(t, "media-1", media[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaStore_FindByIDs_NoIDs_SkipsQuery(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	media, err := store.FindByIDs(context.Background(), nil)

	require.NoError(t, err)
	assert.Nil(t, media)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Save
// ---------------------------------------------------------------------------

func TestMediaStore_Save_Success(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	m := sampleMedia()
	mock.ExpectExec("INSERT INTO media").
		WithArgs(
			m.ID, m.Disk, m.Directory, m.Filename, m.Extension,
			m.MimeType, m.Size, []string{"gallery", "hero"}, "post", "42",
			m.CreatedAt, pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.Save(context.Background(), m)

	assert.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), m.UpdatedAt, 2*time.Second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaStore_Save_SetsCreatedAtOnFirstSave(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	m := sampleMedia()
	m.CreatedAt = time.Time{}

	mock.ExpectExec("INSERT INTO media").
		WithArgs(
			m.ID, m.Disk, m.Directory, m.Filename, m.Extension,
			m.MimeType, m.Size, []string{"gallery", "hero"}, "post", "42",
			pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.Save(context.Background(), m)

	assert.NoError(t, err)
	assert.False(t, m.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaStore_Save_LocationConflict(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	m := sampleMedia()
	mock.ExpectExec("INSERT INTO media").
		WithArgs(
			m.ID, m.Disk, m.Directory, m.Filename, m.Extension,
			m.MimeType, m.Size, []string{"gallery", "hero"}, "post", "42",
			m.CreatedAt, pgxmock.AnyArg(),
		).
		WillReturnError(errors.New(`duplicate key value violates unique constraint "media_location_unique" (SQLSTATE 23505)`))

	err := store.Save(context.Background(), m)

	assert.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaStore_Save_ExecError(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	m := sampleMedia()
	mock.ExpectExec("INSERT INTO media").
		WithArgs(
			m.ID, m.Disk, m.Directory, m.Filename, m.Extension,
			m.MimeType, m.Size, []string{"gallery", "hero"}, "post", "42",
			m.CreatedAt, pgxmock.AnyArg(),
		).
		WillReturnError(errors.New("db connection lost"))

	err := store.Save(context.Background(), m)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "save media")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// SaveMany
// ---------------------------------------------------------------------------

func TestMediaStore_SaveMany_CommitsBatch(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	m1 := sampleMedia()
	m2 := sampleMedia()
	m2.ID = "media-2"
	m2.Filename = "banner-2"

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO media").
		WithArgs(
			m1.ID, m1.Disk, m1.Directory, m1.Filename, m1.Extension,
			m1.MimeType, m1.Size, []string{"gallery", "hero"}, "post", "42",
			m1.CreatedAt, pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO media").
		WithArgs(
			m2.ID, m2.Disk, m2.Directory, m2.Filename, m2.Extension,
			m2.MimeType, m2.Size, []string{"gallery", "hero"}, "post", "42",
			m2.CreatedAt, pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := store.SaveMany(context.Background(), []*mediable.Media{m1, m2})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaStore_SaveMany_RollsBackOnError(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	m1 := sampleMedia()
	m2 := sampleMedia()
	m2.ID = "media-2"

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO media").
		WithArgs(
			m1.ID, m1.Disk, m1.Directory, m1.Filename, m1.Extension,
			m1.MimeType, m1.Size, []string{"gallery", "hero"}, "post", "42",
			m1.CreatedAt, pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO media").
		WithArgs(
			m2.ID, m2.Disk, m2.Directory, m2.Filename, m2.Extension,
			m2.MimeType, m2.Size, []string{"gallery", "hero"}, "post", "42",
			m2.CreatedAt, pgxmock.AnyArg(),
		).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := store.SaveMany(context.Background(), []*mediable.Media{m1, m2})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "save media media-2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaStore_SaveMany_EmptyBatch_SkipsTransaction(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	err := store.SaveMany(context.Background(), nil)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestMediaStore_Delete_Success(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM media WHERE id").
		WithArgs("media-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := store.Delete(context.Background(), sampleMedia())

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaStore_Delete_NotFound(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM media WHERE id").
		WithArgs("media-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := store.Delete(context.Background(), sampleMedia())

	assert.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestMediaStore_Get_Success(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	m := sampleMedia()
	mock.ExpectQuery("SELECT .+ FROM media WHERE id").
		WithArgs("media-1").
		WillReturnRows(addMediaRow(pgxmock.NewRows(mediaRowColumns), m))

	result, err := store.Get(context.Background(), "media-1")

	require.NoError(t, err)
	assert.Equal(t, "media-1", result.ID)
	assert.Equal(t, "uploads", result.Disk)
	assert.Equal(t, "posts/2026/banner.jpg", result.StoragePath())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaStore_Get_NotFound(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM media WHERE id").
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	result, err := store.Get(context.Background(), "nonexistent")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaStore_Get_ScanError(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM media WHERE id").
		WithArgs("media-1").
		WillReturnError(errors.New("connection refused"))

	result, err := store.Get(context.Background(), "media-1")

	assert.Nil(t, result)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "scan media")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// SoftDelete
// ---------------------------------------------------------------------------

func TestMediaStore_SoftDelete_Success(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE media SET deleted_at").
		WithArgs(pgxmock.AnyArg(), "media-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.SoftDelete(context.Background(), "media-1")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaStore_SoftDelete_AlreadyDeleted(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE media SET deleted_at").
		WithArgs(pgxmock.AnyArg(), "media-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.SoftDelete(context.Background(), "media-1")

	assert.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// FindHostsWithMedia
// ---------------------------------------------------------------------------

func TestMediaStore_FindHostsWithMedia_WithTags(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT host_id, count\(\*\) OVER\(\) AS total_count FROM media WHERE host_type = \$1 AND host_id <> '' AND deleted_at IS NULL AND tags && \$2`).
		WithArgs("post", []string{"hero"}, 20, 0).
		WillReturnRows(
			pgxmock.NewRows([]string{"host_id", "total_count"}).
				AddRow("42", 2).
				AddRow("43", 2),
		)

	hosts, total, err := store.FindHostsWithMedia(context.Background(), "post", mediable.NewTagSet("hero"), false, 0, 20)

	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []mediable.HostRef{
		{Type: "post", ID: "42"},
		{Type: "post", ID: "43"},
	}, hosts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaStore_FindHostsWithMedia_MatchAllUsesContainment(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	mock.ExpectQuery(`AND tags @> \$2`).
		WithArgs("post", []string{"gallery", "hero"}, 10, 5).
		WillReturnRows(pgxmock.NewRows([]string{"host_id", "total_count"}).AddRow("42", 6))

	hosts, total, err := store.FindHostsWithMedia(context.Background(), "post", mediable.NewTagSet("hero", "gallery"), true, 5, 10)

	require.NoError(t, err)
	assert.Equal(t, 6, total)
	require.Len(t, hosts, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaStore_FindHostsWithMedia_NoTags_MatchesAnyMedia(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT host_id, count\(\*\) OVER\(\) AS total_count FROM media WHERE host_type = \$1 AND host_id <> '' AND deleted_at IS NULL GROUP BY host_id`).
		WithArgs("post", 20, 0).
		WillReturnRows(pgxmock.NewRows([]string{"host_id", "total_count"}).AddRow("42", 1))

	hosts, total, err := store.FindHostsWithMedia(context.Background(), "post", mediable.NewTagSet(), false, 0, 20)

	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, hosts, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaStore_FindHostsWithMedia_QueryError(t *testing.T) {
	store, mock := setupStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT host_id").
		WithArgs("post", 20, 0).
		WillReturnError(errors.New("query canceled"))

	hosts, total, err := store.FindHostsWithMedia(context.Background(), "post", mediable.NewTagSet(), false, 0, 20)

	assert.Nil(t, hosts)
	assert.Zero(t, total)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "query hosts with media")
	assert.NoError(t, mock.ExpectationsWereMet())
}
