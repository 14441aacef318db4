package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	apperrors "github.com/hoffnungslabor/mediable/pkg/errors"
	"github.com/hoffnungslabor/mediable/pkg/mediable"

	"github.com/hoffnungslabor/mediable/internal/config"
	"github.com/hoffnungslabor/mediable/internal/event"
	"github.com/hoffnungslabor/mediable/internal/repository"
)

// safeIDPattern matches only alphanumeric characters, hyphens, and underscores.
var safeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// AttachmentService implements the business logic for media attachment
// operations. Each request runs against a fresh association session for the
// host it addresses; sessions are never shared across requests.
type AttachmentService struct {
	store    repository.MediaStore
	producer *event.Producer
	cfg      *config.Config
	logger   *slog.Logger
}

// NewAttachmentService creates a new attachment service.
func NewAttachmentService(
	store repository.MediaStore,
	producer *event.Producer,
	cfg *config.Config,
	logger *slog.Logger,
) *AttachmentService {
	return &AttachmentService{
		store:    store,
		producer: producer,
		cfg:      cfg,
		logger:   logger,
	}
}

// AttachInput holds the media references and tags for attach and sync
// operations. References may be existing record IDs, new inline records, or
// a mix of both.
type AttachInput struct {
	MediaIDs []string
	Media    []*mediable.Media
	Tags     []string
}

// refs converts the input into media references, skipping empty entries.
func (in *AttachInput) refs() []mediable.MediaRef {
	refs := make([]mediable.MediaRef, 0, len(in.MediaIDs)+len(in.Media))
	for _, id := range in.MediaIDs {
		if id == "" {
			continue
		}
		refs = append(refs, mediable.RefID(id))
	}
	for _, m := range in.Media {
		if m == nil {
			continue
		}
		refs = append(refs, mediable.Ref(m))
	}
	return refs
}

// resolvedIDs collects the record IDs covered by the input. Inline records
// receive generated IDs during attach, so this is only complete after the
// session operation succeeded.
func (in *AttachInput) resolvedIDs() []string {
	ids := make([]string, 0, len(in.MediaIDs)+len(in.Media))
	for _, id := range in.MediaIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	for _, m := range in.Media {
		if m != nil && m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func (s *AttachmentService) validateHost(host mediable.HostRef) error {
	if !safeIDPattern.MatchString(host.Type) || !safeIDPattern.MatchString(host.ID) {
		return apperrors.InvalidInput("host reference contains invalid characters")
	}
	if !s.cfg.HostTypeAllowed(host.Type) {
		return apperrors.InvalidInput(fmt.Sprintf("host type %q is not managed by this service", host.Type))
	}
	return nil
}

func (s *AttachmentService) session(host mediable.HostRef) *mediable.Attachments {
	return mediable.NewAttachments(s.store, host, s.cfg.OptionsForHost(host.Type))
}

// AttachMedia attaches the referenced media to the host under the given tags
// and returns the host's full media relation afterwards.
func (s *AttachmentService) AttachMedia(ctx context.Context, host mediable.HostRef, input *AttachInput) ([]*mediable.Media, error) {
	if err := s.validateHost(host); err != nil {
		return nil, err
	}

	refs := input.refs()
	if len(refs) == 0 {
		return nil, apperrors.InvalidInput("at least one media reference is required")
	}

	tags := mediable.NewTagSet(input.Tags...)
	if tags.IsEmpty() {
		return nil, apperrors.InvalidInput("at least one tag is required")
	}

	session := s.session(host)
	if err := session.Attach(ctx, refs, tags.Values()...); err != nil {
		return nil, fmt.Errorf("attach media: %w", err)
	}

	attached := input.resolvedIDs()
	if err := s.producer.PublishMediaAttached(ctx, host, attached, tags.Values()); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish media.attached event",
			slog.String("host_type", host.Type),
			slog.String("host_id", host.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "media attached",
		slog.String("host_type", host.Type),
		slog.String("host_id", host.ID),
		slog.Int("media_count", len(attached)),
		slog.String("tags", strings.Join(tags.Values(), ",")),
	)

	media, err := session.Media(ctx)
	if err != nil {
		return nil, fmt.Errorf("list media after attach: %w", err)
	}
	return media, nil
}

// SyncMedia replaces the media currently under the given tags with the
// referenced ones and returns the host's full media relation afterwards. An
// empty reference list clears the tags without attaching a replacement.
func (s *AttachmentService) SyncMedia(ctx context.Context, host mediable.HostRef, input *AttachInput) ([]*mediable.Media, error) {
	if err := s.validateHost(host); err != nil {
		return nil, err
	}

	tags := mediable.NewTagSet(input.Tags...)
	if tags.IsEmpty() {
		return nil, apperrors.InvalidInput("at least one tag is required")
	}

	session := s.session(host)
	if err := session.Sync(ctx, input.refs(), tags.Values()...); err != nil {
		return nil, fmt.Errorf("sync media: %w", err)
	}

	synced := input.resolvedIDs()
	if err := s.producer.PublishMediaSynced(ctx, host, synced, tags.Values()); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish media.synced event",
			slog.String("host_type", host.Type),
			slog.String("host_id", host.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "media synced",
		slog.String("host_type", host.Type),
		slog.String("host_id", host.ID),
		slog.Int("media_count", len(synced)),
		slog.String("tags", strings.Join(tags.Values(), ",")),
	)

	media, err := session.Media(ctx)
	if err != nil {
		return nil, fmt.Errorf("list media after sync: %w", err)
	}
	return media, nil
}

// ListMedia returns the host's media, filtered by tags when given. With
// matchAll every tag must be present on a record; otherwise one suffices.
func (s *AttachmentService) ListMedia(ctx context.Context, host mediable.HostRef, tagList []string, matchAll bool) ([]*mediable.Media, error) {
	if err := s.validateHost(host); err != nil {
		return nil, err
	}

	session := s.session(host)
	tags := mediable.NewTagSet(tagList...)

	var (
		media []*mediable.Media
		err   error
	)
	switch {
	case tags.IsEmpty():
		media, err = session.Media(ctx)
	case matchAll:
		media, err = session.MediaMatchAll(ctx, tags.Values()...)
	default:
		media, err = session.Media(ctx, tags.Values()...)
	}
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	return media, nil
}

// FirstMedia returns the host's first media record under creation order,
// optionally restricted to records matching any of the given tags.
func (s *AttachmentService) FirstMedia(ctx context.Context, host mediable.HostRef, tagList []string) (*mediable.Media, error) {
	if err := s.validateHost(host); err != nil {
		return nil, err
	}

	media, err := s.session(host).FirstMedia(ctx, mediable.NewTagSet(tagList...).Values()...)
	if err != nil {
		return nil, fmt.Errorf("first media: %w", err)
	}
	return media, nil
}

// LastMedia returns the host's last media record under creation order,
// optionally restricted to records matching any of the given tags.
func (s *AttachmentService) LastMedia(ctx context.Context, host mediable.HostRef, tagList []string) (*mediable.Media, error) {
	if err := s.validateHost(host); err != nil {
		return nil, err
	}

	media, err := s.session(host).LastMedia(ctx, mediable.NewTagSet(tagList...).Values()...)
	if err != nil {
		return nil, fmt.Errorf("last media: %w", err)
	}
	return media, nil
}

// ListMediaByTag returns the host's media grouped into one bucket per tag.
func (s *AttachmentService) ListMediaByTag(ctx context.Context, host mediable.HostRef) (map[string][]*mediable.Media, error) {
	if err := s.validateHost(host); err != nil {
		return nil, err
	}

	buckets, err := s.session(host).MediaByTag(ctx)
	if err != nil {
		return nil, fmt.Errorf("list media by tag: %w", err)
	}
	return buckets, nil
}

// GetMediaTags returns the authoritative tag set of one of the host's media
// records, bypassing any cached view.
func (s *AttachmentService) GetMediaTags(ctx context.Context, host mediable.HostRef, mediaID string) (mediable.TagSet, error) {
	if err := s.validateHost(host); err != nil {
		return nil, err
	}

	media, err := s.store.Get(ctx, mediaID)
	if err != nil {
		return nil, fmt.Errorf("get media for tags: %w", err)
	}
	if media.Host != host {
		return nil, apperrors.NotFound("media", mediaID)
	}

	tags, err := s.session(host).TagsForMedia(ctx, media)
	if err != nil {
		return nil, fmt.Errorf("get media tags: %w", err)
	}
	return tags, nil
}

// DetachMedia removes tags from one of the host's media records. Without
// tags the record's entire tag set is cleared. The record itself survives.
func (s *AttachmentService) DetachMedia(ctx context.Context, host mediable.HostRef, mediaID string, tagList []string) error {
	if err := s.validateHost(host); err != nil {
		return err
	}

	media, err := s.store.Get(ctx, mediaID)
	if err != nil {
		return fmt.Errorf("get media for detach: %w", err)
	}
	if media.Host != host {
		return apperrors.NotFound("media", mediaID)
	}

	tags := mediable.NewTagSet(tagList...)
	if err := s.session(host).Detach(ctx, media, tags.Values()...); err != nil {
		return fmt.Errorf("detach media: %w", err)
	}

	if err := s.producer.PublishMediaDetached(ctx, host, []string{mediaID}, tags.Values()); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish media.detached event",
			slog.String("host_type", host.Type),
			slog.String("host_id", host.ID),
			slog.String("media_id", mediaID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "media detached",
		slog.String("host_type", host.Type),
		slog.String("host_id", host.ID),
		slog.String("media_id", mediaID),
		slog.String("tags", strings.Join(tags.Values(), ",")),
	)

	return nil
}

// DetachTags removes the given tags from every media record of the host that
// carries at least one of them.
func (s *AttachmentService) DetachTags(ctx context.Context, host mediable.HostRef, tagList []string) error {
	if err := s.validateHost(host); err != nil {
		return err
	}

	tags := mediable.NewTagSet(tagList...)
	if tags.IsEmpty() {
		return apperrors.InvalidInput("at least one tag is required")
	}

	if err := s.session(host).DetachTags(ctx, tags.Values()...); err != nil {
		return fmt.Errorf("detach tags: %w", err)
	}

	if err := s.producer.PublishMediaDetached(ctx, host, nil, tags.Values()); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish media.detached event",
			slog.String("host_type", host.Type),
			slog.String("host_id", host.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "tags detached",
		slog.String("host_type", host.Type),
		slog.String("host_id", host.ID),
		slog.String("tags", strings.Join(tags.Values(), ",")),
	)

	return nil
}

// GetMedia retrieves a live media record by its ID.
func (s *AttachmentService) GetMedia(ctx context.Context, id string) (*mediable.Media, error) {
	media, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get media by id: %w", err)
	}
	return media, nil
}

// DeleteMedia removes a media record. A soft delete hides the record from
// every association query; a hard delete removes the row, including rows
// that were previously soft-deleted.
func (s *AttachmentService) DeleteMedia(ctx context.Context, id string, soft bool) error {
	if soft {
		if err := s.store.SoftDelete(ctx, id); err != nil {
			return fmt.Errorf("soft delete media: %w", err)
		}
	} else {
		if err := s.store.Delete(ctx, &mediable.Media{ID: id}); err != nil {
			return fmt.Errorf("delete media: %w", err)
		}
	}

	if err := s.producer.PublishMediaDeleted(ctx, id, soft); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish media.deleted event",
			slog.String("media_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "media deleted",
		slog.String("media_id", id),
		slog.Bool("soft", soft),
	)

	return nil
}

// ListHostsWithMedia returns a page of hosts of the given type that have at
// least one live media record matching the tag filter, plus the total count.
func (s *AttachmentService) ListHostsWithMedia(ctx context.Context, hostType string, tagList []string, matchAll bool, page, perPage int) ([]mediable.HostRef, int, error) {
	if !safeIDPattern.MatchString(hostType) {
		return nil, 0, apperrors.InvalidInput("host type contains invalid characters")
	}
	if !s.cfg.HostTypeAllowed(hostType) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("host type %q is not managed by this service", hostType))
	}

	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	offset := (page - 1) * perPage

	hosts, total, err := mediable.FindHostsWithMedia(ctx, s.store, hostType, mediable.NewTagSet(tagList...), matchAll, offset, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list hosts with media: %w", err)
	}
	return hosts, total, nil
}

// HostDeleted applies the cascade policy for the host's type after the host
// entity was removed and reports how many records were purged. When the host
// was only soft-deleted the cascade runs solely for types configured to
// detach on soft delete.
func (s *AttachmentService) HostDeleted(ctx context.Context, host mediable.HostRef, soft bool) (int, error) {
	if err := s.validateHost(host); err != nil {
		return 0, err
	}

	cascader := mediable.NewCascader(s.store, s.cfg.OptionsForHost(host.Type))

	purged, err := cascader.HostDeleted(ctx, host, soft)
	if err != nil {
		return purged, fmt.Errorf("cascade host deletion: %w", err)
	}

	if purged > 0 {
		if err := s.producer.PublishHostMediaPurged(ctx, host, soft, purged); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish host.media_purged event",
				slog.String("host_type", host.Type),
				slog.String("host_id", host.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "host deletion processed",
		slog.String("host_type", host.Type),
		slog.String("host_id", host.ID),
		slog.Bool("soft_delete", soft),
		slog.Int("purged_count", purged),
	)

	return purged, nil
}
