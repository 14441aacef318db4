package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/hoffnungslabor/mediable/pkg/kafka"
	"github.com/hoffnungslabor/mediable/pkg/mediable"
)

// Kafka topics for media association events. Association events aggregate on
// the host, deletion events on the media record itself.
var (
	TopicMediaAttached   = pkgkafka.Topic("media", "attached")
	TopicMediaSynced     = pkgkafka.Topic("media", "synced")
	TopicMediaDetached   = pkgkafka.Topic("media", "detached")
	TopicMediaDeleted    = pkgkafka.Topic("media", "deleted")
	TopicHostMediaPurged = pkgkafka.Topic("host", "media_purged")
	TopicHostDeleted     = pkgkafka.Topic("host", "deleted")
)

// Aggregate type constants.
const (
	AggregateTypeMedia = "media"
	AggregateTypeHost  = "host"
)

// Source identifier for events originating from the mediable service.
const SourceMediableService = "mediable-service"

// MediaAttachedData is the payload for a media.attached event.
type MediaAttachedData struct {
	HostType string   `json:"host_type"`
	HostID   string   `json:"host_id"`
	MediaIDs []string `json:"media_ids"`
	Tags     []string `json:"tags"`
}

// MediaSyncedData is the payload for a media.synced event.
type MediaSyncedData struct {
	HostType string   `json:"host_type"`
	HostID   string   `json:"host_id"`
	MediaIDs []string `json:"media_ids"`
	Tags     []string `json:"tags"`
}

// MediaDetachedData is the payload for a media.detached event. MediaIDs is
// empty when a whole tag was cleared, Tags is empty when the listed media
// were removed from every tag.
type MediaDetachedData struct {
	HostType string   `json:"host_type"`
	HostID   string   `json:"host_id"`
	MediaIDs []string `json:"media_ids,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// MediaDeletedData is the payload for a media.deleted event.
type MediaDeletedData struct {
	ID   string `json:"id"`
	Mode string `json:"mode"`
}

// HostMediaPurgedData is the payload for a host.media_purged event, emitted
// after a host deletion cascaded into its media records.
type HostMediaPurgedData struct {
	HostType    string `json:"host_type"`
	HostID      string `json:"host_id"`
	SoftDelete  bool   `json:"soft_delete"`
	PurgedCount int    `json:"purged_count"`
}

// Deletion modes carried by media.deleted events.
const (
	DeleteModeSoft = "soft"
	DeleteModeHard = "hard"
)

// Producer publishes media association events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the mediable service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishMediaAttached publishes a media.attached event.
func (p *Producer) PublishMediaAttached(ctx context.Context, host mediable.HostRef, mediaIDs, tags []string) error {
	data := MediaAttachedData{
		HostType: host.Type,
		HostID:   host.ID,
		MediaIDs: mediaIDs,
		Tags:     tags,
	}

	event, err := pkgkafka.NewEvent(TopicMediaAttached, host.String(), AggregateTypeHost, SourceMediableService, data)
	if err != nil {
		return fmt.Errorf("create media.attached event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicMediaAttached, event); err != nil {
		return fmt.Errorf("publish media.attached event: %w", err)
	}

	p.logger.DebugContext(ctx, "published media.attached event",
		slog.String("host_type", host.Type),
		slog.String("host_id", host.ID),
		slog.Int("media_count", len(mediaIDs)),
	)

	return nil
}

// PublishMediaSynced publishes a media.synced event.
func (p *Producer) PublishMediaSynced(ctx context.Context, host mediable.HostRef, mediaIDs, tags []string) error {
	data := MediaSyncedData{
		HostType: host.Type,
		HostID:   host.ID,
		MediaIDs: mediaIDs,
		Tags:     tags,
	}

	event, err := pkgkafka.NewEvent(TopicMediaSynced, host.String(), AggregateTypeHost, SourceMediableService, data)
	if err != nil {
		return fmt.Errorf("create media.synced event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicMediaSynced, event); err != nil {
		return fmt.Errorf("publish media.synced event: %w", err)
	}

	p.logger.DebugContext(ctx, "published media.synced event",
		slog.String("host_type", host.Type),
		slog.String("host_id", host.ID),
		slog.Int("media_count", len(mediaIDs)),
	)

	return nil
}

// PublishMediaDetached publishes a media.detached event.
func (p *Producer) PublishMediaDetached(ctx context.Context, host mediable.HostRef, mediaIDs, tags []string) error {
	data := MediaDetachedData{
		HostType: host.Type,
		HostID:   host.ID,
		MediaIDs: mediaIDs,
		Tags:     tags,
	}

	event, err := pkgkafka.NewEvent(TopicMediaDetached, host.String(), AggregateTypeHost, SourceMediableService, data)
	if err != nil {
		return fmt.Errorf("create media.detached event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicMediaDetached, event); err != nil {
		return fmt.Errorf("publish media.detached event: %w", err)
	}

	p.logger.DebugContext(ctx, "published media.detached event",
		slog.String("host_type", host.Type),
		slog.String("host_id", host.ID),
	)

	return nil
}

// PublishMediaDeleted publishes a media.deleted event.
func (p *Producer) PublishMediaDeleted(ctx context.Context, id string, soft bool) error {
	mode := DeleteModeHard
	if soft {
		mode = DeleteModeSoft
	}

	data := MediaDeletedData{ID: id, Mode: mode}

	event, err := pkgkafka.NewEvent(TopicMediaDeleted, id, AggregateTypeMedia, SourceMediableService, data)
	if err != nil {
		return fmt.Errorf("create media.deleted event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicMediaDeleted, event); err != nil {
		return fmt.Errorf("publish media.deleted event: %w", err)
	}

	p.logger.DebugContext(ctx, "published media.deleted event",
		slog.String("media_id", id),
		slog.String("mode", mode),
	)

	return nil
}

// PublishHostMediaPurged publishes a host.media_purged event.
func (p *Producer) PublishHostMediaPurged(ctx context.Context, host mediable.HostRef, soft bool, purged int) error {
	data := HostMediaPurgedData{
		HostType:    host.Type,
		HostID:      host.ID,
		SoftDelete:  soft,
		PurgedCount: purged,
	}

	event, err := pkgkafka.NewEvent(TopicHostMediaPurged, host.String(), AggregateTypeHost, SourceMediableService, data)
	if err != nil {
		return fmt.Errorf("create host.media_purged event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicHostMediaPurged, event); err != nil {
		return fmt.Errorf("publish host.media_purged event: %w", err)
	}

	p.logger.DebugContext(ctx, "published host.media_purged event",
		slog.String("host_type", host.Type),
		slog.String("host_id", host.ID),
		slog.Int("purged_count", purged),
	)

	return nil
}
