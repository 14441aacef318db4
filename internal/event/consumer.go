package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/hoffnungslabor/mediable/pkg/errors"
	pkgkafka "github.com/hoffnungslabor/mediable/pkg/kafka"
	"github.com/hoffnungslabor/mediable/pkg/mediable"
)

// HostDeletedData is the payload of a host.deleted event published by the
// services that own host records.
type HostDeletedData struct {
	HostType   string `json:"host_type"`
	HostID     string `json:"host_id"`
	SoftDelete bool   `json:"soft_delete"`
}

// HostCascade applies the configured cascade policy after a host was deleted.
type HostCascade interface {
	HostDeleted(ctx context.Context, host mediable.HostRef, soft bool) (int, error)
}

// Consumer handles Kafka events that affect media associations.
type Consumer struct {
	cascade HostCascade
	logger  *slog.Logger
}

// NewConsumer creates a new event consumer for the mediable service.
func NewConsumer(cascade HostCascade, logger *slog.Logger) *Consumer {
	return &Consumer{
		cascade: cascade,
		logger:  logger,
	}
}

// Handle processes a Kafka event based on its type.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicHostDeleted:
		return c.handleHostDeleted(ctx, event)
	default:
		c.logger.WarnContext(ctx, "unhandled event type",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

func (c *Consumer) handleHostDeleted(ctx context.Context, event *pkgkafka.Event) error {
	var data HostDeletedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal host.deleted event: %w", err)
	}

	if data.HostType == "" || data.HostID == "" {
		c.logger.WarnContext(ctx, "host.deleted event missing host reference",
			slog.String("event_id", event.EventID),
		)
		return nil
	}

	host := mediable.HostRef{Type: data.HostType, ID: data.HostID}

	purged, err := c.cascade.HostDeleted(ctx, host, data.SoftDelete)
	if err != nil {
		// Deletions of host types this deployment does not manage are
		// skipped rather than retried into the DLQ.
		if errors.Is(err, apperrors.ErrInvalidInput) {
			c.logger.WarnContext(ctx, "skipping host.deleted event",
				slog.String("host_type", data.HostType),
				slog.String("host_id", data.HostID),
				slog.String("reason", err.Error()),
			)
			return nil
		}
		return fmt.Errorf("cascade deletion of host %s: %w", host, err)
	}

	c.logger.InfoContext(ctx, "cascaded host deletion",
		slog.String("host_type", data.HostType),
		slog.String("host_id", data.HostID),
		slog.Bool("soft_delete", data.SoftDelete),
		slog.Int("purged_count", purged),
	)

	return nil
}
