package event

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hoffnungslabor/mediable/pkg/errors"
	pkgkafka "github.com/hoffnungslabor/mediable/pkg/kafka"
	"github.com/hoffnungslabor/mediable/pkg/mediable"
)

type cascadeCall struct {
	host mediable.HostRef
	soft bool
}

type fakeCascade struct {
	calls  []cascadeCall
	purged int
	err    error
}

func (f *fakeCascade) HostDeleted(_ context.Context, host mediable.HostRef, soft bool) (int, error) {
	f.calls = append(f.calls, cascadeCall{host: host, soft: soft})
	if f.err != nil {
		return 0, f.err
	}
	return f.purged, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func hostDeletedEvent(t *testing.T, data HostDeletedData) *pkgkafka.Event {
	t.Helper()

	event, err := pkgkafka.NewEvent(TopicHostDeleted, data.HostType+":"+data.HostID, AggregateTypeHost, "test", data)
	require.NoError(t, err)

	return event
}

func TestHandle_HostDeleted_CallsCascade(t *testing.T) {
	cascade := &fakeCascade{purged: 3}
	consumer := NewConsumer(cascade, testLogger())

	event := hostDeletedEvent(t, HostDeletedData{HostType: "post", HostID: "42"})

	err := consumer.Handle(context.Background(), event)

	require.NoError(t, err)
	require.Len(t, cascade.calls, 1)
	assert.Equal(t, mediable.HostRef{Type: "post", ID: "42"}, cascade.calls[0].host)
	assert.False(t, cascade.calls[0].soft)
}

func TestHandle_HostDeleted_SoftDeletePropagated(t *testing.T) {
	cascade := &fakeCascade{}
	consumer := NewConsumer(cascade, testLogger())

	event := hostDeletedEvent(t, HostDeletedData{HostType: "post", HostID: "42", SoftDelete: true})

	err := consumer.Handle(context.Background(), event)

	require.NoError(t, err)
	require.Len(t, cascade.calls, 1)
	assert.True(t, cascade.calls[0].soft)
}

func TestHandle_UnknownEventType_Ignored(t *testing.T) {
	cascade := &fakeCascade{}
	consumer := NewConsumer(cascade, testLogger())

	event, err := pkgkafka.NewEvent(TopicMediaAttached, "post:42", AggregateTypeHost, "test", MediaAttachedData{})
	require.NoError(t, err)

	err = consumer.Handle(context.Background(), event)

	require.NoError(t, err)
	assert.Empty(t, cascade.calls)
}

func TestHandle_HostDeleted_MalformedPayload(t *testing.T) {
	cascade := &fakeCascade{}
	consumer := NewConsumer(cascade, testLogger())

	event := &pkgkafka.Event{
		EventType: TopicHostDeleted,
		Data:      json.RawMessage(`{`),
	}

	err := consumer.Handle(context.Background(), event)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal host.deleted event")
	assert.Empty(t, cascade.calls)
}

func TestHandle_HostDeleted_MissingHostReference_Skipped(t *testing.T) {
	cascade := &fakeCascade{}
	consumer := NewConsumer(cascade, testLogger())

	event := hostDeletedEvent(t, HostDeletedData{HostType: "post"})

	err := consumer.Handle(context.Background(), event)

	require.NoError(t, err)
	assert.Empty(t, cascade.calls)
}

func TestHandle_HostDeleted_CascadeError(t *testing.T) {
	cascade := &fakeCascade{err: errors.New("store offline")}
	consumer := NewConsumer(cascade, testLogger())

	event := hostDeletedEvent(t, HostDeletedData{HostType: "post", HostID: "42"})

	err := consumer.Handle(context.Background(), event)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cascade deletion of host post:42")
	assert.Contains(t, err.Error(), "store offline")
}

func TestHandle_HostDeleted_UnmanagedHostType_Skipped(t *testing.T) {
	cascade := &fakeCascade{err: apperrors.InvalidInput(`host type "order" is not managed`)}
	consumer := NewConsumer(cascade, testLogger())

	event := hostDeletedEvent(t, HostDeletedData{HostType: "order", HostID: "7"})

	err := consumer.Handle(context.Background(), event)

	require.NoError(t, err)
	require.Len(t, cascade.calls, 1)
}
