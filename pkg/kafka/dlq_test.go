package kafka

import (
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDLQTopic(t *testing.T) {
	require.Equal(t, "mediable.dlq", DLQTopicPrefix)

	assert.Equal(t, "mediable.dlq.mediable.host.deleted", DLQTopic("mediable.host.deleted"))
	assert.Equal(t, "mediable.dlq.media", DLQTopic("media"))
}

func headerValue(hs []kafka.Header, key string) (string, bool) {
	for _, h := range hs {
		if h.Key == key {
			return string(h.Value), true
		}
	}
	return "", false
}

func TestDLQHeaders_Provenance(t *testing.T) {
	msg := kafka.Message{
		Topic:     "mediable.host.deleted",
		Partition: 3,
		Offset:    1542,
		Headers:   []kafka.Header{{Key: "correlation_id", Value: []byte("corr-1")}},
	}

	hs := dlqHeaders(msg, errors.New("cascade failed: store unavailable"), "mediable-service")

	// Source headers survive so the correlation chain stays intact.
	v, ok := headerValue(hs, "correlation_id")
	require.True(t, ok)
	assert.Equal(t, "corr-1", v)

	for key, want := range map[string]string{
		"dlq.original_topic":     "mediable.host.deleted",
		"dlq.original_partition": "3",
		"dlq.original_offset":    "1542",
		"dlq.consumer_group":     "mediable-service",
		"dlq.error":              "cascade failed: store unavailable",
	} {
		v, ok := headerValue(hs, key)
		require.True(t, ok, "missing header %s", key)
		assert.Equal(t, want, v, key)
	}
}

func TestDLQHeaders_NilError(t *testing.T) {
	hs := dlqHeaders(kafka.Message{Topic: "mediable.host.deleted"}, nil, "mediable-service")

	_, ok := headerValue(hs, "dlq.error")
	assert.False(t, ok, "no error header without a final error")
}
