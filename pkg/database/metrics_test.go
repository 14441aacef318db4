package database

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ prometheus.Collector = (*PoolStatsCollector)(nil)

// describePool drains one Describe pass. A nil pool is fine here; only
// Collect samples live pool stats.
func describePool(t *testing.T, c *PoolStatsCollector) []*prometheus.Desc {
	t.Helper()
	ch := make(chan *prometheus.Desc, 20)
	c.Describe(ch)
	close(ch)

	descs := make([]*prometheus.Desc, 0, 20)
	for d := range ch {
		descs = append(descs, d)
	}
	return descs
}

func TestPoolStatsCollector_DescribesEveryPoolStat(t *testing.T) {
	c := NewPoolStatsCollector(nil, "mediable")
	require.NotNil(t, c)
	assert.Equal(t, "mediable", c.service)

	descs := describePool(t, c)
	require.Len(t, descs, 12)

	var all strings.Builder
	for _, d := range descs {
		all.WriteString(d.String())
	}

	names := []string{
		"db_pool_acquired_connections",
		"db_pool_idle_connections",
		"db_pool_total_connections",
		"db_pool_max_connections",
		"db_pool_constructing_connections",
		"db_pool_acquire_count_total",
		"db_pool_acquire_duration_seconds_total",
		"db_pool_canceled_acquire_count_total",
		"db_pool_empty_acquire_count_total",
		"db_pool_new_connections_total",
		"db_pool_max_lifetime_destroy_total",
		"db_pool_max_idle_destroy_total",
	}
	for _, name := range names {
		assert.Contains(t, all.String(), name)
	}
	assert.Contains(t, all.String(), "service", "metrics carry the service label")
}
