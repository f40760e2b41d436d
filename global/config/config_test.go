package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyOverridesMergesWithDefaults(t *testing.T) {
	saved := Global
	defer func() { Global = saved }()

	ApplyOverrides(map[string]any{
		"port": 9090,
		"ordering": map[string]any{
			"gap_timeout_ms":  1000.0, // JSON numbers arrive as float64
			"max_buffer_size": 16,
		},
		"redis": map[string]any{"addr": "10.0.0.5:6379"},
	})

	require.Equal(t, 9090, Global.Port)
	require.Equal(t, int64(1000), Global.Ordering.GapTimeoutMs)
	require.Equal(t, 16, Global.Ordering.MaxBufferSize)
	// untouched knobs keep their defaults
	require.Equal(t, saved.Ordering.InactivityTimeoutMs, Global.Ordering.InactivityTimeoutMs)
	require.Equal(t, saved.Ordering.SweepIntervalMs, Global.Ordering.SweepIntervalMs)
	require.Equal(t, "10.0.0.5:6379", Global.Redis.Addr)
	require.Equal(t, saved.Mongo.URI, Global.Mongo.URI)
	require.Equal(t, saved.Gateway, Global.Gateway)
}

func TestApplyOverridesBadInputKeepsGlobal(t *testing.T) {
	saved := Global
	defer func() { Global = saved }()

	ApplyOverrides(nil)
	require.Equal(t, saved, Global)

	ApplyOverrides(map[string]any{"port": "not-a-number-at-all"})
	// weakly typed decode cannot parse this; Global must survive
	require.Equal(t, saved.Port, Global.Port)
}
