package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func captureRoot(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := Root()
	t.Cleanup(func() { SetDefault(prev) })

	var buf bytes.Buffer
	SetDefault(NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: levelMaxVerbosity})))
	return &buf
}

func TestModuleFiltering(t *testing.T) {
	buf := captureRoot(t)
	DisableModule(ReplayMonitoring)

	Debug(ReplayMonitoring, "hidden")
	require.Zero(t, buf.Len())

	EnableModule(ReplayMonitoring)
	t.Cleanup(func() { DisableModule(ReplayMonitoring) })
	Debug(ReplayMonitoring, "visible", "block", 7)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "visible", rec["msg"])
	require.Equal(t, ReplayMonitoring, rec["module"])
	require.EqualValues(t, 7, rec["block"])
}

func TestInfoIgnoresModuleFilter(t *testing.T) {
	buf := captureRoot(t)
	DisableModule(PoolMonitoring)

	Info(PoolMonitoring, "refilled")
	require.Contains(t, buf.String(), "refilled")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warning")
	require.NoError(t, err)
	require.Equal(t, LevelWarn, lvl)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}

func TestEnableModulesAll(t *testing.T) {
	EnableModules("all")
	t.Cleanup(func() {
		for _, m := range []string{PoolMonitoring, ReplayMonitoring, StorageMonitoring, StateMonitoring, NodeMonitoring} {
			DisableModule(m)
		}
	})
	require.True(t, isModuleEnabled(StorageMonitoring))
	require.True(t, isModuleEnabled(StateMonitoring))
}
