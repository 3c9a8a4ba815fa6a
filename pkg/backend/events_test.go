package backend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStatsFrame(t *testing.T) {
	ev, err := decodeFrame([]byte(`{"event":"simulation_stats","payload":{"data":{"simulation_time":120}}}`))
	require.NoError(t, err)

	stats, ok := ev.(StatsEvent)
	require.True(t, ok)
	assert.Contains(t, stats.Raw, "data")
}

func TestDecodeDataFrameAliasesStats(t *testing.T) {
	ev, err := decodeFrame([]byte(`{"event":"simulation_data","payload":{"simulation_time":5}}`))
	require.NoError(t, err)
	_, ok := ev.(StatsEvent)
	assert.True(t, ok)
}

func TestDecodeStatusFrame(t *testing.T) {
	ev, err := decodeFrame([]byte(`{"event":"simulation_status","payload":{
		"status":"completed","reason":"end_time_reached","error":"",
		"completed_at":"2026-02-11T10:30:00Z"}}`))
	require.NoError(t, err)

	status, ok := ev.(StatusEvent)
	require.True(t, ok)
	assert.Equal(t, "completed", status.Status)
	assert.Equal(t, "completed", status.EffectiveState())
	assert.Equal(t, "end_time_reached", status.Reason)
	require.NotNil(t, status.CompletedAt)
	assert.Equal(t, time.Date(2026, 2, 11, 10, 30, 0, 0, time.UTC), status.CompletedAt.UTC())
}

func TestDecodeStatusFrameStateFallback(t *testing.T) {
	ev, err := decodeFrame([]byte(`{"event":"simulation_status","payload":{"state":"paused"}}`))
	require.NoError(t, err)

	status := ev.(StatusEvent)
	assert.Empty(t, status.Status)
	assert.Equal(t, "paused", status.EffectiveState())
}

func TestDecodeSessionCompletedFrame(t *testing.T) {
	ev, err := decodeFrame([]byte(`{"event":"session_completed","payload":{
		"reason":"end_time_reached","can_analyze":true}}`))
	require.NoError(t, err)

	completed, ok := ev.(SessionCompletedEvent)
	require.True(t, ok)
	assert.True(t, completed.CanAnalyze)
	assert.Equal(t, "end_time_reached", completed.Reason)
	assert.Nil(t, completed.CompletedAt)
}

func TestDecodeZoomFrames(t *testing.T) {
	ev, err := decodeFrame([]byte(`{"event":"zoom_changed","payload":{"processId":42,"zoomLevel":144}}`))
	require.NoError(t, err)
	zoom := ev.(ZoomChangedEvent)
	assert.Equal(t, 42, zoom.ProcessID)
	assert.Equal(t, 144.0, zoom.ZoomLevel)

	ev, err = decodeFrame([]byte(`{"event":"view_centered","payload":{"processId":42}}`))
	require.NoError(t, err)
	centered := ev.(ViewCenteredEvent)
	assert.Equal(t, 42, centered.ProcessID)
	assert.Nil(t, centered.ZoomLevel)

	ev, err = decodeFrame([]byte(`{"event":"view_centered","payload":{"processId":42,"zoomLevel":80.5}}`))
	require.NoError(t, err)
	centered = ev.(ViewCenteredEvent)
	require.NotNil(t, centered.ZoomLevel)
	assert.Equal(t, 80.5, *centered.ZoomLevel)
}

func TestDecodeConnectionStatusFrame(t *testing.T) {
	ev, err := decodeFrame([]byte(`{"event":"connection_status","payload":{"state":"connected"}}`))
	require.NoError(t, err)

	conn, ok := ev.(ConnectionEvent)
	require.True(t, ok)
	assert.Equal(t, ConnConnected, conn.State)
	assert.Empty(t, conn.Detail)

	ev, err = decodeFrame([]byte(`{"event":"connection_status","payload":{"state":"error","detail":"engine restarting"}}`))
	require.NoError(t, err)
	conn = ev.(ConnectionEvent)
	assert.Equal(t, ConnError, conn.State)
	assert.Equal(t, "engine restarting", conn.Detail)
}

func TestDecodeUnknownEventSkipped(t *testing.T) {
	ev, err := decodeFrame([]byte(`{"event":"weather_report","payload":{"rain":true}}`))
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestDecodeMalformedFrame(t *testing.T) {
	_, err := decodeFrame([]byte(`{not json`))
	assert.Error(t, err)
}

func TestDeriveStreamURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8080/api/simulation/stream", deriveStreamURL("http://localhost:8080"))
	assert.Equal(t, "wss://sim.example.com/api/simulation/stream", deriveStreamURL("https://sim.example.com/"))
}
