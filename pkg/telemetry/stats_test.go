package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/core/pkg/session"
)

func newSync(t *testing.T) (*Synchronizer, *session.Session) {
	t.Helper()
	sess := session.New("s1", "/runs/s1", "downtown")
	return NewSynchronizer(&fakeZoomClient{}, sess, Options{}), sess
}

func TestApplyStatsEnvelopeShape(t *testing.T) {
	s, sess := newSync(t)

	require.NoError(t, s.ApplyStatsUpdate(map[string]interface{}{
		"data": map[string]interface{}{
			"simulation_time": 120.0,
			"active_vehicles": 8.0,
			"avg_speed":       13.9,
			"throughput":      480.0,
		},
	}))

	snap := sess.Telemetry()
	assert.Equal(t, 120.0, snap.SimulatedTime)
	assert.Equal(t, 8, snap.RunningVehicles)
	assert.Equal(t, 13.9, snap.AverageSpeed)
	assert.Equal(t, 480.0, snap.Throughput)
	// untouched fields keep their defaults
	assert.Equal(t, session.DefaultZoomLevel, snap.ZoomLevel)
}

func TestApplyStatsFlatShape(t *testing.T) {
	s, sess := newSync(t)

	require.NoError(t, s.ApplyStatsUpdate(map[string]interface{}{
		"simulation_time": 60.0,
		"active_vehicles": 3.0,
		"zoom_level":      150.0,
	}))

	snap := sess.Telemetry()
	assert.Equal(t, 60.0, snap.SimulatedTime)
	assert.Equal(t, 3, snap.RunningVehicles)
	assert.Equal(t, 150.0, snap.ZoomLevel)
}

func TestApplyStatsLegacyShapeReplacesWholesale(t *testing.T) {
	s, sess := newSync(t)

	// seed some prior values
	require.NoError(t, s.ApplyStatsUpdate(map[string]interface{}{
		"simulation_time": 60.0,
		"active_vehicles": 3.0,
	}))

	// legacy shape: already in the internal snapshot form, no
	// simulation_time key and no data envelope
	require.NoError(t, s.ApplyStatsUpdate(map[string]interface{}{
		"simulatedTime":   200.0,
		"runningVehicles": 12.0,
		"averageSpeed":    8.2,
	}))

	snap := sess.Telemetry()
	assert.Equal(t, 200.0, snap.SimulatedTime)
	assert.Equal(t, 12, snap.RunningVehicles)
	assert.Equal(t, 8.2, snap.AverageSpeed)
	// wholesale replacement: the earlier throughput is gone
	assert.Equal(t, 0.0, snap.Throughput)
	// absent zoom lands back at the default, not zero
	assert.Equal(t, session.DefaultZoomLevel, snap.ZoomLevel)
}

func TestPartialUpdatePreservesPriorValues(t *testing.T) {
	s, sess := newSync(t)

	require.NoError(t, s.ApplyStatsUpdate(map[string]interface{}{
		"data": map[string]interface{}{
			"simulation_time": 100.0,
			"active_vehicles": 5.0,
			"avg_speed":       10.0,
			"throughput":      300.0,
		},
	}))

	// envelope carrying only simulation_time
	require.NoError(t, s.ApplyStatsUpdate(map[string]interface{}{
		"data": map[string]interface{}{"simulation_time": 101.0},
	}))

	snap := sess.Telemetry()
	assert.Equal(t, 101.0, snap.SimulatedTime)
	assert.Equal(t, 5, snap.RunningVehicles)
	assert.Equal(t, 10.0, snap.AverageSpeed)
	assert.Equal(t, 300.0, snap.Throughput)
}

func TestApplyStatsIsIdempotent(t *testing.T) {
	s, sess := newSync(t)

	payload := map[string]interface{}{
		"data": map[string]interface{}{
			"simulation_time": 42.0,
			"active_vehicles": 7.0,
			"co2":             12.5,
			"nox":             0.8,
			"fuel":            5.1,
		},
	}
	require.NoError(t, s.ApplyStatsUpdate(payload))
	once := sess.Telemetry()

	require.NoError(t, s.ApplyStatsUpdate(payload))
	twice := sess.Telemetry()

	assert.Equal(t, once, twice)
	assert.Equal(t, 12.5, twice.CO2)
	assert.Equal(t, 0.8, twice.NOx)
	assert.Equal(t, 5.1, twice.Fuel)
}

func TestUndecodableStatsLeaveSnapshotUntouched(t *testing.T) {
	s, sess := newSync(t)

	require.NoError(t, s.ApplyStatsUpdate(map[string]interface{}{
		"data": map[string]interface{}{"simulation_time": 10.0},
	}))
	before := sess.Telemetry()

	err := s.ApplyStatsUpdate(map[string]interface{}{
		"data": map[string]interface{}{"simulation_time": map[string]interface{}{"nested": true}},
	})
	require.Error(t, err)
	assert.Equal(t, before, sess.Telemetry())
}

func TestDetectShape(t *testing.T) {
	testCases := []struct {
		name  string
		raw   map[string]interface{}
		shape statsShape
	}{
		{"envelope", map[string]interface{}{"data": map[string]interface{}{"simulation_time": 1.0}}, shapeEnvelope},
		{"flat", map[string]interface{}{"simulation_time": 1.0}, shapeFlat},
		{"legacy", map[string]interface{}{"simulatedTime": 1.0}, shapeLegacy},
		{"empty legacy", map[string]interface{}{}, shapeLegacy},
		{"non-map data is legacy", map[string]interface{}{"data": "oops"}, shapeLegacy},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			shape, _ := detectShape(tc.raw)
			assert.Equal(t, tc.shape, shape)
		})
	}
}
