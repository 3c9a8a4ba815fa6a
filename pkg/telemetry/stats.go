package telemetry

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/flowdeck/core/errors"
	"github.com/flowdeck/core/pkg/session"
)

// statsFields is the decoded form of the wire stats payload for shapes (1)
// and (2). All fields are pointers: a nil field was absent from the push
// and keeps its previous value. Partial updates are expected, not errors.
type statsFields struct {
	SimulationTime *float64 `mapstructure:"simulation_time"`
	ActiveVehicles *int     `mapstructure:"active_vehicles"`
	AvgSpeed       *float64 `mapstructure:"avg_speed"`
	Throughput     *float64 `mapstructure:"throughput"`
	CO2            *float64 `mapstructure:"co2"`
	NOx            *float64 `mapstructure:"nox"`
	Fuel           *float64 `mapstructure:"fuel"`
	ZoomLevel      *float64 `mapstructure:"zoom_level"`
}

// apply merges the present fields onto the snapshot.
func (f *statsFields) apply(t *session.Telemetry) {
	if f.SimulationTime != nil {
		t.SimulatedTime = *f.SimulationTime
	}
	if f.ActiveVehicles != nil {
		t.RunningVehicles = *f.ActiveVehicles
	}
	if f.AvgSpeed != nil {
		t.AverageSpeed = *f.AvgSpeed
	}
	if f.Throughput != nil {
		t.Throughput = *f.Throughput
	}
	if f.CO2 != nil {
		t.CO2 = *f.CO2
	}
	if f.NOx != nil {
		t.NOx = *f.NOx
	}
	if f.Fuel != nil {
		t.Fuel = *f.Fuel
	}
	if f.ZoomLevel != nil {
		t.ZoomLevel = *f.ZoomLevel
	}
}

// statsShape tags the three historically-evolved payload shapes.
type statsShape int

const (
	// shapeEnvelope wraps the fields in a {"data": {...}} envelope.
	shapeEnvelope statsShape = iota
	// shapeFlat carries the fields at the top level, recognized by the
	// presence of simulation_time.
	shapeFlat
	// shapeLegacy is assumed to already match the internal snapshot
	// shape and replaces it wholesale.
	shapeLegacy
)

// detectShape decides which historical payload shape raw carries. There is
// no version tag on the wire; detection is by structure. New shapes go
// here and nowhere else.
func detectShape(raw map[string]interface{}) (statsShape, map[string]interface{}) {
	if data, ok := raw["data"].(map[string]interface{}); ok {
		return shapeEnvelope, data
	}
	if _, ok := raw["simulation_time"]; ok {
		return shapeFlat, raw
	}
	return shapeLegacy, raw
}

// decodeStats normalizes a raw stats payload into an update function over
// the telemetry snapshot.
func decodeStats(raw map[string]interface{}) (func(*session.Telemetry), error) {
	shape, fields := detectShape(raw)

	switch shape {
	case shapeEnvelope, shapeFlat:
		var decoded statsFields
		if err := decodeWeakly(fields, &decoded, "mapstructure"); err != nil {
			return nil, err
		}
		return decoded.apply, nil

	default: // shapeLegacy
		// Wholesale replacement: decode onto a fresh snapshot so absent
		// fields land at their defaults, then overwrite the whole record.
		replacement := session.NewTelemetry()
		if err := decodeWeakly(fields, &replacement, "json"); err != nil {
			return nil, err
		}
		return func(t *session.Telemetry) { *t = replacement }, nil
	}
}

// decodeWeakly maps a generic payload into target, tolerating the usual
// JSON number/int slop. tagName picks the struct tag namespace: the wire
// field structs use mapstructure tags, the legacy shape decodes straight
// into the snapshot via its json tags.
func decodeWeakly(payload map[string]interface{}, target interface{}, tagName string) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          tagName,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create stats decoder: %w", err)
	}
	if err := decoder.Decode(payload); err != nil {
		return errors.BadTelemetry("undecodable stats payload", err)
	}
	return nil
}
