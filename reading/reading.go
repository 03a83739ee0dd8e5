package reading

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Kind classifies what a reading measures.
type Kind string

// The known sensor kinds.
const (
	Temperature         Kind = "temperature"
	Humidity            Kind = "humidity"
	DoorOpen            Kind = "door_open"
	PowerConsumption    Kind = "power_consumption"
	RelayState          Kind = "relay_state"
	TemperatureSetpoint Kind = "temperature_setpoint"
	EnergyTotal         Kind = "energy_total"
)

var knownKinds = map[Kind]bool{
	Temperature:         true,
	Humidity:            true,
	DoorOpen:            true,
	PowerConsumption:    true,
	RelayState:          true,
	TemperatureSetpoint: true,
	EnergyTotal:         true,
}

// ParseKind validates a sensor kind string.
func ParseKind(s string) (Kind, error) {
	kind := Kind(s)
	if !knownKinds[kind] {
		return "", fmt.Errorf("unknown sensor kind: %q", s)
	}
	return kind, nil
}

// Reading is one sensor value at one point in time.
//
// Value encoding convention:
//   - numeric readings: round(real_value * 100), e.g. 21.45 °C → 2145
//   - boolean readings: false → 0, true → 1
//
// Every consumer must apply the matching divisor to recover the real value.
type Reading struct {
	ID       uuid.UUID `json:"id"`
	DeviceID string    `json:"device_id"`
	Kind     Kind      `json:"sensor_kind"`
	// RecordedAt is assigned at the point of ingestion, not echoed from the
	// vendor.
	RecordedAt time.Time `json:"recorded_at"`
	Value      int64     `json:"value"`
}

// EncodeFloat encodes a numeric reading as a scaled integer.
func EncodeFloat(v float64) int64 {
	return int64(math.Round(v * 100.0))
}

// EncodeBool encodes a boolean reading as 0 or 1.
func EncodeBool(v bool) int64 {
	if v {
		return 1
	}
	return 0
}
