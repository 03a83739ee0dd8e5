package sensors

import (
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/sensorhub/reading"
	"github.com/relabs-tech/sensorhub/tuya"
)

// The functions below map a typed device status to encoded readings. Stored
// values are hundredths of the real unit (booleans are 0/1), so every field
// has its own rescale factor depending on the resolution the device reports:
// tenths of a degree become ×10, whole units become ×100. Getting one of
// these factors wrong corrupts all downstream data, which is why the factors
// are pinned by literal-value tests.

func newReading(deviceID string, kind reading.Kind, at time.Time, value int64) reading.Reading {
	return reading.Reading{
		ID:         uuid.New(),
		DeviceID:   deviceID,
		Kind:       kind,
		RecordedAt: at,
		Value:      value,
	}
}

// thermostatReadings extracts readings from a thermostat status.
// Temperatures arrive in tenths of a degree: raw 189 → stored 1890.
func thermostatReadings(deviceID string, s tuya.ThermostatStatus, at time.Time) []reading.Reading {
	return []reading.Reading{
		newReading(deviceID, reading.RelayState, at, reading.EncodeBool(s.Switch)),
		newReading(deviceID, reading.Temperature, at, s.TempCurrent*10),
		newReading(deviceID, reading.TemperatureSetpoint, at, s.TempSet*10),
	}
}

// energyMeterReadings extracts readings from an energy meter status.
// The meter reports whole units: Wh for energy, °C for its own temperature.
func energyMeterReadings(deviceID string, s tuya.EnergyMeterStatus, at time.Time) []reading.Reading {
	all := []reading.Reading{
		newReading(deviceID, reading.RelayState, at, reading.EncodeBool(s.Switch)),
		newReading(deviceID, reading.EnergyTotal, at, s.TotalForwardEnergy*100),
	}
	if s.TempCurrent != nil {
		all = append(all, newReading(deviceID, reading.Temperature, at, *s.TempCurrent*100))
	}
	return all
}

// weatherStationReadings extracts readings from a weather station status.
// Temperatures arrive in tenths of a degree (raw 208 → stored 2080),
// humidity in whole percent (raw 51 → stored 5100). Sub-sensor readings are
// recorded under synthetic device IDs "{deviceID}:sub1" through ":sub3";
// a colon keeps them usable as a single URL path segment.
func weatherStationReadings(deviceID string, s tuya.WeatherStationStatus, at time.Time) []reading.Reading {
	all := []reading.Reading{
		newReading(deviceID, reading.Temperature, at, s.LocalTemp*10),
		newReading(deviceID, reading.Humidity, at, s.LocalHum*100),
	}
	sub := func(suffix string, temp, hum *int64) {
		subID := deviceID + ":" + suffix
		if temp != nil {
			all = append(all, newReading(subID, reading.Temperature, at, *temp*10))
		}
		if hum != nil {
			all = append(all, newReading(subID, reading.Humidity, at, *hum*100))
		}
	}
	sub("sub1", s.Sub1Temp, s.Sub1Hum)
	sub("sub2", s.Sub2Temp, s.Sub2Hum)
	sub("sub3", s.Sub3Temp, s.Sub3Hum)
	return all
}
