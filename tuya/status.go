package tuya

import "fmt"

// The typed status structs below are built from the flat data-point lists the
// cloud returns, rather than being direct decode targets. This keeps the wire
// types decoupled from the domain model and makes required-field validation
// explicit. Lookup is a linear scan by code; a status rarely has more than
// twenty entries.

func findProperty(dps []DeviceProperty, code string) (DPValue, bool) {
	for i := range dps {
		if dps[i].Code == code {
			return dps[i].Value, true
		}
	}
	return DPValue{}, false
}

func findShadowProperty(props []ShadowProperty, code string) (DPValue, bool) {
	for i := range props {
		if props[i].Code == code {
			return props[i].Value, true
		}
	}
	return DPValue{}, false
}

func requiredBool(dps []DeviceProperty, family, code string) (bool, error) {
	if value, ok := findProperty(dps, code); ok {
		if b, ok := value.Bool(); ok {
			return b, nil
		}
	}
	return false, fmt.Errorf("%s: missing required data point %q", family, code)
}

func requiredInt(dps []DeviceProperty, family, code string) (int64, error) {
	if value, ok := findProperty(dps, code); ok {
		if i, ok := value.Int64(); ok {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%s: missing required data point %q", family, code)
}

func requiredText(dps []DeviceProperty, family, code string) (string, error) {
	if value, ok := findProperty(dps, code); ok {
		if s, ok := value.Text(); ok {
			return s, nil
		}
	}
	return "", fmt.Errorf("%s: missing required data point %q", family, code)
}

func optionalBool(dps []DeviceProperty, code string) *bool {
	if value, ok := findProperty(dps, code); ok {
		if b, ok := value.Bool(); ok {
			return &b
		}
	}
	return nil
}

func optionalInt(dps []DeviceProperty, code string) *int64 {
	if value, ok := findProperty(dps, code); ok {
		if i, ok := value.Int64(); ok {
			return &i
		}
	}
	return nil
}

func optionalText(dps []DeviceProperty, code string) *string {
	if value, ok := findProperty(dps, code); ok {
		if s, ok := value.Text(); ok {
			return &s
		}
	}
	return nil
}

// ThermostatStatus is the typed view of a thermostat device status.
//
// Temperatures are reported in tenths of a degree: 189 means 18.9 °C.
type ThermostatStatus struct {
	Switch      bool
	TempCurrent int64
	TempSet     int64
	// Mode is e.g. "auto" or "manual".
	Mode      string
	ChildLock *bool
	// Fault is a bitmask, 0 means no fault.
	Fault     *int64
	UpperTemp *int64
	// TempCorrection is a calibration offset and can be negative.
	TempCorrection *int64
	Frost          *bool
	Sound          *bool
}

// TempCurrentCelsius returns the current temperature in °C.
func (s ThermostatStatus) TempCurrentCelsius() float64 {
	return float64(s.TempCurrent) / 10.0
}

// TempSetCelsius returns the target setpoint in °C.
func (s ThermostatStatus) TempSetCelsius() float64 {
	return float64(s.TempSet) / 10.0
}

// BuildThermostatStatus constructs a ThermostatStatus from a raw data-point
// list. Unknown codes in the list are ignored.
func BuildThermostatStatus(dps []DeviceProperty) (ThermostatStatus, error) {
	var status ThermostatStatus
	var err error

	if status.Switch, err = requiredBool(dps, "thermostat", "switch"); err != nil {
		return ThermostatStatus{}, err
	}
	if status.TempCurrent, err = requiredInt(dps, "thermostat", "temp_current"); err != nil {
		return ThermostatStatus{}, err
	}
	if status.TempSet, err = requiredInt(dps, "thermostat", "temp_set"); err != nil {
		return ThermostatStatus{}, err
	}
	if status.Mode, err = requiredText(dps, "thermostat", "mode"); err != nil {
		return ThermostatStatus{}, err
	}

	status.ChildLock = optionalBool(dps, "child_lock")
	status.Fault = optionalInt(dps, "fault")
	status.UpperTemp = optionalInt(dps, "upper_temp")
	status.TempCorrection = optionalInt(dps, "temp_correction")
	status.Frost = optionalBool(dps, "frost")
	status.Sound = optionalBool(dps, "sound")
	return status, nil
}

// EnergyMeterStatus is the typed view of a three-phase energy meter status.
type EnergyMeterStatus struct {
	Switch bool
	// TotalForwardEnergy is the accumulated forward energy in Wh.
	TotalForwardEnergy int64
	// PhaseA/B/C are base64 encoded binary blobs with per-phase data.
	PhaseA string
	PhaseB string
	PhaseC string
	// Fault is a bitmask, 0 means no fault.
	Fault            *int64
	SwitchPrepayment *bool
	BalanceEnergy    *int64
	ChargeEnergy     *int64
	// LeakageCurrent is in mA.
	LeakageCurrent     *int64
	ReverseEnergyTotal *int64
	// TempCurrent is the device temperature in whole °C; unlike the
	// thermostat this family does not report tenths.
	TempCurrent *int64
	Countdown1  *int64
	AlarmSet1   *string
	AlarmSet2   *string
	CycleTime   *string
	RandomTime  *string
	EnergyReset *string
}

// BuildEnergyMeterStatus constructs an EnergyMeterStatus from a raw
// data-point list. Unknown codes in the list are ignored.
func BuildEnergyMeterStatus(dps []DeviceProperty) (EnergyMeterStatus, error) {
	var status EnergyMeterStatus
	var err error

	if status.Switch, err = requiredBool(dps, "energy_meter", "switch"); err != nil {
		return EnergyMeterStatus{}, err
	}
	if status.TotalForwardEnergy, err = requiredInt(dps, "energy_meter", "total_forward_energy"); err != nil {
		return EnergyMeterStatus{}, err
	}
	if status.PhaseA, err = requiredText(dps, "energy_meter", "phase_a"); err != nil {
		return EnergyMeterStatus{}, err
	}
	if status.PhaseB, err = requiredText(dps, "energy_meter", "phase_b"); err != nil {
		return EnergyMeterStatus{}, err
	}
	if status.PhaseC, err = requiredText(dps, "energy_meter", "phase_c"); err != nil {
		return EnergyMeterStatus{}, err
	}

	status.Fault = optionalInt(dps, "fault")
	status.SwitchPrepayment = optionalBool(dps, "switch_prepayment")
	status.BalanceEnergy = optionalInt(dps, "balance_energy")
	status.ChargeEnergy = optionalInt(dps, "charge_energy")
	status.LeakageCurrent = optionalInt(dps, "leakage_current")
	status.ReverseEnergyTotal = optionalInt(dps, "reverse_energy_total")
	status.TempCurrent = optionalInt(dps, "temp_current")
	status.Countdown1 = optionalInt(dps, "countdown_1")
	status.AlarmSet1 = optionalText(dps, "alarm_set_1")
	status.AlarmSet2 = optionalText(dps, "alarm_set_2")
	status.CycleTime = optionalText(dps, "cycle_time")
	status.RandomTime = optionalText(dps, "random_time")
	status.EnergyReset = optionalText(dps, "energy_reset")
	return status, nil
}

// WeatherStationStatus is the typed view of a weather station, built from the
// v2 shadow properties. The station relays up to three wireless sub-sensors.
//
// Temperatures are reported in tenths of a degree, humidity in whole percent.
type WeatherStationStatus struct {
	LocalTemp int64
	LocalHum  int64
	Sub1Temp  *int64
	Sub1Hum   *int64
	Sub2Temp  *int64
	Sub2Hum   *int64
	Sub3Temp  *int64
	Sub3Hum   *int64
	// TempUnit is "c" or "f", from the temp_unit_convert property.
	TempUnit *string
}

// LocalTempCelsius returns the station temperature in °C.
func (s WeatherStationStatus) LocalTempCelsius() float64 {
	return float64(s.LocalTemp) / 10.0
}

// LocalHumidityPercent returns the station relative humidity in percent.
func (s WeatherStationStatus) LocalHumidityPercent() float64 {
	return float64(s.LocalHum)
}

// BuildWeatherStationStatus constructs a WeatherStationStatus from a raw
// shadow property list. Unknown codes in the list are ignored.
func BuildWeatherStationStatus(props []ShadowProperty) (WeatherStationStatus, error) {
	var status WeatherStationStatus

	value, ok := findShadowProperty(props, "local_temp")
	if !ok {
		return WeatherStationStatus{}, fmt.Errorf("weather_station: missing required data point %q", "local_temp")
	}
	if status.LocalTemp, ok = value.Int64(); !ok {
		return WeatherStationStatus{}, fmt.Errorf("weather_station: missing required data point %q", "local_temp")
	}

	value, ok = findShadowProperty(props, "local_hum")
	if !ok {
		return WeatherStationStatus{}, fmt.Errorf("weather_station: missing required data point %q", "local_hum")
	}
	if status.LocalHum, ok = value.Int64(); !ok {
		return WeatherStationStatus{}, fmt.Errorf("weather_station: missing required data point %q", "local_hum")
	}

	optional := func(code string) *int64 {
		if value, ok := findShadowProperty(props, code); ok {
			if i, ok := value.Int64(); ok {
				return &i
			}
		}
		return nil
	}
	status.Sub1Temp = optional("sub1_temp")
	status.Sub1Hum = optional("sub1_hum")
	status.Sub2Temp = optional("sub2_temp")
	status.Sub2Hum = optional("sub2_hum")
	status.Sub3Temp = optional("sub3_temp")
	status.Sub3Hum = optional("sub3_hum")
	if value, ok := findShadowProperty(props, "temp_unit_convert"); ok {
		if s, ok := value.Text(); ok {
			status.TempUnit = &s
		}
	}
	return status, nil
}
