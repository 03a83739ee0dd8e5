// Package sensors polls the configured devices, converts their data points to
// encoded readings, persists them and keeps the shared cache current.
package sensors

import (
	"context"
	"fmt"
	"time"

	"github.com/relabs-tech/sensorhub/config"
	"github.com/relabs-tech/sensorhub/core/logger"
	"github.com/relabs-tech/sensorhub/reading"
	"github.com/relabs-tech/sensorhub/tuya"
)

// Store is the subset of the reading store the poller needs.
type Store interface {
	Insert(r reading.Reading) (inserted bool, err error)
}

// Publisher streams accepted readings to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, r reading.Reading) error
}

// State persists operational key/value state across restarts.
type State interface {
	Write(key string, value any) error
}

// PollState is the persisted outcome of the most recent poll of one device.
type PollState struct {
	At time.Time `json:"at"`
	// Error is empty when the poll succeeded.
	Error string `json:"error,omitempty"`
}

// Service is the polling service.
type Service struct {
	tuya      *tuya.Client
	store     Store
	cache     *reading.Cache
	publisher Publisher
	state     State
	devices   map[string]config.DeviceType
	interval  time.Duration
}

// Builder is a builder helper for the polling service.
type Builder struct {
	// Tuya is the vendor API client. Mandatory.
	Tuya *tuya.Client
	// Store persists readings. Mandatory.
	Store Store
	// Cache is the shared latest-reading cache. Mandatory.
	Cache *reading.Cache
	// Publisher is optional.
	Publisher Publisher
	// State records the per-device poll state. Optional.
	State State
	// Devices maps device ID to device family.
	Devices map[string]config.DeviceType
	// Interval between poll cycles.
	Interval time.Duration
}

// MustNewService realizes the polling service. It panics on missing
// mandatory builder fields.
func MustNewService(b *Builder) *Service {
	if b.Tuya == nil {
		panic("Tuya is missing")
	}
	if b.Store == nil {
		panic("Store is missing")
	}
	if b.Cache == nil {
		panic("Cache is missing")
	}
	return &Service{
		tuya:      b.Tuya,
		store:     b.Store,
		cache:     b.Cache,
		publisher: b.Publisher,
		state:     b.State,
		devices:   b.Devices,
		interval:  b.Interval,
	}
}

// Run polls all configured devices at the configured interval until the
// context is done. A failing device is logged and skipped for the cycle;
// nothing here is fatal.
func (s *Service) Run(ctx context.Context) {
	rlog := logger.FromContext(ctx)
	rlog.Infof("sensor polling loop started, interval %s, %d devices", s.interval, len(s.devices))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		for deviceID, deviceType := range s.devices {
			if err := s.pollDevice(ctx, deviceID, deviceType); err != nil {
				rlog.WithError(err).Errorf("could not poll device %s", deviceID)
			}
		}
		select {
		case <-ctx.Done():
			rlog.Infoln("sensor polling loop stopped")
			return
		case <-ticker.C:
		}
	}
}

// pollDevice polls one device and records the outcome as persistent poll
// state, so operators can see after a restart when a device last answered.
func (s *Service) pollDevice(ctx context.Context, deviceID string, deviceType config.DeviceType) error {
	err := s.PollOnce(ctx, deviceID, deviceType)
	if s.state != nil {
		state := PollState{At: time.Now().UTC()}
		if err != nil {
			state.Error = err.Error()
		}
		if stateErr := s.state.Write("poll:"+deviceID, state); stateErr != nil {
			logger.FromContext(ctx).WithError(stateErr).Warnf("could not record poll state for device %s", deviceID)
		}
	}
	return err
}

// PollOnce fetches the current status of one device, extracts its readings
// and stores them. The cache and the stream only see readings the store
// accepted; a duplicate recorded_at is a silent no-op.
func (s *Service) PollOnce(ctx context.Context, deviceID string, deviceType config.DeviceType) error {
	now := time.Now().UTC()

	var readings []reading.Reading
	switch deviceType {
	case config.DeviceTypeThermostat:
		dps, err := s.tuya.GetDeviceStatus(ctx, deviceID)
		if err != nil {
			return err
		}
		status, err := tuya.BuildThermostatStatus(dps)
		if err != nil {
			return err
		}
		readings = thermostatReadings(deviceID, status, now)
	case config.DeviceTypeEnergyMeter:
		dps, err := s.tuya.GetDeviceStatus(ctx, deviceID)
		if err != nil {
			return err
		}
		status, err := tuya.BuildEnergyMeterStatus(dps)
		if err != nil {
			return err
		}
		readings = energyMeterReadings(deviceID, status, now)
	case config.DeviceTypeWeatherStation:
		props, err := s.tuya.GetShadowProperties(ctx, deviceID)
		if err != nil {
			return err
		}
		status, err := tuya.BuildWeatherStationStatus(props)
		if err != nil {
			return err
		}
		readings = weatherStationReadings(deviceID, status, now)
	default:
		return fmt.Errorf("device %s has unknown device type %q", deviceID, deviceType)
	}

	rlog := logger.FromContext(ctx)
	for _, r := range readings {
		inserted, err := s.store.Insert(r)
		if err != nil {
			return fmt.Errorf("cannot persist reading for device %s: %w", deviceID, err)
		}
		if !inserted {
			continue
		}
		s.cache.Update(r)
		if s.publisher != nil {
			if err := s.publisher.Publish(ctx, r); err != nil {
				rlog.WithError(err).Warnf("could not publish reading for device %s", r.DeviceID)
			}
		}
	}
	rlog.Debugf("polled device %s: %d readings", deviceID, len(readings))
	return nil
}
