// Package control runs the periodic control loop. The loop currently only
// observes the latest readings; sending commands back to devices goes through
// the retained tuya client once real control logic lands.
package control

import (
	"context"
	"time"

	"github.com/relabs-tech/sensorhub/core/logger"
	"github.com/relabs-tech/sensorhub/reading"
	"github.com/relabs-tech/sensorhub/tuya"
)

// Service is the control loop.
type Service struct {
	// tuya is retained for when control logic sends commands to devices,
	// e.g. toggling a thermostat relay when temperature drops below the
	// setpoint.
	tuya     *tuya.Client
	cache    *reading.Cache
	interval time.Duration
}

// NewService returns a control loop over the shared cache.
func NewService(client *tuya.Client, cache *reading.Cache, interval time.Duration) *Service {
	return &Service{
		tuya:     client,
		cache:    cache,
		interval: interval,
	}
}

// Run runs the control loop until the context is done.
func (s *Service) Run(ctx context.Context) {
	rlog := logger.FromContext(ctx)
	rlog.Infof("control loop started, interval %s", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			rlog.Infoln("control loop stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Service) runOnce(ctx context.Context) {
	rlog := logger.FromContext(ctx)

	all := s.cache.All()
	if len(all) == 0 {
		rlog.Debugln("no readings in cache yet, skipping control iteration")
		return
	}

	byDevice := map[string][]reading.Reading{}
	for _, r := range all {
		byDevice[r.DeviceID] = append(byDevice[r.DeviceID], r)
	}

	for deviceID, readings := range byDevice {
		var temperature *float64
		var relayOn *bool
		for _, r := range readings {
			switch r.Kind {
			case reading.Temperature:
				v := float64(r.Value) / 100.0
				temperature = &v
			case reading.RelayState:
				v := r.Value != 0
				relayOn = &v
			}
		}
		entry := rlog.WithField("device", deviceID)
		if temperature != nil {
			entry = entry.WithField("temperature", *temperature)
		}
		if relayOn != nil {
			entry = entry.WithField("relayOn", *relayOn)
		}
		entry.Debugln("control iteration, latest readings")

		// Control logic goes here, e.g. for a thermostat: compare the
		// temperature against the setpoint and toggle the relay with
		// s.tuya.SendCommands(ctx, deviceID,
		//     []tuya.Command{{Code: "switch", Value: tuya.BoolValue(shouldHeat)}})
	}
}
