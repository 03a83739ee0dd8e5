// Package config holds the service configuration, decoded from environment
// variables.
package config

import (
	"fmt"
	"strings"
)

// DeviceType selects the polling endpoint and the status builder for a
// device.
type DeviceType string

// The supported device families.
const (
	DeviceTypeThermostat     DeviceType = "thermostat"
	DeviceTypeEnergyMeter    DeviceType = "energy_meter"
	DeviceTypeWeatherStation DeviceType = "weather_station"
)

// ParseDeviceType validates a device type string.
func ParseDeviceType(s string) (DeviceType, error) {
	switch DeviceType(s) {
	case DeviceTypeThermostat, DeviceTypeEnergyMeter, DeviceTypeWeatherStation:
		return DeviceType(s), nil
	}
	return "", fmt.Errorf("unknown device type: %q", s)
}

// Service holds the configuration for this service
//
// use POSTGRES="host=localhost port=5432 user=postgres password=docker dbname=postgres sslmode=disable"
type Service struct {
	Postgres       string `env:"POSTGRES,required" description:"the connection string for the Postgres DB"`
	PostgresSchema string `env:"POSTGRES_SCHEMA,default=sensorhub" description:"the database schema for the readings table"`

	TuyaBaseURL      string `env:"TUYA_BASE_URL,required" description:"base URL of the Tuya cloud, e.g. https://openapi.tuyaeu.com"`
	TuyaClientID     string `env:"TUYA_CLIENT_ID,required" description:"client id of the Tuya cloud project"`
	TuyaClientSecret string `env:"TUYA_CLIENT_SECRET,required" description:"client secret of the Tuya cloud project"`
	// TuyaDevices assigns a device family to every polled device,
	// format "id1:type1,id2:type2"
	TuyaDevices string `env:"TUYA_DEVICES,default=" description:"the devices to poll as 'device_id:device_type' pairs"`

	ServerAddr             string `env:"SERVER_ADDR,default=:3000" description:"the listen address of the REST API"`
	PollIntervalSeconds    int    `env:"POLL_INTERVAL_SECONDS,default=60" description:"sensor polling interval in seconds"`
	ControlIntervalSeconds int    `env:"CONTROL_INTERVAL_SECONDS,default=60" description:"control loop interval in seconds"`

	ArchiveDriver    string `env:"ARCHIVE_DRIVER,default=" description:"raw response archive driver: local, s3 or empty"`
	ArchiveBasePath  string `env:"ARCHIVE_BASE_PATH,default=responses" description:"base folder of the local archive driver"`
	ArchiveKeyPrefix string `env:"ARCHIVE_KEY_PREFIX,default=" description:"key prefix of the s3 archive driver"`
	AWSRegion        string `env:"AWS_REGION,default=" description:"AWS region of the archive bucket"`
	AWSBucketName    string `env:"AWS_BUCKET_NAME,default=" description:"AWS bucket for the s3 archive driver"`
	AWSAccessID      string `env:"AWS_ACCESS_ID,default=" description:"AWS access id for the s3 archive driver"`
	AWSAccessKey     string `env:"AWS_ACCESS_KEY,default=" description:"AWS access key for the s3 archive driver"`

	KafkaBrokers string `env:"KAFKA_BROKERS,default=" description:"comma separated Kafka brokers for the reading stream, empty disables it"`

	LogLevel string `env:"LOG_LEVEL,default=info" description:"log level: debug, info, warning or error"`
}

// Devices parses the TuyaDevices assignment list into a map of device ID to
// device type. A malformed entry or an unknown type is an error.
func (s *Service) Devices() (map[string]DeviceType, error) {
	devices := map[string]DeviceType{}
	for _, entry := range strings.Split(s.TuyaDevices, ",") {
		if entry == "" {
			continue
		}
		id, kindString, found := strings.Cut(entry, ":")
		if !found {
			return nil, fmt.Errorf("device entry must be 'device_id:device_type', got: %q", entry)
		}
		kind, err := ParseDeviceType(strings.TrimSpace(kindString))
		if err != nil {
			return nil, fmt.Errorf("device entry %q: %w", entry, err)
		}
		devices[strings.TrimSpace(id)] = kind
	}
	return devices, nil
}
