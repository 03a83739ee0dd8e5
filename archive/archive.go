// Package archive stores raw vendor response bodies for offline analysis.
// There are currently two possible backends: a local file system and AWS S3.
//
// Archival is best effort. Callers log and swallow errors; a failing archive
// must never interrupt the polling flow.
package archive

import (
	"time"

	"github.com/goccy/go-json"
)

// Driver defines the interface for the archive service
type Driver interface {
	// Save writes one raw response body under a timestamped key derived from
	// the endpoint name and an optional suffix, e.g. a device ID.
	Save(endpoint, suffix string, raw []byte) error
}

// DriverType represents the different types of archive drivers
type DriverType string

// DriverTypeLocal is the local filesystem implementation of the archive
const DriverTypeLocal DriverType = "local"

// DriverTypeAWSS3 is the AWS S3 implementation of the archive
const DriverTypeAWSS3 DriverType = "s3"

// None is used when archival is disabled
const None DriverType = ""

const timestampFormat = "20060102T150405.000Z"

// key builds "{endpoint}/{timestamp}[_{suffix}].json".
func key(endpoint, suffix string, now time.Time) string {
	name := now.UTC().Format(timestampFormat)
	if suffix != "" {
		name += "_" + suffix
	}
	return endpoint + "/" + name + ".json"
}

// prettyOrRaw pretty-prints valid JSON and passes anything else through
// unchanged.
func prettyOrRaw(raw []byte) []byte {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	pretty, err := json.MarshalIndent(v, "", " ")
	if err != nil {
		return raw
	}
	return pretty
}
