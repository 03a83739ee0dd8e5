package tuya

import (
	"fmt"

	"github.com/goccy/go-json"
)

// DPValue is the polymorphic value of a data point. A single status response
// can mix booleans, integers and strings, so the wire format is untyped JSON.
// Exactly one of the three variants is set.
//
// Decoding tries bool before integer: JSON true/false must never be coerced
// into 1/0, and a raw 0/1 must stay an integer.
type DPValue struct {
	kind dpKind
	b    bool
	i    int64
	s    string
}

type dpKind uint8

const (
	dpInvalid dpKind = iota
	dpBool
	dpInteger
	dpText
)

// BoolValue returns a boolean DPValue, for use in commands.
func BoolValue(v bool) DPValue { return DPValue{kind: dpBool, b: v} }

// IntValue returns an integer DPValue, for use in commands.
func IntValue(v int64) DPValue { return DPValue{kind: dpInteger, i: v} }

// TextValue returns a text DPValue, for use in commands.
func TextValue(v string) DPValue { return DPValue{kind: dpText, s: v} }

// Bool returns the boolean variant, if that is what the device reported.
func (v DPValue) Bool() (bool, bool) {
	return v.b, v.kind == dpBool
}

// Int64 returns the integer variant, if that is what the device reported.
func (v DPValue) Int64() (int64, bool) {
	return v.i, v.kind == dpInteger
}

// Text returns the text variant, if that is what the device reported.
func (v DPValue) Text() (string, bool) {
	return v.s, v.kind == dpText
}

// UnmarshalJSON decodes one of bool, integer or string. Order matters, see
// the type comment.
func (v *DPValue) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = DPValue{kind: dpBool, b: b}
		return nil
	}
	var i int64
	if err := json.Unmarshal(data, &i); err == nil {
		*v = DPValue{kind: dpInteger, i: i}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = DPValue{kind: dpText, s: s}
		return nil
	}
	return fmt.Errorf("data point value %s is neither bool, integer nor string", string(data))
}

// MarshalJSON encodes the active variant.
func (v DPValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case dpBool:
		return json.Marshal(v.b)
	case dpInteger:
		return json.Marshal(v.i)
	case dpText:
		return json.Marshal(v.s)
	}
	return nil, fmt.Errorf("cannot marshal an empty data point value")
}

// TokenResult is the payload of a successful token response.
type TokenResult struct {
	AccessToken string `json:"access_token"`
	// ExpireTime is the validity period in seconds, typically 7200.
	ExpireTime int64 `json:"expire_time"`
	// RefreshToken can be used to obtain a new access token without
	// re-authenticating. We do not use it; a fresh grant is equally cheap.
	RefreshToken string `json:"refresh_token"`
	UID          string `json:"uid"`
}

// DeviceProperty is a single data point from the v1 device status endpoint.
type DeviceProperty struct {
	// Code is the DP code, e.g. "temp_current", "switch_1", "cur_power".
	Code  string  `json:"code"`
	Value DPValue `json:"value"`
}

// ShadowPropertiesResult is the payload of the v2 shadow properties endpoint,
// used for devices that do not support the v1 status endpoint.
type ShadowPropertiesResult struct {
	Properties []ShadowProperty `json:"properties"`
}

// ShadowProperty is a single property from the v2 shadow properties endpoint.
// Compared to DeviceProperty it carries a per-property update timestamp and
// an explicit type tag.
type ShadowProperty struct {
	Code string `json:"code"`
	DPID uint32 `json:"dp_id"`
	// Time is a unix timestamp in milliseconds of the last update.
	Time int64 `json:"time"`
	// Type is one of "value", "bool", "raw", "enum", "bitmap".
	Type       string  `json:"type"`
	Value      DPValue `json:"value"`
	CustomName string  `json:"custom_name,omitempty"`
}

// Command targets a single device DP, e.g. {"code":"switch_1","value":true}.
type Command struct {
	Code  string  `json:"code"`
	Value DPValue `json:"value"`
}

// sendCommandRequest is the body of POST /v1.0/devices/{id}/commands.
type sendCommandRequest struct {
	Commands []Command `json:"commands"`
}
