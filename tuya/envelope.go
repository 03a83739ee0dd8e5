package tuya

import (
	"fmt"

	"github.com/goccy/go-json"
)

// envelope is the uniform wrapper around every vendor response.
//
// Success:
//
//	{ "success": true, "t": 1545447665981, "result": <T>, "tid": "..." }
//
// Failure:
//
//	{ "success": false, "t": 1561348644346, "code": 2009, "msg": "...", "tid": "..." }
//
// result is absent on failure; code and msg are absent on success.
type envelope[T any] struct {
	Success bool    `json:"success"`
	T       int64   `json:"t"`
	TID     string  `json:"tid,omitempty"`
	Result  *T      `json:"result,omitempty"`
	Code    *int    `json:"code,omitempty"`
	Msg     *string `json:"msg,omitempty"`
}

// APIError is a failure the vendor cloud reported inside a response envelope.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tuya api error: code=%d, msg=%s", e.Code, e.Msg)
}

// decodeEnvelope unwraps a raw response body into the typed payload or an
// error. A success envelope without a result payload breaks the vendor
// contract and is reported as such.
func decodeEnvelope[T any](raw []byte) (T, error) {
	var zero T
	var env envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return zero, fmt.Errorf("cannot decode response envelope: %w", err)
	}
	if !env.Success {
		apiErr := &APIError{Code: -1, Msg: "(no message)"}
		if env.Code != nil {
			apiErr.Code = *env.Code
		}
		if env.Msg != nil {
			apiErr.Msg = *env.Msg
		}
		return zero, apiErr
	}
	if env.Result == nil {
		return zero, fmt.Errorf("response envelope: success is true but result is missing")
	}
	return *env.Result, nil
}
