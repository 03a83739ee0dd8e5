package tuya

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/relabs-tech/sensorhub/core/logger"
)

// Archiver receives every raw response body for offline inspection.
// Implementations live in the archive package.
type Archiver interface {
	Save(endpoint, suffix string, raw []byte) error
}

// Client talks to the Tuya cloud API. It owns the cached access token and is
// safe for concurrent use by any number of goroutines.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
	archiver   Archiver

	// now and nonce are swappable for tests
	now   func() time.Time
	nonce func() string

	tokenMutex sync.Mutex
	token      *cachedToken
}

// ClientBuilder is a builder helper for the Client.
type ClientBuilder struct {
	// BaseURL of the vendor cloud, e.g. "https://openapi.tuyaeu.com". Mandatory.
	BaseURL string
	// ClientID of the cloud project. Mandatory.
	ClientID string
	// ClientSecret of the cloud project. Mandatory, never logged.
	ClientSecret string
	// Archiver stores raw response bodies. Optional.
	Archiver Archiver
	// HTTPClient is optional. The default applies a 20 second timeout.
	HTTPClient *http.Client
}

// MustNewClient realizes a new client. It panics on missing mandatory
// builder fields.
func MustNewClient(b *ClientBuilder) *Client {
	if b.BaseURL == "" {
		panic("BaseURL is missing")
	}
	if b.ClientID == "" {
		panic("ClientID is missing")
	}
	if b.ClientSecret == "" {
		panic("ClientSecret is missing")
	}
	httpClient := b.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    b.BaseURL,
		clientID:   b.ClientID,
		secret:     b.ClientSecret,
		archiver:   b.Archiver,
		now:        time.Now,
		nonce:      func() string { return uuid.NewString() },
	}
}

// GetDeviceStatus fetches all data points of a device via the v1 status
// endpoint.
func (c *Client) GetDeviceStatus(ctx context.Context, deviceID string) ([]DeviceProperty, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	path := "/v1.0/devices/" + deviceID + "/status"
	return doRequest[[]DeviceProperty](ctx, c, http.MethodGet, path, nil, token, "device_status", deviceID)
}

// GetShadowProperties fetches the shadow properties of a device via the v2
// endpoint. Some device families, e.g. weather stations, do not support the
// v1 status endpoint.
func (c *Client) GetShadowProperties(ctx context.Context, deviceID string) ([]ShadowProperty, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	path := "/v2.0/cloud/thing/" + deviceID + "/shadow/properties"
	result, err := doRequest[ShadowPropertiesResult](ctx, c, http.MethodGet, path, nil, token, "shadow_properties", deviceID)
	if err != nil {
		return nil, err
	}
	return result.Properties, nil
}

// SendCommands sends one or more commands to a device. The returned flag is
// the vendor's acknowledgement.
func (c *Client) SendCommands(ctx context.Context, deviceID string, commands []Command) (bool, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return false, err
	}
	body, err := json.Marshal(sendCommandRequest{Commands: commands})
	if err != nil {
		return false, fmt.Errorf("cannot encode commands: %w", err)
	}
	path := "/v1.0/devices/" + deviceID + "/commands"
	return doRequest[bool](ctx, c, http.MethodPost, path, body, token, "commands", deviceID)
}

// doRequest signs and issues one request and decodes the response envelope.
// The raw body is archived regardless of outcome; archival failures are
// logged and swallowed.
func doRequest[T any](ctx context.Context, c *Client, method, pathAndQuery string, body []byte, token, endpoint, archiveSuffix string) (T, error) {
	var zero T

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+pathAndQuery, bytes.NewReader(body))
	if err != nil {
		return zero, fmt.Errorf("cannot create %s request: %w", endpoint, err)
	}
	headers := signRequest(signInput{
		method:       method,
		pathAndQuery: pathAndQuery,
		body:         body,
		clientID:     c.clientID,
		secret:       c.secret,
		accessToken:  token,
		timestamp:    strconv.FormatInt(c.now().UnixMilli(), 10),
		nonce:        c.nonce(),
	})
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return zero, fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("cannot read %s response: %w", endpoint, err)
	}

	if c.archiver != nil {
		if err := c.archiver.Save(endpoint, archiveSuffix, raw); err != nil {
			logger.FromContext(ctx).WithError(err).Warnf("could not archive %s response", endpoint)
		}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return zero, fmt.Errorf("%s returned status %d", endpoint, resp.StatusCode)
	}
	return decodeEnvelope[T](raw)
}
