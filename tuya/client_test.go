package tuya

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testClientID = "client-id"
	testSecret   = "client-secret"
)

// fakeTuya is a minimal stand-in for the vendor cloud. Every handler first
// verifies the request signature by recomputing it from the received headers.
type fakeTuya struct {
	t           *testing.T
	server      *httptest.Server
	tokenCalls  atomic.Int64
	statusCalls atomic.Int64
	tokenExpiry int64

	mutex     sync.Mutex
	responses map[string]string
}

func newFakeTuya(t *testing.T) *fakeTuya {
	f := &fakeTuya{
		t:           t,
		tokenExpiry: 7200,
		responses:   map[string]string{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1.0/token", func(w http.ResponseWriter, r *http.Request) {
		f.verifySignature(r, nil, false)
		f.tokenCalls.Add(1)
		fmt.Fprintf(w, `{"success":true,"t":1,"result":{"access_token":"token-%d","expire_time":%d,"refresh_token":"ref","uid":"uid"}}`,
			f.tokenCalls.Load(), f.tokenExpiry)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.verifySignature(r, body, true)
		if r.URL.Path == "/v1.0/devices/dev1/status" {
			f.statusCalls.Add(1)
		}
		f.mutex.Lock()
		response, ok := f.responses[r.URL.Path]
		f.mutex.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, response)
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeTuya) respond(path, body string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.responses[path] = body
}

// verifySignature recomputes the expected signature from the request and the
// shared secret, exactly as the cloud would.
func (f *fakeTuya) verifySignature(r *http.Request, body []byte, wantToken bool) {
	assert.Equal(f.t, testClientID, r.Header.Get("client_id"))
	assert.Equal(f.t, "HMAC-SHA256", r.Header.Get("sign_method"))
	assert.NotEmpty(f.t, r.Header.Get("t"))
	assert.NotEmpty(f.t, r.Header.Get("nonce"))
	if wantToken {
		assert.NotEmpty(f.t, r.Header.Get("access_token"))
	} else {
		assert.Empty(f.t, r.Header.Get("access_token"))
	}

	pathAndQuery := r.URL.Path
	if r.URL.RawQuery != "" {
		pathAndQuery += "?" + r.URL.RawQuery
	}
	expected := signRequest(signInput{
		method:       r.Method,
		pathAndQuery: pathAndQuery,
		body:         body,
		clientID:     testClientID,
		secret:       testSecret,
		accessToken:  r.Header.Get("access_token"),
		timestamp:    r.Header.Get("t"),
		nonce:        r.Header.Get("nonce"),
	})
	assert.Equal(f.t, expected["sign"], r.Header.Get("sign"), "signature mismatch for %s", pathAndQuery)
}

func newTestClient(f *fakeTuya) *Client {
	return MustNewClient(&ClientBuilder{
		BaseURL:      f.server.URL,
		ClientID:     testClientID,
		ClientSecret: testSecret,
	})
}

func TestClientGetDeviceStatus(t *testing.T) {
	fake := newFakeTuya(t)
	fake.respond("/v1.0/devices/dev1/status",
		`{"success":true,"t":1,"result":[{"code":"switch","value":true},{"code":"temp_current","value":189}]}`)

	client := newTestClient(fake)
	dps, err := client.GetDeviceStatus(context.Background(), "dev1")
	require.NoError(t, err)
	require.Len(t, dps, 2)
	assert.Equal(t, "switch", dps[0].Code)
	b, ok := dps[0].Value.Bool()
	assert.True(t, ok)
	assert.True(t, b)
	i, ok := dps[1].Value.Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(189), i)
}

func TestClientGetShadowProperties(t *testing.T) {
	fake := newFakeTuya(t)
	fake.respond("/v2.0/cloud/thing/station1/shadow/properties",
		`{"success":true,"t":1,"result":{"properties":[{"code":"local_temp","dp_id":131,"time":1,"type":"value","value":208,"custom_name":""}]}}`)

	client := newTestClient(fake)
	props, err := client.GetShadowProperties(context.Background(), "station1")
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "local_temp", props[0].Code)
	i, ok := props[0].Value.Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(208), i)
}

func TestClientSendCommands(t *testing.T) {
	fake := newFakeTuya(t)
	fake.respond("/v1.0/devices/dev1/commands", `{"success":true,"t":1,"result":true}`)

	client := newTestClient(fake)
	ack, err := client.SendCommands(context.Background(), "dev1", []Command{
		{Code: "switch", Value: BoolValue(false)},
	})
	require.NoError(t, err)
	assert.True(t, ack)
}

func TestClientAPIError(t *testing.T) {
	fake := newFakeTuya(t)
	fake.respond("/v1.0/devices/dev1/status",
		`{"success":false,"t":1,"code":1010,"msg":"token invalid"}`)

	client := newTestClient(fake)
	_, err := client.GetDeviceStatus(context.Background(), "dev1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1010")
	assert.Contains(t, err.Error(), "token invalid")
}

func TestClientTokenIsReused(t *testing.T) {
	fake := newFakeTuya(t)
	fake.respond("/v1.0/devices/dev1/status", `{"success":true,"t":1,"result":[]}`)

	client := newTestClient(fake)
	for i := 0; i < 5; i++ {
		_, err := client.GetDeviceStatus(context.Background(), "dev1")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), fake.tokenCalls.Load(), "a valid token must be reused")
	assert.Equal(t, int64(5), fake.statusCalls.Load())
}

func TestClientTokenSingleFlight(t *testing.T) {
	fake := newFakeTuya(t)
	fake.respond("/v1.0/devices/dev1/status", `{"success":true,"t":1,"result":[]}`)

	client := newTestClient(fake)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.GetDeviceStatus(context.Background(), "dev1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), fake.tokenCalls.Load(), "concurrent callers must share one token fetch")
}

func TestClientTokenRefreshAfterExpiry(t *testing.T) {
	fake := newFakeTuya(t)
	fake.tokenExpiry = 90 // seconds, within the expiry margin after one minute
	fake.respond("/v1.0/devices/dev1/status", `{"success":true,"t":1,"result":[]}`)

	client := newTestClient(fake)
	base := time.Now()
	client.now = func() time.Time { return base }

	_, err := client.GetDeviceStatus(context.Background(), "dev1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), fake.tokenCalls.Load())

	// 40 seconds later the remaining lifetime dips below the margin
	client.now = func() time.Time { return base.Add(40 * time.Second) }
	_, err = client.GetDeviceStatus(context.Background(), "dev1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), fake.tokenCalls.Load(), "a token near expiry must be refreshed")
}

func TestClientTokenFailureIsNotCached(t *testing.T) {
	var tokenCalls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		fmt.Fprint(w, `{"success":false,"t":1,"code":1004,"msg":"sign invalid"}`)
	}))
	defer server.Close()

	client := MustNewClient(&ClientBuilder{
		BaseURL:      server.URL,
		ClientID:     testClientID,
		ClientSecret: testSecret,
	})
	_, err := client.GetDeviceStatus(context.Background(), "dev1")
	require.Error(t, err)
	_, err = client.GetDeviceStatus(context.Background(), "dev1")
	require.Error(t, err)
	assert.Equal(t, int64(2), tokenCalls.Load(), "a failed token fetch must be retried by the next caller")
}

func TestClientTransportError(t *testing.T) {
	fake := newFakeTuya(t)
	client := newTestClient(fake)

	// no response configured, the fake answers 404
	_, err := client.GetDeviceStatus(context.Background(), "dev1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

type recordingArchiver struct {
	mutex sync.Mutex
	saved []string
}

func (a *recordingArchiver) Save(endpoint, suffix string, raw []byte) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.saved = append(a.saved, endpoint+"/"+suffix)
	return nil
}

func TestClientArchivesResponses(t *testing.T) {
	fake := newFakeTuya(t)
	fake.respond("/v1.0/devices/dev1/status", `{"success":true,"t":1,"result":[]}`)

	archiver := &recordingArchiver{}
	client := MustNewClient(&ClientBuilder{
		BaseURL:      fake.server.URL,
		ClientID:     testClientID,
		ClientSecret: testSecret,
		Archiver:     archiver,
	})
	_, err := client.GetDeviceStatus(context.Background(), "dev1")
	require.NoError(t, err)

	archiver.mutex.Lock()
	defer archiver.mutex.Unlock()
	assert.Contains(t, archiver.saved, "token/")
	assert.Contains(t, archiver.saved, "device_status/dev1")
}

type failingArchiver struct{}

func (failingArchiver) Save(string, string, []byte) error {
	return fmt.Errorf("disk full")
}

func TestClientArchiveFailureIsNotFatal(t *testing.T) {
	fake := newFakeTuya(t)
	fake.respond("/v1.0/devices/dev1/status", `{"success":true,"t":1,"result":[{"code":"switch","value":true}]}`)

	client := MustNewClient(&ClientBuilder{
		BaseURL:      fake.server.URL,
		ClientID:     testClientID,
		ClientSecret: testSecret,
		Archiver:     failingArchiver{},
	})
	dps, err := client.GetDeviceStatus(context.Background(), "dev1")
	require.NoError(t, err, "archival is best effort and must not fail the request")
	assert.Len(t, dps, 1)
}

func TestMustNewClientPanicsOnMissingFields(t *testing.T) {
	assert.Panics(t, func() {
		MustNewClient(&ClientBuilder{ClientID: "id", ClientSecret: "secret"})
	})
	assert.Panics(t, func() {
		MustNewClient(&ClientBuilder{BaseURL: "http://localhost", ClientSecret: "secret"})
	})
	assert.Panics(t, func() {
		MustNewClient(&ClientBuilder{BaseURL: "http://localhost", ClientID: "id"})
	})
}
