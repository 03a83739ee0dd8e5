package api

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/sensorhub/reading"
)

type fakeStore struct {
	readings []reading.Reading
	err      error
	// recorded query parameters of the last Range call
	rangeFrom *time.Time
	rangeTo   *time.Time
}

func (s *fakeStore) Range(deviceID string, kind reading.Kind, from, to *time.Time) ([]reading.Reading, error) {
	s.rangeFrom, s.rangeTo = from, to
	if s.err != nil {
		return nil, s.err
	}
	var result []reading.Reading
	for _, r := range s.readings {
		if r.DeviceID == deviceID && r.Kind == kind {
			result = append(result, r)
		}
	}
	return result, nil
}

func (s *fakeStore) Latest(deviceID string, kind reading.Kind) (reading.Reading, bool, error) {
	if s.err != nil {
		return reading.Reading{}, false, s.err
	}
	for _, r := range s.readings {
		if r.DeviceID == deviceID && r.Kind == kind {
			return r, true, nil
		}
	}
	return reading.Reading{}, false, nil
}

func newTestAPI(t *testing.T, cache *reading.Cache, store *fakeStore) *httptest.Server {
	t.Helper()
	router := mux.NewRouter()
	MustNewAPI(&Builder{
		Cache:  cache,
		Store:  store,
		Router: router,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, server *httptest.Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func cachedReading(deviceID string, kind reading.Kind, value int64) reading.Reading {
	return reading.Reading{
		ID:         uuid.New(),
		DeviceID:   deviceID,
		Kind:       kind,
		RecordedAt: time.Date(2026, 2, 26, 12, 0, 0, 0, time.UTC),
		Value:      value,
	}
}

func TestLatestAll(t *testing.T) {
	cache := reading.NewCache()
	cache.Update(cachedReading("dev2", reading.Temperature, 1890))
	cache.Update(cachedReading("dev1", reading.Temperature, 2080))
	cache.Update(cachedReading("dev1", reading.Humidity, 5100))
	server := newTestAPI(t, cache, &fakeStore{})

	resp, body := get(t, server, "/readings/latest")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var all []reading.Reading
	require.NoError(t, json.Unmarshal(body, &all))
	require.Len(t, all, 3)
	// sorted by device, then kind
	assert.Equal(t, "dev1", all[0].DeviceID)
	assert.Equal(t, reading.Humidity, all[0].Kind)
	assert.Equal(t, "dev1", all[1].DeviceID)
	assert.Equal(t, reading.Temperature, all[1].Kind)
	assert.Equal(t, "dev2", all[2].DeviceID)
}

func TestLatestAllEmpty(t *testing.T) {
	server := newTestAPI(t, reading.NewCache(), &fakeStore{})
	resp, body := get(t, server, "/readings/latest")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "[]", string(body))
}

func TestReadingRange(t *testing.T) {
	store := &fakeStore{readings: []reading.Reading{
		cachedReading("dev1", reading.Temperature, 1890),
		cachedReading("dev1", reading.Temperature, 1900),
		cachedReading("dev1", reading.Humidity, 5100),
	}}
	server := newTestAPI(t, reading.NewCache(), store)

	resp, body := get(t, server, "/readings/dev1/temperature")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var all []reading.Reading
	require.NoError(t, json.Unmarshal(body, &all))
	assert.Len(t, all, 2)
	assert.Nil(t, store.rangeFrom)
	assert.Nil(t, store.rangeTo)
}

func TestReadingRangeWithTimeWindow(t *testing.T) {
	store := &fakeStore{}
	server := newTestAPI(t, reading.NewCache(), store)

	resp, _ := get(t, server, "/readings/dev1/temperature?from=2026-02-26T00:00:00Z&to=2026-02-27T00:00:00Z")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, store.rangeFrom)
	require.NotNil(t, store.rangeTo)
	assert.Equal(t, time.Date(2026, 2, 26, 0, 0, 0, 0, time.UTC), store.rangeFrom.UTC())
	assert.Equal(t, time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC), store.rangeTo.UTC())
}

func TestReadingRangeBadKind(t *testing.T) {
	server := newTestAPI(t, reading.NewCache(), &fakeStore{})
	resp, _ := get(t, server, "/readings/dev1/voltage")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReadingRangeBadTime(t *testing.T) {
	server := newTestAPI(t, reading.NewCache(), &fakeStore{})
	resp, _ := get(t, server, "/readings/dev1/temperature?from=yesterday")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReadingRangeStoreError(t *testing.T) {
	server := newTestAPI(t, reading.NewCache(), &fakeStore{err: fmt.Errorf("connection refused")})
	resp, _ := get(t, server, "/readings/dev1/temperature")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestLatestOneFromCache(t *testing.T) {
	cache := reading.NewCache()
	cache.Update(cachedReading("dev1", reading.Temperature, 2080))
	// the store carries a different value; the cache must win
	store := &fakeStore{readings: []reading.Reading{
		cachedReading("dev1", reading.Temperature, 1111),
	}}
	server := newTestAPI(t, cache, store)

	resp, body := get(t, server, "/readings/dev1/temperature/latest")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var r reading.Reading
	require.NoError(t, json.Unmarshal(body, &r))
	assert.Equal(t, int64(2080), r.Value)
}

func TestLatestOneStoreFallback(t *testing.T) {
	store := &fakeStore{readings: []reading.Reading{
		cachedReading("dev1", reading.Temperature, 1890),
	}}
	server := newTestAPI(t, reading.NewCache(), store)

	resp, body := get(t, server, "/readings/dev1/temperature/latest")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var r reading.Reading
	require.NoError(t, json.Unmarshal(body, &r))
	assert.Equal(t, int64(1890), r.Value)
}

func TestLatestOneNotFound(t *testing.T) {
	server := newTestAPI(t, reading.NewCache(), &fakeStore{})
	resp, _ := get(t, server, "/readings/dev1/temperature/latest")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLatestOneSubSensorID(t *testing.T) {
	cache := reading.NewCache()
	cache.Update(cachedReading("station1:sub1", reading.Temperature, 2180))
	server := newTestAPI(t, cache, &fakeStore{})

	resp, body := get(t, server, "/readings/station1:sub1/temperature/latest")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var r reading.Reading
	require.NoError(t, json.Unmarshal(body, &r))
	assert.Equal(t, "station1:sub1", r.DeviceID)
	assert.Equal(t, int64(2180), r.Value)
}

func TestHealth(t *testing.T) {
	server := newTestAPI(t, reading.NewCache(), &fakeStore{})
	resp, body := get(t, server, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestVersion(t *testing.T) {
	server := newTestAPI(t, reading.NewCache(), &fakeStore{})
	resp, body := get(t, server, "/version")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"version":"unset"}`, string(body))
}
