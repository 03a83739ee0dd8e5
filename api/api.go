// Package api is the RESTful interface to the collected sensor readings.
package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/sensorhub/core/logger"
	"github.com/relabs-tech/sensorhub/reading"
)

var (
	// Version is the version of the current build
	Version = "unset"
)

// Store is the subset of the reading store the API needs.
type Store interface {
	Range(deviceID string, kind reading.Kind, from, to *time.Time) ([]reading.Reading, error)
	Latest(deviceID string, kind reading.Kind) (reading.Reading, bool, error)
}

// API serves the reading endpoints.
type API struct {
	cache *reading.Cache
	store Store
}

// Builder is a builder helper for the API.
type Builder struct {
	// Cache is the shared latest-reading cache. This is mandatory.
	Cache *reading.Cache
	// Store is the reading store. This is mandatory.
	Store Store
	// Router is a mux router. This is mandatory.
	Router *mux.Router
}

// MustNewAPI realizes the actual API and adds routes to the router.
// It panics on missing mandatory builder fields.
func MustNewAPI(b *Builder) *API {
	if b.Cache == nil {
		panic("Cache is missing")
	}
	if b.Store == nil {
		panic("Store is missing")
	}
	if b.Router == nil {
		panic("Router is missing")
	}
	a := &API{
		cache: b.Cache,
		store: b.Store,
	}
	a.handleRoutes(b.Router)
	return a
}

func (a *API) handleRoutes(router *mux.Router) {
	logger.Default().Debugln("api: handle route /readings/latest GET")
	logger.Default().Debugln("api: handle route /readings/{device_id}/{sensor_kind} GET")
	logger.Default().Debugln("api: handle route /readings/{device_id}/{sensor_kind}/latest GET")
	logger.Default().Debugln("api: handle route /health GET")
	logger.Default().Debugln("api: handle route /version GET")

	router.Handle("/readings/latest",
		handlers.CompressHandler(http.HandlerFunc(a.latestAll))).Methods(http.MethodOptions, http.MethodGet)
	router.Handle("/readings/{device_id}/{sensor_kind}",
		handlers.CompressHandler(http.HandlerFunc(a.readingRange))).Methods(http.MethodOptions, http.MethodGet)
	router.HandleFunc("/readings/{device_id}/{sensor_kind}/latest", a.latestOne).Methods(http.MethodOptions, http.MethodGet)
	router.HandleFunc("/health", health).Methods(http.MethodOptions, http.MethodGet)
	router.HandleFunc("/version", version).Methods(http.MethodOptions, http.MethodGet)
}

// latestAll returns the cached latest reading for every known
// (device, kind) pair.
func (a *API) latestAll(w http.ResponseWriter, r *http.Request) {
	all := a.cache.All()
	sort.Slice(all, func(i, j int) bool {
		if all[i].DeviceID != all[j].DeviceID {
			return all[i].DeviceID < all[j].DeviceID
		}
		return all[i].Kind < all[j].Kind
	})
	writeJSON(w, all)
}

// readingRange returns the time series of one (device, kind), optionally
// restricted with ?from=<RFC3339>&to=<RFC3339>.
func (a *API) readingRange(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	kind, err := reading.ParseKind(params["sensor_kind"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	from, err := timeParam(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := timeParam(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	all, err := a.store.Range(params["device_id"], kind, from, to)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("cannot query readings")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, all)
}

// latestOne returns the single latest reading of one (device, kind), served
// from the cache when possible, with the database as fallback after a
// restart.
func (a *API) latestOne(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	kind, err := reading.ParseKind(params["sensor_kind"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	deviceID := params["device_id"]

	if cached, ok := a.cache.Get(deviceID, kind); ok {
		writeJSON(w, cached)
		return
	}
	stored, ok, err := a.store.Latest(deviceID, kind)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("cannot query latest reading")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "no such reading", http.StatusNotFound)
		return
	}
	writeJSON(w, stored)
}

func health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"version": Version})
}

func timeParam(r *http.Request, name string) (*time.Time, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	data, _ := json.Marshal(v)
	w.Write(data)
}
