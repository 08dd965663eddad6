package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"sesamum.org/internal/dashboard"
	"sesamum.org/internal/obs"
	"sesamum.org/internal/poll"
	"sesamum.org/internal/recent"
	"sesamum.org/internal/session"
)

const maxBodyBytes = 1 << 20

// ReadyProbe checks the state backend, when it is a database.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps wires the API to the agent's components. Nil components disable
// their routes with 503.
type Deps struct {
	Version    string
	Ready      ReadyProbe
	AuthSecret []byte
	DevMode    bool
	Session    *session.Session
	Metrics    *poll.Fetcher[dashboard.Metrics]
	Calendar   *poll.Fetcher[[]dashboard.CalendarEvent]
	Dashboard  *dashboard.Service
	Recent     *recent.Tracker
	RateBurst  int
	RatePerSec int
}

// API is the agent's HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	secret     []byte
	devMode    bool
	session    *session.Session
	metrics    *poll.Fetcher[dashboard.Metrics]
	calendar   *poll.Fetcher[[]dashboard.CalendarEvent]
	dashboard  *dashboard.Service
	recent     *recent.Tracker
	rateBurst  int
	ratePerSec int
}

func New(d Deps) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: d.Ready,
		version:    d.Version,
		secret:     d.AuthSecret,
		devMode:    d.DevMode,
		session:    d.Session,
		metrics:    d.Metrics,
		calendar:   d.Calendar,
		dashboard:  d.Dashboard,
		recent:     d.Recent,
		rateBurst:  d.RateBurst,
		ratePerSec: d.RatePerSec,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/me", a.handleMe)
	a.mux.HandleFunc("/v1/permissions", a.handlePermissions)

	a.mux.HandleFunc("/v1/dashboard/metrics", a.handleDashboardMetrics)
	a.mux.HandleFunc("/v1/dashboard/refresh", a.handleDashboardRefresh)
	a.mux.HandleFunc("/v1/dashboard/visibility", a.handleDashboardVisibility)
	a.mux.HandleFunc("/v1/dashboard/connectivity", a.handleDashboardConnectivity)
	a.mux.HandleFunc("/v1/dashboard/stream", a.handleDashboardStream)
	a.mux.HandleFunc("/v1/calendar", a.handleCalendar)
	a.mux.HandleFunc("/v1/calendar/refresh", a.handleCalendarRefresh)
	a.mux.HandleFunc("/v1/calendar/stream", a.handleCalendarStream)

	// guarded mutations
	a.mux.HandleFunc("/v1/staff", a.handleStaff)
	a.mux.HandleFunc("/v1/staff/", a.handleStaffItem)
	a.mux.HandleFunc("/v1/checks", a.handleChecks)
	a.mux.HandleFunc("/v1/events/", a.handleEventStaffBulk)

	a.mux.HandleFunc("/v1/recent", a.handleRecent)
	a.mux.HandleFunc("/v1/recent/stream", a.handleRecentStream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})

	return a
}

// Handler returns the mux wrapped in the middleware chain.
func (a *API) Handler() http.Handler {
	burst, perSec := a.rateBurst, a.ratePerSec
	if burst <= 0 {
		burst = 20
	}
	if perSec <= 0 {
		perSec = 10
	}
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, maxBodyBytes)
	h = RateLimit(h, burst, perSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "sesamum-agent",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":     "sesamum-agent",
		"time":     time.Now().UTC().Format(time.RFC3339),
		"version":  a.version,
		"dev_mode": a.devMode,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func unavailable(w http.ResponseWriter, r *http.Request, what string) {
	writeError(w, r, http.StatusServiceUnavailable, what+" disabled")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
