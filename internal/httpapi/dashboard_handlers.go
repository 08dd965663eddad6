package httpapi

import (
	"net/http"

	"sesamum.org/internal/audit"
	"sesamum.org/internal/dashboard"
	"sesamum.org/internal/poll"
)

type visibilityRequest struct {
	Visible *bool `json:"visible"`
}

type connectivityRequest struct {
	Online *bool `json:"online"`
}

// pollStatus reports every dashboard poller after a visibility or
// connectivity change.
type pollStatus struct {
	Metrics  *poll.State[dashboard.Metrics]         `json:"metrics,omitempty"`
	Calendar *poll.State[[]dashboard.CalendarEvent] `json:"calendar,omitempty"`
}

func (a *API) pollers() bool { return a.metrics != nil || a.calendar != nil }

func (a *API) pollStatus() pollStatus {
	var st pollStatus
	if a.metrics != nil {
		m := a.metrics.State()
		st.Metrics = &m
	}
	if a.calendar != nil {
		c := a.calendar.State()
		st.Calendar = &c
	}
	return st
}

func (a *API) handleDashboardMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.metrics == nil {
		unavailable(w, r, "metrics polling")
		return
	}
	writeJSON(w, http.StatusOK, a.metrics.State())
}

// handleDashboardRefresh runs an explicit fetch and returns the resulting
// state. Fetch failures are reported inside the state, not as HTTP errors.
func (a *API) handleDashboardRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.metrics == nil {
		unavailable(w, r, "metrics polling")
		return
	}
	a.metrics.Refetch(r.Context())
	writeJSON(w, http.StatusOK, a.metrics.State())
}

func (a *API) handleDashboardVisibility(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.pollers() {
		unavailable(w, r, "dashboard polling")
		return
	}
	var req visibilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Visible == nil {
		writeError(w, r, http.StatusBadRequest, "visible is required")
		return
	}
	if a.metrics != nil {
		a.metrics.SetVisible(*req.Visible)
	}
	if a.calendar != nil {
		a.calendar.SetVisible(*req.Visible)
	}
	writeJSON(w, http.StatusOK, a.pollStatus())
}

func (a *API) handleDashboardConnectivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.pollers() {
		unavailable(w, r, "dashboard polling")
		return
	}
	var req connectivityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Online == nil {
		writeError(w, r, http.StatusBadRequest, "online is required")
		return
	}
	if a.metrics != nil {
		a.metrics.SetOnline(*req.Online)
	}
	if a.calendar != nil {
		a.calendar.SetOnline(*req.Online)
	}
	_ = audit.LogEvent(r.Context(), "dashboard.connectivity", map[string]any{"online": *req.Online})
	writeJSON(w, http.StatusOK, a.pollStatus())
}

func (a *API) handleDashboardStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.metrics == nil {
		unavailable(w, r, "metrics polling")
		return
	}
	st := a.metrics.State()
	serveSSE[poll.State[dashboard.Metrics]](w, r, "metrics", a.metrics.Subscribe, &st)
}

// handleCalendar returns the polled calendar state.
func (a *API) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.calendar == nil {
		unavailable(w, r, "calendar polling")
		return
	}
	writeJSON(w, http.StatusOK, a.calendar.State())
}

func (a *API) handleCalendarRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.calendar == nil {
		unavailable(w, r, "calendar polling")
		return
	}
	a.calendar.Refetch(r.Context())
	writeJSON(w, http.StatusOK, a.calendar.State())
}

func (a *API) handleCalendarStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.calendar == nil {
		unavailable(w, r, "calendar polling")
		return
	}
	st := a.calendar.State()
	serveSSE[poll.State[[]dashboard.CalendarEvent]](w, r, "calendar", a.calendar.Subscribe, &st)
}
