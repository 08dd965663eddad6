package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"sesamum.org/internal/apiclient"
	"sesamum.org/internal/auth"
	"sesamum.org/internal/dashboard"
)

type bulkStaffRequest struct {
	Staff []apiclient.BulkStaff `json:"staff"`
}

// handleStaff lists the caller's company staff (GET, company role only) or
// creates a staff member (POST).
func (a *API) handleStaff(w http.ResponseWriter, r *http.Request) {
	if a.dashboard == nil {
		unavailable(w, r, "dashboard")
		return
	}
	switch r.Method {
	case http.MethodGet:
		RequireRole(auth.RoleCompany)(http.HandlerFunc(a.listStaff)).ServeHTTP(w, r)
	case http.MethodPost:
		var st dashboard.Staff
		if err := decodeJSON(w, r, &st); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(st.Name) == "" {
			writeError(w, r, http.StatusBadRequest, "name is required")
			return
		}
		created, err := a.dashboard.CreateStaff(r.Context(), st)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listStaff(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	if actor.CompanyID == nil {
		writeError(w, r, http.StatusForbidden, "no company affiliation")
		return
	}
	staff, err := a.dashboard.Staff(r.Context(), actor.CompanyID)
	if err != nil {
		writeError(w, r, http.StatusBadGateway, apiclient.ErrorMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": staff})
}

// handleStaffItem updates (PUT) or deletes (DELETE) /v1/staff/{id}.
func (a *API) handleStaffItem(w http.ResponseWriter, r *http.Request) {
	if a.dashboard == nil {
		unavailable(w, r, "dashboard")
		return
	}
	id, ok := pathID(strings.TrimPrefix(r.URL.Path, "/v1/staff/"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodPut:
		var st dashboard.Staff
		if err := decodeJSON(w, r, &st); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		st.ID = id
		updated, err := a.dashboard.UpdateStaff(r.Context(), st)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.dashboard.DeleteStaff(r.Context(), id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
	}
}

// handleChecks records a check-in or check-out.
func (a *API) handleChecks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.dashboard == nil {
		unavailable(w, r, "dashboard")
		return
	}
	var c dashboard.Check
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	created, err := a.dashboard.RecordCheck(r.Context(), c)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleEventStaffBulk serves POST /v1/events/{id}/staff/bulk.
func (a *API) handleEventStaffBulk(w http.ResponseWriter, r *http.Request) {
	rest, found := strings.CutSuffix(strings.TrimPrefix(r.URL.Path, "/v1/events/"), "/staff/bulk")
	eventID, ok := pathID(rest)
	if !found || !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.dashboard == nil {
		unavailable(w, r, "dashboard")
		return
	}
	var req bulkStaffRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Staff) == 0 {
		writeError(w, r, http.StatusBadRequest, "staff is required")
		return
	}
	if err := a.dashboard.AssignStaffBulk(r.Context(), eventID, req.Staff); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.Trim(s, "/"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// writeServiceError maps dashboard and upstream failures onto HTTP statuses.
// Upstream client errors keep their status; anything else is a bad gateway.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, dashboard.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != http.StatusUnauthorized:
		writeError(w, r, apiErr.Status, apiErr.Message)
	default:
		writeError(w, r, http.StatusBadGateway, apiclient.ErrorMessage(err))
	}
}
