package httpapi

import (
	"net/http"
	"strings"

	"sesamum.org/internal/audit"
	"sesamum.org/internal/recent"
)

type addVisitRequest struct {
	Type        recent.Type `json:"type"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Icon        string      `json:"icon,omitempty"`
	URL         string      `json:"url,omitempty"`
	EntityID    *int64      `json:"entityId,omitempty"`
}

type listVisitsResponse struct {
	Items []recent.Visit `json:"items"`
}

func (a *API) handleRecent(w http.ResponseWriter, r *http.Request) {
	if a.recent == nil {
		unavailable(w, r, "recent visits")
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, listVisitsResponse{Items: a.recent.List(r.Context())})
	case http.MethodPost:
		a.addVisit(w, r)
	case http.MethodDelete:
		if !a.recent.Clear(r.Context()) {
			writeError(w, r, http.StatusInternalServerError, "recent visits not cleared")
			return
		}
		_ = audit.LogEvent(r.Context(), "recent.cleared", nil)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) addVisit(w http.ResponseWriter, r *http.Request) {
	var req addVisitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !recent.ValidType(req.Type) {
		writeError(w, r, http.StatusBadRequest, "unknown visit type")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, r, http.StatusBadRequest, "title is required")
		return
	}
	v, ok := a.recent.Add(r.Context(), recent.Visit{
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		Icon:        req.Icon,
		URL:         req.URL,
		EntityID:    req.EntityID,
	})
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "recent visit not persisted")
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (a *API) handleRecentStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.recent == nil {
		unavailable(w, r, "recent visits")
		return
	}
	serveSSE[recent.Change](w, r, "recent", a.recent.Changes, nil)
}
