package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"sesamum.org/internal/auth"
	"sesamum.org/internal/dashboard"
)

type meResponse struct {
	User       *auth.Actor         `json:"user"`
	IsAdmin    bool                `json:"isAdmin"`
	IsCompany  bool                `json:"isCompany"`
	IsControl  bool                `json:"isControl"`
	IsDev      bool                `json:"isDev"`
	DevRole    auth.Role           `json:"devRole,omitempty"`
	Navigation []dashboard.NavItem `json:"navigation"`
}

type permissionResponse struct {
	Action   auth.Action   `json:"action"`
	Resource auth.Resource `json:"resource"`
	Allowed  bool          `json:"allowed"`
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		unauthorized(w, r, "authentication required")
		return
	}
	navRole := actor.Role
	override := devRoleFromContext(r.Context())
	if override == auth.RoleDev {
		navRole = auth.RoleDev
	}
	writeJSON(w, http.StatusOK, meResponse{
		User:       actor,
		IsAdmin:    actor.IsAdmin(),
		IsCompany:  actor.IsCompany(),
		IsControl:  actor.IsControl(),
		IsDev:      actor.IsDev(),
		DevRole:    override,
		Navigation: dashboard.Navigation(navRole),
	})
}

// handlePermissions answers GET /v1/permissions?action=&resource=&company_id=
// for the request actor. company_id, when present, is the ownership of the
// item being checked.
func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	q := r.URL.Query()
	action, err := auth.ParseAction(q.Get("action"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	resource, err := auth.ParseResource(q.Get("resource"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var item *auth.Item
	if raw := strings.TrimSpace(q.Get("company_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "company_id must be an integer")
			return
		}
		item = auth.OwnedBy(id)
	}
	writeJSON(w, http.StatusOK, permissionResponse{
		Action:   action,
		Resource: resource,
		Allowed:  auth.Allowed(r.Context(), action, resource, item),
	})
}
