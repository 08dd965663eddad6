package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fatih/color"

	"sesamum.org/internal/apiclient"
	"sesamum.org/internal/auth"
)

func init() { color.NoColor = true }

type harness struct {
	t     *testing.T
	state string
	api   string
}

func newHarness(t *testing.T, upstream http.Handler) *harness {
	t.Helper()
	if upstream == nil {
		upstream = http.NotFoundHandler()
	}
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)
	return &harness{t: t, state: filepath.Join(t.TempDir(), "state.db"), api: srv.URL}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--state", h.state, "--api", h.api}, args...))
	err := root.Execute()
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return out
}

func TestRecentAddListClear(t *testing.T) {
	h := newHarness(t, nil)

	if out := h.mustRun("recent", "list"); !strings.Contains(out, "No recent activity") {
		t.Fatalf("unexpected empty listing %q", out)
	}
	h.mustRun("recent", "add", "event", "Expo 2026", "--entity", "4", "--url", "/events/4")
	h.mustRun("recent", "add", "project", "Festival")
	h.mustRun("recent", "add", "event", "Expo 2026 (renamed)", "--entity", "4")

	out := h.mustRun("recent", "list", "--json")
	var visits []struct {
		Type  string `json:"type"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(out), &visits); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(visits) != 2 || visits[0].Title != "Expo 2026 (renamed)" || visits[1].Title != "Festival" {
		t.Fatalf("unexpected visits %+v", visits)
	}

	if out := h.mustRun("recent", "list"); !strings.Contains(out, "TITLE") || !strings.Contains(out, "Festival") {
		t.Fatalf("unexpected table %q", out)
	}

	h.mustRun("recent", "clear")
	if out := h.mustRun("recent", "list"); !strings.Contains(out, "No recent activity") {
		t.Fatalf("log not cleared: %q", out)
	}
}

func TestRecentAddRejectsUnknownType(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.run("recent", "add", "invoice", "Nope"); err == nil || !strings.Contains(err.Error(), "invalid visit type") {
		t.Fatalf("expected invalid type error, got %v", err)
	}
}

func TestLoginWhoamiLogout(t *testing.T) {
	company := int64(7)
	access, err := auth.IssueToken([]byte("upstream"), auth.Actor{
		UserID: 5, Name: "Carla", Email: "carla@example.com", Role: auth.RoleCompany, CompanyID: &company,
	}, auth.TokenTypeAccess, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	var loggedOut atomic.Bool
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case apiclient.PathAuthLogin:
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["password"] != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail":"Invalid credentials"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(apiclient.Tokens{Access: access, Refresh: "r-1"})
		case apiclient.PathAuthLogout:
			loggedOut.Store(true)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	if _, err := h.run("login", "--email", "carla@example.com", "--password", "wrong"); err == nil || !strings.Contains(err.Error(), "Invalid credentials") {
		t.Fatalf("expected upstream message, got %v", err)
	}

	if out := h.mustRun("login", "--email", "carla@example.com", "--password", "secret"); !strings.Contains(out, "Signed in as Carla") {
		t.Fatalf("unexpected login output %q", out)
	}

	out := h.mustRun("whoami")
	for _, want := range []string{"Carla", "Role: company", "Company: 7", "/staffs"} {
		if !strings.Contains(out, want) {
			t.Fatalf("whoami missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "/users") {
		t.Fatalf("company user should not see /users:\n%s", out)
	}

	h.mustRun("logout")
	if !loggedOut.Load() {
		t.Fatal("refresh token was not revoked upstream")
	}
	if out := h.mustRun("whoami"); !strings.Contains(out, "Not signed in") {
		t.Fatalf("session not cleared: %q", out)
	}
}

func TestRefreshReplacesAccessToken(t *testing.T) {
	company := int64(7)
	issue := func(name string) string {
		tok, err := auth.IssueToken([]byte("upstream"), auth.Actor{
			UserID: 5, Name: name, Role: auth.RoleCompany, CompanyID: &company,
		}, auth.TokenTypeAccess, time.Hour, time.Now())
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		return tok
	}
	first, second := issue("Carla"), issue("Carla Souza")
	var refreshed atomic.Int64
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case apiclient.PathAuthLogin:
			_ = json.NewEncoder(w).Encode(apiclient.Tokens{Access: first, Refresh: "r-1"})
		case apiclient.PathAuthRefresh:
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["refresh"] != "r-1" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail":"Token is invalid or expired"}`))
				return
			}
			refreshed.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]string{"access": second})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	if _, err := h.run("refresh"); err == nil || !strings.Contains(err.Error(), "not signed in") {
		t.Fatalf("expected not signed in, got %v", err)
	}

	h.mustRun("login", "--email", "carla@example.com", "--password", "secret")
	if out := h.mustRun("refresh"); !strings.Contains(out, "Session refreshed") {
		t.Fatalf("unexpected refresh output %q", out)
	}
	if refreshed.Load() != 1 {
		t.Fatalf("expected one refresh call, got %d", refreshed.Load())
	}
	if out := h.mustRun("whoami"); !strings.Contains(out, "Carla Souza") {
		t.Fatalf("new access token not stored:\n%s", out)
	}
	// the refresh token survives a response without one
	h.mustRun("refresh")
	if refreshed.Load() != 2 {
		t.Fatalf("stored refresh token was lost, calls=%d", refreshed.Load())
	}
}

func TestRoleOverrideChangesPermissions(t *testing.T) {
	h := newHarness(t, nil)

	if out := h.mustRun("--dev", "can", "create", "events"); !strings.Contains(out, "allowed") {
		t.Fatalf("dev user should act as admin: %q", out)
	}

	if out := h.mustRun("--dev", "can", "delete", "user"); !strings.Contains(out, "allowed") {
		t.Fatalf("singular resource names should be accepted: %q", out)
	}

	h.mustRun("--dev", "role", "set", "control")
	out, err := h.run("--dev", "can", "create", "events")
	if !errors.Is(err, ErrDenied) || !strings.Contains(out, "denied") {
		t.Fatalf("control should not create events: %v %q", err, out)
	}
	if out := h.mustRun("--dev", "can", "create", "checks"); !strings.Contains(out, "allowed") {
		t.Fatalf("control should record checks: %q", out)
	}

	h.mustRun("--dev", "role", "set", "company")
	if _, err := h.run("--dev", "can", "update", "staffs", "--company", "2"); !errors.Is(err, ErrDenied) {
		t.Fatalf("foreign staff update should be denied, got %v", err)
	}
	if out := h.mustRun("--dev", "can", "update", "staffs", "--company", "1"); !strings.Contains(out, "allowed") {
		t.Fatalf("own staff update should be allowed: %q", out)
	}

	h.mustRun("--dev", "role", "clear")
	if out := h.mustRun("--dev", "whoami"); !strings.Contains(out, "Role: admin") {
		t.Fatalf("override not cleared: %q", out)
	}
}

func TestRoleSetRejectsUnknownRole(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.run("role", "set", "root"); err == nil || !strings.Contains(err.Error(), "invalid role") {
		t.Fatalf("expected invalid role error, got %v", err)
	}
}

func TestCanWithoutSessionIsDenied(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.run("can", "read", "events"); !errors.Is(err, ErrDenied) {
		t.Fatalf("anonymous read should be denied, got %v", err)
	}
	if _, err := h.run("can", "fly", "events"); err == nil || errors.Is(err, ErrDenied) {
		t.Fatalf("unknown action should be a usage error, got %v", err)
	}
	if _, err := h.run("can", "read", "invoices"); err == nil || errors.Is(err, ErrDenied) {
		t.Fatalf("unknown resource should be a usage error, got %v", err)
	}
}

func TestMetricsOnce(t *testing.T) {
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != apiclient.PathDashboardMetrics {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"activeEvents":3,"totalProjects":2,"totalCompanies":5,"totalUsers":11,"recentCheckIns":40}`))
	}))
	out := h.mustRun("metrics")
	for _, want := range []string{"Active events:    3", "Users:            11", "Recent check-ins: 40"} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, out)
		}
	}
}

func TestMetricsReportsUpstreamError(t *testing.T) {
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"metrics unavailable"}`))
	}))
	if _, err := h.run("metrics"); err == nil || !strings.Contains(err.Error(), "metrics unavailable") {
		t.Fatalf("expected upstream message, got %v", err)
	}
}
