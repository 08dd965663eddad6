package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"sesamum.org/internal/auth"
)

type fakeCreds struct {
	mu      sync.Mutex
	token   string
	role    auth.Role
	logouts []string
}

func (f *fakeCreds) AccessToken(context.Context) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.token != ""
}

func (f *fakeCreds) DevRole(context.Context) auth.Role { return f.role }

func (f *fakeCreds) Logout(_ context.Context, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.logouts = append(f.logouts, reason)
	return nil
}

type event struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestDecoratesRequests(t *testing.T) {
	var got http.Header
	var gotPath, gotQuery string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode([]event{{ID: 1, Name: "Expo", Status: "open"}})
	})

	creds := &fakeCreds{token: "tok-1", role: auth.RoleControl}
	c := New(srv.URL+"/", WithCredentials(creds))
	events, err := List[event](context.Background(), c, Events, url.Values{"project_id": {"3"}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 || events[0].Name != "Expo" {
		t.Fatalf("unexpected events %+v", events)
	}
	if gotPath != "/api/v1/events/" || gotQuery != "project_id=3" {
		t.Fatalf("unexpected target %s?%s", gotPath, gotQuery)
	}
	if got.Get("Authorization") != "Bearer tok-1" {
		t.Fatalf("missing bearer, got %q", got.Get("Authorization"))
	}
	if got.Get("X-User-Role") != "control" {
		t.Fatalf("missing dev role header, got %q", got.Get("X-User-Role"))
	}
	if got.Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected content type %q", got.Get("Content-Type"))
	}
}

func TestNoCredentialsNoHeaders(t *testing.T) {
	var got http.Header
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	})
	c := New(srv.URL, WithCredentials(&fakeCreds{}))
	if err := Delete(context.Background(), c, Staffs, 4); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got.Get("Authorization") != "" || got.Get("X-User-Role") != "" {
		t.Fatalf("unexpected auth headers %v", got)
	}
}

func TestUnauthorizedLogsOut(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Token expired"}`))
	})
	creds := &fakeCreds{token: "stale"}
	c := New(srv.URL, WithCredentials(creds))

	_, err := Get[event](context.Background(), c, Events, 7)
	if !IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if ErrorMessage(err) != "Token expired" {
		t.Fatalf("unexpected message %q", ErrorMessage(err))
	}
	if len(creds.logouts) != 1 || creds.token != "" {
		t.Fatalf("expected one logout clearing the token, got %+v", creds)
	}
}

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"detail", `{"detail":"Not allowed","message":"ignored"}`, "Not allowed"},
		{"message", `{"message":"Bad CPF"}`, "Bad CPF"},
		{"empty detail falls through", `{"detail":"","message":"Bad CPF"}`, "Bad CPF"},
		{"structured detail", `{"detail":{"cpf":["invalid"]}}`, `{"cpf":["invalid"]}`},
		{"no fields", `{"other":1}`, "An error occurred"},
		{"not json", `<html>oops</html>`, "An error occurred"},
		{"empty", ``, "An error occurred"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := Create[event](context.Background(), New(srv.URL), Events, event{Name: "x"})
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
				t.Fatalf("expected APIError 400, got %v", err)
			}
			if got := ErrorMessage(err); got != tc.want {
				t.Fatalf("message = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := List[event](context.Background(), New(base), Events, nil)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if ErrorMessage(err) != NetworkMessage {
		t.Fatalf("unexpected message %q", ErrorMessage(err))
	}
	if ErrorMessage(errors.New("boom")) != "An unexpected error occurred" {
		t.Fatal("unexpected fallback message")
	}
}

func TestWithErrorMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"metrics unavailable"}`))
	}))
	c := New(srv.URL)
	fetch := WithErrorMessages(func(ctx context.Context) ([]event, error) {
		return List[event](ctx, c, Events, nil)
	})

	_, err := fetch(context.Background())
	if err == nil || err.Error() != "metrics unavailable" {
		t.Fatalf("expected body message, got %v", err)
	}
	if !IsStatus(err, http.StatusInternalServerError) {
		t.Fatalf("status lost in wrapping: %v", err)
	}

	srv.Close()
	_, err = fetch(context.Background())
	if err == nil || err.Error() != NetworkMessage || !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected network message, got %v", err)
	}

	ok := WithErrorMessages(func(context.Context) (int, error) { return 3, nil })
	if v, err := ok(context.Background()); v != 3 || err != nil {
		t.Fatalf("success altered: %v %v", v, err)
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("unexpected method %s", r.Method)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	c := New(srv.URL)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("error status should still count as reachable: %v", err)
	}
	srv.Close()
	if err := c.Ping(context.Background()); !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork after close, got %v", err)
	}
}

func TestCRUDVerbsAndPaths(t *testing.T) {
	type call struct{ method, path string }
	var mu sync.Mutex
	var calls []call
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, call{r.Method, r.URL.Path})
		mu.Unlock()
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(event{ID: 9, Name: "Expo"})
	})
	ctx := context.Background()
	c := New(srv.URL)

	if _, err := Create[event](ctx, c, Companies, map[string]string{"name": "Acme"}); err != nil {
		t.Fatal(err)
	}
	if _, err := Update[event](ctx, c, Companies, 9, map[string]string{"name": "Acme"}); err != nil {
		t.Fatal(err)
	}
	if _, err := Patch[event](ctx, c, EventStaff, "es_abc", map[string]string{}); err != nil {
		t.Fatal(err)
	}
	if err := Delete(ctx, c, EventUsers, 3); err != nil {
		t.Fatal(err)
	}
	if err := c.AssignStaffBulk(ctx, 12, []BulkStaff{{CPF: "1", Name: "Ana"}}); err != nil {
		t.Fatal(err)
	}

	want := []call{
		{http.MethodPost, "/api/v1/companies/"},
		{http.MethodPut, "/api/v1/companies/9/"},
		{http.MethodPatch, "/api/v1/event-staff/es_abc/"},
		{http.MethodDelete, "/api/v1/event-users/3/"},
		{http.MethodPost, "/api/v1/events/12/staff/bulk"},
	}
	if len(calls) != len(want) {
		t.Fatalf("expected %d calls, got %+v", len(want), calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d = %+v, want %+v", i, calls[i], want[i])
		}
	}
}

func TestLoginAndRefresh(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch r.URL.Path {
		case PathAuthLogin:
			if body["email"] != "a@b.c" || body["password"] != "pw" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`{"access":"A1","refresh":"R1"}`))
		case PathAuthRefresh:
			_, _ = w.Write([]byte(`{"access":"A2"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()
	c := New(srv.URL)

	tokens, err := c.Login(ctx, "a@b.c", "pw")
	if err != nil || tokens.Access != "A1" || tokens.Refresh != "R1" {
		t.Fatalf("login = %+v, %v", tokens, err)
	}
	tokens, err = c.Refresh(ctx, "R1")
	if err != nil || tokens.Access != "A2" || tokens.Refresh != "R1" {
		t.Fatalf("refresh = %+v, %v", tokens, err)
	}
}

func TestRateLimitHonoursContext(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	c := New(srv.URL, WithRateLimit(0.001, 1))
	ctx := context.Background()
	if err := Delete(ctx, c, Checks, 1); err != nil {
		t.Fatalf("first request: %v", err)
	}
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if err := Delete(cctx, c, Checks, 1); !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected throttled request to fail, got %v", err)
	}
}

func TestEndpoints(t *testing.T) {
	if Collection(EventCompanies) != "/api/v1/event-companies/" {
		t.Fatal(Collection(EventCompanies))
	}
	if Detail(Users, int64(5)) != "/api/v1/users/5/" {
		t.Fatal(Detail(Users, int64(5)))
	}
	if r, ok := ParseResource("/Staffs/"); !ok || r != Staffs {
		t.Fatalf("parse = %q, %v", r, ok)
	}
	if _, ok := ParseResource("invites"); ok {
		t.Fatal("unknown resource accepted")
	}
}
