package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"sesamum.org/internal/apiclient"
	"sesamum.org/internal/auth"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func newTestService(t *testing.T) (*Service, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r.Method + " " + r.URL.Path)
		switch {
		case r.URL.Path == apiclient.PathDashboardMetrics:
			_, _ = w.Write([]byte(`{"activeEvents":3,"totalProjects":2,"totalCompanies":5,"totalUsers":9}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/staffs/11/":
			_, _ = w.Write([]byte(`{"id":11,"name":"Ana","cpf":"1","company_id":7}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/events/":
			_, _ = w.Write([]byte(`[{"id":1,"name":"Late","date_begin":"2026-05-02","date_end":"2026-05-03","status":"open"},{"id":2,"name":"Early","date_begin":"2026-04-01T10:00:00Z","date_end":"2026-04-01T18:00:00Z","status":"close"}]`))
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			_ = json.NewEncoder(w).Encode(body)
		}
	}))
	t.Cleanup(srv.Close)
	return NewService(apiclient.New(srv.URL)), rec
}

func as(role auth.Role, company *int64) context.Context {
	return auth.ContextWithActor(context.Background(), &auth.Actor{UserID: 1, Role: role, CompanyID: company})
}

func id(v int64) *int64 { return &v }

func TestMetrics(t *testing.T) {
	svc, _ := newTestService(t)
	m, err := svc.Metrics(context.Background())
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if m.ActiveEvents != 3 || m.TotalCompanies != 5 || m.RecentCheckIns != 0 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestCompanyStaffMutationsRespectOwnership(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := as(auth.RoleCompany, id(7))

	if _, err := svc.CreateStaff(ctx, Staff{Name: "Ana", CPF: "1", CompanyID: id(7)}); err != nil {
		t.Fatalf("own company create: %v", err)
	}
	if _, err := svc.CreateStaff(ctx, Staff{Name: "Bo", CPF: "2", CompanyID: id(8)}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign company create: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.UpdateStaff(ctx, Staff{ID: 11, Name: "Ana", CPF: "1", CompanyID: id(8)}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign company update: expected ErrForbidden, got %v", err)
	}
	if err := svc.DeleteStaff(ctx, 11); err != nil {
		t.Fatalf("own staff delete: %v", err)
	}

	want := []string{"POST /api/v1/staffs/", "GET /api/v1/staffs/11/", "GET /api/v1/staffs/11/", "DELETE /api/v1/staffs/11/"}
	got := rec.list()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls = %v, want %v", got, want)
		}
	}
}

func TestUpdateStaffChecksStoredOwner(t *testing.T) {
	svc, rec := newTestService(t)
	// Staff 11 belongs to company 7; company 8 cannot claim it by naming itself.
	if _, err := svc.UpdateStaff(as(auth.RoleCompany, id(8)), Staff{ID: 11, Name: "Ana", CompanyID: id(8)}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	for _, c := range rec.list() {
		if c == "PUT /api/v1/staffs/11/" {
			t.Fatal("denied update reached the API")
		}
	}

	st, err := svc.UpdateStaff(as(auth.RoleCompany, id(7)), Staff{ID: 11, Name: "Ana Maria"})
	if err != nil {
		t.Fatalf("own staff update: %v", err)
	}
	if st.CompanyID == nil || *st.CompanyID != 7 {
		t.Fatalf("stored company not kept: %+v", st)
	}
}

func TestCreateStaffDefaultsToCallerCompany(t *testing.T) {
	svc, _ := newTestService(t)
	st, err := svc.CreateStaff(as(auth.RoleCompany, id(7)), Staff{Name: "Bo", CPF: "2"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if st.CompanyID == nil || *st.CompanyID != 7 {
		t.Fatalf("expected company 7, got %+v", st)
	}
}

func TestDeleteStaffUsesStoredOwner(t *testing.T) {
	svc, rec := newTestService(t)
	if err := svc.DeleteStaff(as(auth.RoleCompany, id(8)), 11); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	for _, c := range rec.list() {
		if c == "DELETE /api/v1/staffs/11/" {
			t.Fatal("denied delete reached the API")
		}
	}
}

func TestControlRecordsChecksOnly(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := as(auth.RoleControl, nil)

	if _, err := svc.RecordCheck(ctx, Check{Action: "check-in", EventsStaffID: "es_1"}); err != nil {
		t.Fatalf("control check-in: %v", err)
	}
	if _, err := svc.RecordCheck(ctx, Check{Action: "teleport"}); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := svc.Delete(ctx, auth.ResourceEvent, 3, nil); !errors.Is(err, ErrForbidden) {
		t.Fatalf("control delete: expected ErrForbidden, got %v", err)
	}
	if _, err := Create(ctx, svc, auth.ResourceProject, Project{Name: "p"}, nil); !errors.Is(err, ErrForbidden) {
		t.Fatalf("control create project: expected ErrForbidden, got %v", err)
	}
	if n := len(rec.list()); n != 1 {
		t.Fatalf("expected only the check to reach the API, got %v", rec.list())
	}
}

func TestUnauthenticatedMutationIsForbidden(t *testing.T) {
	svc, rec := newTestService(t)
	if err := svc.Delete(context.Background(), auth.ResourceUser, 1, nil); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if len(rec.list()) != 0 {
		t.Fatal("unauthenticated mutation reached the API")
	}
}

func TestAdminDeletesUsers(t *testing.T) {
	svc, rec := newTestService(t)
	if err := svc.Delete(as(auth.RoleAdmin, nil), auth.ResourceUser, 4, nil); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if got := rec.list(); len(got) != 1 || got[0] != "DELETE /api/v1/users/4/" {
		t.Fatalf("unexpected calls %v", got)
	}
}

func TestCalendarFromService(t *testing.T) {
	svc, _ := newTestService(t)
	cal, err := svc.Calendar(context.Background())
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if len(cal) != 2 || cal[0].Title != "Early" || cal[1].Title != "Late" {
		t.Fatalf("unexpected calendar %+v", cal)
	}
	if cal[0].Color != ColorClosed || cal[1].Color != ColorOpen {
		t.Fatalf("unexpected colours %s %s", cal[0].Color, cal[1].Color)
	}
}
