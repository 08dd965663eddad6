package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"sesamum.org/internal/apiclient"
	"sesamum.org/internal/audit"
	"sesamum.org/internal/auth"
)

// ErrForbidden is returned when the context actor may not perform a
// mutation. The API is not called in that case.
var ErrForbidden = errors.New("dashboard: forbidden")

var collections = map[auth.Resource]apiclient.Resource{
	auth.ResourceProject: apiclient.Projects,
	auth.ResourceEvent:   apiclient.Events,
	auth.ResourceCompany: apiclient.Companies,
	auth.ResourceStaff:   apiclient.Staffs,
	auth.ResourceUser:    apiclient.Users,
	auth.ResourceCheck:   apiclient.Checks,
}

// Service reads and mutates dashboard data through the REST API.
type Service struct {
	api *apiclient.Client
}

func NewService(api *apiclient.Client) *Service {
	return &Service{api: api}
}

// Metrics fetches the headline counters. It has the poll.FetchFunc shape.
func (s *Service) Metrics(ctx context.Context) (Metrics, error) {
	var m Metrics
	err := s.api.Do(ctx, http.MethodGet, apiclient.PathDashboardMetrics, nil, nil, &m)
	return m, err
}

func (s *Service) Events(ctx context.Context) ([]Event, error) {
	return apiclient.List[Event](ctx, s.api, apiclient.Events, nil)
}

func (s *Service) ProjectEvents(ctx context.Context, projectID int64) ([]Event, error) {
	q := url.Values{"project_id": {strconv.FormatInt(projectID, 10)}}
	return apiclient.List[Event](ctx, s.api, apiclient.Events, q)
}

func (s *Service) Projects(ctx context.Context) ([]Project, error) {
	return apiclient.List[Project](ctx, s.api, apiclient.Projects, nil)
}

func (s *Service) Companies(ctx context.Context) ([]Company, error) {
	return apiclient.List[Company](ctx, s.api, apiclient.Companies, nil)
}

// Staff lists staff; a non-nil companyID narrows the list.
func (s *Service) Staff(ctx context.Context, companyID *int64) ([]Staff, error) {
	var q url.Values
	if companyID != nil {
		q = url.Values{"company_id": {strconv.FormatInt(*companyID, 10)}}
	}
	return apiclient.List[Staff](ctx, s.api, apiclient.Staffs, q)
}

func (s *Service) Users(ctx context.Context) ([]User, error) {
	return apiclient.List[User](ctx, s.api, apiclient.Users, nil)
}

func (s *Service) EventStaff(ctx context.Context, eventID int64) ([]EventStaff, error) {
	q := url.Values{"event_id": {strconv.FormatInt(eventID, 10)}}
	return apiclient.List[EventStaff](ctx, s.api, apiclient.EventStaff, q)
}

// guard checks the context actor before a mutation.
func guard(ctx context.Context, action auth.Action, resource auth.Resource, item *auth.Item) error {
	if auth.Allowed(ctx, action, resource, item) {
		return nil
	}
	fields := map[string]any{"action": string(action), "resource": string(resource)}
	if item != nil && item.CompanyID != nil {
		fields["item_company_id"] = *item.CompanyID
	}
	_ = audit.LogEvent(ctx, "dashboard.mutation.denied", fields)
	return fmt.Errorf("%w: %s %s", ErrForbidden, action, resource)
}

func ptr[T any](v T) *T { return &v }

func ownedBy(companyID *int64) *auth.Item {
	if companyID == nil {
		return nil
	}
	return auth.OwnedBy(*companyID)
}

// Create posts body to the collection of resource after a create check.
// owner is the company the new item will belong to, if any.
func Create[T any](ctx context.Context, s *Service, resource auth.Resource, body T, owner *int64) (T, error) {
	var zero T
	if err := guard(ctx, auth.ActionCreate, resource, ownedBy(owner)); err != nil {
		return zero, err
	}
	return apiclient.Create[T](ctx, s.api, collections[resource], body)
}

// Update replaces item id after an update check against owner.
func Update[T any](ctx context.Context, s *Service, resource auth.Resource, id any, body T, owner *int64) (T, error) {
	var zero T
	if err := guard(ctx, auth.ActionUpdate, resource, ownedBy(owner)); err != nil {
		return zero, err
	}
	return apiclient.Update[T](ctx, s.api, collections[resource], id, body)
}

// Delete removes item id after a delete check against owner.
func (s *Service) Delete(ctx context.Context, resource auth.Resource, id any, owner *int64) error {
	if err := guard(ctx, auth.ActionDelete, resource, ownedBy(owner)); err != nil {
		return err
	}
	return apiclient.Delete(ctx, s.api, collections[resource], id)
}

// CreateStaff adds a staff member. Without a company the record is
// assigned to the caller's company, if any.
func (s *Service) CreateStaff(ctx context.Context, st Staff) (Staff, error) {
	if st.CompanyID == nil {
		if actor, ok := auth.ActorFromContext(ctx); ok && actor.CompanyID != nil {
			st.CompanyID = ptr(*actor.CompanyID)
		}
	}
	return Create(ctx, s, auth.ResourceStaff, st, st.CompanyID)
}

// UpdateStaff checks ownership of the stored record and of the company the
// record is moved to. A missing company keeps the stored one.
func (s *Service) UpdateStaff(ctx context.Context, st Staff) (Staff, error) {
	stored, err := apiclient.Get[Staff](ctx, s.api, apiclient.Staffs, st.ID)
	if err != nil {
		return Staff{}, err
	}
	if err := guard(ctx, auth.ActionUpdate, auth.ResourceStaff, ownedBy(stored.CompanyID)); err != nil {
		return Staff{}, err
	}
	if st.CompanyID == nil {
		st.CompanyID = stored.CompanyID
	}
	return Update(ctx, s, auth.ResourceStaff, st.ID, st, st.CompanyID)
}

// DeleteStaff loads the staff member first so ownership is checked against
// the stored company, not a caller supplied one.
func (s *Service) DeleteStaff(ctx context.Context, id int64) error {
	st, err := apiclient.Get[Staff](ctx, s.api, apiclient.Staffs, id)
	if err != nil {
		return err
	}
	return s.Delete(ctx, auth.ResourceStaff, id, st.CompanyID)
}

// RecordCheck registers a check-in or check-out.
func (s *Service) RecordCheck(ctx context.Context, c Check) (Check, error) {
	switch c.Action {
	case "check-in", "check-out", "registration":
	default:
		return Check{}, fmt.Errorf("%w: unknown check action %q", auth.ErrInvalidInput, c.Action)
	}
	return Create(ctx, s, auth.ResourceCheck, c, nil)
}

// AssignStaffBulk adds many people to an event. It is gated as a staff
// create for the caller's own company.
func (s *Service) AssignStaffBulk(ctx context.Context, eventID int64, staff []apiclient.BulkStaff) error {
	var owner *int64
	if actor, ok := auth.ActorFromContext(ctx); ok {
		owner = actor.CompanyID
	}
	if err := guard(ctx, auth.ActionCreate, auth.ResourceStaff, ownedBy(owner)); err != nil {
		return err
	}
	return s.api.AssignStaffBulk(ctx, eventID, staff)
}
