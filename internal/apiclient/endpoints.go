package apiclient

import (
	"fmt"
	"strings"
)

// Resource is a REST collection under /api/v1/.
type Resource string

const (
	Events         Resource = "events"
	Projects       Resource = "projects"
	Companies      Resource = "companies"
	Staffs         Resource = "staffs"
	Users          Resource = "users"
	Checks         Resource = "checks"
	EventCompanies Resource = "event-companies"
	EventStaff     Resource = "event-staff"
	EventUsers     Resource = "event-users"
)

const (
	apiPrefix = "/api/v1/"

	PathAuthLogin           = apiPrefix + "auth/login/"
	PathAuthRefresh         = apiPrefix + "auth/refresh/"
	PathAuthLogout          = apiPrefix + "auth/logout/"
	PathDashboardMetrics    = apiPrefix + "dashboard/metrics/"
	PathDashboardActivities = apiPrefix + "dashboard/activities/"
)

// Collection returns the list/create path of r.
func Collection(r Resource) string {
	return apiPrefix + string(r) + "/"
}

// Detail returns the item path of r. Event-staff ids are strings, the rest
// are integers.
func Detail(r Resource, id any) string {
	return fmt.Sprintf("%s%s/%v/", apiPrefix, r, id)
}

// EventStaffBulk returns the bulk staff assignment path of an event.
func EventStaffBulk(eventID int64) string {
	return fmt.Sprintf("%sevents/%d/staff/bulk", apiPrefix, eventID)
}

// EventOverview returns the aggregated overview path of an event.
func EventOverview(eventID int64) string {
	return fmt.Sprintf("%sevents/%d/overview/", apiPrefix, eventID)
}

// ParseResource accepts a collection name with or without slashes.
func ParseResource(s string) (Resource, bool) {
	r := Resource(strings.Trim(strings.ToLower(strings.TrimSpace(s)), "/"))
	switch r {
	case Events, Projects, Companies, Staffs, Users, Checks, EventCompanies, EventStaff, EventUsers:
		return r, true
	}
	return "", false
}
