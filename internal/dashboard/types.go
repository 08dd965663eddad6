// Package dashboard holds the credentialing domain as seen by the operator
// dashboard: entity types, metrics, the event calendar and role based
// navigation.
package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FlexID is an identifier the API may send as a JSON string or number.
type FlexID string

func (id *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = FlexID(n.String())
	return nil
}

// Company is an organisation taking part in events.
type Company struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"` // production | service
	CNPJ string `json:"cnpj"`
}

type Project struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"` // open | close
	CompanyID int64  `json:"company_id"`
}

type Event struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	DateBegin   string         `json:"date_begin"`
	DateEnd     string         `json:"date_end"`
	Status      string         `json:"status"` // open | close | pending
	ProjectID   *int64         `json:"project_id,omitempty"`
	Type        string         `json:"type,omitempty"` // event | project
	Location    string         `json:"location,omitempty"`
	StaffsQnt   int            `json:"staffs_qnt,omitempty"`
	Companies   []EventCompany `json:"companies,omitempty"`
}

type EventCompany struct {
	ID        int64  `json:"id"`
	Role      string `json:"role"` // production | service
	EventID   int64  `json:"event_id"`
	CompanyID int64  `json:"company_id"`
}

// Staff is a credentialed person employed by a company.
type Staff struct {
	ID        int64  `json:"id,omitempty"`
	Name      string `json:"name"`
	CPF       string `json:"cpf"`
	Email     string `json:"email,omitempty"`
	CompanyID *int64 `json:"company_id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// EventStaff assigns a staff member to an event. Its id is a short string.
type EventStaff struct {
	ID                  FlexID `json:"id,omitempty"`
	EventID             int64  `json:"event_id"`
	StaffID             *int64 `json:"staff_id,omitempty"`
	StaffCPF            string `json:"staff_cpf"`
	RegistrationCheckID *int64 `json:"registration_check_id,omitempty"`
	CreatedAt           string `json:"created_at,omitempty"`
	CreatedBy           *int64 `json:"created_by,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Picture   string `json:"picture,omitempty"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CompanyID *int64 `json:"company_id,omitempty"`
}

// Check is a check-in or check-out recorded by a control user.
type Check struct {
	ID            int64  `json:"id,omitempty"`
	Action        string `json:"action"` // check-in | check-out
	Timestamp     string `json:"timestamp,omitempty"`
	EventsStaffID FlexID `json:"events_staff_id"`
	UserControlID int64  `json:"user_control_id,omitempty"`
}

// Metrics are the dashboard headline counters.
type Metrics struct {
	ActiveEvents   int `json:"activeEvents"`
	TotalProjects  int `json:"totalProjects"`
	TotalCompanies int `json:"totalCompanies"`
	TotalUsers     int `json:"totalUsers"`
	RecentCheckIns int `json:"recentCheckIns"`
}
