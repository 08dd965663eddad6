package apiclient

import (
	"context"
	"net/http"
	"net/url"
)

// List fetches a collection, optionally filtered by query parameters.
func List[T any](ctx context.Context, c *Client, r Resource, query url.Values) ([]T, error) {
	var out []T
	if err := c.Do(ctx, http.MethodGet, Collection(r), query, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func Get[T any](ctx context.Context, c *Client, r Resource, id any) (T, error) {
	var out T
	err := c.Do(ctx, http.MethodGet, Detail(r, id), nil, nil, &out)
	return out, err
}

func Create[T any](ctx context.Context, c *Client, r Resource, body any) (T, error) {
	var out T
	err := c.Do(ctx, http.MethodPost, Collection(r), nil, body, &out)
	return out, err
}

// Update replaces an item (PUT).
func Update[T any](ctx context.Context, c *Client, r Resource, id any, body any) (T, error) {
	var out T
	err := c.Do(ctx, http.MethodPut, Detail(r, id), nil, body, &out)
	return out, err
}

// Patch partially updates an item.
func Patch[T any](ctx context.Context, c *Client, r Resource, id any, body any) (T, error) {
	var out T
	err := c.Do(ctx, http.MethodPatch, Detail(r, id), nil, body, &out)
	return out, err
}

func Delete(ctx context.Context, c *Client, r Resource, id any) error {
	return c.Do(ctx, http.MethodDelete, Detail(r, id), nil, nil, nil)
}

// Tokens is the token pair returned by login.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (Tokens, error) {
	var out Tokens
	err := c.Do(ctx, http.MethodPost, PathAuthLogin, nil, map[string]string{"email": email, "password": password}, &out)
	return out, err
}

// Refresh obtains a new access token. The refresh token is kept when the
// response does not rotate it.
func (c *Client) Refresh(ctx context.Context, refresh string) (Tokens, error) {
	var out Tokens
	if err := c.Do(ctx, http.MethodPost, PathAuthRefresh, nil, map[string]string{"refresh": refresh}, &out); err != nil {
		return Tokens{}, err
	}
	if out.Refresh == "" {
		out.Refresh = refresh
	}
	return out, nil
}

func (c *Client) Logout(ctx context.Context, refresh string) error {
	return c.Do(ctx, http.MethodPost, PathAuthLogout, nil, map[string]string{"refresh": refresh}, nil)
}

// BulkStaff is one row of a bulk event staff assignment.
type BulkStaff struct {
	CPF   string `json:"cpf"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// AssignStaffBulk creates event-staff relationships for many people at once.
func (c *Client) AssignStaffBulk(ctx context.Context, eventID int64, staff []BulkStaff) error {
	return c.Do(ctx, http.MethodPost, EventStaffBulk(eventID), nil, map[string]any{"staff": staff}, nil)
}
