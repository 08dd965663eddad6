// Package recent keeps a bounded, deduplicated, most-recent-first log of
// entity visits for the "recently viewed" panel.
package recent

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"sesamum.org/internal/ids"
	"sesamum.org/internal/obs"
	"sesamum.org/internal/storage"
	"sesamum.org/internal/stream"
)

const (
	StorageKey = "sesamum_recent_activities"
	MaxItems   = 50
)

// Type is the kind of entity a visit refers to.
type Type string

const (
	TypeEvent   Type = "event"
	TypeProject Type = "project"
	TypeUser    Type = "user"
	TypeCheckin Type = "checkin"
	TypeStaff   Type = "staff"
	TypeCompany Type = "company"
)

// ValidType reports whether t is one of the known visit types.
func ValidType(t Type) bool {
	switch t {
	case TypeEvent, TypeProject, TypeUser, TypeCheckin, TypeStaff, TypeCompany:
		return true
	}
	return false
}

// Visit is one entry of the recent activity log.
type Visit struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Icon        string    `json:"icon,omitempty"`
	URL         string    `json:"url,omitempty"`
	EntityID    *int64    `json:"entityId,omitempty"`
}

// sameEntity is true only when both visits carry an entity id.
func (v Visit) sameEntity(o Visit) bool {
	return v.Type == o.Type && v.EntityID != nil && o.EntityID != nil && *v.EntityID == *o.EntityID
}

// ChangeKind describes what happened to the log.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeCleared ChangeKind = "cleared"
)

// Change is published to subscribers after every successful write.
type Change struct {
	Kind  ChangeKind `json:"kind"`
	Visit *Visit     `json:"visit,omitempty"`
	At    time.Time  `json:"at"`
}

// Tracker reads and writes the log in a storage.KV. Writes are
// read-modify-write without locking; concurrent writers may lose updates.
type Tracker struct {
	kv    storage.KV
	now   func() time.Time
	limit int
	hub   *stream.Hub[Change]
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source used to stamp visits.
func WithClock(fn func() time.Time) Option {
	return func(t *Tracker) {
		if fn != nil {
			t.now = fn
		}
	}
}

// WithLimit overrides the number of retained visits.
func WithLimit(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.limit = n
		}
	}
}

// WithHub shares a change hub, e.g. between an HTTP stream and the tracker.
func WithHub(h *stream.Hub[Change]) Option {
	return func(t *Tracker) {
		if h != nil {
			t.hub = h
		}
	}
}

func NewTracker(kv storage.KV, opts ...Option) *Tracker {
	t := &Tracker{
		kv:    kv,
		now:   time.Now,
		limit: MaxItems,
		hub:   stream.New[Change](),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// List returns the stored visits, most recent first. Missing or corrupt
// storage yields an empty list.
func (t *Tracker) List(ctx context.Context) []Visit {
	raw, ok, err := t.kv.Get(ctx, StorageKey)
	if err != nil {
		obs.Error("recent visits read failed", map[string]any{"err": err})
		return []Visit{}
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return []Visit{}
	}
	var visits []Visit
	if err := json.Unmarshal([]byte(raw), &visits); err != nil {
		obs.Error("recent visits corrupt, treating as empty", map[string]any{"err": err})
		return []Visit{}
	}
	if visits == nil {
		visits = []Visit{}
	}
	return visits
}

// Add stamps v with the current time, replaces any visit to the same entity,
// prepends it and trims the log. It reports whether the log was persisted;
// failures are logged, never returned.
func (t *Tracker) Add(ctx context.Context, v Visit) (Visit, bool) {
	v.Title = strings.TrimSpace(v.Title)
	if !ValidType(v.Type) {
		obs.Warn("recent visit ignored: unknown type", map[string]any{"type": string(v.Type)})
		return Visit{}, false
	}
	v.Timestamp = t.now().UTC()
	if v.ID == "" {
		v.ID = ids.NewAt(v.Timestamp)
	}

	existing := t.List(ctx)
	updated := make([]Visit, 0, len(existing)+1)
	updated = append(updated, v)
	for _, item := range existing {
		if item.sameEntity(v) {
			continue
		}
		updated = append(updated, item)
	}
	if len(updated) > t.limit {
		updated = updated[:t.limit]
	}

	data, err := json.Marshal(updated)
	if err != nil {
		obs.Error("recent visits encode failed", map[string]any{"err": err})
		return v, false
	}
	if err := t.kv.Set(ctx, StorageKey, string(data)); err != nil {
		obs.Error("recent visits write failed", map[string]any{"err": err})
		return v, false
	}
	added := v
	t.hub.Publish(Change{Kind: ChangeAdded, Visit: &added, At: v.Timestamp})
	return v, true
}

// Clear removes every visit.
func (t *Tracker) Clear(ctx context.Context) bool {
	if err := t.kv.Delete(ctx, StorageKey); err != nil {
		obs.Error("recent visits clear failed", map[string]any{"err": err})
		return false
	}
	t.hub.Publish(Change{Kind: ChangeCleared, At: t.now().UTC()})
	return true
}

// Changes subscribes to write notifications until ctx ends.
func (t *Tracker) Changes(ctx context.Context) <-chan Change {
	return t.hub.Subscribe(ctx)
}
