package dashboard

import (
	"context"
	"sort"
	"strings"
	"time"

	"sesamum.org/internal/obs"
)

// Status colours used by the calendar.
const (
	ColorOpen    = "#16a34a"
	ColorClosed  = "#64748b"
	ColorPending = "#f59e0b"
)

// CalendarEvent is an event placed on the calendar.
type CalendarEvent struct {
	ID     int64     `json:"id"`
	Title  string    `json:"title"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Status string    `json:"status"`
	Color  string    `json:"color"`
	Kind   string    `json:"kind"` // event | project
	Event  Event     `json:"resource"`
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func statusColor(status string) string {
	switch status {
	case "open":
		return ColorOpen
	case "pending":
		return ColorPending
	default:
		return ColorClosed
	}
}

// BuildCalendar converts events into calendar entries ordered by start.
// Events without a parseable begin date are left out; a missing or earlier
// end collapses to the start.
func BuildCalendar(events []Event) []CalendarEvent {
	out := make([]CalendarEvent, 0, len(events))
	for _, ev := range events {
		start, ok := parseDate(ev.DateBegin)
		if !ok {
			obs.Warn("calendar: skipping event with bad date", map[string]any{"event_id": ev.ID, "date_begin": ev.DateBegin})
			continue
		}
		end, ok := parseDate(ev.DateEnd)
		if !ok || end.Before(start) {
			end = start
		}
		kind := ev.Type
		if kind == "" {
			kind = "event"
		}
		out = append(out, CalendarEvent{
			ID:     ev.ID,
			Title:  ev.Name,
			Start:  start,
			End:    end,
			Status: ev.Status,
			Color:  statusColor(ev.Status),
			Kind:   kind,
			Event:  ev,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Calendar fetches events and lays them out for the calendar.
func (s *Service) Calendar(ctx context.Context) ([]CalendarEvent, error) {
	events, err := s.Events(ctx)
	if err != nil {
		return nil, err
	}
	return BuildCalendar(events), nil
}
