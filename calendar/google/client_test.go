package google

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/api/option"

	"github.com/guilherme-santos/calfed/internal"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &Client{
		logger: slog.Default(),
		opts: []option.ClientOption{
			option.WithEndpoint(srv.URL + "/"),
			option.WithHTTPClient(srv.Client()),
		},
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error": map[string]any{
			"code":    404,
			"message": "Not Found",
			"errors":  []map[string]string{{"reason": "notFound", "message": "Not Found"}},
		},
	})
}

func TestCalendarID(t *testing.T) {
	id, err := CalendarID(ShareURL("team@group.calendar.google.com"))
	if err != nil || id != "team@group.calendar.google.com" {
		t.Fatalf("CalendarID = %q, %v", id, err)
	}
	if _, err := CalendarID("https://calendar.google.com/calendar/embed"); !errors.Is(err, internal.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
}

func TestGuestSession_UnknownShare(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /calendars/{id}", notFound)
	c := newTestClient(t, mux)

	_, err := c.GuestSession(context.Background(), internal.LocalSession{}, ShareURL("gone"), "")
	if !errors.Is(err, internal.ErrUnknownShare) {
		t.Fatalf("expected unknown share, got %v", err)
	}
}

func TestSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /calendars/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": r.PathValue("id"), "summary": "Team"})
	})
	mux.HandleFunc("GET /calendars/{id}/events", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("timeMin") == "" {
			t.Errorf("missing timeMin")
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": []map[string]any{
				{
					"id":       "e1",
					"iCalUID":  "uid-1",
					"summary":  "Standup",
					"start":    map[string]string{"dateTime": "2026-10-16T09:00:00Z"},
					"end":      map[string]string{"dateTime": "2026-10-16T09:15:00Z"},
					"updated":  "2026-10-15T10:00:00Z",
					"sequence": 2,
					"organizer": map[string]string{
						"email":       "alice@example.com",
						"displayName": "Alice",
					},
					"attendees": []map[string]any{
						{"email": "alice@example.com", "responseStatus": "accepted"},
						{"email": "room@example.com", "resource": true, "responseStatus": "tentative"},
					},
					"recurrence": []string{"RRULE:FREQ=DAILY"},
				},
				{
					"id":    "e2",
					"start": map[string]string{"date": "2026-10-17"},
					"end":   map[string]string{"date": "2026-10-18"},
				},
			},
		})
	})
	mux.HandleFunc("GET /calendars/{id}/events/{event}", notFound)
	mux.HandleFunc("POST /freeBusy", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"calendars": map[string]any{
				"alice@example.com": map[string]any{
					"busy": []map[string]string{{"start": "2026-10-16T09:00:00Z", "end": "2026-10-16T10:00:00Z"}},
				},
				"bob@example.com": map[string]any{
					"errors": []map[string]string{{"domain": "global", "reason": "notFound"}},
				},
			},
		})
	})
	mux.HandleFunc("GET /users/me/calendarList/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "team" {
			notFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "team", "accessRole": "freeBusyReader"})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	s, err := c.GuestSession(ctx, internal.LocalSession{}, ShareURL("team"), "")
	if err != nil {
		t.Fatalf("GuestSession: %v", err)
	}
	defer s.Close()

	folders, err := s.VisibleSubfolders(ctx, internal.SharedRootID)
	if err != nil || len(folders) != 1 || folders[0].ID != "team" || folders[0].Name != "Team" {
		t.Fatalf("VisibleSubfolders = %+v, %v", folders, err)
	}
	if _, err := s.Folder(ctx, "other"); !errors.Is(err, internal.ErrFolderNotFound) {
		t.Fatalf("expected folder not found, got %v", err)
	}

	from := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	events, err := s.EventsInFolder(ctx, "team", from, from.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("EventsInFolder: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	e := events[0]
	if e.UID != "uid-1" || e.FolderID != "team" || e.Sequence != 2 || e.RecurrenceRule != "FREQ=DAILY" {
		t.Fatalf("unexpected event: %+v", e)
	}
	if !e.StartsAt.Equal(time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)) || e.AllDay {
		t.Fatalf("unexpected start: %s", e.StartsAt)
	}
	if e.Organizer == nil || e.Organizer.URI != "mailto:alice@example.com" || e.Organizer.CN != "Alice" {
		t.Fatalf("unexpected organizer: %+v", e.Organizer)
	}
	if len(e.Attendees) != 2 || e.Attendees[0].PartStat != internal.Accepted || e.Attendees[1].CUType != internal.CUTypeResource {
		t.Fatalf("unexpected attendees: %+v", e.Attendees)
	}
	if !events[1].AllDay {
		t.Fatalf("expected all day event")
	}

	if _, err := s.Event(ctx, internal.EventID{FolderID: "team", ObjectID: "missing"}); !errors.Is(err, internal.ErrEventNotFound) {
		t.Fatalf("expected event not found, got %v", err)
	}
	if _, err := s.SplitSeries(ctx, e.EventID(), from, "x", 0); !errors.Is(err, internal.ErrUnsupportedOperation) {
		t.Fatalf("expected unsupported, got %v", err)
	}

	results, err := s.FreeBusy(ctx, []internal.Attendee{
		{CalendarUser: internal.CalendarUser{URI: "mailto:alice@example.com"}},
		{CalendarUser: internal.CalendarUser{Email: "bob@example.com"}},
	}, from, from.AddDate(0, 0, 1), false)
	if err != nil {
		t.Fatalf("FreeBusy: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %+v", results)
	}
	if len(results[0].Result.Times) != 1 || results[0].Result.Times[0].Type != internal.FbBusy {
		t.Fatalf("unexpected alice result: %+v", results[0].Result)
	}
	if !errors.Is(results[1].Result.Err, internal.ErrRemoteUnavailable) {
		t.Fatalf("expected error for bob, got %+v", results[1].Result)
	}

	visible, err := c.FreeBusyVisible(ctx, ShareURL("team"), "")
	if err != nil || !visible {
		t.Fatalf("FreeBusyVisible = %v, %v", visible, err)
	}
	visible, err = c.FreeBusyVisible(ctx, ShareURL("other"), "")
	if err != nil || visible {
		t.Fatalf("FreeBusyVisible = %v, %v", visible, err)
	}
}

func TestEventConversion(t *testing.T) {
	e := internal.Event{
		UID:            "uid",
		Summary:        "Review",
		StartsAt:       time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
		EndsAt:         time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC),
		AllDay:         true,
		Transparent:    true,
		RecurrenceRule: "FREQ=WEEKLY",
		Organizer:      &internal.CalendarUser{URI: "mailto:alice@example.com"},
		Attendees: []internal.Attendee{
			{CalendarUser: internal.CalendarUser{Email: "bob@example.com"}, PartStat: internal.Declined, Role: "OPT-PARTICIPANT"},
		},
	}
	gevent := newGoogleEvent(e)
	if gevent.Start.Date != "2026-10-16" || gevent.Start.DateTime != "" {
		t.Fatalf("unexpected start: %+v", gevent.Start)
	}
	if gevent.Organizer.Email != "alice@example.com" || gevent.Transparency != "transparent" {
		t.Fatalf("unexpected event: %+v", gevent)
	}
	if a := gevent.Attendees[0]; a.ResponseStatus != "declined" || !a.Optional {
		t.Fatalf("unexpected attendee: %+v", a)
	}

	back := newEvent("cal", gevent)
	if !back.AllDay || !back.StartsAt.Equal(e.StartsAt) || back.RecurrenceRule != e.RecurrenceRule {
		t.Fatalf("unexpected event: %+v", back)
	}
	if back.Attendees[0].PartStat != internal.Declined || back.Attendees[0].Role != "OPT-PARTICIPANT" {
		t.Fatalf("unexpected attendee: %+v", back.Attendees[0])
	}
}
