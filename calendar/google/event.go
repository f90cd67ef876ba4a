package google

import (
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/guilherme-santos/calfed/internal"
)

const dateLayout = "2006-01-02"

var partStats = map[string]internal.PartStat{
	"needsAction": internal.NeedsAction,
	"accepted":    internal.Accepted,
	"declined":    internal.Declined,
	"tentative":   internal.Tentative,
}

func newPartStat(status string) internal.PartStat {
	if ps, ok := partStats[status]; ok {
		return ps
	}
	return internal.NeedsAction
}

func responseStatus(ps internal.PartStat) string {
	for status, candidate := range partStats {
		if candidate == ps {
			return status
		}
	}
	return "needsAction"
}

func parseDateTime(dt *calendar.EventDateTime) (t time.Time, allDay bool) {
	if dt == nil {
		return time.Time{}, false
	}
	if dt.DateTime != "" {
		t, _ = time.Parse(time.RFC3339, dt.DateTime)
		return t, false
	}
	t, _ = time.Parse(dateLayout, dt.Date)
	return t, true
}

func newDateTime(t time.Time, allDay bool) *calendar.EventDateTime {
	if allDay {
		return &calendar.EventDateTime{Date: t.Format(dateLayout)}
	}
	return &calendar.EventDateTime{DateTime: t.Format(time.RFC3339)}
}

func newCalendarUser(email, name string) *internal.CalendarUser {
	if email == "" {
		return nil
	}
	return &internal.CalendarUser{
		URI:   internal.MailtoURI(email),
		CN:    name,
		Email: email,
	}
}

// emailOf returns the address Google knows a calendar user by.
func emailOf(u *internal.CalendarUser) string {
	if u.Email != "" {
		return u.Email
	}
	if len(u.URI) > 7 && strings.EqualFold(u.URI[:7], "mailto:") {
		return u.URI[7:]
	}
	return ""
}

func newEvent(calendarID string, event *calendar.Event) internal.Event {
	startsAt, allDay := parseDateTime(event.Start)
	endsAt, _ := parseDateTime(event.End)
	e := internal.Event{
		ID:          event.Id,
		FolderID:    calendarID,
		UID:         event.ICalUID,
		SeriesID:    event.RecurringEventId,
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		AllDay:      allDay,
		Transparent: event.Transparency == "transparent",
		Sequence:    int(event.Sequence),
	}
	if event.OriginalStartTime != nil {
		t, _ := parseDateTime(event.OriginalStartTime)
		e.RecurrenceID = t.UTC().Format("20060102T150405Z")
	}
	for _, r := range event.Recurrence {
		if strings.HasPrefix(r, "RRULE:") {
			e.RecurrenceRule = strings.TrimPrefix(r, "RRULE:")
		}
	}
	if updated, err := time.Parse(time.RFC3339, event.Updated); err == nil {
		e.Timestamp = updated.UnixMilli()
	}
	if event.Creator != nil {
		e.CreatedBy = newCalendarUser(event.Creator.Email, event.Creator.DisplayName)
	}
	if event.Organizer != nil {
		e.Organizer = newCalendarUser(event.Organizer.Email, event.Organizer.DisplayName)
	}
	for _, a := range event.Attendees {
		u := newCalendarUser(a.Email, a.DisplayName)
		if u == nil {
			continue
		}
		at := internal.Attendee{
			CalendarUser: *u,
			CUType:       internal.CUTypeIndividual,
			PartStat:     newPartStat(a.ResponseStatus),
			Role:         "REQ-PARTICIPANT",
			Comment:      a.Comment,
		}
		if a.Resource {
			at.CUType = internal.CUTypeResource
		}
		if a.Optional {
			at.Role = "OPT-PARTICIPANT"
		}
		e.Attendees = append(e.Attendees, at)
	}
	return e
}

func newGoogleEvent(event internal.Event) *calendar.Event {
	gevent := &calendar.Event{
		ICalUID:     event.UID,
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Start:       newDateTime(event.StartsAt, event.AllDay),
		End:         newDateTime(event.EndsAt, event.AllDay),
		Reminders: &calendar.EventReminders{
			UseDefault: true,
		},
	}
	if event.Transparent {
		gevent.Transparency = "transparent"
	}
	if event.RecurrenceRule != "" {
		gevent.Recurrence = []string{"RRULE:" + event.RecurrenceRule}
	}
	if event.Organizer != nil {
		gevent.Organizer = &calendar.EventOrganizer{
			Email:       emailOf(event.Organizer),
			DisplayName: event.Organizer.CN,
		}
	}
	for _, a := range event.Attendees {
		gevent.Attendees = append(gevent.Attendees, newGoogleAttendee(a))
	}
	return gevent
}

func newGoogleAttendee(a internal.Attendee) *calendar.EventAttendee {
	return &calendar.EventAttendee{
		Email:          emailOf(&a.CalendarUser),
		DisplayName:    a.CN,
		ResponseStatus: responseStatus(a.PartStat),
		Optional:       a.Role == "OPT-PARTICIPANT",
		Resource:       a.CUType == internal.CUTypeResource || a.CUType == internal.CUTypeRoom,
		Comment:        a.Comment,
	}
}
