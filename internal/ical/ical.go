// Package ical converts events from and to iCalendar data, as exchanged with
// clients importing or exporting a federated folder.
package ical

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/guilherme-santos/calfed/internal"
)

const productID = "-//calfed//calendar federation//EN"

// Parse reads every VEVENT of an iCalendar stream. Events without start are
// skipped.
func Parse(r io.Reader) ([]internal.Event, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	vevents := cal.Events()
	events := make([]internal.Event, 0, len(vevents))
	for _, vevent := range vevents {
		e, err := mapEvent(vevent)
		if err != nil {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

func mapEvent(vevent *ics.VEvent) (internal.Event, error) {
	start, err := vevent.GetStartAt()
	if err != nil {
		return internal.Event{}, err
	}
	end, err := vevent.GetEndAt()
	if err != nil || !end.After(start) {
		end = start
	}

	e := internal.Event{
		UID:            strings.TrimSpace(propertyValue(vevent.GetProperty(ics.ComponentPropertyUniqueId))),
		RecurrenceID:   strings.TrimSpace(propertyValue(vevent.GetProperty(ics.ComponentPropertyRecurrenceId))),
		RecurrenceRule: strings.TrimSpace(propertyValue(vevent.GetProperty(ics.ComponentPropertyRrule))),
		Summary:        strings.TrimSpace(propertyValue(vevent.GetProperty(ics.ComponentPropertySummary))),
		Description:    strings.TrimSpace(propertyValue(vevent.GetProperty(ics.ComponentPropertyDescription))),
		Location:       strings.TrimSpace(propertyValue(vevent.GetProperty(ics.ComponentPropertyLocation))),
		StartsAt:       start,
		EndsAt:         end,
		AllDay:         isAllDay(vevent.GetProperty(ics.ComponentPropertyDtStart)),
		Transparent:    strings.EqualFold(propertyValue(vevent.GetProperty(ics.ComponentPropertyTransp)), "TRANSPARENT"),
	}
	if seq := propertyValue(vevent.GetProperty(ics.ComponentPropertySequence)); seq != "" {
		e.Sequence, _ = strconv.Atoi(strings.TrimSpace(seq))
	}
	if p := vevent.GetProperty(ics.ComponentPropertyOrganizer); p != nil {
		organizer := calendarUser(p)
		e.Organizer = &organizer
	}
	for _, p := range vevent.GetProperties(ics.ComponentPropertyAttendee) {
		if p == nil {
			continue
		}
		e.Attendees = append(e.Attendees, attendee(p))
	}
	return e, nil
}

func calendarUser(p *ics.IANAProperty) internal.CalendarUser {
	u := internal.CalendarUser{
		URI: strings.TrimSpace(p.Value),
		CN:  param(p, "CN"),
	}
	if strings.HasPrefix(strings.ToLower(u.URI), "mailto:") {
		u.Email = u.URI[len("mailto:"):]
	}
	if sentBy := param(p, "SENT-BY"); sentBy != "" {
		u.SentBy = &internal.CalendarUser{URI: sentBy}
	}
	return u
}

func attendee(p *ics.IANAProperty) internal.Attendee {
	a := internal.Attendee{
		CalendarUser: calendarUser(p),
		CUType:       internal.CUType(strings.ToUpper(param(p, "CUTYPE"))),
		PartStat:     internal.PartStat(strings.ToUpper(param(p, "PARTSTAT"))),
		Role:         strings.ToUpper(param(p, "ROLE")),
		RSVP:         strings.EqualFold(param(p, "RSVP"), "TRUE"),
	}
	if a.CUType == "" {
		a.CUType = internal.CUTypeIndividual
	}
	if a.PartStat == "" {
		a.PartStat = internal.NeedsAction
	}
	return a
}

// Write serializes events as one VCALENDAR.
func Write(w io.Writer, events []internal.Event) error {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)

	for _, e := range events {
		uid := e.UID
		if uid == "" {
			uid = e.ID
		}
		vevent := cal.AddEvent(uid)
		if e.Timestamp > 0 {
			vevent.SetDtStampTime(time.UnixMilli(e.Timestamp).UTC())
		} else {
			vevent.SetDtStampTime(time.Now().UTC())
		}
		if e.AllDay {
			vevent.SetAllDayStartAt(e.StartsAt)
			vevent.SetAllDayEndAt(e.EndsAt)
		} else {
			vevent.SetStartAt(e.StartsAt.UTC())
			vevent.SetEndAt(e.EndsAt.UTC())
		}
		if e.RecurrenceID != "" {
			vevent.SetProperty(ics.ComponentPropertyRecurrenceId, e.RecurrenceID)
		}
		if e.RecurrenceRule != "" {
			vevent.AddRrule(e.RecurrenceRule)
		}
		if e.Summary != "" {
			vevent.SetSummary(e.Summary)
		}
		if e.Description != "" {
			vevent.SetDescription(e.Description)
		}
		if e.Location != "" {
			vevent.SetLocation(e.Location)
		}
		if e.Transparent {
			vevent.SetProperty(ics.ComponentPropertyTransp, "TRANSPARENT")
		}
		if e.Sequence > 0 {
			vevent.SetProperty(ics.ComponentPropertySequence, strconv.Itoa(e.Sequence))
		}
		if e.Organizer != nil && e.Organizer.URI != "" {
			vevent.SetProperty(ics.ComponentPropertyOrganizer, e.Organizer.URI, userParams(*e.Organizer)...)
		}
		for _, a := range e.Attendees {
			if a.URI == "" {
				continue
			}
			params := userParams(a.CalendarUser)
			if a.CUType != "" {
				params = append(params, ics.CalendarUserType(a.CUType))
			}
			if a.PartStat != "" {
				params = append(params, ics.ParticipationStatus(a.PartStat))
			}
			if a.Role != "" {
				params = append(params, ics.ParticipationRole(a.Role))
			}
			if a.RSVP {
				params = append(params, ics.WithRSVP(true))
			}
			vevent.AddProperty(ics.ComponentPropertyAttendee, a.URI, params...)
		}
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}

func userParams(u internal.CalendarUser) []ics.PropertyParameter {
	var params []ics.PropertyParameter
	if u.CN != "" {
		params = append(params, ics.WithCN(u.CN))
	}
	return params
}

func isAllDay(property *ics.IANAProperty) bool {
	if property == nil {
		return false
	}
	for _, value := range property.ICalParameters["VALUE"] {
		if strings.EqualFold(strings.TrimSpace(value), "DATE") {
			return true
		}
	}
	return len(strings.TrimSpace(property.Value)) == 8
}

func param(p *ics.IANAProperty, name string) string {
	values := p.ICalParameters[name]
	if len(values) == 0 {
		return ""
	}
	return strings.Trim(strings.TrimSpace(values[0]), `"`)
}

func propertyValue(property *ics.IANAProperty) string {
	if property == nil {
		return ""
	}
	return property.Value
}
