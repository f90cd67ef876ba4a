package mangle

import (
	"errors"
	"log/slog"

	"github.com/guilherme-santos/calfed/internal"
)

// UnmangleCalendarUser returns the remote view of a calendar user submitted by
// the local tenant.
//
// Users internal to the local tenant are unknown remotely and are sent as
// external users identified by their e-mail address. Identifiers previously
// produced by MangleCalendarUser for this account get their remote entity back.
func (m *Mangler) UnmangleCalendarUser(u *internal.CalendarUser) (*internal.CalendarUser, error) {
	c, err := m.unmangleCalendarUser(u)
	if err != nil || c == nil || u.SentBy == nil {
		return c, err
	}
	c.SentBy, err = m.unmangleCalendarUser(u.SentBy)
	if err != nil {
		return nil, err
	}
	c.SentBy.SentBy = nil
	return c, nil
}

func (m *Mangler) unmangleCalendarUser(u *internal.CalendarUser) (*internal.CalendarUser, error) {
	if u == nil {
		return nil, nil
	}
	c := *u
	switch {
	case u.Internal():
		if u.Email == "" {
			return nil, internal.Errorf(internal.CodeInvalidEntity,
				"calendar user %d has no e-mail address and cannot be sent to the remote calendar: %w",
				u.Entity, internal.ErrInvalidEntity)
		}
		c.URI = internal.MailtoURI(u.Email)
		c.Entity = 0
	case IsMangled(u.URI):
		entity, uri, err := m.UnmangleID(u.URI)
		var malformed *malformedError
		if errors.As(err, &malformed) {
			unmangleFallbackTotal.Inc()
			m.logger.Warn("Using unparsable identifier as-is",
				slog.String("uri", u.URI),
				slog.String("fallback", "foreign_uri"),
				internal.ErrAttr(err))
			return &c, nil
		}
		if err != nil {
			return nil, err
		}
		c.Entity = entity
		c.URI = uri
	}
	return &c, nil
}

func (m *Mangler) UnmangleAttendee(a internal.Attendee) (internal.Attendee, error) {
	u, err := m.UnmangleCalendarUser(&a.CalendarUser)
	if err != nil {
		return internal.Attendee{}, err
	}
	a.CalendarUser = *u
	return a, nil
}

func (m *Mangler) UnmangleAttendees(attendees []internal.Attendee) ([]internal.Attendee, error) {
	if attendees == nil {
		return nil, nil
	}
	res := make([]internal.Attendee, len(attendees))
	for i, a := range attendees {
		var err error
		res[i], err = m.UnmangleAttendee(a)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// UnmangleEvent returns a copy of a locally submitted event ready to be sent
// to the remote tenant.
func (m *Mangler) UnmangleEvent(e internal.Event) (internal.Event, error) {
	var err error
	if e.CreatedBy, err = m.UnmangleCalendarUser(e.CreatedBy); err != nil {
		return internal.Event{}, err
	}
	if e.ModifiedBy, err = m.UnmangleCalendarUser(e.ModifiedBy); err != nil {
		return internal.Event{}, err
	}
	if e.CalendarUser, err = m.UnmangleCalendarUser(e.CalendarUser); err != nil {
		return internal.Event{}, err
	}
	if e.Organizer, err = m.UnmangleCalendarUser(e.Organizer); err != nil {
		return internal.Event{}, err
	}
	if e.Attendees, err = m.UnmangleAttendees(e.Attendees); err != nil {
		return internal.Event{}, err
	}
	return e, nil
}

func (m *Mangler) UnmangleEvents(events []internal.Event) ([]internal.Event, error) {
	if events == nil {
		return nil, nil
	}
	res := make([]internal.Event, len(events))
	for i, e := range events {
		var err error
		if res[i], err = m.UnmangleEvent(e); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// UnmanglePermission restores the remote entity of a permission whose
// identifier was produced by ManglePermission. Permissions of local entities
// cannot be expressed remotely.
func (m *Mangler) UnmanglePermission(p internal.Permission) (internal.Permission, error) {
	if p.Entity > 0 {
		return internal.Permission{}, internal.Errorf(internal.CodeInvalidEntity,
			"permission of local entity %d cannot be sent to the remote calendar: %w",
			p.Entity, internal.ErrInvalidEntity)
	}
	if !IsMangled(p.Identifier) {
		return p, nil
	}
	entity, _, err := m.UnmangleID(p.Identifier)
	if err != nil {
		return internal.Permission{}, err
	}
	p.Entity = entity
	p.Identifier = ""
	return p, nil
}
