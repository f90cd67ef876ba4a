// Package mangle translates calendar identities between the local tenant and
// the remote tenant of a federation account.
//
// A calendar user that is internal to the remote tenant is only meaningful
// there, so before it is handed to the local tenant its numeric entity is
// folded into an opaque identifier bound to the owning account:
//
//	fed://<provider>/<account>/<entity>?uri=<remote uri>
//
// The identifier can only be turned back into the remote entity by a Mangler
// of the same account.
package mangle

import (
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/guilherme-santos/calfed/internal"
)

const scheme = "fed"

var unmangleFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "calfed_unmangle_fallback_total",
	Help: "Identifiers that looked mangled but could not be parsed and were used as-is.",
})

// Mangler is bound to one federation account.
type Mangler struct {
	providerID string
	accountID  int
	logger     *slog.Logger
}

func New(providerID string, accountID int, logger *slog.Logger) *Mangler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mangler{
		providerID: providerID,
		accountID:  accountID,
		logger:     logger.With(slog.String("component", "mangle")),
	}
}

// IsMangled reports whether s is formatted as a mangled identifier, without
// checking whom it belongs to.
func IsMangled(s string) bool {
	return strings.HasPrefix(s, scheme+"://")
}

// MangleID builds the identifier of a remote entity.
func (m *Mangler) MangleID(entity int, uri string) string {
	u := url.URL{
		Scheme: scheme,
		Host:   m.providerID,
		Path:   "/" + strconv.Itoa(m.accountID) + "/" + strconv.Itoa(entity),
	}
	if uri != "" {
		u.RawQuery = url.Values{"uri": {uri}}.Encode()
	}
	return u.String()
}

type malformedError struct {
	id     string
	reason string
}

func (e *malformedError) Error() string {
	return fmt.Sprintf("malformed identifier %q: %s", e.id, e.reason)
}

// UnmangleID restores entity and uri of an identifier built by MangleID. It
// fails with internal.ErrForeignIdentifier when the identifier was built for
// another account.
func (m *Mangler) UnmangleID(id string) (entity int, uri string, err error) {
	u, err := url.Parse(id)
	if err != nil || u.Scheme != scheme {
		return 0, "", &malformedError{id: id, reason: "not a mangled identifier"}
	}
	parts := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if len(parts) != 2 {
		return 0, "", &malformedError{id: id, reason: "unexpected path"}
	}
	accountID, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", &malformedError{id: id, reason: "account is not numeric"}
	}
	entity, err = strconv.Atoi(parts[1])
	if err != nil || entity <= 0 {
		return 0, "", &malformedError{id: id, reason: "entity is not a positive number"}
	}
	if u.Host != m.providerID || accountID != m.accountID {
		return 0, "", internal.Errorf(internal.CodeForeignIdentifier,
			"identifier of %s/%d cannot be used with account %s/%d: %w",
			u.Host, accountID, m.providerID, m.accountID, internal.ErrForeignIdentifier)
	}
	return entity, u.Query().Get("uri"), nil
}

// MangleCalendarUser returns the local view of a remote calendar user.
// Delegates in SentBy are translated one level deep; anything below is dropped.
func (m *Mangler) MangleCalendarUser(u *internal.CalendarUser) *internal.CalendarUser {
	c := m.mangleCalendarUser(u)
	if c != nil && u.SentBy != nil {
		c.SentBy = m.mangleCalendarUser(u.SentBy)
		c.SentBy.SentBy = nil
	}
	return c
}

func (m *Mangler) mangleCalendarUser(u *internal.CalendarUser) *internal.CalendarUser {
	if u == nil {
		return nil
	}
	c := *u
	if u.Internal() {
		c.URI = m.MangleID(u.Entity, u.URI)
		c.Entity = 0
	}
	return &c
}

func (m *Mangler) MangleAttendee(a internal.Attendee) internal.Attendee {
	a.CalendarUser = *m.MangleCalendarUser(&a.CalendarUser)
	return a
}

func (m *Mangler) MangleAttendees(attendees []internal.Attendee) []internal.Attendee {
	if attendees == nil {
		return nil
	}
	res := make([]internal.Attendee, len(attendees))
	for i, a := range attendees {
		res[i] = m.MangleAttendee(a)
	}
	return res
}

// MangleEvent returns a copy of a remote event with every calendar user
// translated for the local tenant.
func (m *Mangler) MangleEvent(e internal.Event) internal.Event {
	e.CreatedBy = m.MangleCalendarUser(e.CreatedBy)
	e.ModifiedBy = m.MangleCalendarUser(e.ModifiedBy)
	e.CalendarUser = m.MangleCalendarUser(e.CalendarUser)
	e.Organizer = m.MangleCalendarUser(e.Organizer)
	e.Attendees = m.MangleAttendees(e.Attendees)
	return e
}

func (m *Mangler) MangleEvents(events []internal.Event) []internal.Event {
	if events == nil {
		return nil
	}
	res := make([]internal.Event, len(events))
	for i, e := range events {
		res[i] = m.MangleEvent(e)
	}
	return res
}

func (m *Mangler) MangleEventsResult(r internal.EventsResult) internal.EventsResult {
	r.Events = m.MangleEvents(r.Events)
	return r
}

func (m *Mangler) MangleCalendarResult(r *internal.CalendarResult) *internal.CalendarResult {
	if r == nil {
		return nil
	}
	res := &internal.CalendarResult{
		FolderID: r.FolderID,
		Created:  m.MangleEvents(r.Created),
		Deleted:  m.MangleEvents(r.Deleted),
	}
	for _, u := range r.Updated {
		res.Updated = append(res.Updated, internal.UpdateResult{
			Original: m.MangleEvent(u.Original),
			Updated:  m.MangleEvent(u.Updated),
		})
	}
	return res
}

func (m *Mangler) MangleFreeBusyResult(r internal.FreeBusyResult) internal.FreeBusyResult {
	if r.Times == nil {
		return r
	}
	times := make([]internal.FreeBusyTime, len(r.Times))
	for i, t := range r.Times {
		if t.Event != nil {
			e := m.MangleEvent(*t.Event)
			t.Event = &e
		}
		times[i] = t
	}
	r.Times = times
	return r
}

// ManglePermission moves the remote entity of a permission into its
// identifier, as a remote numeric id has no meaning in local permissions.
func (m *Mangler) ManglePermission(p internal.Permission) internal.Permission {
	if p.Entity > 0 {
		p.Identifier = m.MangleID(p.Entity, "")
		p.Entity = 0
	}
	return p
}

func (m *Mangler) MangleFolder(f internal.Folder) internal.Folder {
	f.CreatedBy = m.MangleCalendarUser(f.CreatedBy)
	f.ModifiedBy = m.MangleCalendarUser(f.ModifiedBy)
	if f.Permissions != nil {
		perms := make([]internal.Permission, len(f.Permissions))
		for i, p := range f.Permissions {
			perms[i] = m.ManglePermission(p)
		}
		f.Permissions = perms
	}
	return f
}
