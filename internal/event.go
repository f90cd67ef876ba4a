package internal

import (
	"strconv"
	"strings"
	"time"
)

// CalendarUser is the identity of an organizer, attendee, creator or modifier.
//
// Entity is the numeric id of a user, group or resource that is internal to the
// tenant the value originates from; 0 means the user is external and only
// identified through URI or Email.
type CalendarUser struct {
	URI    string
	CN     string
	Email  string
	Entity int
	SentBy *CalendarUser
}

// Internal reports whether the calendar user is known to its tenant by id.
func (u *CalendarUser) Internal() bool {
	return u != nil && u.Entity > 0
}

func (u *CalendarUser) Clone() *CalendarUser {
	if u == nil {
		return nil
	}
	c := *u
	c.SentBy = u.SentBy.Clone()
	return &c
}

type CUType string

func (t CUType) String() string {
	return string(t)
}

var (
	CUTypeIndividual CUType = "INDIVIDUAL"
	CUTypeGroup      CUType = "GROUP"
	CUTypeResource   CUType = "RESOURCE"
	CUTypeRoom       CUType = "ROOM"
	CUTypeUnknown    CUType = "UNKNOWN"
)

type PartStat string

func (s PartStat) String() string {
	return string(s)
}

var (
	NeedsAction PartStat = "NEEDS-ACTION"
	Accepted    PartStat = "ACCEPTED"
	Declined    PartStat = "DECLINED"
	Tentative   PartStat = "TENTATIVE"
)

type Attendee struct {
	CalendarUser
	CUType   CUType
	PartStat PartStat
	Role     string
	RSVP     bool
	Comment  string
}

// Organizer shares the calendar user shape.
type Organizer = CalendarUser

// Matches reports whether two attendees denote the same calendar user: same
// internal entity when both carry one, otherwise same URI or e-mail address.
func (a Attendee) Matches(other Attendee) bool {
	if a.Entity > 0 && other.Entity > 0 {
		return a.Entity == other.Entity
	}
	if a.URI != "" && strings.EqualFold(normalizeURI(a.URI), normalizeURI(other.URI)) {
		return true
	}
	if a.Email != "" && strings.EqualFold(a.Email, other.Email) {
		return true
	}
	return false
}

// Key is a stable identity for the attendee, suitable for map lookups.
func (a Attendee) Key() string {
	switch {
	case a.URI != "":
		return strings.ToLower(normalizeURI(a.URI))
	case a.Email != "":
		return strings.ToLower(a.Email)
	case a.Entity > 0:
		return "entity:" + strconv.Itoa(a.Entity)
	}
	return ""
}

func normalizeURI(uri string) string {
	if len(uri) > 7 && strings.EqualFold(uri[:7], "mailto:") {
		return uri[7:]
	}
	return uri
}

// MailtoURI returns the mailto URI of an e-mail address.
func MailtoURI(email string) string {
	return "mailto:" + email
}

type EventID struct {
	FolderID     string
	ObjectID     string
	RecurrenceID string
}

func (id EventID) String() string {
	if id.RecurrenceID != "" {
		return id.FolderID + "/" + id.ObjectID + "/" + id.RecurrenceID
	}
	return id.FolderID + "/" + id.ObjectID
}

type Event struct {
	ID             string
	FolderID       string
	UID            string
	SeriesID       string
	RecurrenceID   string
	RecurrenceRule string
	Summary        string
	Description    string
	Location       string
	StartsAt       time.Time
	EndsAt         time.Time
	AllDay         bool
	Transparent    bool
	Sequence       int
	Timestamp      int64
	CreatedBy      *CalendarUser
	ModifiedBy     *CalendarUser
	CalendarUser   *CalendarUser
	Organizer      *Organizer
	Attendees      []Attendee
}

func (e Event) EventID() EventID {
	return EventID{FolderID: e.FolderID, ObjectID: e.ID, RecurrenceID: e.RecurrenceID}
}

// EventsResult is the outcome of loading the events of one folder.
type EventsResult struct {
	FolderID string
	Events   []Event
	Err      error
}

type UpdateResult struct {
	Original Event
	Updated  Event
}

// CalendarResult is the outcome of a write operation on the remote calendar.
type CalendarResult struct {
	FolderID string
	Created  []Event
	Updated  []UpdateResult
	Deleted  []Event
}

type ImportResult struct {
	Index    int
	EventID  EventID
	Err      error
	Warnings []error
}

// CalendarResource groups all events sharing one UID, as put by CalDAV clients.
type CalendarResource struct {
	UID    string
	Events []Event
}

type FbType string

var (
	FbFree            FbType = "FREE"
	FbBusy            FbType = "BUSY"
	FbBusyTentative   FbType = "BUSY-TENTATIVE"
	FbBusyUnavailable FbType = "BUSY-UNAVAILABLE"
)

type FreeBusyTime struct {
	StartsAt time.Time
	EndsAt   time.Time
	Type     FbType
	Event    *Event
}

// FreeBusyResult holds the free/busy data of one attendee, or the error that
// prevented obtaining it.
type FreeBusyResult struct {
	Times    []FreeBusyTime
	Warnings []error
	Err      error
}

type AttendeeFreeBusy struct {
	Attendee Attendee
	Result   FreeBusyResult
}
