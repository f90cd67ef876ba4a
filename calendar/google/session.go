package google

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/guilherme-santos/calfed/internal"
)

// Session is a guest session on one shared Google calendar, exposed as a
// single folder below the shared root.
type Session struct {
	svc        *calendar.Service
	calendarID string
	name       string
	logger     *slog.Logger
}

func (s *Session) Warnings() []error { return nil }

func (s *Session) Close() error { return nil }

func (s *Session) folder() internal.Folder {
	return internal.Folder{
		ID:          s.calendarID,
		ParentID:    internal.SharedRootID,
		Name:        s.name,
		ContentType: internal.ContentTypeCalendar,
	}
}

func (s *Session) checkFolder(id string) error {
	if id != s.calendarID {
		return internal.Errorf(internal.CodeFolderNotFound, "google: folder %s: %w", id, internal.ErrFolderNotFound)
	}
	return nil
}

func (s *Session) VisibleSubfolders(_ context.Context, parentID string) ([]internal.Folder, error) {
	switch parentID {
	case internal.SharedRootID:
		return []internal.Folder{s.folder()}, nil
	case internal.PublicRootID, s.calendarID:
		return nil, nil
	}
	return nil, s.checkFolder(parentID)
}

func (s *Session) Folder(_ context.Context, id string) (*internal.Folder, error) {
	if err := s.checkFolder(id); err != nil {
		return nil, err
	}
	f := s.folder()
	return &f, nil
}

// UpdateFolder renames the calendar. Google ACLs have no numeric entities,
// permissions cannot be changed.
func (s *Session) UpdateFolder(ctx context.Context, f internal.Folder, _ int64) (string, error) {
	if err := s.checkFolder(f.ID); err != nil {
		return "", err
	}
	if f.Permissions != nil {
		return "", unsupported("changing permissions")
	}
	if f.Name == "" {
		return f.ID, nil
	}
	cal, err := do(ctx, func() (*calendar.Calendar, error) {
		return s.svc.Calendars.Patch(s.calendarID, &calendar.Calendar{Summary: f.Name}).Context(ctx).Do()
	})
	if err != nil {
		return "", translate(err, internal.ErrFolderNotFound)
	}
	s.name = cal.Summary
	return f.ID, nil
}

func (s *Session) get(ctx context.Context, id internal.EventID) (*calendar.Event, error) {
	if err := s.checkFolder(id.FolderID); err != nil {
		return nil, err
	}
	gevent, err := do(ctx, func() (*calendar.Event, error) {
		return s.svc.Events.Get(s.calendarID, id.ObjectID).Context(ctx).Do()
	})
	if err != nil {
		return nil, translate(err, internal.ErrEventNotFound)
	}
	if gevent.Status == "cancelled" {
		return nil, internal.Errorf(internal.CodeEventNotFound, "google: event %s: %w", id, internal.ErrEventNotFound)
	}
	return gevent, nil
}

func (s *Session) Event(ctx context.Context, id internal.EventID) (*internal.Event, error) {
	gevent, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	e := newEvent(s.calendarID, gevent)
	return &e, nil
}

func (s *Session) EventsInFolder(ctx context.Context, folderID string, from, until time.Time) ([]internal.Event, error) {
	if err := s.checkFolder(folderID); err != nil {
		return nil, err
	}
	return s.list(ctx, func(call *calendar.EventsListCall) *calendar.EventsListCall {
		if !from.IsZero() {
			call = call.TimeMin(from.Format(time.RFC3339))
		}
		if !until.IsZero() {
			call = call.TimeMax(until.Format(time.RFC3339))
		}
		return call
	})
}

func (s *Session) list(ctx context.Context, filter func(*calendar.EventsListCall) *calendar.EventsListCall) ([]internal.Event, error) {
	call := filter(s.svc.Events.List(s.calendarID).Context(ctx).ShowDeleted(false))

	var (
		res           []internal.Event
		nextPageToken string
	)
	for {
		events, err := do(ctx, func() (*calendar.Events, error) {
			return call.PageToken(nextPageToken).Do()
		})
		if err != nil {
			s.logger.Debug("Unable to get list of events", internal.ErrAttr(err))
			return nil, translate(err, internal.ErrFolderNotFound)
		}
		for _, item := range events.Items {
			res = append(res, newEvent(s.calendarID, item))
		}
		nextPageToken = events.NextPageToken
		if nextPageToken == "" {
			break
		}
	}
	return res, nil
}

func (s *Session) CreateEvent(ctx context.Context, folderID string, e internal.Event) (*internal.CalendarResult, error) {
	if err := s.checkFolder(folderID); err != nil {
		return nil, err
	}
	s.logger.Debug("Creating event", slog.String("summary", e.Summary), slog.Time("starts_at", e.StartsAt))
	gevent, err := do(ctx, func() (*calendar.Event, error) {
		return s.svc.Events.Insert(s.calendarID, newGoogleEvent(e)).Context(ctx).Do()
	})
	if err != nil {
		return nil, translate(err, internal.ErrFolderNotFound)
	}
	return &internal.CalendarResult{FolderID: folderID, Created: []internal.Event{newEvent(s.calendarID, gevent)}}, nil
}

func (s *Session) UpdateEvent(ctx context.Context, id internal.EventID, e internal.Event, _ int64) (*internal.CalendarResult, error) {
	orig, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	req := newGoogleEvent(e)
	req.ICalUID = orig.ICalUID
	gevent, err := do(ctx, func() (*calendar.Event, error) {
		return s.svc.Events.Update(s.calendarID, orig.Id, req).Context(ctx).Do()
	})
	if err != nil {
		return nil, translate(err, internal.ErrEventNotFound)
	}
	return s.updated(orig, gevent), nil
}

func (s *Session) updated(orig, updated *calendar.Event) *internal.CalendarResult {
	return &internal.CalendarResult{
		FolderID: s.calendarID,
		Updated: []internal.UpdateResult{{
			Original: newEvent(s.calendarID, orig),
			Updated:  newEvent(s.calendarID, updated),
		}},
	}
}

// MoveEvent fails for every target but the calendar itself, a share exposes
// a single calendar.
func (s *Session) MoveEvent(ctx context.Context, id internal.EventID, targetFolderID string, _ int64) (*internal.CalendarResult, error) {
	if err := s.checkFolder(targetFolderID); err != nil {
		return nil, err
	}
	gevent, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.updated(gevent, gevent), nil
}

func (s *Session) DeleteEvent(ctx context.Context, id internal.EventID, _ int64) (*internal.CalendarResult, error) {
	orig, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	_, err = do(ctx, func() (struct{}, error) {
		return struct{}{}, s.svc.Events.Delete(s.calendarID, orig.Id).Context(ctx).Do()
	})
	if err != nil && !alreadyDeleted(err) {
		return nil, translate(err, internal.ErrEventNotFound)
	}
	return &internal.CalendarResult{FolderID: s.calendarID, Deleted: []internal.Event{newEvent(s.calendarID, orig)}}, nil
}

func (s *Session) SplitSeries(context.Context, internal.EventID, time.Time, string, int64) (*internal.CalendarResult, error) {
	return nil, unsupported("splitting a series")
}

func (s *Session) importEvent(ctx context.Context, e internal.Event) (*calendar.Event, error) {
	gevent, err := do(ctx, func() (*calendar.Event, error) {
		return s.svc.Events.Import(s.calendarID, newGoogleEvent(e)).Context(ctx).Do()
	})
	return gevent, translate(err, internal.ErrFolderNotFound)
}

func (s *Session) ImportEvents(ctx context.Context, folderID string, events []internal.Event) ([]internal.ImportResult, error) {
	if err := s.checkFolder(folderID); err != nil {
		return nil, err
	}
	res := make([]internal.ImportResult, len(events))
	for i, e := range events {
		res[i].Index = i
		if e.UID == "" {
			res[i].Err = internal.Errorf(internal.CodeInvalidEntity, "google: event %d has no uid: %w", i, internal.ErrInvalidEntity)
			continue
		}
		gevent, err := s.importEvent(ctx, e)
		if err != nil {
			res[i].Err = err
			continue
		}
		res[i].EventID = newEvent(s.calendarID, gevent).EventID()
	}
	return res, nil
}

// PutResource replaces the events sharing the resource's UID.
func (s *Session) PutResource(ctx context.Context, folderID string, r internal.CalendarResource, replace bool) (*internal.CalendarResult, error) {
	if err := s.checkFolder(folderID); err != nil {
		return nil, err
	}
	existing, err := s.list(ctx, func(call *calendar.EventsListCall) *calendar.EventsListCall {
		return call.ICalUID(r.UID)
	})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 && !replace {
		return nil, unsupported("putting an existing resource without replace")
	}

	res := &internal.CalendarResult{FolderID: folderID}
	for _, e := range existing {
		deleted, err := s.DeleteEvent(ctx, e.EventID(), 0)
		if err != nil {
			return nil, err
		}
		res.Deleted = append(res.Deleted, deleted.Deleted...)
	}
	for _, e := range r.Events {
		e.UID = r.UID
		gevent, err := s.importEvent(ctx, e)
		if err != nil {
			return nil, err
		}
		res.Created = append(res.Created, newEvent(s.calendarID, gevent))
	}
	return res, nil
}

func (s *Session) UpdateAttendee(ctx context.Context, id internal.EventID, a internal.Attendee, _ int64) (*internal.CalendarResult, error) {
	orig, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	email := emailOf(&a.CalendarUser)
	attendees := make([]*calendar.EventAttendee, len(orig.Attendees))
	var found bool
	for i, ga := range orig.Attendees {
		c := *ga
		if email != "" && strings.EqualFold(ga.Email, email) {
			c.ResponseStatus = responseStatus(a.PartStat)
			c.Comment = a.Comment
			found = true
		}
		attendees[i] = &c
	}
	if !found {
		return nil, internal.Errorf(internal.CodeInvalidEntity, "google: %s does not attend event %s: %w", email, id, internal.ErrInvalidEntity)
	}
	gevent, err := do(ctx, func() (*calendar.Event, error) {
		return s.svc.Events.Patch(s.calendarID, orig.Id, &calendar.Event{Attendees: attendees}).Context(ctx).Do()
	})
	if err != nil {
		return nil, translate(err, internal.ErrEventNotFound)
	}
	return s.updated(orig, gevent), nil
}

// ChangeOrganizer is unsupported, Google ties the organizer to the calendar
// owning the event.
func (s *Session) ChangeOrganizer(context.Context, internal.EventID, internal.Organizer, int64) (*internal.CalendarResult, error) {
	return nil, unsupported("changing the organizer")
}

func (s *Session) FreeBusy(ctx context.Context, attendees []internal.Attendee, from, until time.Time, _ bool) ([]internal.AttendeeFreeBusy, error) {
	req := &calendar.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: until.Format(time.RFC3339),
	}
	for _, a := range attendees {
		if email := emailOf(&a.CalendarUser); email != "" {
			req.Items = append(req.Items, &calendar.FreeBusyRequestItem{Id: email})
		}
	}
	if len(req.Items) == 0 {
		return nil, nil
	}
	resp, err := do(ctx, func() (*calendar.FreeBusyResponse, error) {
		return s.svc.Freebusy.Query(req).Context(ctx).Do()
	})
	if err != nil {
		return nil, translate(err, internal.ErrUnknownShare)
	}

	res := make([]internal.AttendeeFreeBusy, 0, len(resp.Calendars))
	for _, a := range attendees {
		email := emailOf(&a.CalendarUser)
		cal, ok := resp.Calendars[email]
		if !ok {
			continue
		}
		result := internal.FreeBusyResult{}
		for _, e := range cal.Errors {
			result.Err = internal.Errorf(internal.CodeRemoteUnavailable, "google: free/busy of %s: %s: %w", email, e.Reason, internal.ErrRemoteUnavailable)
		}
		for _, p := range cal.Busy {
			start, _ := time.Parse(time.RFC3339, p.Start)
			end, _ := time.Parse(time.RFC3339, p.End)
			result.Times = append(result.Times, internal.FreeBusyTime{StartsAt: start, EndsAt: end, Type: internal.FbBusy})
		}
		res = append(res, internal.AttendeeFreeBusy{
			Attendee: internal.Attendee{CalendarUser: *newCalendarUser(email, a.CN)},
			Result:   result,
		})
	}
	return res, nil
}

func unsupported(op string) error {
	return internal.Errorf(internal.CodeUnsupportedOperation, "google: %s: %w", op, internal.ErrUnsupportedOperation)
}

var _ internal.RemoteSession = (*Session)(nil)
