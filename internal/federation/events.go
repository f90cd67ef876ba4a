package federation

import (
	"context"
	"log/slog"
	"time"

	"github.com/guilherme-santos/calfed/internal"
)

func (a *Access) Event(ctx context.Context, id internal.EventID) (*internal.Event, error) {
	e, err := a.remote.Event(ctx, id)
	if err != nil {
		return nil, err
	}
	local := a.mangler.MangleEvent(*e)
	return &local, nil
}

func (a *Access) EventsInFolder(ctx context.Context, folderID string, from, until time.Time) (internal.EventsResult, error) {
	events, err := a.remote.EventsInFolder(ctx, folderID, from, until)
	if err != nil {
		return internal.EventsResult{}, err
	}
	return a.mangler.MangleEventsResult(internal.EventsResult{FolderID: folderID, Events: events}), nil
}

// EventsInFolders loads several folders; a failing folder carries its error
// in its result instead of failing the whole call.
func (a *Access) EventsInFolders(ctx context.Context, folderIDs []string, from, until time.Time) []internal.EventsResult {
	res := make([]internal.EventsResult, 0, len(folderIDs))
	for _, id := range folderIDs {
		r, err := a.EventsInFolder(ctx, id, from, until)
		if err != nil {
			r = internal.EventsResult{FolderID: id, Err: err}
		}
		res = append(res, r)
	}
	return res
}

func (a *Access) CreateEvent(ctx context.Context, folderID string, e internal.Event) (*internal.CalendarResult, error) {
	remote, err := a.remoteEvent(e)
	if err != nil {
		return nil, err
	}
	res, err := a.remote.CreateEvent(ctx, folderID, remote)
	if err != nil {
		return nil, err
	}
	return a.mangler.MangleCalendarResult(res), nil
}

func (a *Access) UpdateEvent(ctx context.Context, id internal.EventID, e internal.Event, clientTimestamp int64) (*internal.CalendarResult, error) {
	remote, err := a.remoteEvent(e)
	if err != nil {
		return nil, err
	}
	res, err := a.remote.UpdateEvent(ctx, id, remote, clientTimestamp)
	if err != nil {
		return nil, err
	}
	return a.mangler.MangleCalendarResult(res), nil
}

func (a *Access) MoveEvent(ctx context.Context, id internal.EventID, targetFolderID string, clientTimestamp int64) (*internal.CalendarResult, error) {
	res, err := a.remote.MoveEvent(ctx, id, targetFolderID, clientTimestamp)
	if err != nil {
		return nil, err
	}
	return a.mangler.MangleCalendarResult(res), nil
}

func (a *Access) DeleteEvent(ctx context.Context, id internal.EventID, clientTimestamp int64) (*internal.CalendarResult, error) {
	res, err := a.remote.DeleteEvent(ctx, id, clientTimestamp)
	if err != nil {
		return nil, err
	}
	return a.mangler.MangleCalendarResult(res), nil
}

func (a *Access) SplitSeries(ctx context.Context, id internal.EventID, splitPoint time.Time, uid string, clientTimestamp int64) (*internal.CalendarResult, error) {
	res, err := a.remote.SplitSeries(ctx, id, splitPoint, uid, clientTimestamp)
	if err != nil {
		return nil, err
	}
	return a.mangler.MangleCalendarResult(res), nil
}

func (a *Access) ImportEvents(ctx context.Context, folderID string, events []internal.Event) ([]internal.ImportResult, error) {
	remote := make([]internal.Event, len(events))
	for i, e := range events {
		var err error
		if remote[i], err = a.remoteEvent(e); err != nil {
			return nil, err
		}
	}
	return a.remote.ImportEvents(ctx, folderID, remote)
}

func (a *Access) PutResource(ctx context.Context, folderID string, r internal.CalendarResource, replace bool) (*internal.CalendarResult, error) {
	remote := internal.CalendarResource{UID: r.UID, Events: make([]internal.Event, len(r.Events))}
	for i, e := range r.Events {
		var err error
		if remote.Events[i], err = a.remoteEvent(e); err != nil {
			return nil, err
		}
	}
	res, err := a.remote.PutResource(ctx, folderID, remote, replace)
	if err != nil {
		return nil, err
	}
	return a.mangler.MangleCalendarResult(res), nil
}

func (a *Access) UpdateAttendee(ctx context.Context, id internal.EventID, attendee internal.Attendee, clientTimestamp int64) (*internal.CalendarResult, error) {
	remote, err := a.mangler.UnmangleAttendee(attendee)
	if err != nil {
		return nil, err
	}
	res, err := a.remote.UpdateAttendee(ctx, id, remote, clientTimestamp)
	if err != nil {
		return nil, err
	}
	return a.mangler.MangleCalendarResult(res), nil
}

func (a *Access) ChangeOrganizer(ctx context.Context, id internal.EventID, organizer internal.Organizer, clientTimestamp int64) (*internal.CalendarResult, error) {
	remote, err := a.mangler.UnmangleCalendarUser(&organizer)
	if err != nil {
		return nil, err
	}
	res, err := a.remote.ChangeOrganizer(ctx, id, *remote, clientTimestamp)
	if err != nil {
		return nil, err
	}
	return a.mangler.MangleCalendarResult(res), nil
}

// remoteEvent checks and translates an event submitted by the local tenant.
func (a *Access) remoteEvent(e internal.Event) (internal.Event, error) {
	if err := checkAttendees(e.Attendees); err != nil {
		return internal.Event{}, err
	}
	return a.mangler.UnmangleEvent(e)
}

// checkAttendees rejects groups and resources of the local tenant, the remote
// tenant cannot resolve them.
func checkAttendees(attendees []internal.Attendee) error {
	for _, at := range attendees {
		switch at.CUType {
		case internal.CUTypeGroup, internal.CUTypeResource, internal.CUTypeRoom:
			if at.Internal() {
				return internal.Errorf(internal.CodeInvalidEntity,
					"attendee %d of kind %s is unknown to the remote calendar: %w",
					at.Entity, at.CUType, internal.ErrInvalidEntity)
			}
		}
	}
	return nil
}

// FreeBusy queries the remote tenant for the attendees' free/busy data. The
// results are keyed by the attendees as passed in.
func (a *Access) FreeBusy(ctx context.Context, attendees []internal.Attendee, from, until time.Time, merge bool) ([]internal.AttendeeFreeBusy, error) {
	remote, err := a.mangler.UnmangleAttendees(attendees)
	if err != nil {
		return nil, err
	}
	results, err := a.remote.FreeBusy(ctx, remote, from, until, merge)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Result = a.mangler.MangleFreeBusyResult(results[i].Result)
	}
	return MatchAttendees(attendees, remote, results, a.logger), nil
}

// MatchAttendees keys results by the requested attendees. sent holds the
// attendees as they were sent to the remote side, in the order of requested.
// Results that match none of them are dropped; the remote side may answer for
// one of its internal users instead of the external attendee asked for.
func MatchAttendees(requested, sent []internal.Attendee, results []internal.AttendeeFreeBusy, logger *slog.Logger) []internal.AttendeeFreeBusy {
	res := make([]internal.AttendeeFreeBusy, 0, len(results))
	for _, r := range results {
		i := indexOf(sent, r.Attendee)
		if i < 0 {
			logger.Debug("Dropping free/busy data of an attendee that was not requested",
				slog.String("attendee", r.Attendee.Key()))
			continue
		}
		res = append(res, internal.AttendeeFreeBusy{Attendee: requested[i], Result: r.Result})
	}
	return res
}

func indexOf(attendees []internal.Attendee, a internal.Attendee) int {
	for i, candidate := range attendees {
		if candidate.Matches(a) {
			return i
		}
	}
	return -1
}
