package remotetest

import (
	"context"
	"time"

	"github.com/guilherme-santos/calfed/internal"
)

// Session is a guest session on a Tenant.
type Session struct {
	tenant   *Tenant
	warnings []error
	closed   bool
}

// AddWarning queues a warning reported by Warnings.
func (s *Session) AddWarning(err error) {
	s.warnings = append(s.warnings, err)
}

func (s *Session) Warnings() []error {
	return s.warnings
}

func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.tenant.mu.Lock()
	defer s.tenant.mu.Unlock()
	s.tenant.closed++
	return nil
}

func (s *Session) VisibleSubfolders(_ context.Context, parentID string) ([]internal.Folder, error) {
	t := s.tenant
	t.mu.Lock()
	defer t.mu.Unlock()

	if parentID != internal.SharedRootID && parentID != internal.PublicRootID {
		if _, ok := t.folders[parentID]; !ok {
			return nil, folderNotFound(parentID)
		}
	}
	return t.children(parentID), nil
}

func (s *Session) Folder(_ context.Context, id string) (*internal.Folder, error) {
	t := s.tenant
	t.mu.Lock()
	defer t.mu.Unlock()

	f, ok := t.folders[id]
	if !ok {
		return nil, folderNotFound(id)
	}
	return &f, nil
}

func (s *Session) UpdateFolder(_ context.Context, f internal.Folder, _ int64) (string, error) {
	t := s.tenant
	t.mu.Lock()
	defer t.mu.Unlock()

	stored, ok := t.folders[f.ID]
	if !ok {
		return "", folderNotFound(f.ID)
	}
	if f.Name != "" {
		stored.Name = f.Name
	}
	if f.Permissions != nil {
		stored.Permissions = f.Permissions
	}
	stored.LastModified = time.Now().UnixMilli()
	t.folders[f.ID] = stored
	return f.ID, nil
}

func (s *Session) Event(_ context.Context, id internal.EventID) (*internal.Event, error) {
	t := s.tenant
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.events[id.FolderID][id.ObjectID]
	if !ok {
		return nil, eventNotFound(id)
	}
	return &e, nil
}

func (s *Session) EventsInFolder(_ context.Context, folderID string, from, until time.Time) ([]internal.Event, error) {
	t := s.tenant
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.folders[folderID]; !ok {
		return nil, folderNotFound(folderID)
	}
	var res []internal.Event
	for _, e := range t.events[folderID] {
		if (until.IsZero() || e.StartsAt.Before(until)) && (from.IsZero() || e.EndsAt.After(from)) {
			res = append(res, e)
		}
	}
	sortEvents(res)
	return res, nil
}

func (s *Session) CreateEvent(_ context.Context, folderID string, e internal.Event) (*internal.CalendarResult, error) {
	t := s.tenant
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.folders[folderID]; !ok {
		return nil, folderNotFound(folderID)
	}
	e.ID = ""
	e.FolderID = folderID
	e.Attendees = t.resolveAll(e.Attendees)
	created := t.storeEvent(e)
	return &internal.CalendarResult{FolderID: folderID, Created: []internal.Event{created}}, nil
}

func (s *Session) UpdateEvent(_ context.Context, id internal.EventID, e internal.Event, _ int64) (*internal.CalendarResult, error) {
	t := s.tenant
	t.mu.Lock()
	defer t.mu.Unlock()

	orig, ok := t.events[id.FolderID][id.ObjectID]
	if !ok {
		return nil, eventNotFound(id)
	}
	e.ID = orig.ID
	e.FolderID = orig.FolderID
	e.UID = orig.UID
	e.Sequence = orig.Sequence + 1
	e.Attendees = t.resolveAll(e.Attendees)
	updated := t.storeEvent(e)
	return &internal.CalendarResult{
		FolderID: id.FolderID,
		Updated:  []internal.UpdateResult{{Original: orig, Updated: updated}},
	}, nil
}

func (s *Session) MoveEvent(_ context.Context, id internal.EventID, targetFolderID string, _ int64) (*internal.CalendarResult, error) {
	t := s.tenant
	t.mu.Lock()
	defer t.mu.Unlock()

	orig, ok := t.events[id.FolderID][id.ObjectID]
	if !ok {
		return nil, eventNotFound(id)
	}
	if _, ok := t.folders[targetFolderID]; !ok {
		return nil, folderNotFound(targetFolderID)
	}
	delete(t.events[id.FolderID], id.ObjectID)
	moved := orig
	moved.FolderID = targetFolderID
	moved = t.storeEvent(moved)
	return &internal.CalendarResult{
		FolderID: targetFolderID,
		Deleted:  []internal.Event{orig},
		Created:  []internal.Event{moved},
	}, nil
}

func (s *Session) DeleteEvent(_ context.Context, id internal.EventID, _ int64) (*internal.CalendarResult, error) {
	t := s.tenant
	t.mu.Lock()
	defer t.mu.Unlock()

	orig, ok := t.events[id.FolderID][id.ObjectID]
	if !ok {
		return nil, eventNotFound(id)
	}
	delete(t.events[id.FolderID], id.ObjectID)
	return &internal.CalendarResult{FolderID: id.FolderID, Deleted: []internal.Event{orig}}, nil
}

// SplitSeries ends the series before splitPoint and starts a new one there.
func (s *Session) SplitSeries(_ context.Context, id internal.EventID, splitPoint time.Time, uid string, _ int64) (*internal.CalendarResult, error) {
	t := s.tenant
	t.mu.Lock()
	defer t.mu.Unlock()

	orig, ok := t.events[id.FolderID][id.ObjectID]
	if !ok {
		return nil, eventNotFound(id)
	}
	if orig.RecurrenceRule == "" {
		return nil, unsupported("split of a non recurring event")
	}
	detached := orig
	detached.ID = ""
	detached.UID = uid
	detached.SeriesID = ""
	duration := orig.EndsAt.Sub(orig.StartsAt)
	detached.StartsAt = splitPoint
	detached.EndsAt = splitPoint.Add(duration)
	created := t.storeEvent(detached)

	updated := orig
	updated.RecurrenceRule = orig.RecurrenceRule + ";UNTIL=" + splitPoint.UTC().Format("20060102T150405Z")
	updated = t.storeEvent(updated)
	return &internal.CalendarResult{
		FolderID: id.FolderID,
		Created:  []internal.Event{created},
		Updated:  []internal.UpdateResult{{Original: orig, Updated: updated}},
	}, nil
}

func (s *Session) ImportEvents(_ context.Context, folderID string, events []internal.Event) ([]internal.ImportResult, error) {
	t := s.tenant
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.folders[folderID]; !ok {
		return nil, folderNotFound(folderID)
	}
	res := make([]internal.ImportResult, len(events))
	for i, e := range events {
		e.ID = ""
		e.FolderID = folderID
		e.Attendees = t.resolveAll(e.Attendees)
		stored := t.storeEvent(e)
		res[i] = internal.ImportResult{Index: i, EventID: stored.EventID()}
	}
	return res, nil
}

// PutResource replaces all events with the resource's UID.
func (s *Session) PutResource(_ context.Context, folderID string, r internal.CalendarResource, replace bool) (*internal.CalendarResult, error) {
	t := s.tenant
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.folders[folderID]; !ok {
		return nil, folderNotFound(folderID)
	}
	res := &internal.CalendarResult{FolderID: folderID}
	for id, e := range t.events[folderID] {
		if e.UID == r.UID {
			if !replace {
				return nil, unsupported("put of an existing resource without replace")
			}
			delete(t.events[folderID], id)
			res.Deleted = append(res.Deleted, e)
		}
	}
	for _, e := range r.Events {
		e.ID = ""
		e.UID = r.UID
		e.FolderID = folderID
		e.Attendees = t.resolveAll(e.Attendees)
		res.Created = append(res.Created, t.storeEvent(e))
	}
	return res, nil
}

func (s *Session) UpdateAttendee(_ context.Context, id internal.EventID, a internal.Attendee, _ int64) (*internal.CalendarResult, error) {
	t := s.tenant
	t.mu.Lock()
	defer t.mu.Unlock()

	orig, ok := t.events[id.FolderID][id.ObjectID]
	if !ok {
		return nil, eventNotFound(id)
	}
	a = t.resolve(a)
	updated := orig
	updated.Attendees = append([]internal.Attendee(nil), orig.Attendees...)
	var found bool
	for i, existing := range updated.Attendees {
		if existing.Matches(a) {
			updated.Attendees[i].PartStat = a.PartStat
			updated.Attendees[i].Comment = a.Comment
			found = true
		}
	}
	if !found {
		return nil, internal.Errorf(internal.CodeInvalidEntity, "remotetest: attendee %s not in event: %w", a.URI, internal.ErrInvalidEntity)
	}
	updated = t.storeEvent(updated)
	return &internal.CalendarResult{
		FolderID: id.FolderID,
		Updated:  []internal.UpdateResult{{Original: orig, Updated: updated}},
	}, nil
}

func (s *Session) ChangeOrganizer(_ context.Context, id internal.EventID, o internal.Organizer, _ int64) (*internal.CalendarResult, error) {
	t := s.tenant
	t.mu.Lock()
	defer t.mu.Unlock()

	orig, ok := t.events[id.FolderID][id.ObjectID]
	if !ok {
		return nil, eventNotFound(id)
	}
	updated := orig
	updated.Organizer = o.Clone()
	updated = t.storeEvent(updated)
	return &internal.CalendarResult{
		FolderID: id.FolderID,
		Updated:  []internal.UpdateResult{{Original: orig, Updated: updated}},
	}, nil
}

func (s *Session) FreeBusy(_ context.Context, attendees []internal.Attendee, from, until time.Time, _ bool) ([]internal.AttendeeFreeBusy, error) {
	t := s.tenant
	t.mu.Lock()
	defer t.mu.Unlock()

	res := make([]internal.AttendeeFreeBusy, 0, len(attendees)+len(t.Unrequested))
	for _, a := range attendees {
		resolved := t.resolve(a)
		var times []internal.FreeBusyTime
		for _, ft := range t.freeBusy[t.emailOf(resolved)] {
			if ft.StartsAt.Before(until) && ft.EndsAt.After(from) {
				times = append(times, ft)
			}
		}
		res = append(res, internal.AttendeeFreeBusy{
			Attendee: resolved,
			Result:   internal.FreeBusyResult{Times: times},
		})
	}
	return append(res, t.Unrequested...), nil
}

func (t *Tenant) resolveAll(attendees []internal.Attendee) []internal.Attendee {
	if attendees == nil {
		return nil
	}
	res := make([]internal.Attendee, len(attendees))
	for i, a := range attendees {
		res[i] = t.resolve(a)
	}
	return res
}

func sortEvents(events []internal.Event) {
	for i := 1; i < len(events); i++ {
		for j := i; j > 0 && events[j].StartsAt.Before(events[j-1].StartsAt); j-- {
			events[j], events[j-1] = events[j-1], events[j]
		}
	}
}

var _ internal.RemoteSession = (*Session)(nil)
