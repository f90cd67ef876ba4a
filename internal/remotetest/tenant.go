// Package remotetest provides an in-memory remote tenant that hands out guest
// sessions through share links. It backs the package tests and the demo mode
// of the command line.
package remotetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guilherme-santos/calfed/internal"
)

type Share struct {
	URL             string
	Password        string
	FreeBusyVisible bool

	// Err, when set, is returned by every guest login on the share.
	Err error
}

// Tenant is safe for concurrent use.
type Tenant struct {
	mu       sync.Mutex
	shares   map[string]*Share
	folders  map[string]internal.Folder
	events   map[string]map[string]internal.Event
	users    map[string]int
	freeBusy map[string][]internal.FreeBusyTime

	// Unrequested is added to every free/busy answer.
	Unrequested []internal.AttendeeFreeBusy

	opened int
	closed int
}

func NewTenant() *Tenant {
	return &Tenant{
		shares:   make(map[string]*Share),
		folders:  make(map[string]internal.Folder),
		events:   make(map[string]map[string]internal.Event),
		users:    make(map[string]int),
		freeBusy: make(map[string][]internal.FreeBusyTime),
	}
}

func (t *Tenant) AddShare(url, password string) *Share {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &Share{URL: url, Password: password, FreeBusyVisible: true}
	t.shares[url] = s
	return s
}

func (t *Tenant) RemoveShare(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.shares, url)
}

func (t *Tenant) SetShareErr(url string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.shares[url]; ok {
		s.Err = err
	}
}

// AddUser registers an internal user of the remote tenant.
func (t *Tenant) AddUser(entity int, email string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.users[strings.ToLower(email)] = entity
}

// AddFolder adds a folder below ParentID, which may be one of the well known
// roots. An empty id gets a generated one.
func (t *Tenant) AddFolder(f internal.Folder) internal.Folder {
	t.mu.Lock()
	defer t.mu.Unlock()

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.ContentType == "" {
		f.ContentType = internal.ContentTypeCalendar
	}
	t.folders[f.ID] = f
	return f
}

func (t *Tenant) AddEvent(e internal.Event) internal.Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.storeEvent(e)
}

func (t *Tenant) storeEvent(e internal.Event) internal.Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.UID == "" {
		e.UID = uuid.NewString()
	}
	e.Timestamp = time.Now().UnixMilli()
	if t.events[e.FolderID] == nil {
		t.events[e.FolderID] = make(map[string]internal.Event)
	}
	t.events[e.FolderID][e.ID] = e
	return e
}

// StoredEvent returns the event as the remote tenant keeps it.
func (t *Tenant) StoredEvent(folderID, id string) (internal.Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.events[folderID][id]
	return e, ok
}

func (t *Tenant) StoredFolder(id string) (internal.Folder, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, ok := t.folders[id]
	return f, ok
}

func (t *Tenant) SetFreeBusy(email string, times ...internal.FreeBusyTime) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.freeBusy[strings.ToLower(email)] = times
}

// OpenSessions returns the number of guest sessions not closed yet.
func (t *Tenant) OpenSessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.opened - t.closed
}

func (t *Tenant) share(url, password string) (*Share, error) {
	s, ok := t.shares[url]
	if !ok {
		return nil, internal.Errorf(internal.CodeUnknownShare, "remotetest: %s: %w", url, internal.ErrUnknownShare)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Password != password {
		return nil, internal.Errorf(internal.CodeInvalidConfiguration, "remotetest: wrong password for %s: %w", url, internal.ErrInvalidConfiguration)
	}
	return s, nil
}

func (t *Tenant) GuestSession(ctx context.Context, _ internal.LocalSession, shareURL, password string) (internal.RemoteSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.share(shareURL, password); err != nil {
		return nil, err
	}
	t.opened++
	return &Session{tenant: t}, nil
}

func (t *Tenant) FreeBusyVisible(_ context.Context, shareURL, password string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.share(shareURL, password)
	if err != nil {
		return false, err
	}
	return s.FreeBusyVisible, nil
}

func (t *Tenant) children(parentID string) []internal.Folder {
	var res []internal.Folder
	for _, f := range t.folders {
		if f.ParentID == parentID {
			res = append(res, f)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].ID < res[j].ID
	})
	return res
}

// resolve maps an attendee onto an internal user when its address is known.
func (t *Tenant) resolve(a internal.Attendee) internal.Attendee {
	if a.Entity > 0 {
		return a
	}
	email := a.Email
	if email == "" {
		email = strings.TrimPrefix(strings.ToLower(a.URI), "mailto:")
	}
	if entity, ok := t.users[strings.ToLower(email)]; ok {
		a.Entity = entity
		a.Email = email
	}
	return a
}

func (t *Tenant) emailOf(a internal.Attendee) string {
	if a.Email != "" {
		return strings.ToLower(a.Email)
	}
	if a.Entity > 0 {
		for email, entity := range t.users {
			if entity == a.Entity {
				return email
			}
		}
	}
	return strings.TrimPrefix(strings.ToLower(a.URI), "mailto:")
}

func folderNotFound(id string) error {
	return internal.Errorf(internal.CodeFolderNotFound, "remotetest: folder %s: %w", id, internal.ErrFolderNotFound)
}

func eventNotFound(id internal.EventID) error {
	return internal.Errorf(internal.CodeEventNotFound, "remotetest: event %s: %w", id, internal.ErrEventNotFound)
}

func unsupported(op string) error {
	return internal.Errorf(internal.CodeUnsupportedOperation, "remotetest: %s: %w", op, internal.ErrUnsupportedOperation)
}

var _ internal.ShareService = (*Tenant)(nil)
var _ internal.CapabilityChecker = (*Tenant)(nil)
