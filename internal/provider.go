package internal

import (
	"context"
	"encoding/json"
	"time"
)

// ShareService hands out guest sessions on remote tenants.
type ShareService interface {
	// GuestSession logs into the remote tenant with the share link and its
	// password. It fails with ErrUnknownShare when the guest behind the link
	// does not exist anymore.
	GuestSession(_ context.Context, _ LocalSession, shareURL, password string) (RemoteSession, error)
}

// CapabilityChecker tells whether the remote tenant lets the guest of a share
// see free/busy data.
type CapabilityChecker interface {
	FreeBusyVisible(_ context.Context, shareURL, password string) (bool, error)
}

// RemoteSession is a guest session on a remote tenant. It must be closed by
// whoever acquired it.
type RemoteSession interface {
	FolderService
	CalendarService

	Warnings() []error
	Close() error
}

type FolderService interface {
	VisibleSubfolders(_ context.Context, parentID string) ([]Folder, error)
	Folder(_ context.Context, id string) (*Folder, error)
	UpdateFolder(_ context.Context, _ Folder, clientTimestamp int64) (string, error)
}

type CalendarService interface {
	Event(context.Context, EventID) (*Event, error)
	EventsInFolder(_ context.Context, folderID string, from, until time.Time) ([]Event, error)
	CreateEvent(_ context.Context, folderID string, _ Event) (*CalendarResult, error)
	UpdateEvent(_ context.Context, _ EventID, _ Event, clientTimestamp int64) (*CalendarResult, error)
	MoveEvent(_ context.Context, _ EventID, targetFolderID string, clientTimestamp int64) (*CalendarResult, error)
	DeleteEvent(_ context.Context, _ EventID, clientTimestamp int64) (*CalendarResult, error)
	SplitSeries(_ context.Context, _ EventID, splitPoint time.Time, uid string, clientTimestamp int64) (*CalendarResult, error)
	ImportEvents(_ context.Context, folderID string, _ []Event) ([]ImportResult, error)
	PutResource(_ context.Context, folderID string, _ CalendarResource, replace bool) (*CalendarResult, error)
	UpdateAttendee(_ context.Context, _ EventID, _ Attendee, clientTimestamp int64) (*CalendarResult, error)
	ChangeOrganizer(_ context.Context, _ EventID, _ Organizer, clientTimestamp int64) (*CalendarResult, error)
	FreeBusy(_ context.Context, _ []Attendee, from, until time.Time, merge bool) ([]AttendeeFreeBusy, error)
}

// AccountService persists calendar accounts. Every write is guarded by the
// last modified timestamp the client saw.
type AccountService interface {
	CreateAccount(_ context.Context, userID int, providerID string, _ UserConfig, internalConfig json.RawMessage) (*Account, error)
	UpdateAccount(_ context.Context, userID, accountID int, _ UserConfig, internalConfig json.RawMessage, clientTimestamp int64) (*Account, error)
	DeleteAccount(_ context.Context, userID, accountID int, clientTimestamp int64) error
	Account(_ context.Context, userID, accountID int) (*Account, error)
	Accounts(_ context.Context, userID int, providerID string) ([]*Account, error)
}
