// Package federation gives local users access to calendars of a remote tenant
// through a federation account.
//
// Provider manages the account lifecycle and hands out an Access, which owns
// one guest session on the remote tenant and translates every identity that
// crosses the tenant boundary. When the remote tenant cannot be reached,
// ConnectFallback offers a read-only view built from the folders remembered
// in the account.
package federation

import (
	"context"
	"log/slog"
	"time"

	"github.com/guilherme-santos/calfed/internal"
	"github.com/guilherme-santos/calfed/internal/mangle"
)

// CalendarAccess is the surface shared by Access and FallbackAccess.
type CalendarAccess interface {
	VisibleFolders(_ context.Context, _ internal.FolderType) ([]internal.Folder, error)
	Folder(_ context.Context, id string) (*internal.Folder, error)
	UpdateFolder(_ context.Context, id string, _ internal.FolderUpdate, clientTimestamp int64) (string, error)
	EventsInFolder(_ context.Context, folderID string, from, until time.Time) (internal.EventsResult, error)
	Warnings() []error
	Close() error
}

// Parameters of a single request.
type Parameters struct {
	// IgnoreStorageWarnings lets operations proceed that would otherwise be
	// cancelled with a warning, e.g. unsubscribing the last folder.
	IgnoreStorageWarnings bool
}

// Access operates on the remote calendar of one federation account. Its
// operations run sequentially on a single guest session; it is not safe for
// concurrent use and must be closed.
type Access struct {
	session  internal.LocalSession
	state    *accountState
	remote   internal.RemoteSession
	mangler  *mangle.Mangler
	params   Parameters
	warnings []error
	logger   *slog.Logger
}

func newAccess(session internal.LocalSession, state *accountState, remote internal.RemoteSession, params Parameters, logger *slog.Logger) *Access {
	return &Access{
		session: session,
		state:   state,
		remote:  remote,
		mangler: mangle.New(state.account.ProviderID, state.account.ID, logger),
		params:  params,
		logger:  logger,
	}
}

// Account returns the account as last written by this access.
func (a *Access) Account() internal.Account {
	return a.state.account
}

// Warnings returns the warnings of the remote session followed by the ones
// raised locally.
func (a *Access) Warnings() []error {
	remote := a.remote.Warnings()
	res := make([]error, 0, len(remote)+len(a.warnings))
	res = append(res, remote...)
	return append(res, a.warnings...)
}

func (a *Access) addWarning(err error) {
	a.logger.Debug("Queued warning", internal.ErrAttr(err))
	a.warnings = append(a.warnings, err)
}

func (a *Access) Close() error {
	return a.remote.Close()
}

var _ CalendarAccess = (*Access)(nil)
