package federation

import (
	"context"
	"time"

	"github.com/guilherme-santos/calfed/internal"
)

// FallbackAccess shows an unreachable account as it was last seen: the
// remembered folders, each carrying the error that made the account
// unreachable. It never contacts the remote tenant.
type FallbackAccess struct {
	session internal.LocalSession
	state   *accountState
	err     error

	warnings []error
}

func (f *FallbackAccess) VisibleFolders(_ context.Context, t internal.FolderType) ([]internal.Folder, error) {
	folders := []internal.Folder{}
	for _, rf := range f.state.cfg.RememberedFolders() {
		if rf.Type != t {
			continue
		}
		folders = append(folders, f.folder(rf.Folder()))
	}
	return folders, nil
}

func (f *FallbackAccess) folder(folder internal.Folder) internal.Folder {
	folder.Err = f.err
	folder.Permissions = []internal.Permission{internal.OwnPermission(f.session.UserID)}
	return folder
}

func (f *FallbackAccess) Folder(_ context.Context, id string) (*internal.Folder, error) {
	rf, ok := f.state.cfg.RememberedFolder(id)
	if !ok {
		return nil, internal.Errorf(internal.CodeFolderNotFound, "folder %s: %w", id, internal.ErrFolderNotFound)
	}
	folder := f.folder(rf.Folder())
	return &folder, nil
}

// EventsInFolder returns no events, only the account error.
func (f *FallbackAccess) EventsInFolder(ctx context.Context, folderID string, _, _ time.Time) (internal.EventsResult, error) {
	if _, err := f.Folder(ctx, folderID); err != nil {
		return internal.EventsResult{}, err
	}
	return internal.EventsResult{FolderID: folderID, Err: f.err}, nil
}

// UpdateFolder only supports the settings kept locally. Unsubscribing the
// last subscribed folder is always cancelled with a warning, the account is
// never removed while its tenant cannot be reached.
func (f *FallbackAccess) UpdateFolder(ctx context.Context, id string, upd internal.FolderUpdate, _ int64) (string, error) {
	if upd.Name != nil || upd.Permissions != nil {
		return "", f.err
	}
	if _, ok := f.state.cfg.RememberedFolder(id); !ok {
		return "", folderNotFound(id)
	}
	if upd.Subscribed != nil && !*upd.Subscribed && f.state.isLastSubscribed(id) {
		f.warnings = append(f.warnings, f.state.willBeRemoved(id))
		return "", nil
	}
	if err := f.state.updateLocal(ctx, id, upd); err != nil {
		return "", err
	}
	return id, nil
}

func (f *FallbackAccess) Warnings() []error {
	return append([]error{f.err}, f.warnings...)
}

func (f *FallbackAccess) Close() error {
	return nil
}

var _ CalendarAccess = (*FallbackAccess)(nil)
