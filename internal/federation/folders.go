package federation

import (
	"context"
	"log/slog"

	"github.com/guilherme-santos/calfed/internal"
)

// VisibleFolders lists the calendar folders of the remote tenant of the given
// type and remembers them in the account. Remote tenants never expose private
// folders to guests.
func (a *Access) VisibleFolders(ctx context.Context, t internal.FolderType) ([]internal.Folder, error) {
	var rootID string
	switch t {
	case internal.FolderTypeShared:
		rootID = internal.SharedRootID
	case internal.FolderTypePublic:
		rootID = internal.PublicRootID
	default:
		return []internal.Folder{}, nil
	}

	var remote []internal.Folder
	if err := a.walk(ctx, rootID, map[string]bool{}, &remote); err != nil {
		return nil, err
	}

	folders := make([]internal.Folder, 0, len(remote))
	for _, f := range remote {
		folder := a.mangler.MangleFolder(f)
		folder.Type = t
		folders = append(folders, folder)
	}
	if a.state.cfg.RememberVisibleFolders(t, folders) {
		a.state.saveAdvisory(ctx)
	}
	for i := range folders {
		a.decorate(&folders[i])
	}
	return folders, nil
}

func (a *Access) walk(ctx context.Context, parentID string, visited map[string]bool, out *[]internal.Folder) error {
	if visited[parentID] {
		return nil
	}
	visited[parentID] = true

	subfolders, err := a.remote.VisibleSubfolders(ctx, parentID)
	if err != nil {
		return err
	}
	for _, f := range subfolders {
		if f.ContentType == internal.ContentTypeCalendar {
			*out = append(*out, f)
		}
		if err := a.walk(ctx, f.ID, visited, out); err != nil {
			return err
		}
	}
	return nil
}

// decorate applies the locally remembered settings and grants the local user
// the permissions it needs to see the folder.
func (a *Access) decorate(f *internal.Folder) {
	f.Subscribed = a.state.cfg.Subscribed(f.ID)
	f.Color = a.state.cfg.Color(f.ID)
	f.Permissions = append(f.Permissions, internal.OwnPermission(a.session.UserID))
}

func (a *Access) Folder(ctx context.Context, id string) (*internal.Folder, error) {
	f, err := a.remote.Folder(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.ContentType != internal.ContentTypeCalendar {
		return nil, internal.Errorf(internal.CodeFolderNotFound, "folder %s is not a calendar: %w", id, internal.ErrFolderNotFound)
	}
	folder := a.mangler.MangleFolder(*f)
	if rf, ok := a.state.cfg.RememberedFolder(id); ok && rf.Type != "" {
		folder.Type = rf.Type
	} else {
		folder.Type = a.folderType(ctx, f)
	}
	a.decorate(&folder)
	return &folder, nil
}

// CreateFolder always fails, folders cannot be created on the remote tenant.
func (a *Access) CreateFolder(context.Context, internal.Folder) (string, error) {
	return "", internal.Errorf(internal.CodeUnsupportedOperation, "creating folders on a federated account: %w", internal.ErrUnsupportedOperation)
}

// UpdateFolder changes the subscription and color of a folder locally and
// forwards name and permission changes to the remote tenant. The folder must
// exist on the remote tenant; one not listed yet is remembered first.
//
// Unsubscribing the last subscribed folder leaves the account without any
// visible folder. Unless storage warnings are ignored the update is cancelled:
// nothing changes, an empty id is returned and a warning is queued. Otherwise
// the whole account is deleted.
func (a *Access) UpdateFolder(ctx context.Context, id string, upd internal.FolderUpdate, clientTimestamp int64) (string, error) {
	logger := a.logger.With(slog.String("folder_id", id))

	if rf, ok := a.state.cfg.RememberedFolder(id); !ok || rf.Type == "" {
		folder, err := a.Folder(ctx, id)
		if err != nil {
			return "", err
		}
		a.state.cfg.RememberFolder(*folder)
	}

	if upd.Subscribed != nil && !*upd.Subscribed && a.state.isLastSubscribed(id) {
		if !a.params.IgnoreStorageWarnings {
			a.addWarning(a.state.willBeRemoved(id))
			return "", nil
		}
		logger.Info("Removing account after its last folder was unsubscribed")
		if err := a.state.delete(ctx); err != nil {
			return "", err
		}
		return id, nil
	}

	if upd.Name != nil || upd.Permissions != nil {
		remote := internal.Folder{ID: id}
		if upd.Name != nil {
			remote.Name = *upd.Name
		}
		if upd.Permissions != nil {
			perms, err := a.remotePermissions(upd.Permissions)
			if err != nil {
				return "", err
			}
			remote.Permissions = perms
		}
		if _, err := a.remote.UpdateFolder(ctx, remote, clientTimestamp); err != nil {
			return "", err
		}
	}

	if err := a.state.updateLocal(ctx, id, upd); err != nil {
		return "", err
	}
	return id, nil
}

// folderType follows the parents of f up to one of the well known roots.
func (a *Access) folderType(ctx context.Context, f *internal.Folder) internal.FolderType {
	visited := map[string]bool{f.ID: true}
	for parentID := f.ParentID; parentID != "" && !visited[parentID]; {
		switch parentID {
		case internal.SharedRootID:
			return internal.FolderTypeShared
		case internal.PublicRootID:
			return internal.FolderTypePublic
		}
		visited[parentID] = true
		parent, err := a.remote.Folder(ctx, parentID)
		if err != nil {
			a.logger.Debug("Unable to resolve folder type", slog.String("folder_id", f.ID), internal.ErrAttr(err))
			break
		}
		parentID = parent.ParentID
	}
	return internal.FolderTypeShared
}

// remotePermissions drops the synthetic permissions added by decorate.
func (a *Access) remotePermissions(perms []internal.Permission) ([]internal.Permission, error) {
	res := make([]internal.Permission, 0, len(perms))
	for _, p := range perms {
		if p.System {
			continue
		}
		rp, err := a.mangler.UnmanglePermission(p)
		if err != nil {
			return nil, err
		}
		res = append(res, rp)
	}
	return res, nil
}
