package accountconfig

import (
	"sort"

	"github.com/guilherme-santos/calfed/internal"
)

// RememberedFolder is the local record of a remote folder.
type RememberedFolder struct {
	ID          string                 `json:"id"`
	ParentID    string                 `json:"parentId,omitempty"`
	Name        string                 `json:"name,omitempty"`
	Type        internal.FolderType    `json:"type,omitempty"`
	Subscribed  *bool                  `json:"subscribed,omitempty"`
	Color       *string                `json:"color,omitempty"`
	CreatedFrom *internal.CalendarUser `json:"createdFrom,omitempty"`
}

// IsSubscribed treats an unset flag as subscribed.
func (f RememberedFolder) IsSubscribed() bool {
	return f.Subscribed == nil || *f.Subscribed
}

// Folder converts the record into a folder for the local tenant.
func (f RememberedFolder) Folder() internal.Folder {
	folder := internal.Folder{
		ID:          f.ID,
		ParentID:    f.ParentID,
		Name:        f.Name,
		Type:        f.Type,
		ContentType: internal.ContentTypeCalendar,
		CreatedBy:   f.CreatedFrom.Clone(),
	}
	if f.Subscribed != nil {
		v := *f.Subscribed
		folder.Subscribed = &v
	}
	if f.Color != nil {
		folder.Color = *f.Color
	}
	return folder
}

// RememberVisibleFolders records folders as the complete set of visible
// folders of the given type: each one is inserted or refreshed, and remembered
// folders of the same type that are not among them are forgotten. Subscription
// and color of known folders are kept. It reports whether anything changed.
func (c *InternalConfig) RememberVisibleFolders(t internal.FolderType, folders []internal.Folder) bool {
	if c.Folders == nil {
		c.Folders = make(map[string]*RememberedFolder)
	}
	var changed bool
	seen := make(map[string]bool, len(folders))
	for _, f := range folders {
		seen[f.ID] = true

		rf, ok := c.Folders[f.ID]
		if !ok {
			rf = &RememberedFolder{ID: f.ID}
			c.Folders[f.ID] = rf
			changed = true
		}
		if rf.ParentID != f.ParentID || rf.Name != f.Name || rf.Type != t || !sameUser(rf.CreatedFrom, f.CreatedBy) {
			rf.ParentID = f.ParentID
			rf.Name = f.Name
			rf.Type = t
			rf.CreatedFrom = f.CreatedBy.Clone()
			changed = true
		}
	}
	for id, rf := range c.Folders {
		if rf.Type == t && !seen[id] {
			delete(c.Folders, id)
			changed = true
		}
	}
	return changed
}

func sameUser(a, b *internal.CalendarUser) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.URI == b.URI && a.CN == b.CN && a.Email == b.Email && a.Entity == b.Entity
}

func (c *InternalConfig) RememberedFolder(id string) (RememberedFolder, bool) {
	rf, ok := c.Folders[id]
	if !ok {
		return RememberedFolder{}, false
	}
	return *rf, true
}

// RememberedFolders returns all records ordered by id.
func (c *InternalConfig) RememberedFolders() []RememberedFolder {
	res := make([]RememberedFolder, 0, len(c.Folders))
	for _, rf := range c.Folders {
		res = append(res, *rf)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].ID < res[j].ID
	})
	return res
}

// RememberFolder records a single folder under its own type, keeping the
// subscription and color of a known one. It reports whether anything changed.
func (c *InternalConfig) RememberFolder(f internal.Folder) bool {
	rf := c.folder(f.ID)
	if rf.ParentID == f.ParentID && rf.Name == f.Name && rf.Type == f.Type && sameUser(rf.CreatedFrom, f.CreatedBy) {
		return false
	}
	rf.ParentID = f.ParentID
	rf.Name = f.Name
	rf.Type = f.Type
	rf.CreatedFrom = f.CreatedBy.Clone()
	return true
}

// RestoreFolder puts back a record previously returned by RememberedFolder.
func (c *InternalConfig) RestoreFolder(rf RememberedFolder) {
	if c.Folders == nil {
		c.Folders = make(map[string]*RememberedFolder)
	}
	c.Folders[rf.ID] = &rf
}

// SubscribedCount counts the subscribed folders. Records without a type were
// never seen on the remote tenant and are not counted.
func (c *InternalConfig) SubscribedCount() int {
	var n int
	for _, rf := range c.Folders {
		if rf.Type != "" && rf.IsSubscribed() {
			n++
		}
	}
	return n
}

func (c *InternalConfig) folder(id string) *RememberedFolder {
	if c.Folders == nil {
		c.Folders = make(map[string]*RememberedFolder)
	}
	rf, ok := c.Folders[id]
	if !ok {
		rf = &RememberedFolder{ID: id}
		c.Folders[id] = rf
	}
	return rf
}

func (c *InternalConfig) Color(id string) string {
	if rf, ok := c.Folders[id]; ok && rf.Color != nil {
		return *rf.Color
	}
	return ""
}

// SetColor sets the color of a folder, an empty color removes it. It reports
// whether the stored value changed.
func (c *InternalConfig) SetColor(id, color string) bool {
	rf := c.folder(id)
	switch {
	case color == "" && rf.Color == nil:
		return false
	case color == "":
		rf.Color = nil
		return true
	case rf.Color != nil && *rf.Color == color:
		return false
	}
	rf.Color = &color
	return true
}

// Subscribed returns the subscription flag of a folder, nil when unset.
func (c *InternalConfig) Subscribed(id string) *bool {
	if rf, ok := c.Folders[id]; ok && rf.Subscribed != nil {
		v := *rf.Subscribed
		return &v
	}
	return nil
}

// SetSubscribed reports whether the stored value changed.
func (c *InternalConfig) SetSubscribed(id string, subscribed bool) bool {
	rf := c.folder(id)
	if rf.Subscribed != nil && *rf.Subscribed == subscribed {
		return false
	}
	rf.Subscribed = &subscribed
	return true
}
