package internal

import (
	"encoding/json"
	"log/slog"
	"strconv"
)

// ProviderID identifies the federation provider among all calendar providers.
const ProviderID = "xctx"

// Account is one subscription of a local user to a remote tenant.
type Account struct {
	ID             int
	UserID         int
	ProviderID     string
	UserConfig     UserConfig
	InternalConfig json.RawMessage
	LastModified   int64
}

func (a Account) String() string {
	return a.ProviderID + "/" + strconv.Itoa(a.ID)
}

// UserConfig is the user facing part of an account configuration.
type UserConfig struct {
	URL      string `json:"url,omitempty"`
	Password string `json:"password,omitempty"`
	Name     string `json:"name,omitempty"`

	// InternalConfig is only ever set when a client sends the whole account
	// back; it is stripped before anything is persisted.
	InternalConfig json.RawMessage `json:"internalConfig,omitempty"`
}

// Redacted returns a copy without secret fields.
func (c UserConfig) Redacted() UserConfig {
	c.Password = ""
	c.InternalConfig = nil
	return c
}

func (c UserConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("url", c.URL),
		slog.String("name", c.Name),
		slog.Bool("has_password", c.Password != ""),
	)
}

// LocalSession is the session of the local user acting on a federation account.
type LocalSession struct {
	UserID    int
	ContextID int
	Email     string
}

type FolderType string

func (t FolderType) String() string {
	return string(t)
}

const (
	FolderTypePrivate FolderType = "private"
	FolderTypeShared  FolderType = "shared"
	FolderTypePublic  FolderType = "public"
)

func ParseFolderType(s string) (FolderType, bool) {
	switch t := FolderType(s); t {
	case FolderTypePrivate, FolderTypeShared, FolderTypePublic:
		return t, true
	}
	return "", false
}

// Well known root folders of a remote tenant.
const (
	SharedRootID = "shared"
	PublicRootID = "public"
)

const ContentTypeCalendar = "calendar"

// Permission bits, loosely following the usual folder/read/write/delete split.
const (
	PermReadFolder = 1 << iota
	PermCreateObjects
	PermReadAll
	PermWriteAll
	PermDeleteAll
	PermAdmin

	PermOwnAll = PermReadFolder | PermCreateObjects | PermReadAll | PermWriteAll | PermDeleteAll | PermAdmin
)

type Permission struct {
	// Entity is the numeric user or group id, 0 when unset.
	Entity int `json:"entity,omitempty"`
	// Identifier is a qualified identifier used when Entity has no meaning locally.
	Identifier string `json:"identifier,omitempty"`
	Group      bool   `json:"group,omitempty"`
	System     bool   `json:"system,omitempty"`
	Bits       int    `json:"bits"`
}

// Folder is a calendar folder as seen by the local tenant.
type Folder struct {
	ID           string
	ParentID     string
	Name         string
	Type         FolderType
	ContentType  string
	CreatedBy    *CalendarUser
	ModifiedBy   *CalendarUser
	Permissions  []Permission
	Subscribed   *bool
	Color        string
	LastModified int64

	// Err is set on folders of accounts that could not be reached.
	Err error
}

// FolderUpdate carries the changes of an update folder request; nil fields are untouched.
type FolderUpdate struct {
	Name        *string
	Subscribed  *bool
	Color       *string
	Permissions []Permission
}

// OwnPermission is the synthetic permission granting the local user full access
// to a federated folder whose real ACL lives remotely.
func OwnPermission(userID int) Permission {
	return Permission{
		Entity: userID,
		System: true,
		Bits:   PermOwnAll,
	}
}
