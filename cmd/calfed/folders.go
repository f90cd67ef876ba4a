package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/guilherme-santos/calfed/internal"
	"github.com/guilherme-santos/calfed/internal/federation"
)

type _foldersCommand struct {
	Name        string
	Description string
}

var FoldersCommand = _foldersCommand{
	Name:        "folders",
	Description: "list the folders of one or every account",
}

func (c _foldersCommand) Run(ctx context.Context, env *environment, args []string) error {
	var (
		accountID  int
		folderType string
		retry      bool
	)

	fs := newFlagSet(c.Name)
	fs.IntVar(&accountID, "account", 0, "account id, every account when omitted")
	fs.StringVar(&folderType, "type", "", "private, shared or public, every type when omitted")
	fs.BoolVar(&retry, "retry", false, "retry accounts whose last connection failed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	types := []internal.FolderType{internal.FolderTypePrivate, internal.FolderTypeShared, internal.FolderTypePublic}
	if folderType != "" {
		t, ok := internal.ParseFolderType(folderType)
		if !ok {
			return fmt.Errorf("unknown folder type %q", folderType)
		}
		types = []internal.FolderType{t}
	}

	var accounts []*internal.Account
	if accountID > 0 {
		acc, err := account(ctx, env, accountID)
		if err != nil {
			return err
		}
		accounts = append(accounts, acc)
	} else {
		var err error
		accounts, err = env.storage.Accounts(ctx, env.session.UserID, env.provider.ID())
		if err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(env.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tFOLDER\tTYPE\tNAME\tSUBSCRIBED\tCOLOR\tERROR")
	for _, acc := range accounts {
		access := connect(ctx, env, acc, federation.ConnectOptions{ForceRetry: retry})
		for _, t := range types {
			folders, err := access.VisibleFolders(ctx, t)
			if err != nil {
				access.Close()
				return err
			}
			for _, f := range folders {
				subscribed := f.Subscribed == nil || *f.Subscribed
				errText := ""
				if f.Err != nil {
					errText = f.Err.Error()
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\t%s\t%s\n", acc.ID, f.ID, f.Type, f.Name, subscribed, f.Color, errText)
			}
		}
		printWarnings(env, access.Warnings())
		access.Close()
	}
	return w.Flush()
}

// connect opens an access on acc, or a read-only view of its remembered
// folders when the remote tenant cannot be reached.
func connect(ctx context.Context, env *environment, acc *internal.Account, opts federation.ConnectOptions) federation.CalendarAccess {
	access, err := env.provider.Connect(ctx, env.session, acc, opts)
	if err == nil {
		return access
	}
	env.logger.Debug("Using remembered folders", internal.ErrAttr(err))
	fallback, ferr := env.provider.ConnectFallback(env.session, acc, err)
	if ferr != nil {
		return failedAccess{err: errors.Join(err, ferr)}
	}
	return fallback
}

// failedAccess stands in for an account whose remembered folders are
// unreadable.
type failedAccess struct {
	err error
}

func (f failedAccess) VisibleFolders(context.Context, internal.FolderType) ([]internal.Folder, error) {
	return nil, f.err
}

func (f failedAccess) Folder(context.Context, string) (*internal.Folder, error) {
	return nil, f.err
}

func (f failedAccess) UpdateFolder(context.Context, string, internal.FolderUpdate, int64) (string, error) {
	return "", f.err
}

func (f failedAccess) EventsInFolder(context.Context, string, time.Time, time.Time) (internal.EventsResult, error) {
	return internal.EventsResult{}, f.err
}

func (f failedAccess) Warnings() []error { return nil }
func (f failedAccess) Close() error      { return nil }

type _updateFolderCommand struct {
	Name        string
	Description string
}

var UpdateFolderCommand = _updateFolderCommand{
	Name:        "update-folder",
	Description: "rename, (un)subscribe or change the color of a folder",
}

func (c _updateFolderCommand) Run(ctx context.Context, env *environment, args []string) error {
	var (
		accountID      int
		folderID       string
		name           string
		color          string
		unsubscribe    bool
		subscribe      bool
		ignoreWarnings bool
	)

	fs := newFlagSet(c.Name)
	fs.IntVar(&accountID, "account", 0, "account id")
	fs.StringVar(&folderID, "folder", "", "folder id")
	fs.StringVar(&name, "name", "", "rename the folder on the remote tenant")
	fs.StringVar(&color, "color", "", "local folder color")
	fs.BoolVar(&subscribe, "subscribe", false, "subscribe to the folder")
	fs.BoolVar(&unsubscribe, "unsubscribe", false, "unsubscribe from the folder")
	fs.BoolVar(&ignoreWarnings, "ignore-warnings", false, "proceed even when the account would be removed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if folderID == "" {
		return errors.New("-folder is required")
	}
	if subscribe && unsubscribe {
		return errors.New("-subscribe and -unsubscribe are exclusive")
	}

	var upd internal.FolderUpdate
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			upd.Name = &name
		case "color":
			upd.Color = &color
		case "subscribe":
			upd.Subscribed = &subscribe
		case "unsubscribe":
			subscribed := !unsubscribe
			upd.Subscribed = &subscribed
		}
	})

	acc, err := account(ctx, env, accountID)
	if err != nil {
		return err
	}
	access := connect(ctx, env, acc, federation.ConnectOptions{
		Parameters: federation.Parameters{IgnoreStorageWarnings: ignoreWarnings},
	})
	defer access.Close()

	id, err := access.UpdateFolder(ctx, folderID, upd, acc.LastModified)
	printWarnings(env, access.Warnings())
	if err != nil {
		return err
	}
	if id == "" {
		fmt.Fprintf(env.out, "Folder %s not updated\n", folderID)
		return nil
	}
	fmt.Fprintf(env.out, "Folder %s updated\n", id)
	return nil
}
