package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/guilherme-santos/calfed/internal"
	"github.com/guilherme-santos/calfed/internal/federation"
	"github.com/guilherme-santos/calfed/internal/ical"
)

type _importCommand struct {
	Name        string
	Description string
}

var ImportCommand = _importCommand{
	Name:        "import",
	Description: "import the events of an iCalendar file into a folder",
}

func (c _importCommand) Run(ctx context.Context, env *environment, args []string) error {
	var (
		accountID int
		folderID  string
		filename  string
	)

	fs := newFlagSet(c.Name)
	fs.IntVar(&accountID, "account", 0, "account id")
	fs.StringVar(&folderID, "folder", "", "folder id")
	fs.StringVar(&filename, "f", "-", "iCalendar file, - reads stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if folderID == "" {
		return errors.New("-folder is required")
	}

	var r io.Reader = os.Stdin
	if filename != "-" {
		f, err := os.Open(filename)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	events, err := ical.Parse(r)
	if err != nil {
		return err
	}

	acc, err := account(ctx, env, accountID)
	if err != nil {
		return err
	}
	access, err := env.provider.Connect(ctx, env.session, acc, federation.ConnectOptions{})
	if err != nil {
		return err
	}
	defer access.Close()

	results, err := access.ImportEvents(ctx, folderID, events)
	if err != nil {
		return err
	}
	var imported int
	for _, res := range results {
		printWarnings(env, res.Warnings)
		if res.Err != nil {
			fmt.Fprintf(env.out, "event %d (%s): %v\n", res.Index, events[res.Index].UID, res.Err)
			continue
		}
		imported++
	}
	printWarnings(env, access.Warnings())
	fmt.Fprintf(env.out, "%d of %d events imported\n", imported, len(events))
	return nil
}

type _exportCommand struct {
	Name        string
	Description string
}

var ExportCommand = _exportCommand{
	Name:        "export",
	Description: "write the events of a folder as iCalendar",
}

func (c _exportCommand) Run(ctx context.Context, env *environment, args []string) error {
	var (
		accountID int
		folderID  string
		output    string
	)
	r := internal.DefaultRange(defaultRangeDays)

	fs := newFlagSet(c.Name)
	fs.IntVar(&accountID, "account", 0, "account id")
	fs.StringVar(&folderID, "folder", "", "folder id")
	fs.Var(&r.From, "from", "first day, format "+internal.DateFormat)
	fs.Var(&r.Until, "until", "day after the last one, format "+internal.DateFormat)
	fs.StringVar(&output, "o", "", "write to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if folderID == "" {
		return errors.New("-folder is required")
	}
	if err := r.Validate(); err != nil {
		return err
	}

	acc, err := account(ctx, env, accountID)
	if err != nil {
		return err
	}
	access := connect(ctx, env, acc, federation.ConnectOptions{})
	defer access.Close()

	res, err := access.EventsInFolder(ctx, folderID, r.From.Time, r.Until.Time)
	if err != nil {
		return err
	}
	if res.Err != nil {
		return res.Err
	}

	if output == "" {
		return ical.Write(env.out, res.Events)
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := ical.Write(f, res.Events); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
