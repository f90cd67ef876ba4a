package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/guilherme-santos/calfed/internal"
	"github.com/guilherme-santos/calfed/internal/federation"
	"github.com/guilherme-santos/calfed/internal/ical"
)

const defaultRangeDays = 7

type _eventsCommand struct {
	Name        string
	Description string
}

var EventsCommand = _eventsCommand{
	Name:        "events",
	Description: "list the events of a folder",
}

func (c _eventsCommand) Run(ctx context.Context, env *environment, args []string) error {
	var (
		accountID int
		folderID  string
		retry     bool
		expand    bool
	)
	r := internal.DefaultRange(defaultRangeDays)

	fs := newFlagSet(c.Name)
	fs.IntVar(&accountID, "account", 0, "account id")
	fs.StringVar(&folderID, "folder", "", "folder id")
	fs.Var(&r.From, "from", "first day, format "+internal.DateFormat)
	fs.Var(&r.Until, "until", "day after the last one, format "+internal.DateFormat)
	fs.BoolVar(&retry, "retry", false, "retry the account even when its last connection failed")
	fs.BoolVar(&expand, "expand", false, "list every occurrence of recurring events")
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
	access := connect(ctx, env, acc, federation.ConnectOptions{ForceRetry: retry})
	defer access.Close()

	res, err := access.EventsInFolder(ctx, folderID, r.From.Time, r.Until.Time)
	if err != nil {
		return err
	}
	if res.Err != nil {
		return res.Err
	}
	printWarnings(env, access.Warnings())

	w := tabwriter.NewWriter(env.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTART\tEND\tSUMMARY\tORGANIZER\tATTENDEES")
	for _, e := range res.Events {
		organizer := ""
		if e.Organizer != nil {
			organizer = e.Organizer.URI
		}
		if !expand || e.RecurrenceRule == "" {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", e.ID, formatTime(e, true), formatTime(e, false), e.Summary, organizer, len(e.Attendees))
			continue
		}
		duration := e.EndsAt.Sub(e.StartsAt)
		for _, start := range ical.Occurrences(e, r.From.Time, r.Until.Time) {
			occurrence := e
			occurrence.StartsAt = start
			occurrence.EndsAt = start.Add(duration)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", e.ID, formatTime(occurrence, true), formatTime(occurrence, false), e.Summary, organizer, len(e.Attendees))
		}
	}
	return w.Flush()
}

func formatTime(e internal.Event, start bool) string {
	t := e.EndsAt
	if start {
		t = e.StartsAt
	}
	if e.AllDay {
		return t.Format(internal.DateFormat)
	}
	return t.Local().Format("2006-01-02 15:04")
}
