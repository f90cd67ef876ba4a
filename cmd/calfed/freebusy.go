package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/guilherme-santos/calfed/internal"
)

type _freeBusyCommand struct {
	Name        string
	Description string
}

var FreeBusyCommand = _freeBusyCommand{
	Name:        "freebusy",
	Description: "show when attendees are busy across every account",
}

func (c _freeBusyCommand) Run(ctx context.Context, env *environment, args []string) error {
	var (
		attendees Strings
		merge     bool
	)
	r := internal.DefaultRange(defaultRangeDays)

	fs := newFlagSet(c.Name)
	fs.Var(&attendees, "attendee", "e-mail address or URI of an attendee, can be repeated")
	fs.Var(&r.From, "from", "first day, format "+internal.DateFormat)
	fs.Var(&r.Until, "until", "day after the last one, format "+internal.DateFormat)
	fs.BoolVar(&merge, "merge", false, "merge overlapping busy times")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(attendees) == 0 {
		return errors.New("-attendee is required")
	}
	if err := r.Validate(); err != nil {
		return err
	}

	requested := make([]internal.Attendee, 0, len(attendees))
	for _, a := range attendees {
		requested = append(requested, attendee(a))
	}

	result, err := env.aggregator.Query(ctx, env.session, requested, r.From.Time, r.Until.Time, merge)
	if err != nil {
		return err
	}

	for _, a := range requested {
		entry, ok := result[a.Key()]
		if !ok {
			fmt.Fprintf(env.out, "%s: no data\n", a.URI)
			continue
		}
		fmt.Fprintf(env.out, "%s:\n", a.URI)

		ids := make([]int, 0, len(entry.Accounts))
		for id := range entry.Accounts {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			fb := entry.Accounts[id]
			if fb.Err != nil {
				fmt.Fprintf(env.out, "  account %d: %v\n", id, fb.Err)
				continue
			}
			for _, t := range fb.Times {
				fmt.Fprintf(env.out, "  account %d: %s %s - %s\n", id, t.Type, t.StartsAt.Local().Format("2006-01-02 15:04"), t.EndsAt.Local().Format("2006-01-02 15:04"))
			}
			printWarnings(env, fb.Warnings)
		}
	}
	return nil
}
