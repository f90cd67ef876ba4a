package ical

import (
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/guilherme-santos/calfed/internal"
)

// Occurrences returns the starts of the occurrences of e overlapping
// [from, until). A rule that cannot be parsed yields the event itself.
func Occurrences(e internal.Event, from, until time.Time) []time.Time {
	duration := e.EndsAt.Sub(e.StartsAt)
	if e.RecurrenceRule == "" {
		return single(e, from, until)
	}

	opt, err := rrule.StrToROption(e.RecurrenceRule)
	if err != nil {
		return single(e, from, until)
	}
	opt.Dtstart = e.StartsAt
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return single(e, from, until)
	}

	// Occurrences starting before from may still overlap it.
	starts := rule.Between(from.Add(-duration), until, true)
	res := starts[:0]
	for _, start := range starts {
		if overlaps(start, start.Add(duration), from, until) {
			res = append(res, start)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Before(res[j])
	})
	return res
}

func single(e internal.Event, from, until time.Time) []time.Time {
	if overlaps(e.StartsAt, e.EndsAt, from, until) {
		return []time.Time{e.StartsAt}
	}
	return nil
}

func overlaps(start, end, from, until time.Time) bool {
	if !end.After(start) {
		return !start.Before(from) && start.Before(until)
	}
	return start.Before(until) && end.After(from)
}
