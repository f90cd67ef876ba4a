package internal

import (
	"fmt"
	"time"
)

const DateFormat = "2006-01-02"

// Date is a calendar day, used to express free/busy and event ranges on the
// command line.
type Date struct {
	time.Time
}

func Today() Date {
	return NewDateFromTime(time.Now())
}

func NewDateFromTime(t time.Time) Date {
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())}
}

func ParseDate(value string) (Date, error) {
	t, err := time.ParseInLocation(DateFormat, value, time.Local)
	if err != nil {
		return Date{}, err
	}
	return NewDateFromTime(t), nil
}

func (d Date) AddDays(days int) Date {
	return NewDateFromTime(d.Time.AddDate(0, 0, days))
}

// Set implements flag.Value.
func (d *Date) Set(v string) error {
	parsed, err := ParseDate(v)
	if err == nil {
		*d = parsed
	}
	return err
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateFormat)
}

// Range is a half open interval of days, [From, Until).
type Range struct {
	From  Date
	Until Date
}

// DefaultRange covers today and the following days.
func DefaultRange(days int) Range {
	today := Today()
	return Range{From: today, Until: today.AddDays(days)}
}

func (r Range) Validate() error {
	if r.From.IsZero() || r.Until.IsZero() {
		return fmt.Errorf("range needs both ends")
	}
	if !r.From.Before(r.Until.Time) {
		return fmt.Errorf("range end %s is not after its start %s", r.Until, r.From)
	}
	return nil
}
