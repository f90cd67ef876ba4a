package main

import (
	"fmt"
	"strings"

	"github.com/guilherme-santos/calfed/internal"
)

type Strings []string

func (s *Strings) String() string {
	return fmt.Sprintf("%v", *s)
}

func (s *Strings) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// attendee builds an attendee from a command line value, either an e-mail
// address or a calendar user URI.
func attendee(value string) internal.Attendee {
	a := internal.Attendee{CUType: internal.CUTypeIndividual}
	switch {
	case strings.Contains(value, "://"), strings.HasPrefix(strings.ToLower(value), "mailto:"):
		a.URI = value
		if strings.HasPrefix(strings.ToLower(value), "mailto:") {
			a.Email = value[len("mailto:"):]
		}
	default:
		a.URI = internal.MailtoURI(value)
		a.Email = value
	}
	return a
}

func printWarnings(env *environment, warnings []error) {
	for _, w := range warnings {
		fmt.Fprintln(env.out, "warning:", w)
	}
}
