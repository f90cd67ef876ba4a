package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/guilherme-santos/calfed/calendar/google"
)

type _googleLoginCommand struct {
	Name        string
	Description string
}

var GoogleLoginCommand = _googleLoginCommand{
	Name:        "google-login",
	Description: "obtain the token used as password of a Google Calendar share",
}

func (c _googleLoginCommand) Run(ctx context.Context, env *environment, args []string) error {
	var (
		calendarID string
		output     string
	)

	fs := newFlagSet(c.Name)
	fs.StringVar(&calendarID, "calendar", "", "print the share link of this calendar id")
	fs.StringVar(&output, "o", "", "write the token to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if env.google == nil {
		return errors.New("google credentials are not configured, set CALFED_GOOGLE_CREDENTIALS")
	}

	token, err := env.google.Login(ctx, os.Stderr)
	if err != nil {
		return err
	}
	if calendarID != "" {
		fmt.Fprintln(os.Stderr, "Share link:", google.ShareURL(calendarID))
	}
	if output != "" {
		return os.WriteFile(output, token, 0o600)
	}
	fmt.Fprintln(env.out, string(token))
	return nil
}
