package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/guilherme-santos/calfed/internal"
)

// Host is the host of Google Calendar share links.
const Host = "calendar.google.com"

// Client is a remote tenant backed by Google Calendar. A share link names one
// calendar through its src parameter, the share password is the OAuth token
// granting access to it.
type Client struct {
	oauthCfg *oauth2.Config
	logger   *slog.Logger

	// opts replaces the OAuth client when set.
	opts []option.ClientOption
}

func NewClient(credJSON []byte, logger *slog.Logger) (*Client, error) {
	oauthCfg, err := google.ConfigFromJSON(credJSON, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("google: parsing credentials file: %v", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		oauthCfg: oauthCfg,
		logger:   logger.With(slog.String("component", "google")),
	}, nil
}

const defaultSleep = 5 * time.Second

// CalendarID extracts the calendar id from a share link.
func CalendarID(shareURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(shareURL))
	if err != nil {
		return "", internal.Errorf(internal.CodeInvalidConfiguration, "google: share link %q: %w", shareURL, internal.ErrInvalidConfiguration)
	}
	id := u.Query().Get("src")
	if id == "" {
		return "", internal.Errorf(internal.CodeInvalidConfiguration, "google: share link %q names no calendar: %w", shareURL, internal.ErrInvalidConfiguration)
	}
	return id, nil
}

// ShareURL builds the share link of a calendar.
func ShareURL(calendarID string) string {
	return "https://" + Host + "/calendar/embed?" + url.Values{"src": {calendarID}}.Encode()
}

func (c *Client) GuestSession(ctx context.Context, _ internal.LocalSession, shareURL, password string) (internal.RemoteSession, error) {
	calendarID, err := CalendarID(shareURL)
	if err != nil {
		return nil, err
	}
	svc, err := c.calendarSvc(ctx, password)
	if err != nil {
		return nil, err
	}
	cal, err := do(ctx, func() (*calendar.Calendar, error) {
		return svc.Calendars.Get(calendarID).Context(ctx).Do()
	})
	if err != nil {
		return nil, translate(err, internal.ErrUnknownShare)
	}
	c.logger.Debug("Guest session opened", slog.String("calendar_id", calendarID))
	return &Session{
		svc:        svc,
		calendarID: calendarID,
		name:       cal.Summary,
		logger:     c.logger.With(slog.String("calendar_id", calendarID)),
	}, nil
}

// FreeBusyVisible reports whether the token holder may read at least the
// free/busy data of the shared calendar.
func (c *Client) FreeBusyVisible(ctx context.Context, shareURL, password string) (bool, error) {
	calendarID, err := CalendarID(shareURL)
	if err != nil {
		return false, err
	}
	svc, err := c.calendarSvc(ctx, password)
	if err != nil {
		return false, err
	}
	entry, err := do(ctx, func() (*calendar.CalendarListEntry, error) {
		return svc.CalendarList.Get(calendarID).Context(ctx).Do()
	})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, translate(err, internal.ErrUnknownShare)
	}
	switch entry.AccessRole {
	case "freeBusyReader", "reader", "writer", "owner":
		return true, nil
	}
	return false, nil
}

// Login runs the OAuth consent flow and returns the token to use as share
// password. The consent link is written to w.
func (c *Client) Login(ctx context.Context, w io.Writer) ([]byte, error) {
	state := fmt.Sprintf("calfed-%d", time.Now().UTC().Nanosecond())
	authURL := c.oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(w, "\nGo to the following link in your browser\n%s\n", authURL)

	mux := http.NewServeMux()
	server := &http.Server{
		Addr:    ":8080",
		Handler: mux,
	}

	var (
		token   *oauth2.Token
		authErr error
	)

	mux.HandleFunc("/calfed", func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			go server.Shutdown(ctx)
		}()

		query := req.URL.Query()
		if query.Get("state") != state {
			authErr = errors.New("oauth link is not valid")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		token, authErr = c.oauthCfg.Exchange(ctx, query.Get("code"))
		if authErr != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintln(w, "Unable to retrieve token:", authErr)
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "All good, you can close this window!")
	})

	serverCh := make(chan struct{})
	var svrErr error
	go func() {
		svrErr = server.ListenAndServe()
		close(serverCh)
	}()

	<-serverCh

	if svrErr != nil && svrErr != http.ErrServerClosed {
		return nil, svrErr
	}

	if authErr != nil {
		return nil, authErr
	}

	return json.Marshal(token)
}

func (c *Client) calendarSvc(ctx context.Context, password string) (*calendar.Service, error) {
	if c.opts != nil {
		return calendar.NewService(ctx, c.opts...)
	}
	var tok *oauth2.Token
	if err := json.Unmarshal([]byte(password), &tok); err != nil || tok == nil {
		return nil, internal.Errorf(internal.CodeInvalidConfiguration, "google: share password is not a token: %w", internal.ErrInvalidConfiguration)
	}
	return calendar.NewService(ctx, option.WithHTTPClient(c.oauthCfg.Client(ctx, tok)))
}

// do runs call until it succeeds or fails for another reason than the rate
// limit.
func do[T any](ctx context.Context, call func() (T, error)) (T, error) {
	for {
		res, err := call()
		if err == nil || !shouldRetry(err) {
			return res, err
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-time.After(defaultSleep):
		}
	}
}

func shouldRetry(err error) bool {
	return errIsReason(err, "rateLimitExceeded") || errIsReason(err, "userRateLimitExceeded")
}

func alreadyDeleted(err error) bool {
	return errIsReason(err, "deleted") || errIsCode(err, http.StatusGone)
}

func isNotFound(err error) bool {
	return errIsCode(err, http.StatusNotFound) || errIsCode(err, http.StatusGone)
}

func errIsReason(err error, reason string) bool {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return false
	}

	for _, err := range gErr.Errors {
		switch err.Reason {
		case reason:
			return true
		}
	}
	return false
}

func errIsCode(err error, code int) bool {
	var gErr *googleapi.Error
	return errors.As(err, &gErr) && gErr.Code == code
}

// translate classifies a Google API error. notFound is used for a missing
// resource.
func translate(err error, notFound *internal.Error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return internal.Errorf(internal.CodeRemoteUnavailable, "google: %v: %w", err, internal.ErrRemoteUnavailable)
	}
	switch gErr.Code {
	case http.StatusNotFound, http.StatusGone:
		return internal.Errorf(notFound.Code, "google: %s: %w", gErr.Message, notFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		return internal.Errorf(internal.CodeInvalidConfiguration, "google: %s: %w", gErr.Message, internal.ErrInvalidConfiguration)
	case http.StatusPreconditionFailed:
		return internal.Errorf(internal.CodeConcurrentModification, "google: %s: %w", gErr.Message, internal.ErrConcurrentModification)
	}
	return internal.Errorf(internal.CodeRemoteUnavailable, "google: %s: %w", gErr.Message, internal.ErrRemoteUnavailable)
}

var (
	_ internal.ShareService      = (*Client)(nil)
	_ internal.CapabilityChecker = (*Client)(nil)
)
