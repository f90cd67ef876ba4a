package accountconfig

import (
	"errors"
	"time"

	"github.com/guilherme-santos/calfed/internal"
)

const (
	// RecentErrorWindow is how long a memoized error is re-thrown even if a
	// retry was explicitly requested.
	RecentErrorWindow = time.Minute

	DefaultRetryAfter = time.Hour
	MinRetryAfter     = time.Minute
)

// ClampRetryAfter applies the default and the lower bound of the retry interval.
func ClampRetryAfter(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultRetryAfter
	}
	if d < MinRetryAfter {
		return MinRetryAfter
	}
	return d
}

type ErrorInfo struct {
	Code    internal.Code `json:"code"`
	Message string        `json:"message"`
}

// ErrorRecord is the memo of the last connection error of an account.
type ErrorRecord struct {
	Error     ErrorInfo `json:"error"`
	Timestamp int64     `json:"timestamp"`
}

func (r ErrorRecord) At() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// EncodeError converts an error into its persisted form.
func EncodeError(err error) ErrorInfo {
	info := ErrorInfo{Code: internal.CodeInternal, Message: err.Error()}
	var e *internal.Error
	if errors.As(err, &e) {
		info.Code = e.Code
	}
	return info
}

// DecodeError converts a persisted error back; the result matches the
// original with errors.Is.
func DecodeError(info ErrorInfo) error {
	return &internal.Error{Code: info.Code, Msg: info.Message}
}

// SetLastError replaces the memoized error.
func (c *InternalConfig) SetLastError(err error, at time.Time) {
	c.LastError = &ErrorRecord{
		Error:     EncodeError(err),
		Timestamp: at.UnixMilli(),
	}
}

// ClearLastError reports whether there was an error to clear.
func (c *InternalConfig) ClearLastError() bool {
	if c.LastError == nil {
		return false
	}
	c.LastError = nil
	return true
}

// Err returns the memoized error, nil when the account is healthy.
func (c *InternalConfig) Err() error {
	if c.LastError == nil {
		return nil
	}
	return DecodeError(c.LastError.Error)
}

type State int

const (
	StateHealthy State = iota
	// StateDegradedRecent means the error is younger than RecentErrorWindow.
	StateDegradedRecent
	// StateDegraded means the error is older than RecentErrorWindow but the
	// retry interval has not elapsed yet.
	StateDegraded
	StateDegradedRetryable
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegradedRecent:
		return "degraded-recent"
	case StateDegraded:
		return "degraded"
	case StateDegradedRetryable:
		return "degraded-retryable"
	}
	return "unknown"
}

// State derives the account state from the memo.
func (c *InternalConfig) State(now time.Time, retryAfter time.Duration) State {
	if c.LastError == nil {
		return StateHealthy
	}
	age := now.Sub(c.LastError.At())
	switch {
	case age < RecentErrorWindow:
		return StateDegradedRecent
	case age >= ClampRetryAfter(retryAfter):
		return StateDegradedRetryable
	}
	return StateDegraded
}

// ShouldConnect tells whether a connection attempt is made in the given
// state. A forced retry is honored unless the error is recent.
func ShouldConnect(s State, force bool) bool {
	switch s {
	case StateHealthy, StateDegradedRetryable:
		return true
	case StateDegraded:
		return force
	}
	return false
}
