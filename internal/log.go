package internal

import (
	"log/slog"
)

// AccountLogger returns a logger annotated with the account it works on.
func AccountLogger(logger *slog.Logger, acc *Account) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if acc == nil {
		return logger
	}
	return logger.With(
		slog.String("provider", acc.ProviderID),
		slog.Int("account_id", acc.ID),
		slog.String("account_name", acc.UserConfig.Name),
	)
}

// ErrAttr is the attribute used for errors in every log line.
func ErrAttr(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
