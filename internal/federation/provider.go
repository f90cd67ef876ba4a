package federation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/guilherme-santos/calfed/internal"
	"github.com/guilherme-santos/calfed/internal/accountconfig"
)

var (
	connectFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calfed_connect_failures_total",
		Help: "Failed guest logins on remote tenants, by error code.",
	}, []string{"code"})
	connectFastFailTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calfed_connect_fastfail_total",
		Help: "Connections refused with the memoized error without contacting the remote tenant.",
	})
)

const (
	CapabilityFreeBusy  = "freebusy"
	CapabilityColor     = "color"
	CapabilitySubscribe = "subscribe"
)

type Config struct {
	// RetryAfter is how long a connection error is memoized before a new
	// attempt is made. Defaults to one hour, at least one minute.
	RetryAfter time.Duration
	// AutoRemoveUnknownShares deletes accounts whose share does not exist
	// anymore on the remote tenant.
	AutoRemoveUnknownShares bool
}

type ConnectOptions struct {
	// ForceRetry ignores a memoized error older than a minute.
	ForceRetry bool
	Parameters
}

// Provider manages federation accounts.
type Provider struct {
	shares   internal.ShareService
	accounts internal.AccountService
	cfg      Config
	logger   *slog.Logger

	now func() time.Time
}

func NewProvider(shares internal.ShareService, accounts internal.AccountService, cfg Config, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.RetryAfter = accountconfig.ClampRetryAfter(cfg.RetryAfter)
	return &Provider{
		shares:   shares,
		accounts: accounts,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (p *Provider) ID() string {
	return internal.ProviderID
}

// SecretFields lists the user config fields never returned to clients.
func (p *Provider) SecretFields() []string {
	return []string{"password"}
}

func (p *Provider) Capabilities() []string {
	return []string{CapabilityFreeBusy, CapabilityColor, CapabilitySubscribe}
}

// Connect opens an access on the remote tenant of the account.
//
// A memoized connection error younger than a minute is returned right away.
// Older ones are returned as well until the retry interval has elapsed or a
// retry is forced; then the memo is cleared and a login attempted. A failed
// login is memoized, except when the share is gone and the account removed.
func (p *Provider) Connect(ctx context.Context, session internal.LocalSession, acc *internal.Account, opts ConnectOptions) (*Access, error) {
	logger := internal.AccountLogger(p.logger, acc)
	state, err := newAccountState(p.accounts, acc, logger)
	if err != nil {
		return nil, err
	}

	if s := state.cfg.State(p.now(), p.cfg.RetryAfter); s != accountconfig.StateHealthy {
		if !accountconfig.ShouldConnect(s, opts.ForceRetry) {
			connectFastFailTotal.Inc()
			err := state.cfg.Err()
			logger.Debug("Refusing to connect, account is degraded", slog.String("state", s.String()), internal.ErrAttr(err))
			return nil, err
		}
		logger.Info("Retrying degraded account", slog.String("state", s.String()), slog.Bool("forced", opts.ForceRetry))
		state.cfg.ClearLastError()
		state.saveAdvisory(ctx)
	}

	remote, err := p.shares.GuestSession(ctx, session, acc.UserConfig.URL, acc.UserConfig.Password)
	if err != nil {
		return nil, p.connectFailed(ctx, state, err)
	}
	return newAccess(session, state, remote, opts.Parameters, logger), nil
}

func (p *Provider) connectFailed(ctx context.Context, state *accountState, err error) error {
	connectFailuresTotal.WithLabelValues(string(internal.CodeOf(err))).Inc()
	state.logger.Warn("Unable to connect to remote calendar", internal.ErrAttr(err))

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, internal.ErrUnknownShare) && p.cfg.AutoRemoveUnknownShares {
		state.logger.Info("Removing account, its share does not exist anymore")
		if derr := state.delete(ctx); derr != nil {
			state.logger.Warn("Unable to remove account", internal.ErrAttr(derr))
		}
		return err
	}
	state.cfg.SetLastError(err, p.now())
	state.saveAdvisory(ctx)
	return err
}

// ConnectFallback opens a read-only access showing the remembered folders of
// an account that cannot be reached, each carrying err.
func (p *Provider) ConnectFallback(session internal.LocalSession, acc *internal.Account, err error) (*FallbackAccess, error) {
	state, perr := newAccountState(p.accounts, acc, internal.AccountLogger(p.logger, acc))
	if perr != nil {
		return nil, perr
	}
	if err == nil {
		err = state.cfg.Err()
	}
	if err == nil {
		err = internal.ErrRemoteUnavailable
	}
	return &FallbackAccess{session: session, state: state, err: err}, nil
}

// ConfigureAccount validates the configuration of a new account by logging
// into the remote tenant. It returns the user and internal configuration to
// store.
func (p *Provider) ConfigureAccount(ctx context.Context, session internal.LocalSession, cfg internal.UserConfig) (internal.UserConfig, json.RawMessage, error) {
	cfg.InternalConfig = nil
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.URL == "" {
		return internal.UserConfig{}, nil, missingURL()
	}
	if err := p.verifyShare(ctx, session, cfg); err != nil {
		return internal.UserConfig{}, nil, err
	}
	raw, err := (&accountconfig.InternalConfig{}).Marshal()
	if err != nil {
		return internal.UserConfig{}, nil, err
	}
	return cfg, raw, nil
}

// ReconfigureAccount validates a changed configuration. The share link cannot
// change; a new password is checked by logging in, which also clears a
// memoized error. An empty password keeps the current one.
func (p *Provider) ReconfigureAccount(ctx context.Context, session internal.LocalSession, acc *internal.Account, cfg internal.UserConfig) (internal.UserConfig, json.RawMessage, error) {
	cfg.InternalConfig = nil
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.URL == "" {
		return internal.UserConfig{}, nil, missingURL()
	}
	if acc.UserConfig.URL != "" && acc.UserConfig.URL != cfg.URL {
		return internal.UserConfig{}, nil, internal.Errorf(internal.CodeInvalidConfiguration,
			"the share link of account %s cannot be changed: %w", acc, internal.ErrInvalidConfiguration)
	}
	if cfg.Password == "" {
		cfg.Password = acc.UserConfig.Password
	}

	intCfg, err := accountconfig.Parse(acc.InternalConfig)
	if err != nil {
		return internal.UserConfig{}, nil, internal.Errorf(internal.CodeInvalidConfiguration, "account %s: %w", acc, err)
	}
	if cfg.Password != acc.UserConfig.Password {
		if err := p.verifyShare(ctx, session, cfg); err != nil {
			return internal.UserConfig{}, nil, err
		}
		if intCfg.ClearLastError() {
			internal.AccountLogger(p.logger, acc).Info("Cleared memoized error after password change")
		}
	}
	raw, err := intCfg.Marshal()
	if err != nil {
		return internal.UserConfig{}, nil, err
	}
	return cfg, raw, nil
}

func (p *Provider) verifyShare(ctx context.Context, session internal.LocalSession, cfg internal.UserConfig) error {
	remote, err := p.shares.GuestSession(ctx, session, cfg.URL, cfg.Password)
	if err != nil {
		p.logger.Debug("Guest login failed", slog.Any("config", cfg), internal.ErrAttr(err))
		return err
	}
	return remote.Close()
}

func missingURL() error {
	return internal.Errorf(internal.CodeInvalidConfiguration, "missing share link: %w", internal.ErrInvalidConfiguration)
}
