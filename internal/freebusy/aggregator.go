// Package freebusy answers free/busy queries spanning every federation
// account of a user.
package freebusy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/guilherme-santos/calfed/internal"
	"github.com/guilherme-santos/calfed/internal/federation"
)

var (
	accountFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calfed_freebusy_account_failures_total",
		Help: "Accounts whose free/busy query failed and degraded to an error entry.",
	})
	capabilityHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calfed_capability_cache_hits_total",
		Help: "Free/busy capability lookups answered from the cache.",
	})
	capabilityMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calfed_capability_cache_misses_total",
		Help: "Free/busy capability lookups sent to the remote tenant.",
	})
)

const capabilityCacheSize = 256

// Connector opens accesses on federation accounts; *federation.Provider
// implements it.
type Connector interface {
	Connect(ctx context.Context, session internal.LocalSession, acc *internal.Account, opts federation.ConnectOptions) (*federation.Access, error)
}

// AttendeeResult holds the free/busy data of one attendee, per account id.
type AttendeeResult struct {
	Attendee internal.Attendee
	Accounts map[int]internal.FreeBusyResult
}

// Result is keyed by internal.Attendee.Key of the requested attendees.
type Result map[string]*AttendeeResult

func (r Result) merge(ar accountResult) {
	for _, fb := range ar.results {
		key := fb.Attendee.Key()
		entry, ok := r[key]
		if !ok {
			entry = &AttendeeResult{Attendee: fb.Attendee, Accounts: make(map[int]internal.FreeBusyResult)}
			r[key] = entry
		}
		entry.Accounts[ar.accountID] = fb.Result
	}
}

type Config struct {
	// Workers bounds the number of accounts queried at once. Zero queries
	// them one after the other on the calling goroutine.
	Workers int
	// CapabilityTTL is how long the free/busy capability of a share is cached.
	CapabilityTTL time.Duration
}

type Aggregator struct {
	connector    Connector
	accounts     internal.AccountService
	capabilities internal.CapabilityChecker
	cache        *expirable.LRU[string, bool]
	workers      int
	logger       *slog.Logger
}

func NewAggregator(connector Connector, accounts internal.AccountService, capabilities internal.CapabilityChecker, cfg Config, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CapabilityTTL <= 0 {
		cfg.CapabilityTTL = 5 * time.Minute
	}
	return &Aggregator{
		connector:    connector,
		accounts:     accounts,
		capabilities: capabilities,
		cache:        expirable.NewLRU[string, bool](capabilityCacheSize, nil, cfg.CapabilityTTL),
		workers:      cfg.Workers,
		logger:       logger.With(slog.String("component", "freebusy")),
	}
}

type accountResult struct {
	accountID int
	results   []internal.AttendeeFreeBusy
}

// Query asks every federation account of the session user that exposes
// free/busy data. A failing account does not fail the query: every attendee
// gets an entry for it carrying the error. Attendees resolving to the same
// key are asked once.
func (a *Aggregator) Query(ctx context.Context, session internal.LocalSession, attendees []internal.Attendee, from, until time.Time, merge bool) (Result, error) {
	attendees, err := uniqueAttendees(attendees)
	if err != nil {
		return nil, err
	}
	res := make(Result)
	if len(attendees) == 0 {
		return res, nil
	}
	accounts, err := a.accounts.Accounts(ctx, session.UserID, internal.ProviderID)
	if err != nil {
		return nil, err
	}
	accounts = a.visible(ctx, accounts)
	if len(accounts) == 0 {
		return res, nil
	}

	if len(accounts) == 1 || a.workers <= 0 {
		for _, acc := range accounts {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			res.merge(a.query(ctx, session, acc, attendees, from, until, merge))
		}
		return res, nil
	}

	results := make(chan accountResult, len(accounts))
	go func() {
		var g errgroup.Group
		g.SetLimit(a.workers)
		for _, acc := range accounts {
			acc := acc
			g.Go(func() error {
				results <- a.query(ctx, session, acc, attendees, from, until, merge)
				return nil
			})
		}
		_ = g.Wait()
	}()

	for range accounts {
		select {
		case r := <-results:
			res.merge(r)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return res, nil
}

func uniqueAttendees(attendees []internal.Attendee) ([]internal.Attendee, error) {
	seen := make(map[string]bool, len(attendees))
	res := make([]internal.Attendee, 0, len(attendees))
	for _, at := range attendees {
		key := at.Key()
		if key == "" {
			return nil, internal.Errorf(internal.CodeInvalidEntity, "attendee without uri, e-mail or entity: %w", internal.ErrInvalidEntity)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		res = append(res, at)
	}
	return res, nil
}

// visible drops the accounts whose share does not expose free/busy data, or
// whose capability cannot be determined.
func (a *Aggregator) visible(ctx context.Context, accounts []*internal.Account) []*internal.Account {
	res := make([]*internal.Account, 0, len(accounts))
	for _, acc := range accounts {
		ok, err := a.freeBusyVisible(ctx, acc)
		if err != nil {
			internal.AccountLogger(a.logger, acc).Debug("Excluding account, free/busy capability unknown", internal.ErrAttr(err))
			continue
		}
		if ok {
			res = append(res, acc)
		}
	}
	return res
}

// capabilityKey identifies a share together with the credentials used on it.
func capabilityKey(cfg internal.UserConfig) string {
	sum := sha256.Sum256([]byte(cfg.Password))
	return cfg.URL + "\x00" + hex.EncodeToString(sum[:])
}

func (a *Aggregator) freeBusyVisible(ctx context.Context, acc *internal.Account) (bool, error) {
	key := capabilityKey(acc.UserConfig)
	if ok, found := a.cache.Get(key); found {
		capabilityHitsTotal.Inc()
		return ok, nil
	}
	capabilityMissesTotal.Inc()
	ok, err := a.capabilities.FreeBusyVisible(ctx, acc.UserConfig.URL, acc.UserConfig.Password)
	if err != nil {
		return false, err
	}
	a.cache.Add(key, ok)
	return ok, nil
}

func (a *Aggregator) query(ctx context.Context, session internal.LocalSession, acc *internal.Account, attendees []internal.Attendee, from, until time.Time, merge bool) accountResult {
	logger := internal.AccountLogger(a.logger, acc)
	results, err := a.queryAccount(ctx, session, acc, attendees, from, until, merge, logger)
	if err != nil {
		accountFailuresTotal.Inc()
		logger.Warn("Free/busy query failed", internal.ErrAttr(err))
		results = make([]internal.AttendeeFreeBusy, len(attendees))
		for i, at := range attendees {
			results[i] = internal.AttendeeFreeBusy{Attendee: at, Result: internal.FreeBusyResult{Err: err}}
		}
		return accountResult{accountID: acc.ID, results: results}
	}
	return accountResult{
		accountID: acc.ID,
		results:   federation.MatchAttendees(attendees, attendees, results, logger),
	}
}

func (a *Aggregator) queryAccount(ctx context.Context, session internal.LocalSession, acc *internal.Account, attendees []internal.Attendee, from, until time.Time, merge bool, logger *slog.Logger) ([]internal.AttendeeFreeBusy, error) {
	access, err := a.connector.Connect(ctx, session, acc, federation.ConnectOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := access.Close(); cerr != nil {
			logger.Debug("Unable to close access", internal.ErrAttr(cerr))
		}
	}()
	return access.FreeBusy(ctx, attendees, from, until, merge)
}
