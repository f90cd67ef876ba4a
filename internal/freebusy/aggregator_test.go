package freebusy

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/guilherme-santos/calfed/internal"
	"github.com/guilherme-santos/calfed/internal/accountconfig"
	"github.com/guilherme-santos/calfed/internal/federation"
	"github.com/guilherme-santos/calfed/internal/remotetest"
)

var (
	session = internal.LocalSession{UserID: 1, ContextID: 1, Email: "me@local.example"}
	from    = time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	until   = from.Add(24 * time.Hour)
)

type fixture struct {
	tenant     *remotetest.Tenant
	accounts   *remotetest.Accounts
	aggregator *Aggregator
}

func newFixture(t *testing.T, workers int) *fixture {
	t.Helper()

	tenant := remotetest.NewTenant()
	tenant.AddUser(42, "alice@remote.example")
	tenant.SetFreeBusy("alice@remote.example", internal.FreeBusyTime{
		StartsAt: from.Add(9 * time.Hour),
		EndsAt:   from.Add(10 * time.Hour),
		Type:     internal.FbBusy,
	})
	accounts := remotetest.NewAccounts()
	provider := federation.NewProvider(tenant, accounts, federation.Config{}, nil)
	return &fixture{
		tenant:     tenant,
		accounts:   accounts,
		aggregator: NewAggregator(provider, accounts, tenant, Config{Workers: workers}, nil),
	}
}

func (f *fixture) addAccount(t *testing.T, n int, internalCfg []byte) *internal.Account {
	t.Helper()
	url := fmt.Sprintf("https://remote.example/share/%d", n)
	f.tenant.AddShare(url, "secret")
	acc, err := f.accounts.CreateAccount(context.Background(), session.UserID, internal.ProviderID, internal.UserConfig{
		URL:      url,
		Password: "secret",
	}, internalCfg)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return acc
}

func degradedConfig(t *testing.T) []byte {
	t.Helper()
	cfg := &accountconfig.InternalConfig{}
	cfg.SetLastError(internal.ErrRemoteUnavailable, time.Now())
	raw, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

var attendees = []internal.Attendee{
	{CalendarUser: internal.CalendarUser{URI: "mailto:alice@remote.example"}},
	{CalendarUser: internal.CalendarUser{URI: "mailto:bob@elsewhere.example"}},
}

func TestQuery_PartialFailure(t *testing.T) {
	for _, workers := range []int{0, 2, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			f := newFixture(t, workers)
			acc1 := f.addAccount(t, 1, nil)
			acc2 := f.addAccount(t, 2, degradedConfig(t))
			acc3 := f.addAccount(t, 3, nil)

			res, err := f.aggregator.Query(context.Background(), session, attendees, from, until, false)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(res) != len(attendees) {
				t.Fatalf("expected %d attendees, got %d", len(attendees), len(res))
			}
			for _, at := range attendees {
				entry, ok := res[at.Key()]
				if !ok {
					t.Fatalf("attendee %s missing", at.URI)
				}
				if len(entry.Accounts) != 3 {
					t.Fatalf("attendee %s: expected 3 accounts, got %v", at.URI, entry.Accounts)
				}
				for _, id := range []int{acc1.ID, acc3.ID} {
					if err := entry.Accounts[id].Err; err != nil {
						t.Fatalf("attendee %s, account %d: %v", at.URI, id, err)
					}
				}
				if err := entry.Accounts[acc2.ID].Err; !errors.Is(err, internal.ErrRemoteUnavailable) {
					t.Fatalf("attendee %s, account %d: expected remote unavailable, got %v", at.URI, acc2.ID, err)
				}
			}

			alice := res[attendees[0].Key()]
			if n := len(alice.Accounts[acc1.ID].Times); n != 1 {
				t.Fatalf("expected one busy slot, got %d", n)
			}
			if n := f.tenant.OpenSessions(); n != 0 {
				t.Fatalf("%d sessions left open", n)
			}
		})
	}
}

func TestQuery_SingleAccount(t *testing.T) {
	f := newFixture(t, 4)
	acc := f.addAccount(t, 1, nil)

	res, err := f.aggregator.Query(context.Background(), session, attendees[:1], from, until, true)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	entry := res[attendees[0].Key()]
	if entry == nil || len(entry.Accounts) != 1 || entry.Accounts[acc.ID].Err != nil {
		t.Fatalf("unexpected result: %+v", entry)
	}
}

func TestQuery_Empty(t *testing.T) {
	f := newFixture(t, 4)

	res, err := f.aggregator.Query(context.Background(), session, attendees, from, until, false)
	if err != nil || len(res) != 0 {
		t.Fatalf("no accounts: %v, %v", res, err)
	}

	f.addAccount(t, 1, nil)
	res, err = f.aggregator.Query(context.Background(), session, nil, from, until, false)
	if err != nil || len(res) != 0 {
		t.Fatalf("no attendees: %v, %v", res, err)
	}
	if n := f.tenant.OpenSessions(); n != 0 {
		t.Fatalf("%d sessions left open", n)
	}
}

func TestQuery_CapabilityFilter(t *testing.T) {
	f := newFixture(t, 4)
	visible := f.addAccount(t, 1, nil)
	hidden := f.addAccount(t, 2, nil)
	broken := f.addAccount(t, 3, nil)

	f.tenant.AddShare(hidden.UserConfig.URL, "secret").FreeBusyVisible = false
	f.tenant.SetShareErr(broken.UserConfig.URL, internal.ErrRemoteUnavailable)

	res, err := f.aggregator.Query(context.Background(), session, attendees[:1], from, until, false)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	entry := res[attendees[0].Key()]
	if entry == nil || len(entry.Accounts) != 1 {
		t.Fatalf("expected only account %d, got %+v", visible.ID, entry)
	}
	if _, ok := entry.Accounts[visible.ID]; !ok {
		t.Fatalf("account %d missing", visible.ID)
	}
}

func TestQuery_CapabilityCached(t *testing.T) {
	f := newFixture(t, 0)
	acc := f.addAccount(t, 1, nil)

	if _, err := f.aggregator.Query(context.Background(), session, attendees[:1], from, until, false); err != nil {
		t.Fatalf("Query: %v", err)
	}
	f.tenant.AddShare(acc.UserConfig.URL, "secret").FreeBusyVisible = false

	res, err := f.aggregator.Query(context.Background(), session, attendees[:1], from, until, false)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if entry := res[attendees[0].Key()]; entry == nil || len(entry.Accounts) != 1 {
		t.Fatalf("expected cached capability, got %+v", entry)
	}
}

func TestQuery_Canceled(t *testing.T) {
	f := newFixture(t, 2)
	f.addAccount(t, 1, nil)
	f.addAccount(t, 2, nil)

	// The capability cache is warm, the cancellation hits the fan-out.
	if _, err := f.aggregator.Query(context.Background(), session, attendees, from, until, false); err != nil {
		t.Fatalf("Query: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.aggregator.Query(ctx, session, attendees, from, until, false)
	if err == nil {
		// Every account may have answered before the join noticed; their
		// entries then carry the cancellation.
		return
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestQuery_CapabilityCachedPerCredentials(t *testing.T) {
	f := newFixture(t, 0)
	acc := f.addAccount(t, 1, nil)
	wrong, err := f.accounts.CreateAccount(context.Background(), session.UserID, internal.ProviderID, internal.UserConfig{
		URL:      acc.UserConfig.URL,
		Password: "wrong",
	}, nil)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	res, err := f.aggregator.Query(context.Background(), session, attendees[:1], from, until, false)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	entry := res[attendees[0].Key()]
	if entry == nil || len(entry.Accounts) != 1 {
		t.Fatalf("expected only account %d, got %+v", acc.ID, entry)
	}
	if _, ok := entry.Accounts[wrong.ID]; ok {
		t.Fatalf("account %d with wrong password answered from the cache", wrong.ID)
	}
}

func TestQuery_Attendees(t *testing.T) {
	f := newFixture(t, 2)
	acc := f.addAccount(t, 1, nil)

	duplicates := []internal.Attendee{
		{CalendarUser: internal.CalendarUser{URI: "mailto:alice@remote.example"}},
		{CalendarUser: internal.CalendarUser{Email: "Alice@Remote.example"}},
		{CalendarUser: internal.CalendarUser{URI: "MAILTO:alice@remote.example"}},
	}
	res, err := f.aggregator.Query(context.Background(), session, duplicates, from, until, false)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("expected a single attendee, got %d", len(res))
	}
	entry := res[duplicates[0].Key()]
	if entry == nil || entry.Attendee.URI != duplicates[0].URI {
		t.Fatalf("expected the first form to be kept, got %+v", entry)
	}
	if n := len(entry.Accounts[acc.ID].Times); n != 1 {
		t.Fatalf("expected one busy slot, got %d", n)
	}

	empty := append([]internal.Attendee{{}}, attendees...)
	if _, err := f.aggregator.Query(context.Background(), session, empty, from, until, false); !errors.Is(err, internal.ErrInvalidEntity) {
		t.Fatalf("expected invalid entity, got %v", err)
	}
}
