package federation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/guilherme-santos/calfed/internal"
	"github.com/guilherme-santos/calfed/internal/accountconfig"
)

func TestConnect_ErrorMemo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t0 := f.now

	f.tenant.SetShareErr(shareURL, internal.Errorf(internal.CodeRemoteUnavailable, "down: %w", internal.ErrRemoteUnavailable))
	if _, err := f.provider.Connect(ctx, f.session, f.account(t), ConnectOptions{}); !errors.Is(err, internal.ErrRemoteUnavailable) {
		t.Fatalf("expected remote unavailable, got %v", err)
	}
	cfg := f.internalConfig(t)
	if cfg.LastError == nil || cfg.LastError.Error.Code != internal.CodeRemoteUnavailable {
		t.Fatalf("error not memoized: %+v", cfg.LastError)
	}

	// The remote side recovers, the memo still answers.
	f.tenant.SetShareErr(shareURL, nil)

	tests := []struct {
		name    string
		elapsed time.Duration
		force   bool
	}{
		{"recent", 30 * time.Second, false},
		{"recent forced", 30 * time.Second, true},
		{"degraded", 70 * time.Second, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.now = t0.Add(tt.elapsed)
			_, err := f.provider.Connect(ctx, f.session, f.account(t), ConnectOptions{ForceRetry: tt.force})
			if !errors.Is(err, internal.ErrRemoteUnavailable) {
				t.Fatalf("expected memoized error, got %v", err)
			}
		})
	}
	if n := f.tenant.OpenSessions(); n != 0 {
		t.Fatalf("remote contacted while degraded, %d sessions open", n)
	}

	f.now = t0.Add(70 * time.Second)
	a := f.connect(t, ConnectOptions{ForceRetry: true})
	if a == nil {
		t.Fatalf("expected access")
	}
	if cfg := f.internalConfig(t); cfg.LastError != nil {
		t.Fatalf("memo not cleared: %+v", cfg.LastError)
	}
}

func TestConnect_RetryAfterElapsed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.tenant.SetShareErr(shareURL, internal.ErrRemoteUnavailable)
	if _, err := f.provider.Connect(ctx, f.session, f.account(t), ConnectOptions{}); err == nil {
		t.Fatalf("expected error")
	}
	f.tenant.SetShareErr(shareURL, nil)

	f.now = f.now.Add(accountconfig.DefaultRetryAfter)
	f.connect(t, ConnectOptions{})
}

func TestConnect_FailedRetryRememoized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t0 := f.now

	f.tenant.SetShareErr(shareURL, internal.ErrRemoteUnavailable)
	if _, err := f.provider.Connect(ctx, f.session, f.account(t), ConnectOptions{}); err == nil {
		t.Fatalf("expected error")
	}
	f.now = t0.Add(2 * time.Minute)
	if _, err := f.provider.Connect(ctx, f.session, f.account(t), ConnectOptions{ForceRetry: true}); err == nil {
		t.Fatalf("expected error")
	}
	cfg := f.internalConfig(t)
	if cfg.LastError == nil || !cfg.LastError.At().Equal(f.now) {
		t.Fatalf("expected memo of the new attempt, got %+v", cfg.LastError)
	}
}

func TestConnect_UnknownShare(t *testing.T) {
	ctx := context.Background()

	t.Run("removed", func(t *testing.T) {
		f := newFixture(t)
		f.tenant.RemoveShare(shareURL)

		_, err := f.provider.Connect(ctx, f.session, f.account(t), ConnectOptions{})
		if !errors.Is(err, internal.ErrUnknownShare) {
			t.Fatalf("expected unknown share, got %v", err)
		}
		if _, err := f.accounts.Account(ctx, f.session.UserID, f.accID); !errors.Is(err, internal.ErrAccountNotFound) {
			t.Fatalf("expected account removal, got %v", err)
		}
	})

	t.Run("kept", func(t *testing.T) {
		f := newFixture(t)
		f.provider.cfg.AutoRemoveUnknownShares = false
		f.tenant.RemoveShare(shareURL)

		if _, err := f.provider.Connect(ctx, f.session, f.account(t), ConnectOptions{}); !errors.Is(err, internal.ErrUnknownShare) {
			t.Fatalf("expected unknown share, got %v", err)
		}
		if cfg := f.internalConfig(t); !errors.Is(cfg.Err(), internal.ErrUnknownShare) {
			t.Fatalf("expected memoized unknown share, got %v", cfg.Err())
		}
	})
}

func TestConnect_CanceledNotMemoized(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.provider.Connect(ctx, f.session, f.account(t), ConnectOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if cfg := f.internalConfig(t); cfg.LastError != nil {
		t.Fatalf("cancellation memoized: %+v", cfg.LastError)
	}
}

func TestConnectFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.connect(t, ConnectOptions{})
	if _, err := a.VisibleFolders(ctx, internal.FolderTypeShared); err != nil {
		t.Fatalf("VisibleFolders: %v", err)
	}
	no := false
	if _, err := a.UpdateFolder(ctx, "sub", internal.FolderUpdate{Subscribed: &no}, 0); err != nil {
		t.Fatalf("UpdateFolder: %v", err)
	}

	unavailable := internal.Errorf(internal.CodeRemoteUnavailable, "down: %w", internal.ErrRemoteUnavailable)
	fb, err := f.provider.ConnectFallback(f.session, f.account(t), unavailable)
	if err != nil {
		t.Fatalf("ConnectFallback: %v", err)
	}
	folders, err := fb.VisibleFolders(ctx, internal.FolderTypeShared)
	if err != nil {
		t.Fatalf("VisibleFolders: %v", err)
	}
	if len(folders) != 2 {
		t.Fatalf("expected remembered folders, got %+v", folders)
	}
	for _, folder := range folders {
		if !errors.Is(folder.Err, internal.ErrRemoteUnavailable) {
			t.Fatalf("folder %s without error: %v", folder.ID, folder.Err)
		}
		if len(folder.Permissions) != 1 || folder.Permissions[0].Entity != f.session.UserID {
			t.Fatalf("unexpected permissions: %+v", folder.Permissions)
		}
	}

	res, err := fb.EventsInFolder(ctx, "team", time.Time{}, time.Time{})
	if err != nil || !errors.Is(res.Err, internal.ErrRemoteUnavailable) {
		t.Fatalf("EventsInFolder = %+v, %v", res, err)
	}

	name := "x"
	if _, err := fb.UpdateFolder(ctx, "team", internal.FolderUpdate{Name: &name}, 0); !errors.Is(err, internal.ErrRemoteUnavailable) {
		t.Fatalf("expected remote unavailable, got %v", err)
	}
	blue := "blue"
	if id, err := fb.UpdateFolder(ctx, "team", internal.FolderUpdate{Color: &blue}, 0); err != nil || id != "team" {
		t.Fatalf("UpdateFolder = %q, %v", id, err)
	}
	if got := f.internalConfig(t).Color("team"); got != "blue" {
		t.Fatalf("color = %q", got)
	}

	id, err := fb.UpdateFolder(ctx, "team", internal.FolderUpdate{Subscribed: &no}, 0)
	if err != nil || id != "" {
		t.Fatalf("UpdateFolder = %q, %v", id, err)
	}
	warnings := fb.Warnings()
	if len(warnings) != 2 || !errors.Is(warnings[1], internal.ErrAccountWillBeRemoved) {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if s := f.internalConfig(t).Subscribed("team"); s != nil && !*s {
		t.Fatalf("last subscribed folder was unsubscribed")
	}
	if _, err := f.accounts.Account(ctx, f.session.UserID, f.accID); err != nil {
		t.Fatalf("account removed: %v", err)
	}
}

func TestConfigureAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg, raw, err := f.provider.ConfigureAccount(ctx, f.session, internal.UserConfig{
		URL:            " " + shareURL + " ",
		Password:       sharePassword,
		InternalConfig: json.RawMessage(`{"lastError":{"error":{"code":"internal"},"timestamp":1}}`),
	})
	if err != nil {
		t.Fatalf("ConfigureAccount: %v", err)
	}
	if cfg.URL != shareURL || cfg.InternalConfig != nil {
		t.Fatalf("unexpected user config: %+v", cfg)
	}
	intCfg, err := accountconfig.Parse(raw)
	if err != nil || intCfg.LastError != nil {
		t.Fatalf("unexpected internal config %s: %v", raw, err)
	}

	if _, _, err := f.provider.ConfigureAccount(ctx, f.session, internal.UserConfig{Password: "x"}); !errors.Is(err, internal.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
	if _, _, err := f.provider.ConfigureAccount(ctx, f.session, internal.UserConfig{URL: shareURL, Password: "wrong"}); !errors.Is(err, internal.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
	if _, _, err := f.provider.ConfigureAccount(ctx, f.session, internal.UserConfig{URL: "https://remote.example/share/none"}); !errors.Is(err, internal.ErrUnknownShare) {
		t.Fatalf("expected unknown share, got %v", err)
	}
}

func TestReconfigureAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.tenant.SetShareErr(shareURL, internal.ErrRemoteUnavailable)
	if _, err := f.provider.Connect(ctx, f.session, f.account(t), ConnectOptions{}); err == nil {
		t.Fatalf("expected error")
	}
	f.tenant.SetShareErr(shareURL, nil)

	if _, _, err := f.provider.ReconfigureAccount(ctx, f.session, f.account(t), internal.UserConfig{URL: "https://other.example/share"}); !errors.Is(err, internal.ErrInvalidConfiguration) {
		t.Fatalf("expected immutable share link, got %v", err)
	}
	if _, _, err := f.provider.ReconfigureAccount(ctx, f.session, f.account(t), internal.UserConfig{}); !errors.Is(err, internal.ErrInvalidConfiguration) {
		t.Fatalf("expected missing share link, got %v", err)
	}

	// Same password, no login: the memo stays.
	cfg, raw, err := f.provider.ReconfigureAccount(ctx, f.session, f.account(t), internal.UserConfig{URL: shareURL, Name: "Renamed"})
	if err != nil {
		t.Fatalf("ReconfigureAccount: %v", err)
	}
	if cfg.Password != sharePassword || cfg.Name != "Renamed" {
		t.Fatalf("unexpected user config: %+v", cfg.Redacted())
	}
	if intCfg, _ := accountconfig.Parse(raw); intCfg.LastError == nil {
		t.Fatalf("memo dropped without login")
	}

	if _, _, err := f.provider.ReconfigureAccount(ctx, f.session, f.account(t), internal.UserConfig{URL: shareURL, Password: "wrong"}); !errors.Is(err, internal.ErrInvalidConfiguration) {
		t.Fatalf("expected wrong password, got %v", err)
	}

	// A changed password is checked and clears the memo.
	f.tenant.AddShare(shareURL, "rotated")
	cfg, raw, err = f.provider.ReconfigureAccount(ctx, f.session, f.account(t), internal.UserConfig{
		URL:            shareURL,
		Password:       "rotated",
		InternalConfig: json.RawMessage(`{"folders":{"evil":{"id":"evil"}}}`),
	})
	if err != nil {
		t.Fatalf("ReconfigureAccount: %v", err)
	}
	if cfg.InternalConfig != nil {
		t.Fatalf("internal config slipped through the user config")
	}
	intCfg, err := accountconfig.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if intCfg.LastError != nil {
		t.Fatalf("memo not cleared: %+v", intCfg.LastError)
	}
	if _, ok := intCfg.RememberedFolder("evil"); ok {
		t.Fatalf("slipstreamed internal config applied")
	}
	if f.tenant.OpenSessions() != 0 {
		t.Fatalf("verification session left open")
	}
}

func TestProvider(t *testing.T) {
	p := NewProvider(nil, nil, Config{RetryAfter: time.Second}, nil)
	if p.ID() != internal.ProviderID {
		t.Fatalf("id = %q", p.ID())
	}
	if p.cfg.RetryAfter != accountconfig.MinRetryAfter {
		t.Fatalf("retry after not clamped: %s", p.cfg.RetryAfter)
	}
	if s := p.SecretFields(); len(s) != 1 || s[0] != "password" {
		t.Fatalf("secret fields = %v", s)
	}
}
