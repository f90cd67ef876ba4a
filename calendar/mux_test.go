package calendar

import (
	"context"
	"errors"
	"testing"

	"github.com/guilherme-santos/calfed/internal"
	"github.com/guilherme-santos/calfed/internal/remotetest"
)

func TestMux(t *testing.T) {
	ctx := context.Background()
	tenant := remotetest.NewTenant()
	tenant.AddShare("https://Remote.example/share/1", "secret")

	mux := NewMux()
	mux.Register("REMOTE.example", tenant)

	s, err := mux.GuestSession(ctx, internal.LocalSession{UserID: 1}, "https://Remote.example/share/1", "secret")
	if err != nil {
		t.Fatalf("GuestSession: %v", err)
	}
	_ = s.Close()

	ok, err := mux.FreeBusyVisible(ctx, "https://Remote.example/share/1", "secret")
	if err != nil || !ok {
		t.Fatalf("FreeBusyVisible = %v, %v", ok, err)
	}

	tests := []string{
		"https://unknown.example/share/1",
		"not a link",
		"",
	}
	for _, url := range tests {
		if _, err := mux.GuestSession(ctx, internal.LocalSession{}, url, ""); !errors.Is(err, internal.ErrInvalidConfiguration) {
			t.Errorf("%q: expected invalid configuration, got %v", url, err)
		}
	}
}
