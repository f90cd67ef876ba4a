package calendar

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/guilherme-santos/calfed/internal"
)

// Tenant is a remote tenant reachable through share links.
type Tenant interface {
	internal.ShareService
	internal.CapabilityChecker
}

// Mux routes share links to the tenant registered for their host.
type Mux struct {
	mu      sync.RWMutex
	tenants map[string]Tenant
}

func NewMux() *Mux {
	return &Mux{
		tenants: make(map[string]Tenant),
	}
}

func (m *Mux) Get(shareURL string) (Tenant, error) {
	u, err := url.Parse(strings.TrimSpace(shareURL))
	if err != nil || u.Host == "" {
		return nil, internal.Errorf(internal.CodeInvalidConfiguration, "share link %q is not valid: %w", shareURL, internal.ErrInvalidConfiguration)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	tenant, ok := m.tenants[strings.ToLower(u.Host)]
	if !ok {
		return nil, internal.Errorf(internal.CodeInvalidConfiguration, "no calendar is registered for %q: %w", u.Host, internal.ErrInvalidConfiguration)
	}
	return tenant, nil
}

func (m *Mux) Register(host string, tenant Tenant) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tenants[strings.ToLower(host)] = tenant
}

func (m *Mux) GuestSession(ctx context.Context, session internal.LocalSession, shareURL, password string) (internal.RemoteSession, error) {
	tenant, err := m.Get(shareURL)
	if err != nil {
		return nil, err
	}
	return tenant.GuestSession(ctx, session, shareURL, password)
}

func (m *Mux) FreeBusyVisible(ctx context.Context, shareURL, password string) (bool, error) {
	tenant, err := m.Get(shareURL)
	if err != nil {
		return false, err
	}
	return tenant.FreeBusyVisible(ctx, shareURL, password)
}

var _ Tenant = (*Mux)(nil)
