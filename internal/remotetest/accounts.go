package remotetest

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/guilherme-santos/calfed/internal"
)

// Accounts is an in-memory internal.AccountService.
type Accounts struct {
	mu       sync.Mutex
	accounts map[int]internal.Account
	nextID   int
	clock    int64

	// UpdateErr, when set, fails every update.
	UpdateErr error
	Updates   int
}

func NewAccounts() *Accounts {
	return &Accounts{accounts: make(map[int]internal.Account)}
}

func (s *Accounts) tick() int64 {
	s.clock++
	return s.clock
}

func (s *Accounts) CreateAccount(_ context.Context, userID int, providerID string, cfg internal.UserConfig, internalCfg json.RawMessage) (*internal.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	cfg.InternalConfig = nil
	acc := internal.Account{
		ID:             s.nextID,
		UserID:         userID,
		ProviderID:     providerID,
		UserConfig:     cfg,
		InternalConfig: append(json.RawMessage(nil), internalCfg...),
		LastModified:   s.tick(),
	}
	s.accounts[acc.ID] = acc
	return &acc, nil
}

func (s *Accounts) UpdateAccount(_ context.Context, userID, accountID int, cfg internal.UserConfig, internalCfg json.RawMessage, clientTimestamp int64) (*internal.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.UpdateErr != nil {
		return nil, s.UpdateErr
	}
	acc, err := s.lookup(userID, accountID, clientTimestamp)
	if err != nil {
		return nil, err
	}
	cfg.InternalConfig = nil
	acc.UserConfig = cfg
	acc.InternalConfig = append(json.RawMessage(nil), internalCfg...)
	acc.LastModified = s.tick()
	s.accounts[accountID] = acc
	s.Updates++
	return &acc, nil
}

func (s *Accounts) DeleteAccount(_ context.Context, userID, accountID int, clientTimestamp int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(userID, accountID, clientTimestamp); err != nil {
		return err
	}
	delete(s.accounts, accountID)
	return nil
}

func (s *Accounts) lookup(userID, accountID int, clientTimestamp int64) (internal.Account, error) {
	acc, ok := s.accounts[accountID]
	if !ok || acc.UserID != userID {
		return internal.Account{}, internal.Errorf(internal.CodeAccountNotFound, "remotetest: account %d: %w", accountID, internal.ErrAccountNotFound)
	}
	if acc.LastModified != clientTimestamp {
		return internal.Account{}, internal.Errorf(internal.CodeConcurrentModification, "remotetest: account %d: %w", accountID, internal.ErrConcurrentModification)
	}
	return acc, nil
}

func (s *Accounts) Account(_ context.Context, userID, accountID int) (*internal.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[accountID]
	if !ok || acc.UserID != userID {
		return nil, internal.Errorf(internal.CodeAccountNotFound, "remotetest: account %d: %w", accountID, internal.ErrAccountNotFound)
	}
	return &acc, nil
}

func (s *Accounts) Accounts(_ context.Context, userID int, providerID string) ([]*internal.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []*internal.Account
	for _, acc := range s.accounts {
		if acc.UserID == userID && acc.ProviderID == providerID {
			acc := acc
			res = append(res, &acc)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].ID < res[j].ID
	})
	return res, nil
}

var _ internal.AccountService = (*Accounts)(nil)
