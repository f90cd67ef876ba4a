package federation

import (
	"context"
	"log/slog"

	"github.com/guilherme-santos/calfed/internal"
	"github.com/guilherme-santos/calfed/internal/accountconfig"
)

// accountState is the in-memory copy of an account and its parsed internal
// configuration. Writes go back through the account service, guarded by the
// last modified timestamp of the copy.
type accountState struct {
	accounts internal.AccountService
	account  internal.Account
	cfg      *accountconfig.InternalConfig
	logger   *slog.Logger
}

func newAccountState(accounts internal.AccountService, acc *internal.Account, logger *slog.Logger) (*accountState, error) {
	cfg, err := accountconfig.Parse(acc.InternalConfig)
	if err != nil {
		return nil, internal.Errorf(internal.CodeInvalidConfiguration, "account %s: %w", acc, err)
	}
	return &accountState{
		accounts: accounts,
		account:  *acc,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

func (s *accountState) save(ctx context.Context) error {
	raw, err := s.cfg.Marshal()
	if err != nil {
		return err
	}
	acc := s.account
	updated, err := s.accounts.UpdateAccount(ctx, acc.UserID, acc.ID, acc.UserConfig, raw, acc.LastModified)
	if err != nil {
		return err
	}
	s.account = *updated
	return nil
}

// saveAdvisory persists the configuration; failures are logged, never returned.
func (s *accountState) saveAdvisory(ctx context.Context) {
	if err := s.save(ctx); err != nil {
		s.logger.Warn("Unable to persist account configuration", internal.ErrAttr(err))
	}
}

func (s *accountState) delete(ctx context.Context) error {
	return s.accounts.DeleteAccount(ctx, s.account.UserID, s.account.ID, s.account.LastModified)
}

// isLastSubscribed reports whether id is the only subscribed folder left.
func (s *accountState) isLastSubscribed(id string) bool {
	rf, ok := s.cfg.RememberedFolder(id)
	return ok && rf.Type != "" && rf.IsSubscribed() && s.cfg.SubscribedCount() == 1
}

func (s *accountState) willBeRemoved(folderID string) error {
	return internal.Errorf(internal.CodeAccountWillBeRemoved,
		"unsubscribing folder %s removes account %s: %w", folderID, s.account.String(), internal.ErrAccountWillBeRemoved)
}

// updateLocal applies the settings kept in the account to a remembered folder
// and persists them. A failed write restores the previous settings.
func (s *accountState) updateLocal(ctx context.Context, id string, upd internal.FolderUpdate) error {
	prev, ok := s.cfg.RememberedFolder(id)
	if !ok {
		return folderNotFound(id)
	}
	var changed bool
	if upd.Subscribed != nil && s.cfg.SetSubscribed(id, *upd.Subscribed) {
		changed = true
	}
	if upd.Color != nil && s.cfg.SetColor(id, *upd.Color) {
		changed = true
	}
	if !changed {
		return nil
	}
	if err := s.save(ctx); err != nil {
		s.cfg.RestoreFolder(prev)
		return err
	}
	return nil
}

func folderNotFound(id string) error {
	return internal.Errorf(internal.CodeFolderNotFound, "folder %s: %w", id, internal.ErrFolderNotFound)
}
