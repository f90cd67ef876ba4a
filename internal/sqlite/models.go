package sqlite

import (
	"encoding/json"
	"fmt"

	"github.com/guilherme-santos/calfed/internal"
)

type Account struct {
	ID             int    `db:"id"`
	UserID         int    `db:"user_id"`
	ProviderID     string `db:"provider_id"`
	UserConfig     string `db:"user_config"`
	InternalConfig string `db:"internal_config"`
	LastModified   int64  `db:"last_modified"`
}

func (a Account) Convert() (*internal.Account, error) {
	acc := &internal.Account{
		ID:           a.ID,
		UserID:       a.UserID,
		ProviderID:   a.ProviderID,
		LastModified: a.LastModified,
	}
	if err := json.Unmarshal([]byte(a.UserConfig), &acc.UserConfig); err != nil {
		return nil, fmt.Errorf("sqlite: account %d: user config: %v", a.ID, err)
	}
	if a.InternalConfig != "" {
		acc.InternalConfig = json.RawMessage(a.InternalConfig)
	}
	return acc, nil
}

func encodeConfigs(cfg internal.UserConfig, internalCfg json.RawMessage) (string, string, error) {
	cfg.InternalConfig = nil
	userCfg, err := json.Marshal(cfg)
	if err != nil {
		return "", "", err
	}
	if len(internalCfg) == 0 {
		internalCfg = json.RawMessage("{}")
	}
	return string(userCfg), string(internalCfg), nil
}
