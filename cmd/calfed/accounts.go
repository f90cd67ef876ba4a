package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/guilherme-santos/calfed/internal"
)

type _addCommand struct {
	Name        string
	Description string
}

var AddCommand = _addCommand{
	Name:        "add",
	Description: "subscribe to a calendar shared by a remote tenant",
}

func (c _addCommand) Run(ctx context.Context, env *environment, args []string) error {
	var cfg internal.UserConfig

	fs := newFlagSet(c.Name)
	fs.StringVar(&cfg.URL, "url", "", "share link received from the remote tenant")
	fs.StringVar(&cfg.Password, "password", "", "share password")
	fs.StringVar(&cfg.Name, "name", "", "account name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	userCfg, internalCfg, err := env.provider.ConfigureAccount(ctx, env.session, cfg)
	if err != nil {
		return err
	}
	acc, err := env.storage.CreateAccount(ctx, env.session.UserID, env.provider.ID(), userCfg, internalCfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(env.out, "Account %d created for %s\n", acc.ID, acc.UserConfig.URL)
	return nil
}

type _accountsCommand struct {
	Name        string
	Description string
}

var AccountsCommand = _accountsCommand{
	Name:        "accounts",
	Description: "list the accounts of the user, without their passwords",
}

func (c _accountsCommand) Run(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet(c.Name)
	if err := fs.Parse(args); err != nil {
		return err
	}

	accounts, err := env.storage.Accounts(ctx, env.session.UserID, env.provider.ID())
	if err != nil {
		return err
	}
	for _, acc := range accounts {
		raw, err := json.Marshal(acc.UserConfig.Redacted())
		if err != nil {
			return err
		}
		fmt.Fprintf(env.out, "%d\t%s\n", acc.ID, raw)
	}
	return nil
}

type _reconfigureCommand struct {
	Name        string
	Description string
}

var ReconfigureCommand = _reconfigureCommand{
	Name:        "reconfigure",
	Description: "change the name or password of an account",
}

func (c _reconfigureCommand) Run(ctx context.Context, env *environment, args []string) error {
	var (
		accountID int
		cfg       internal.UserConfig
	)

	fs := newFlagSet(c.Name)
	fs.IntVar(&accountID, "account", 0, "account id")
	fs.StringVar(&cfg.Password, "password", "", "new share password, the current one is kept when empty")
	fs.StringVar(&cfg.Name, "name", "", "new account name, the current one is kept when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	acc, err := account(ctx, env, accountID)
	if err != nil {
		return err
	}
	cfg.URL = acc.UserConfig.URL
	if cfg.Name == "" {
		cfg.Name = acc.UserConfig.Name
	}

	userCfg, internalCfg, err := env.provider.ReconfigureAccount(ctx, env.session, acc, cfg)
	if err != nil {
		return err
	}
	acc, err = env.storage.UpdateAccount(ctx, env.session.UserID, acc.ID, userCfg, internalCfg, acc.LastModified)
	if err != nil {
		return err
	}

	fmt.Fprintf(env.out, "Account %d updated\n", acc.ID)
	return nil
}

type _removeCommand struct {
	Name        string
	Description string
}

var RemoveCommand = _removeCommand{
	Name:        "remove",
	Description: "delete an account",
}

func (c _removeCommand) Run(ctx context.Context, env *environment, args []string) error {
	var accountID int

	fs := newFlagSet(c.Name)
	fs.IntVar(&accountID, "account", 0, "account id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	acc, err := account(ctx, env, accountID)
	if err != nil {
		return err
	}
	if err := env.storage.DeleteAccount(ctx, env.session.UserID, acc.ID, acc.LastModified); err != nil {
		return err
	}

	fmt.Fprintf(env.out, "Account %d removed\n", acc.ID)
	return nil
}

func account(ctx context.Context, env *environment, id int) (*internal.Account, error) {
	if id <= 0 {
		return nil, errors.New("-account is required")
	}
	acc, err := env.storage.Account(ctx, env.session.UserID, id)
	if err != nil {
		return nil, err
	}
	if acc.ProviderID != env.provider.ID() {
		return nil, fmt.Errorf("account %d does not belong to %s", id, env.provider.ID())
	}
	return acc, nil
}
