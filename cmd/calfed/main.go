package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/guilherme-santos/calfed/internal/config"
)

type command interface {
	Run(ctx context.Context, env *environment, args []string) error
}

var commands = map[string]command{
	AccountsCommand.Name:     AccountsCommand,
	AddCommand.Name:          AddCommand,
	ReconfigureCommand.Name:  ReconfigureCommand,
	RemoveCommand.Name:       RemoveCommand,
	FoldersCommand.Name:      FoldersCommand,
	UpdateFolderCommand.Name: UpdateFolderCommand,
	EventsCommand.Name:       EventsCommand,
	ImportCommand.Name:       ImportCommand,
	ExportCommand.Name:       ExportCommand,
	FreeBusyCommand.Name:     FreeBusyCommand,
	GoogleLoginCommand.Name:  GoogleLoginCommand,
}

var descriptions = []struct{ Name, Description string }{
	{AccountsCommand.Name, AccountsCommand.Description},
	{AddCommand.Name, AddCommand.Description},
	{ReconfigureCommand.Name, ReconfigureCommand.Description},
	{RemoveCommand.Name, RemoveCommand.Description},
	{FoldersCommand.Name, FoldersCommand.Description},
	{UpdateFolderCommand.Name, UpdateFolderCommand.Description},
	{EventsCommand.Name, EventsCommand.Description},
	{ImportCommand.Name, ImportCommand.Description},
	{ExportCommand.Name, ExportCommand.Description},
	{FreeBusyCommand.Name, FreeBusyCommand.Description},
	{GoogleLoginCommand.Name, GoogleLoginCommand.Description},
}

func main() {
	var (
		demo    bool
		verbose bool
		userID  int
	)
	flag.BoolVar(&demo, "demo", false, "serve share links of demo.calfed.test from an in-memory tenant")
	flag.BoolVar(&verbose, "v", false, "log debug messages")
	flag.IntVar(&userID, "user", 1, "local user id")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", flag.Arg(0))
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Unable to load config:", err)
		os.Exit(1)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	env, err := newEnvironment(cfg, userID, demo)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Unable to start:", err)
		os.Exit(1)
	}
	defer env.Close()

	if err := cmd.Run(ctx, env, flag.Args()[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "%s failed: %v\n", flag.Arg(0), err)
		}
		env.Close()
		os.Exit(1)
	}
}

func usage() {
	w := flag.CommandLine.Output()
	fmt.Fprintf(w, "Usage of %s [options] <command> [command options]:\n", os.Args[0])
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, d := range descriptions {
		fmt.Fprintf(w, "  %-14s %s\n", d.Name, d.Description)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	flag.PrintDefaults()
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		w := fs.Output()
		fmt.Fprintf(w, "Usage of %s %s:\n", os.Args[0], fs.Name())
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Options:\n")
		fs.PrintDefaults()
	}
	return fs
}
