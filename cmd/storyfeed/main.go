// storyfeed is a command line client for the story service. It logs in,
// browses the paginated feed, uploads stories and lists the cached feed
// offline.
//
// Usage:
//
//	storyfeed <command> [flags]
//
// Configuration comes from STORYPAGER_* environment variables; the session
// token and the cached feed live in the STORYPAGER_DB_DSN database.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Alp4ka/storypager"
	"github.com/Alp4ka/storypager/store"
	"github.com/spf13/pflag"
	"gorm.io/gorm"
)

var errUsage = errors.New("usage")

// openDB is replaced in tests.
var openDB = store.Open

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"register", "create an account", runRegister},
	{"login", "log in and keep the session token", runLogin},
	{"logout", "forget the session token", runLogout},
	{"feed", "load pages of the story feed", runFeed},
	{"map", "list every story with a location", runMap},
	{"add", "upload a story", runAdd},
	{"widget", "list the cached feed without network access", runWidget},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage(out)
		return nil
	}

	cmd, ok := findCommand(args[0])
	if !ok {
		return fmt.Errorf("unknown command '%s': %w", args[0], errUsage)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer a.close()

	if err = cmd.run(ctx, a, args[1:]); errors.Is(err, pflag.ErrHelp) {
		return nil
	}

	return err
}

func findCommand(name string) (command, bool) {
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd, true
		}
	}

	return command{}, false
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage:\n  storyfeed <command> [flags]\n\nCommands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-9s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintf(w, "\nRun 'storyfeed <command> --help' for the flags of a command.\n")
}

// app holds what every command needs.
type app struct {
	cfg    Config
	logger *slog.Logger
	out    io.Writer
	db     *gorm.DB
	client *storypager.Client
	feed   *store.FeedCache
}

func newApp(ctx context.Context, cfg Config, out io.Writer) (*app, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	db, err := openDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}

	client, err := newClient(ctx, cfg, db, logger)
	if err != nil {
		closeDB(db)
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		out:    out,
		db:     db,
		client: client,
		feed:   store.NewFeedCache(db),
	}, nil
}

// newClient migrates db and builds a client whose session is restored from
// it.
func newClient(ctx context.Context, cfg Config, db *gorm.DB, logger *slog.Logger) (*storypager.Client, error) {
	if err := store.Migrate(ctx, db); err != nil {
		return nil, err
	}

	tokens := storypager.NewTokenStore(store.NewSessionRepo(db).WithProfile(cfg.Profile))
	if err := tokens.Restore(ctx); err != nil {
		return nil, err
	}

	client, err := storypager.NewClient(cfg.BaseURL, tokens)
	if err != nil {
		return nil, err
	}

	return client.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}).WithLogger(logger), nil
}

func (a *app) close() {
	closeDB(a.db)
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// newFlagSet returns a flag set reporting errors instead of exiting.
func newFlagSet(name string, out io.Writer) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("storyfeed "+name, pflag.ContinueOnError)
	flagSet.SetOutput(out)

	return flagSet
}

// parseFlags parses args and rejects positional arguments. --help prints the
// defaults and returns pflag.ErrHelp.
func parseFlags(flagSet *pflag.FlagSet, args []string) error {
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	return nil
}
