// Command agileforge runs the project-authoring backend: a SQLite-backed
// document store, a file cache for crash recovery, and the web API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"agileforge/pkg/assist"
	"agileforge/pkg/auth"
	"agileforge/pkg/cache"
	"agileforge/pkg/config"
	"agileforge/pkg/logx"
	"agileforge/pkg/sprint"
	"agileforge/pkg/standup"
	"agileforge/pkg/state"
	"agileforge/pkg/store"
	"agileforge/pkg/version"
	"agileforge/pkg/webui"
)

func main() {
	var configPath string
	var showVersion bool
	var hashPassword bool
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.BoolVar(&hashPassword, "hash-password", false, "Prompt for a web password, print its hash, and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("agileforge %s (%s, %s)\n", version.Version, version.Commit, version.Date)
		return
	}

	if hashPassword {
		if err := runHashPassword(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if configPath == "" {
		configPath = os.Getenv("AGILEFORGE_CONFIG")
	}

	if err := run(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	logger := logx.NewLogger("main")

	cfg, err := config.Load(configPath)
	if err != nil {
		return logx.Wrap(err, "load config")
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return logx.Wrap(err, "open store")
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("Failed to close store: %v", closeErr)
		}
	}()

	localCache, err := cache.NewStore(cfg.CacheDir)
	if err != nil {
		return logx.Wrap(err, "open cache")
	}

	alerts := webui.NewAlerts()
	manager := state.New(state.Config{
		Store:       db,
		Cache:       localCache,
		Auth:        auth.NewStaticProvider(auth.User{ID: cfg.User.ID, Name: cfg.User.Name}),
		Alert:       alerts.Push,
		RetryPolicy: cfg.RetryPolicy(),
		MirrorDelay: cfg.MirrorDelay(),
	})
	defer manager.Close()

	suggester, err := assist.NewSuggester()
	if err != nil {
		return logx.Wrap(err, "load suggestion templates")
	}

	timer := standup.NewTimer(time.Duration(cfg.StandupMinutes) * time.Minute)
	server := webui.NewServer(cfg, manager, sprint.NewManager(manager), suggester, timer, alerts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting agileforge %s", version.Version)
	if err := server.Start(ctx); err != nil {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}

// runHashPassword reads a password without echo and prints the scrypt hash
// for web_password_hash.
func runHashPassword() error {
	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if len(password) == 0 {
		return fmt.Errorf("password cannot be empty")
	}

	hash, err := auth.HashPassword(string(password))
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
