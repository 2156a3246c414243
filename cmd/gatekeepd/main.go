package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/hnrobert/gatekeep/internal/auth"
	"github.com/hnrobert/gatekeep/internal/bootstrap"
	"github.com/hnrobert/gatekeep/internal/config"
	"github.com/hnrobert/gatekeep/internal/credstore"
	"github.com/hnrobert/gatekeep/internal/datafs"
	"github.com/hnrobert/gatekeep/internal/lockout"
	"github.com/hnrobert/gatekeep/internal/logger"
	"github.com/hnrobert/gatekeep/internal/server"
	"github.com/hnrobert/gatekeep/internal/session"
)

var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv(config.EnvConfig), "path to a YAML config file")
	listen := flag.String("listen", "", "listen address, overrides the config file")
	flag.Parse()

	if err := run(*configPath, *listen); err != nil {
		logger.Error("%v", err)
		logger.Close()
		os.Exit(1)
	}
}

func run(configPath, listen string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Listen = listen
	}

	if err := datafs.EnsureDir(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := logger.Init(cfg.LogPath()); err != nil {
		logger.Warn("File logging disabled: %v", err)
	}
	defer logger.Close()

	store := credstore.New(cfg.UsersPath(), credstore.WithStrict(cfg.Auth.StrictStore))
	hasher := auth.NewHasher()
	welcome := bootstrap.New(cfg.DataDir)

	// Loads the store; a corrupt credential file stops startup here.
	if _, err := store.EnsureBootstrapUser(hasher, welcome); err != nil {
		return err
	}
	if welcome.Pending() {
		logger.Warn("First-time credentials are waiting in %s", welcome.Path())
	}

	sessions := session.NewManager(store, hasher, lockout.New(cfg.Lockout()), cfg.Session())
	srv := server.New(server.Config{ListenAddr: cfg.Listen, Version: version}, sessions, welcome)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error { return sessions.RunSweeper(ctx, cfg.Auth.SweepInterval) })
	g.Go(func() error { return reloadOnHangup(ctx, store) })
	return g.Wait()
}

// reloadOnHangup re-reads users.txt on SIGHUP so edits made with
// gatekeepctl take effect without dropping sessions.
func reloadOnHangup(ctx context.Context, store *credstore.Store) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			if err := store.Load(); err != nil {
				logger.Error("Reload of %s failed, keeping previous users: %v", store.Path(), err)
			}
		}
	}
}
