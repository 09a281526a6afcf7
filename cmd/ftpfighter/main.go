package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/filefighter/ftpfighter/internal/logger"
	"github.com/filefighter/ftpfighter/pkg/backend"
	"github.com/filefighter/ftpfighter/pkg/config"
	"github.com/filefighter/ftpfighter/pkg/server"
	"github.com/spf13/pflag"
	"github.com/subosito/gotenv"
)

const usage = `FTPFighter - FTP gateway for FileFighter

Usage:
  ftpfighter [start] [flags]   Start the server (default)
  ftpfighter init [--force]    Write the default configuration file
  ftpfighter journal [-n N]    Print recent journal entries (badger or s3)

Flags:
`

func main() {
	// .env never overrides variables already set in the environment.
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}

	args := os.Args[1:]
	command := "start"
	if len(args) > 0 && (args[0] == "start" || args[0] == "init" || args[0] == "journal") {
		command = args[0]
		args = args[1:]
	}

	var err error
	switch command {
	case "init":
		err = runInit(args)
	case "journal":
		err = runJournal(args)
	default:
		err = runStart(args)
	}

	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runInit(args []string) error {
	fs := pflag.NewFlagSet("init", pflag.ContinueOnError)
	force := fs.Bool("force", false, "overwrite an existing configuration file")
	path := fs.String("config", "", "where to write the configuration (default: "+config.GetDefaultConfigPath()+")")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *path == "" {
		written, err := config.InitConfig(*force)
		if err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s\n", written)
		return nil
	}

	if err := config.InitConfigToPath(*path, *force); err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", *path)
	return nil
}

// runJournal prints the most recent journal entries as JSON lines, newest
// first. A badger journal is locked while the server runs.
func runJournal(args []string) error {
	fs := pflag.NewFlagSet("journal", pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "path to the configuration file")
	n := fs.IntP("entries", "n", 50, "number of entries to print")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *n <= 0 {
		return fmt.Errorf("--entries must be positive, got %d", *n)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	switch cfg.Journal.Type {
	case "none":
		return errors.New("journal is disabled (journal.type is none)")
	case "memory":
		return fmt.Errorf("the memory journal lives in the running server: GET http://localhost:%d/journal?n=%d",
			cfg.Server.Metrics.Port, *n)
	}

	ctx := context.Background()
	store, err := config.CreateJournal(ctx, &cfg.Journal)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	entries, err := store.Recent(ctx, *n)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func runStart(args []string) error {
	fs := pflag.NewFlagSet("start", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	configPath := fs.StringP("config", "c", "", "path to the configuration file")
	config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadWithFlags(*configPath, fs)
	if err != nil {
		return err
	}

	if err := logger.Configure(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("FTPFighter starting (log level %s)", cfg.Logging.Level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := config.CreateJournal(ctx, &cfg.Journal)
	if err != nil {
		return err
	}

	metricsResult := config.InitializeMetrics(cfg, store)

	client, err := config.CreateRemoteClient(&cfg.Remote, metricsResult.RemoteMetrics)
	if err != nil {
		_ = store.Close()
		return err
	}

	srv := server.New(server.Config{
		Factory:         backend.NewFactory(client),
		Authenticator:   backend.NewSessionAuthenticator(client),
		Journal:         store,
		MetricsServer:   metricsResult.Server,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	adapters, err := config.CreateAdapters(cfg, metricsResult.FTPMetrics, store)
	if err != nil {
		_ = store.Close()
		return err
	}
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			_ = store.Close()
			return err
		}
	}

	logger.Info("Server is running. Press Ctrl+C to stop.")

	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error: %v", err)
		return err
	}

	logger.Info("Server stopped gracefully")
	return nil
}
