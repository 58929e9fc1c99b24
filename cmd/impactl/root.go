package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/impa/website/internal/config"
	"github.com/impa/website/internal/content"
	"github.com/impa/website/internal/kv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	dataDir string
	backend string
	dsn     string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:           "impactl [command] [flags]",
	Short:         "Manage the IMPA site news and projects",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05.000",
			NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "Data directory")
	rootCmd.PersistentFlags().StringVar(&backend, "storage", "", "Storage backend, overrides impa.yaml")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Storage DSN, overrides impa.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output")
}

// loadConfig reads the server configuration the same way the server does.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(dataDir)
	if err != nil {
		return nil, err
	}
	env, err := config.LoadDotEnv(dataDir)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(env); err != nil {
		return nil, err
	}
	if backend != "" {
		cfg.Storage.Backend = backend
	}
	if dsn != "" {
		cfg.Storage.DSN = dsn
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openStore opens the configured storage. The caller must call the returned
// close function. A readOnly store never writes, so inspecting data written
// by another version leaves it intact.
func openStore(ctx context.Context, readOnly bool) (*content.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Storage.Backend == "memory" {
		return nil, nil, errors.New("the memory backend is private to the server process")
	}
	kvStore, err := kv.Open(ctx, cfg.Storage.Backend, cfg.StorageDSN(dataDir))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}
	var opts []content.Option
	if readOnly {
		opts = append(opts, content.WithReadOnly())
	}
	store, err := content.New(ctx, kvStore, opts...)
	if err != nil {
		_ = kvStore.Close()
		return nil, nil, err
	}
	return store, func() { _ = kvStore.Close() }, nil
}
