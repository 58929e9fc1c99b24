// Package main is the entry point for the IMPA site content server.
//
// impa serves the bilingual news and projects of the site over a JSON API.
// Configuration is read from CLI flags, the environment, a .env file and
// impa.yaml in the data directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/impa/website/internal/auth"
	"github.com/impa/website/internal/config"
	"github.com/impa/website/internal/contact"
	"github.com/impa/website/internal/content"
	"github.com/impa/website/internal/email"
	"github.com/impa/website/internal/events"
	"github.com/impa/website/internal/history"
	"github.com/impa/website/internal/ipgeo"
	"github.com/impa/website/internal/kv"
	"github.com/impa/website/internal/mcp"
	"github.com/impa/website/internal/push"
	"github.com/impa/website/internal/server"
	"github.com/impa/website/internal/server/handlers"
	"github.com/impa/website/internal/server/ratelimit"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "impa: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	httpAddr := flag.String("http", "", "Address to listen on (default from impa.yaml, :3001)")
	dataDir := flag.String("data-dir", "./data", "Data directory")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	backend := flag.String("storage", "", "Storage backend (memory, file, sqlite, postgres, mongo)")
	dsn := flag.String("dsn", "", "Storage DSN: a directory, a database DSN or a mongo URI")
	geoDB := flag.String("geo-db", "", "Path to MaxMind MMDB file for IP geolocation (optional)")
	watch := flag.Bool("watch", false, "Shut down when the executable is replaced")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	logger, _ := newLogger(ll, "")
	slog.SetDefault(logger)

	if err := os.MkdirAll(*dataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	cfg, err := config.Load(*dataDir)
	if err != nil {
		return err
	}
	env, err := config.LoadDotEnv(*dataDir)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(env); err != nil {
		return err
	}

	// Flags win over every other source.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http":
			cfg.HTTP = *httpAddr
		case "log-level":
			cfg.LogLevel = *logLevel
		case "storage":
			cfg.Storage.Backend = *backend
		case "dsn":
			cfg.Storage.DSN = *dsn
		case "geo-db":
			cfg.GeoDB = *geoDB
		}
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch cfg.LogLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "", "info":
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", cfg.LogLevel)
	}
	if cfg.LogFile != "" {
		path := cfg.LogFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(*dataDir, path)
		}
		logger, closer := newLogger(ll, path)
		defer func() { _ = closer.Close() }()
		slog.SetDefault(logger)
	}

	// Normalize addr: ":3001" becomes "localhost:3001" for display.
	addr := cfg.HTTP
	displayAddr := addr
	if strings.HasPrefix(addr, ":") {
		displayAddr = "localhost" + addr
	}

	dbDir := filepath.Join(*dataDir, "db")
	if err := os.MkdirAll(dbDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create db directory: %w", err)
	}

	kvStore, err := kv.Open(ctx, cfg.Storage.Backend, cfg.StorageDSN(*dataDir))
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}
	defer func() { _ = kvStore.Close() }()

	notifier := events.New()
	store, err := content.New(ctx, kvStore, content.WithNotifier(notifier))
	if err != nil {
		return fmt.Errorf("failed to initialize content store: %w", err)
	}
	info := store.Info()
	slog.InfoContext(ctx, "Content loaded", "storage", info.StorageType, "news", info.NewsCount, "projects", info.ProjectsCount)

	var recorder *history.Recorder
	if f, ok := kvStore.(*kv.File); ok {
		// Pick up edits made to the content files by other processes.
		if err := f.Watch(ctx, func(key string) {
			slog.InfoContext(ctx, "Storage changed on disk, reloading", "key", key)
			if err := store.Refresh(ctx); err != nil {
				slog.ErrorContext(ctx, "Failed to reload storage", "err", err)
			}
		}); err != nil {
			return fmt.Errorf("failed to watch storage directory: %w", err)
		}
		if cfg.History {
			if recorder, err = history.Open(f.Dir(), "IMPA website", "website@impa.local"); err != nil {
				return err
			}
			defer recorder.Attach(notifier)()
			slog.InfoContext(ctx, "Content history enabled", "dir", f.Dir())
		}
	} else if cfg.History {
		slog.WarnContext(ctx, "Content history requires the file storage backend", "storage", cfg.Storage.Backend)
	}

	secret, err := cfg.Secret()
	if err != nil {
		return err
	}
	authService, err := auth.NewService(auth.Options{
		Username:     cfg.Admin.Username,
		PasswordHash: cfg.Admin.PasswordHash,
		Password:     cfg.Admin.Password,
		Secret:       secret,
		RevokedPath:  filepath.Join(dbDir, "revoked_tokens.jsonl"),
		AuditPath:    filepath.Join(dbDir, "logins.jsonl"),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize auth service: %w", err)
	}
	if cfg.Admin.PasswordHash == "" {
		slog.WarnContext(ctx, "Admin password is stored in clear text; set admin.password_hash")
	}

	var sender email.Sender
	contactTo := cfg.ContactTo
	if cfg.SMTP.Enabled() {
		sender = &email.SMTP{Config: cfg.SMTP}
		if contactTo == "" {
			contactTo = cfg.SMTP.From
		}
		slog.InfoContext(ctx, "SMTP configured", "host", cfg.SMTP.Host, "port", cfg.SMTP.Port)
	}
	contactService, err := contact.NewService(filepath.Join(dbDir, "contact.jsonl"), sender, contactTo)
	if err != nil {
		return fmt.Errorf("failed to initialize contact service: %w", err)
	}

	var pushService *push.Service
	if cfg.Push.Enabled() {
		pushService, err = push.NewService(filepath.Join(dbDir, "push_subscriptions.jsonl"), push.Keys{
			Public:     cfg.Push.VAPIDPublicKey,
			Private:    cfg.Push.VAPIDPrivateKey,
			Subscriber: cfg.Push.Subscriber,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize push service: %w", err)
		}
		detach := pushService.Attach(notifier)
		defer func() {
			detach()
			pushService.Wait()
		}()
		slog.InfoContext(ctx, "Web push enabled", "subscriptions", pushService.Count())
	}

	var geoChecker *ipgeo.Checker
	if cfg.GeoDB != "" {
		geoChecker, err = ipgeo.Open(cfg.GeoDB)
		if err != nil {
			return fmt.Errorf("failed to open geo database: %w", err)
		}
		defer func() { _ = geoChecker.Close() }()
		slog.InfoContext(ctx, "IP geolocation enabled", "db", cfg.GeoDB)
	}

	tiers := ratelimit.NewTiers(cfg.RateLimits.AuthPerMin, cfg.RateLimits.WritePerMin)
	defer tiers.Close()

	hub := server.NewHub(cfg.CORSOrigin)
	defer hub.Close()
	defer hub.Attach(notifier, store)()

	buildVersion, _, _, _ := getBuildInfo()
	var mcpHandler http.Handler
	if cfg.MCP {
		mcpHandler = mcp.Handler(mcp.NewServer(store, buildVersion))
		slog.InfoContext(ctx, "MCP server enabled", "path", "/mcp")
	}

	if *watch {
		if err := watchExecutable(ctx, stop); err != nil {
			return fmt.Errorf("failed to watch executable: %w", err)
		}
	}

	svc := &handlers.Services{
		Content: store,
		Auth:    authService,
		Contact: contactService,
		Push:    pushService,
		History: recorder,
	}
	httpServer := &http.Server{
		Addr: addr,
		Handler: server.NewRouter(&server.Options{
			Services:     svc,
			Config:       &handlers.Config{Frontend: cfg.CORSOrigin, VAPIDPublicKey: cfg.Push.VAPIDPublicKey},
			CORSOrigin:   cfg.CORSOrigin,
			Geo:          geoChecker,
			Tiers:        tiers,
			MaxBodyBytes: cfg.MaxRequestBodyBytes,
			Hub:          hub,
			MCP:          mcpHandler,
		}),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", displayAddr, "frontend", cfg.CORSOrigin, "version", buildVersion)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("impa %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}

// watchExecutable watches the current executable for modifications and calls
// stop to trigger graceful shutdown when detected.
func watchExecutable(ctx context.Context, stop context.CancelFunc) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(exe); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
					slog.InfoContext(ctx, "Executable modified, initiating shutdown")
					stop()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching executable", "err", err)
			}
		}
	}()
	return nil
}
