// ABOUTME: Entry point for the grimoire-desktop local backend
// ABOUTME: Persists projects, settings, and credentials behind a localhost HTTP API

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/grimoire/internal/config"
	"github.com/2389/grimoire/internal/credentials"
	"github.com/2389/grimoire/internal/export"
	"github.com/2389/grimoire/internal/keychain"
	"github.com/2389/grimoire/internal/server"
	"github.com/2389/grimoire/internal/store"
	"github.com/2389/grimoire/internal/updater"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
            _                 _
  __ _ _ __(_)_ __ ___   ___ (_)_ __ ___
 / _' | '__| | '_ ' _ \ / _ \| | '__/ _ \
| (_| | |  | | | | | | | (_) | | | |  __/
 \__, |_|  |_|_| |_| |_|\___/|_|_|  \___|
 |___/
`

// getConfigPath returns the path to the config file.
// Priority: GRIMOIRE_CONFIG env var > XDG_CONFIG_HOME/grimoire/config.yaml > ~/.config/grimoire/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("GRIMOIRE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "grimoire", "config.yaml")
}

// getDataPath returns the path to the grimoire data directory.
// Priority: XDG_DATA_HOME/grimoire > ~/.local/share/grimoire
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "grimoire")
}

// resolveDBPath picks the database location.
// Priority: GRIMOIRE_TEST_DB env var (isolated test runs) > config > data dir
func resolveDBPath(cfg *config.Config) string {
	if envPath := os.Getenv("GRIMOIRE_TEST_DB"); envPath != "" {
		return envPath
	}
	if cfg.Database.Path != "" {
		return cfg.Database.Path
	}
	return filepath.Join(getDataPath(), "grimoire.db")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: grimoire-desktop <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the local backend")
		fmt.Println("  init     Write a starter config file")
		fmt.Println("  health   Check backend health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	dbPath := resolveDBPath(cfg)

	// Startup info
	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", dbPath)
	green.Print("    ▶ ")
	if cfg.Server.Port == 0 {
		fmt.Printf("HTTP:      %s (first free port)\n", cfg.Server.Host)
	} else {
		fmt.Printf("HTTP:      %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	}
	fmt.Println()

	logger.Info("starting grimoire-desktop",
		"version", version,
		"config", configPath,
		"database", dbPath,
	)

	// The store must be fully initialized (schema, migrations, seeded
	// local user) before anything else issues queries
	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	defer func() { _ = st.Close() }()

	validator := credentials.NewAnthropicValidator(cfg.Auth.AnthropicBaseURL, cfg.Auth.ValidateTimeout)
	resolver := credentials.NewResolver(keychain.System(), validator, st, logger)
	exporter := export.New(st, logger)
	checker := updater.New(cfg.Updater, version, logger)

	srv := server.New(cfg, st, resolver, exporter, checker, logger)
	srv.PortFile = filepath.Join(getDataPath(), "server.port")

	go func() {
		if err := checker.Run(ctx); err != nil {
			logger.Warn("update checker stopped", "error", err)
		}
	}()

	return srv.Run(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

// runHealth checks the running backend via the port file written by serve
func runHealth(ctx context.Context) error {
	portFile := filepath.Join(getDataPath(), "server.port")
	data, err := os.ReadFile(portFile)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("backend not running (no port file at %s)", portFile)
		}
		return fmt.Errorf("reading port file: %w", err)
	}

	port, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("parsing port file: %w", err)
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s:%d/health", cfg.Server.Host, port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// runInit writes a commented starter config, refusing to overwrite
func runInit() error {
	configPath := getConfigPath()
	dataPath := getDataPath()
	dbPath := filepath.Join(dataPath, "grimoire.db")

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists at %s", configPath)
	}

	configContent := fmt.Sprintf(`# grimoire-desktop configuration
# Generated by grimoire-desktop init

server:
  host: "127.0.0.1"
  # 0 probes 3000-9000 for the first free port
  port: 0
  request_timeout: "30s"

database:
  path: "%s"

auth:
  anthropic_base_url: "https://api.anthropic.com"
  validate_timeout: "10s"
  # Empty secret generates a random one per process
  session_secret: ""
  session_ttl: "168h"

updater:
  enabled: true
  check_on_launch: true
  launch_delay: "5s"
  check_interval: "6h"

logging:
  level: "info"
  format: "text"
`, dbPath)

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Created config: %s\n", configPath)
	fmt.Printf("  Data directory: %s\n", dataPath)
	fmt.Println("\nTo start the backend:")
	fmt.Println("  grimoire-desktop serve")

	return nil
}
