package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"SupplyGuard/internal/chatbot"
	"SupplyGuard/internal/config"
	"SupplyGuard/internal/conversation"
	"SupplyGuard/internal/fallback"
	"SupplyGuard/internal/resolver"
	"SupplyGuard/internal/storage"
	"SupplyGuard/internal/telemetry"
	"SupplyGuard/internal/transport"
)

const version = "1.0.0"

// app holds everything a command needs, built from configuration
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	rules     *fallback.RuleSet
	slot      storage.Slot
	store     *conversation.Store
	transport transport.Transport
	widget    *chatbot.Widget

	closers []func()
}

// loadConfig reads .env, the config file and the environment, then applies
// flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		cfg.Endpoint, _ = flags.GetString("endpoint")
	}
	if flags.Changed("timeout") {
		cfg.RequestTimeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("storage") {
		cfg.Storage.Backend, _ = flags.GetString("storage")
	}
	if flags.Changed("storage-path") {
		cfg.Storage.Path, _ = flags.GetString("storage-path")
	}
	if ephemeral, _ := flags.GetBool("ephemeral"); ephemeral {
		cfg.Storage.Backend = storage.KindMemory
	}
	if flags.Changed("page") {
		cfg.Context.PagePath, _ = flags.GetString("page")
	}
	if flags.Changed("rules") {
		cfg.RulesPath, _ = flags.GetString("rules")
	}
	if flags.Changed("log-dir") {
		cfg.LogDir, _ = flags.GetString("log-dir")
	}
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
	if flags.Changed("telemetry") {
		cfg.Telemetry, _ = flags.GetBool("telemetry")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initAmbient sets up logging, telemetry and the fallback rules shared by
// the client and the server.
func initAmbient(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	logger, logFile, err := telemetry.InitLogger(cfg.LogDir, telemetry.Level(cfg.Debug))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger
	a.closers = append(a.closers, func() { _ = logFile.Close() })

	if cfg.Telemetry {
		_, _, cleanup, err := telemetry.InitTelemetry(ctx, cfg.LogDir, version)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		a.closers = append(a.closers, cleanup)
	}

	rules, err := fallback.LoadRules(cfg.RulesPath)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.rules = rules
	return a, nil
}

// newClientApp wires the conversation store, resolver and widget
func newClientApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	a, err := initAmbient(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}

	slot, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path, conversation.SlotKey)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	a.slot = slot
	a.closers = append(a.closers, func() {
		if err := slot.Close(); err != nil {
			a.logger.Error("failed to close storage", "error", err)
		}
	})

	a.store = conversation.NewStore(slot, conversation.WithLogger(a.logger))
	a.store.Load()

	if cfg.Remote() {
		tr, err := transport.New(cfg.Endpoint, transport.Options{Logger: a.logger})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
		a.transport = tr
		a.closers = append(a.closers, func() { _ = tr.Close() })
	}

	source := resolver.StaticContext{
		PagePath:          cfg.Context.PagePath,
		UserID:            cfg.Context.UserID,
		TotalSuppliers:    cfg.Context.TotalSuppliers,
		CriticalSuppliers: cfg.Context.CriticalSuppliers,
		ActiveAlerts:      cfg.Context.ActiveAlerts,
		RecentActivity:    cfg.Context.RecentActivity,
	}
	res := resolver.New(a.transport, a.rules, source,
		resolver.WithLogger(a.logger),
		resolver.WithTimeout(cfg.RequestTimeout),
	)
	a.widget = chatbot.NewWidget(a.store, res, chatbot.WithWidgetLogger(a.logger))

	a.logger.Info("client ready",
		"endpoint", cfg.Endpoint,
		"storage", cfg.Storage.Backend,
		"page", resolver.CurrentPage(cfg.Context.PagePath),
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func printMessages(w io.Writer, messages []conversation.Message) {
	for _, msg := range messages {
		author := "SupplyGuard AI"
		if msg.IsUser {
			author = "You"
		}
		fmt.Fprintf(w, "[%s] %s: %s\n\n", msg.Timestamp.Local().Format("2006-01-02 15:04"), author, msg.Text)
	}
}
