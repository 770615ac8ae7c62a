package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"SupplyGuard/internal/backend"
	"SupplyGuard/internal/cache"
	"SupplyGuard/internal/chatbot"
	"SupplyGuard/internal/config"
	"SupplyGuard/internal/server"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "supplyguard",
		Short:         "SupplyGuard AI platform assistant",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", config.DefaultPath, "Path to the TOML config file")
	pf.String("endpoint", "", "Chat endpoint URL (http(s):// or ws(s)://); empty uses local answers only")
	pf.Duration("timeout", 0, "Per-request timeout for the chat endpoint (0 = none)")
	pf.String("storage", "", "Conversation storage backend (sqlite|bolt|file|memory)")
	pf.String("storage-path", "", "Database file (sqlite, bolt) or directory (file)")
	pf.Bool("ephemeral", false, "Keep the conversation in memory only")
	pf.String("page", "", "Page path reported as the current page")
	pf.String("rules", "", "YAML file overriding the local answer rules")
	pf.String("log-dir", "", "Directory for log, trace and metric files")
	pf.Bool("debug", false, "Enable debug logging")
	pf.Bool("telemetry", false, "Export traces and metrics to the log directory")

	root.AddCommand(
		newChatCmd(),
		newAskCmd(),
		newHistoryCmd(),
		newClearCmd(),
		newServeCmd(),
	)
	return root
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newClientApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			repl := chatbot.NewREPL(a.widget, cmd.InOrStdin(), cmd.OutOrStdout(), a.logger)
			return repl.Run(ctx)
		},
	}
}

func newAskCmd() *cobra.Command {
	var example int
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question and print the reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if example > 0 {
				if example > len(chatbot.ExampleQueries) {
					return fmt.Errorf("no example query %d", example)
				}
				text = chatbot.ExampleQueries[example-1]
			}
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("a question or --example is required")
			}

			a, err := newClientApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a.widget.Submit(ctx, text)
			messages := a.widget.Messages()
			fmt.Fprintln(cmd.OutOrStdout(), messages[len(messages)-1].Text)
			return nil
		},
	}
	cmd.Flags().IntVar(&example, "example", 0, "Send example query n instead of a question")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print the saved conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newClientApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			printMessages(cmd.OutOrStdout(), a.widget.Messages())
			return nil
		},
	}
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the saved conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newClientApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			a.widget.Clear()
			fmt.Fprintln(cmd.OutOrStdout(), "Conversation cleared.")
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			a, err := initAmbient(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var assistant server.Assistant
			if cfg.Server.APIKey != "" {
				assistant, err = server.NewOpenAIAssistant(cfg.Server.APIKey, cfg.Server.BaseURL, cfg.Server.Model, cfg.Server.HistoryLimit)
				if err != nil {
					return err
				}
			} else {
				a.logger.Warn("DEEPSEEK_API_KEY not configured, using fallback responses")
			}

			srv := server.New(server.Options{
				Assistant:      assistant,
				Rules:          a.rules,
				Cache:          cache.NewReplyCache(cfg.Server.CacheTTL),
				AllowedOrigins: cfg.Server.AllowedOrigins,
				Logger:         a.logger,
			})

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			addr := fmt.Sprintf(":%d", cfg.Server.Port)
			fmt.Fprintf(cmd.OutOrStdout(), "Chat API available at http://localhost%s%s\n", addr, backend.ChatPath)
			return srv.Run(ctx, addr)
		},
	}
	cmd.Flags().Int("port", 0, "Port to listen on")
	return cmd
}
