package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/debatesync/internal/config"
	"github.com/vovakirdan/debatesync/internal/devserver"
	"github.com/vovakirdan/debatesync/internal/log"
	"github.com/vovakirdan/debatesync/internal/session"
	"github.com/vovakirdan/debatesync/internal/storage"
	"github.com/vovakirdan/debatesync/internal/tui"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	root := &cobra.Command{
		Use:           "debatesync",
		Short:         "Real-time session client for the debate platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&overrides.ServerURL, "server", "", "server base URL")
	root.PersistentFlags().StringVar(&overrides.AuthToken, "token", "", "identity token")
	root.PersistentFlags().StringVar(&overrides.StoragePath, "storage", "", "client database path")
	root.PersistentFlags().StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(watchCmd(&configPath, &overrides))
	root.AddCommand(serveCmd())
	root.AddCommand(tokenCmd())
	return root
}

func loadConfig(configPath string, overrides config.Config) (config.Config, error) {
	logger := log.New(overrides.LogLevel)
	cfg, _, err := config.Load(logger, configPath)
	if err != nil {
		return cfg, err
	}
	cfg.UpdateFrom(overrides)
	return cfg, nil
}

func watchCmd(configPath *string, overrides *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Connect to the platform and render live session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, *overrides)
			if err != nil {
				return err
			}
			logger := log.New(cfg.LogLevel)

			if cfg.AuthToken == "" {
				return fmt.Errorf("an identity token is required (--token or config)")
			}

			store, err := storage.NewSQLite(cfg.StoragePath)
			if err != nil {
				return fmt.Errorf("open client storage: %w", err)
			}

			notifier, notes := tui.NewFeed()
			sess, err := session.New(session.Options{
				ServerURL:      cfg.ServerURL,
				AuthToken:      cfg.AuthToken,
				ReconnectDelay: cfg.ReconnectDelay,
				Store:          store,
				Notifier:       notifier,
			}, logger)
			if err != nil {
				store.Close()
				return err
			}
			defer sess.Close()

			sess.Connect()

			model := tui.NewModel(sess, store, notes)
			_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
			return err
		},
	}
}

func serveCmd() *cobra.Command {
	var (
		addr     string
		secret   string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the stub debate server for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.New(logLevel)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := devserver.New(secret, logger)
			logger.Info().Str("addr", addr).Msg("starting dev server")
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&secret, "secret", "dev-secret", "HS256 signing secret")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		secret   string
		userID   string
		username string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development identity token",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := devserver.GenerateToken(&devserver.JWTConfig{
				Secret: []byte(secret),
				TTL:    ttl,
			}, userID, username)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "dev-secret", "HS256 signing secret")
	cmd.Flags().StringVar(&userID, "user-id", "u-1", "user id claim")
	cmd.Flags().StringVar(&username, "username", "dev", "username claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
