// Package cli provides the command-line interface for chatsync.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/chatsync/internal/chat"
	"github.com/raphaelgruber/chatsync/internal/client"
	"github.com/raphaelgruber/chatsync/internal/config"
	"github.com/raphaelgruber/chatsync/internal/metrics"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	showStats  bool
	configPath string
	userFlag   string
	serverFlag string
	socketFlag string

	// Global state set up in PersistentPreRunE
	cfg         config.Config
	logger      *slog.Logger
	closeLogger func() error
	collector   *metrics.Collector
	apiClient   *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "chatsync",
	Short: "Two-party chat client",
	Long: `chatsync is a terminal client for one-to-one chat.

It merges a conversation's stored history with live messages pushed over a
websocket, and shows your own messages immediately while they are delivered.

Configuration comes from CHATSYNC_* environment variables, optionally
overlaid by a YAML file given with --config.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = loadConfig()
		if err != nil {
			return err
		}
		applyFlags(&cfg)

		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		// The TUI owns the terminal, so it logs to the file only.
		if cmd == chatCmd {
			logger, closeLogger = config.SetupFileLogger(cfg.LogFile, cfg.LogLevel)
		} else {
			logger, closeLogger = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		}
		slog.SetDefault(logger)

		collector = metrics.NewCollector()
		apiClient = client.New(cfg.ServerURL, cfg.ClientTimeout, client.WithMetrics(collector))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if showStats && collector != nil {
			printStats(os.Stdout, collector.Snapshot())
		}
		if closeLogger != nil {
			if err := closeLogger(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Load(), nil
	}
	c, err := config.LoadFile(configPath)
	if err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}
	return c, nil
}

// applyFlags lets explicit flags win over env and file values.
func applyFlags(c *config.Config) {
	if userFlag != "" {
		c.UserID = userFlag
	}
	if serverFlag != "" {
		c.ServerURL = serverFlag
		if socketFlag == "" {
			c.SocketURL = config.DeriveSocketURL(serverFlag)
		}
	}
	if socketFlag != "" {
		c.SocketURL = socketFlag
	}
}

// requireUser returns the local user id or a usage error.
func requireUser() (string, error) {
	if cfg.UserID == "" {
		return "", errors.New("no user set: pass --user or set CHATSYNC_USER")
	}
	return cfg.UserID, nil
}

// dialChannel connects the push channel. A failure is logged and returns
// nil: chatting still works over request/response, without live updates.
func dialChannel(ctx context.Context, userID string) *client.Channel {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	ch, err := client.Dial(dialCtx, cfg.SocketURL, userID,
		client.WithChannelLogger(logger),
		client.WithChannelMetrics(collector))
	if err != nil {
		logger.Warn("push channel unavailable, continuing without live updates",
			"url", cfg.SocketURL, "error", err)
		return nil
	}
	return ch
}

// newEngine builds a chat engine over the API client and, if non-nil, the
// push channel.
func newEngine(userID string, ch *client.Channel, hooks chat.Config) (*chat.Engine, error) {
	hooks.LocalUserID = userID
	hooks.History = apiClient
	hooks.Persister = apiClient
	hooks.Logger = logger
	if ch != nil {
		hooks.Channel = ch
	}
	return chat.NewEngine(hooks)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&showStats, "stats", false, "print request statistics on exit")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "local user id (default $CHATSYNC_USER)")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "chat server base URL (default $CHATSYNC_SERVER_URL)")
	rootCmd.PersistentFlags().StringVar(&socketFlag, "socket", "", "websocket URL (default derived from --server)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(sendCmd)
}
