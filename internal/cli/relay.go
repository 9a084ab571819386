package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/chatsync/internal/config"
	"github.com/raphaelgruber/chatsync/internal/db"
	"github.com/raphaelgruber/chatsync/internal/metrics"
	"github.com/raphaelgruber/chatsync/internal/server"
)

var (
	relayAddr  string
	relayStore string
	relayWipe  bool
)

var _ server.Store = (*db.Client)(nil)

// relayCmd is the root command of the chatsync-relay binary.
var relayCmd = &cobra.Command{
	Use:   "chatsync-relay",
	Short: "Development chat backend for chatsync clients",
	Long: `chatsync-relay serves the chat backend chatsync talks to:

  POST /api/messages/getmsg   conversation history
  POST /api/messages/addmsg   store a message
  GET  /socket                websocket for live messages
  GET  /health                liveness

Messages are kept in memory by default, or in SurrealDB with --store surrealdb.

Examples:
  chatsync-relay
  chatsync-relay --addr :8080 --store surrealdb`,
	Version:       Version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRelay,
}

func init() {
	relayCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	relayCmd.Flags().BoolVar(&showStats, "stats", false, "print request statistics on shutdown")
	relayCmd.Flags().StringVar(&configPath, "config", "", "YAML config file")
	relayCmd.Flags().StringVar(&relayAddr, "addr", "", "listen address (default $CHATSYNC_RELAY_ADDR or :5000)")
	relayCmd.Flags().StringVar(&relayStore, "store", "", "message store: memory or surrealdb (default $CHATSYNC_RELAY_STORE)")
	relayCmd.Flags().BoolVar(&relayWipe, "wipe", false, "wipe stored messages on startup (testing only)")
}

// ExecuteRelay runs the relay command.
func ExecuteRelay() error {
	return relayCmd.Execute()
}

func runRelay(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = loadConfig()
	if err != nil {
		return err
	}
	if relayAddr != "" {
		cfg.RelayAddr = relayAddr
	}
	if relayStore != "" {
		cfg.RelayStore = relayStore
	}
	if verbose {
		cfg.LogLevel = slog.LevelDebug
	}

	logger, closeLogger = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer closeLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	collector = metrics.NewCollector()
	srv := server.New(store, logger, collector)

	logger.Info("starting chatsync-relay", "addr", cfg.RelayAddr, "store", cfg.RelayStore)
	err = srv.Run(ctx, cfg.RelayAddr)

	if showStats {
		printStats(os.Stdout, collector.Snapshot())
	}
	return err
}

// openStore returns the configured message store and its cleanup.
func openStore(ctx context.Context) (server.Store, func(), error) {
	switch cfg.RelayStore {
	case config.StoreMemory, "":
		return server.NewMemoryStore(), func() {}, nil

	case config.StoreSurrealDB:
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		client, err := db.NewClient(connectCtx, db.ConfigFrom(cfg), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := client.InitSchema(connectCtx); err != nil {
			_ = client.Close(context.Background())
			return nil, nil, fmt.Errorf("initialize schema: %w", err)
		}
		if relayWipe || os.Getenv("CHATSYNC_WIPE_DB") == "true" {
			if err := client.WipeData(connectCtx); err != nil {
				_ = client.Close(context.Background())
				return nil, nil, fmt.Errorf("wipe database: %w", err)
			}
		}
		if n, err := client.CountMessages(connectCtx); err == nil {
			logger.Info("message store ready", "messages", n)
		}

		return client, func() {
			if err := client.Close(context.Background()); err != nil {
				logger.Error("failed to close database", "error", err)
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store %q (want %s or %s)", cfg.RelayStore, config.StoreMemory, config.StoreSurrealDB)
	}
}
