// Command logsink-demo initializes a client against a configurable
// kernel object prefix, emits a burst of synthetic log messages at each
// canonical level, and reports drop counts on exit.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	logsink "github.com/griffinplus/logsink"
	"github.com/griffinplus/logsink/internal/logging"
)

var (
	prefix       string
	appName      string
	burstSize    int
	lossless     bool
	peakCapacity int
	verbose      bool
	writeToFile  bool
)

func main() {
	root := &cobra.Command{
		Use:   "logsink-demo",
		Short: "Send synthetic log traffic through a logsink client",
		RunE:  run,
	}

	root.Flags().StringVar(&prefix, "kernel-object-prefix", "Griffin+", "shared-memory region and control channel prefix")
	root.Flags().StringVar(&appName, "app-name", "logsink-demo", "application name pushed during handshake")
	root.Flags().IntVar(&burstSize, "burst", 20, "number of messages to emit per log level")
	root.Flags().BoolVar(&lossless, "lossless", false, "block and retry on a full ring instead of spilling/dropping")
	root.Flags().IntVar(&peakCapacity, "peak-buffer-capacity", 64, "message-frame capacity of the in-process overflow buffer")
	root.Flags().BoolVar(&verbose, "v", false, "verbose (debug-level) logging")
	root.Flags().BoolVar(&writeToFile, "write-to-log-file", true, "ask the service to persist received messages to its log file")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logCfg := logging.DefaultConfig()
	if verbose {
		logCfg.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logCfg)
	logging.SetDefault(logger)

	cfg := logsink.DefaultConfig()
	cfg.KernelObjectPrefix = prefix
	cfg.ApplicationName = appName
	cfg.LosslessMode = lossless
	cfg.PeakBufferCapacity = peakCapacity
	cfg.WriteToLogFile = writeToFile
	// The upstream level registry assigns contiguous ids 0..8 before
	// MapLevelName collapses several of them onto a shared canonical name
	// (spec.md §4.6); the registry replayed at handshake must mirror that
	// and declare every id in sequence, not just the distinct names.
	cfg.LogLevels = []logsink.LogLevel{
		{ID: 0, Name: "Failure"},
		{ID: 1, Name: "Failure"},
		{ID: 2, Name: "Failure"},
		{ID: 3, Name: "Error"},
		{ID: 4, Name: "Warning"},
		{ID: 5, Name: "Note"},
		{ID: 6, Name: "Note"},
		{ID: 7, Name: "Developer"},
		{ID: 8, Name: "Trace0"},
	}
	cfg.LogWriters = []logsink.LogWriter{
		{ID: 0, Name: "logsink-demo"},
	}

	client, err := logsink.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("construct client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	logger.Info("initializing client", "prefix", prefix, "app_name", appName)
	if err := client.Initialize(ctx); err != nil {
		logger.Error("initialize failed, continuing in degraded state", "error", err)
	}

	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		if err := client.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
		logger.Info("done", "lost_messages", client.LostMessageCount())
		fmt.Printf("messages dropped: %d\n", client.LostMessageCount())
	}()

	emitBurst(ctx, client, logger)

	return nil
}

func emitBurst(ctx context.Context, client *logsink.Client, logger *logging.Logger) {
	levels := []int32{0, 3, 4, 5, 7, 8}
	for _, levelID := range levels {
		for i := 0; i < burstSize; i++ {
			select {
			case <-ctx.Done():
				return
			default:
			}
			text := fmt.Sprintf("demo message %d at level %d", i, levelID)
			ok := client.EnqueueMessage(logsink.LogMessage{Text: text, LevelID: levelID, SourceID: 0})
			if !ok {
				logger.Warn("message dropped", "level_id", levelID, "index", i)
			}
		}
	}
	logger.Info("burst complete", "levels", len(levels), "per_level", burstSize)
}
