package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"swift2s3/internal/app"
	"swift2s3/internal/config"
	"swift2s3/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "swift2s3",
	Short: "Migrate objects from a Swift container to an S3 bucket",
	Long:  `A concurrent one-way object transfer tool with checksum-based skip, per-object retry, a global bandwidth ceiling, and post-transfer reconciliation.`,
	RunE:  runTransfer,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yaml)")

	// Source flags
	rootCmd.Flags().String("src-endpoint", "", "Source object store endpoint")
	rootCmd.Flags().String("src-access-key", "", "Source access key")
	rootCmd.Flags().String("src-secret-key", "", "Source secret key")
	rootCmd.Flags().Bool("src-secure", false, "Use HTTPS for source")
	rootCmd.Flags().String("container", "", "Source container name (required)")
	rootCmd.Flags().String("src-prefix", "", "Source object prefix filter")

	// Destination flags
	rootCmd.Flags().String("dst-endpoint", "", "Destination object store endpoint")
	rootCmd.Flags().String("dst-access-key", "", "Destination access key")
	rootCmd.Flags().String("dst-secret-key", "", "Destination secret key")
	rootCmd.Flags().Bool("dst-secure", true, "Use HTTPS for destination")
	rootCmd.Flags().String("region", "", "Destination region")
	rootCmd.Flags().String("bucket", "", "Destination bucket name (required)")
	rootCmd.Flags().String("dst-prefix", "", "Key prefix prepended in the destination")

	// Transfer flags
	rootCmd.Flags().String("object", "", "Single object key")
	rootCmd.Flags().Int("concurrency", 8, "Number of concurrent workers (minimum 1)")
	rootCmd.Flags().Int64("bandwidth-mbps", 100, "Aggregate bandwidth ceiling in MB/s (minimum 1)")
	rootCmd.Flags().Int("max-attempts", 3, "Maximum attempts per object")
	rootCmd.Flags().Int("retry-backoff-ms", 1000, "Initial retry backoff in milliseconds")
	rootCmd.Flags().String("stage-dir", "", "Local staging directory (default under the system temp dir)")
	rootCmd.Flags().String("ledger", "./transfer.db", "Transfer ledger database file")
	rootCmd.Flags().Bool("resume", false, "Skip objects recorded as completed in the ledger")
	rootCmd.Flags().Bool("dry-run", false, "List objects without transferring")
	rootCmd.Flags().Bool("show-progress", true, "Show progress display (auto-disabled for dry-run)")
	rootCmd.Flags().String("metrics-addr", "", "Address for the Prometheus /metrics server (disabled when empty)")
	rootCmd.Flags().String("log-level", "info", "Log level (debug/info/warn/error)")
}

func runTransfer(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, logFile, err := logger.New(cfg.LogLevel, cfg.Source.Container, cfg.Dest.Bucket)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()
	log.Info("Transfer log created", zap.String("file", logFile))

	transferer, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create transferer: %w", err)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Received shutdown signal, gracefully stopping...")
		cancel()
	}()

	err = transferer.Run(ctx)

	if closeErr := transferer.Close(); closeErr != nil {
		log.Error("Error closing transferer", zap.Error(closeErr))
	}

	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
