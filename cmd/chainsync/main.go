package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"chainsync/internal/chain"
	"chainsync/internal/config"
	"chainsync/internal/decode"
	"chainsync/internal/sink"
	"chainsync/internal/sink/postgres"
	"chainsync/internal/syncer"
)

func main() {
	root := &cobra.Command{
		Use:          "chainsync",
		Short:        "EVM chain data ingester",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Batch sync a block range into the sink",
		RunE:  runSync,
	}
	addCommonFlags(syncCmd)
	syncCmd.Flags().Uint64("start-block", 0, "start block (inclusive)")
	syncCmd.Flags().Uint64("end-block", 0, "end block (inclusive), 0 means confirmed head")
	root.AddCommand(syncCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the chain head in real time",
		RunE:  runWatch,
	}
	addCommonFlags(watchCmd)
	watchCmd.Flags().Duration("poll-interval", 2*time.Second, "head polling interval")
	root.AddCommand(watchCmd)

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard checkpoint and sink state for a full resync",
		RunE:  runReset,
	}
	addCommonFlags(resetCmd)
	root.AddCommand(resetCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "EVM JSON-RPC URL")
	cmd.Flags().Uint64("batch-size", 10, "blocks per batch window")
	cmd.Flags().Uint64("confirmations", 5, "blocks to stay behind the head")
	cmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	cmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	cmd.Flags().Uint64("checkpoint-interval", 100, "blocks between checkpoint saves")
	cmd.Flags().Bool("extract-logs", false, "record every raw log under the events measurement")
	cmd.Flags().Int("concurrency", 20, "parallel block fetches")
	cmd.Flags().Duration("request-spacing", 10*time.Millisecond, "minimum gap between RPC calls")
	cmd.Flags().Duration("call-timeout", 30*time.Second, "per RPC call timeout")
	cmd.Flags().Int("max-retries", 3, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("sink", "jsonl", "sink backend (jsonl, postgres)")
	cmd.Flags().String("out", "./data/points.jsonl", "output path for the jsonl sink")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for the postgres sink")
	cmd.Flags().StringSlice("protocol", nil, "known protocol contracts as Name=0xaddress (comma-separated)")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func openSink(ctx context.Context, cfg config.Config) (sink.Sink, error) {
	switch cfg.Sink {
	case "postgres":
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return sink.NewJsonlSink(cfg.Out), nil
	}
}

func buildEngine(ctx context.Context, cfg config.Config, logger *zap.Logger) (*syncer.Engine, *chain.Client, sink.Sink, error) {
	if cfg.RPCURL == "" {
		return nil, nil, nil, fmt.Errorf("rpc endpoint is required")
	}
	client, err := chain.NewClient(ctx, cfg.RPCURL, &chain.Options{
		Concurrency:    cfg.Concurrency,
		RequestSpacing: cfg.RequestSpacing,
		CallTimeout:    cfg.CallTimeout,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect rpc: %w", err)
	}

	dataSink, err := openSink(ctx, cfg)
	if err != nil {
		client.Close()
		return nil, nil, nil, fmt.Errorf("open sink: %w", err)
	}

	protocols, err := decode.ParseProtocolList(cfg.Protocols)
	if err != nil {
		client.Close()
		dataSink.Close()
		return nil, nil, nil, err
	}
	decoder, err := decode.NewDecoder(protocols, logger)
	if err != nil {
		client.Close()
		dataSink.Close()
		return nil, nil, nil, err
	}

	checkpoints := syncer.NewCheckpointStore(cfg.Checkpoint, cfg.CheckpointEnabled)

	engine := syncer.NewEngine(client, dataSink, decoder, checkpoints, syncer.Config{
		StartBlock:         cfg.StartBlock,
		EndBlock:           cfg.EndBlock,
		BatchSize:          cfg.BatchSize,
		Confirmations:      cfg.Confirmations,
		CheckpointInterval: cfg.CheckpointInterval,
		MaxRetries:         cfg.MaxRetries,
		RetryBackoff:       cfg.RetryBackoff,
		ExtractRawLogs:     cfg.ExtractRawLogs,
	}, logger)

	return engine, client, dataSink, nil
}

func runSync(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, client, dataSink, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()
	defer dataSink.Close()

	logger.Info("sync start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("start_block", cfg.StartBlock),
		zap.Uint64("end_block", cfg.EndBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Uint64("confirmations", cfg.Confirmations),
		zap.String("sink", cfg.Sink),
	)

	_, err = engine.Run(ctx)
	return err
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, client, dataSink, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()
	defer dataSink.Close()

	watcher := syncer.NewWatcher(engine, cfg.PollInterval, logger)
	return watcher.Watch(ctx)
}

func runReset(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checkpoints := syncer.NewCheckpointStore(cfg.Checkpoint, cfg.CheckpointEnabled)
	if err := checkpoints.Reset(); err != nil {
		return err
	}

	dataSink, err := openSink(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open sink: %w", err)
	}
	defer dataSink.Close()

	if err := dataSink.Reset(ctx); err != nil {
		return err
	}

	logger.Info("state reset",
		zap.String("checkpoint", cfg.Checkpoint),
		zap.String("sink", cfg.Sink),
	)
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
