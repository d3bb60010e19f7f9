package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cartridge/agentnet/envs"
	"github.com/cartridge/agentnet/internal/collector"
	"github.com/cartridge/agentnet/internal/config"
	"github.com/cartridge/agentnet/internal/runner"
	"github.com/cartridge/agentnet/policy"
	"github.com/cartridge/agentnet/rollout"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "rollout",
	Short: "Batched rollout collection service",
	Long: `Runs fixed-length, batched rollouts of a recurrent policy network
against a built-in environment and buffers the aligned trajectories
for training consumers.`,
	RunE:         runRollouts,
	SilenceUsage: true,
}

func init() {
	cfg = config.Default()

	// Environment settings
	rootCmd.Flags().StringVar(&cfg.EnvID, "env-id", cfg.EnvID, "Environment to run (counter, drift)")

	// Rollout shape
	rootCmd.Flags().IntVar(&cfg.SessionLength, "session-length", cfg.SessionLength, "Ticks per rollout")
	rootCmd.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Independent sessions per rollout")

	// Network shape
	rootCmd.Flags().IntVar(&cfg.HiddenWidth, "hidden-width", cfg.HiddenWidth, "Hidden state width")
	rootCmd.Flags().IntVar(&cfg.Actions, "actions", cfg.Actions, "Discrete action space size")

	// Run management
	rootCmd.Flags().IntVar(&cfg.MaxRollouts, "max-rollouts", cfg.MaxRollouts, "Rollouts to run (0 for unlimited)")
	rootCmd.Flags().IntVar(&cfg.FlushSize, "flush-size", cfg.FlushSize, "Trajectories per buffer flush")
	rootCmd.Flags().DurationVar(&cfg.FlushInterval, "flush-interval", cfg.FlushInterval, "Interval to flush partial batches")
	rootCmd.Flags().IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "Trajectory buffer capacity")

	// Evaluation
	rootCmd.Flags().Int64Var(&cfg.Seed, "seed", cfg.Seed, "Seed for weights and sampling")
	rootCmd.Flags().BoolVar(&cfg.Deterministic, "deterministic", cfg.Deterministic, "Resolve actions greedily instead of sampling")

	// Logging
	rootCmd.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")

	// Bind flags to viper for environment variable support
	viper.BindPFlags(rootCmd.Flags())
	viper.SetEnvPrefix("ROLLOUT")
	viper.AutomaticEnv()
}

func runRollouts(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	env, err := buildEnv(cfg)
	if err != nil {
		return err
	}

	network, err := policy.NewNetwork(env.ObservationSize(), cfg.HiddenWidth, cfg.Actions, cfg.Seed)
	if err != nil {
		return fmt.Errorf("build network: %w", err)
	}

	engine := rollout.New(rollout.NewAgent(network), env)
	buffer := collector.NewMemoryBuffer(cfg.BufferSize)
	defer buffer.Close()

	// Handle shutdown signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info().Msg("Shutdown signal received, stopping")
		cancel()
	}()

	run := runner.New(cfg, engine, buffer, logger)
	if err := run.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("runner: %w", err)
	}

	stats, err := buffer.Stats(context.Background(), "")
	if err != nil {
		return fmt.Errorf("buffer stats: %w", err)
	}
	logger.Info().
		Int("rollouts", run.Rollouts()).
		Uint64("buffered", stats.TotalRollouts).
		Uint64("ticks", stats.TotalTicks).
		Msg("Done")
	return nil
}

func buildEnv(cfg *config.Config) (rollout.Environment, error) {
	switch cfg.EnvID {
	case "counter":
		return envs.Counter{}, nil
	case "drift":
		return envs.NewDrift(cfg.Actions, 0.5, 0.1, cfg.Seed)
	default:
		return nil, fmt.Errorf("unknown env %q", cfg.EnvID)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
