package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/victornm/facematch/internal/config"
	"github.com/victornm/facematch/internal/server"
	"github.com/victornm/facematch/internal/telemetry"
)

const envPrefix = "FACEMATCH"

var (
	configPath string
	cfg        server.Config
)

var rootCmd = &cobra.Command{
	Use:   "facematch",
	Short: "Face-Match game server",
	Long: `facematch hosts the Face-Match game: a face is shown with two names and the
player picks the right one before the score decays to zero. Games are played
over HTTP or gRPC and the best scores of each mode are kept on a leaderboard.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (defaults to $CONFIG_PATH)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
}

func loadConfig(*cobra.Command, []string) error {
	cfg = server.DefaultConfig()
	if err := config.Load(configPath, &cfg, config.WithEnvPrefix(envPrefix)); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	l, err := telemetry.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(l)

	return nil
}
