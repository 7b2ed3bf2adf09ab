package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/ethwatch/internal/control"
	"github.com/vietddude/ethwatch/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "ethwatch",
	Short: "Ethereum priority operation watcher",
	Long:  `ethwatch follows the main contract on Ethereum and serves confirmed priority operations.`,
	Run:   runWatcher,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default is $CONFIG_FILE or config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig loads the configuration and sets up logging from it.
func loadConfig() *config.AppConfig {
	_ = godotenv.Load()

	path := config.ResolvePath(cfgPath)
	cfg, err := config.Load(path)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "path", path, "error", err)
		os.Exit(1)
	}

	stylelog.InitDefault(&tint.Options{
		Level:      logLevel(cfg.Logging.Level),
		TimeFormat: time.RFC3339,
	})
	return cfg
}

func logLevel(level string) slog.Level {
	if isDebug {
		return slog.LevelDebug
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func runWatcher(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := control.NewWatcher(ctx, control.FromAppConfig(cfg))
	if err != nil {
		slog.Error("Failed to initialize Watcher", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		slog.Error("Watcher stopped with error", "error", err)
		app.Close()
		os.Exit(1)
	}
	slog.Info("Watcher stopped gracefully")
}
