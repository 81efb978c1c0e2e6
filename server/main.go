package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mazegate/config"
	"mazegate/mazeimg"
	"mazegate/store"
)

var (
	// Global flags
	configPath string
	host       string
	port       string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mazegate-server",
	Short: "Maze verification server",
	Long: `mazegate-server serves the cheese maze bitmap and hosts maze tracker
sessions. Clients stream pointer events to a session; the session's
captcha_ok field turns "1" once the pointer travels from START to the
cheese without touching a wall.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if host != "" {
			cfg.Server.Host = host
		}
		if port != "" {
			cfg.Server.Port = port
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err = newLogger(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the maze and tracker sessions (default)",
	RunE:  runServe,
}

var renderCmd = &cobra.Command{
	Use:   "render [file]",
	Short: "Write the maze bitmap to a PNG file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRender,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "mazegate.yaml", "Config file")
	rootCmd.PersistentFlags().StringVar(&host, "host", "", "Server host (overrides config)")
	rootCmd.PersistentFlags().StringVar(&port, "port", "", "Server port (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(serveCmd, renderCmd)
}

func newLogger(lc config.LoggingConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if lc.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func runServe(cmd *cobra.Command, args []string) error {
	ledger, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer ledger.Close()

	srv, err := NewServer(cfg, logger, ledger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("maze server starting",
		zap.String("addr", cfg.Addr()),
		zap.String("store", ledger.Path()),
		zap.Int("threshold", cfg.Tracker.Threshold))
	return srv.Run(ctx)
}

func runRender(cmd *cobra.Command, args []string) error {
	out := "maze.png"
	if len(args) == 1 {
		out = args[0]
	}

	maze, err := loadOrGenerateMaze(cfg.Maze, logger)
	if err != nil {
		return err
	}
	img, layout := mazeimg.Render(maze, cfg.Maze.RenderOptions)
	data, err := mazeimg.EncodePNG(img)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Maze image saved as %s (%dx%d)\n", out, layout.Width, layout.Height)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
