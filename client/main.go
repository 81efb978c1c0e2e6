package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mazegate/store"
	"mazegate/tracker"
)

const ConfigFile = ".maze_server"

const defaultServerURL = "http://localhost:8079"

var (
	// Global flags
	serverURL string
	logFile   string

	// play flags
	threshold int
	remote    bool
)

var rootCmd = &cobra.Command{
	Use:   "mazegate-client",
	Short: "Terminal client for the cheese maze",
	Long: `mazegate-client plays the cheese maze in a terminal with the mouse and
talks to a mazegate-server for the bitmap, sessions and run history.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if serverURL == "" {
			serverURL = loadServerConfig(ConfigFile)
		}
	},
}

var setCmd = &cobra.Command{
	Use:     "set <host> <port>",
	Short:   "Set server address",
	Example: "  mazegate-client set 34.169.25.230 8079",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "🔧 Setting server to %s:%s...\n", args[0], args[1])
		url, err := saveServerConfig(ConfigFile, args[0], args[1])
		if err != nil {
			return fmt.Errorf("error saving config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Server set to %s\n", url)
		fmt.Fprintf(cmd.OutOrStdout(), "💡 Configuration saved to %s\n", ConfigFile)
		return nil
	},
}

var renderCmd = &cobra.Command{
	Use:   "render [file]",
	Short: "Download the maze image",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := "maze.png"
		if len(args) == 1 {
			filename = args[0]
		}
		return renderMaze(cmd.Context(), cmd.OutOrStdout(), newAPIClient(serverURL), filename)
	},
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Solve the maze with the mouse",
	Long: `play draws the maze in the terminal. Move the mouse into START, follow
the dark path and reach the cheese without touching a wall. Leaving the
maze or hitting a wall resets the run. Press q or Esc to quit.`,
	RunE: runPlay,
}

var statusCmd = &cobra.Command{
	Use:   "status <session>",
	Short: "Show a server session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := newAPIClient(serverURL).Session(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "📍 Session '%s' status:\n", snap.ID)
		fmt.Fprintf(out, "  🚦 State: %s\n", snap.State)
		fmt.Fprintf(out, "  💬 Status: %s\n", snap.Status)
		fmt.Fprintf(out, "  🐭 Avatar: %.1f%%, %.1f%%\n", snap.AvatarX, snap.AvatarY)
		fmt.Fprintf(out, "  ✅ captcha_ok: %s\n", snap.CaptchaOK)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <session>",
	Short: "Show the run transitions of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := newAPIClient(serverURL).History(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printHistory(cmd.OutOrStdout(), args[0], events)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server run statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := newAPIClient(serverURL).Stats(cmd.Context())
		if err != nil {
			return err
		}
		printStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "Server URL (default from "+ConfigFile+")")
	rootCmd.PersistentFlags().StringVar(&logFile, "log", "", "Write logs to this file")

	playCmd.Flags().IntVar(&threshold, "threshold", tracker.DefaultThreshold, "Path threshold on r+g+b")
	playCmd.Flags().BoolVar(&remote, "remote", false, "Mirror the run into a server session")

	rootCmd.AddCommand(setCmd, renderCmd, playCmd, statusCmd, historyCmd, statsCmd)
}

func loadServerConfig(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return defaultServerURL
	}
	if url := strings.TrimSpace(string(data)); url != "" {
		return url
	}
	return defaultServerURL
}

func saveServerConfig(path, host, port string) (string, error) {
	url := fmt.Sprintf("http://%s:%s", host, port)
	return url, os.WriteFile(path, []byte(url), 0644)
}

// newLogger writes to logFile when set. The terminal belongs to tcell
// during play, so there is no console logging.
func newLogger(path string) (*zap.Logger, error) {
	if path == "" {
		return zap.NewNop(), nil
	}
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{path}
	zcfg.ErrorOutputPaths = []string{path}
	return zcfg.Build()
}

func renderMaze(ctx context.Context, out io.Writer, api *apiClient, filename string) error {
	data, err := api.RenderPNG(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("error writing file: %w", err)
	}

	fmt.Fprintf(out, "✅ Maze rendered successfully!\n")
	fmt.Fprintf(out, "   📁 File: %s\n", filename)
	fmt.Fprintf(out, "   📂 Size: %d bytes\n", len(data))
	return nil
}

func printHistory(out io.Writer, id string, events []store.RunEvent) {
	fmt.Fprintf(out, "🌳 Run history of '%s':\n", id)
	if len(events) == 0 {
		fmt.Fprintln(out, "   (No transitions yet)")
		return
	}
	for _, ev := range events {
		fmt.Fprintf(out, "   %s  %-11s -> %-11s (%s)\n",
			ev.At.Local().Format(time.TimeOnly), ev.From, ev.To, ev.Reason)
	}
}

func printStats(out io.Writer, stats *StatsResponse) {
	fmt.Fprintf(out, "📊 Live sessions: %d\n", stats.LiveSessions)
	if stats.Runs == nil {
		fmt.Fprintln(out, "   (Run ledger disabled)")
		return
	}
	fmt.Fprintf(out, "   Sessions: %d | Started: %d | Failed: %d | Completed: %d\n",
		stats.Runs.Sessions, stats.Runs.Started, stats.Runs.Failed, stats.Runs.Completed)
}

func runPlay(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(logFile)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	api := newAPIClient(serverURL)
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	img, layout, fetchErr := api.FetchMaze(ctx)
	cancel()
	if fetchErr != nil {
		logger.Error("failed to fetch maze", zap.String("server", serverURL), zap.Error(fetchErr))
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	screen.EnableMouse(tcell.MouseMotionEvents)

	w, err := newWidget(screen, layout, tracker.Config{Threshold: threshold}, logger)
	if err != nil {
		screen.Fini()
		return err
	}

	if remote && fetchErr == nil {
		w.remote = &remoteRun{api: api}
		snap, err := api.CreateSession(cmd.Context(), w.surface.W, w.surface.H)
		if err != nil {
			w.remote.err = err
			logger.Warn("failed to create remote session", zap.Error(err))
		} else {
			w.remote.id = snap.ID
			w.remote.last = snap
		}
	}

	w.load(img, fetchErr)
	w.run()
	screen.Fini()

	fmt.Fprintf(cmd.OutOrStdout(), "captcha_ok=%s\n", w.field)
	if w.remote != nil && w.remote.last != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "session=%s remote_captcha_ok=%s\n", w.remote.id, w.remote.last.CaptchaOK)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
