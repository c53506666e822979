package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/modoterra/hookscope/internal/buildinfo"
	"github.com/modoterra/hookscope/pkg/config"
	"github.com/modoterra/hookscope/pkg/prefs"
	"github.com/modoterra/hookscope/pkg/transport/uds"
	tuimodel "github.com/modoterra/hookscope/pkg/tui/model"
)

var (
	socketPath string
	configPath string
	prefsPath  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "hookscope",
	Short:         "Live viewer for Claude hook debug logs",
	Long:          "Hookscope is a TUI + daemon that extracts records from hooks-YYYY-MM-DD.json debug logs, queries them and follows the current day live.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "daemon socket path (default from config)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to hookscope.yaml")
	rootCmd.Flags().StringVar(&prefsPath, "prefs", prefs.DefaultPath(), "path to TUI preferences")

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(daemonCmd)
}

// loadConfig reads the config file and applies the --socket override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if socketPath != "" {
		cfg.Socket = socketPath
	}
	return cfg, nil
}

// --- Root: TUI ---

func runTUI(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := prefs.Load(prefsPath)
	if err != nil {
		return err
	}
	ensureDaemon(cfg.Socket)
	app := tuimodel.New(tuimodel.Options{
		SocketPath: cfg.Socket,
		Prefs:      p,
		PrefsPath:  prefsPath,
	})
	prog := tea.NewProgram(app, tea.WithAltScreen())
	_, err = prog.Run()
	return err
}

func ensureDaemon(socket string) {
	if _, err := os.Stat(socket); err == nil {
		return
	}
	cmd := exec.Command("hookscoped", "--config", configPath, "--socket", socket)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "warning: could not start daemon:", err)
		return
	}
	for i := 0; i < 30; i++ {
		if _, err := os.Stat(socket); err == nil {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	fmt.Fprintln(os.Stderr, "warning: could not start daemon, continuing anyway")
}

func dialDaemon() (*uds.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	client, err := uds.Dial(cfg.Socket)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon at %s: %w", cfg.Socket, err)
	}
	return client, nil
}

// call runs one request against the daemon and decodes the response.
func call(method string, in, out any) error {
	client, err := dialDaemon()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return client.Call(ctx, method, in, out)
}

// --- Ping ---

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check if daemon is running",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var pong uds.PingResponse
		if err := call(uds.MethodPing, nil, &pong); err != nil {
			return err
		}
		if pong.Pong {
			fmt.Fprintf(cmd.OutOrStdout(), "pong ✓ (hookscoped %s)\n", pong.Version)
		}
		return nil
	},
}

// --- Version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String("hookscope"))
	},
}

// --- Daemon ---

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start daemon in foreground (for debugging)",
	Long:  "Normally the TUI auto-spawns the daemon. Use this to run it manually.",
	RunE: func(_ *cobra.Command, _ []string) error {
		args := []string{"--config", configPath}
		if socketPath != "" {
			args = append(args, "--socket", socketPath)
		}
		cmd := exec.Command("hookscoped", args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return cmd.Run()
	},
}
