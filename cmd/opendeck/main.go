// Command opendeck is a terminal control panel for a local agent engine:
// it mirrors sessions, streams transcripts and answers permission requests.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opendeck/opendeck/internal/api"
	"github.com/opendeck/opendeck/internal/app"
	"github.com/opendeck/opendeck/internal/config"
	"github.com/opendeck/opendeck/internal/logging"
	"github.com/opendeck/opendeck/internal/runtime"
	"github.com/opendeck/opendeck/internal/state"
)

var (
	cfgPath   string
	engineURL string
	token     string
	version   = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "opendeck",
	Short: "Terminal control panel for a local agent engine",
	Long: `opendeck connects to an agent engine, mirrors its sessions in real
time and lets you read transcripts, track todos and answer permission
requests without leaving the terminal.

With no --url it resolves the engine binary (configured path, bundled
sidecar, then $PATH) and spawns one on a free local port.`,
	Version:      version,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that a usable engine binary can be found",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath())
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		report := runtime.Doctor(ctx, cfg.Engine.Path, sidecarDirs())
		fmt.Printf("found:          %v\n", report.Found)
		fmt.Printf("path:           %s\n", report.ResolvedPath)
		fmt.Printf("in $PATH:       %v\n", report.InPath)
		fmt.Printf("version:        %s\n", report.Version)
		fmt.Printf("supports serve: %v\n", report.SupportsServe)
		for _, note := range report.Notes {
			fmt.Printf("  - %s\n", note)
		}
		if !report.Found {
			return fmt.Errorf("no engine binary found, install %s or set engine.path", runtime.DefaultBinary)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default: user config dir)")
	rootCmd.Flags().StringVar(&engineURL, "url", "", "URL of a running engine (skips spawning one)")
	rootCmd.Flags().StringVar(&token, "token", "", "engine auth token")
	rootCmd.AddCommand(doctorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if engineURL != "" {
		cfg.Engine.URL = engineURL
	}
	if token != "" {
		cfg.Engine.Token = token
	}

	log, err := logging.New(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer log.Sync()

	var manager *runtime.Manager
	baseURL := cfg.Engine.URL
	if baseURL == "" {
		path, _, notes := runtime.Resolve(cfg.Engine.Path, sidecarDirs())
		if path == "" {
			for _, n := range notes {
				fmt.Fprintln(os.Stderr, n)
			}
			return fmt.Errorf("no engine binary found, run `opendeck doctor`")
		}

		manager = runtime.NewManager(log)
		wd, _ := os.Getwd()
		baseURL, err = manager.Start(path, cfg.Engine.Hostname, cfg.Engine.Port, wd)
		if err != nil {
			return fmt.Errorf("start engine: %w", err)
		}
		defer manager.Stop()

		if err := waitHealthy(baseURL, cfg.Engine.Token, 15*time.Second); err != nil {
			info := manager.Info()
			log.Error("engine never became healthy",
				zap.String("stderr", info.LastStderr),
				zap.Error(err),
			)
			return fmt.Errorf("engine did not become healthy: %w", err)
		}
	}

	client := api.NewClient(baseURL, cfg.Engine.Token)
	store := state.NewStore()
	consumer := state.NewConsumer(store, client, cfg.Sync.FlushInterval, log)
	selector := state.NewSelector(store, client, log)
	gate := state.NewGate(store, client, log)

	m := app.New(client, store, consumer, selector, gate, manager, log)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

func configPath() string {
	if cfgPath != "" {
		return cfgPath
	}
	return config.DefaultPath()
}

// sidecarDirs lists directories searched for a bundled engine binary,
// relative to the opendeck executable.
func sidecarDirs() []string {
	exe, err := os.Executable()
	if err != nil {
		return nil
	}
	dir := filepath.Dir(exe)
	return []string{dir, filepath.Join(dir, "bin")}
}

// waitHealthy polls the engine until it answers its health endpoint.
func waitHealthy(baseURL, token string, timeout time.Duration) error {
	client := api.NewClient(baseURL, token)
	deadline := time.Now().Add(timeout)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err := client.Health(ctx)
		cancel()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(250 * time.Millisecond)
	}
}
