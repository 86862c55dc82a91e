package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/updatewatch/agent/internal/agent"
	"github.com/updatewatch/agent/internal/config"
	"github.com/updatewatch/agent/internal/logging"
	"github.com/updatewatch/agent/internal/pk"
	"github.com/updatewatch/agent/internal/sensors"
	"github.com/updatewatch/agent/internal/statestore"
	"github.com/updatewatch/agent/internal/statusfeed"
	"github.com/updatewatch/agent/internal/updates"
)

var (
	version = "0.1.0"
	cfgFile string
	force   bool
)

var rootCmd = &cobra.Command{
	Use:   "updatewatch-agent",
	Short: "Updatewatch Agent",
	Long:  `Updatewatch Agent - watches the package-manager daemon for pending updates and drives installs`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the agent",
	Run: func(cmd *cobra.Command, args []string) {
		runAgent()
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Ask a running agent to check for updates now",
	Run: func(cmd *cobra.Command, args []string) {
		requestCheck()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Updatewatch Agent v%s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last known update state from a running agent",
	Run: func(cmd *cobra.Command, args []string) {
		checkStatus()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/updatewatch/updatewatch.yaml)")
	checkCmd.Flags().BoolVar(&force, "force", false, "refresh repository metadata even if the cache is fresh")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	for _, err := range cfg.Validate() {
		fmt.Fprintf(os.Stderr, "Config: %v\n", err)
	}
	return cfg
}

func runAgent() {
	cfg := loadConfig()
	logging.Init(cfg.LogFormat, cfg.LogLevel, os.Stderr)
	log := logging.L("main")

	log.Info("starting updatewatch agent", "version", version, "listenAddr", cfg.ListenAddr)

	daemon, err := pk.ConnectSystemBus()
	if err != nil {
		log.Error("cannot reach package-manager daemon", logging.KeyError, err)
		os.Exit(1)
	}
	defer daemon.Close()

	store, err := statestore.Open(cfg.StateDir)
	if err != nil {
		log.Warn("state store unavailable, refresh stamps will not persist", logging.KeyError, err)
		store = nil
	}

	var monitor sensors.Monitor
	if cfg.DisableSensors {
		monitor = sensors.Static{State: sensors.State{Online: true}}
	} else {
		monitor = sensors.New()
	}

	feed := statusfeed.New()
	a := agent.New(cfg, daemon, monitor, store, feed)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      a.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // feed connections stay open
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("status feed listener failed", logging.KeyError, err)
			os.Exit(1)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info("shutting down")
	case err := <-done:
		if err != nil {
			log.Error("agent stopped", logging.KeyError, err)
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
}

func requestCheck() {
	cfg := loadConfig()

	body, _ := json.Marshal(map[string]bool{"force": force, "manual": true})
	url := fmt.Sprintf("http://%s/v1/updates/check", cfg.ListenAddr)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Agent not reachable at %s: %v\n", cfg.ListenAddr, err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		fmt.Fprintf(os.Stderr, "Check request rejected: %s\n", resp.Status)
		os.Exit(1)
	}
	fmt.Println("Check requested.")
}

func checkStatus() {
	cfg := loadConfig()

	url := fmt.Sprintf("http://%s/v1/updates/snapshot", cfg.ListenAddr)
	resp, err := http.Get(url)
	if err != nil {
		fmt.Println("Status: agent not running")
		return
	}
	defer resp.Body.Close()

	var snap updates.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		fmt.Fprintf(os.Stderr, "Bad response from agent: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Status: %s\n", snap.Message)
	if snap.IsActive {
		fmt.Printf("Activity: %s (%d%%)\n", snap.StatusMessage, snap.Percentage)
	}
	if !snap.LastCheckTime.IsZero() {
		fmt.Printf("Last checked: %s\n", snap.LastCheckTime.Format(time.RFC1123))
	}
	if snap.Count > 0 {
		fmt.Printf("Pending: %d updates (%d security, %d important)\n",
			snap.Count, snap.SecurityCount, snap.ImportantCount)
		for id, summary := range snap.Packages {
			fmt.Printf("  %s  %s\n", id, summary)
		}
	}
}
