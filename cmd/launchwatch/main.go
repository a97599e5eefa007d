package main

import (
	"fmt"
	"os"

	"github.com/liamashdown/launchwatch/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "launchwatch",
	Short: "Scores new token launches and alerts on the best of them",
	Long: `launchwatch polls launch feeds for Solana, Ethereum, BNB Chain and Base,
scores every new token, and sends a paced daily quota of alerts spread
over the day.`,
	SilenceUsage: true,
	RunE:         runService,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the discovery and alerting service",
	RunE:  runService,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(scoreCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the JSON logger used by every command
func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// loadConfig loads the configuration and a logger at its level
func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, newLogger(cfg.LogLevel), nil
}
