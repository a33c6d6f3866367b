package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"smartbuy/config"
)

var (
	envFile string
	cfg     *config.Config
	logger  = newLogger()
	rootCmd = &cobra.Command{
		Use:   "smartbuy",
		Short: "Real-estate market pattern analysis",
		Long: `smartbuy imports Dubai Land Department transaction exports, derives
quarterly price and volume trends per selection, matches them against a
market pattern table and serves the results over HTTP.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(geocodeCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetOutput(os.Stdout)
	return l
}

func initConfig(_ *cobra.Command, _ []string) error {
	loaded, err := config.LoadConfig(envFile)
	if err != nil {
		return err
	}
	cfg = loaded

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	logger.SetLevel(level)
	return nil
}
