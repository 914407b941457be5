package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"dailytales/internal/app"
)

var (
	cfgPath  string
	envFile  string
	logLevel string
	asJSON   bool
)

var rootCmd = &cobra.Command{
	Use:   "dailytales",
	Short: "Daily story prompt dispatcher for Telegram",
	Long: `dailytales generates a title and description for a story category,
formats a /create message and delivers it to a Telegram chat through a bot
token or a user session. It keeps a history of sent messages and can send
one automatically every day.

Run "dailytales serve" for the daemon (scheduler, operator bot, HTTP API).
The other commands act once against the same config and storage.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgPath, "config", "c", "./config.json", "path to config.json or config.yaml")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	pf.StringVar(&logLevel, "log-level", "", "override logging.level")
	pf.BoolVar(&asJSON, "json", false, "print results as JSON")

	rootCmd.AddCommand(serveCmd, sendCmd, autoCmd, historyCmd, statsCmd, settingsCmd)
}

// openOneShot builds the dispatch pipeline without daemon components.
func openOneShot(ctx context.Context) (*app.App, error) {
	level := logLevel
	if level == "" {
		level = "warn"
	}
	return app.New(ctx, cfgPath, app.WithoutDaemon(), app.WithLogLevel(level))
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
