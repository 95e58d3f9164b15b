package main

import (
	"fmt"
	"os"

	"github.com/danmuck/newswire/internal/config"
	"github.com/danmuck/newswire/internal/console"
	"github.com/danmuck/newswire/internal/logging"
	"github.com/danmuck/newswire/internal/protocol/session"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "newsclient: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "newsclient",
		Short: "Browse headlines and sources from a newsd server",
		Long: `newsclient connects to newsd and walks the headlines and sources menus
interactively.

Examples:
  newsclient                          # connect to 127.0.0.1:5000
  newsclient --addr news.lan:5000 --name Alice`,
		SilenceUsage: true,
		RunE:         runClient,
	}
	cmd.Flags().String("config", "", "path to a TOML config file")
	cmd.Flags().String("addr", "", "server address (overrides config)")
	cmd.Flags().String("name", "", "display name (skips the name prompt)")
	return cmd
}

func loadConfig(cmd *cobra.Command) (config.ClientConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadClientConfig(path)
	if err != nil {
		return config.ClientConfig{}, err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Addr, _ = cmd.Flags().GetString("addr")
	}
	if cmd.Flags().Changed("name") {
		cfg.Name, _ = cmd.Flags().GetString("name")
	}
	return cfg, cfg.Validate()
}

func runClient(cmd *cobra.Command, _ []string) error {
	logging.ConfigureRuntime()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	transport := session.DefaultConfig()
	transport.MaxConnectAttempts = cfg.ConnectAttempts
	transport.ConnectTimeout = cfg.ConnectTimeout

	client, err := session.Dial(cmd.Context(), cfg.Addr, transport)
	if err != nil {
		return err
	}
	defer client.Close()

	app := console.New(client, cmd.InOrStdin(), cmd.OutOrStdout(), console.Options{
		Name:      cfg.Name,
		ListLimit: cfg.ListLimit,
	})
	return app.Run()
}
