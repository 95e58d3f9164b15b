package main

import (
	"fmt"
	"os"

	"github.com/danmuck/newswire/internal/config"
	"github.com/danmuck/newswire/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "newsd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "newsd",
		Short: "Serve the news session protocol over TCP",
		Long: `newsd accepts newsclient connections, walks each one through the
headlines and sources menus, and answers queries from NewsAPI.

Examples:
  newsd                                   # listen on 127.0.0.1:5000
  newsd --config cmd/newsd/config.toml    # load settings from TOML
  NEWS_API_KEY=... newsd --addr :5000 --admin-addr :9100`,
		SilenceUsage: true,
		RunE:         runServe,
	}
	cmd.Flags().String("config", "", "path to a TOML config file")
	cmd.Flags().String("addr", "", "listen address (overrides config)")
	cmd.Flags().String("admin-addr", "", "admin HTTP address (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	logging.ConfigureRuntime()

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServerConfig(path)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Addr, _ = cmd.Flags().GetString("addr")
	}
	if cmd.Flags().Changed("admin-addr") {
		cfg.AdminAddr, _ = cmd.Flags().GetString("admin-addr")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.NewsAPI.APIKey == "" {
		log.Warn().Msg("newsd: NEWS_API_KEY is not set; every query will answer with an error payload")
	}

	svc := buildService(cfg)
	return svc.Run()
}
