// Package cmd implements the command-line interface of the scraper.
package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"earth911/internal/config"
	"earth911/internal/logger"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// Debug enables debug logging for all commands.
	Debug bool

	rootCmd = &cobra.Command{
		Use:   "earth911",
		Short: "Scrape recycling facilities from the Earth911 locator",
		Long: `earth911 drives a headless browser through the Earth911 recycling
search, opens the first few facilities and saves their name, last update
date, street address and accepted materials.

Running it without a subcommand performs a scrape with the default query.`,
		SilenceUsage: true,
		RunE:         runScrapeCommand,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "enable debug logging")
	addScrapeFlags(rootCmd)

	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(cacheCmd)
}

// setup loads configuration (with the flags of cmd bound over it) and builds
// a logger tagged with a fresh run id.
func setup(cmd *cobra.Command, bind map[string]string) (*config.Config, logger.Interface, error) {
	v := viper.New()
	if err := config.Setup(v, cfgFile); err != nil {
		return nil, nil, err
	}
	for key, flag := range bind {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	if Debug {
		v.Set("app.debug", true)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, log.With("run_id", uuid.NewString()), nil
}
