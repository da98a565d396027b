package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"earth911/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear cached scrape results",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many results are cached",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		return cacheStats(store, cmd.OutOrStdout())
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached result",
	Long: `clear removes every cached result set. With the memcached backend this
flushes the whole server, including keys written by other applications.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		return cacheClear(store, cmd.OutOrStdout())
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func openCache(cmd *cobra.Command) (cache.Cache, error) {
	cfg, log, err := setup(cmd, nil)
	if err != nil {
		return nil, err
	}
	store, err := cache.NewCache(cfg.CacheSettings(), log)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return store, nil
}

func cacheStats(store cache.Cache, out io.Writer) error {
	n, err := store.Count()
	if errors.Is(err, errors.ErrUnsupported) {
		_, err = fmt.Fprintln(out, "This cache backend cannot count its entries.")
		return err
	}
	if err != nil {
		return fmt.Errorf("count cache entries: %w", err)
	}
	_, err = fmt.Fprintf(out, "Cache contains %d live result sets.\n", n)
	return err
}

func cacheClear(store cache.Cache, out io.Writer) error {
	if err := store.Clear(); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	_, err := fmt.Fprintln(out, "Cache cleared.")
	return err
}
