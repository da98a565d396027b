package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"earth911/internal/cache"
	"earth911/internal/config"
	"earth911/internal/extract"
	"earth911/internal/facility"
	"earth911/internal/locate"
	"earth911/internal/logger"
	"earth911/internal/navigate"
	"earth911/internal/report"
	"earth911/internal/session"
	"earth911/internal/sink"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape facilities and save them to a file",
	Example: `  earth911 scrape
  earth911 scrape --term Batteries --location 94103 --radius 25 --max 5 --out facilities.json`,
	Args: cobra.NoArgs,
	RunE: runScrapeCommand,
}

var scrapeFlagKeys = map[string]string{
	"search.term":           "term",
	"search.location":       "location",
	"search.radius_miles":   "radius",
	"scrape.max_facilities": "max",
	"output.path":           "out",
}

func init() {
	addScrapeFlags(scrapeCmd)
}

func addScrapeFlags(c *cobra.Command) {
	addSearchFlags(c)
	c.Flags().Int("max", 3, "maximum number of facilities to scrape")
	c.Flags().String("out", config.DefaultOutput, "output file; .csv, .json, .yaml or .xml")
	c.Flags().Bool("refresh", false, "ignore cached results")
}

// addSearchFlags registers the flags that shape the listing URL.
func addSearchFlags(c *cobra.Command) {
	c.Flags().String("term", "Electronics", "material to search for")
	c.Flags().String("location", "10001", "ZIP code or place to search around")
	c.Flags().Int("radius", 100, "search radius in miles")
}

// driverFactory opens the browser session for a run.
type driverFactory func(ctx context.Context) (session.Driver, error)

func runScrapeCommand(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd, scrapeFlagKeys)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	refresh, _ := cmd.Flags().GetBool("refresh")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := cache.NewCache(cfg.CacheSettings(), log)
	if err != nil {
		log.Warn("Cache unavailable, continuing without it", "error", err)
		store = cache.Noop{}
	}
	defer store.Close()

	open := func(ctx context.Context) (session.Driver, error) {
		return session.NewChrome(ctx, cfg.ChromeOptions())
	}
	return runScrape(ctx, cfg, open, store, refresh, log, cmd.OutOrStdout())
}

// runScrape serves the query from the cache when possible, otherwise runs
// the browser loop, then saves and summarises the records.
func runScrape(
	ctx context.Context,
	cfg *config.Config,
	open driverFactory,
	store cache.Cache,
	refresh bool,
	log logger.Interface,
	out io.Writer,
) error {
	key := cfg.CacheKey()
	log.Info("Searching for recycling facilities",
		"term", cfg.Search.Term,
		"location", cfg.Search.Location,
		"radius_miles", cfg.Search.RadiusMiles,
		"max", cfg.Scrape.MaxFacilities,
	)

	if !refresh {
		records, created, err := store.Get(key)
		if err != nil {
			log.Warn("Error getting from cache", "error", err)
		}
		if records != nil {
			log.Info("Cache hit", "key", key, "stored", created)
			return finish(cfg, records, "cache", log, out)
		}
		log.Debug("Cache miss", "key", key)
	}

	d, err := open(ctx)
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			log.Warn("Closing browser failed", "error", err)
		}
	}()

	ctrl, err := navigate.New(d,
		locate.New(log),
		extract.New(extract.DefaultRules(), log),
		cfg.Navigation(),
		log,
	)
	if err != nil {
		return err
	}

	rep := ctrl.Run(ctx)
	log.Info(rep.Summary())

	if len(rep.Records) > 0 {
		if err := store.Set(key, rep.Records, cfg.Cache.TTL); err != nil {
			log.Warn("Error setting cache", "error", err)
		}
	}
	if err := finish(cfg, rep.Records, "browser", log, out); err != nil {
		return err
	}
	if errors.Is(rep.Err, context.Canceled) {
		return rep.Err
	}
	return nil
}

func finish(cfg *config.Config, records []facility.Record, source string, log logger.Interface, out io.Writer) error {
	if err := sink.NewFile(cfg.Output.Path, log).Write(records); err != nil {
		return err
	}
	return report.Write(out, report.Summary{
		Requested: cfg.Scrape.MaxFacilities,
		Records:   records,
		Source:    source,
	})
}
