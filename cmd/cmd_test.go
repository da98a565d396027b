package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"earth911/internal/cache"
	"earth911/internal/config"
	"earth911/internal/facility"
	"earth911/internal/fixture"
	"earth911/internal/logger"
	"earth911/internal/session"
)

const wantCSV = "Business_name,last_update_date,street_address,materials_accepted\n" +
	"EcoDrop Center,2024-03-01,\"123 Main St, New York, NY 10001\",\"Electronics, Batteries\"\n" +
	"Green Cycle Depot,01/15/2024,\"45 Elm Avenue, Brooklyn, NY 11201\",\"Computers, Cell Phones\"\n"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	v := viper.New()
	require.NoError(t, config.Setup(v, ""))
	cfg, err := config.Load(v)
	require.NoError(t, err)

	cfg.Output.Path = filepath.Join(t.TempDir(), "recycling_facilities.csv")
	cfg.Timing = config.TimingConfig{}
	require.Equal(t, fixture.ListingURL, cfg.ListingURL())
	return cfg
}

func staticFactory(t *testing.T, listing string, opened *int) driverFactory {
	t.Helper()
	return func(context.Context) (session.Driver, error) {
		*opened++
		return session.NewStatic(fixture.Site(listing))
	}
}

func TestRunScrape(t *testing.T) {
	cfg := testConfig(t)
	var opened int
	var out bytes.Buffer

	err := runScrape(context.Background(), cfg, staticFactory(t, fixture.Listing, &opened), cache.Noop{}, false, logger.NewNoOp(), &out)
	require.NoError(t, err)

	got, err := os.ReadFile(cfg.Output.Path)
	require.NoError(t, err)
	assert.Equal(t, wantCSV, string(got))
	assert.Equal(t, 1, opened)
	assert.Contains(t, out.String(), "EcoDrop Center")
}

func TestRunScrapeWithoutResults(t *testing.T) {
	cfg := testConfig(t)
	var opened int
	var out bytes.Buffer

	err := runScrape(context.Background(), cfg, staticFactory(t, fixture.ListingEmpty, &opened), cache.Noop{}, false, logger.NewNoOp(), &out)
	require.NoError(t, err)

	_, err = os.Stat(cfg.Output.Path)
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, out.String(), "0 of 3 requested")
}

func TestRunScrapeBrowserFailure(t *testing.T) {
	cfg := testConfig(t)
	boom := errors.New("no chromium")
	open := func(context.Context) (session.Driver, error) { return nil, boom }

	err := runScrape(context.Background(), cfg, open, cache.Noop{}, false, logger.NewNoOp(), &bytes.Buffer{})

	require.ErrorIs(t, err, boom)
}

func TestRunScrapeSinkFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Path = filepath.Join(t.TempDir(), "missing", "out.csv")
	var opened int

	err := runScrape(context.Background(), cfg, staticFactory(t, fixture.Listing, &opened), cache.Noop{}, false, logger.NewNoOp(), &bytes.Buffer{})

	require.Error(t, err)
}

func TestRunScrapeUsesCache(t *testing.T) {
	cfg := testConfig(t)
	store, err := cache.NewSqliteCache(filepath.Join(t.TempDir(), "earth911.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	var opened int
	open := staticFactory(t, fixture.Listing, &opened)
	ctx := context.Background()

	require.NoError(t, runScrape(ctx, cfg, open, store, false, logger.NewNoOp(), &bytes.Buffer{}))
	require.NoError(t, os.Remove(cfg.Output.Path))

	var out bytes.Buffer
	require.NoError(t, runScrape(ctx, cfg, open, store, false, logger.NewNoOp(), &out))
	assert.Equal(t, 1, opened)
	assert.Contains(t, strings.ToLower(out.String()), "(cache)")

	got, err := os.ReadFile(cfg.Output.Path)
	require.NoError(t, err)
	assert.Equal(t, wantCSV, string(got))

	require.NoError(t, runScrape(ctx, cfg, open, store, true, logger.NewNoOp(), &bytes.Buffer{}))
	assert.Equal(t, 2, opened)
}

func TestRunScrapeCanceled(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var opened int

	err := runScrape(ctx, cfg, staticFactory(t, fixture.Listing, &opened), cache.Noop{}, false, logger.NewNoOp(), &bytes.Buffer{})

	require.ErrorIs(t, err, context.Canceled)
}

func TestRunExtract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detail.html")
	require.NoError(t, os.WriteFile(path, []byte(fixture.Page("green_cycle_depot.html")), 0o600))

	rec, err := runExtract(context.Background(), path, logger.NewNoOp())
	require.NoError(t, err)
	assert.Equal(t, "Green Cycle Depot", rec.Name)
	assert.Equal(t, "Computers, Cell Phones", rec.MaterialsAccepted)

	var out bytes.Buffer
	require.NoError(t, printRecord(&out, "json", rec))
	assert.Contains(t, out.String(), `"Business_name": "Green Cycle Depot"`)

	_, err = runExtract(context.Background(), filepath.Join(t.TempDir(), "absent.html"), logger.NewNoOp())
	require.Error(t, err)
}

func TestRunCapture(t *testing.T) {
	d, err := session.NewStatic(fixture.Site(fixture.Listing))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "captures", "listing.html")

	require.NoError(t, runCapture(context.Background(), d, fixture.ListingURL, time.Second, path, logger.NewNoOp()))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(got), "result-location")
}

func TestCaptureFlags(t *testing.T) {
	for _, name := range []string{"term", "location", "radius", "url", "file"} {
		assert.NotNil(t, captureCmd.Flags().Lookup(name), name)
	}
	for _, name := range []string{"max", "out", "refresh"} {
		assert.Nil(t, captureCmd.Flags().Lookup(name), name)
	}
}

func TestCacheCommands(t *testing.T) {
	store, err := cache.NewSqliteCache(filepath.Join(t.TempDir(), "earth911.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Set("k", []facility.Record{facility.New("EcoDrop Center", "", "", "")}, time.Hour))

	var out bytes.Buffer
	require.NoError(t, cacheStats(store, &out))
	assert.Equal(t, "Cache contains 1 live result sets.\n", out.String())

	out.Reset()
	require.NoError(t, cacheClear(store, &out))
	assert.Equal(t, "Cache cleared.\n", out.String())

	out.Reset()
	require.NoError(t, cacheStats(store, &out))
	assert.Equal(t, "Cache contains 0 live result sets.\n", out.String())
}

type countlessCache struct{ cache.Noop }

func (countlessCache) Count() (int, error) { return 0, errors.ErrUnsupported }

func TestCacheStatsUnsupported(t *testing.T) {
	var out bytes.Buffer

	require.NoError(t, cacheStats(countlessCache{}, &out))

	assert.Contains(t, out.String(), "cannot count")
}
