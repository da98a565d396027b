package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"earth911/internal/locate"
	"earth911/internal/logger"
	"earth911/internal/navigate"
	"earth911/internal/session"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Save the rendered HTML of a search page for offline use",
	Long: `capture loads a page in the browser, waits for it to settle and writes
the rendered document to a file. The result can be fed to the extract
command or used as a test fixture.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup(cmd, scrapeFlagKeys)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		target, _ := cmd.Flags().GetString("url")
		if target == "" {
			target = cfg.ListingURL()
		}
		path, _ := cmd.Flags().GetString("file")

		d, err := session.NewChrome(cmd.Context(), cfg.ChromeOptions())
		if err != nil {
			return fmt.Errorf("start browser: %w", err)
		}
		defer d.Close()

		if err := runCapture(cmd.Context(), d, target, cfg.Timing.ListingSettle, path, log); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Captured %s to %s\n", target, path)
		return nil
	},
}

func init() {
	addSearchFlags(captureCmd)
	captureCmd.Flags().String("url", "", "page to capture (default is the listing for the query flags)")
	captureCmd.Flags().String("file", "testdata/listing.html", "file to write")
}

// runCapture loads target, waits up to settle for facilities to appear and
// writes the document to path.
func runCapture(ctx context.Context, d session.Driver, target string, settle time.Duration, path string, log logger.Interface) error {
	log.Info("Navigating to page", "url", target)
	if err := d.Load(ctx, target); err != nil {
		return err
	}

	l := locate.New(log)
	if !navigate.WaitUntil(ctx, settle, func() bool { return l.Ready(ctx, d) }) {
		log.Warn("No facilities appeared before capturing", "url", target)
	}

	raw, err := d.RawHTML(ctx)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Info("Successfully captured HTML", "path", path, "bytes", len(raw))
	return nil
}
