package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"earth911/internal/extract"
	"earth911/internal/facility"
	"earth911/internal/logger"
	"earth911/internal/session"
	"earth911/internal/sink"
)

var extractCmd = &cobra.Command{
	Use:   "extract FILE",
	Short: "Run the field extractor on a saved detail page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, log, err := setup(cmd, nil)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		format, _ := cmd.Flags().GetString("format")
		rec, err := runExtract(cmd.Context(), args[0], log)
		if err != nil {
			return err
		}
		return printRecord(cmd.OutOrStdout(), sink.Format(format), rec)
	},
}

func init() {
	extractCmd.Flags().String("format", string(sink.FormatJSON), "output format: csv, json, yaml or xml")
}

// runExtract reads an HTML file and extracts a record from it.
func runExtract(ctx context.Context, path string, log logger.Interface) (facility.Record, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return facility.Record{}, fmt.Errorf("read %s: %w", path, err)
	}

	u := "file://" + path
	d, err := session.NewStatic(map[string]string{u: string(body)})
	if err != nil {
		return facility.Record{}, err
	}
	defer d.Close()
	if err := d.Load(ctx, u); err != nil {
		return facility.Record{}, err
	}

	return extract.New(extract.DefaultRules(), log).Extract(ctx, d), nil
}

func printRecord(w io.Writer, format sink.Format, rec facility.Record) error {
	return sink.Encode(w, format, []facility.Record{rec})
}
