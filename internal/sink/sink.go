// Package sink persists extracted facility records.
package sink

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"earth911/internal/facility"
	"earth911/internal/logger"
)

// Writer persists a batch of records.
type Writer interface {
	Write(records []facility.Record) error
}

// Format is an output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXML  Format = "xml"
)

// FormatFor picks the format from a file extension, defaulting to CSV.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".xml":
		return FormatXML
	default:
		return FormatCSV
	}
}

// File writes records to a file, replacing any previous content.
type File struct {
	Path   string
	Format Format
	log    logger.Interface
}

// NewFile creates a File sink whose format follows the path extension.
func NewFile(path string, log logger.Interface) *File {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &File{Path: path, Format: FormatFor(path), log: log.WithComponent("sink")}
}

// Write saves records. An empty batch leaves the file untouched.
func (f *File) Write(records []facility.Record) error {
	if len(records) == 0 {
		f.log.Warn("No data to save")
		return nil
	}

	out, err := os.Create(f.Path)
	if err != nil {
		return fmt.Errorf("create %s: %w", f.Path, err)
	}
	if err := Encode(out, f.Format, records); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", f.Path, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", f.Path, err)
	}

	f.log.Info("Data saved", "path", f.Path, "format", string(f.Format), "records", len(records))
	return nil
}

// Encode writes records to w in the given format.
func Encode(w io.Writer, format Format, records []facility.Record) error {
	switch format {
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(facility.Header); err != nil {
			return err
		}
		for _, r := range records {
			if err := cw.Write(r.Fields()); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case FormatYAML:
		out, err := yaml.Marshal(records)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	case FormatXML:
		if _, err := io.WriteString(w, xml.Header); err != nil {
			return err
		}
		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")
		if err := enc.Encode(facility.Records{Facilities: records}); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n")
		return err
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}
