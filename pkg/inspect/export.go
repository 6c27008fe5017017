package inspect

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/getmockd/apidiag/pkg/apilog"
)

// ExportFormat selects the output of Export.
type ExportFormat string

// Export formats.
const (
	FormatJSON ExportFormat = "json"
	FormatHAR  ExportFormat = "har"
)

// ParseExportFormat parses a format name. The empty string is FormatJSON.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatHAR:
		return FormatHAR, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want json or har)", s)
	}
}

// ExportJSON writes entries as an indented JSON array. Entries are already
// redacted, so the output is safe to share.
func ExportJSON(w io.Writer, entries []apilog.Entry) error {
	if entries == nil {
		entries = []apilog.Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("export json: %w", err)
	}
	return nil
}

// WriteHAR writes entries as an indented HAR document.
func WriteHAR(w io.Writer, entries []apilog.Entry, creatorVersion string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ToHAR(entries, creatorVersion)); err != nil {
		return fmt.Errorf("export har: %w", err)
	}
	return nil
}

// Export writes entries in the given format.
func Export(w io.Writer, format ExportFormat, entries []apilog.Entry, creatorVersion string) error {
	switch format {
	case FormatHAR:
		return WriteHAR(w, entries, creatorVersion)
	case FormatJSON, "":
		return ExportJSON(w, entries)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
