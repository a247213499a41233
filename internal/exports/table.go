// Package exports produces CSV and JSON downloads of an organization's event data.
package exports

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/campusreach/backend/internal/models"
)

// Table is an export before encoding: a header plus string rows of the same width.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ValidKind reports whether kind is a known export kind.
func ValidKind(kind string) bool {
	return kind == models.ExportKindSignups || kind == models.ExportKindChat || kind == models.ExportKindRatings
}

// ValidFormat reports whether format is a known export format.
func ValidFormat(format string) bool {
	return format == models.ExportFormatCSV || format == models.ExportFormatJSON
}

// ContentType returns the MIME type of an encoded export.
func ContentType(format string) string {
	if format == models.ExportFormatJSON {
		return "application/json"
	}
	return "text/csv"
}

// Encode writes t to w in format. JSON output is an array of objects keyed by column.
func Encode(w io.Writer, format string, t *Table) error {
	switch format {
	case models.ExportFormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(t.Columns); err != nil {
			return err
		}
		if err := cw.WriteAll(t.Rows); err != nil {
			return err
		}
		return cw.Error()
	case models.ExportFormatJSON:
		records := make([]map[string]string, 0, len(t.Rows))
		for _, row := range t.Rows {
			rec := make(map[string]string, len(t.Columns))
			for i, col := range t.Columns {
				if i < len(row) {
					rec[col] = row[i]
				}
			}
			records = append(records, rec)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}
