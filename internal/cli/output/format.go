package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Format represents the output format type.
type Format string

const (
	// FormatTable outputs data in a formatted table.
	FormatTable Format = "table"
	// FormatJSON outputs data as JSON.
	FormatJSON Format = "json"
)

// ParseFormat parses a string into a Format, returning an error if invalid.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("invalid output format: %q (valid: table, json)", s)
	}
}

// PrintJSON marshals data as indented JSON to w.
func PrintJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// Print writes data in format: a table if data implements TableRenderer and
// format is FormatTable, JSON otherwise.
func Print(w io.Writer, format Format, data any) error {
	if format == FormatTable {
		if renderer, ok := data.(TableRenderer); ok {
			return PrintTable(w, renderer)
		}
	}
	return PrintJSON(w, data)
}
