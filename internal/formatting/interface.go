// Package formatting renders command output as a table, JSON or YAML.
package formatting

import (
	"fmt"
	"io"
	"os"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// Formats lists the accepted --output values.
var Formats = []OutputFormat{FormatTable, FormatJSON, FormatYAML}

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Color  bool // Enable colored output
	Out    io.Writer
}

// View is the tabular rendering of a result.
type View struct {
	Headers []string
	Rows    [][]string
	// Empty is printed instead of an empty table.
	Empty string
}

// Formatter writes a result. Structured formats encode data, the table
// format renders view.
type Formatter interface {
	Write(data interface{}, view View) error
}

// New creates the formatter for options.Format.
func New(options Options) (Formatter, error) {
	if options.Out == nil {
		options.Out = os.Stdout
	}
	switch options.Format {
	case FormatJSON:
		return &JSONFormatter{options: options}, nil
	case FormatYAML:
		return &YAMLFormatter{options: options}, nil
	case FormatTable, "":
		return &TableFormatter{options: options}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q, expected one of %v", options.Format, Formats)
	}
}
