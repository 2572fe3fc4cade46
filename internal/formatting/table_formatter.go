package formatting

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"spacegun/pkg/strings"
)

// maxCellWidth truncates long cells such as error messages.
const maxCellWidth = 100

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

func (f *TableFormatter) Write(_ interface{}, view View) error {
	if len(view.Rows) == 0 {
		message := view.Empty
		if message == "" {
			message = "No items found"
		}
		_, err := fmt.Fprintln(f.options.Out, f.colorize(text.FgYellow, message))
		return err
	}

	t := f.createTable()
	header := make(table.Row, 0, len(view.Headers))
	for _, h := range view.Headers {
		header = append(header, f.colorize(text.FgHiCyan, h))
	}
	t.AppendHeader(header)
	for _, row := range view.Rows {
		r := make(table.Row, 0, len(row))
		for _, cell := range row {
			r = append(r, truncate(cell))
		}
		t.AppendRow(r)
	}
	t.Render()
	return nil
}

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.options.Out)
	t.SetStyle(table.StyleRounded)
	return t
}

func (f *TableFormatter) colorize(color text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return color.Sprint(s)
}

func truncate(s string) string {
	return strings.Truncate(s, maxCellWidth)
}
