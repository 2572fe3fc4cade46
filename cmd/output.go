package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"spacegun/internal/domain"
	"spacegun/internal/formatting"
)

// write prints data with the formatter selected by --output. Tables use view.
func write(cmd *cobra.Command, data interface{}, view formatting.View) error {
	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	return f.Write(data, view)
}

func imageCell(image *domain.Image) string {
	if image == nil {
		return "-"
	}
	if image.Tag == "" {
		return image.Name
	}
	return image.Name + ":" + image.Tag
}

func timeCell(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func timesCell(times []time.Time) string {
	cells := make([]string, 0, len(times))
	for i := range times {
		cells = append(cells, timeCell(&times[i]))
	}
	return strings.Join(cells, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
