package formatting

import (
	"encoding/json"
	"fmt"
)

// JSONFormatter writes indented JSON. Image URLs keep their '&' and '<'
// unescaped.
type JSONFormatter struct {
	options Options
}

func (f *JSONFormatter) Write(data interface{}, _ View) error {
	enc := json.NewEncoder(f.options.Out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to encode output as json: %w", err)
	}
	return nil
}
