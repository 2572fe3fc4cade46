package formatting

import (
	"gopkg.in/yaml.v3"
)

// YAMLFormatter writes YAML documents.
type YAMLFormatter struct {
	options Options
}

func (f *YAMLFormatter) Write(data interface{}, _ View) error {
	enc := yaml.NewEncoder(f.options.Out)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}
