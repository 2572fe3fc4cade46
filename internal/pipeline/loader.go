package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"spacegun/internal/config"
	"spacegun/pkg/logging"

	"gopkg.in/yaml.v3"
)

const category = "pipelines"

// Parse decodes and validates one pipeline. The name is taken from the
// caller, never from the document.
func Parse(name string, data []byte) (*PipelineDescription, error) {
	var p PipelineDescription
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("pipeline %s is empty", name)
		}
		return nil, fmt.Errorf("failed to parse pipeline %s: %w", name, err)
	}
	p.Name = name

	if err := Validate(&p); err != nil {
		return nil, config.FormatValidationError("pipeline", name, err)
	}
	return &p, nil
}

// LoadFile reads a pipeline file. The pipeline is named after the file stem.
func LoadFile(path string) (*PipelineDescription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file %s: %w", path, err)
	}
	return Parse(stem(path), data)
}

// LoadDir loads every pipeline file in dir. Invalid files are reported in the
// returned collection and skipped; the valid pipelines are still returned,
// sorted by name.
func LoadDir(dir string) ([]*PipelineDescription, *config.ConfigurationErrorCollection) {
	errs := config.NewConfigurationErrorCollection()

	files, err := config.ListYAMLFiles(dir)
	if err != nil {
		errs.AddError(dir, filepath.Base(dir), category, "io", err.Error())
		return nil, errs
	}

	seen := make(map[string]string, len(files))
	pipelines := make([]*PipelineDescription, 0, len(files))
	for _, file := range files {
		name := stem(file)
		if previous, ok := seen[name]; ok {
			errs.AddError(file, filepath.Base(file), category, "validation",
				fmt.Sprintf("pipeline %s is already defined by %s", name, filepath.Base(previous)))
			continue
		}
		seen[name] = file

		p, err := LoadFile(file)
		if err != nil {
			errorType := "parse"
			var verrs config.ValidationErrors
			if errors.As(err, &verrs) {
				errorType = "validation"
			}
			errs.AddError(file, filepath.Base(file), category, errorType, err.Error())
			continue
		}
		pipelines = append(pipelines, p)
	}

	sort.Slice(pipelines, func(i, j int) bool { return pipelines[i].Name < pipelines[j].Name })
	logging.Debug("PipelineLoader", "Loaded %d pipelines from %s (%d errors)", len(pipelines), dir, errs.Count())
	return pipelines, errs
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
