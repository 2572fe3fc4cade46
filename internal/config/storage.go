package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"spacegun/pkg/logging"
)

// Storage persists named YAML blobs below a root directory. A category is a
// slash separated subdirectory such as "snapshots/live/service".
type Storage struct {
	mu       sync.RWMutex
	basePath string
}

// NewStorageWithPath creates a Storage rooted at basePath.
func NewStorageWithPath(basePath string) *Storage {
	return &Storage{basePath: basePath}
}

// Save stores data as <category>/<name>.yaml, replacing an existing file.
func (ds *Storage) Save(category string, name string, data []byte) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	targetDir, err := ds.resolveDir(category)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", targetDir, err)
	}

	filePath := filepath.Join(targetDir, sanitizeFilename(name)+".yaml")
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", filePath, err)
	}

	logging.Info("Storage", "Saved %s/%s to %s", category, name, filePath)
	return nil
}

// Load returns the content stored under category and name.
func (ds *Storage) Load(category string, name string) ([]byte, error) {
	if name == "" {
		return nil, fmt.Errorf("name cannot be empty")
	}

	ds.mu.RLock()
	defer ds.mu.RUnlock()

	dir, err := ds.resolveDir(category)
	if err != nil {
		return nil, err
	}
	filePath, err := findFile(dir, sanitizeFilename(name))
	if err != nil {
		return nil, fmt.Errorf("entity %s/%s not found", category, name)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	logging.Debug("Storage", "Loaded %s/%s from %s", category, name, filePath)
	return data, nil
}

// List returns the sorted names stored under category. A missing category
// is empty.
func (ds *Storage) List(category string) ([]string, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	dir, err := ds.resolveDir(category)
	if err != nil {
		return nil, err
	}
	files, err := ListYAMLFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", category, err)
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		base := filepath.Base(f)
		names = append(names, strings.TrimSuffix(base, filepath.Ext(base)))
	}
	sort.Strings(names)
	return names, nil
}

// resolveDir maps category to a directory inside basePath.
func (ds *Storage) resolveDir(category string) (string, error) {
	if ds.basePath == "" {
		return "", fmt.Errorf("storage has no base path")
	}
	clean := filepath.Clean(filepath.FromSlash("/" + category))
	dir := filepath.Join(ds.basePath, clean)
	if rel, err := filepath.Rel(ds.basePath, dir); err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("invalid category %q", category)
	}
	return dir, nil
}

// ListYAMLFiles lists the .yaml and .yml files of dir. A missing directory
// yields no files.
func ListYAMLFiles(dir string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []string{}, nil
	}

	yamlFiles, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob yaml files: %w", err)
	}
	ymlFiles, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob yml files: %w", err)
	}

	files := append(yamlFiles, ymlFiles...)
	sort.Strings(files)
	return files, nil
}

func findFile(dir, stem string) (string, error) {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(dir, stem+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", os.ErrNotExist
}

// sanitizeFilename ensures the filename is safe for filesystem operations
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_",
	)
	sanitized := replacer.Replace(name)

	// Collapse multiple consecutive underscores to single underscore
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "_.")

	if sanitized == "" {
		sanitized = "unnamed"
	}
	return sanitized
}
