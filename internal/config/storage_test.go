package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_SaveLoadList(t *testing.T) {
	tempDir := t.TempDir()
	ds := NewStorageWithPath(tempDir)

	require.NoError(t, ds.Save("snapshots/live/service", "2024-06-01", []byte("a: 1")))
	require.NoError(t, ds.Save("snapshots/live/service", "2024-05-01", []byte("a: 2")))

	_, err := os.Stat(filepath.Join(tempDir, "snapshots", "live", "service", "2024-06-01.yaml"))
	require.NoError(t, err)

	names, err := ds.List("snapshots/live/service")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-05-01", "2024-06-01"}, names)

	data, err := ds.Load("snapshots/live/service", "2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, "a: 1", string(data))
}

func TestStorage_Errors(t *testing.T) {
	ds := NewStorageWithPath(t.TempDir())

	tests := []struct {
		name        string
		run         func() error
		errContains string
	}{
		{
			name:        "save empty name",
			run:         func() error { return ds.Save("pipelines", "", nil) },
			errContains: "name cannot be empty",
		},
		{
			name: "load missing",
			run: func() error {
				_, err := ds.Load("pipelines", "nonexistent")
				return err
			},
			errContains: "not found",
		},
		{
			name:        "no base path",
			run:         func() error { return NewStorageWithPath("").Save("x", "y", nil) },
			errContains: "no base path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestStorage_CategoryCannotEscape(t *testing.T) {
	base := t.TempDir()
	ds := NewStorageWithPath(base)

	require.NoError(t, ds.Save("../../outside", "x", []byte("x")))
	_, err := os.Stat(filepath.Join(base, "outside", "x.yaml"))
	assert.NoError(t, err, "category is confined to the base path")
}

func TestStorage_ListMissingCategory(t *testing.T) {
	names, err := NewStorageWithPath(t.TempDir()).List("nothing")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"simple":                  "simple",
		"with/slash":              "with_slash",
		"a:b*c?d":                 "a_b_c_d",
		"2024-06-01T12:00:00Z":    "2024-06-01T12_00_00Z",
		"  spaced  name ":         "spaced_name",
		"///":                     "unnamed",
		"multiple___underscores": "multiple_underscores",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), in)
	}
}
