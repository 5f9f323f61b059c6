package validate_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/clipfetch/internal/validate"
)

func TestWritableDirectory(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(t *testing.T) string
		mustExist bool
		rootSkips bool
		wantErr   string
		check     func(t *testing.T, path string)
	}{
		{
			name:      "existing workspace base",
			setup:     func(t *testing.T) string { return t.TempDir() },
			mustExist: true,
		},
		{
			name: "missing base is created",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "clipfetch", "jobs")
			},
			check: func(t *testing.T, path string) { assert.DirExists(t, path) },
		},
		{
			name:      "missing base when it must exist",
			setup:     func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing") },
			mustExist: true,
			wantErr:   "directory does not exist",
		},
		{
			name: "regular file",
			setup: func(t *testing.T) string {
				file := filepath.Join(t.TempDir(), "file")
				require.NoError(t, os.WriteFile(file, nil, 0o600))
				return file
			},
			mustExist: true,
			wantErr:   "path is not a directory",
		},
		{
			name: "read-only base",
			setup: func(t *testing.T) string {
				dir := filepath.Join(t.TempDir(), "readonly")
				require.NoError(t, os.Mkdir(dir, 0o500))
				return dir
			},
			mustExist: true,
			rootSkips: true,
			wantErr:   "directory is not writable",
		},
		{
			name: "read-only parent",
			setup: func(t *testing.T) string {
				parent := filepath.Join(t.TempDir(), "parent_ro")
				require.NoError(t, os.Mkdir(parent, 0o500))
				return filepath.Join(parent, "nested")
			},
			rootSkips: true,
			wantErr:   "cannot create directory",
		},
		{
			name:    "empty path",
			setup:   func(*testing.T) string { return "" },
			wantErr: "directory path cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.rootSkips && os.Geteuid() == 0 {
				t.Skip("permission bits do not apply to root")
			}
			path := tt.setup(t)

			v := validate.New()
			v.WritableDirectory("workspace.dir", path, tt.mustExist)

			if tt.wantErr == "" {
				require.NoError(t, v.Err())
			} else {
				require.Error(t, v.Err())
				assert.Contains(t, v.Err().Error(), tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, path)
			}
		})
	}
}
