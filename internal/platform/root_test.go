package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRoot(t *testing.T) {
	// base/
	//   store/ (.jotter)
	//     subdir/nested/
	//   project/ (jotter.yaml)
	//   empty/
	baseDir := t.TempDir()
	storeDir := filepath.Join(baseDir, "store")
	nestedDir := filepath.Join(storeDir, "subdir", "nested")
	projectDir := filepath.Join(baseDir, "project")
	emptyDir := filepath.Join(baseDir, "empty")

	require.NoError(t, os.MkdirAll(nestedDir, 0755))
	require.NoError(t, os.MkdirAll(projectDir, 0755))
	require.NoError(t, os.MkdirAll(emptyDir, 0755))
	require.NoError(t, os.Mkdir(filepath.Join(storeDir, ".jotter"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ConfigFile), []byte("adapter: memory\n"), 0644))

	tests := []struct {
		name      string
		startPath string
		wantRoot  string
		wantErr   bool
	}{
		{name: "Start at Root", startPath: storeDir, wantRoot: storeDir},
		{name: "Start Nested Deeply", startPath: nestedDir, wantRoot: storeDir},
		{name: "Config File Marker", startPath: projectDir, wantRoot: projectDir},
		{name: "No Root Found", startPath: emptyDir, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindRoot(tt.startPath)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Clean(tt.wantRoot), filepath.Clean(got))
		})
	}
}

func TestResolveStorePath(t *testing.T) {
	assert.Equal(t, ".", ResolveStorePath("", false))
	assert.Equal(t, "notes", ResolveStorePath("notes", false))

	inTemp := filepath.Join(os.TempDir(), "already-safe")
	assert.Equal(t, inTemp, ResolveStorePath(inTemp, true))

	assert.Equal(t, filepath.Join(os.TempDir(), "jotter-dev", "notes"), ResolveStorePath("./notes", true))
	assert.Equal(t, filepath.Join(os.TempDir(), "jotter-dev", "default"), ResolveStorePath("", true))
}
