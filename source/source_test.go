package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenByExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "box.YML")
	require.NoError(t, os.WriteFile(path, []byte("objects: [{name: box}]\n"), 0644))

	sc, err := Open(path)
	require.NoError(t, err)
	assert.NotNil(t, sc.Object("box"))
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open("scene.blend")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".gltf")
	assert.False(t, Supported("scene.blend"))
	assert.True(t, Supported("scene.GLB"))
}
