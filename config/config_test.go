package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 2, cfg.Export.MaxTexCoordSets)
	assert.Equal(t, 0.01, cfg.Optimize.PositionThreshold)
	assert.Equal(t, 0.01, cfg.Optimize.ScaleThreshold)
	assert.Equal(t, 0.0001, cfg.Optimize.RotationThreshold)
	assert.True(t, cfg.Animation.Enabled)
	assert.False(t, cfg.Animation.ActionsAsSets)
	assert.Equal(t, TextureCopy, cfg.Texture.Format)
	assert.Equal(t, "_image", cfg.Texture.Directory)
	assert.Equal(t, 0.25, cfg.Export.DefaultAmbient)
}

func TestLoadYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
export:
  separate: true
  max_tcoord_channels: 1
optimize:
  rotation_threshold: 0.5
animation:
  frame_start: 3
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Export.Separate)
	assert.Equal(t, 1, cfg.Export.MaxTexCoordSets)
	assert.Equal(t, 0.5, cfg.Optimize.RotationThreshold)
	assert.Equal(t, 0.01, cfg.Optimize.PositionThreshold)
	require.NotNil(t, cfg.Animation.FrameStart)
	assert.Equal(t, 3, *cfg.Animation.FrameStart)
	assert.Nil(t, cfg.Animation.FrameEnd)
}

func TestLoadToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[texture]
format = "webp"

[logging]
level = "debug"
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, TextureWebP, cfg.Texture.Format)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 2, cfg.Export.MaxTexCoordSets)
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("texture:\n  format: png\n"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"out.yaml", "out.toml"} {
		path := filepath.Join(t.TempDir(), "sub", name)
		cfg := Default()
		cfg.Export.Separate = true
		cfg.Optimize.ScaleThreshold = 0.2
		require.NoError(t, cfg.SaveTo(path))

		loaded, err := Load(path)
		require.NoError(t, err, name)
		assert.Equal(t, cfg.Export, loaded.Export, name)
		assert.Equal(t, cfg.Optimize, loaded.Optimize, name)
	}
}

func TestFlagsOverride(t *testing.T) {
	var f Flags
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f.Register(fs)
	require.NoError(t, fs.Parse([]string{"-o", "x.xsg", "-noanim", "-sets", "-encoding", "Windows 1252"}))

	cfg, err := f.Apply()
	require.NoError(t, err)
	assert.Equal(t, "x.xsg", cfg.Export.Output)
	assert.False(t, cfg.Animation.Enabled)
	assert.True(t, cfg.Animation.ActionsAsSets)
	require.NotNil(t, GetEncoding())
	assert.Equal(t, "Windows 1252", GetEncoding().String())

	require.NoError(t, SetEncoding(""))
	assert.Nil(t, GetEncoding())
}

func TestSetEncodingUnknown(t *testing.T) {
	assert.Error(t, SetEncoding("Klingon"))
	assert.Contains(t, ListEncodings(), "UTF-8")
}
