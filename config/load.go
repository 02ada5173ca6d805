package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Load reads path over the defaults. Format is chosen by extension:
// .toml uses toml, anything else yaml. Empty path returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if err := cfg.LoadFrom(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom merges the file at path into c.
func (c *Config) LoadFrom(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "Failed to read config %q", path)
	}
	if isToml(path) {
		if err := toml.Unmarshal(data, c); err != nil {
			return errors.Wrapf(err, "Failed to parse toml config %q", path)
		}
	} else {
		if err := yaml.Unmarshal(data, c); err != nil {
			return errors.Wrapf(err, "Failed to parse yaml config %q", path)
		}
	}
	return c.Validate()
}

// SaveTo writes the config to path, creating parent directories.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "Failed to create config dir")
	}

	var data []byte
	var err error
	if isToml(path) {
		data, err = toml.Marshal(c)
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return errors.Wrapf(err, "Failed to marshal config")
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks value ranges and applies the output encoding.
func (c *Config) Validate() error {
	if c.Export.MaxTexCoordSets < 0 {
		return errors.Errorf("max_tcoord_channels must not be negative, got %d", c.Export.MaxTexCoordSets)
	}
	switch c.Texture.Format {
	case TextureCopy, TextureWebP:
	case "":
		c.Texture.Format = TextureCopy
	default:
		return errors.Errorf("Unknown texture format %q", c.Texture.Format)
	}
	if c.Optimize.PositionThreshold < 0 || c.Optimize.ScaleThreshold < 0 || c.Optimize.RotationThreshold < 0 {
		return errors.Errorf("Optimizer thresholds must not be negative")
	}
	if c.Animation.FPS < 0 || c.Animation.FPSBase < 0 {
		return errors.Errorf("fps must not be negative")
	}
	return SetEncoding(c.Export.Encoding)
}

func isToml(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
