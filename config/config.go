// Package config holds exporter settings loaded from yaml or toml files and command line flags.
package config

// Config is the complete exporter configuration.
type Config struct {
	Export    ExportConfig    `yaml:"export" toml:"export"`
	Animation AnimationConfig `yaml:"animation" toml:"animation"`
	Optimize  OptimizeConfig  `yaml:"optimize" toml:"optimize"`
	Texture   TextureConfig   `yaml:"texture" toml:"texture"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
}

type ExportConfig struct {
	Output           string  `yaml:"output" toml:"output"`
	SelectedOnly     bool    `yaml:"selected_only" toml:"selected_only"`
	Separate         bool    `yaml:"separate" toml:"separate"`
	MaxTexCoordSets  int     `yaml:"max_tcoord_channels" toml:"max_tcoord_channels"`
	Encoding         string  `yaml:"encoding" toml:"encoding"`
	FBXPreview       bool    `yaml:"fbx_preview" toml:"fbx_preview"`
	ExportReferences bool    `yaml:"export_references" toml:"export_references"`
	DefaultAmbient   float64 `yaml:"default_ambient" toml:"default_ambient"`
}

// ActionsAsSets writes one animation set per action instead of a single joined set.
type AnimationConfig struct {
	Enabled               bool    `yaml:"enabled" toml:"enabled"`
	ActionsAsSets         bool    `yaml:"actions_as_sets" toml:"actions_as_sets"`
	AttachToFirstArmature bool    `yaml:"attach_to_first_armature" toml:"attach_to_first_armature"`
	CameraAnimation       bool    `yaml:"camera_animation" toml:"camera_animation"`
	FrameStart            *int    `yaml:"frame_start,omitempty" toml:"frame_start,omitempty"`
	FrameEnd              *int    `yaml:"frame_end,omitempty" toml:"frame_end,omitempty"`
	FPS                   float64 `yaml:"fps,omitempty" toml:"fps,omitempty"`
	FPSBase               float64 `yaml:"fps_base,omitempty" toml:"fps_base,omitempty"`
}

type OptimizeConfig struct {
	Enabled           bool    `yaml:"enabled" toml:"enabled"`
	PositionThreshold float64 `yaml:"position_threshold" toml:"position_threshold"`
	ScaleThreshold    float64 `yaml:"scale_threshold" toml:"scale_threshold"`
	RotationThreshold float64 `yaml:"rotation_threshold" toml:"rotation_threshold"`
}

type TextureConfig struct {
	// Format is "copy" or "webp".
	Format    string `yaml:"format" toml:"format"`
	Directory string `yaml:"directory" toml:"directory"`
}

type LoggingConfig struct {
	Level string `yaml:"level" toml:"level"`
	File  string `yaml:"file" toml:"file"`
}

type ServerConfig struct {
	Address string `yaml:"address" toml:"address"`
	WorkDir string `yaml:"workdir" toml:"workdir"`
}

const (
	TextureCopy = "copy"
	TextureWebP = "webp"
)

// Default returns the configuration used when nothing else is specified.
func Default() *Config {
	return &Config{
		Export: ExportConfig{
			Output:           "scene.xsg",
			MaxTexCoordSets:  2,
			ExportReferences: true,
			DefaultAmbient:   0.25,
		},
		Animation: AnimationConfig{
			Enabled: true,
		},
		Optimize: OptimizeConfig{
			Enabled:           true,
			PositionThreshold: 0.01,
			ScaleThreshold:    0.01,
			RotationThreshold: 0.0001,
		},
		Texture: TextureConfig{
			Format:    TextureCopy,
			Directory: "_image",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Address: ":8000",
			WorkDir: "jobs",
		},
	}
}
