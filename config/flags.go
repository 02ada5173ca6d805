package config

import "flag"

// Flags holds command line overrides. Zero values leave the config untouched.
type Flags struct {
	ConfigPath string
	Output     string
	Selected   bool
	Separate   bool
	NoAnim     bool
	Sets       bool
	FBX        bool
	LogLevel   string
	LogFile    string
	Addr       string
	Encoding   string
	Texture    string
}

func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "config", "", "Path to yaml or toml config file")
	fs.StringVar(&f.Output, "o", "", "Output .xsg path")
	fs.BoolVar(&f.Selected, "selected", false, "Export only selected objects")
	fs.BoolVar(&f.Separate, "separate", false, "Write every root object into its own file")
	fs.BoolVar(&f.NoAnim, "noanim", false, "Do not export animation")
	fs.BoolVar(&f.Sets, "sets", false, "Write one animation set per action")
	fs.BoolVar(&f.FBX, "fbx", false, "Also write a .fbx preview next to the output")
	fs.StringVar(&f.LogLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&f.LogFile, "log-file", "", "Rotated log file path")
	fs.StringVar(&f.Addr, "i", "", "Address of server")
	fs.StringVar(&f.Encoding, "encoding", "", "Output text charmap, empty for UTF-8")
	fs.StringVar(&f.Texture, "texture", "", "Texture output: copy or webp")
}

// Apply loads the config file named by the flags and applies overrides on top.
func (f *Flags) Apply() (*Config, error) {
	cfg, err := Load(f.ConfigPath)
	if err != nil {
		return nil, err
	}
	f.applyTo(cfg)
	return cfg, cfg.Validate()
}

func (f *Flags) applyTo(cfg *Config) {
	if f.Output != "" {
		cfg.Export.Output = f.Output
	}
	if f.Selected {
		cfg.Export.SelectedOnly = true
	}
	if f.Separate {
		cfg.Export.Separate = true
	}
	if f.NoAnim {
		cfg.Animation.Enabled = false
	}
	if f.Sets {
		cfg.Animation.ActionsAsSets = true
	}
	if f.FBX {
		cfg.Export.FBXPreview = true
	}
	if f.LogLevel != "" {
		cfg.Logging.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Logging.File = f.LogFile
	}
	if f.Addr != "" {
		cfg.Server.Address = f.Addr
	}
	if f.Encoding != "" {
		cfg.Export.Encoding = f.Encoding
	}
	if f.Texture != "" {
		cfg.Texture.Format = f.Texture
	}
}
