package core

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

type LogConfig struct {
	Level        string `toml:"level"`
	Prefix       string `toml:"prefix"`
	ReportCaller bool   `toml:"report_caller"`
}

type RendererConfig struct {
	ApplicationName string `toml:"application_name"`
	// Enables VK_LAYER_KHRONOS_validation when the layer is installed.
	Validation        bool `toml:"validation"`
	PreferDiscreteGPU bool `toml:"prefer_discrete_gpu"`
	// Recompile passes against the device on every watched change,
	// instead of only re-planning them.
	CompileOnWatch bool `toml:"compile_on_watch"`
}

type AssetsConfig struct {
	Directory string `toml:"directory"`
}

type Config struct {
	Log      LogConfig      `toml:"log"`
	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetsConfig   `toml:"assets"`
}

func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:        "info",
			Prefix:       "passgraph ",
			ReportCaller: true,
		},
		Renderer: RendererConfig{
			ApplicationName:   "passgraph",
			Validation:        false,
			PreferDiscreteGPU: true,
		},
		Assets: AssetsConfig{
			Directory: "testbed",
		},
	}
}

// LoadConfig reads a TOML configuration file on top of DefaultConfig.
// An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	if err := ParseConfig(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// ParseConfig decodes TOML data into cfg, keeping values the data does not set.
func ParseConfig(data []byte, cfg *Config) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		return errors.Mark(err, ErrConfig)
	}
	if _, err := parseLogLevel(cfg.Log.Level); err != nil {
		return err
	}
	return nil
}
