// Package staticconfig loads the ambient, YAML-authored process settings:
// device path, logging, and the admin HTTP listen address. This is
// distinct from the policy config in internal/config, which never touches
// any of these.
package staticconfig

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// StaticConfig holds every ambient, non-policy setting.
type StaticConfig struct {
	Device string `yaml:"device"`

	LogLevel    string `yaml:"log_level"`
	LogDir      string `yaml:"log_dir"`
	LogToStdout bool   `yaml:"log_to_stdout"`

	RotateMaxSizeMB   int  `yaml:"rotate_max_size_mb"`
	RotateMaxBackups  int  `yaml:"rotate_max_backups"`
	RotateMaxAgeDays  int  `yaml:"rotate_max_age_days"`
	RotateCompress    bool `yaml:"rotate_compress"`

	Listen string `yaml:"listen"`
	Debug  bool   `yaml:"debug"`
}

// defaults mirrors the teacher's "apply a default for every unspecified
// field" idiom from its own connection config.
func defaults() StaticConfig {
	return StaticConfig{
		Device:           "/dev/medusa",
		LogLevel:         "info",
		LogToStdout:      true,
		RotateMaxSizeMB:  100,
		RotateMaxBackups: 5,
		RotateMaxAgeDays: 28,
		RotateCompress:   true,
		Listen:           "127.0.0.1:9402",
	}
}

// Load reads and parses the YAML file at path, if non-empty, layering it
// over defaults(); an empty path returns the defaults unmodified.
func Load(path string) (StaticConfig, error) {
	cfg := defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return StaticConfig{}, errors.Wrap(err, "staticconfig: read")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return StaticConfig{}, errors.Wrap(err, "staticconfig: parse")
	}
	return cfg, nil
}
