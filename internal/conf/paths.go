package conf

import (
	"os"
	"path/filepath"

	"github.com/tphakala/cropguard/internal/errors"
)

const configFileName = "config.yaml"

// GetDefaultConfigPaths returns the directories searched for config.yaml:
// the user config directory, /etc/cropguard and the working directory.
// When one of them already holds a config.yaml only that one is returned.
// The first entry is where a default config is created.
func GetDefaultConfigPaths() ([]string, error) {
	userDir, err := os.UserConfigDir()
	if err != nil {
		return nil, errors.New(err).
			Component("configuration").
			Category(errors.CategorySystem).
			Context("operation", "user_config_dir").
			Build()
	}

	paths := []string{
		filepath.Join(userDir, "cropguard"),
		"/etc/cropguard",
		".",
	}
	for _, dir := range paths {
		if _, err := os.Stat(filepath.Join(dir, configFileName)); err == nil {
			return []string{dir}, nil
		}
	}
	return paths, nil
}
