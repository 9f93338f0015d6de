// Package config resolves user-supplied configuration values.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves a path the way a user writes it in a config file
// or flag: a leading ~ becomes the home directory and $VAR references
// are expanded from the environment. Paths needing neither pass through
// unchanged.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return os.ExpandEnv(path)
}
