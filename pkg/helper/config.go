package helper

import (
	"os"
	"path/filepath"
)

// EnvConfDir overrides where config files are looked up first.
const EnvConfDir = "FUSTAN_SYNC_CONF_DIR"

// GetCfgPath resolves filename to a config file path. Absolute paths
// are returned as-is; otherwise the lookup order is $FUSTAN_SYNC_CONF_DIR,
// the working directory, ./configs, and finally /etc/fustan-sync.
func GetCfgPath(filename string) string {
	if filename == "" {
		panic("filename cannot be empty")
	}
	if filepath.IsAbs(filename) {
		return filename
	}

	var dirs []string
	if dir := os.Getenv(EnvConfDir); dir != "" {
		dirs = append(dirs, dir)
	}
	if wd, err := os.Getwd(); err == nil && wd != "" {
		dirs = append(dirs, wd, filepath.Join(wd, "configs"))
	}

	for _, dir := range dirs {
		candidate := filepath.Join(dir, filename)
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if abs, err := filepath.Abs(candidate); err == nil {
			return abs
		}
	}

	return filepath.Join("/etc/fustan-sync", filename)
}
