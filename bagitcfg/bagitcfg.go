// Package bagitcfg loads optional default settings for the bagit CLI
// from a TOML configuration file, so repeated invocations within one
// organization don't need to repeat the same flags every time.
package bagitcfg

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the set of CLI defaults a config file may supply. Any field
// left unset keeps the CLI's own hardcoded default; an explicit flag on
// the command line always overrides a config file value.
type Config struct {
	Processes  int      `toml:"processes"`
	Algorithms []string `toml:"algorithms"`
	Encoding   string   `toml:"encoding"`
}

// DefaultPath returns the conventional config file location,
// "~/.bagitrc.toml", or "" if the user's home directory can't be
// determined.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".bagitrc.toml")
}

// Load reads and decodes the config file at path. A missing file is not
// an error: it returns a zero Config, since no config file is the normal
// case.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	_, err := toml.DecodeFile(path, &cfg)
	return cfg, err
}
