package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the exporter configuration file.
type Config struct {
	Backups []Backup `toml:"backup"`
}

// Backup describes one repository to monitor.
type Backup struct {
	Name         string            `toml:"name"`
	Repository   string            `toml:"repository"`
	Password     string            `toml:"password"`
	PasswordFile string            `toml:"password_file"`
	Options      map[string]string `toml:"options"`
}

var envRef = regexp.MustCompile(`\$\{([^}]*)\}`)

// ExpandEnv replaces every ${NAME} with the value of the environment
// variable NAME, or with an empty string when it is unset.
func ExpandEnv(input string, lookup func(string) (string, bool)) string {
	return envRef.ReplaceAllStringFunc(input, func(m string) string {
		v, _ := lookup(m[2 : len(m)-1])
		return v
	})
}

// Load reads, expands and validates the configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(ExpandEnv(string(data), os.LookupEnv))
}

// Parse decodes and validates configuration content. Credentials are not
// checked here: a target without usable credentials is reported by its
// refresher and does not prevent the others from running.
func Parse(content string) (Config, error) {
	var cfg Config
	md, err := toml.Decode(content, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("invalid toml file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if len(c.Backups) == 0 {
		return errors.New("config: at least one [[backup]] is required")
	}
	seen := make(map[string]struct{}, len(c.Backups))
	for i, b := range c.Backups {
		name := strings.TrimSpace(b.Name)
		if name == "" {
			return fmt.Errorf("config: backup #%d: name must not be empty", i+1)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("config: duplicate backup name %q", name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(b.Repository) == "" {
			return fmt.Errorf("config: backup %q: repository must not be empty", name)
		}
	}
	return nil
}
