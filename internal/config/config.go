// Package config loads the TOML definitions file that names the maps this
// instance serves, and builds descriptors from it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"refmap/internal/backend"
	"refmap/internal/maps"
)

type Config struct {
	Logging LoggingConfig `toml:"logging"`
	Cache   CacheConfig   `toml:"cache"`
	Maps    []MapConfig   `toml:"map"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type CacheConfig struct {
	Path string `toml:"path"`
}

// MapConfig defines one map. A map either fetches from URI or embeds its
// content via Entries, never both.
type MapConfig struct {
	Name        string   `toml:"name"`
	URI         string   `toml:"uri"`
	Type        string   `toml:"type"`
	Description string   `toml:"description"`
	TrustedKey  string   `toml:"trusted_key"`
	Entries     []string `toml:"entries"`
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Cache:   CacheConfig{Path: "~/.refmap/cache.db"},
	}
}

// Load reads a TOML config file and returns the parsed, validated Config.
// If path is empty, only defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks map definitions for the errors that must abort startup.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for i, m := range c.Maps {
		if m.Name == "" {
			return fmt.Errorf("map #%d: name is required", i+1)
		}
		if seen[m.Name] {
			return fmt.Errorf("map %s: duplicate name", m.Name)
		}
		seen[m.Name] = true

		if _, err := kindOf(m.Type); err != nil {
			return fmt.Errorf("map %s: %w", m.Name, err)
		}

		embedded := len(m.Entries) > 0
		if embedded && m.URI != "" {
			return fmt.Errorf("map %s: entries and uri are mutually exclusive", m.Name)
		}
		if !embedded && m.URI == "" {
			return fmt.Errorf("map %s: either uri or entries is required", m.Name)
		}
		if embedded && m.TrustedKey != "" {
			return fmt.Errorf("map %s: embedded maps cannot carry a trusted key", m.Name)
		}
	}
	return nil
}

// Build constructs every configured map: embedded maps are committed before
// return, fetched maps are registered with the registry for the driver to
// refresh. Returns all descriptors by name.
func (c *Config) Build(reg *maps.Registry) (map[string]*maps.Descriptor, error) {
	out := make(map[string]*maps.Descriptor, len(c.Maps))
	for _, m := range c.Maps {
		kind, err := kindOf(m.Type)
		if err != nil {
			return nil, fmt.Errorf("map %s: %w", m.Name, err)
		}

		if len(m.Entries) > 0 {
			content := []byte(strings.Join(m.Entries, "\n"))
			d, err := maps.NewEmbedded(m.Name, m.Description, kind, content)
			if err != nil {
				return nil, fmt.Errorf("map %s: %w", m.Name, err)
			}
			out[m.Name] = d
			continue
		}

		h, err := reg.Register(m.Name, m.URI, kind, maps.Options{
			Description: m.Description,
			TrustedKey:  m.TrustedKey,
		})
		if err != nil {
			return nil, err
		}
		out[m.Name] = h.Descriptor()
	}
	return out, nil
}

func kindOf(s string) (backend.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trie", "radix":
		return backend.KindTrie, nil
	case "set":
		return backend.KindSet, nil
	case "kv":
		return backend.KindTable, nil
	case "callback":
		return backend.KindCallback, nil
	default:
		return 0, fmt.Errorf("unknown map type %q", s)
	}
}

// ExpandHome resolves a leading ~/ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
