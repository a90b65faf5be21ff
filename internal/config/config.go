// Package config loads the rgo server settings. Defaults come from Default,
// an optional YAML file overrides them, and command-line flags override the
// file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/rogeraird/rgo/internal/models"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr         = "127.0.0.1:3000"
	DefaultChannelPath  = "/tmp/rgo.pipe"
	DefaultSnapshotPath = "/tmp/rgo-client"
	DefaultMDNSName     = "rgo"
)

// Config holds everything the server needs at startup.
type Config struct {
	Addr         string            `yaml:"addr"`
	ChannelPath  string            `yaml:"channel_path"`
	SnapshotPath string            `yaml:"snapshot_path"`
	Seed         map[string]string `yaml:"seed"`
	Restore      bool              `yaml:"restore"`
	MDNS         bool              `yaml:"mdns"`
	MDNSName     string            `yaml:"mdns_name"`
	Debug        bool              `yaml:"debug"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:         DefaultAddr,
		ChannelPath:  DefaultChannelPath,
		SnapshotPath: DefaultSnapshotPath,
		Seed:         models.DefaultSeed(),
		MDNSName:     DefaultMDNSName,
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults. Keys absent from the file keep their default value; a seed
// given in the file replaces the default seed entirely.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.merge(file)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) merge(o Config) {
	if o.Addr != "" {
		c.Addr = o.Addr
	}
	if o.ChannelPath != "" {
		c.ChannelPath = o.ChannelPath
	}
	if o.SnapshotPath != "" {
		c.SnapshotPath = o.SnapshotPath
	}
	if o.Seed != nil {
		c.Seed = o.Seed
	}
	if o.MDNSName != "" {
		c.MDNSName = o.MDNSName
	}
	c.Restore = c.Restore || o.Restore
	c.MDNS = c.MDNS || o.MDNS
	c.Debug = c.Debug || o.Debug
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is empty"))
	}
	if c.ChannelPath == "" {
		errs = append(errs, errors.New("channel_path is empty"))
	}
	if c.SnapshotPath == "" {
		errs = append(errs, errors.New("snapshot_path is empty"))
	}
	if c.MDNS && c.MDNSName == "" {
		errs = append(errs, errors.New("mdns_name is empty while mdns is enabled"))
	}
	return errors.Join(errs...)
}
