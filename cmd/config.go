// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/stroomlab/circlet/pkg/plugwise"
)

// Duration parses TOML strings like "1500ms" into a time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Config is the optional TOML config file. Everything in it can also be
// given as a flag; flags win.
type Config struct {
	Port    string   `toml:"port"`
	Baud    int      `toml:"baud"`
	Timeout Duration `toml:"timeout"`
	Retries *int     `toml:"retries"`

	// Devices maps friendly aliases to 16-char hex MACs.
	Devices map[string]string `toml:"devices"`
}

// defaultConfigPath is where LoadConfig looks when no --config is given.
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "circlet", "config.toml")
}

// LoadConfig reads the config file. An explicitly named file must exist;
// the default location is allowed to be absent.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
	}
	if path == "" {
		return cfg, nil
	}

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, nil
}

// resolveMAC turns a CLI device argument into an address, going through
// the config's alias table first.
func resolveMAC(arg string) (plugwise.MAC, error) {
	if alias, ok := cfg.Devices[arg]; ok {
		arg = alias
	}
	return plugwise.ParseMAC(arg)
}
