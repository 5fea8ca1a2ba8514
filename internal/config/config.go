// Package config loads vsopc's optional driver configuration: default
// toolchain binary names, the default source extension, and the scratch
// build-directory location (§6), grounded on lookbusy1344-arm_emulator's
// config.go. Absence of a config file is not an error.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the driver's optional configuration, normally read from
// ./vsopc.toml or a -config path.
type Config struct {
	Toolchain struct {
		Assembler string `toml:"assembler"`
		Linker    string `toml:"linker"`
	} `toml:"toolchain"`

	Source struct {
		Extension string `toml:"extension"`
	} `toml:"source"`

	Build struct {
		WorkDir string `toml:"work_dir"`
		KeepTmp bool   `toml:"keep_tmp"`
	} `toml:"build"`
}

// Default returns the configuration vsopc runs with when no config file is
// present or named on the command line.
func Default() *Config {
	c := &Config{}
	c.Toolchain.Assembler = "llc"
	c.Toolchain.Linker = "clang"
	c.Source.Extension = ".vsop"
	c.Build.WorkDir = "."
	c.Build.KeepTmp = false
	return c
}

// Load reads path into a Config seeded with Default(), leaving every field
// not present in the file at its default value. A missing file is not an
// error: vsopc runs on defaults alone.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}
