// Package config loads the agent settings from an optional YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v2"
)

const (
	DefaultPath          = "fxrpatch.yaml"
	DefaultNameMaxLength = 256
	DefaultListWalkLimit = 1 << 16
)

// Environment variable names
const (
	EnvPath      = "FXRPATCH_CONFIG"
	EnvDebug     = "FXRPATCH_DEBUG"
	EnvModules   = "FXRPATCH_MODULES"
	EnvNameMax   = "FXRPATCH_NAME_MAX"
	EnvListLimit = "FXRPATCH_LIST_LIMIT"
)

// Settings defines the structure for configuration options
type Settings struct {
	Debug bool `yaml:"debug"`
	// Modules are extra executable names tried after the game's own
	Modules       []string `yaml:"modules,omitempty"`
	NameMaxLength int      `yaml:"nameMaxLength"`
	ListWalkLimit int      `yaml:"listWalkLimit"`
}

func Default() Settings {
	return Settings{
		NameMaxLength: DefaultNameMaxLength,
		ListWalkLimit: DefaultListWalkLimit,
	}
}

// Load reads settings from a YAML file. A missing file yields the defaults,
// the agent runs from the game directory and never writes there.
func Load(path string) (Settings, error) {
	s := Default()

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Default(), fmt.Errorf("failed to parse %s: %w", path, err)
	}
	s.fill()
	return s, nil
}

// Save writes settings as YAML
func Save(path string, s Settings) error {
	data, err := yaml.Marshal(&s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// FromEnvironment loads the file named by FXRPATCH_CONFIG and applies the
// FXRPATCH_* overrides on top
func FromEnvironment() (Settings, error) {
	s, err := Load(env.Str(EnvPath, DefaultPath))
	if err != nil {
		return s, err
	}
	s.ApplyEnvironment()
	return s, nil
}

// ApplyEnvironment overrides fields whose variable is set
func (s *Settings) ApplyEnvironment() {
	if env.Str(EnvDebug) != "" {
		s.Debug = env.Bool(EnvDebug)
	}
	if modules := env.Str(EnvModules); modules != "" {
		s.Modules = nil
		for _, m := range strings.Split(modules, ",") {
			if m = strings.TrimSpace(m); m != "" {
				s.Modules = append(s.Modules, m)
			}
		}
	}
	s.NameMaxLength = env.Int(EnvNameMax, s.NameMaxLength)
	s.ListWalkLimit = env.Int(EnvListLimit, s.ListWalkLimit)
	s.fill()
}

// fill replaces non positive limits with defaults
func (s *Settings) fill() {
	if s.NameMaxLength <= 0 {
		s.NameMaxLength = DefaultNameMaxLength
	}
	if s.ListWalkLimit <= 0 {
		s.ListWalkLimit = DefaultListWalkLimit
	}
}
