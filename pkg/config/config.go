// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/smartscp/pkg/ignore"
	"github.com/walteh/smartscp/pkg/transport"
)

const (
	DefaultTransport   = "scp"
	DefaultWorkers     = 1
	DefaultConcurrency = 4
)

// Transports lists the transport names a config may select
var Transports = []string{"scp", "local", "dry-run"}

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// 🔐 SSHConfig configures the ssh and scp executables
type SSHConfig struct {
	Binary     string   `json:"binary,omitempty" yaml:"binary,omitempty"`           // ssh executable
	SCPBinary  string   `json:"scp_binary,omitempty" yaml:"scp_binary,omitempty"`   // scp executable
	Options    []string `json:"options,omitempty" yaml:"options,omitempty"`         // Extra -o options
	ConfigFile string   `json:"config_file,omitempty" yaml:"config_file,omitempty"` // ssh client config for remote user lookup
	LegacySCP  bool     `json:"legacy_scp,omitempty" yaml:"legacy_scp,omitempty"`   // Force the legacy scp protocol, quoting remote paths
}

// 📚 Config represents the complete configuration
type Config struct {
	IgnoreFile     string     `json:"ignore_file,omitempty" yaml:"ignore_file,omitempty"`
	Exclude        []string   `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	VCSExclude     *bool      `json:"vcs_exclude,omitempty" yaml:"vcs_exclude,omitempty"`
	RepoRules      *bool      `json:"repo_rules,omitempty" yaml:"repo_rules,omitempty"`
	FollowSymlinks *bool      `json:"follow_symlinks,omitempty" yaml:"follow_symlinks,omitempty"`
	Workers        int        `json:"workers,omitempty" yaml:"workers,omitempty"`
	Concurrency    int        `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	Transport      string     `json:"transport,omitempty" yaml:"transport,omitempty"`
	SSH            *SSHConfig `json:"ssh,omitempty" yaml:"ssh,omitempty"`
	LocalRoot      string     `json:"local_root,omitempty" yaml:"local_root,omitempty"`

	location string
}

// 🏭 Default returns a validated config with every default filled in
func Default() *Config {
	cfg := &Config{}
	_ = cfg.Validate()
	return cfg
}

// 🎯 Load loads the configuration from a file
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	// Read config file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	// Get parser
	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	// Parse config
	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config %s: %w", path, err)
	}

	cfg.location = path
	return cfg, nil
}

// 🔍 Validate fills in defaults and checks the values
func (cfg *Config) Validate() error {
	if cfg.IgnoreFile == "" {
		cfg.IgnoreFile = ignore.DefaultFileName
	}
	if strings.ContainsAny(cfg.IgnoreFile, `/\`) {
		return errors.Errorf("ignore_file must be a file name, got %q", cfg.IgnoreFile)
	}

	if cfg.Transport == "" {
		cfg.Transport = DefaultTransport
	}
	if !slices.Contains(Transports, cfg.Transport) {
		return errors.Errorf("unknown transport %q, options: %s", cfg.Transport, strings.Join(Transports, ", "))
	}
	if cfg.Transport == "local" && cfg.LocalRoot == "" {
		return errors.Errorf("local_root is required for the local transport")
	}

	switch {
	case cfg.Workers < 0:
		return errors.Errorf("workers must not be negative, got %d", cfg.Workers)
	case cfg.Workers == 0:
		cfg.Workers = DefaultWorkers
	}
	switch {
	case cfg.Concurrency < 0:
		return errors.Errorf("concurrency must not be negative, got %d", cfg.Concurrency)
	case cfg.Concurrency == 0:
		cfg.Concurrency = DefaultConcurrency
	}

	if cfg.SSH == nil {
		cfg.SSH = &SSHConfig{}
	}
	if cfg.SSH.Binary == "" {
		cfg.SSH.Binary = "ssh"
	}
	if cfg.SSH.SCPBinary == "" {
		cfg.SSH.SCPBinary = "scp"
	}

	return nil
}

// Location returns the file the config was loaded from, empty for defaults
func (cfg *Config) Location() string {
	return cfg.location
}

// VCSExcludeEnabled reports whether .git/info/exclude is read (default true)
func (cfg *Config) VCSExcludeEnabled() bool {
	return cfg.VCSExclude == nil || *cfg.VCSExclude
}

// RepoRulesEnabled reports whether rule files above the root are read (default true)
func (cfg *Config) RepoRulesEnabled() bool {
	return cfg.RepoRules == nil || *cfg.RepoRules
}

// FollowSymlinksEnabled reports whether symlinks are followed (default true)
func (cfg *Config) FollowSymlinksEnabled() bool {
	return cfg.FollowSymlinks == nil || *cfg.FollowSymlinks
}

// IgnoreOptions returns the resolver options this config selects
func (cfg *Config) IgnoreOptions() ignore.Options {
	return ignore.Options{
		RepositoryRules: cfg.RepoRulesEnabled(),
		VCSExclude:      cfg.VCSExcludeEnabled(),
		Exclude:         cfg.Exclude,
	}
}

// TransportSettings returns the factory settings this config selects
func (cfg *Config) TransportSettings(out io.Writer) transport.Settings {
	s := transport.Settings{LocalRoot: cfg.LocalRoot, Out: out}
	if cfg.SSH != nil {
		s.SSHBinary = cfg.SSH.Binary
		s.SCPBinary = cfg.SSH.SCPBinary
		s.SSHOptions = cfg.SSH.Options
		s.LegacySCP = cfg.SSH.LegacySCP
	}
	return s
}

// 📝 String returns a string representation of the config
func (cfg *Config) String() string {
	return fmt.Sprintf("transport=%s ignore_file=%s workers=%d concurrency=%d", cfg.Transport, cfg.IgnoreFile, cfg.Workers, cfg.Concurrency)
}
