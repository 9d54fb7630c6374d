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

package endpoint

import (
	"os"
	"os/user"
	"path"
	"path/filepath"

	"github.com/kevinburke/ssh_config"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// 🏠 HomeResolver finds the login user and home directory on a remote host
type HomeResolver interface {
	RemoteUser(host string) string
	RemoteHome(host, user string) string
}

// 🔑 SSHConfigHomes resolves remote users from an ssh client config
type SSHConfigHomes struct {
	config    *ssh_config.Config
	localUser string
}

var _ HomeResolver = (*SSHConfigHomes)(nil)

// NewSSHConfigHomes wraps an already decoded config. cfg may be nil.
func NewSSHConfigHomes(cfg *ssh_config.Config, localUser string) *SSHConfigHomes {
	return &SSHConfigHomes{config: cfg, localUser: localUser}
}

// LoadSSHConfigHomes reads an ssh client config. A missing file behaves like
// an empty one.
func LoadSSHConfigHomes(fsys afero.Fs, file, localUser string) (*SSHConfigHomes, error) {
	f, err := fsys.Open(file)
	if err != nil {
		if os.IsNotExist(err) {
			return NewSSHConfigHomes(nil, localUser), nil
		}
		return nil, errors.Errorf("opening ssh config %s: %w", file, err)
	}
	defer f.Close()

	cfg, err := ssh_config.Decode(f)
	if err != nil {
		return nil, errors.Errorf("decoding ssh config %s: %w", file, err)
	}
	return NewSSHConfigHomes(cfg, localUser), nil
}

// RemoteUser returns the configured User for host, or the local user
func (h *SSHConfigHomes) RemoteUser(host string) string {
	if h.config != nil {
		if u, err := h.config.Get(host, "User"); err == nil && u != "" {
			return u
		}
	}
	return h.localUser
}

// RemoteHome assumes the usual layout: /root for root, /home/<user> otherwise
func (h *SSHConfigHomes) RemoteHome(host, user string) string {
	if user == "" {
		user = h.RemoteUser(host)
	}
	if user == "root" {
		return "/root"
	}
	return path.Join("/home", user)
}

// DefaultSSHConfigPath returns ~/.ssh/config for the current user
func DefaultSSHConfigPath(home string) string {
	return filepath.Join(home, ".ssh", "config")
}

// 🌍 Environment is the local context paths are expanded in
type Environment struct {
	Home    string              // Local home directory
	WorkDir string              // Directory relative paths are resolved against
	User    string              // Local user name
	Getenv  func(string) string // Variable lookup for $VAR expansion
}

// OSEnvironment captures the current process environment
func OSEnvironment() (Environment, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Environment{}, errors.Errorf("finding home directory: %w", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		return Environment{}, errors.Errorf("finding working directory: %w", err)
	}
	name := os.Getenv("USER")
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	return Environment{Home: home, WorkDir: wd, User: name, Getenv: os.Getenv}, nil
}
