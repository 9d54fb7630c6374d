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
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// AppName is the directory name used under the XDG config directories
const AppName = "smartscp"

// configNames are probed in order inside each XDG config directory
var configNames = []string{"config.yaml", "config.yml", "config.hcl", "config.json"}

// 🔍 Discover returns the first config file found in the XDG config
// directories, or an empty string when none exists
func Discover() string {
	for _, name := range configNames {
		path, err := xdg.SearchConfigFile(filepath.Join(AppName, name))
		if err == nil {
			return path
		}
	}
	return ""
}

// 🎯 LoadOrDefault loads the explicit config file if one is given, else the
// discovered one, else the defaults
func LoadOrDefault(ctx context.Context, explicit string) (*Config, error) {
	logger := zerolog.Ctx(ctx)

	path := explicit
	if path == "" {
		path = Discover()
	}
	if path == "" {
		logger.Debug().Msg("no config file found, using defaults")
		return Default(), nil
	}

	cfg, err := Load(ctx, path)
	if err != nil {
		return nil, errors.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
