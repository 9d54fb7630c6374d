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
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&HCLParser{})
}

// 🔧 HCLParser implements the Parser interface for HCL files
type HCLParser struct{}

// 🔍 CanParse checks if this parser can handle the given file
func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".hcl")
}

// 📝 Parse parses the config from HCL. ${env.NAME} expands environment
// variables.
func (p *HCLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, "config.hcl")
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	// Create evaluation context
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": envObject(),
		},
	}

	// Define HCL schema
	type hclConfig struct {
		IgnoreFile     string   `hcl:"ignore_file,optional"`
		Exclude        []string `hcl:"exclude,optional"`
		VCSExclude     *bool    `hcl:"vcs_exclude,optional"`
		RepoRules      *bool    `hcl:"repo_rules,optional"`
		FollowSymlinks *bool    `hcl:"follow_symlinks,optional"`
		Workers        int      `hcl:"workers,optional"`
		Concurrency    int      `hcl:"concurrency,optional"`
		Transport      string   `hcl:"transport,optional"`
		LocalRoot      string   `hcl:"local_root,optional"`
		SSH            *struct {
			Binary     string   `hcl:"binary,optional"`
			SCPBinary  string   `hcl:"scp_binary,optional"`
			Options    []string `hcl:"options,optional"`
			ConfigFile string   `hcl:"config_file,optional"`
			LegacySCP  bool     `hcl:"legacy_scp,optional"`
		} `hcl:"ssh,block"`
	}

	// Decode HCL
	var hclCfg hclConfig
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &hclCfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	// Convert to model
	cfg := &Config{
		IgnoreFile:     hclCfg.IgnoreFile,
		Exclude:        hclCfg.Exclude,
		VCSExclude:     hclCfg.VCSExclude,
		RepoRules:      hclCfg.RepoRules,
		FollowSymlinks: hclCfg.FollowSymlinks,
		Workers:        hclCfg.Workers,
		Concurrency:    hclCfg.Concurrency,
		Transport:      hclCfg.Transport,
		LocalRoot:      hclCfg.LocalRoot,
	}

	if hclCfg.SSH != nil {
		cfg.SSH = &SSHConfig{
			Binary:     hclCfg.SSH.Binary,
			SCPBinary:  hclCfg.SSH.SCPBinary,
			Options:    hclCfg.SSH.Options,
			ConfigFile: hclCfg.SSH.ConfigFile,
			LegacySCP:  hclCfg.SSH.LegacySCP,
		}
	}

	return cfg, nil
}

// envObject exposes the process environment to HCL expressions
func envObject() cty.Value {
	vars := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			vars[k] = cty.StringVal(v)
		}
	}
	if len(vars) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(vars)
}
