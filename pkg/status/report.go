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

package status

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// ⚠️ WarningKind classifies a non-fatal condition hit while building a manifest
type WarningKind string

const (
	WarningRuleFileUnreadable  WarningKind = "rule_file_unreadable"
	WarningMalformedPattern    WarningKind = "malformed_pattern"
	WarningDirectoryUnreadable WarningKind = "directory_unreadable"
	WarningSymlinkCycle        WarningKind = "symlink_cycle"
	WarningUnclassifiable      WarningKind = "unclassifiable_entry"
)

// 📄 Warning is one recorded non-fatal condition
type Warning struct {
	Kind WarningKind // What went wrong
	Path string      // Path the warning is about
	Err  error       // Underlying cause, may be nil
}

// 📊 Report collects warnings and skip counters for one invocation.
// A nil *Report is valid and records nothing.
type Report struct {
	mu       sync.Mutex
	warnings []Warning
	ignored  map[string]bool // path -> is directory
}

// 🏭 NewReport creates an empty report
func NewReport() *Report {
	return &Report{
		ignored: make(map[string]bool),
	}
}

// 📝 Warn records a warning and logs it
func (r *Report) Warn(ctx context.Context, kind WarningKind, path string, err error) {
	ev := zerolog.Ctx(ctx).Warn().Str("kind", string(kind)).Str("path", path)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("skipping")

	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, Warning{Kind: kind, Path: path, Err: err})
}

// 🙈 RecordIgnored notes that a path was excluded by ignore rules
func (r *Report) RecordIgnored(path string, isDir bool) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ignored[path] = isDir
}

// Warnings returns a copy of the recorded warnings in insertion order
func (r *Report) Warnings() []Warning {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Warning, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// Count returns how many warnings of the given kind were recorded
func (r *Report) Count(kind WarningKind) int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, w := range r.warnings {
		if w.Kind == kind {
			n++
		}
	}
	return n
}

// Ignored returns the sorted list of paths excluded by ignore rules
func (r *Report) Ignored() []string {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.ignored))
	for p := range r.ignored {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// IgnoredDirs returns how many of the ignored paths were directories (pruned subtrees)
func (r *Report) IgnoredDirs() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, isDir := range r.ignored {
		if isDir {
			n++
		}
	}
	return n
}
