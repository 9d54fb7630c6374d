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

package ignore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/smartscp/pkg/status"
)

// 🧪 newTestTree writes files into an in-memory filesystem
func newTestTree(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, fsys.MkdirAll(filepath.Dir(name), 0o755))
		require.NoError(t, afero.WriteFile(fsys, name, []byte(content), 0o644))
	}
	return fsys
}

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	return logger.WithContext(context.Background())
}

func TestResolverMatch(t *testing.T) {
	fsys := newTestTree(t, map[string]string{
		"/repo/.gitignore":          "*.log\n!keep.log\nbuild/\n/docs/*.md\n",
		"/repo/sub/.gitignore":      "!other.log\nlocal.txt\n",
		"/repo/sub/deep/.gitignore": "*.txt\n!wanted.txt\n",
	})

	tests := []struct {
		name  string
		rel   string
		isDir bool
		want  bool
	}{
		{name: "excluded_by_glob", rel: "other.log", want: true},
		{name: "negation_reincludes", rel: "keep.log", want: false},
		{name: "negation_reincludes_nested", rel: "a/b/keep.log", want: false},
		{name: "directory_pattern_on_dir", rel: "build", isDir: true, want: true},
		{name: "directory_pattern_on_file", rel: "build", want: false},
		{name: "anchored_pattern_direct", rel: "docs/readme.md", want: true},
		{name: "anchored_pattern_nested", rel: "docs/api/readme.md", want: false},
		{name: "anchored_pattern_other_dir", rel: "sub/docs/readme.md", want: false},
		{name: "deeper_file_overrides", rel: "sub/other.log", want: false},
		{name: "deeper_rule_scoped", rel: "local.txt", want: false},
		{name: "deeper_rule_applies", rel: "sub/x/local.txt", want: true},
		{name: "deepest_exclusion", rel: "sub/deep/notes.txt", want: true},
		{name: "deepest_negation", rel: "sub/deep/wanted.txt", want: false},
		{name: "unmatched", rel: "main.go", want: false},
		{name: "root_never_ignored", rel: ".", isDir: true, want: false},
	}

	ctx := testContext(t)
	r := NewResolver(ctx, NewCache(fsys, DefaultFileName, nil), "/repo", Options{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Match(ctx, tt.rel, tt.isDir))
		})
	}
}

func TestResolverDeterministic(t *testing.T) {
	fsys := newTestTree(t, map[string]string{
		"/repo/.gitignore":     "*.tmp\n!a.tmp\n",
		"/repo/x/.gitignore":   "a.tmp\n",
		"/repo/x/y/.gitignore": "!a.tmp\n",
	})
	ctx := testContext(t)

	paths := []string{"a.tmp", "b.tmp", "x/a.tmp", "x/y/a.tmp", "x/y/b.tmp"}
	first := map[string]bool{}
	r := NewResolver(ctx, NewCache(fsys, DefaultFileName, nil), "/repo", Options{})
	for _, p := range paths {
		first[p] = r.Match(ctx, p, false)
	}

	for i := 0; i < 3; i++ {
		fresh := NewResolver(ctx, NewCache(fsys, DefaultFileName, nil), "/repo", Options{})
		for _, p := range paths {
			assert.Equal(t, first[p], r.Match(ctx, p, false), "repeat call on %s", p)
			assert.Equal(t, first[p], fresh.Match(ctx, p, false), "fresh cache on %s", p)
		}
	}

	assert.Equal(t, map[string]bool{
		"a.tmp":     false,
		"b.tmp":     true,
		"x/a.tmp":   true,
		"x/y/a.tmp": false,
		"x/y/b.tmp": true,
	}, first)
}

func TestResolverIsIgnoredChecksAncestors(t *testing.T) {
	fsys := newTestTree(t, map[string]string{
		"/repo/.gitignore": "build/\n!build/keep.txt\n",
	})
	ctx := testContext(t)
	r := NewResolver(ctx, NewCache(fsys, DefaultFileName, nil), "/repo", Options{})

	assert.False(t, r.Match(ctx, "build/keep.txt", false), "entry rules alone re-include the file")
	assert.True(t, r.IsIgnored(ctx, "build/keep.txt", false), "an ignored parent directory wins")
	assert.True(t, r.IsIgnored(ctx, "build/x/y.o", false))
	assert.False(t, r.IsIgnored(ctx, "src/build", false), "a file named build is kept")
}

func TestResolverContentsPatternAllowsNegation(t *testing.T) {
	fsys := newTestTree(t, map[string]string{
		"/repo/.gitignore": "foo/**\n!foo/keep.txt\n",
	})
	ctx := testContext(t)
	r := NewResolver(ctx, NewCache(fsys, DefaultFileName, nil), "/repo", Options{})

	assert.False(t, r.Match(ctx, "foo", true), "foo/** matches inside foo, not foo itself")
	assert.False(t, r.IsIgnored(ctx, "foo/keep.txt", false), "negation re-includes the file")
	assert.True(t, r.IsIgnored(ctx, "foo/drop.txt", false))
	assert.True(t, r.IsIgnored(ctx, "foo/sub", true))
}

func TestResolverExplain(t *testing.T) {
	fsys := newTestTree(t, map[string]string{
		"/repo/.gitignore": "*.log\n",
	})
	ctx := testContext(t)
	r := NewResolver(ctx, NewCache(fsys, DefaultFileName, nil), "/repo", Options{})

	ignored, p := r.Explain(ctx, "x/y.log", false)
	assert.True(t, ignored)
	require.NotNil(t, p)
	assert.Equal(t, "*.log", p.String())
	assert.Equal(t, 1, p.Line)

	ignored, p = r.Explain(ctx, "y.go", false)
	assert.False(t, ignored)
	assert.Nil(t, p)
}

func TestResolverRepositoryRules(t *testing.T) {
	fsys := newTestTree(t, map[string]string{
		"/repo/.gitignore":         "*.secret\n",
		"/repo/.git/info/exclude":  "scratch/\n",
		"/repo/pkg/.gitignore":     "gen/\n",
		"/repo/pkg/api/.gitignore": "!api.secret\n",
		"/repo/pkg/api/main.go":    "package api",
	})
	ctx := testContext(t)

	tests := []struct {
		name  string
		opts  Options
		rel   string
		isDir bool
		want  bool
	}{
		{name: "top_rules_apply", opts: Options{RepositoryRules: true}, rel: "db.secret", want: true},
		{name: "middle_rules_apply", opts: Options{RepositoryRules: true}, rel: "gen", isDir: true, want: true},
		{name: "root_rules_override", opts: Options{RepositoryRules: true}, rel: "api.secret", want: false},
		{name: "top_rules_disabled", opts: Options{}, rel: "db.secret", want: false},
		{name: "info_exclude", opts: Options{VCSExclude: true}, rel: "scratch", isDir: true, want: true},
		{name: "info_exclude_disabled", opts: Options{}, rel: "scratch", isDir: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(ctx, NewCache(fsys, DefaultFileName, nil), "/repo/pkg/api", tt.opts)
			assert.Equal(t, tt.want, r.Match(ctx, tt.rel, tt.isDir))
		})
	}
}

func TestResolverAlwaysExclude(t *testing.T) {
	fsys := newTestTree(t, map[string]string{
		"/repo/.gitignore": "!.DS_Store\n",
	})
	ctx := testContext(t)
	r := NewResolver(ctx, NewCache(fsys, DefaultFileName, nil), "/repo", Options{
		Exclude: []string{".DS_Store", "node_modules"},
	})

	assert.True(t, r.Match(ctx, ".DS_Store", false), "configured excludes cannot be negated by rule files")
	assert.True(t, r.Match(ctx, "web/node_modules", true))
	assert.False(t, r.Match(ctx, "web/index.js", false))
}

func TestCacheLoadsEachDirectoryOnce(t *testing.T) {
	fsys := newTestTree(t, map[string]string{
		"/repo/.gitignore":     "*.o\n",
		"/repo/src/.gitignore": "*.tmp\n",
	})
	ctx := testContext(t)
	cache := NewCache(fsys, DefaultFileName, nil)
	r := NewResolver(ctx, cache, "/repo", Options{})

	for _, name := range []string{"a.c", "b.c", "c.o", "d.tmp", "e.h"} {
		r.Match(ctx, "src/"+name, false)
	}

	assert.Equal(t, int64(2), cache.Reads(), "root and src are each read once")
	assert.Equal(t, 2, cache.Len())
}

func TestCacheRecordsWarnings(t *testing.T) {
	fsys := newTestTree(t, map[string]string{
		"/repo/.gitignore": "ok.txt\n[broken\n",
	})
	ctx := testContext(t)
	report := status.NewReport()
	cache := NewCache(fsys, DefaultFileName, report)

	rs := cache.Get(ctx, "/repo")
	require.Len(t, rs.Patterns, 1)
	assert.Equal(t, 1, report.Count(status.WarningMalformedPattern))

	missing := cache.Get(ctx, "/repo/missing")
	assert.True(t, missing.Empty(), "absent rule files yield empty sets")
	assert.Len(t, report.Warnings(), 1, "absence is not a warning")
}
