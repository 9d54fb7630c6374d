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
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	gitignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
)

// 🔧 Options tune which rule sources a Resolver consults
type Options struct {
	// RepositoryRules loads rule files from the root's ancestors up to the enclosing work tree top
	RepositoryRules bool
	// VCSExclude loads <top>/.git/info/exclude as the lowest-precedence rule set
	VCSExclude bool
	// Exclude lists patterns that are always excluded, whatever the rule files say
	Exclude []string
}

// 🎯 Resolver decides whether a path under root is ignored
type Resolver struct {
	cache  *Cache
	root   string   // slash-separated absolute root
	outer  []string // directories above root whose rule files apply, shallowest first
	base   []*RuleSet
	always *gitignore.GitIgnore
}

// 🏭 NewResolver creates a resolver for the tree at root (an absolute path)
func NewResolver(ctx context.Context, cache *Cache, root string, opts Options) *Resolver {
	r := &Resolver{
		cache: cache,
		root:  cleanSlash(root),
	}

	if len(opts.Exclude) > 0 {
		r.always = gitignore.CompileIgnoreLines(opts.Exclude...)
	}

	top, ok := findWorkTree(cache.FS(), r.root)
	if !ok {
		return r
	}

	zerolog.Ctx(ctx).Debug().Str("root", r.root).Str("work_tree", top).Msg("found enclosing work tree")

	if opts.VCSExclude {
		file := filepath.Join(filepath.FromSlash(top), ".git", "info", "exclude")
		rs, errs := ParseFile(cache.FS(), top, file)
		cache.record(ctx, file, errs)
		if !rs.Empty() {
			r.base = append(r.base, rs)
		}
	}

	if opts.RepositoryRules {
		for dir := top; dir != r.root; dir = nextBelow(dir, r.root) {
			r.outer = append(r.outer, dir)
		}
	}

	return r
}

// Root returns the slash-separated absolute root
func (r *Resolver) Root() string {
	return r.root
}

// 🔍 Match evaluates the rules for the entry at rel (relative to root) alone.
// Callers are expected to have already checked the entry's ancestors; the
// walker does so by never descending into ignored directories.
func (r *Resolver) Match(ctx context.Context, rel string, isDir bool) bool {
	ignored, _ := r.Explain(ctx, rel, isDir)
	return ignored
}

// 🔍 IsIgnored reports whether rel is ignored, either by its own rules or
// because one of its ancestor directories is ignored.
func (r *Resolver) IsIgnored(ctx context.Context, rel string, isDir bool) bool {
	rel = cleanRel(rel)
	if rel == "" {
		return false
	}
	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		if r.Match(ctx, strings.Join(parts[:i], "/"), true) {
			return true
		}
	}
	return r.Match(ctx, rel, isDir)
}

// 📋 Explain returns the decision for rel together with the last pattern that
// matched it. The pattern is nil when no rule file pattern matched.
func (r *Resolver) Explain(ctx context.Context, rel string, isDir bool) (bool, *Pattern) {
	rel = cleanRel(rel)
	if rel == "" {
		return false, nil
	}

	if r.always != nil {
		probe := rel
		if isDir {
			probe += "/"
		}
		if r.always.MatchesPath(probe) {
			return true, nil
		}
	}

	return decide(r.chain(ctx, rel), r.join(rel), isDir)
}

// chain returns every applicable rule set for rel, root-most first
func (r *Resolver) chain(ctx context.Context, rel string) []*RuleSet {
	sets := make([]*RuleSet, 0, len(r.base)+len(r.outer)+4)
	sets = append(sets, r.base...)
	for _, dir := range r.outer {
		sets = append(sets, r.cache.Get(ctx, dir))
	}
	sets = append(sets, r.cache.Get(ctx, r.root))

	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		sets = append(sets, r.cache.Get(ctx, r.join(strings.Join(parts[:i], "/"))))
	}
	return sets
}

func (r *Resolver) join(rel string) string {
	return path.Join(r.root, rel)
}

// decide folds every pattern of sets, in order, into a single decision.
// The last matching pattern wins.
func decide(sets []*RuleSet, abs string, isDir bool) (bool, *Pattern) {
	ignored := false
	var last *Pattern
	for _, rs := range sets {
		if rs == nil {
			continue
		}
		for _, p := range rs.Patterns {
			if p.Match(abs, isDir) {
				ignored = !p.Negated
				last = p
			}
		}
	}
	return ignored, last
}

// findWorkTree walks up from dir looking for a directory holding ".git"
func findWorkTree(fsys afero.Fs, dir string) (string, bool) {
	for {
		if ok, _ := afero.Exists(fsys, filepath.Join(filepath.FromSlash(dir), ".git")); ok {
			return dir, true
		}
		parent := path.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// nextBelow returns the child of dir that is on the way down to target
func nextBelow(dir, target string) string {
	rest, _ := relativeTo(dir, target)
	first, _, _ := strings.Cut(rest, "/")
	return path.Join(dir, first)
}

func cleanRel(rel string) string {
	rel = path.Clean(filepath.ToSlash(rel))
	rel = strings.TrimPrefix(rel, "./")
	rel = strings.TrimPrefix(rel, "/")
	if rel == "." {
		return ""
	}
	return rel
}
