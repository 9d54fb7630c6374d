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

package walker

import (
	"context"
	"io/fs"
	"iter"
	"path"
	"path/filepath"
	"syscall"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/walteh/smartscp/pkg/status"
)

var ErrFilesystemFatal = errors.Base("fatal filesystem error")

// 🔍 Matcher decides whether a single entry is ignored. The walker never asks
// about entries below an ignored directory.
type Matcher interface {
	Match(ctx context.Context, rel string, isDir bool) bool
}

// 🎛️ Options control how a walk behaves
type Options struct {
	Workers        int            // Values above one scan sibling directories concurrently
	FollowSymlinks bool           // Descend into symlinked directories and copy link targets
	Report         *status.Report // Receives warnings and ignored paths, may be nil
}

// 🌳 Walker enumerates a local tree, pruning ignored directories before
// descending into them
type Walker struct {
	fs        afero.Fs
	root      string
	matcher   Matcher
	opts      Options
	canonical func(string) (string, error)
	sem       *semaphore.Weighted
}

// New creates a walker rooted at an absolute path
func New(fsys afero.Fs, root string, matcher Matcher, opts Options) *Walker {
	w := &Walker{
		fs:        fsys,
		root:      filepath.Clean(root),
		matcher:   matcher,
		opts:      opts,
		canonical: canonicalFor(fsys),
	}
	if opts.Workers > 1 {
		w.sem = semaphore.NewWeighted(int64(opts.Workers - 1))
	}
	return w
}

// canonicalFor returns the identity function for directories on fsys. Only the
// OS filesystem has symlinks worth resolving.
func canonicalFor(fsys afero.Fs) func(string) (string, error) {
	if _, ok := fsys.(*afero.OsFs); ok {
		return filepath.EvalSymlinks
	}
	return func(p string) (string, error) {
		return filepath.Clean(p), nil
	}
}

// Walk runs the walk to completion and returns the manifest. A fatal error
// yields no manifest.
func (w *Walker) Walk(ctx context.Context) (*Manifest, error) {
	m := &Manifest{Root: w.root, RootKind: KindDirectory}
	for e, err := range w.Entries(ctx) {
		if err != nil {
			return nil, err
		}
		if e.Path == "." && !e.IsDir() {
			m.RootKind = KindFile
		}
		m.Entries = append(m.Entries, e)
	}

	zerolog.Ctx(ctx).Debug().
		Str("root", w.root).
		Int("files", m.Files()).
		Int("dirs", m.Dirs()).
		Msg("walk complete")

	return m, nil
}

// Entries yields the manifest lazily in walk order. A fatal error is yielded
// once and ends the sequence.
func (w *Walker) Entries(ctx context.Context) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		info, err := w.fs.Stat(w.root)
		if err != nil {
			yield(Entry{}, errors.Errorf("%w: stat root %s: %v", ErrFilesystemFatal, w.root, err))
			return
		}

		if !info.IsDir() {
			yield(Entry{Path: ".", Kind: KindFile, Mode: info.Mode().Perm(), Size: info.Size()}, nil)
			return
		}

		id, err := w.canonical(w.root)
		if err != nil {
			yield(Entry{}, errors.Errorf("%w: resolve root %s: %v", ErrFilesystemFatal, w.root, err))
			return
		}

		if w.sem != nil {
			entries, err := w.collect(ctx, w.root, "", id, mapset.NewThreadUnsafeSet(id))
			if err != nil {
				yield(Entry{}, err)
				return
			}
			for _, e := range entries {
				if !yield(e, nil) {
					return
				}
			}
			return
		}

		w.visit(ctx, w.root, "", id, mapset.NewThreadUnsafeSet(id), yield)
	}
}

// child is a listed entry together with what is needed to descend into it
type child struct {
	entry Entry
	abs   string
	id    string
}

// visit yields one directory's entries depth first. chain holds the canonical
// identities of the directory and its ancestors. It returns false once the
// consumer stops or a fatal error has been yielded.
func (w *Walker) visit(ctx context.Context, abs, rel, id string, chain mapset.Set[string], yield func(Entry, error) bool) bool {
	files, dirs, err := w.list(ctx, abs, rel, id)
	if err != nil {
		yield(Entry{}, err)
		return false
	}

	for _, f := range files {
		if !yield(f.entry, nil) {
			return false
		}
	}

	for _, d := range dirs {
		if !w.enter(ctx, d, chain) {
			continue
		}
		if !yield(d.entry, nil) {
			return false
		}
		if !w.visit(ctx, d.abs, d.entry.Path, d.id, extend(chain, d.id), yield) {
			return false
		}
	}

	return true
}

// collect is the concurrent form of visit. Sibling subtrees are scanned in
// parallel while a worker slot is free and inline otherwise, then joined in
// name order so the result matches a sequential walk.
func (w *Walker) collect(ctx context.Context, abs, rel, id string, chain mapset.Set[string]) ([]Entry, error) {
	files, dirs, err := w.list(ctx, abs, rel, id)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(files)+len(dirs))
	for _, f := range files {
		out = append(out, f.entry)
	}

	results := make([][]Entry, len(dirs))
	g, gctx := errgroup.WithContext(ctx)

	for i, d := range dirs {
		if !w.enter(ctx, d, chain) {
			continue
		}

		run := func(ctx context.Context) error {
			sub, err := w.collect(ctx, d.abs, d.entry.Path, d.id, extend(chain, d.id))
			if err != nil {
				return err
			}
			results[i] = append([]Entry{d.entry}, sub...)
			return nil
		}

		if w.sem.TryAcquire(1) {
			g.Go(func() error {
				defer w.sem.Release(1)
				return run(gctx)
			})
			continue
		}

		if err := run(gctx); err != nil {
			_ = g.Wait()
			return nil, err
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// enter reports whether a directory may be descended into. A directory whose
// identity is already on the current chain would loop forever.
func (w *Walker) enter(ctx context.Context, d child, chain mapset.Set[string]) bool {
	if chain.Contains(d.id) {
		w.opts.Report.Warn(ctx, status.WarningSymlinkCycle, d.abs, errors.Errorf("%s resolves to %s", d.entry.Path, d.id))
		return false
	}
	return true
}

// list reads one directory and classifies its children. Ignored children are
// dropped here, so nothing below them is ever read.
func (w *Walker) list(ctx context.Context, abs, rel, id string) (files, dirs []child, err error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	infos, err := afero.ReadDir(w.fs, abs)
	if err != nil {
		if rel == "" {
			return nil, nil, errors.Errorf("%w: read root %s: %v", ErrFilesystemFatal, abs, err)
		}
		if ok, _ := afero.DirExists(w.fs, w.root); !ok {
			return nil, nil, errors.Errorf("%w: root %s disappeared: %v", ErrFilesystemFatal, w.root, err)
		}
		w.opts.Report.Warn(ctx, status.WarningDirectoryUnreadable, abs, err)
		return nil, nil, nil
	}

	for _, info := range infos {
		c, ok := w.classify(ctx, abs, rel, id, info)
		if !ok {
			continue
		}

		if w.matcher != nil && w.matcher.Match(ctx, c.entry.Path, c.entry.IsDir()) {
			w.opts.Report.RecordIgnored(c.entry.Path, c.entry.IsDir())
			zerolog.Ctx(ctx).Trace().Str("path", c.entry.Path).Bool("dir", c.entry.IsDir()).Msg("ignored")
			continue
		}

		if c.entry.IsDir() {
			dirs = append(dirs, c)
		} else {
			files = append(files, c)
		}
	}

	return files, dirs, nil
}

// classify turns a directory listing entry into a child. It returns false for
// entries that are skipped outright.
func (w *Walker) classify(ctx context.Context, parentAbs, parentRel, parentID string, info fs.FileInfo) (child, bool) {
	name := info.Name()
	c := child{
		abs: filepath.Join(parentAbs, name),
		id:  filepath.Join(parentID, name),
		entry: Entry{
			Path: joinRel(parentRel, name),
			Mode: info.Mode().Perm(),
		},
	}

	mode := info.Mode()
	switch {
	case mode&fs.ModeSymlink != 0:
		if !w.opts.FollowSymlinks {
			zerolog.Ctx(ctx).Debug().Str("path", c.entry.Path).Msg("skipping symlink")
			return c, false
		}
		return w.classifyLink(ctx, c)
	case mode.IsDir():
		c.entry.Kind = KindDirectory
	case mode.IsRegular():
		c.entry.Kind = KindFile
		c.entry.Size = info.Size()
	default:
		zerolog.Ctx(ctx).Debug().Str("path", c.entry.Path).Str("mode", mode.String()).Msg("skipping special file")
		return c, false
	}

	return c, true
}

// classifyLink resolves a symlink to the kind of its target. A link that
// cannot be resolved is kept as a file.
func (w *Walker) classifyLink(ctx context.Context, c child) (child, bool) {
	c.entry.Symlink = true

	target, err := w.fs.Stat(c.abs)
	if err != nil {
		if errors.Is(err, syscall.ELOOP) {
			w.opts.Report.Warn(ctx, status.WarningSymlinkCycle, c.abs, err)
			return c, false
		}
		w.opts.Report.Warn(ctx, status.WarningUnclassifiable, c.abs, err)
		c.entry.Kind = KindFile
		return c, true
	}

	c.entry.Mode = target.Mode().Perm()
	if !target.IsDir() {
		c.entry.Kind = KindFile
		c.entry.Size = target.Size()
		return c, true
	}

	id, err := w.canonical(c.abs)
	if err != nil {
		w.opts.Report.Warn(ctx, status.WarningUnclassifiable, c.abs, err)
		return c, false
	}
	c.id = id
	c.entry.Kind = KindDirectory
	return c, true
}

func joinRel(parent, name string) string {
	if parent == "" {
		return name
	}
	return path.Join(parent, name)
}

// extend returns a copy of chain with id added. Sibling subtrees never share a chain.
func extend(chain mapset.Set[string], id string) mapset.Set[string] {
	next := chain.Clone()
	next.Add(id)
	return next
}
