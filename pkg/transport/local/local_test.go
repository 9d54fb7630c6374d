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

package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/smartscp/pkg/endpoint"
	"github.com/walteh/smartscp/pkg/plan"
	"github.com/walteh/smartscp/pkg/transport"
	"github.com/walteh/smartscp/pkg/walker"
)

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	return logger.WithContext(context.Background())
}

func testSpec(dir endpoint.Direction) *endpoint.TransferSpec {
	return &endpoint.TransferSpec{
		Direction: dir,
		Local:     endpoint.Endpoint{Path: "/home/alice/proj"},
		Remote:    endpoint.Endpoint{Remote: true, Host: "box", Path: "/srv/proj"},
	}
}

func TestUpload(t *testing.T) {
	ctx := testContext(t)
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/home/alice/proj/run.sh", []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, afero.WriteFile(fsys, "/home/alice/proj/sub/a.txt", []byte("a"), 0o644))

	tr := New(fsys, "/mnt/box")
	spec := testSpec(endpoint.Upload)
	manifest := &walker.Manifest{
		RootKind: walker.KindDirectory,
		Entries: []walker.Entry{
			{Path: "run.sh", Kind: walker.KindFile, Mode: 0o755, Size: 10},
			{Path: "sub", Kind: walker.KindDirectory, Mode: 0o750},
			{Path: "sub/a.txt", Kind: walker.KindFile, Mode: 0o644, Size: 1},
		},
	}
	p := plan.Build(ctx, manifest, spec)

	var dirs []plan.Operation
	for _, op := range p.Operations {
		if op.Kind == plan.MakeDirectory {
			dirs = append(dirs, op)
		}
	}
	require.NoError(t, tr.MakeDirectories(ctx, spec, dirs))
	for _, op := range p.Files() {
		require.NoError(t, tr.CopyFile(ctx, spec, op))
	}
	require.NoError(t, tr.SetDirectoryModes(ctx, spec, dirs))

	content, err := afero.ReadFile(fsys, "/mnt/box/srv/proj/sub/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "a", string(content))

	info, err := fsys.Stat("/mnt/box/srv/proj/run.sh")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	info, err = fsys.Stat("/mnt/box/srv/proj/sub")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o750), info.Mode().Perm())
}

// 🔒 lockedFs refuses to create entries inside directories without the owner
// write bit, the way a real filesystem does for an unprivileged user
type lockedFs struct {
	afero.Fs
}

func (l lockedFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&os.O_CREATE != 0 {
		if err := l.writable(filepath.Dir(name)); err != nil {
			return nil, err
		}
	}
	return l.Fs.OpenFile(name, flag, perm)
}

func (l lockedFs) MkdirAll(name string, perm os.FileMode) error {
	if ok, _ := afero.DirExists(l.Fs, name); ok {
		return nil
	}
	if err := l.writable(filepath.Dir(name)); err != nil {
		return err
	}
	return l.Fs.MkdirAll(name, perm)
}

// writable checks the nearest existing ancestor of dir
func (l lockedFs) writable(dir string) error {
	for {
		info, err := l.Fs.Stat(dir)
		if err == nil {
			if info.Mode().Perm()&0o200 == 0 {
				return &os.PathError{Op: "open", Path: dir, Err: os.ErrPermission}
			}
			return nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}

func TestUploadReadOnlyDirectory(t *testing.T) {
	ctx := testContext(t)
	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/home/alice/proj/locked/deeper", 0o755))
	require.NoError(t, mem.MkdirAll("/mnt/box", 0o755))
	require.NoError(t, afero.WriteFile(mem, "/home/alice/proj/locked/a.txt", []byte("a"), 0o644))
	require.NoError(t, afero.WriteFile(mem, "/home/alice/proj/locked/deeper/b.txt", []byte("b"), 0o644))

	fsys := lockedFs{Fs: mem}
	tr := New(fsys, "/mnt/box")
	spec := testSpec(endpoint.Upload)
	manifest := &walker.Manifest{
		RootKind: walker.KindDirectory,
		Entries: []walker.Entry{
			{Path: "locked", Kind: walker.KindDirectory, Mode: 0o555},
			{Path: "locked/a.txt", Kind: walker.KindFile, Mode: 0o644, Size: 1},
			{Path: "locked/deeper", Kind: walker.KindDirectory, Mode: 0o555},
			{Path: "locked/deeper/b.txt", Kind: walker.KindFile, Mode: 0o644, Size: 1},
		},
	}
	p := plan.Build(ctx, manifest, spec)

	var dirs []plan.Operation
	for _, op := range p.Operations {
		if op.Kind == plan.MakeDirectory {
			dirs = append(dirs, op)
		}
	}
	require.NoError(t, tr.MakeDirectories(ctx, spec, dirs))
	for _, op := range p.Files() {
		require.NoError(t, tr.CopyFile(ctx, spec, op), op.RelPath)
	}

	deepestFirst := make([]plan.Operation, 0, len(dirs))
	for i := len(dirs) - 1; i >= 0; i-- {
		if dirs[i].Mode != 0 {
			deepestFirst = append(deepestFirst, dirs[i])
		}
	}
	require.NoError(t, tr.SetDirectoryModes(ctx, spec, deepestFirst))

	content, err := afero.ReadFile(fsys, "/mnt/box/srv/proj/locked/deeper/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "b", string(content))

	for _, dir := range []string{"/mnt/box/srv/proj/locked", "/mnt/box/srv/proj/locked/deeper"} {
		info, err := fsys.Stat(dir)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o555), info.Mode().Perm(), dir)
	}

	// the directory is now really locked
	extra := plan.Operation{Kind: plan.CopyFile, RelPath: "locked/a.txt", LocalPath: "/home/alice/proj/locked/a.txt", RemotePath: "/srv/proj/locked/new.txt", Mode: 0o644}
	assert.ErrorIs(t, tr.CopyFile(ctx, spec, extra), os.ErrPermission)
}

func TestDownloadAndList(t *testing.T) {
	ctx := testContext(t)
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/mnt/box/srv/proj/b/c.txt", []byte("see"), 0o600))
	require.NoError(t, afero.WriteFile(fsys, "/mnt/box/srv/proj/a.txt", []byte("ay"), 0o644))

	tr := New(fsys, "/mnt/box")
	spec := testSpec(endpoint.Download)
	spec.Local.Path = "/tmp/out"

	manifest, err := tr.List(ctx, spec.Remote)
	require.NoError(t, err)
	assert.Equal(t, walker.KindDirectory, manifest.RootKind)
	assert.Equal(t, 2, manifest.Files())

	p := plan.Build(ctx, manifest, spec)
	for _, op := range p.Operations {
		if op.Kind == plan.MakeDirectory {
			require.NoError(t, tr.MakeDirectories(ctx, spec, []plan.Operation{op}))
			continue
		}
		require.NoError(t, tr.CopyFile(ctx, spec, op))
	}

	content, err := afero.ReadFile(fsys, "/tmp/out/b/c.txt")
	require.NoError(t, err)
	assert.Equal(t, "see", string(content))
}

func TestProbe(t *testing.T) {
	ctx := testContext(t)
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/mnt/box/srv/file", []byte("x"), 0o644))
	tr := New(fsys, "/mnt/box")

	tests := []struct {
		path string
		want transport.Probe
	}{
		{path: "/srv", want: transport.Probe{Exists: true, IsDir: true}},
		{path: "/srv/file", want: transport.Probe{Exists: true}},
		{path: "/srv/none", want: transport.Probe{}},
	}
	for _, tt := range tests {
		got, err := tr.Probe(ctx, endpoint.Endpoint{Remote: true, Host: "box", Path: tt.path})
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestCopyFileMissingSource(t *testing.T) {
	ctx := testContext(t)
	tr := New(afero.NewMemMapFs(), "/mnt/box")
	op := plan.Operation{Kind: plan.CopyFile, RelPath: "gone", LocalPath: "/home/alice/proj/gone", RemotePath: "/srv/proj/gone"}

	err := tr.CopyFile(ctx, testSpec(endpoint.Upload), op)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFactoryNeedsRoot(t *testing.T) {
	_, err := transport.New(context.Background(), Name, transport.Settings{})
	assert.Error(t, err)

	tr, err := transport.New(context.Background(), Name, transport.Settings{LocalRoot: "/mnt/box"})
	require.NoError(t, err)
	assert.Equal(t, Name, tr.Name())
}
