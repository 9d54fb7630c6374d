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

package operation

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/smartscp/pkg/endpoint"
	"github.com/walteh/smartscp/pkg/ignore"
	"github.com/walteh/smartscp/pkg/plan"
	"github.com/walteh/smartscp/pkg/status"
	"github.com/walteh/smartscp/pkg/transport"
	"github.com/walteh/smartscp/pkg/transport/local"
)

// 🎭 fakeTransport answers probes from a fixed value and records operations
type fakeTransport struct {
	probe  transport.Probe
	fail   map[string]bool
	mu     sync.Mutex
	dirs   []string
	copies []string
	modes  []string
	// copiedBeforeModes is how many files were in place when modes were set
	copiedBeforeModes int
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Probe(ctx context.Context, remote endpoint.Endpoint) (transport.Probe, error) {
	return f.probe, nil
}

func (f *fakeTransport) MakeDirectories(ctx context.Context, spec *endpoint.TransferSpec, ops []plan.Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, op := range ops {
		f.dirs = append(f.dirs, op.RelPath)
	}
	return nil
}

func (f *fakeTransport) CopyFile(ctx context.Context, spec *endpoint.TransferSpec, op plan.Operation) error {
	if f.fail[op.RelPath] {
		return errors.New("connection reset")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copies = append(f.copies, op.RelPath)
	return nil
}

func (f *fakeTransport) SetDirectoryModes(ctx context.Context, spec *endpoint.TransferSpec, ops []plan.Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copiedBeforeModes = len(f.copies)
	for _, op := range ops {
		f.modes = append(f.modes, op.RelPath)
	}
	return nil
}

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	return logger.WithContext(context.Background())
}

func writeTree(t *testing.T, fsys afero.Fs, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, fsys.MkdirAll(filepath.Dir(name), 0o755))
		require.NoError(t, afero.WriteFile(fsys, name, []byte(content), 0o644))
	}
}

func uploadSpec(provenance endpoint.Provenance) *endpoint.TransferSpec {
	return &endpoint.TransferSpec{
		Direction:        endpoint.Upload,
		Local:            endpoint.Endpoint{Path: "/home/alice/proj"},
		Remote:           endpoint.Endpoint{Remote: true, Host: "box", Path: "/srv/proj"},
		RemoteProvenance: provenance,
	}
}

func TestTransferUploadRespectsIgnoreRules(t *testing.T) {
	ctx := testContext(t)
	fsys := afero.NewMemMapFs()
	writeTree(t, fsys, map[string]string{
		"/home/alice/proj/.gitignore":      "*.log\nbuild/\n",
		"/home/alice/proj/a.txt":           "a",
		"/home/alice/proj/debug.log":       "noise",
		"/home/alice/proj/build/out.bin":   "bin",
		"/home/alice/proj/src/main.go":     "package main",
		"/home/alice/proj/src/.gitignore":  "!keep.log\n",
		"/home/alice/proj/src/keep.log":    "kept",
		"/home/alice/proj/src/gen/skip.go": "x",
	})
	report := status.NewReport()

	op, err := New(Options{
		FS:        fsys,
		Transport: local.New(fsys, "/mnt/box"),
		Report:    report,
		Ignore:    ignore.Options{Exclude: []string{"gen/"}},
	})
	require.NoError(t, err)

	res, err := op.Transfer(ctx, uploadSpec(endpoint.UserProvided))
	require.NoError(t, err)

	for _, want := range []string{".gitignore", "a.txt", "src/main.go", "src/keep.log", "src/.gitignore"} {
		ok, err := afero.Exists(fsys, filepath.Join("/mnt/box/srv/proj", want))
		require.NoError(t, err)
		assert.True(t, ok, "%s should be copied", want)
	}
	for _, skipped := range []string{"debug.log", "build", "src/gen"} {
		ok, err := afero.Exists(fsys, filepath.Join("/mnt/box/srv/proj", skipped))
		require.NoError(t, err)
		assert.False(t, ok, "%s should be skipped", skipped)
	}

	dirs, files := res.Plan.Counts()
	assert.Equal(t, 2, dirs)
	assert.Equal(t, 5, files)
	assert.Equal(t, []string{"build", "debug.log", "src/gen"}, report.Ignored())
}

func TestResolveRemote(t *testing.T) {
	tests := []struct {
		name       string
		rootIsDir  bool
		probe      transport.Probe
		provenance endpoint.Provenance
		want       string
		wantExists bool
		conflict   bool
	}{
		{name: "absent", rootIsDir: true, want: "/srv/proj"},
		{name: "dir_into_existing_dir", rootIsDir: true, probe: transport.Probe{Exists: true, IsDir: true}, want: "/srv/proj/proj", wantExists: true},
		{name: "inferred_dir_exists", rootIsDir: true, probe: transport.Probe{Exists: true, IsDir: true}, provenance: endpoint.Inferred, conflict: true},
		{name: "dir_onto_file", rootIsDir: true, probe: transport.Probe{Exists: true}, conflict: true},
		{name: "file_into_dir", probe: transport.Probe{Exists: true, IsDir: true}, provenance: endpoint.Inferred, want: "/srv/proj/proj", wantExists: true},
		{name: "file_over_file", probe: transport.Probe{Exists: true}, want: "/srv/proj", wantExists: true},
		{name: "file_absent", want: "/srv/proj"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &operator{opts: Options{Transport: &fakeTransport{probe: tt.probe}}}
			spec := uploadSpec(tt.provenance)

			got, exists, err := o.resolveRemote(testContext(t), spec, tt.rootIsDir)
			if tt.conflict {
				assert.ErrorIs(t, err, ErrDestinationConflict)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Remote.Path)
			assert.Equal(t, tt.wantExists, exists)
			assert.Equal(t, "/srv/proj", spec.Remote.Path, "input spec is not modified")
		})
	}
}

func TestTransferFileCreatesMissingParents(t *testing.T) {
	ctx := testContext(t)
	tmp := t.TempDir()
	fsys := afero.NewOsFs()

	src := filepath.Join(tmp, "home", ".config", "app", "settings.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("theme = \"dark\"\n"), 0o600))
	mount := filepath.Join(tmp, "mnt")
	require.NoError(t, os.MkdirAll(mount, 0o755))

	op, err := New(Options{FS: fsys, Transport: local.New(fsys, mount)})
	require.NoError(t, err)

	res, err := op.Transfer(ctx, &endpoint.TransferSpec{
		Direction:        endpoint.Upload,
		Local:            endpoint.Endpoint{Path: src},
		Remote:           endpoint.Endpoint{Remote: true, Host: "box", Path: "/home/bob/.config/app/settings.toml"},
		RemoteProvenance: endpoint.Inferred,
	})
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(mount, "home", "bob", ".config", "app", "settings.toml"))
	require.NoError(t, err)
	assert.Equal(t, "theme = \"dark\"\n", string(content))

	require.NotEmpty(t, res.Plan.Operations)
	first := res.Plan.Operations[0]
	assert.Equal(t, plan.MakeDirectory, first.Kind)
	assert.Equal(t, plan.ParentRelPath, first.RelPath)
	assert.Equal(t, "/home/bob/.config/app", first.RemotePath)
}

func TestTransferFileDownloadCreatesMissingParents(t *testing.T) {
	ctx := testContext(t)
	tmp := t.TempDir()
	fsys := afero.NewOsFs()

	mount := filepath.Join(tmp, "mnt")
	require.NoError(t, os.MkdirAll(filepath.Join(mount, "etc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(mount, "etc", "hosts"), []byte("127.0.0.1 localhost\n"), 0o644))

	op, err := New(Options{FS: fsys, Transport: local.New(fsys, mount)})
	require.NoError(t, err)

	dst := filepath.Join(tmp, "out", "backup", "hosts")
	_, err = op.Transfer(ctx, &endpoint.TransferSpec{
		Direction: endpoint.Download,
		Local:     endpoint.Endpoint{Path: dst},
		Remote:    endpoint.Endpoint{Remote: true, Host: "box", Path: "/etc/hosts"},
	})
	require.NoError(t, err)
	assert.FileExists(t, dst)
}

func TestTransferDownload(t *testing.T) {
	ctx := testContext(t)
	fsys := afero.NewMemMapFs()
	writeTree(t, fsys, map[string]string{
		"/mnt/box/var/log/app/current.log":  "now",
		"/mnt/box/var/log/app/old/1.log.gz": "then",
	})
	require.NoError(t, fsys.MkdirAll("/tmp/out", 0o755))

	op, err := New(Options{FS: fsys, Transport: local.New(fsys, "/mnt/box")})
	require.NoError(t, err)

	spec := &endpoint.TransferSpec{
		Direction: endpoint.Download,
		Local:     endpoint.Endpoint{Path: "/tmp/out"},
		Remote:    endpoint.Endpoint{Remote: true, Host: "box", Path: "/var/log/app"},
	}
	res, err := op.Transfer(ctx, spec)
	require.NoError(t, err)

	content, err := afero.ReadFile(fsys, "/tmp/out/app/old/1.log.gz")
	require.NoError(t, err)
	assert.Equal(t, "then", string(content))
	assert.Equal(t, "/tmp/out/app", res.Plan.Spec.Local.Path)
}

func TestTransferDownloadOntoFile(t *testing.T) {
	ctx := testContext(t)
	fsys := afero.NewMemMapFs()
	writeTree(t, fsys, map[string]string{
		"/mnt/box/var/log/app/current.log": "now",
		"/tmp/out":                         "not a directory",
	})

	op, err := New(Options{FS: fsys, Transport: local.New(fsys, "/mnt/box")})
	require.NoError(t, err)

	_, err = op.Transfer(ctx, &endpoint.TransferSpec{
		Direction: endpoint.Download,
		Local:     endpoint.Endpoint{Path: "/tmp/out"},
		Remote:    endpoint.Endpoint{Remote: true, Host: "box", Path: "/var/log/app"},
	})
	assert.ErrorIs(t, err, ErrDestinationConflict)
}

func TestRunnerCollectsFailures(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		t.Run(map[int]string{1: "sync", 4: "async"}[concurrency], func(t *testing.T) {
			ctx := testContext(t)
			fsys := afero.NewMemMapFs()
			writeTree(t, fsys, map[string]string{
				"/home/alice/proj/a": "a",
				"/home/alice/proj/b": "b",
				"/home/alice/proj/c": "c",
			})
			fake := &fakeTransport{fail: map[string]bool{"b": true}}

			op, err := New(Options{FS: fsys, Transport: fake, Concurrency: concurrency})
			require.NoError(t, err)

			res, err := op.Transfer(ctx, uploadSpec(endpoint.UserProvided))
			require.Error(t, err)
			require.NotNil(t, res)

			var opErr *transport.OperationError
			require.True(t, errors.As(err, &opErr))
			assert.Equal(t, "b", opErr.Op.RelPath)
			assert.ElementsMatch(t, []string{"a", "c"}, fake.copies)
			assert.Equal(t, []string{"."}, fake.dirs)
		})
	}
}

func TestRunnerSetsDirectoryModesLast(t *testing.T) {
	ctx := testContext(t)
	fake := &fakeTransport{}
	spec := uploadSpec(endpoint.UserProvided)

	p := &plan.Plan{Spec: spec, Operations: []plan.Operation{
		{Kind: plan.MakeDirectory, RelPath: ".", Mode: 0o755},
		{Kind: plan.MakeDirectory, RelPath: "ro", Mode: 0o555},
		{Kind: plan.MakeDirectory, RelPath: "ro/inner", Mode: 0o555},
		{Kind: plan.MakeDirectory, RelPath: "unknown"},
		{Kind: plan.CopyFile, RelPath: "ro/inner/a.txt", Mode: 0o644},
		{Kind: plan.CopyFile, RelPath: "ro/b.txt", Mode: 0o644},
	}}

	require.NoError(t, NewRunner(fake, 1, nil, false).Run(ctx, p))

	assert.Equal(t, []string{".", "ro", "ro/inner", "unknown"}, fake.dirs)
	assert.Equal(t, []string{"ro/inner", "ro", "."}, fake.modes)
	assert.Equal(t, 2, fake.copiedBeforeModes)
}

func TestRunnerSetsModesAfterFailedCopy(t *testing.T) {
	ctx := testContext(t)
	fake := &fakeTransport{fail: map[string]bool{"ro/a.txt": true}}

	p := &plan.Plan{Spec: uploadSpec(endpoint.UserProvided), Operations: []plan.Operation{
		{Kind: plan.MakeDirectory, RelPath: "ro", Mode: 0o555},
		{Kind: plan.CopyFile, RelPath: "ro/a.txt", Mode: 0o644},
	}}

	err := NewRunner(fake, 4, nil, false).Run(ctx, p)
	require.Error(t, err)
	assert.Equal(t, []string{"ro"}, fake.modes)
}

func TestPlanErrors(t *testing.T) {
	ctx := testContext(t)
	fsys := afero.NewMemMapFs()

	_, err := New(Options{FS: fsys})
	assert.Error(t, err, "transport is required")

	op, err := New(Options{FS: fsys, Transport: &fakeTransport{}})
	require.NoError(t, err)

	_, err = op.Plan(ctx, uploadSpec(endpoint.UserProvided))
	assert.ErrorIs(t, err, endpoint.ErrLocalPathNotFound)

	_, err = op.Plan(ctx, &endpoint.TransferSpec{
		Direction: endpoint.Download,
		Local:     endpoint.Endpoint{Path: "/tmp/out"},
		Remote:    endpoint.Endpoint{Remote: true, Host: "box", Path: "/x"},
	})
	assert.Error(t, err, "fake transport cannot list")
}
