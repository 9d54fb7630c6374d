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
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/smartscp/pkg/endpoint"
	"github.com/walteh/smartscp/pkg/plan"
	"github.com/walteh/smartscp/pkg/transport"
	"github.com/walteh/smartscp/pkg/walker"
)

const Name = "local"

func init() {
	transport.Register(Name, func(ctx context.Context, settings transport.Settings) (transport.Transport, error) {
		if settings.LocalRoot == "" {
			return nil, errors.Errorf("%s transport needs a local root (mount point of the remote filesystem)", Name)
		}
		return New(afero.NewOsFs(), settings.LocalRoot), nil
	})
}

// 💾 Transport copies into a locally mounted view of the remote host, such as
// an sshfs mount. Remote paths are resolved below root.
type Transport struct {
	fs   afero.Fs
	root string
}

var (
	_ transport.Transport  = (*Transport)(nil)
	_ transport.Lister     = (*Transport)(nil)
	_ transport.ModeSetter = (*Transport)(nil)
)

// New creates a local transport rooted at the mount point root
func New(fsys afero.Fs, root string) *Transport {
	return &Transport{fs: fsys, root: filepath.Clean(root)}
}

// Name returns the registered name of the transport
func (t *Transport) Name() string {
	return Name
}

// mounted maps a remote path to its location under the mount point
func (t *Transport) mounted(remote string) string {
	return filepath.Join(t.root, filepath.FromSlash(remote))
}

// Probe stats the mounted remote path
func (t *Transport) Probe(ctx context.Context, remote endpoint.Endpoint) (transport.Probe, error) {
	info, err := t.fs.Stat(t.mounted(remote.Path))
	if err != nil {
		if os.IsNotExist(err) {
			return transport.Probe{}, nil
		}
		return transport.Probe{}, errors.Errorf("probing %s: %w", remote.Path, err)
	}
	return transport.Probe{Exists: true, IsDir: info.IsDir()}, nil
}

// MakeDirectories creates each destination directory owner-writable. The
// source mode is applied later by SetDirectoryModes.
func (t *Transport) MakeDirectories(ctx context.Context, spec *endpoint.TransferSpec, ops []plan.Operation) error {
	for _, op := range ops {
		dst := t.destination(spec, op)
		mode := op.Mode | 0o700
		if op.Mode == 0 {
			mode = 0o755
		}
		if err := t.fs.MkdirAll(dst, mode); err != nil {
			return &transport.OperationError{Op: op, Err: err}
		}
		if op.Mode != 0 {
			if err := t.fs.Chmod(dst, mode); err != nil {
				return &transport.OperationError{Op: op, Err: err}
			}
		}
	}

	zerolog.Ctx(ctx).Debug().Int("count", len(ops)).Str("root", t.root).Msg("created directories")
	return nil
}

// SetDirectoryModes applies the source mode to each directory
func (t *Transport) SetDirectoryModes(ctx context.Context, spec *endpoint.TransferSpec, ops []plan.Operation) error {
	for _, op := range ops {
		if err := t.fs.Chmod(t.destination(spec, op), op.Mode); err != nil {
			return &transport.OperationError{Op: op, Err: err}
		}
	}
	return nil
}

// CopyFile streams one file and applies its permission bits
func (t *Transport) CopyFile(ctx context.Context, spec *endpoint.TransferSpec, op plan.Operation) error {
	src, dst := t.source(spec, op), t.destination(spec, op)

	in, err := t.fs.Open(src)
	if err != nil {
		return errors.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	mode := op.Mode
	if mode == 0 {
		mode = 0o644
	}

	out, err := t.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return errors.Errorf("creating %s: %w", dst, err)
	}

	if _, err := io.Copy(out, &contextReader{ctx: ctx, r: in}); err != nil {
		out.Close()
		return errors.Errorf("copying %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return errors.Errorf("closing %s: %w", dst, err)
	}

	if op.Mode != 0 {
		if err := t.fs.Chmod(dst, op.Mode); err != nil {
			return errors.Errorf("setting mode on %s: %w", dst, err)
		}
	}
	return nil
}

// List walks the mounted remote tree without ignore rules
func (t *Transport) List(ctx context.Context, remote endpoint.Endpoint) (*walker.Manifest, error) {
	m, err := walker.New(t.fs, t.mounted(remote.Path), nil, walker.Options{FollowSymlinks: true}).Walk(ctx)
	if err != nil {
		return nil, errors.Errorf("listing %s: %w", remote.Path, err)
	}
	return m, nil
}

func (t *Transport) source(spec *endpoint.TransferSpec, op plan.Operation) string {
	if spec.Direction == endpoint.Download {
		return t.mounted(op.RemotePath)
	}
	return op.LocalPath
}

func (t *Transport) destination(spec *endpoint.TransferSpec, op plan.Operation) string {
	if spec.Direction == endpoint.Download {
		return op.LocalPath
	}
	return t.mounted(op.RemotePath)
}

// contextReader stops a copy once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
