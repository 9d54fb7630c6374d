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

package scp

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/smartscp/pkg/endpoint"
	"github.com/walteh/smartscp/pkg/plan"
	"github.com/walteh/smartscp/pkg/transport"
)

const (
	Name = "scp"

	// mkdirBatch bounds the number of paths passed to one remote mkdir or chmod
	mkdirBatch = 256
)

func init() {
	transport.Register(Name, func(ctx context.Context, settings transport.Settings) (transport.Transport, error) {
		return New(settings, ExecRunner{}, afero.NewOsFs()), nil
	})
}

// 🔐 Transport copies over ssh. Authentication is left entirely to ssh and
// scp, which prompt on the terminal themselves.
type Transport struct {
	ssh     string
	scp     string
	options []string
	legacy  bool
	runner  CommandRunner
	local   afero.Fs
}

var (
	_ transport.Transport  = (*Transport)(nil)
	_ transport.Lister     = (*Transport)(nil)
	_ transport.ModeSetter = (*Transport)(nil)
)

// New creates an scp transport. local is used for the local side of downloads.
func New(settings transport.Settings, runner CommandRunner, local afero.Fs) *Transport {
	t := &Transport{
		ssh:    settings.SSHBinary,
		scp:    settings.SCPBinary,
		legacy: settings.LegacySCP,
		runner: runner,
		local:  local,
	}
	if t.ssh == "" {
		t.ssh = "ssh"
	}
	if t.scp == "" {
		t.scp = "scp"
	}
	for _, opt := range settings.SSHOptions {
		t.options = append(t.options, "-o", opt)
	}
	return t
}

// Name returns the registered name of the transport
func (t *Transport) Name() string {
	return Name
}

// Probe asks the remote shell whether the path is a directory, a file or absent
func (t *Transport) Probe(ctx context.Context, remote endpoint.Endpoint) (transport.Probe, error) {
	p := quote(remote.Path)
	script := "if [ -d " + p + " ]; then echo dir; elif [ -e " + p + " ]; then echo file; else echo none; fi"

	out, err := t.remote(ctx, remote, script)
	if err != nil {
		return transport.Probe{}, errors.Errorf("probing %s: %w", remote.Target(), err)
	}

	switch strings.TrimSpace(string(out)) {
	case "dir":
		return transport.Probe{Exists: true, IsDir: true}, nil
	case "file":
		return transport.Probe{Exists: true}, nil
	case "none":
		return transport.Probe{}, nil
	default:
		return transport.Probe{}, errors.Errorf("probing %s: unexpected output %q", remote.Target(), out)
	}
}

// MakeDirectories creates directories remotely in batches, or locally for downloads
func (t *Transport) MakeDirectories(ctx context.Context, spec *endpoint.TransferSpec, ops []plan.Operation) error {
	if spec.Direction == endpoint.Download {
		for _, op := range ops {
			if err := t.local.MkdirAll(op.LocalPath, dirMode(op)); err != nil {
				return &transport.OperationError{Op: op, Err: err}
			}
			if op.Mode != 0 {
				if err := t.local.Chmod(op.LocalPath, dirMode(op)); err != nil {
					return &transport.OperationError{Op: op, Err: err}
				}
			}
		}
		return nil
	}

	for start := 0; start < len(ops); start += mkdirBatch {
		batch := ops[start:min(start+mkdirBatch, len(ops))]

		args := make([]string, 0, len(batch)+3)
		args = append(args, "mkdir", "-p", "--")
		for _, op := range batch {
			args = append(args, quote(op.RemotePath))
		}

		if _, err := t.remote(ctx, spec.Remote, strings.Join(args, " ")); err != nil {
			return &transport.OperationError{Op: batch[0], Err: errors.Errorf("creating %d remote directories: %w", len(batch), err)}
		}
	}

	zerolog.Ctx(ctx).Debug().Int("count", len(ops)).Str("host", spec.Remote.Host).Msg("created remote directories")
	return nil
}

// SetDirectoryModes applies source modes once the files are in place: one
// remote chmod per run of equal modes, or a local chmod for downloads
func (t *Transport) SetDirectoryModes(ctx context.Context, spec *endpoint.TransferSpec, ops []plan.Operation) error {
	if spec.Direction == endpoint.Download {
		for _, op := range ops {
			if err := t.local.Chmod(op.LocalPath, op.Mode); err != nil {
				return &transport.OperationError{Op: op, Err: err}
			}
		}
		return nil
	}

	for start := 0; start < len(ops); start += mkdirBatch {
		batch := ops[start:min(start+mkdirBatch, len(ops))]
		if _, err := t.remote(ctx, spec.Remote, chmodScript(batch)); err != nil {
			return &transport.OperationError{Op: batch[0], Err: errors.Errorf("setting mode on %d remote directories: %w", len(batch), err)}
		}
	}

	zerolog.Ctx(ctx).Debug().Int("count", len(ops)).Str("host", spec.Remote.Host).Msg("set remote directory modes")
	return nil
}

// CopyFile runs scp -p for one file so permission bits travel with it. The
// legacy protocol (-O) expands the remote path in the remote shell, so it is
// quoted there; sftp mode takes it literally.
func (t *Transport) CopyFile(ctx context.Context, spec *endpoint.TransferSpec, op plan.Operation) error {
	target := op.RemotePath
	if t.legacy {
		target = quote(op.RemotePath)
	}
	remote := spec.Remote.Login() + ":" + target

	args := []string{"-p", "-q"}
	if t.legacy {
		args = append(args, "-O")
	}
	args = append(args, t.options...)
	if spec.Direction == endpoint.Download {
		args = append(args, remote, op.LocalPath)
	} else {
		args = append(args, op.LocalPath, remote)
	}

	if _, err := t.runner.Run(ctx, nil, t.scp, args...); err != nil {
		return err
	}
	return nil
}

// remote runs a shell command on the endpoint's host
func (t *Transport) remote(ctx context.Context, ep endpoint.Endpoint, command string) ([]byte, error) {
	args := make([]string, 0, len(t.options)+3)
	args = append(args, t.options...)
	args = append(args, "--", ep.Login(), command)
	return t.runner.Run(ctx, nil, t.ssh, args...)
}

// chmodScript keeps the order of ops, so children are locked before parents
func chmodScript(ops []plan.Operation) string {
	var b strings.Builder
	for i, op := range ops {
		if i == 0 || op.Mode != ops[i-1].Mode {
			if i > 0 {
				b.WriteString(" && ")
			}
			fmt.Fprintf(&b, "chmod %04o --", op.Mode.Perm())
		}
		b.WriteString(" ")
		b.WriteString(quote(op.RemotePath))
	}
	return b.String()
}

// dirMode is the owner-writable mode a local directory is created with
func dirMode(op plan.Operation) os.FileMode {
	if op.Mode == 0 {
		return 0o755
	}
	return op.Mode | 0o700
}
