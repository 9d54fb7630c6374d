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

package dryrun

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"

	"github.com/walteh/smartscp/pkg/endpoint"
	"github.com/walteh/smartscp/pkg/plan"
	"github.com/walteh/smartscp/pkg/transport"
	"github.com/walteh/smartscp/pkg/walker"
)

const Name = "dry-run"

func init() {
	transport.Register(Name, func(ctx context.Context, settings transport.Settings) (transport.Transport, error) {
		return New(settings.Out, nil), nil
	})
}

// 🧪 Transport prints every operation instead of performing it. Probes and
// listings are delegated to an inner transport when one is given, since they
// only read.
type Transport struct {
	out   io.Writer
	inner transport.Transport
	mu    sync.Mutex
}

var (
	_ transport.Transport = (*Transport)(nil)
	_ transport.Lister    = (*Transport)(nil)
)

// New creates a dry-run transport writing to out. inner may be nil.
func New(out io.Writer, inner transport.Transport) *Transport {
	if out == nil {
		out = os.Stdout
	}
	return &Transport{out: out, inner: inner}
}

// Name returns the registered name of the transport
func (t *Transport) Name() string {
	return Name
}

// Probe delegates to the inner transport, or reports nothing there
func (t *Transport) Probe(ctx context.Context, remote endpoint.Endpoint) (transport.Probe, error) {
	if t.inner == nil {
		return transport.Probe{}, nil
	}
	return t.inner.Probe(ctx, remote)
}

// List delegates to the inner transport's lister, or returns a lone root
// directory when there is nothing to ask
func (t *Transport) List(ctx context.Context, remote endpoint.Endpoint) (*walker.Manifest, error) {
	if lister, ok := t.inner.(transport.Lister); ok {
		return lister.List(ctx, remote)
	}
	return &walker.Manifest{Root: remote.Path, RootKind: walker.KindDirectory}, nil
}

// MakeDirectories prints one line per directory
func (t *Transport) MakeDirectories(ctx context.Context, spec *endpoint.TransferSpec, ops []plan.Operation) error {
	for _, op := range ops {
		t.print(color.CyanString("mkdir"), describe(spec, op.Destination(spec.Direction)), op)
	}
	return nil
}

// CopyFile prints the copy it would make
func (t *Transport) CopyFile(ctx context.Context, spec *endpoint.TransferSpec, op plan.Operation) error {
	t.print(color.GreenString("copy "), describe(spec, op.Destination(spec.Direction)), op)
	return nil
}

func (t *Transport) print(verb, dest string, op plan.Operation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if op.Mode != 0 {
		fmt.Fprintf(t.out, "%s %s %s\n", verb, color.HiBlackString("%04o", op.Mode.Perm()), dest)
		return
	}
	fmt.Fprintf(t.out, "%s %s %s\n", verb, color.HiBlackString("----"), dest)
}

func describe(spec *endpoint.TransferSpec, p string) string {
	if spec.Direction == endpoint.Upload {
		return spec.Remote.Login() + ":" + p
	}
	return p
}
