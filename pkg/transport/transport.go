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

package transport

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/smartscp/pkg/endpoint"
	"github.com/walteh/smartscp/pkg/plan"
	"github.com/walteh/smartscp/pkg/walker"
)

// 🚚 Transport moves bytes for planned operations. Directories handed to
// MakeDirectories always precede the files copied into them.
type Transport interface {
	// Name returns the registered name of the transport
	Name() string
	// Probe reports what already exists at a remote endpoint
	Probe(ctx context.Context, remote endpoint.Endpoint) (Probe, error)
	// MakeDirectories creates every directory in ops on the destination side
	MakeDirectories(ctx context.Context, spec *endpoint.TransferSpec, ops []plan.Operation) error
	// CopyFile copies one file from source to destination
	CopyFile(ctx context.Context, spec *endpoint.TransferSpec, op plan.Operation) error
}

// 📂 Lister enumerates a remote tree for downloads. Entries must list
// directories before their contents; nothing is filtered.
type Lister interface {
	List(ctx context.Context, remote endpoint.Endpoint) (*walker.Manifest, error)
}

// 🔒 ModeSetter applies final directory modes once every file is in place.
// Transports implementing it create directories owner-writable first, so a
// read-only source directory can still be filled. ops arrive deepest first.
type ModeSetter interface {
	SetDirectoryModes(ctx context.Context, spec *endpoint.TransferSpec, ops []plan.Operation) error
}

// 🔍 Probe is what a transport found at a path
type Probe struct {
	Exists bool
	IsDir  bool
}

// ⚙️ Settings carry everything a factory may need
type Settings struct {
	SSHBinary  string    // ssh executable
	SCPBinary  string    // scp executable
	SSHOptions []string  // Extra -o options passed to ssh and scp
	LegacySCP  bool      // Use the legacy scp protocol (-O) instead of sftp
	LocalRoot  string    // Mount point standing in for the remote filesystem
	Out        io.Writer // Where dry runs print the plan
}

// ❌ OperationError is a failure of a single planned operation
type OperationError struct {
	Op  plan.Operation
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// 🏭 Factory creates a new transport
type Factory func(ctx context.Context, settings Settings) (Transport, error)

var (
	// 🗺️ factories is a map of transport names to factories
	factories = make(map[string]Factory)
)

// 📝 Register registers a transport factory
func Register(name string, factory Factory) {
	factories[name] = factory
}

// 🎯 New creates the named transport
func New(ctx context.Context, name string, settings Settings) (Transport, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, errors.Errorf("transport %s not found, options: %s", name, strings.Join(Names(), ", "))
	}
	return factory(ctx, settings)
}

// Names returns the registered transport names, sorted
func Names() []string {
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
