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

	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/smartscp/pkg/endpoint"
	"github.com/walteh/smartscp/pkg/ignore"
	"github.com/walteh/smartscp/pkg/log"
	"github.com/walteh/smartscp/pkg/plan"
	"github.com/walteh/smartscp/pkg/status"
	"github.com/walteh/smartscp/pkg/transport"
)

var ErrDestinationConflict = errors.Base("destination conflict")

// 🎯 Operator runs one transfer end to end
type Operator interface {
	// Plan resolves the destination and plans every operation without moving bytes
	Plan(ctx context.Context, spec *endpoint.TransferSpec) (*plan.Plan, error)
	// Transfer plans and then runs the plan through the transport
	Transfer(ctx context.Context, spec *endpoint.TransferSpec) (*Result, error)
}

// 🔧 Options contains configuration for the operator
type Options struct {
	// FS is the local filesystem
	FS afero.Fs
	// Transport moves the bytes
	Transport transport.Transport
	// Lister enumerates remote trees for downloads; defaults to Transport when it can list
	Lister transport.Lister
	// Report collects non-fatal warnings, may be nil
	Report *status.Report
	// Console prints one line per operation, may be nil
	Console *log.Logger
	// IgnoreFile is the per-directory rule file name
	IgnoreFile string
	// Ignore controls repository-level rule loading
	Ignore ignore.Options
	// Workers bounds concurrent directory scans during the walk
	Workers int
	// FollowSymlinks follows links to files and non-cyclic directories
	FollowSymlinks bool
	// Concurrency bounds concurrent file copies
	Concurrency int
	// DryRun marks console output as not performed
	DryRun bool
}

// 📊 Result is the outcome of a transfer
type Result struct {
	Plan *plan.Plan
}

// 🏭 New creates a new operator with the given options
func New(opts Options) (Operator, error) {
	if opts.FS == nil {
		return nil, errors.Errorf("filesystem is required")
	}
	if opts.Transport == nil {
		return nil, errors.Errorf("transport is required")
	}
	if opts.Lister == nil {
		if lister, ok := opts.Transport.(transport.Lister); ok {
			opts.Lister = lister
		}
	}
	if opts.IgnoreFile == "" {
		opts.IgnoreFile = ignore.DefaultFileName
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &operator{opts: opts}, nil
}

// 🎮 operator implements the Operator interface
type operator struct {
	opts Options
}

// Transfer plans and runs a transfer. The returned result carries the plan even
// when some operations failed.
func (o *operator) Transfer(ctx context.Context, spec *endpoint.TransferSpec) (*Result, error) {
	p, err := o.Plan(ctx, spec)
	if err != nil {
		return nil, err
	}

	runner := NewRunner(o.opts.Transport, o.opts.Concurrency, o.opts.Console, o.opts.DryRun)
	if err := runner.Run(ctx, p); err != nil {
		return &Result{Plan: p}, err
	}
	return &Result{Plan: p}, nil
}

// Plan dispatches on direction
func (o *operator) Plan(ctx context.Context, spec *endpoint.TransferSpec) (*plan.Plan, error) {
	switch spec.Direction {
	case endpoint.Download:
		return o.planDownload(ctx, spec)
	default:
		return o.planUpload(ctx, spec)
	}
}
