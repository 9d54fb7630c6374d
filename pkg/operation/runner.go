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
	"sync"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/walteh/smartscp/pkg/log"
	"github.com/walteh/smartscp/pkg/plan"
	"github.com/walteh/smartscp/pkg/transport"
)

// 🏃 OperationRunner executes a plan through a transport
type OperationRunner struct {
	transport   transport.Transport
	concurrency int
	console     *log.Logger
	dryRun      bool
}

// 🏗️ NewRunner creates a new runner. A concurrency above one copies files
// asynchronously, bounded by that many in flight.
func NewRunner(t transport.Transport, concurrency int, console *log.Logger, dryRun bool) *OperationRunner {
	return &OperationRunner{
		transport:   t,
		concurrency: concurrency,
		console:     console,
		dryRun:      dryRun,
	}
}

// 🏃 Run creates all directories first, then copies files, then applies final
// directory modes when the transport supports it. A failed copy does not stop
// the others; every failure is returned joined.
func (r *OperationRunner) Run(ctx context.Context, p *plan.Plan) error {
	var dirs, files []plan.Operation
	for _, op := range p.Operations {
		if op.Kind == plan.MakeDirectory {
			dirs = append(dirs, op)
		} else {
			files = append(files, op)
		}
	}

	if len(dirs) > 0 {
		if err := r.transport.MakeDirectories(ctx, p.Spec, dirs); err != nil {
			return errors.Errorf("creating directories: %w", err)
		}
		for _, op := range dirs {
			r.log(ctx, op, nil)
		}
	}

	var err error
	if r.concurrency > 1 {
		err = r.runAsync(ctx, p, files)
	} else {
		err = r.runSync(ctx, p, files)
	}
	if ctx.Err() != nil {
		return err
	}
	return errors.Join(err, r.setModes(ctx, p, dirs))
}

// setModes hands directories with a known mode to the transport, children
// before parents so a read-only parent is locked last
func (r *OperationRunner) setModes(ctx context.Context, p *plan.Plan, dirs []plan.Operation) error {
	setter, ok := r.transport.(transport.ModeSetter)
	if !ok {
		return nil
	}

	final := make([]plan.Operation, 0, len(dirs))
	for i := len(dirs) - 1; i >= 0; i-- {
		if dirs[i].Mode != 0 {
			final = append(final, dirs[i])
		}
	}
	if len(final) == 0 {
		return nil
	}

	if err := setter.SetDirectoryModes(ctx, p.Spec, final); err != nil {
		return errors.Errorf("setting directory modes: %w", err)
	}
	return nil
}

// 🔄 runSync copies files one at a time
func (r *OperationRunner) runSync(ctx context.Context, p *plan.Plan, files []plan.Operation) error {
	var errs []error
	for _, op := range files {
		if err := ctx.Err(); err != nil {
			return errors.Errorf("operation cancelled: %w", err)
		}
		if err := r.copy(ctx, p, op); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ⚡ runAsync copies files concurrently
func (r *OperationRunner) runAsync(ctx context.Context, p *plan.Plan, files []plan.Operation) error {
	var (
		mu   sync.Mutex
		errs []error
	)

	g := &errgroup.Group{}
	g.SetLimit(r.concurrency)

	for _, op := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := r.copy(ctx, p, op); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return errors.Errorf("operation cancelled: %w", err)
	}
	return errors.Join(errs...)
}

func (r *OperationRunner) copy(ctx context.Context, p *plan.Plan, op plan.Operation) error {
	err := r.transport.CopyFile(ctx, p.Spec, op)
	if err != nil {
		var opErr *transport.OperationError
		if !errors.As(err, &opErr) {
			err = &transport.OperationError{Op: op, Err: err}
		}
		zerolog.Ctx(ctx).Error().Err(err).Str("path", op.RelPath).Msg("copy failed")
	}
	r.log(ctx, op, err)
	return err
}

func (r *OperationRunner) log(ctx context.Context, op plan.Operation, err error) {
	if r.console == nil {
		return
	}
	r.console.LogTransferOperation(ctx, log.TransferOperation{
		Path:   op.RelPath,
		IsDir:  op.Kind == plan.MakeDirectory,
		Size:   op.Size,
		DryRun: r.dryRun,
		Err:    err,
	})
}
