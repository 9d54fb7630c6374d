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
	"path"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/smartscp/pkg/endpoint"
	"github.com/walteh/smartscp/pkg/ignore"
	"github.com/walteh/smartscp/pkg/plan"
	"github.com/walteh/smartscp/pkg/walker"
)

// 📤 planUpload walks the local root with ignore rules and plans the upload
func (o *operator) planUpload(ctx context.Context, spec *endpoint.TransferSpec) (*plan.Plan, error) {
	info, err := o.opts.FS.Stat(spec.Local.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("%w: %s", endpoint.ErrLocalPathNotFound, spec.Local.Path)
		}
		return nil, errors.Errorf("%w: stat %s: %v", walker.ErrFilesystemFatal, spec.Local.Path, err)
	}

	spec, exists, err := o.resolveRemote(ctx, spec, info.IsDir())
	if err != nil {
		return nil, err
	}

	var matcher walker.Matcher
	if info.IsDir() {
		cache := ignore.NewCache(o.opts.FS, o.opts.IgnoreFile, o.opts.Report)
		matcher = ignore.NewResolver(ctx, cache, spec.Local.Path, o.opts.Ignore)
	}

	w := walker.New(o.opts.FS, spec.Local.Path, matcher, walker.Options{
		Workers:        o.opts.Workers,
		FollowSymlinks: o.opts.FollowSymlinks,
		Report:         o.opts.Report,
	})

	manifest, err := w.Walk(ctx)
	if err != nil {
		return nil, errors.Errorf("walking %s: %w", spec.Local.Path, err)
	}

	p := plan.Build(ctx, manifest, spec)
	if manifest.RootKind == walker.KindFile && !exists {
		p.AddParentDirectory()
	}
	return p, nil
}

// 📥 planDownload lists the remote tree and plans the download without filtering
func (o *operator) planDownload(ctx context.Context, spec *endpoint.TransferSpec) (*plan.Plan, error) {
	if o.opts.Lister == nil {
		return nil, errors.Errorf("transport %s cannot list remote trees", o.opts.Transport.Name())
	}

	manifest, err := o.opts.Lister.List(ctx, spec.Remote)
	if err != nil {
		return nil, errors.Errorf("listing remote: %w", err)
	}

	spec, exists, err := o.resolveLocal(ctx, spec, manifest.RootKind == walker.KindDirectory)
	if err != nil {
		return nil, err
	}

	p := plan.Build(ctx, manifest, spec)
	if manifest.RootKind == walker.KindFile && !exists {
		p.AddParentDirectory()
	}
	return p, nil
}

// resolveRemote applies scp destination rules for an upload. An existing remote
// directory receives the source under its basename, except that an inferred
// destination must not already exist for a directory upload. exists reports
// whether the typed destination was already there.
func (o *operator) resolveRemote(ctx context.Context, spec *endpoint.TransferSpec, rootIsDir bool) (_ *endpoint.TransferSpec, exists bool, err error) {
	probe, err := o.opts.Transport.Probe(ctx, spec.Remote)
	if err != nil {
		return nil, false, err
	}

	next := *spec
	base := filepath.Base(spec.Local.Path)

	switch {
	case !probe.Exists:
		return spec, false, nil
	case rootIsDir && !probe.IsDir:
		return nil, true, errors.Errorf("%w: remote %s exists and is not a directory", ErrDestinationConflict, spec.Remote.Target())
	case rootIsDir && spec.RemoteProvenance == endpoint.Inferred:
		return nil, true, errors.Errorf("%w: remote %s already exists, give an explicit destination", ErrDestinationConflict, spec.Remote.Target())
	case probe.IsDir:
		next.Remote.Path = path.Join(spec.Remote.Path, base)
	default:
		return spec, true, nil
	}

	zerolog.Ctx(ctx).Debug().Str("remote", next.Remote.Target()).Msg("remote directory exists, copying into it")
	return &next, true, nil
}

// resolveLocal applies the same rules on the local side of a download
func (o *operator) resolveLocal(ctx context.Context, spec *endpoint.TransferSpec, rootIsDir bool) (_ *endpoint.TransferSpec, exists bool, err error) {
	info, err := o.opts.FS.Stat(spec.Local.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return spec, false, nil
		}
		return nil, false, errors.Errorf("stat %s: %w", spec.Local.Path, err)
	}

	if !info.IsDir() {
		if rootIsDir {
			return nil, true, errors.Errorf("%w: local %s exists and is not a directory", ErrDestinationConflict, spec.Local.Path)
		}
		return spec, true, nil
	}

	next := *spec
	next.Local.Path = filepath.Join(spec.Local.Path, path.Base(spec.Remote.Path))

	if ok, _ := afero.Exists(o.opts.FS, next.Local.Path); ok && rootIsDir {
		zerolog.Ctx(ctx).Debug().Str("local", next.Local.Path).Msg("merging into existing directory")
	}
	return &next, true, nil
}
