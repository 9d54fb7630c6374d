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

package plan

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"

	"github.com/walteh/smartscp/pkg/endpoint"
	"github.com/walteh/smartscp/pkg/walker"
)

// 🛠️ OpKind is the kind of a planned operation
type OpKind int

const (
	MakeDirectory OpKind = iota
	CopyFile
)

// String returns a string representation of OpKind
func (k OpKind) String() string {
	if k == CopyFile {
		return "copy"
	}
	return "mkdir"
}

// 📝 Operation is one step for a transport to perform
type Operation struct {
	Kind       OpKind
	RelPath    string      // Slash-separated, relative to the transfer root; "." is the root itself
	LocalPath  string      // Absolute local path
	RemotePath string      // Absolute remote path
	Mode       fs.FileMode // Permission bits to apply, zero when unknown
	Size       int64       // Expected size for files, zero when unknown
}

// Source returns the path this operation reads from
func (o Operation) Source(dir endpoint.Direction) string {
	if dir == endpoint.Download {
		return o.RemotePath
	}
	return o.LocalPath
}

// Destination returns the path this operation writes to
func (o Operation) Destination(dir endpoint.Direction) string {
	if dir == endpoint.Download {
		return o.LocalPath
	}
	return o.RemotePath
}

// String returns a string representation of Operation
func (o Operation) String() string {
	return fmt.Sprintf("%s %s", o.Kind, o.RelPath)
}

// 📋 Plan is the ordered operation list for one transfer
type Plan struct {
	Spec       *endpoint.TransferSpec
	Operations []Operation
}

// Counts returns the number of directory and file operations
func (p *Plan) Counts() (dirs, files int) {
	for _, op := range p.Operations {
		if op.Kind == MakeDirectory {
			dirs++
		} else {
			files++
		}
	}
	return dirs, files
}

// Bytes returns the total expected size of all copies
func (p *Plan) Bytes() uint64 {
	var n uint64
	for _, op := range p.Operations {
		if op.Kind == CopyFile && op.Size > 0 {
			n += uint64(op.Size)
		}
	}
	return n
}

// Directories returns the destination paths of all MakeDirectory operations
func (p *Plan) Directories() []string {
	out := []string{}
	for _, op := range p.Operations {
		if op.Kind == MakeDirectory {
			out = append(out, op.Destination(p.Spec.Direction))
		}
	}
	return out
}

// Files returns all CopyFile operations
func (p *Plan) Files() []Operation {
	out := []Operation{}
	for _, op := range p.Operations {
		if op.Kind == CopyFile {
			out = append(out, op)
		}
	}
	return out
}

// Build projects a manifest onto a transfer spec. Directories are emitted in
// manifest order, each exactly once. The manifest root maps to the spec's
// local and remote paths.
func Build(ctx context.Context, manifest *walker.Manifest, spec *endpoint.TransferSpec) *Plan {
	p := &Plan{Spec: spec, Operations: make([]Operation, 0, len(manifest.Entries)+1)}
	planned := mapset.NewThreadUnsafeSet[string]()

	if manifest.RootKind == walker.KindDirectory {
		planned.Add(".")
		p.Operations = append(p.Operations, Operation{
			Kind:       MakeDirectory,
			RelPath:    ".",
			LocalPath:  spec.Local.Path,
			RemotePath: spec.Remote.Path,
		})
	}

	for _, e := range manifest.Entries {
		op := Operation{
			RelPath:    e.Path,
			LocalPath:  localJoin(spec.Local.Path, e.Path),
			RemotePath: remoteJoin(spec.Remote.Path, e.Path),
			Mode:       e.Mode.Perm(),
			Size:       e.Size,
		}

		if e.IsDir() {
			if !planned.Add(e.Path) {
				continue
			}
			op.Kind = MakeDirectory
			op.Size = 0
		} else {
			op.Kind = CopyFile
		}

		p.Operations = append(p.Operations, op)
	}

	dirs, files := p.Counts()
	zerolog.Ctx(ctx).Debug().
		Str("spec", spec.String()).
		Int("dirs", dirs).
		Int("files", files).
		Msg("planned transfer")

	return p
}

// ParentRelPath names the directory holding the destination root
const ParentRelPath = ".."

// AddParentDirectory plans the destination root's parent first. A file root
// copied to a path whose parents are missing needs it; directory roots get
// their parents from MakeDirectory(".") already.
func (p *Plan) AddParentDirectory() {
	parent := Operation{
		Kind:       MakeDirectory,
		RelPath:    ParentRelPath,
		LocalPath:  filepath.Dir(p.Spec.Local.Path),
		RemotePath: path.Dir(p.Spec.Remote.Path),
	}
	p.Operations = append([]Operation{parent}, p.Operations...)
}

func localJoin(root, rel string) string {
	if rel == "." {
		return root
	}
	return filepath.Join(root, filepath.FromSlash(rel))
}

func remoteJoin(root, rel string) string {
	if rel == "." {
		return root
	}
	return path.Join(root, rel)
}
