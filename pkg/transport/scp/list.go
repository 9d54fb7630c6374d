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
	"bytes"
	"context"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/smartscp/pkg/endpoint"
	"github.com/walteh/smartscp/pkg/walker"
)

// findFormat prints type, octal mode, size and the path below the start point,
// one NUL-terminated record per entry. The start point itself has an empty path.
const findFormat = `%y %m %s %P\0`

// List enumerates the remote tree with find. Records are sorted by path, which
// puts every directory before its contents.
func (t *Transport) List(ctx context.Context, remote endpoint.Endpoint) (*walker.Manifest, error) {
	out, err := t.remote(ctx, remote, "find "+quote(remote.Path)+" -printf "+quote(findFormat))
	if err != nil {
		return nil, errors.Errorf("listing %s: %w", remote.Target(), err)
	}

	m, err := parseFind(ctx, remote.Path, out)
	if err != nil {
		return nil, errors.Errorf("listing %s: %w", remote.Target(), err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("remote", remote.Target()).
		Int("files", m.Files()).
		Int("dirs", m.Dirs()).
		Msg("listed remote tree")

	return m, nil
}

func parseFind(ctx context.Context, root string, out []byte) (*walker.Manifest, error) {
	m := &walker.Manifest{Root: root}
	seenRoot := false

	for _, rec := range bytes.Split(out, []byte{0}) {
		if len(rec) == 0 {
			continue
		}

		fields := strings.SplitN(string(rec), " ", 4)
		if len(fields) != 4 {
			return nil, errors.Errorf("malformed find record %q", rec)
		}

		mode, err := strconv.ParseUint(fields[1], 8, 32)
		if err != nil {
			return nil, errors.Errorf("malformed mode in find record %q: %w", rec, err)
		}
		size, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, errors.Errorf("malformed size in find record %q: %w", rec, err)
		}

		e := walker.Entry{Path: fields[3], Mode: fs.FileMode(mode).Perm()}
		switch fields[0] {
		case "d":
			e.Kind = walker.KindDirectory
		case "f":
			e.Kind = walker.KindFile
			e.Size = size
		case "l":
			e.Kind = walker.KindFile
			e.Symlink = true
		default:
			zerolog.Ctx(ctx).Debug().Str("path", e.Path).Str("type", fields[0]).Msg("skipping special remote entry")
			continue
		}

		if e.Path == "" {
			seenRoot = true
			if e.IsDir() {
				m.RootKind = walker.KindDirectory
				continue
			}
			m.RootKind = walker.KindFile
			e.Path = "."
		}

		m.Entries = append(m.Entries, e)
	}

	if !seenRoot {
		return nil, errors.Errorf("remote path %s not found", root)
	}

	sort.SliceStable(m.Entries, func(i, j int) bool {
		return m.Entries[i].Path < m.Entries[j].Path
	})

	return m, nil
}
