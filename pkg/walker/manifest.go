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

package walker

import (
	"fmt"
	"io/fs"
	"strings"
)

// 📦 Kind tells files and directories apart in a manifest
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
)

// String returns a string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	default:
		return "file"
	}
}

// 📄 Entry is one item selected for transfer
type Entry struct {
	Path    string      // Slash-separated, relative to the root; "." for a file root
	Kind    Kind        // File or directory
	Mode    fs.FileMode // Permission bits
	Size    int64       // Size in bytes, zero for directories
	Symlink bool        // Reached through a symbolic link
}

// IsDir reports whether the entry is a directory
func (e Entry) IsDir() bool {
	return e.Kind == KindDirectory
}

// 📋 Manifest is the ordered result of a walk. Every directory appears before
// any entry below it.
type Manifest struct {
	Root     string  // Absolute path that was walked
	RootKind Kind    // Whether the root is a file or a directory
	Entries  []Entry // Entries in pre-order, files before subdirectories
}

// Files returns the number of file entries
func (m *Manifest) Files() int {
	n := 0
	for _, e := range m.Entries {
		if !e.IsDir() {
			n++
		}
	}
	return n
}

// Dirs returns the number of directory entries
func (m *Manifest) Dirs() int {
	return len(m.Entries) - m.Files()
}

// Bytes returns the total size of all file entries
func (m *Manifest) Bytes() uint64 {
	var n uint64
	for _, e := range m.Entries {
		if !e.IsDir() && e.Size > 0 {
			n += uint64(e.Size)
		}
	}
	return n
}

// String renders the manifest one entry per line
func (m *Manifest) String() string {
	var b strings.Builder
	for _, e := range m.Entries {
		if e.IsDir() {
			fmt.Fprintf(&b, "d %04o %s\n", e.Mode.Perm(), e.Path)
		} else {
			fmt.Fprintf(&b, "f %04o %d %s\n", e.Mode.Perm(), e.Size, e.Path)
		}
	}
	return b.String()
}
