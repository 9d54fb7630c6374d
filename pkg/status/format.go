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

package status

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// 🎨 Display configuration
const (
	fileIndent = 4  // spaces to indent entries
	kindWidth  = 22 // width for the warning kind column
)

// 🎯 FormatWarning formats a warning for console display
func FormatWarning(w Warning) string {
	line := fmt.Sprintf("%s%s %s %s",
		strings.Repeat(" ", fileIndent),
		color.YellowString("!"),
		fmt.Sprintf("%-*s", kindWidth, w.Kind),
		w.Path,
	)
	if w.Err != nil {
		line += color.HiBlackString(" (%v)", w.Err)
	}
	return line
}

// 📊 FormatSummary formats the end-of-run summary line. pruned counts the
// ignored paths that were whole directories.
func FormatSummary(dirs, files int, bytes uint64, ignored, pruned, warnings int) string {
	parts := []string{
		fmt.Sprintf("%d %s", dirs, plural(dirs, "directory", "directories")),
		fmt.Sprintf("%d %s (%s)", files, plural(files, "file", "files"), humanize.IBytes(bytes)),
	}
	switch {
	case ignored > 0 && pruned > 0:
		parts = append(parts, fmt.Sprintf("%d ignored (%d %s pruned)", ignored, pruned, plural(pruned, "directory", "directories")))
	case ignored > 0:
		parts = append(parts, fmt.Sprintf("%d ignored", ignored))
	}
	if warnings > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", warnings, plural(warnings, "warning", "warnings")))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
