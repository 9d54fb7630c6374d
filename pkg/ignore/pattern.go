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

package ignore

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrMalformedPattern is returned for a rule line that cannot be compiled
	ErrMalformedPattern = errors.Base("malformed pattern")
	// ErrRuleFileUnreadable is returned when a rule file exists but cannot be read
	ErrRuleFileUnreadable = errors.Base("rule file unreadable")
)

// 🎯 Pattern is one compiled ignore rule. It is immutable once parsed.
type Pattern struct {
	Text          string // Line as written in the rule file
	Glob          string // doublestar glob, relative to Base
	Base          string // Slash-separated absolute directory owning the rule
	Line          int    // 1-based line number in the rule file
	Negated       bool   // Leading "!": re-includes a previously excluded path
	DirectoryOnly bool   // Trailing "/": matches directories only
	Anchored      bool   // Contains a "/": relative to Base instead of any depth

	// parent is set for globs ending in "/**", which match inside a
	// directory but never the directory itself
	parent string
}

// 📝 ParsePattern compiles a single rule line owned by base.
// Blank lines and comments return (nil, nil).
func ParsePattern(base, line string, lineNo int) (*Pattern, error) {
	text := strings.TrimRight(line, "\r")
	if !strings.HasSuffix(text, `\ `) {
		text = strings.TrimRight(text, " \t")
	}
	if text == "" || strings.HasPrefix(text, "#") {
		return nil, nil
	}

	p := &Pattern{
		Text: text,
		Base: cleanSlash(base),
		Line: lineNo,
	}

	body := text
	if strings.HasPrefix(body, "!") {
		p.Negated = true
		body = body[1:]
	} else if strings.HasPrefix(body, `\!`) || strings.HasPrefix(body, `\#`) {
		body = body[1:]
	}

	if strings.HasSuffix(body, "/") {
		p.DirectoryOnly = true
		body = strings.TrimRight(body, "/")
	}

	if strings.Contains(body, "/") {
		p.Anchored = true
		body = strings.TrimLeft(body, "/")
	}

	if body == "" {
		return nil, errors.Errorf("%w: %q on line %d", ErrMalformedPattern, text, lineNo)
	}

	if p.Anchored {
		p.Glob = body
	} else {
		p.Glob = "**/" + body
	}

	if !doublestar.ValidatePattern(p.Glob) {
		return nil, errors.Errorf("%w: %q on line %d", ErrMalformedPattern, text, lineNo)
	}

	if parent, ok := strings.CutSuffix(p.Glob, "/**"); ok {
		p.parent = parent
	}

	return p, nil
}

// 🔍 Match reports whether the pattern names the entry at abs (slash-separated, absolute).
// Entries outside Base never match.
func (p *Pattern) Match(abs string, isDir bool) bool {
	if p.DirectoryOnly && !isDir {
		return false
	}
	rel, ok := relativeTo(p.Base, abs)
	if !ok {
		return false
	}
	if p.parent != "" && doublestar.MatchUnvalidated(p.parent, rel) {
		return false
	}
	return doublestar.MatchUnvalidated(p.Glob, rel)
}

// String returns the rule as written
func (p *Pattern) String() string {
	return p.Text
}

// relativeTo returns abs relative to base when abs is strictly inside base
func relativeTo(base, abs string) (string, bool) {
	if base == "/" {
		rel := strings.TrimPrefix(abs, "/")
		return rel, rel != ""
	}
	if !strings.HasPrefix(abs, base+"/") {
		return "", false
	}
	return abs[len(base)+1:], true
}

func cleanSlash(p string) string {
	p = filepath.ToSlash(p)
	if p == "" {
		return "/"
	}
	return path.Clean(p)
}
