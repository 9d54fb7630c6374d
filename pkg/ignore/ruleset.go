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
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// DefaultFileName is the rule file looked up in every directory
const DefaultFileName = ".gitignore"

// 📚 RuleSet is the ordered list of patterns declared by one rule file.
// It is never mutated after creation.
type RuleSet struct {
	Dir      string     // Slash-separated absolute directory the rules are scoped to
	Source   string     // Rule file the patterns came from, empty when there was none
	Patterns []*Pattern // Patterns in declaration order
}

// Empty reports whether the set has no patterns
func (rs *RuleSet) Empty() bool {
	return rs == nil || len(rs.Patterns) == 0
}

// 📝 ParseLines compiles rule lines scoped to dir. Malformed lines are skipped
// and returned as errors wrapping ErrMalformedPattern.
func ParseLines(dir, source string, lines []string) (*RuleSet, []error) {
	rs := &RuleSet{
		Dir:    cleanSlash(dir),
		Source: source,
	}
	var errs []error
	for i, line := range lines {
		p, err := ParsePattern(rs.Dir, line, i+1)
		if err != nil {
			errs = append(errs, errors.Errorf("%s: %w", source, err))
			continue
		}
		if p == nil {
			continue
		}
		rs.Patterns = append(rs.Patterns, p)
	}
	return rs, errs
}

// 📂 ParseFile reads the rule file at file and scopes its patterns to dir.
// A missing file yields an empty set and no error.
func ParseFile(fsys afero.Fs, dir, file string) (*RuleSet, []error) {
	data, err := afero.ReadFile(fsys, file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &RuleSet{Dir: cleanSlash(dir)}, nil
		}
		return &RuleSet{Dir: cleanSlash(dir)}, []error{errors.Errorf("%w: %s: %v", ErrRuleFileUnreadable, file, err)}
	}
	return ParseLines(dir, file, strings.Split(string(data), "\n"))
}

// 📂 ParseDir parses the rule file named fileName inside dir
func ParseDir(fsys afero.Fs, dir, fileName string) (*RuleSet, []error) {
	return ParseFile(fsys, dir, filepath.Join(filepath.FromSlash(dir), fileName))
}
