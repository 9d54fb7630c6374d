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
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/smartscp/pkg/status"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/singleflight"
)

// 💾 Cache holds the RuleSet of every directory visited during one invocation.
// Entries are written once and never evicted. Safe for concurrent use.
type Cache struct {
	fs       afero.Fs
	fileName string
	report   *status.Report

	mu    sync.RWMutex
	sets  map[string]*RuleSet
	group singleflight.Group
	reads atomic.Int64
}

// 🏭 NewCache creates an empty cache reading fileName from each directory of fsys
func NewCache(fsys afero.Fs, fileName string, report *status.Report) *Cache {
	if fileName == "" {
		fileName = DefaultFileName
	}
	return &Cache{
		fs:       fsys,
		fileName: fileName,
		report:   report,
		sets:     make(map[string]*RuleSet),
	}
}

// 🎯 Get returns the RuleSet for dir, loading it on first use
func (c *Cache) Get(ctx context.Context, dir string) *RuleSet {
	key := cleanSlash(dir)

	if rs, ok := c.lookup(key); ok {
		return rs
	}

	v, _, _ := c.group.Do(key, func() (interface{}, error) {
		if rs, ok := c.lookup(key); ok {
			return rs, nil
		}
		rs := c.load(ctx, key)
		c.mu.Lock()
		c.sets[key] = rs
		c.mu.Unlock()
		return rs, nil
	})
	return v.(*RuleSet)
}

// Reads returns how many directories had their rule file loaded
func (c *Cache) Reads() int64 {
	return c.reads.Load()
}

// Len returns the number of cached sets
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sets)
}

// FS returns the filesystem rule files are read from
func (c *Cache) FS() afero.Fs {
	return c.fs
}

func (c *Cache) lookup(key string) (*RuleSet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rs, ok := c.sets[key]
	return rs, ok
}

func (c *Cache) load(ctx context.Context, dir string) *RuleSet {
	c.reads.Add(1)
	rs, errs := ParseDir(c.fs, dir, c.fileName)
	c.record(ctx, dir, errs)

	if !rs.Empty() {
		zerolog.Ctx(ctx).Debug().
			Str("dir", dir).
			Int("patterns", len(rs.Patterns)).
			Msg("loaded rule file")
	}
	return rs
}

func (c *Cache) record(ctx context.Context, path string, errs []error) {
	for _, err := range errs {
		kind := status.WarningRuleFileUnreadable
		if errors.Is(err, ErrMalformedPattern) {
			kind = status.WarningMalformedPattern
		}
		c.report.Warn(ctx, kind, path, err)
	}
}
