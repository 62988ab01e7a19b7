// Copyright 2023 Google LLC
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

package cargo

import (
	"fmt"
	"sort"

	"deps.dev/util/semver"
	"github.com/sthibaul/cargo/internal/lru"
)

// constraintCacheSize bounds the number of memoized parsed requirements.
// Requirements repeat heavily across an index, so a small cache is enough.
const constraintCacheSize = 512

// constraintCache memoizes parsed Cargo version requirements. Parsing is a
// pure function, so entries never need invalidation; the LRU only bounds
// memory.
type constraintCache struct {
	parsed *lru.Cache[string, *semver.Constraint]
}

func newConstraintCache() *constraintCache {
	return &constraintCache{parsed: lru.New[string, *semver.Constraint](constraintCacheSize)}
}

func (cc *constraintCache) parse(req string) (*semver.Constraint, error) {
	if c, ok := cc.parsed.Get(req); ok {
		return c, nil
	}
	c, err := semver.Cargo.ParseConstraint(req)
	if err != nil {
		return nil, fmt.Errorf("parsing requirement %q: %w", req, err)
	}
	cc.parsed.Add(req, c)
	return c, nil
}

// match reports whether a version satisfies the requirement. An empty
// requirement matches anything.
func (cc *constraintCache) match(req, ver string) (bool, error) {
	if req == "" {
		return true, nil
	}
	c, err := cc.parse(req)
	if err != nil {
		return false, err
	}
	return c.Match(ver), nil
}

// sortSummariesByVersion sorts summaries ascending by Cargo version order.
// Versions that do not parse sort first, lexicographically.
func sortSummariesByVersion(ss []*Summary) {
	vers := make(map[PackageID]*semver.Version, len(ss))
	for _, s := range ss {
		v, err := semver.Cargo.Parse(s.Version())
		if err != nil {
			continue
		}
		vers[s.ID()] = v
	}
	sort.SliceStable(ss, func(i, j int) bool {
		a, b := ss[i], ss[j]
		va, vb := vers[a.ID()], vers[b.ID()]
		if (va != nil) != (vb != nil) {
			return vb != nil
		}
		if va != nil {
			if c := va.Compare(vb); c != 0 {
				return c < 0
			}
		}
		return a.Version() < b.Version()
	})
}
