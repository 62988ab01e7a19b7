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
	"sort"

	"deps.dev/util/semver"
)

// VersionOrdering selects which end of the version range candidates are
// attempted from.
type VersionOrdering byte

const (
	// MaximumVersionsFirst attempts the newest matching versions first,
	// the default policy.
	MaximumVersionsFirst VersionOrdering = iota
	// MinimumVersionsFirst attempts the oldest matching versions first,
	// used to verify that declared minimum versions actually build.
	MinimumVersionsFirst
)

func (o VersionOrdering) String() string {
	if o == MinimumVersionsFirst {
		return "MinimumVersionsFirst"
	}
	return "MaximumVersionsFirst"
}

// VersionPreferences orders candidate lists before the resolver walks them.
// Preferred identities, typically seeded from a previous lockfile, sort
// before everything else regardless of the version ordering, so a
// re-resolution keeps prior selections when it can.
type VersionPreferences struct {
	prefer map[PackageID]bool
}

// NewVersionPreferences returns an empty preference set.
func NewVersionPreferences() *VersionPreferences {
	return &VersionPreferences{prefer: make(map[PackageID]bool)}
}

// Prefer records that the given identity should be offered before
// non-preferred candidates.
func (vp *VersionPreferences) Prefer(id PackageID) {
	vp.prefer[id] = true
}

// SortSummaries orders candidates in place: preferred identities first,
// then by the requested version ordering. Ties are broken by source so the
// order is deterministic. firstVersion indicates the caller will only take
// the head of the list; the full list is still returned in order, as the
// resolver backtracks through it.
func (vp *VersionPreferences) SortSummaries(summaries []*Summary, ordering VersionOrdering, firstVersion bool) {
	vers := make(map[PackageID]*semver.Version, len(summaries))
	for _, s := range summaries {
		v, err := semver.Cargo.Parse(s.Version())
		if err != nil {
			continue
		}
		vers[s.ID()] = v
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if pa, pb := vp.prefer[a.ID()], vp.prefer[b.ID()]; pa != pb {
			return pa
		}
		va, vb := vers[a.ID()], vers[b.ID()]
		if (va != nil) != (vb != nil) {
			// Unparseable versions sort last under either ordering.
			return va != nil
		}
		if va != nil {
			if c := va.Compare(vb); c != 0 {
				if ordering == MinimumVersionsFirst {
					return c < 0
				}
				return c > 0
			}
		} else if a.Version() != b.Version() {
			if ordering == MinimumVersionsFirst {
				return a.Version() < b.Version()
			}
			return a.Version() > b.Version()
		}
		return a.Source() < b.Source()
	})
}
