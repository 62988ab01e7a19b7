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

/*
Package cargo implements the dependency-and-feature resolution cache at the
heart of a Cargo-style version resolver.

There are two sources of facts for a resolver: a Registry tells us, for a
Dependency, which published versions are available to fulfil it; a Summary
tells us, for a version and a set of requested features, which dependencies
must be fulfilled for it to be activated. These are immutable facts, so the
RegistryQueryer caches both answers as they are computed, applies replacement
rules to candidate lists, and cooperates with registries whose answers may
not be ready yet.

The outer resolver drives the queryer: it calls BuildDeps to learn what
activating a candidate entails, re-invokes after servicing pending registry
lookups, and uses ResetPending to detect when every answer has settled.
*/
package cargo

import (
	"fmt"
	"sort"

	"deps.dev/util/semver"
)

// SourceID identifies where a package comes from: a registry index URL, a
// git repository, a filesystem path. It is treated as an opaque identity.
type SourceID string

// CratesIO is the source of the default registry.
const CratesIO SourceID = "registry+https://github.com/rust-lang/crates.io-index"

// PackageID uniquely identifies a package at a specific version from a
// specific source.
type PackageID struct {
	Name    string
	Version string
	Source  SourceID
}

func (id PackageID) String() string {
	return fmt.Sprintf("%s v%s (%s)", id.Name, id.Version, id.Source)
}

// Compare reports whether id1 is less than, equal to or greater than id2,
// returning -1, 0 or 1 respectively.
// It compares Name, then Version by Cargo ordering, and then Source.
func (id1 PackageID) Compare(id2 PackageID) int {
	if id1.Name != id2.Name {
		if id1.Name < id2.Name {
			return -1
		}
		return 1
	}
	if c := semver.Cargo.Compare(id1.Version, id2.Version); c != 0 {
		return c
	}
	if id1.Source != id2.Source {
		if id1.Source < id2.Source {
			return -1
		}
		return 1
	}
	return 0
}

// Less reports whether id1 sorts before id2.
func (id1 PackageID) Less(id2 PackageID) bool { return id1.Compare(id2) < 0 }

// SortPackageIDs sorts the given slice of PackageIDs in the order specified
// by the PackageID.Less method.
func SortPackageIDs(ids []PackageID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}

// PackageIDSpec is a pattern that may match a PackageID. It is how
// replacement rules nominate their targets: an empty Version or Source
// matches any.
type PackageIDSpec struct {
	Name string
	// Version, when non-empty, is a full or partial version: "1", "1.2"
	// and "1.2.3" all match 1.2.3.
	Version string
	Source  SourceID
}

// Matches reports whether the spec matches the given package identity.
func (s PackageIDSpec) Matches(id PackageID) bool {
	if s.Name != id.Name {
		return false
	}
	if s.Version != "" {
		c, err := semver.Cargo.ParseConstraint("=" + s.Version)
		if err != nil || !c.Match(id.Version) {
			return false
		}
	}
	if s.Source != "" && s.Source != id.Source {
		return false
	}
	return true
}

func (s PackageIDSpec) String() string {
	out := s.Name
	if s.Version != "" {
		out += "@" + s.Version
	}
	if s.Source != "" {
		out = string(s.Source) + "#" + out
	}
	return out
}
