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
	"errors"
	"sort"
	"strings"

	"deps.dev/util/semver"
	"github.com/sthibaul/cargo/version"
)

// QueryKind selects how a registry matches a dependency against its index.
type QueryKind byte

const (
	// QueryExact matches the dependency's name and version requirement.
	QueryExact QueryKind = iota
	// QueryAlternatives matches the name only, ignoring the version
	// requirement. Used to suggest versions when an exact query comes
	// back empty.
	QueryAlternatives
	// QueryNormalized matches names loosely, treating '-' and '_' as
	// equivalent. Used to suggest likely misspellings.
	QueryNormalized
)

// Registry is the source of candidate summaries for dependencies.
//
// A registry may be backed by data that is not available yet: Query reports
// ready=false in that case, and the caller re-drives the same query after
// servicing the registry. A pending query must not invoke the sink.
type Registry interface {
	// Query streams every summary matching the dependency to sink.
	// It reports whether the answer was ready.
	Query(d Dependency, kind QueryKind, sink func(*Summary)) (ready bool, err error)
}

// QueryVec collects a registry query into a list.
func QueryVec(r Registry, d Dependency, kind QueryKind) ([]*Summary, bool, error) {
	var out []*Summary
	ready, err := r.Query(d, kind, func(s *Summary) {
		out = append(out, s)
	})
	if err != nil || !ready {
		return nil, ready, err
	}
	return out, true, nil
}

// ErrNotFound is returned by registry collaborators to indicate the
// requested data could not be located.
var ErrNotFound = errors.New("not found")

// LocalRegistry is an in-memory Registry, primarily used to drive tests and
// offline resolutions. Its answers are always ready.
type LocalRegistry struct {
	summaries map[localKey][]*Summary
	cons      *constraintCache
}

type localKey struct {
	name   string
	source SourceID
}

// NewLocalRegistry creates a new, empty, LocalRegistry.
func NewLocalRegistry() *LocalRegistry {
	return &LocalRegistry{
		summaries: make(map[localKey][]*Summary),
		cons:      newConstraintCache(),
	}
}

// AddSummary publishes a summary. Any existing summary with the same
// identity is replaced. Versions of a package are kept in ascending
// version order.
func (r *LocalRegistry) AddSummary(s *Summary) {
	key := localKey{name: s.Name(), source: s.Source()}
	ss := r.summaries[key]
	for i, t := range ss {
		if t.ID() == s.ID() {
			ss[i] = s
			return
		}
	}
	ss = append(ss, s)
	sort.SliceStable(ss, func(i, j int) bool {
		return semver.Cargo.Compare(ss[i].Version(), ss[j].Version()) < 0
	})
	r.summaries[key] = ss
}

// Summary finds a published summary by identity, including yanked ones.
func (r *LocalRegistry) Summary(name, ver string, source SourceID) (*Summary, bool) {
	for _, s := range r.summaries[localKey{name: name, source: source}] {
		if s.Version() == ver {
			return s, true
		}
	}
	return nil, false
}

// Query implements Registry. Exact queries exclude yanked versions; the
// fuzzy kinds include them, as they exist to explain failures.
func (r *LocalRegistry) Query(d Dependency, kind QueryKind, sink func(*Summary)) (bool, error) {
	for key, ss := range r.summaries {
		if !r.nameMatches(key, d, kind) {
			continue
		}
		for _, s := range ss {
			if kind == QueryExact {
				if s.HasAttr(version.Yanked) {
					continue
				}
				ok, err := r.cons.match(d.Req, s.Version())
				if err != nil {
					return false, err
				}
				if !ok {
					continue
				}
			}
			sink(s)
		}
	}
	return true, nil
}

func (r *LocalRegistry) nameMatches(key localKey, d Dependency, kind QueryKind) bool {
	if d.Source != "" && key.source != d.Source {
		return false
	}
	if kind == QueryNormalized {
		norm := func(s string) string { return strings.ReplaceAll(s, "-", "_") }
		return norm(key.name) == norm(d.Name)
	}
	return key.name == d.Name
}

// PendingRegistry wraps a Registry so that every distinct dependency is
// answered pending a fixed number of times before the wrapped registry is
// consulted. It models a registry whose index loads asynchronously, and
// drives the re-invocation protocol in tests.
type PendingRegistry struct {
	Registry Registry

	polls     int
	remaining map[DepKey]int
}

// NewPendingRegistry wraps r so each dependency is pending for the given
// number of queries.
func NewPendingRegistry(r Registry, polls int) *PendingRegistry {
	return &PendingRegistry{
		Registry:  r,
		polls:     polls,
		remaining: make(map[DepKey]int),
	}
}

// Query implements Registry.
func (p *PendingRegistry) Query(d Dependency, kind QueryKind, sink func(*Summary)) (bool, error) {
	key := d.Key()
	left, seen := p.remaining[key]
	if !seen {
		left = p.polls
	}
	if left > 0 {
		p.remaining[key] = left - 1
		return false, nil
	}
	return p.Registry.Query(d, kind, sink)
}
