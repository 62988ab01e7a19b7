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
	"log"
	"sort"
	"strings"

	"deps.dev/util/semver"
)

const (
	debug = false
)

// Replacement redirects packages matching Spec to whatever Dep resolves to.
// The replacing dependency is expected to pin the same name and version as
// the package it replaces, from a different source.
type Replacement struct {
	Spec PackageIDSpec
	Dep  Dependency
}

// PathDescriber renders the dependency chain that led to a package, for
// error context. The resolver's activation context implements it.
type PathDescriber interface {
	DescribePath(id PackageID) string
}

// DepInfo describes one dependency activated by a candidate: the declared
// dependency, the candidates that can fulfil it in preference order, and
// the features wanted from whichever is chosen.
type DepInfo struct {
	Dep        Dependency
	Candidates []*Summary
	Features   FeatureSet
}

// DepsBuilt is the answer to "what would activating this candidate with
// these features entail". It is shared by every borrower of the cache
// entry; callers must treat it as immutable.
type DepsBuilt struct {
	// UsedFeatures is the set of the candidate's own features that end
	// up enabled.
	UsedFeatures map[string]bool
	// Deps lists the activated dependencies, sorted by ascending number
	// of candidates so the resolver fails fast on the narrow ones.
	Deps []DepInfo
}

// RegistryQueryer caches the two queries a resolver keeps asking: which
// summaries fulfil a dependency, and which dependencies a candidate
// activates. It applies replacement rules to the former and feature
// expansion to the latter, and tracks pending registry answers so the
// driver can re-ask until everything settles.
//
// The queryer is not safe for concurrent use; exactly one driver calls it.
type RegistryQueryer struct {
	registry        Registry
	replacements    []Replacement
	versionPrefs    *VersionPreferences
	minimalVersions bool
	maxRustVersion  *semver.Version

	// CycleHook, when set, is called whenever feature expansion
	// re-requests an already-enabled feature. Feature cycles longer
	// than one terminate silently today; the hook lets a future strict
	// mode observe them.
	CycleHook func(feature string)

	// registryCache memoizes candidate lists by (dependency, minimal
	// first). A pending answer is cached too, so ResetPending can tell
	// whether anything is still outstanding.
	registryCache map[registryCacheKey]queryResult

	// depsCache memoizes BuildDeps results. Entries built while some
	// candidate lists were pending are flagged not-all-ready; they are
	// served as-is and evicted by ResetPending.
	//
	// The minimal-first flag is not part of the key: for a given
	// session it is 1:1 with parent == nil, which is.
	depsCache map[depsKey]depsEntry

	// usedReplacements records, per replaced identity, the summary that
	// replaces it.
	usedReplacements map[PackageID]*Summary
}

type registryCacheKey struct {
	dep          DepKey
	firstMinimal bool
}

// queryResult is a readiness-tagged candidate list. The zero value is the
// pending sentinel.
type queryResult struct {
	summaries []*Summary
	ready     bool
}

type depsKey struct {
	hasParent bool
	parent    PackageID
	candidate PackageID
	opts      optsKey
}

type depsEntry struct {
	out      *DepsBuilt
	allReady bool
}

// NewRegistryQueryer builds a queryer over the given registry.
// maxRustVersion, when non-empty, drops candidates whose declared minimum
// toolchain version exceeds it. minimalVersions flips every candidate list
// to oldest-first, for verifying declared minimum dependency versions.
func NewRegistryQueryer(registry Registry, replacements []Replacement, versionPrefs *VersionPreferences, minimalVersions bool, maxRustVersion string) (*RegistryQueryer, error) {
	var maxRust *semver.Version
	if maxRustVersion != "" {
		v, err := semver.Cargo.Parse(maxRustVersion)
		if err != nil {
			return nil, fmt.Errorf("parsing max rust version %q: %w", maxRustVersion, err)
		}
		maxRust = v
	}
	return &RegistryQueryer{
		registry:         registry,
		replacements:     replacements,
		versionPrefs:     versionPrefs,
		minimalVersions:  minimalVersions,
		maxRustVersion:   maxRust,
		registryCache:    make(map[registryCacheKey]queryResult),
		depsCache:        make(map[depsKey]depsEntry),
		usedReplacements: make(map[PackageID]*Summary),
	}, nil
}

// Query returns the candidates for dep in preference order, and whether the
// answer was ready. A pending answer is recorded so ResetPending sees it;
// errors are never cached.
//
// This is where overrides are taken into account: any candidate matched by
// a replacement rule triggers a second query for what the override should
// resolve to. The returned list is shared; callers must treat it as
// immutable.
func (q *RegistryQueryer) Query(d Dependency, firstMinimal bool) ([]*Summary, bool, error) {
	key := registryCacheKey{dep: d.Key(), firstMinimal: firstMinimal}
	if out, ok := q.registryCache[key]; ok {
		return out.summaries, out.ready, nil
	}

	var ret []*Summary
	ready, err := q.registry.Query(d, QueryExact, func(s *Summary) {
		if q.admitsRustVersion(s) {
			ret = append(ret, s)
		}
	})
	if err != nil {
		return nil, false, err
	}
	if !ready {
		q.registryCache[key] = queryResult{}
		return nil, false, nil
	}

	for _, summary := range ret {
		matched := q.matchingReplacements(summary.ID())
		if len(matched) == 0 {
			continue
		}
		rule := matched[0]
		if debug {
			log.Printf("found an override for %s %s", rule.Dep.Name, rule.Dep.Req)
		}

		summaries, rready, err := QueryVec(q.registry, rule.Dep, QueryExact)
		if err != nil {
			return nil, false, err
		}
		if !rready {
			q.registryCache[key] = queryResult{}
			return nil, false, nil
		}
		if len(summaries) == 0 {
			return nil, false, fmt.Errorf(
				"no matching package for override `%s` found\nlocation searched: %s\nversion required: %s",
				rule.Spec, rule.Dep.Source, rule.Dep.Req)
		}
		if len(summaries) > 1 {
			var bullets []string
			for _, s := range summaries[1:] {
				bullets = append(bullets, fmt.Sprintf("  * %s", s.ID()))
			}
			return nil, false, fmt.Errorf(
				"the replacement specification `%s` matched multiple packages:\n  * %s\n%s",
				rule.Spec, summaries[0].ID(), strings.Join(bullets, "\n"))
		}
		r := summaries[0]

		// The replacing dependency is hard-coded to the same name and
		// an exact version requirement, so a mismatch means the
		// replacement rules were built wrong.
		if r.Version() != summary.Version() || r.Name() != summary.Name() {
			return nil, false, fmt.Errorf(
				"internal error: override `%s` resolved to %s, which does not match %s",
				rule.Spec, r.ID(), summary.ID())
		}

		if len(matched) > 1 {
			return nil, false, fmt.Errorf(
				"overlapping replacement specifications found:\n\n  * %s\n  * %s\n\nboth specifications match: %s",
				rule.Spec, matched[1].Spec, summary.ID())
		}

		if r.Source() == summary.Source() {
			// A self-match is a no-op; the rule points back at the
			// same package.
			if debug {
				log.Printf("preventing %s from replacing %s", summary.ID(), r.ID())
			}
			continue
		}
		q.usedReplacements[summary.ID()] = r
	}

	// Candidates are attempted in a sorted fashion to pick the best
	// first; VersionPreferences implements that notion.
	ordering := MaximumVersionsFirst
	if firstMinimal || q.minimalVersions {
		ordering = MinimumVersionsFirst
	}
	q.versionPrefs.SortSummaries(ret, ordering, firstMinimal)

	q.registryCache[key] = queryResult{summaries: ret, ready: true}
	return ret, true, nil
}

func (q *RegistryQueryer) matchingReplacements(id PackageID) []Replacement {
	var matched []Replacement
	for _, r := range q.replacements {
		if r.Spec.Matches(id) {
			matched = append(matched, r)
		}
	}
	return matched
}

func (q *RegistryQueryer) admitsRustVersion(s *Summary) bool {
	if q.maxRustVersion == nil {
		return true
	}
	rv, ok := s.RustVersion()
	if !ok {
		return true
	}
	v, err := semver.Cargo.Parse(rv)
	if err != nil {
		return true
	}
	return v.Compare(q.maxRustVersion) <= 0
}

// BuildDeps finds out what dependencies activating candidate with the
// features in opts would add, and looks up the candidates fulfilling each,
// as that is the next obvious question.
//
// The result is memoized: it is a pure function of its arguments, so a
// cached answer is returned unconditionally. Dependencies whose candidate
// lists are still pending are omitted from the answer and the entry is
// flagged for eviction by ResetPending; the driver re-asks after servicing
// the registry. Errors are never cached.
func (q *RegistryQueryer) BuildDeps(ctx PathDescriber, parent *PackageID, candidate *Summary, opts ResolveOpts, firstMinimal bool) (*DepsBuilt, error) {
	key := depsKey{
		hasParent: parent != nil,
		candidate: candidate.ID(),
		opts:      opts.key(),
	}
	if parent != nil {
		key.parent = *parent
	}
	if out, ok := q.depsCache[key]; ok {
		return out.out, nil
	}

	// First, figure out the set of dependencies the requested features
	// imply, along with the features to enable on each.
	usedFeatures, requested, aerr := resolveFeatures(parent, candidate, opts, q.CycleHook)
	if aerr != nil {
		return nil, aerr
	}

	// Next, transform the dependencies into the candidate lists that
	// can satisfy them.
	allReady := true
	deps := make([]DepInfo, 0, len(requested))
	for _, req := range requested {
		candidates, ready, err := q.Query(req.dep, firstMinimal)
		if err != nil {
			return nil, fatal(fmt.Errorf("failed to get `%s` as a dependency of %s: %w",
				req.dep.Name, q.describePath(ctx, candidate.ID()), err))
		}
		if !ready {
			// Pending deps are omitted; BuildDeps is re-driven
			// until there are none to omit.
			allReady = false
			continue
		}
		deps = append(deps, DepInfo{Dep: req.dep, Candidates: candidates, Features: req.features})
	}

	// Resolve dependencies with few candidates before those with many,
	// so a dependency that cannot be satisfied is discovered before a
	// lot of work is done on the wide ones.
	sort.SliceStable(deps, func(i, j int) bool {
		return len(deps[i].Candidates) < len(deps[j].Candidates)
	})

	out := &DepsBuilt{UsedFeatures: usedFeatures, Deps: deps}
	q.depsCache[key] = depsEntry{out: out, allReady: allReady}
	return out, nil
}

func (q *RegistryQueryer) describePath(ctx PathDescriber, id PackageID) string {
	if ctx == nil {
		return id.String()
	}
	return ctx.DescribePath(id)
}

// ResetPending evicts every pending registry entry and every dep-info entry
// built while something was pending. It reports whether nothing was
// evicted, i.e. every cached answer has settled and the driver can stop
// re-asking.
func (q *RegistryQueryer) ResetPending() bool {
	allReady := true
	for k, v := range q.registryCache {
		if !v.ready {
			allReady = false
			delete(q.registryCache, k)
		}
	}
	for k, v := range q.depsCache {
		if !v.allReady {
			allReady = false
			delete(q.depsCache, k)
		}
	}
	return allReady
}

// UsedReplacementFor reports the replacement applied to the given identity,
// if any, as the (replaced, replacement) pair.
func (q *RegistryQueryer) UsedReplacementFor(id PackageID) (PackageID, PackageID, bool) {
	r, ok := q.usedReplacements[id]
	if !ok {
		return PackageID{}, PackageID{}, false
	}
	return id, r.ID(), true
}

// ReplacementSummary returns the summary that replaces the given identity,
// if a replacement was applied to it.
func (q *RegistryQueryer) ReplacementSummary(id PackageID) (*Summary, bool) {
	r, ok := q.usedReplacements[id]
	return r, ok
}
