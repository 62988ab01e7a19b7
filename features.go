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
	"strings"
)

// RequestedKind discriminates the two forms of a feature request.
type RequestedKind byte

const (
	// CliFeatures is the root-level request, as given on a command line.
	CliFeatures RequestedKind = iota
	// DepFeatures is the transitive request a dependency edge makes.
	DepFeatures
)

// RequestedFeatures is the feature request of one activation.
type RequestedFeatures struct {
	Kind RequestedKind

	// Values holds the requested feature values of a CliFeatures
	// request; the command line may use the full value syntax,
	// including "dep:" and "pkg/feat".
	Values []FeatureValue
	// AllFeatures, on a CliFeatures request, asks for every declared
	// feature.
	AllFeatures bool

	// Names holds the requested feature names of a DepFeatures request.
	Names []string

	// UsesDefaultFeatures asks for the "default" feature, if declared.
	UsesDefaultFeatures bool
}

// NewCliFeatures builds a root-level feature request.
func NewCliFeatures(values []FeatureValue, allFeatures, usesDefault bool) RequestedFeatures {
	return RequestedFeatures{
		Kind:                CliFeatures,
		Values:              values,
		AllFeatures:         allFeatures,
		UsesDefaultFeatures: usesDefault,
	}
}

// NewDepFeatures builds the feature request a dependency edge makes.
func NewDepFeatures(names []string, usesDefault bool) RequestedFeatures {
	return RequestedFeatures{
		Kind:                DepFeatures,
		Names:               names,
		UsesDefaultFeatures: usesDefault,
	}
}

// ResolveOpts is the per-activation request: which features to enable, and
// whether dev dependencies take part.
type ResolveOpts struct {
	DevDeps  bool
	Features RequestedFeatures
}

// optsKey is the comparable identity of a ResolveOpts. The requested
// features are set-valued, so the key canonicalizes them: sorted and
// de-duplicated.
type optsKey struct {
	devDeps     bool
	kind        RequestedKind
	allFeatures bool
	usesDefault bool
	features    string
}

func (o ResolveOpts) key() optsKey {
	var names []string
	switch o.Features.Kind {
	case CliFeatures:
		for _, fv := range o.Features.Values {
			names = append(names, fv.String())
		}
	case DepFeatures:
		names = append(names, o.Features.Names...)
	}
	sort.Strings(names)
	uniq := names[:0]
	for i, n := range names {
		if i == 0 || names[i-1] != n {
			uniq = append(uniq, n)
		}
	}
	return optsKey{
		devDeps:     o.DevDeps,
		kind:        o.Features.Kind,
		allFeatures: o.Features.AllFeatures,
		usesDefault: o.Features.UsesDefaultFeatures,
		features:    strings.Join(uniq, ","),
	}
}

// FeatureSet is a sorted set of feature names. It is shared by reference
// once published; callers must treat it as immutable.
type FeatureSet []string

func newFeatureSet(m map[string]bool) FeatureSet {
	if len(m) == 0 {
		return nil
	}
	fs := make(FeatureSet, 0, len(m))
	for f := range m {
		fs = append(fs, f)
	}
	sort.Strings(fs)
	return fs
}

// Contains reports whether the set has the given feature.
func (fs FeatureSet) Contains(f string) bool {
	i := sort.SearchStrings(fs, f)
	return i < len(fs) && fs[i] == f
}

// requirements accumulates the feature and dependency requirements of a
// single package while its feature graph is walked.
type requirements struct {
	summary *Summary
	// deps maps dependency name (as declared) to the features enabled
	// on it.
	deps map[string]map[string]bool
	// features is the set of features enabled on the package itself.
	features map[string]bool
	// onRevisit, when set, is called each time an already-enabled
	// feature is requested again. Feature cycles longer than one are
	// currently tolerated; they terminate here. The hook exists so a
	// future strict mode can observe them.
	onRevisit func(feature string)
}

func newRequirements(s *Summary, onRevisit func(string)) *requirements {
	return &requirements{
		summary:   s,
		deps:      make(map[string]map[string]bool),
		features:  make(map[string]bool),
		onRevisit: onRevisit,
	}
}

func (r *requirements) requireFeature(feat string) *requirementError {
	if r.features[feat] {
		// Already seen this feature.
		if r.onRevisit != nil {
			r.onRevisit(feat)
		}
		return nil
	}
	r.features[feat] = true

	fvs, ok := r.summary.Features()[feat]
	if !ok {
		return &requirementError{kind: errMissingFeature, name: feat}
	}

	for _, fv := range fvs {
		if fv.Kind == FeatureName && fv.Feature == feat {
			return &requirementError{kind: errFeatureCycle, name: feat}
		}
		if err := r.requireValue(fv); err != nil {
			return err
		}
	}
	return nil
}

func (r *requirements) requireValue(fv FeatureValue) *requirementError {
	switch fv.Kind {
	case FeatureName:
		return r.requireFeature(fv.Feature)
	case DepName:
		r.requireDependency(fv.Dep)
		return nil
	case DepFeatureName:
		// Weak features are always activated in the dependency
		// resolver; they are narrowed later, by the feature resolver
		// proper.
		return r.requireDepFeature(fv.Dep, fv.Feature, fv.Weak)
	}
	return nil
}

func (r *requirements) requireDepFeature(pkg, feat string, weak bool) *requirementError {
	// If pkg is an optional dependency then enabling a feature of it
	// also enables the feature named after it, but only when the "dep:"
	// syntax has not suppressed that implicit feature.
	if !weak && r.hasOptionalDependency(pkg) {
		if _, ok := r.summary.Features()[pkg]; ok {
			if err := r.requireFeature(pkg); err != nil {
				return err
			}
		}
	}
	if r.deps[pkg] == nil {
		r.deps[pkg] = make(map[string]bool)
	}
	r.deps[pkg][feat] = true
	return nil
}

func (r *requirements) requireDependency(pkg string) {
	if r.deps[pkg] == nil {
		r.deps[pkg] = make(map[string]bool)
	}
}

func (r *requirements) hasOptionalDependency(name string) bool {
	for _, d := range r.summary.Dependencies() {
		if d.NameInToml() == name && d.IsOptional() {
			return true
		}
	}
	return false
}

// buildRequirements walks the requested features of a single package and
// collects every feature, dependency and dependency-feature they imply.
func buildRequirements(parent *PackageID, s *Summary, opts ResolveOpts, onRevisit func(string)) (*requirements, *ActivateError) {
	reqs := newRequirements(s, onRevisit)

	handleDefault := func() *ActivateError {
		if opts.Features.UsesDefaultFeatures {
			if _, ok := s.Features()["default"]; ok {
				if err := reqs.requireFeature("default"); err != nil {
					return err.intoActivateError(parent, s)
				}
			}
		}
		return nil
	}

	switch opts.Features.Kind {
	case CliFeatures:
		if opts.Features.AllFeatures {
			for key := range s.Features() {
				if err := reqs.requireFeature(key); err != nil {
					return nil, err.intoActivateError(parent, s)
				}
			}
		}
		for _, fv := range opts.Features.Values {
			if err := reqs.requireValue(fv); err != nil {
				return nil, err.intoActivateError(parent, s)
			}
		}
		if err := handleDefault(); err != nil {
			return nil, err
		}
	case DepFeatures:
		for _, name := range opts.Features.Names {
			if err := reqs.requireFeature(name); err != nil {
				return nil, err.intoActivateError(parent, s)
			}
		}
		if err := handleDefault(); err != nil {
			return nil, err
		}
	}

	return reqs, nil
}

// resolveFeatures returns the features a candidate ends up using and every
// dependency it activates together with the features wanted from each.
// Dependencies appear in declaration order.
func resolveFeatures(parent *PackageID, s *Summary, opts ResolveOpts, onRevisit func(string)) (map[string]bool, []depRequest, *ActivateError) {
	reqs, aerr := buildRequirements(parent, s, opts, onRevisit)
	if aerr != nil {
		return nil, nil, aerr
	}

	var ret []depRequest
	validDepNames := make(map[string]bool)

	// Collect the enabled dependencies and the features wanted on each.
	for _, d := range s.Dependencies() {
		if !d.IsTransitive() && !opts.DevDeps {
			continue
		}
		// Skip optional dependencies, but not those enabled through
		// a feature.
		if d.IsOptional() {
			if _, mentioned := reqs.deps[d.NameInToml()]; !mentioned {
				continue
			}
		}
		validDepNames[d.NameInToml()] = true
		base := make(map[string]bool, len(reqs.deps[d.NameInToml()])+len(d.Features()))
		for f := range reqs.deps[d.NameInToml()] {
			base[f] = true
		}
		for _, f := range d.Features() {
			base[f] = true
		}
		ret = append(ret, depRequest{dep: d, features: newFeatureSet(base)})
	}

	// Command lines may say `--features dep_name/feat_name` for a
	// dep_name that does not exist; nothing else validates that, so
	// catch it here for root activations.
	if parent == nil {
		var unknown []string
		for name := range reqs.deps {
			if !validDepNames[name] {
				unknown = append(unknown, name)
			}
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			e := requirementError{kind: errMissingDependency, name: unknown[0]}
			return nil, nil, e.intoActivateError(parent, s)
		}
	}

	return reqs.features, ret, nil
}

// depRequest pairs an activated dependency with the features wanted on it.
type depRequest struct {
	dep      Dependency
	features FeatureSet
}
