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
	"strings"

	"github.com/sthibaul/cargo/version"
)

// Summary is an immutable record of a concrete published package version:
// its identity, declared dependencies, feature table and version
// attributes. Summaries are shared by pointer and must never be mutated
// after construction.
type Summary struct {
	id       PackageID
	deps     []Dependency
	features FeatureMap
	attrs    version.AttrSet
}

// NewSummary builds a Summary. The dependency list and feature map are
// retained by the summary; the caller must not modify them afterwards.
//
// Every optional dependency gets an implicit feature of its own name,
// unless the "dep:" syntax references it somewhere in the table or a
// feature of that name is already declared. These are the manifest rules;
// callers hand in the table as written.
func NewSummary(id PackageID, deps []Dependency, features FeatureMap, attrs version.AttrSet) *Summary {
	if features == nil {
		features = FeatureMap{}
	}
	return &Summary{id: id, deps: deps, features: withImplicitFeatures(features, deps), attrs: attrs}
}

func withImplicitFeatures(features FeatureMap, deps []Dependency) FeatureMap {
	suppressed := make(map[string]bool)
	for _, fvs := range features {
		for _, fv := range fvs {
			if fv.Kind == DepName {
				suppressed[fv.Dep] = true
			}
		}
	}
	var implicit []string
	for _, d := range deps {
		name := d.NameInToml()
		if !d.IsOptional() || suppressed[name] {
			continue
		}
		if _, declared := features[name]; declared {
			continue
		}
		implicit = append(implicit, name)
	}
	if len(implicit) == 0 {
		return features
	}
	out := make(FeatureMap, len(features)+len(implicit))
	for k, v := range features {
		out[k] = v
	}
	for _, name := range implicit {
		out[name] = []FeatureValue{{Kind: DepName, Dep: name}}
	}
	return out
}

// ID returns the identity of the summarized package version.
func (s *Summary) ID() PackageID { return s.id }

// Name returns the package name.
func (s *Summary) Name() string { return s.id.Name }

// Version returns the package version.
func (s *Summary) Version() string { return s.id.Version }

// Source returns the source the version was published in.
func (s *Summary) Source() SourceID { return s.id.Source }

// Dependencies returns the declared dependencies. Callers must treat the
// returned slice as read-only.
func (s *Summary) Dependencies() []Dependency { return s.deps }

// Features returns the declared feature table. Callers must treat the
// returned map as read-only.
func (s *Summary) Features() FeatureMap { return s.features }

// RustVersion returns the declared minimum toolchain version, if any.
func (s *Summary) RustVersion() (string, bool) {
	return s.attrs.GetAttr(version.RustVersion)
}

// HasAttr reports whether the summary carries the given version attribute.
func (s *Summary) HasAttr(key version.AttrKey) bool { return s.attrs.HasAttr(key) }

// GetAttr gets a version attribute of the summary.
func (s *Summary) GetAttr(key version.AttrKey) (string, bool) { return s.attrs.GetAttr(key) }

func (s *Summary) String() string { return s.id.String() }

// FeatureMap is a package's declared feature table: feature name to the
// list of values enabled by that feature.
type FeatureMap map[string][]FeatureValue

// FeatureValueKind discriminates the variants of a FeatureValue.
type FeatureValueKind byte

const (
	// FeatureName enables a feature of the current package.
	FeatureName FeatureValueKind = iota
	// DepName marks an optional dependency as enabled, without enabling
	// any feature of it.
	DepName
	// DepFeatureName enables a feature inside a named dependency.
	DepFeatureName
)

// FeatureValue is one entry in a feature definition.
type FeatureValue struct {
	Kind FeatureValueKind
	// Feature is the feature name: of the current package for
	// FeatureName, of the dependency for DepFeatureName.
	Feature string
	// Dep is the dependency name as declared in the manifest, for
	// DepName and DepFeatureName.
	Dep string
	// Weak, on a DepFeatureName, asks for the feature without forcing
	// the optional dependency itself to be enabled.
	Weak bool
}

// ParseFeatureValue parses the manifest syntax for a feature value:
// "feat", "dep:name", "name/feat" and the weak form "name?/feat".
func ParseFeatureValue(s string) FeatureValue {
	if before, after, found := strings.Cut(s, "/"); found {
		weak := strings.HasSuffix(before, "?")
		return FeatureValue{
			Kind:    DepFeatureName,
			Dep:     strings.TrimSuffix(before, "?"),
			Feature: after,
			Weak:    weak,
		}
	}
	if name, ok := strings.CutPrefix(s, "dep:"); ok {
		return FeatureValue{Kind: DepName, Dep: name}
	}
	return FeatureValue{Kind: FeatureName, Feature: s}
}

func (fv FeatureValue) String() string {
	switch fv.Kind {
	case FeatureName:
		return fv.Feature
	case DepName:
		return "dep:" + fv.Dep
	case DepFeatureName:
		if fv.Weak {
			return fv.Dep + "?/" + fv.Feature
		}
		return fv.Dep + "/" + fv.Feature
	}
	return fmt.Sprintf("FeatureValue(%d)", fv.Kind)
}
