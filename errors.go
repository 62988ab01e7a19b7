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
)

// ConflictKind discriminates the reasons a candidate can conflict with its
// parent activation.
type ConflictKind byte

const (
	// MissingFeatures means the candidate does not declare a requested
	// feature.
	MissingFeatures ConflictKind = iota
	// RequiredDependencyAsFeature means a requested feature names a
	// required dependency; only optional dependencies double as
	// features.
	RequiredDependencyAsFeature
	// NonImplicitDependencyAsFeature means a requested feature names an
	// optional dependency whose implicit feature was suppressed with the
	// "dep:" syntax.
	NonImplicitDependencyAsFeature
)

// ConflictReason says why a candidate cannot be activated under a specific
// parent. The outer resolver uses it to drive backtracking; it must be a
// pure value so re-encounters are deterministic.
type ConflictReason struct {
	Kind    ConflictKind
	Feature string
}

func (r ConflictReason) String() string {
	switch r.Kind {
	case MissingFeatures:
		return fmt.Sprintf("missing features: %s", r.Feature)
	case RequiredDependencyAsFeature:
		return fmt.Sprintf("required dependency used as feature: %s", r.Feature)
	case NonImplicitDependencyAsFeature:
		return fmt.Sprintf("non-implicit dependency used as feature: %s", r.Feature)
	}
	return fmt.Sprintf("ConflictReason(%d)", r.Kind)
}

// ActivateError is the error produced when a candidate cannot be activated.
//
// It is either fatal (misconfiguration or malformed input; resolution must
// abort) or a conflict attributable to a specific parent package, which the
// outer resolver treats as a dead end to backtrack from.
type ActivateError struct {
	// Fatal is the underlying cause when the error aborts resolution.
	// It is nil for conflicts.
	Fatal error

	// Parent and Reason describe a conflict.
	Parent PackageID
	Reason ConflictReason
}

func (e *ActivateError) Error() string {
	if e.Fatal != nil {
		return e.Fatal.Error()
	}
	return fmt.Sprintf("conflict under %s: %s", e.Parent, e.Reason)
}

// Unwrap exposes the fatal cause to errors.Is and errors.As.
func (e *ActivateError) Unwrap() error { return e.Fatal }

// IsFatal reports whether the error aborts resolution rather than marking a
// backtrackable conflict.
func (e *ActivateError) IsFatal() bool { return e.Fatal != nil }

func fatalf(format string, args ...any) *ActivateError {
	return &ActivateError{Fatal: fmt.Errorf(format, args...)}
}

func fatal(err error) *ActivateError {
	return &ActivateError{Fatal: err}
}

func conflict(parent PackageID, reason ConflictReason) *ActivateError {
	return &ActivateError{Parent: parent, Reason: reason}
}

// requirementErrorKind discriminates the failures of feature expansion.
// They are translated to ActivateErrors relative to a parent; see
// intoActivateError.
type requirementErrorKind byte

const (
	errMissingFeature requirementErrorKind = iota
	errMissingDependency
	errFeatureCycle
)

type requirementError struct {
	kind requirementErrorKind
	name string
}

// intoActivateError classifies a requirement error: fatal at the root,
// a conflict attributed to the parent otherwise. The result depends only on
// (parent, summary, error), never on cache state.
func (e requirementError) intoActivateError(parent *PackageID, s *Summary) *ActivateError {
	switch e.kind {
	case errMissingFeature:
		var withName []Dependency
		for _, d := range s.Dependencies() {
			if d.NameInToml() == e.name {
				withName = append(withName, d)
			}
		}
		if len(withName) == 0 {
			if parent == nil {
				return fatalf("package %s does not have the feature `%s`", s.ID(), e.name)
			}
			return conflict(*parent, ConflictReason{Kind: MissingFeatures, Feature: e.name})
		}
		anyOptional := false
		for _, d := range withName {
			if d.IsOptional() {
				anyOptional = true
				break
			}
		}
		if anyOptional {
			if parent == nil {
				return fatalf("package %s does not have feature `%s`; it has an optional dependency "+
					"with that name, but that dependency uses the \"dep:\" syntax in the features "+
					"table, so it does not have an implicit feature with that name", s.ID(), e.name)
			}
			return conflict(*parent, ConflictReason{Kind: NonImplicitDependencyAsFeature, Feature: e.name})
		}
		if parent == nil {
			return fatalf("package %s does not have feature `%s`; it has a required dependency "+
				"with that name, but only optional dependencies can be used as features", s.ID(), e.name)
		}
		return conflict(*parent, ConflictReason{Kind: RequiredDependencyAsFeature, Feature: e.name})

	case errMissingDependency:
		if parent == nil {
			return fatalf("package %s does not have a dependency named `%s`", s.ID(), e.name)
		}
		// This path is unreachable today: the `foo/bar` and `dep:`
		// syntaxes are rejected in dependency declarations, so only
		// the root can request an unknown dependency name.
		return conflict(*parent, ConflictReason{Kind: MissingFeatures, Feature: e.name})

	case errFeatureCycle:
		return fatalf("cyclic feature dependency: feature `%s` depends on itself", e.name)
	}
	return fatalf("internal error: unknown requirement error %d for `%s`", e.kind, e.name)
}
