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
	"strings"

	"github.com/sthibaul/cargo/dep"
)

// Dependency is a requirement declared by a package: a name, a version
// requirement, the source the fulfilling package must come from, and a
// dependency Type carrying the kind, optionality, rename and requested
// features of the edge.
//
// Dependencies are value types; Key provides a comparable identity for use
// in cache maps.
type Dependency struct {
	// Name is the name the package is published under in Source.
	Name string
	// Req is the version requirement, in Cargo range syntax.
	// An empty Req matches any version.
	Req    string
	Source SourceID
	Type   dep.Type
}

// NewDependency returns a regular dependency on the given package.
func NewDependency(name, req string, source SourceID) Dependency {
	return Dependency{Name: name, Req: req, Source: source}
}

// NameInToml returns the name under which the depending package refers to
// this dependency: the rename if one was declared, the published name
// otherwise. Feature values name dependencies by this name.
func (d Dependency) NameInToml() string {
	if n, ok := d.Type.GetAttr(dep.KnownAs); ok {
		return n
	}
	return d.Name
}

// Features returns the features of the dependency that this edge requests,
// in declaration order.
func (d Dependency) Features() []string {
	fs, ok := d.Type.GetAttr(dep.EnabledDependencies)
	if !ok || fs == "" {
		return nil
	}
	return strings.Split(fs, ",")
}

// IsOptional reports whether the dependency is optional: skipped unless a
// feature of the depending package enables it.
func (d Dependency) IsOptional() bool { return d.Type.HasAttr(dep.Opt) }

// IsTransitive reports whether the dependency carries over to packages that
// depend on this one. Dev dependencies do not.
func (d Dependency) IsTransitive() bool { return !d.Type.HasAttr(dep.Dev) }

// IsBuild reports whether the dependency is required by build scripts only.
func (d Dependency) IsBuild() bool { return d.Type.HasAttr(dep.Build) }

// UsesDefaultFeatures reports whether the dependency requests the
// dependency's "default" feature.
func (d Dependency) UsesDefaultFeatures() bool { return !d.Type.HasAttr(dep.NoDefaults) }

// DepKey is a comparable identity for a Dependency, usable as a map key.
type DepKey struct {
	Name   string
	Req    string
	Source SourceID
	Type   string
}

// Key returns the dependency's comparable identity. Two dependencies have
// equal keys iff they are equal values.
func (d Dependency) Key() DepKey {
	return DepKey{Name: d.Name, Req: d.Req, Source: d.Source, Type: d.Type.Key()}
}

func (d Dependency) String() string {
	s := d.Name
	if d.NameInToml() != d.Name {
		s = d.NameInToml() + "->" + d.Name
	}
	if d.Req != "" {
		s += " " + d.Req
	}
	if !d.Type.IsRegular() {
		s = d.Type.String() + "|" + s
	}
	return s
}
