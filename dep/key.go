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

package dep

// AttrKey represents an attribute key that may be applied to a Type.
//
// Its specific values are an implementation detail of this package;
// only use the named constants in client code.
type AttrKey int8

// The negative AttrKey values below are stored in a compact form
// and have special handling in type.go.

const (
	// Use a 5 bit mask for special attributes.
	maskLen = 5

	// Dev indicates the dependency is only required to develop a package:
	// its tests, examples and benchmarks.
	// Its value is ignored; its presence is the indicator.
	Dev AttrKey = -0x01

	// Opt indicates the dependency is optional; it is not activated
	// unless a feature of the depending package enables it.
	// Its value is ignored; its presence is the indicator.
	Opt AttrKey = -0x02

	// Build indicates the dependency is required by build scripts rather
	// than by the package's own code.
	// Its value is ignored; its presence is the indicator.
	Build AttrKey = -0x04

	// NoDefaults indicates the dependency is requested with its default
	// feature disabled.
	// Its value is ignored; its presence is the indicator.
	NoDefaults AttrKey = -0x08

	// Public indicates the dependency is re-exported from the depending
	// package's public interface.
	// Its value is ignored; its presence is the indicator.
	Public AttrKey = -0x10

	// The previous AttrKey are represented compactly in the encoded form.
	// Below here are AttrKey whose values are serialized.

	// KnownAs is the name under which this dependency is referenced
	// by the depending package, when it differs from the name the
	// dependency is published under.
	KnownAs AttrKey = 1

	// EnabledDependencies is a comma-separated list of features of the
	// dependency that are activated by this edge.
	EnabledDependencies AttrKey = 2
)

func (k AttrKey) String() string {
	switch k {
	case Dev:
		return "Dev"
	case Opt:
		return "Opt"
	case Build:
		return "Build"
	case NoDefaults:
		return "NoDefaults"
	case Public:
		return "Public"
	case KnownAs:
		return "KnownAs"
	case EnabledDependencies:
		return "EnabledDependencies"
	}
	return "AttrKey(?)"
}
