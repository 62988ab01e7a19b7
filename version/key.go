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

package version

// AttrKey represents an attribute key that may be applied to an AttrSet.
//
// Its specific values are an implementation detail of this package;
// only use the named constants in client code.
type AttrKey int8

// The negative AttrKey values below are stored in a compact form
// and have special handling in version.go.

const (
	// Use a 4 bit mask for special attributes.
	maskLen = 4

	// Yanked indicates the version has been withdrawn by its publisher.
	// Yanked versions stay in the registry index but are not offered as
	// candidates for new resolutions.
	// Its value is ignored; its presence is the indicator.
	Yanked AttrKey = -0x01

	// -0x02, -0x04 and -0x08 are reserved for future use.

	// The previous AttrKey are represented compactly in the encoded form.
	// Below here are AttrKey whose values are serialized.

	// RustVersion is the minimum version of the toolchain the package
	// version declares it builds with, e.g. "1.60".
	RustVersion AttrKey = 1

	// Links names the native library this version links against.
	// At most one version linking a given library may be activated in
	// a resolution.
	Links AttrKey = 2

	// Checksum is the hex-encoded digest of the published archive.
	Checksum AttrKey = 3

	// Registries specifies the registries where the version can be found,
	// as a comma-separated list of registry IDs.
	Registries AttrKey = 4
)

func (k AttrKey) String() string {
	switch k {
	case Yanked:
		return "Yanked"
	case RustVersion:
		return "RustVersion"
	case Links:
		return "Links"
	case Checksum:
		return "Checksum"
	case Registries:
		return "Registries"
	}
	return "AttrKey(?)"
}
