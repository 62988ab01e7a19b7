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

import (
	"testing"
)

func TestTypeFlags(t *testing.T) {
	var reg Type
	if !reg.IsRegular() {
		t.Errorf("zero Type: IsRegular() = false, want true")
	}

	ty := NewType(Opt, Build)
	if ty.IsRegular() {
		t.Errorf("IsRegular() = true, want false")
	}
	for _, k := range []AttrKey{Opt, Build} {
		if !ty.HasAttr(k) {
			t.Errorf("HasAttr(%s) = false, want true", k)
		}
	}
	for _, k := range []AttrKey{Dev, NoDefaults, Public, KnownAs} {
		if ty.HasAttr(k) {
			t.Errorf("HasAttr(%s) = true, want false", k)
		}
	}
}

func TestTypeValuedAttrs(t *testing.T) {
	var ty Type
	ty.AddAttr(KnownAs, "serde2")
	ty.AddAttr(EnabledDependencies, "derive,std")

	if got, ok := ty.GetAttr(KnownAs); !ok || got != "serde2" {
		t.Errorf("GetAttr(KnownAs) = %q, %v; want \"serde2\", true", got, ok)
	}
	if got, ok := ty.GetAttr(EnabledDependencies); !ok || got != "derive,std" {
		t.Errorf("GetAttr(EnabledDependencies) = %q, %v; want \"derive,std\", true", got, ok)
	}

	// Clone is independent of the original.
	c := ty.Clone()
	c.AddAttr(KnownAs, "other")
	if got, _ := ty.GetAttr(KnownAs); got != "serde2" {
		t.Errorf("clone write leaked: GetAttr(KnownAs) = %q, want \"serde2\"", got)
	}
}

func TestTypeCompare(t *testing.T) {
	a := NewType(Opt)
	b := NewType(Opt)
	if !a.Equal(b) {
		t.Errorf("%s not equal to %s", a, b)
	}
	b.AddAttr(KnownAs, "x")
	if a.Equal(b) {
		t.Errorf("%s equal to %s", a, b)
	}
	if c1, c2 := a.Compare(b), b.Compare(a); c1 == 0 || c1 != -c2 {
		t.Errorf("Compare not antisymmetric: %d vs %d", c1, c2)
	}
}

func TestTypeKey(t *testing.T) {
	var a, b Type
	a.AddAttr(KnownAs, "x")
	a.AddAttr(EnabledDependencies, "f1")
	b.AddAttr(EnabledDependencies, "f1")
	b.AddAttr(KnownAs, "x")
	if a.Key() != b.Key() {
		t.Errorf("keys differ by insertion order: %q vs %q", a.Key(), b.Key())
	}
	b.AddAttr(KnownAs, "y")
	if a.Key() == b.Key() {
		t.Errorf("distinct types share key %q", a.Key())
	}
	if NewType().Key() != "" {
		t.Errorf("regular type key = %q, want \"\"", NewType().Key())
	}
}

func TestTypeString(t *testing.T) {
	for _, c := range []struct {
		ty   Type
		want string
	}{
		{NewType(), "reg"},
		{NewType(Dev), "dev"},
		{NewType(Opt, NoDefaults), "opt|nodefaults"},
	} {
		if got := c.ty.String(); got != c.want {
			t.Errorf("String() = %q, want %q", got, c.want)
		}
	}
}
