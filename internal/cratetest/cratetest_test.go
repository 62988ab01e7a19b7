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

package cratetest

import (
	"strings"
	"testing"

	"github.com/sthibaul/cargo"
	"github.com/sthibaul/cargo/version"
)

const sample = `
-- universe sample
a 1.0.0
	dep b ^1
	dep x ^1 optional no-defaults features=extra
	dep d ^1 dev rename=dee
	feature default x
	rust-version 1.60
b 1.2.0
b 1.0.0
	yanked
-- end

-- universe other
eve 1.0.0
	links z
-- end
`

func TestParse(t *testing.T) {
	us, err := ParseString(sample)
	if err != nil {
		t.Fatal(err)
	}
	if len(us) != 2 {
		t.Fatalf("parsed %d universes, want 2", len(us))
	}

	reg := us["sample"]
	a, ok := reg.Summary("a", "1.0.0", DefaultSource)
	if !ok {
		t.Fatal("a 1.0.0 not published")
	}
	if rv, ok := a.RustVersion(); !ok || rv != "1.60" {
		t.Errorf("RustVersion = %q, %v", rv, ok)
	}
	deps := a.Dependencies()
	if len(deps) != 3 {
		t.Fatalf("a has %d deps, want 3", len(deps))
	}
	x := deps[1]
	if !x.IsOptional() || x.UsesDefaultFeatures() {
		t.Errorf("x flags wrong: %s", x)
	}
	if got := x.Features(); len(got) != 1 || got[0] != "extra" {
		t.Errorf("x features = %v", got)
	}
	d := deps[2]
	if d.IsTransitive() || d.NameInToml() != "dee" {
		t.Errorf("d flags wrong: %s", d)
	}
	if _, ok := a.Features()["default"]; !ok {
		t.Errorf("a features = %v, want default declared", a.Features())
	}

	if b, ok := reg.Summary("b", "1.0.0", DefaultSource); !ok || !b.HasAttr(version.Yanked) {
		t.Errorf("b 1.0.0 = %v, %v; want yanked", b, ok)
	}

	eve, ok := us["other"].Summary("eve", "1.0.0", DefaultSource)
	if !ok {
		t.Fatal("eve 1.0.0 not published")
	}
	if links, ok := eve.GetAttr(version.Links); !ok || links != "z" {
		t.Errorf("eve links = %q, %v", links, ok)
	}
}

func TestParseUniverse(t *testing.T) {
	reg, err := ParseUniverse(`
-- universe one
a 1.0.0
-- end
`)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reg.Summary("a", "1.0.0", DefaultSource); !ok {
		t.Errorf("a 1.0.0 not published")
	}

	if _, err := ParseUniverse(sample); err == nil {
		t.Errorf("ParseUniverse accepted two universes")
	}
}

func TestParseErrors(t *testing.T) {
	for _, c := range []struct {
		name, in, want string
	}{
		{"unterminated", "-- universe u\na 1.0.0\n", "unexpected EOF"},
		{"duplicate", "-- universe u\n-- end\n-- universe u\n-- end\n", "duplicate universe"},
		{"bad summary", "-- universe u\na\n-- end\n", "invalid summary line"},
		{"unknown directive", "-- universe u\na 1.0.0\n\tfrob\n-- end\n", "unknown directive"},
		{"unknown flag", "-- universe u\na 1.0.0\n\tdep b ^1 shiny\n-- end\n", "unknown flag"},
		{"directive first", "-- universe u\n\tdep b ^1\n-- end\n", "before any summary"},
	} {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseString(c.in)
			if err == nil || !strings.Contains(err.Error(), c.want) {
				t.Errorf("err = %v, want mention of %q", err, c.want)
			}
		})
	}
}

func TestSummariesVisibleToQueries(t *testing.T) {
	us, err := ParseString(sample)
	if err != nil {
		t.Fatal(err)
	}
	d := cargo.NewDependency("b", "^1", DefaultSource)
	got, ready, err := cargo.QueryVec(us["sample"], d, cargo.QueryExact)
	if err != nil || !ready {
		t.Fatalf("QueryVec: ready %v, err %v", ready, err)
	}
	// 1.0.0 is yanked, so only 1.2.0 remains.
	if len(got) != 1 || got[0].Version() != "1.2.0" {
		t.Errorf("query returned %v", got)
	}
}
