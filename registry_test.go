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

package cargo_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sthibaul/cargo"
	"github.com/sthibaul/cargo/internal/cratetest"
)

func mustUniverse(t *testing.T, def string) *cargo.LocalRegistry {
	t.Helper()
	reg, err := cratetest.ParseUniverse(def)
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func versionsOf(ss []*cargo.Summary) []string {
	var out []string
	for _, s := range ss {
		out = append(out, s.Version())
	}
	return out
}

func testDep(name, req string) cargo.Dependency {
	return cargo.NewDependency(name, req, cratetest.DefaultSource)
}

func TestLocalRegistryQuery(t *testing.T) {
	reg := mustUniverse(t, `
-- universe sample
b 1.0.0
b 1.2.0
b 2.0.0
b 1.1.0
	yanked
my_crate 0.3.0
-- end
`)

	t.Run("exact", func(t *testing.T) {
		got, ready, err := cargo.QueryVec(reg, testDep("b", "^1"), cargo.QueryExact)
		if err != nil || !ready {
			t.Fatalf("QueryVec: ready %v, err %v", ready, err)
		}
		// Ascending version order, without the yanked 1.1.0.
		want := []string{"1.0.0", "1.2.0"}
		if diff := cmp.Diff(want, versionsOf(got)); diff != "" {
			t.Errorf("exact query (- want, + got):\n%s", diff)
		}
	})

	t.Run("empty requirement matches all", func(t *testing.T) {
		got, _, err := cargo.QueryVec(reg, testDep("b", ""), cargo.QueryExact)
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"1.0.0", "1.2.0", "2.0.0"}
		if diff := cmp.Diff(want, versionsOf(got)); diff != "" {
			t.Errorf("(- want, + got):\n%s", diff)
		}
	})

	t.Run("alternatives ignore requirement and yanking", func(t *testing.T) {
		got, _, err := cargo.QueryVec(reg, testDep("b", "^9"), cargo.QueryAlternatives)
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"1.0.0", "1.1.0", "1.2.0", "2.0.0"}
		if diff := cmp.Diff(want, versionsOf(got)); diff != "" {
			t.Errorf("(- want, + got):\n%s", diff)
		}
	})

	t.Run("normalized names", func(t *testing.T) {
		got, _, err := cargo.QueryVec(reg, testDep("my-crate", ""), cargo.QueryNormalized)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"0.3.0"}, versionsOf(got)); diff != "" {
			t.Errorf("(- want, + got):\n%s", diff)
		}
	})

	t.Run("unknown crate has no candidates", func(t *testing.T) {
		got, ready, err := cargo.QueryVec(reg, testDep("nope", "^1"), cargo.QueryExact)
		if err != nil || !ready {
			t.Fatalf("QueryVec: ready %v, err %v", ready, err)
		}
		if len(got) != 0 {
			t.Errorf("got %v, want none", versionsOf(got))
		}
	})

	t.Run("bad requirement errors", func(t *testing.T) {
		if _, _, err := cargo.QueryVec(reg, testDep("b", "not-a-req"), cargo.QueryExact); err == nil {
			t.Errorf("got nil error for malformed requirement")
		}
	})
}

func TestLocalRegistrySourceFiltering(t *testing.T) {
	reg := mustUniverse(t, `
-- universe sample
foo 1.0.0
foo 1.0.0
	source path+/work/foo
-- end
`)
	d := testDep("foo", "^1")
	got, _, err := cargo.QueryVec(reg, d, cargo.QueryExact)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Source() != cratetest.DefaultSource {
		t.Errorf("sourced query returned %v", got)
	}

	d.Source = ""
	got, _, err = cargo.QueryVec(reg, d, cargo.QueryExact)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("unsourced query returned %d summaries, want 2", len(got))
	}
}

func TestLocalRegistrySummaryLookup(t *testing.T) {
	reg := mustUniverse(t, `
-- universe sample
b 1.0.0
b 1.1.0
	yanked
-- end
`)
	if _, ok := reg.Summary("b", "1.1.0", cratetest.DefaultSource); !ok {
		t.Errorf("yanked summary not found by identity")
	}
	if _, ok := reg.Summary("b", "9.9.9", cratetest.DefaultSource); ok {
		t.Errorf("found a summary that was never published")
	}
}

func TestPendingRegistry(t *testing.T) {
	reg := mustUniverse(t, `
-- universe sample
b 1.0.0
-- end
`)
	p := cargo.NewPendingRegistry(reg, 2)
	d := testDep("b", "^1")

	for i := 0; i < 2; i++ {
		got, ready, err := cargo.QueryVec(p, d, cargo.QueryExact)
		if err != nil {
			t.Fatal(err)
		}
		if ready || got != nil {
			t.Fatalf("poll %d: ready %v with %v, want pending", i, ready, versionsOf(got))
		}
	}
	got, ready, err := cargo.QueryVec(p, d, cargo.QueryExact)
	if err != nil || !ready {
		t.Fatalf("final poll: ready %v, err %v", ready, err)
	}
	if diff := cmp.Diff([]string{"1.0.0"}, versionsOf(got)); diff != "" {
		t.Errorf("(- want, + got):\n%s", diff)
	}

	// Other dependencies have their own countdown.
	if _, ready, _ := cargo.QueryVec(p, testDep("b", "^2"), cargo.QueryExact); ready {
		t.Errorf("distinct dependency was not pending")
	}
}
