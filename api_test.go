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
	"context"
	"sync"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pb "deps.dev/api/v3"
	"github.com/google/go-cmp/cmp"
)

// fakeInsights serves canned package data. The embedded interface supplies
// the methods the registry never calls.
type fakeInsights struct {
	pb.InsightsClient

	mu           sync.Mutex
	packages     map[string]*pb.Package
	versions     map[string]*pb.Version
	packageCalls int
	versionCalls int
}

func (f *fakeInsights) GetPackage(ctx context.Context, req *pb.GetPackageRequest, _ ...grpc.CallOption) (*pb.Package, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.packageCalls++
	if p, ok := f.packages[req.PackageKey.Name]; ok {
		return p, nil
	}
	return nil, status.Error(codes.NotFound, "no such package")
}

func (f *fakeInsights) GetVersion(ctx context.Context, req *pb.GetVersionRequest, _ ...grpc.CallOption) (*pb.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versionCalls++
	if v, ok := f.versions[req.VersionKey.Name+"@"+req.VersionKey.Version]; ok {
		return v, nil
	}
	return nil, status.Error(codes.NotFound, "no such version")
}

func (f *fakeInsights) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.packageCalls, f.versionCalls
}

func cargoPackage(name string, versions ...string) *pb.Package {
	p := &pb.Package{
		PackageKey: &pb.PackageKey{System: pb.System_CARGO, Name: name},
	}
	for _, v := range versions {
		p.Versions = append(p.Versions, &pb.Package_Version{
			VersionKey: &pb.VersionKey{System: pb.System_CARGO, Name: name, Version: v},
		})
	}
	return p
}

// drain polls a query until the registry answers, servicing the in-flight
// RPCs between polls.
func drain(t *testing.T, ctx context.Context, r *APIRegistry, d Dependency) []*Summary {
	t.Helper()
	for i := 0; i < 10; i++ {
		ss, ready, err := QueryVec(r, d, QueryExact)
		if err != nil {
			t.Fatal(err)
		}
		if ready {
			return ss
		}
		if err := r.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}
	t.Fatal("query never became ready")
	return nil
}

func TestAPIRegistryQuery(t *testing.T) {
	ctx := context.Background()
	fake := &fakeInsights{
		packages: map[string]*pb.Package{
			"serde": cargoPackage("serde", "1.0.0", "0.9.0", "1.2.0"),
		},
	}
	r := NewAPIRegistry(ctx, fake, nil)
	d := NewDependency("serde", "^1", CratesIO)

	// The first query dispatches the RPC and is pending.
	ss, ready, err := QueryVec(r, d, QueryExact)
	if err != nil {
		t.Fatal(err)
	}
	if ready || ss != nil {
		t.Fatalf("first query: ready %v with %d summaries, want pending", ready, len(ss))
	}

	got := drain(t, ctx, r, d)
	var vers []string
	for _, s := range got {
		vers = append(vers, s.Version())
	}
	if diff := cmp.Diff([]string{"1.0.0", "1.2.0"}, vers); diff != "" {
		t.Errorf("versions (- want, + got):\n%s", diff)
	}

	// The listing is fetched once; re-queries with other requirements
	// reuse it without going back to the API.
	drain(t, ctx, r, NewDependency("serde", "^0.9", CratesIO))
	if pc, _ := fake.calls(); pc != 1 {
		t.Errorf("GetPackage called %d times, want 1", pc)
	}
}

func TestAPIRegistryUnknownCrate(t *testing.T) {
	ctx := context.Background()
	r := NewAPIRegistry(ctx, &fakeInsights{}, nil)

	got := drain(t, ctx, r, NewDependency("nope", "^1", CratesIO))
	if len(got) != 0 {
		t.Errorf("unknown crate returned %d summaries", len(got))
	}
}

func TestAPIRegistryPinnedFastPath(t *testing.T) {
	ctx := context.Background()
	fake := &fakeInsights{
		packages: map[string]*pb.Package{
			"serde": cargoPackage("serde", "1.0.0", "1.2.0"),
		},
		versions: map[string]*pb.Version{
			"serde@1.2.0": {
				VersionKey: &pb.VersionKey{System: pb.System_CARGO, Name: "serde", Version: "1.2.0"},
				Registries: []string{"crates.io"},
			},
		},
	}
	r := NewAPIRegistry(ctx, fake, nil)

	got := drain(t, ctx, r, NewDependency("serde", "=1.2.0", CratesIO))
	if len(got) != 1 || got[0].Version() != "1.2.0" {
		t.Fatalf("pinned query returned %v", got)
	}
	pc, vc := fake.calls()
	if pc != 0 || vc != 1 {
		t.Errorf("calls = %d GetPackage, %d GetVersion; want 0, 1", pc, vc)
	}
}

func TestAPIRegistryManifests(t *testing.T) {
	ctx := context.Background()
	fake := &fakeInsights{
		packages: map[string]*pb.Package{
			"a": cargoPackage("a", "1.0.0"),
		},
	}
	manifests := func(name, version string) (*Manifest, error) {
		if name != "a" || version != "1.0.0" {
			return nil, ErrNotFound
		}
		return &Manifest{
			Deps:     []Dependency{NewDependency("b", "^1", CratesIO)},
			Features: FeatureMap{"std": {}},
		}, nil
	}
	r := NewAPIRegistry(ctx, fake, manifests)

	got := drain(t, ctx, r, NewDependency("a", "^1", CratesIO))
	if len(got) != 1 {
		t.Fatalf("got %d summaries, want 1", len(got))
	}
	s := got[0]
	if len(s.Dependencies()) != 1 || s.Dependencies()[0].Name != "b" {
		t.Errorf("dependencies = %v", s.Dependencies())
	}
	if _, ok := s.Features()["std"]; !ok {
		t.Errorf("features = %v, want std declared", s.Features())
	}
}
