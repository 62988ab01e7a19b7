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
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pb "deps.dev/api/v3"
	"deps.dev/util/semver"
	"github.com/sthibaul/cargo/version"
)

// Manifest is the per-version data the deps.dev API does not serve for
// crates: the declared dependencies, the feature table and any extra
// version attributes (yanked, rust-version). It is typically read from a
// sparse-index mirror.
type Manifest struct {
	Deps     []Dependency
	Features FeatureMap
	Attrs    version.AttrSet
}

// ManifestFunc supplies the Manifest for a published version. Returning an
// error wrapping ErrNotFound yields a bare summary with no dependencies.
type ManifestFunc func(name, version string) (*Manifest, error)

// APIRegistry is a Registry backed by the deps.dev Insights API for
// crates.io packages. RPCs are dispatched on background goroutines and a
// query is answered pending until its crate listing has landed, so the
// queryer's re-drive protocol applies unchanged: service the registry with
// Wait, call ResetPending, ask again.
//
// The deps.dev API serves version listings but not Cargo manifests, so the
// registry takes a ManifestFunc for the dependency and feature data; with a
// nil ManifestFunc it still serves candidate enumeration and override
// targets.
type APIRegistry struct {
	c         pb.InsightsClient
	manifests ManifestFunc
	ctx       context.Context

	mu      sync.Mutex
	fetches map[fetchKey]*fetch
	pending []*fetch

	cons *constraintCache
}

type fetchKey struct {
	name string
	// pinned is set for exact-version fast-path fetches.
	pinned string
}

// fetch is one in-flight or completed crate listing.
type fetch struct {
	done      chan struct{}
	summaries []*Summary
	err       error
}

// NewAPIRegistry creates an APIRegistry using the provided gRPC client to
// call the deps.dev Insights service. The context bounds every RPC the
// registry dispatches.
func NewAPIRegistry(ctx context.Context, c pb.InsightsClient, manifests ManifestFunc) *APIRegistry {
	return &APIRegistry{
		c:         c,
		manifests: manifests,
		ctx:       ctx,
		fetches:   make(map[fetchKey]*fetch),
		cons:      newConstraintCache(),
	}
}

// Query implements Registry. The first query for a crate kicks off the RPCs
// and reports pending; once they land, matching summaries are streamed in
// ascending version order.
func (r *APIRegistry) Query(d Dependency, kind QueryKind, sink func(*Summary)) (bool, error) {
	key := fetchKey{name: d.Name}
	if kind == QueryExact {
		key.pinned = pinnedVersion(d.Req)
	}

	r.mu.Lock()
	f, ok := r.fetches[key]
	if !ok {
		f = &fetch{done: make(chan struct{})}
		r.fetches[key] = f
		r.pending = append(r.pending, f)
		go r.run(f, key)
	}
	r.mu.Unlock()

	select {
	case <-f.done:
	default:
		return false, nil
	}
	if f.err != nil {
		return false, f.err
	}

	for _, s := range f.summaries {
		if kind == QueryExact {
			if s.HasAttr(version.Yanked) {
				continue
			}
			ok, err := r.cons.match(d.Req, s.Version())
			if err != nil {
				return false, err
			}
			if !ok {
				continue
			}
		}
		sink(s)
	}
	return true, nil
}

// Wait blocks until every RPC dispatched so far has landed, or the context
// is done. Drivers call it before re-asking pending queries.
func (r *APIRegistry) Wait(ctx context.Context) error {
	r.mu.Lock()
	waiting := r.pending
	r.pending = nil
	r.mu.Unlock()
	for _, f := range waiting {
		select {
		case <-f.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *APIRegistry) run(f *fetch, key fetchKey) {
	defer close(f.done)
	if key.pinned != "" {
		f.summaries, f.err = r.fetchVersion(key.name, key.pinned)
		return
	}
	f.summaries, f.err = r.fetchCrate(key.name)
}

// fetchCrate lists every known version of a crate.
func (r *APIRegistry) fetchCrate(name string) ([]*Summary, error) {
	resp, err := r.c.GetPackage(r.ctx, &pb.GetPackageRequest{
		PackageKey: &pb.PackageKey{
			System: pb.System_CARGO,
			Name:   name,
		},
	})
	if status.Code(err) == codes.NotFound {
		// An unknown crate has no candidates; that is an answer,
		// not an error.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]*Summary, 0, len(resp.Versions))
	for _, v := range resp.Versions {
		s, err := r.makeSummary(name, v.VersionKey.Version, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	sortSummariesByVersion(out)
	return out, nil
}

// fetchVersion is the fast path for pinned requirements: a single version
// lookup instead of a whole crate listing. Override targets are pinned, so
// they take this path.
func (r *APIRegistry) fetchVersion(name, ver string) ([]*Summary, error) {
	resp, err := r.c.GetVersion(r.ctx, &pb.GetVersionRequest{
		VersionKey: &pb.VersionKey{
			System:  pb.System_CARGO,
			Name:    name,
			Version: ver,
		},
	})
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s, err := r.makeSummary(name, ver, resp.Registries)
	if err != nil {
		return nil, err
	}
	return []*Summary{s}, nil
}

func (r *APIRegistry) makeSummary(name, ver string, registries []string) (*Summary, error) {
	var attrs version.AttrSet
	var deps []Dependency
	var features FeatureMap
	if r.manifests != nil {
		m, err := r.manifests(name, ver)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("manifest for %s %s: %w", name, ver, err)
		case m != nil:
			deps, features, attrs = m.Deps, m.Features, m.Attrs
		}
	}
	if len(registries) > 0 {
		attrs.SetAttr(version.Registries, strings.Join(registries, ","))
	}
	id := PackageID{Name: name, Version: ver, Source: CratesIO}
	return NewSummary(id, deps, features, attrs), nil
}

// pinnedVersion returns the exact version a requirement pins, or "" if the
// requirement can match more than one version.
func pinnedVersion(req string) string {
	rest, ok := strings.CutPrefix(req, "=")
	if !ok {
		return ""
	}
	rest = strings.TrimSpace(rest)
	// A partial pin like "=1.2" still matches a range; only full
	// major.minor.patch pins take the fast path.
	if strings.Count(rest, ".") != 2 {
		return ""
	}
	if _, err := semver.Cargo.Parse(rest); err != nil {
		return ""
	}
	return rest
}
