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

/*
Package cratetest provides a way to define crate universes for tests.

A universe is an entire registry index, described in a simple block format.
Summary lines open a published version; indented lines add dependencies,
features and attributes to it.

	-- universe sample
	a 1.0.0
		dep b ^1
		dep x ^1 optional
		feature default x
		feature net dep:x b/tls
		rust-version 1.60
	b 1.2.0
		yanked
	-- end

Dependency lines accept the flags optional, dev, build, no-defaults and
public, plus rename=<name>, features=<f1,f2> and source=<id>. Feature lines
list values in manifest syntax: "feat", "dep:name", "name/feat",
"name?/feat".
*/
package cratetest

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/sthibaul/cargo"
	"github.com/sthibaul/cargo/dep"
	"github.com/sthibaul/cargo/version"
)

const (
	startBlock = "-- universe "
	endBlock   = "-- end"
)

// DefaultSource is the source every summary and dependency belongs to
// unless a source= flag says otherwise.
const DefaultSource = cargo.SourceID("registry+https://cratetest.invalid/index")

// Parse reads universe blocks and builds a LocalRegistry per universe,
// indexed by name.
func Parse(r io.Reader) (map[string]*cargo.LocalRegistry, error) {
	universes := make(map[string]*cargo.LocalRegistry)
	sc := bufio.NewScanner(r)
	var (
		cur     *universeBuilder
		curName string
		line    int
	)
	flush := func() error {
		if cur == nil {
			return nil
		}
		reg, err := cur.build()
		if err != nil {
			return err
		}
		universes[curName] = reg
		cur = nil
		return nil
	}
	for sc.Scan() {
		line++
		l := sc.Text()
		trimmed := strings.TrimSpace(l)
		lower := strings.ToLower(trimmed)
		switch {
		case strings.HasPrefix(lower, startBlock):
			if cur != nil {
				return nil, fmt.Errorf("line %d: universe inside universe", line)
			}
			name := strings.TrimSpace(trimmed[len(startBlock):])
			if name == "" {
				return nil, fmt.Errorf("line %d: universe name cannot be empty", line)
			}
			if universes[name] != nil {
				return nil, fmt.Errorf("line %d: duplicate universe name: %q", line, name)
			}
			cur = &universeBuilder{}
			curName = name
		case lower == endBlock:
			if cur == nil {
				return nil, fmt.Errorf("line %d: %q outside universe", line, endBlock)
			}
			if err := flush(); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		case cur != nil && trimmed != "":
			indented := l != strings.TrimLeft(l, " \t")
			if err := cur.addLine(trimmed, indented); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if cur != nil {
		return nil, fmt.Errorf("%w, want %q", io.ErrUnexpectedEOF, endBlock)
	}
	return universes, nil
}

// ParseString is Parse over a literal.
func ParseString(s string) (map[string]*cargo.LocalRegistry, error) {
	return Parse(strings.NewReader(s))
}

// ParseUniverse parses input that defines exactly one universe and returns
// its registry.
func ParseUniverse(s string) (*cargo.LocalRegistry, error) {
	us, err := ParseString(s)
	if err != nil {
		return nil, err
	}
	if len(us) != 1 {
		return nil, fmt.Errorf("want exactly 1 universe, got %d", len(us))
	}
	for _, u := range us {
		return u, nil
	}
	panic("unreachable")
}

// universeBuilder accumulates parsed summaries until the block ends.
type universeBuilder struct {
	crates []*crate
}

type crate struct {
	name, version string
	source        cargo.SourceID
	deps          []cargo.Dependency
	features      cargo.FeatureMap
	attrs         version.AttrSet
}

func (b *universeBuilder) addLine(l string, indented bool) error {
	if !indented {
		fields := strings.Fields(l)
		if len(fields) != 2 {
			return fmt.Errorf("invalid summary line %q, want \"name version\"", l)
		}
		b.crates = append(b.crates, &crate{
			name:     fields[0],
			version:  fields[1],
			source:   DefaultSource,
			features: cargo.FeatureMap{},
		})
		return nil
	}
	if len(b.crates) == 0 {
		return fmt.Errorf("directive %q before any summary line", l)
	}
	return b.crates[len(b.crates)-1].addDirective(l)
}

func (c *crate) addDirective(l string) error {
	fields := strings.Fields(l)
	switch fields[0] {
	case "dep":
		if len(fields) < 3 {
			return fmt.Errorf("invalid dep line %q, want \"dep name req [flags]\"", l)
		}
		d := cargo.NewDependency(fields[1], fields[2], DefaultSource)
		for _, flag := range fields[3:] {
			if err := applyDepFlag(&d, flag); err != nil {
				return fmt.Errorf("dep %s: %w", fields[1], err)
			}
		}
		c.deps = append(c.deps, d)
	case "feature":
		if len(fields) < 2 {
			return fmt.Errorf("invalid feature line %q, want \"feature name [values]\"", l)
		}
		name := fields[1]
		values := []cargo.FeatureValue{}
		for _, v := range fields[2:] {
			values = append(values, cargo.ParseFeatureValue(strings.TrimSuffix(v, ",")))
		}
		c.features[name] = values
	case "rust-version":
		if len(fields) != 2 {
			return fmt.Errorf("invalid rust-version line %q", l)
		}
		c.attrs.SetAttr(version.RustVersion, fields[1])
	case "links":
		if len(fields) != 2 {
			return fmt.Errorf("invalid links line %q", l)
		}
		c.attrs.SetAttr(version.Links, fields[1])
	case "yanked":
		c.attrs.SetAttr(version.Yanked, "")
	case "source":
		if len(fields) != 2 {
			return fmt.Errorf("invalid source line %q", l)
		}
		c.source = cargo.SourceID(fields[1])
	default:
		return fmt.Errorf("unknown directive %q", fields[0])
	}
	return nil
}

func applyDepFlag(d *cargo.Dependency, flag string) error {
	switch {
	case flag == "optional":
		d.Type.AddAttr(dep.Opt, "")
	case flag == "dev":
		d.Type.AddAttr(dep.Dev, "")
	case flag == "build":
		d.Type.AddAttr(dep.Build, "")
	case flag == "no-defaults":
		d.Type.AddAttr(dep.NoDefaults, "")
	case flag == "public":
		d.Type.AddAttr(dep.Public, "")
	case strings.HasPrefix(flag, "rename="):
		d.Type.AddAttr(dep.KnownAs, strings.TrimPrefix(flag, "rename="))
	case strings.HasPrefix(flag, "features="):
		d.Type.AddAttr(dep.EnabledDependencies, strings.TrimPrefix(flag, "features="))
	case strings.HasPrefix(flag, "source="):
		d.Source = cargo.SourceID(strings.TrimPrefix(flag, "source="))
	default:
		return fmt.Errorf("unknown flag %q", flag)
	}
	return nil
}

func (b *universeBuilder) build() (*cargo.LocalRegistry, error) {
	reg := cargo.NewLocalRegistry()
	for _, c := range b.crates {
		id := cargo.PackageID{Name: c.name, Version: c.version, Source: c.source}
		reg.AddSummary(cargo.NewSummary(id, c.deps, c.features, c.attrs))
	}
	return reg, nil
}
