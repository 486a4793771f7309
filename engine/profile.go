// Package engine models target matching engines: which constructs they
// accept and how their evaluation cost is weighted.
package engine

import (
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

// Feature names a regex construct an engine may or may not support.
type Feature string

const (
	FeatureBackreferences Feature = "backreferences"
	FeaturePossessive     Feature = "possessive-quantifiers"
	FeatureAtomicGroups   Feature = "atomic-groups"
	FeatureLazy           Feature = "lazy-quantifiers"
	FeatureNamedGroups    Feature = "named-groups"
)

// Profile describes a target matching engine. Backtracking engines are the
// ones exposed to superlinear blowup; linear-time engines are immune but
// accept fewer constructs.
type Profile struct {
	Name         string          `yaml:"name"`
	Backtracking bool            `yaml:"backtracking"`
	Features     map[Feature]bool `yaml:"features"`
	// CostWeights scales the estimator's per-node base cost, keyed by node
	// kind name (literal, charclass, alternation, ...). Missing kinds
	// default to 1.
	CostWeights map[string]float64 `yaml:"cost_weights"`
}

// Supports reports whether the engine accepts the named construct.
func (p Profile) Supports(f Feature) bool {
	return p.Features[f]
}

// Weight returns the cost multiplier for a node kind name.
func (p Profile) Weight(kind string) float64 {
	if w, ok := p.CostWeights[kind]; ok {
		return w
	}
	return 1
}

// Builtin profile names.
const (
	ProfilePCRE   = "pcre"
	ProfileRE2    = "re2"
	ProfileLinear = "linear"
	ProfilePOSIX  = "posix-legacy"
)

var builtins = map[string]Profile{
	ProfilePCRE: {
		Name:         ProfilePCRE,
		Backtracking: true,
		Features: map[Feature]bool{
			FeatureBackreferences: true,
			FeaturePossessive:     true,
			FeatureAtomicGroups:   true,
			FeatureLazy:           true,
			FeatureNamedGroups:    true,
		},
		CostWeights: map[string]float64{
			"alternation": 2,
			"quantifier":  2,
		},
	},
	ProfileRE2: {
		Name:         ProfileRE2,
		Backtracking: false,
		Features: map[Feature]bool{
			FeatureLazy:        true,
			FeatureNamedGroups: true,
		},
	},
	ProfileLinear: {
		Name:         ProfileLinear,
		Backtracking: false,
		Features:     map[Feature]bool{},
	},
	ProfilePOSIX: {
		Name:         ProfilePOSIX,
		Backtracking: true,
		Features: map[Feature]bool{
			FeatureBackreferences: true,
		},
		CostWeights: map[string]float64{
			"alternation": 2,
			"quantifier":  2,
		},
	},
}

// Lookup resolves a profile by name from the builtin set.
func Lookup(name string) (Profile, error) {
	p, ok := builtins[name]
	if !ok {
		return Profile{}, fmt.Errorf("engine: unknown profile %q", name)
	}
	return p, nil
}

// Builtins returns the builtin profiles sorted by name.
func Builtins() []Profile {
	out := make([]Profile, 0, len(builtins))
	for _, p := range builtins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LoadProfiles reads additional engine profiles from YAML. Deployments use
// this to describe in-house or vendor engines without rebuilding.
func LoadProfiles(r io.Reader) ([]Profile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("engine: reading profiles: %w", err)
	}
	var doc struct {
		Profiles []Profile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("engine: parsing profiles: %w", err)
	}
	for i, p := range doc.Profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("engine: profile %d has no name", i)
		}
	}
	return doc.Profiles, nil
}
