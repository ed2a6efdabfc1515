package same

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed codes.yaml
var codesYAML []byte

// Registry holds the originator, event, and state code tables. It is
// immutable after load and safe for concurrent unsynchronized reads.
type Registry struct {
	originators map[string]string
	events      map[string]string
	states      map[string]string
}

type codesFile struct {
	Originators map[string]string `yaml:"originators"`
	Events      map[string]string `yaml:"events"`
	States      map[string]string `yaml:"states"`
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the registry built from the embedded code tables.
// The tables are parsed once; the embedded data is validated at build time
// by the package tests, so a parse failure here is a programming error.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		reg, err := LoadRegistry(codesYAML)
		if err != nil {
			panic(fmt.Sprintf("same: embedded code tables: %v", err))
		}
		defaultRegistry = reg
	})
	return defaultRegistry
}

// LoadRegistry parses YAML code tables, allowing deployments to carry an
// extended or corrected table without rebuilding.
func LoadRegistry(data []byte) (*Registry, error) {
	var f codesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse code tables: %w", err)
	}
	if len(f.Originators) == 0 {
		return nil, fmt.Errorf("code tables define no originators")
	}
	if len(f.Events) == 0 {
		return nil, fmt.Errorf("code tables define no events")
	}
	for code := range f.Originators {
		if len(code) != 3 || !allUpper(code) {
			return nil, fmt.Errorf("originator %q is not a 3-letter code", code)
		}
	}
	for code := range f.Events {
		if len(code) != 3 {
			return nil, fmt.Errorf("event %q is not a 3-character code", code)
		}
	}
	return &Registry{originators: f.Originators, events: f.Events, states: f.States}, nil
}

// ValidOriginator reports whether org is a registered originator code.
func (r *Registry) ValidOriginator(org string) bool {
	_, ok := r.originators[org]
	return ok
}

// ValidEvent reports whether code is a registered event code.
func (r *Registry) ValidEvent(code string) bool {
	_, ok := r.events[code]
	return ok
}

// EventName returns the human-readable name for an event code, or "" when
// the code is not registered.
func (r *Registry) EventName(code string) string { return r.events[code] }

// OriginatorName returns the human-readable name for an originator code.
func (r *Registry) OriginatorName(org string) string { return r.originators[org] }

// StateAbbr returns the USPS abbreviation for the SS portion of a location
// code, or "" for marine areas and unknown numbers.
func (r *Registry) StateAbbr(loc string) string {
	if len(loc) != 6 {
		return ""
	}
	return r.states[loc[1:3]]
}
