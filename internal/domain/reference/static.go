package reference

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// StaticRegistry serves reference records from memory. It is read-only after
// construction and safe for concurrent use.
type StaticRegistry struct {
	members    map[string]Member
	procedures map[string]Procedure
	providers  map[string]Provider
}

// Data is the on-disk shape of a reference data file.
type Data struct {
	Members    []Member    `yaml:"members"`
	Procedures []Procedure `yaml:"procedures"`
	Providers  []Provider  `yaml:"providers"`
}

// NewStaticRegistry indexes d by upper-cased, trimmed keys so lookups match the
// normalized codes carried on claims.
func NewStaticRegistry(d Data) (*StaticRegistry, error) {
	r := &StaticRegistry{
		members:    make(map[string]Member, len(d.Members)),
		procedures: make(map[string]Procedure, len(d.Procedures)),
		providers:  make(map[string]Provider, len(d.Providers)),
	}
	for _, m := range d.Members {
		key := normalizeKey(m.ID)
		if key == "" {
			return nil, fmt.Errorf("member with empty id")
		}
		if _, dup := r.members[key]; dup {
			return nil, fmt.Errorf("duplicate member %q", key)
		}
		m.ID = key
		r.members[key] = m
	}
	for _, p := range d.Procedures {
		key := normalizeKey(p.Code)
		if key == "" {
			return nil, fmt.Errorf("procedure with empty code")
		}
		if _, dup := r.procedures[key]; dup {
			return nil, fmt.Errorf("duplicate procedure %q", key)
		}
		if p.AvgCost < 0 {
			return nil, fmt.Errorf("procedure %q: avg_cost must be non-negative, got %v", key, p.AvgCost)
		}
		p.Code = key
		r.procedures[key] = p
	}
	for _, p := range d.Providers {
		key := normalizeKey(p.ID)
		if key == "" {
			return nil, fmt.Errorf("provider with empty id")
		}
		if _, dup := r.providers[key]; dup {
			return nil, fmt.Errorf("duplicate provider %q", key)
		}
		p.ID = key
		r.providers[key] = p
	}
	return r, nil
}

// DefaultData is the built-in registry used when no reference file is
// configured.
func DefaultData() Data {
	return Data{
		Members: []Member{
			{ID: "M123", Active: true},
			{ID: "M456", Active: false},
		},
		Procedures: []Procedure{
			{Code: "P001", AvgCost: 20000},
			{Code: "P002", AvgCost: 5000},
		},
		Providers: []Provider{
			{ID: "PR1", Name: "Provider One"},
			{ID: "PR2", Name: "Provider Two"},
		},
	}
}

// LoadFile reads a YAML reference data file.
func LoadFile(path string) (Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Data{}, fmt.Errorf("read reference file %s: %w", path, err)
	}
	var d Data
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return Data{}, fmt.Errorf("parse reference file %s: %w", path, err)
	}
	return d, nil
}

func (r *StaticRegistry) Member(_ context.Context, id string) (*Member, error) {
	m, ok := r.members[normalizeKey(id)]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", id, ErrNotFound)
	}
	return &m, nil
}

func (r *StaticRegistry) Procedure(_ context.Context, code string) (*Procedure, error) {
	p, ok := r.procedures[normalizeKey(code)]
	if !ok {
		return nil, fmt.Errorf("procedure %s: %w", code, ErrNotFound)
	}
	return &p, nil
}

func (r *StaticRegistry) Provider(_ context.Context, id string) (*Provider, error) {
	p, ok := r.providers[normalizeKey(id)]
	if !ok {
		return nil, fmt.Errorf("provider %s: %w", id, ErrNotFound)
	}
	return &p, nil
}

// Counts reports how many records of each kind are loaded.
func (r *StaticRegistry) Counts() (members, procedures, providers int) {
	return len(r.members), len(r.procedures), len(r.providers)
}

func normalizeKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
