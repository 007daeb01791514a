package reference

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Registry when no record exists for a key.
var ErrNotFound = errors.New("reference record not found")

// Member is an insured party. Only active members are eligible for payment.
type Member struct {
	ID     string `yaml:"id" json:"id"`
	Active bool   `yaml:"active" json:"active"`
}

// Procedure carries the historical average cost used for outlier detection.
type Procedure struct {
	Code    string  `yaml:"code" json:"code"`
	AvgCost float64 `yaml:"avg_cost" json:"avg_cost"`
}

type Provider struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// Registry resolves reference records by their normalized key. Implementations
// return ErrNotFound (possibly wrapped) for unknown keys and any other error
// for infrastructure failures.
type Registry interface {
	Member(ctx context.Context, id string) (*Member, error)
	Procedure(ctx context.Context, code string) (*Procedure, error)
	Provider(ctx context.Context, id string) (*Provider, error)
}
