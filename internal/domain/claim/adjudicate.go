package claim

import "github.com/karlkimuhu/ginga-claims-ai/internal/domain/reference"

const DefaultGlobalLimit = 40000

// Adjudicator assigns a claim status. Rules are evaluated in order and the
// first match wins:
//
//  1. inactive member            -> Rejected
//  2. amount > GlobalLimit       -> Partial
//  3. amount > 2 * avg_cost      -> Partial
//  4. otherwise                  -> Approved
//
// Both thresholds are strict: an amount equal to the limit is approved.
type Adjudicator struct {
	GlobalLimit float64
}

func NewAdjudicator(globalLimit float64) Adjudicator {
	return Adjudicator{GlobalLimit: globalLimit}
}

func (a Adjudicator) Decide(m reference.Member, p reference.Procedure, amount float64) Status {
	if !m.Active {
		return StatusRejected
	}
	if amount > a.GlobalLimit {
		return StatusPartial
	}
	if amount > 2*p.AvgCost {
		return StatusPartial
	}
	return StatusApproved
}
