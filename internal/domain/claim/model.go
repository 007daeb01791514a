package claim

import (
	"strings"
	"time"
)

type Status string

const (
	StatusApproved Status = "Approved"
	StatusPartial  Status = "Partial"
	StatusRejected Status = "Rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusApproved, StatusPartial, StatusRejected:
		return true
	}
	return false
}

// Claim maps to the claims table. Rows are written once and never updated.
type Claim struct {
	ClaimID        string    `db:"claim_id" json:"claim_id"`
	MemberID       string    `db:"member_id" json:"member_id"`
	ProviderID     string    `db:"provider_id" json:"provider_id"`
	DiagnosisCode  *string   `db:"diagnosis_code" json:"diagnosis_code,omitempty"`
	ProcedureCode  string    `db:"procedure_code" json:"procedure_code"`
	ClaimAmount    float64   `db:"claim_amount" json:"claim_amount"`
	Status         Status    `db:"status" json:"status"`
	IdempotencyKey *string   `db:"idempotency_key" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// SubmitInput is the claim submission payload.
type SubmitInput struct {
	MemberID       string  `json:"member_id"`
	ProviderID     string  `json:"provider_id"`
	DiagnosisCode  *string `json:"diagnosis_code,omitempty"`
	ProcedureCode  string  `json:"procedure_code"`
	ClaimAmount    float64 `json:"claim_amount"`
	IdempotencyKey string  `json:"-"`
}

// Normalize trims every code and upper-cases the reference keys so that
// equivalent inputs resolve to the same reference records.
func (in *SubmitInput) Normalize() {
	in.MemberID = normalizeCode(in.MemberID)
	in.ProviderID = normalizeCode(in.ProviderID)
	in.ProcedureCode = normalizeCode(in.ProcedureCode)
	if in.DiagnosisCode != nil {
		d := strings.TrimSpace(*in.DiagnosisCode)
		in.DiagnosisCode = &d
	}
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
}

func normalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Result is what submission and retrieval return to callers.
type Result struct {
	ClaimID     string    `json:"claim_id"`
	Status      Status    `json:"status"`
	ClaimAmount float64   `json:"claim_amount"`
	CreatedAt   time.Time `json:"created_at"`
	Replayed    bool      `json:"-"`
}

func (c *Claim) Result() *Result {
	return &Result{
		ClaimID:     c.ClaimID,
		Status:      c.Status,
		ClaimAmount: c.ClaimAmount,
		CreatedAt:   c.CreatedAt,
	}
}

// matches reports whether a stored claim was produced from the same
// normalized submission.
func (c *Claim) matches(in SubmitInput) bool {
	if c.MemberID != in.MemberID || c.ProviderID != in.ProviderID ||
		c.ProcedureCode != in.ProcedureCode || c.ClaimAmount != in.ClaimAmount {
		return false
	}
	switch {
	case c.DiagnosisCode == nil && in.DiagnosisCode == nil:
		return true
	case c.DiagnosisCode == nil || in.DiagnosisCode == nil:
		return false
	default:
		return *c.DiagnosisCode == *in.DiagnosisCode
	}
}
