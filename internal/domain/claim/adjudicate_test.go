package claim

import (
	"testing"

	"github.com/karlkimuhu/ginga-claims-ai/internal/domain/reference"
)

func TestAdjudicator_Decide(t *testing.T) {
	active := reference.Member{ID: "M123", Active: true}
	inactive := reference.Member{ID: "M456", Active: false}
	p001 := reference.Procedure{Code: "P001", AvgCost: 20000}
	p002 := reference.Procedure{Code: "P002", AvgCost: 5000}

	tests := []struct {
		name   string
		member reference.Member
		proc   reference.Procedure
		amount float64
		want   Status
	}{
		{"within limits", active, p001, 15000, StatusApproved},
		{"exceeds global limit", active, p001, 45000, StatusPartial},
		{"inactive member", inactive, p002, 100, StatusRejected},
		{"inactive member over limit", inactive, p001, 45000, StatusRejected},
		{"equal to global limit", active, p001, 40000, StatusApproved},
		{"just over global limit", active, p001, 40000.01, StatusPartial},
		{"equal to twice avg cost", active, p002, 10000, StatusApproved},
		{"over twice avg cost", active, p002, 10001, StatusPartial},
		{"zero avg cost", active, reference.Procedure{Code: "P0", AvgCost: 0}, 1, StatusPartial},
	}

	adj := NewAdjudicator(DefaultGlobalLimit)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adj.Decide(tt.member, tt.proc, tt.amount); got != tt.want {
				t.Errorf("Decide(%v, %v, %v) = %s, want %s", tt.member, tt.proc, tt.amount, got, tt.want)
			}
		})
	}
}

func TestAdjudicator_CustomLimit(t *testing.T) {
	adj := NewAdjudicator(1000)
	m := reference.Member{ID: "M123", Active: true}
	p := reference.Procedure{Code: "P001", AvgCost: 20000}

	if got := adj.Decide(m, p, 1500); got != StatusPartial {
		t.Errorf("expected Partial above custom limit, got %s", got)
	}
	if got := adj.Decide(m, p, 1000); got != StatusApproved {
		t.Errorf("expected Approved at custom limit, got %s", got)
	}
}

func TestStatus_Valid(t *testing.T) {
	for _, s := range []Status{StatusApproved, StatusPartial, StatusRejected} {
		if !s.Valid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if Status("Pending").Valid() {
		t.Error("expected Pending to be invalid")
	}
}
