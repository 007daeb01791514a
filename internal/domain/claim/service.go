package claim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/karlkimuhu/ginga-claims-ai/internal/domain/reference"
	"github.com/karlkimuhu/ginga-claims-ai/internal/platform/events"
	"github.com/karlkimuhu/ginga-claims-ai/internal/platform/metrics"
)

const (
	DefaultMaxClaimAmount = 1_000_000
	maxCodeLength         = 32
	maxIdempotencyKeyLen  = 255
)

// EventPublisher receives a notification for every persisted claim.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType, key string, data map[string]interface{}) error
}

type Service struct {
	claims    Repository
	refs      reference.Registry
	adj       Adjudicator
	maxAmount float64
	newID     func() string
	events    EventPublisher
	logger    zerolog.Logger
}

func NewService(claims Repository, refs reference.Registry, adj Adjudicator, maxAmount float64, logger zerolog.Logger) *Service {
	if maxAmount <= 0 {
		maxAmount = DefaultMaxClaimAmount
	}
	return &Service{
		claims:    claims,
		refs:      refs,
		adj:       adj,
		maxAmount: maxAmount,
		newID:     NewClaimID,
		logger:    logger,
	}
}

// SetEventPublisher attaches an optional publisher for claim events.
func (s *Service) SetEventPublisher(p EventPublisher) {
	s.events = p
}

// SetIDGenerator replaces the claim id generator.
func (s *Service) SetIDGenerator(fn func() string) {
	s.newID = fn
}

// Submit validates, adjudicates and persists a new claim. Every call without an
// idempotency key creates a new claim with a fresh id.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Result, error) {
	in.Normalize()
	if err := s.validate(in); err != nil {
		metrics.RecordSubmissionFailure("validation")
		return nil, err
	}

	s.logger.Info().
		Str("member_id", in.MemberID).
		Str("provider_id", in.ProviderID).
		Str("procedure_code", in.ProcedureCode).
		Float64("claim_amount", in.ClaimAmount).
		Msg("submitting claim")

	if in.IdempotencyKey != "" {
		res, err := s.replay(ctx, in)
		if err != nil || res != nil {
			return res, err
		}
	}

	member, err := s.refs.Member(ctx, in.MemberID)
	if err != nil {
		return nil, s.lookupError("member", in.MemberID, err)
	}
	procedure, err := s.refs.Procedure(ctx, in.ProcedureCode)
	if err != nil {
		return nil, s.lookupError("procedure", in.ProcedureCode, err)
	}
	if _, err := s.refs.Provider(ctx, in.ProviderID); err != nil {
		return nil, s.lookupError("provider", in.ProviderID, err)
	}

	c := &Claim{
		ClaimID:       s.newID(),
		MemberID:      in.MemberID,
		ProviderID:    in.ProviderID,
		DiagnosisCode: in.DiagnosisCode,
		ProcedureCode: in.ProcedureCode,
		ClaimAmount:   in.ClaimAmount,
		Status:        s.adj.Decide(*member, *procedure, in.ClaimAmount),
	}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		c.IdempotencyKey = &key
	}

	if err := s.claims.Insert(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateIdempotencyKey) {
			// A concurrent submission with the same key won the insert.
			res, rerr := s.replay(ctx, in)
			if rerr != nil || res != nil {
				return res, rerr
			}
		}
		reason := "storage"
		if errors.Is(err, ErrDuplicateID) {
			reason = "duplicate_id"
		}
		metrics.RecordSubmissionFailure(reason)
		s.logger.Error().Err(err).Str("claim_id", c.ClaimID).Msg("failed to insert claim")
		return nil, fmt.Errorf("insert claim %s: %w", c.ClaimID, err)
	}

	metrics.RecordClaimAdjudicated(string(c.Status))
	s.logger.Info().
		Str("claim_id", c.ClaimID).
		Str("status", string(c.Status)).
		Msg("created claim")

	s.publish(ctx, c)
	return c.Result(), nil
}

// Fetch returns a stored claim by exact identifier.
func (s *Service) Fetch(ctx context.Context, claimID string) (*Result, error) {
	c, err := s.claims.Get(ctx, claimID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Info().Str("claim_id", claimID).Msg("claim not found")
			return nil, err
		}
		s.logger.Error().Err(err).Str("claim_id", claimID).Msg("failed to read claim")
		return nil, fmt.Errorf("fetch claim %s: %w", claimID, err)
	}
	return c.Result(), nil
}

// Ping reports whether the claim store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.claims.Ping(ctx)
}

func (s *Service) validate(in SubmitInput) error {
	codes := []struct {
		field string
		value string
	}{
		{"member_id", in.MemberID},
		{"provider_id", in.ProviderID},
		{"procedure_code", in.ProcedureCode},
	}
	for _, code := range codes {
		if err := validateCode(code.field, code.value); err != nil {
			return err
		}
	}
	if in.DiagnosisCode != nil {
		if err := validateCode("diagnosis_code", *in.DiagnosisCode); err != nil {
			return err
		}
	}

	amount := in.ClaimAmount
	switch {
	case math.IsNaN(amount) || math.IsInf(amount, 0):
		return &ValidationError{Field: "claim_amount", Message: "must be a finite number"}
	case amount <= 0:
		return &ValidationError{Field: "claim_amount", Message: "must be greater than 0"}
	case amount >= s.maxAmount:
		return &ValidationError{Field: "claim_amount", Message: fmt.Sprintf("must be less than %.0f", s.maxAmount)}
	}

	if len(in.IdempotencyKey) > maxIdempotencyKeyLen {
		return &ValidationError{Field: "idempotency_key", Message: fmt.Sprintf("must be at most %d characters", maxIdempotencyKeyLen)}
	}
	return nil
}

func validateCode(field, value string) error {
	n := utf8.RuneCountInString(value)
	if n == 0 {
		return &ValidationError{Field: field, Message: "is required"}
	}
	if n > maxCodeLength {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters", maxCodeLength)}
	}
	return nil
}

// replay returns the claim previously stored under the submission's
// idempotency key, or nil when the key is unused.
func (s *Service) replay(ctx context.Context, in SubmitInput) (*Result, error) {
	existing, err := s.claims.GetByIdempotencyKey(ctx, in.IdempotencyKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		metrics.RecordSubmissionFailure("storage")
		s.logger.Error().Err(err).Msg("failed to check idempotency key")
		return nil, fmt.Errorf("check idempotency key: %w", err)
	}
	if !existing.matches(in) {
		metrics.RecordSubmissionFailure("conflict")
		s.logger.Warn().Str("claim_id", existing.ClaimID).Msg("idempotency key reused with a different payload")
		return nil, &ConflictError{IdempotencyKey: in.IdempotencyKey, ClaimID: existing.ClaimID}
	}
	s.logger.Info().Str("claim_id", existing.ClaimID).Msg("replayed claim for idempotency key")
	res := existing.Result()
	res.Replayed = true
	return res, nil
}

func (s *Service) lookupError(kind, key string, err error) error {
	if errors.Is(err, reference.ErrNotFound) {
		metrics.RecordSubmissionFailure("not_found")
		s.logger.Warn().Str("kind", kind).Str("key", key).Msg("unknown reference")
		return &NotFoundError{Kind: kind, Key: key}
	}
	metrics.RecordSubmissionFailure("lookup")
	s.logger.Error().Err(err).Str("kind", kind).Str("key", key).Msg("reference lookup failed")
	return fmt.Errorf("lookup %s %s: %w", kind, key, err)
}

func (s *Service) publish(ctx context.Context, c *Claim) {
	if s.events == nil {
		return
	}
	data := map[string]interface{}{
		"claim_id":       c.ClaimID,
		"member_id":      c.MemberID,
		"provider_id":    c.ProviderID,
		"procedure_code": c.ProcedureCode,
		"claim_amount":   c.ClaimAmount,
		"status":         string(c.Status),
		"created_at":     c.CreatedAt.Format(time.RFC3339Nano),
	}
	if c.DiagnosisCode != nil {
		data["diagnosis_code"] = *c.DiagnosisCode
	}
	if err := s.events.PublishEvent(ctx, events.TypeClaimAdjudicated, c.ClaimID, data); err != nil {
		metrics.RecordEventPublishFailure()
		s.logger.Error().Err(err).Str("claim_id", c.ClaimID).Msg("failed to publish claim event")
	}
}
