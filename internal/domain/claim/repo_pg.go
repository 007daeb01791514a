package claim

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation          = "23505"
	pgClaimsPKey               = "claims_pkey"
	pgClaimsIdempotencyKeyUniq = "claims_idempotency_key_key"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Postgres Claim Repository ===========

type claimRepoPG struct {
	pool *pgxpool.Pool
	q    queryable
}

// NewClaimRepoPG returns a Repository backed by the claims table created by
// the Postgres migrations.
func NewClaimRepoPG(pool *pgxpool.Pool) Repository {
	return &claimRepoPG{pool: pool, q: pool}
}

const claimCols = `claim_id, member_id, provider_id, diagnosis_code, procedure_code,
	claim_amount, status, idempotency_key, created_at`

func (r *claimRepoPG) scanClaim(row pgx.Row) (*Claim, error) {
	var c Claim
	var status string
	err := row.Scan(&c.ClaimID, &c.MemberID, &c.ProviderID, &c.DiagnosisCode, &c.ProcedureCode,
		&c.ClaimAmount, &status, &c.IdempotencyKey, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = Status(status)
	if !c.Status.Valid() {
		return nil, fmt.Errorf("unknown claim status %q", status)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (r *claimRepoPG) Insert(ctx context.Context, c *Claim) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO claims (claim_id, member_id, provider_id, diagnosis_code, procedure_code,
			claim_amount, status, idempotency_key)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		c.ClaimID, c.MemberID, c.ProviderID, c.DiagnosisCode, c.ProcedureCode,
		c.ClaimAmount, string(c.Status), c.IdempotencyKey).Scan(&c.CreatedAt)
	if err != nil {
		return classifyPGInsertError(err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return nil
}

func (r *claimRepoPG) Get(ctx context.Context, claimID string) (*Claim, error) {
	c, err := r.scanClaim(r.q.QueryRow(ctx, `SELECT `+claimCols+` FROM claims WHERE claim_id = $1`, claimID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Kind: "claim", Key: claimID}
		}
		return nil, &StorageError{Op: "get", Err: err}
	}
	return c, nil
}

func (r *claimRepoPG) GetByIdempotencyKey(ctx context.Context, key string) (*Claim, error) {
	c, err := r.scanClaim(r.q.QueryRow(ctx, `SELECT `+claimCols+` FROM claims WHERE idempotency_key = $1`, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Kind: "claim", Key: key}
		}
		return nil, &StorageError{Op: "get by idempotency key", Err: err}
	}
	return c, nil
}

func (r *claimRepoPG) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return &StorageError{Op: "ping", Err: err}
	}
	return nil
}

func classifyPGInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch pgErr.ConstraintName {
		case pgClaimsPKey:
			return fmt.Errorf("%w: %s", ErrDuplicateID, pgErr.Detail)
		case pgClaimsIdempotencyKeyUniq:
			return fmt.Errorf("%w: %s", ErrDuplicateIdempotencyKey, pgErr.Detail)
		}
	}
	return &StorageError{Op: "insert", Err: err}
}
