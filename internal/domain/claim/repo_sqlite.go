package claim

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS claims (
	claim_id        TEXT PRIMARY KEY,
	member_id       TEXT NOT NULL,
	provider_id     TEXT NOT NULL,
	diagnosis_code  TEXT,
	procedure_code  TEXT NOT NULL,
	claim_amount    REAL NOT NULL CHECK (claim_amount > 0),
	status          TEXT NOT NULL CHECK (status IN ('Approved', 'Partial', 'Rejected')),
	idempotency_key TEXT UNIQUE,
	created_at      TEXT NOT NULL
)`

// =========== SQLite Claim Repository ===========

// SQLiteRepository stores claims in a single SQLite table. created_at is
// written by the store as an RFC 3339 UTC timestamp.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewClaimRepoSQLite(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// EnsureSchema creates the claims table if it does not exist.
func (r *SQLiteRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sqliteSchema); err != nil {
		return &StorageError{Op: "create schema", Err: err}
	}
	return nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, c *Claim) error {
	createdAt := r.now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO claims (claim_id, member_id, provider_id, diagnosis_code, procedure_code,
			claim_amount, status, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ClaimID, c.MemberID, c.ProviderID, nullString(c.DiagnosisCode), c.ProcedureCode,
		c.ClaimAmount, string(c.Status), nullString(c.IdempotencyKey), createdAt.Format(time.RFC3339Nano))
	if err != nil {
		return classifySQLiteInsertError(err)
	}
	c.CreatedAt = createdAt
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, claimID string) (*Claim, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+claimCols+` FROM claims WHERE claim_id = ?`, claimID)
	c, err := scanSQLiteClaim(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Kind: "claim", Key: claimID}
		}
		return nil, &StorageError{Op: "get", Err: err}
	}
	return c, nil
}

func (r *SQLiteRepository) GetByIdempotencyKey(ctx context.Context, key string) (*Claim, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+claimCols+` FROM claims WHERE idempotency_key = ?`, key)
	c, err := scanSQLiteClaim(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Kind: "claim", Key: key}
		}
		return nil, &StorageError{Op: "get by idempotency key", Err: err}
	}
	return c, nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return &StorageError{Op: "ping", Err: err}
	}
	return nil
}

func scanSQLiteClaim(row *sql.Row) (*Claim, error) {
	var (
		c         Claim
		status    string
		diagnosis sql.NullString
		idemKey   sql.NullString
		createdAt string
	)
	err := row.Scan(&c.ClaimID, &c.MemberID, &c.ProviderID, &diagnosis, &c.ProcedureCode,
		&c.ClaimAmount, &status, &idemKey, &createdAt)
	if err != nil {
		return nil, err
	}
	c.Status = Status(status)
	if !c.Status.Valid() {
		return nil, fmt.Errorf("unknown claim status %q", status)
	}
	if diagnosis.Valid {
		c.DiagnosisCode = &diagnosis.String
	}
	if idemKey.Valid {
		c.IdempotencyKey = &idemKey.String
	}
	c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	return &c, nil
}

func classifySQLiteInsertError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", ErrDuplicateID, err)
		case sqlite3.ErrConstraintUnique:
			return fmt.Errorf("%w: %v", ErrDuplicateIdempotencyKey, err)
		}
	}
	return &StorageError{Op: "insert", Err: err}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
