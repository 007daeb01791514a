package claim

import "context"

// Repository is the durable claims table. Insert fails with ErrDuplicateID
// when the claim_id exists and with ErrDuplicateIdempotencyKey when the
// idempotency key is taken; Get returns a *NotFoundError on a miss. All other
// failures satisfy errors.Is(err, ErrStorage).
type Repository interface {
	Insert(ctx context.Context, c *Claim) error
	Get(ctx context.Context, claimID string) (*Claim, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Claim, error)
	Ping(ctx context.Context) error
}
