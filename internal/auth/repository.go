// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carterperez-dev/leadboard/internal/core"
)

// PostgresRegistry persists revocations in revoked_tokens so they survive
// restarts and are shared by every instance using the database.
type PostgresRegistry struct {
	db  core.DBTX
	now func() time.Time
}

func NewPostgresRegistry(db core.DBTX) *PostgresRegistry {
	return &PostgresRegistry{
		db:  db,
		now: time.Now,
	}
}

// Revoke is idempotent. A repeat keeps the later expiry, with NULL meaning
// never.
func (r *PostgresRegistry) Revoke(
	ctx context.Context,
	token string,
	expiresAt time.Time,
) error {
	query := `
		INSERT INTO revoked_tokens (token_hash, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (token_hash) DO UPDATE
		SET expires_at = CASE
			WHEN revoked_tokens.expires_at IS NULL OR EXCLUDED.expires_at IS NULL THEN NULL
			ELSE GREATEST(revoked_tokens.expires_at, EXCLUDED.expires_at)
		END`

	var expiry *time.Time
	if !expiresAt.IsZero() {
		expiry = &expiresAt
	}

	if _, err := r.db.ExecContext(ctx, query, core.HashToken(token), expiry); err != nil {
		return fmt.Errorf("revoke token: %w: %w", core.ErrDependency, err)
	}

	return nil
}

func (r *PostgresRegistry) IsRevoked(ctx context.Context, token string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE token_hash = $1)`

	var revoked bool
	if err := r.db.GetContext(ctx, &revoked, query, core.HashToken(token)); err != nil {
		return false, fmt.Errorf("check revocation: %w: %w", core.ErrDependency, err)
	}

	return revoked, nil
}

// DeleteExpired removes revocations whose tokens can no longer verify.
func (r *PostgresRegistry) DeleteExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM revoked_tokens
		WHERE expires_at IS NOT NULL AND expires_at < $1`

	result, err := r.db.ExecContext(ctx, query, r.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired revocations: %w: %w", core.ErrDependency, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired revocations: %w: %w", core.ErrDependency, err)
	}

	return rows, nil
}

// Run deletes expired revocations on every tick until ctx is cancelled.
func (r *PostgresRegistry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.DeleteExpired(ctx)
			if err != nil {
				slog.Warn("revocation cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("pruned expired revocations", "removed", n)
			}
		}
	}
}

var _ Registry = (*PostgresRegistry)(nil)
