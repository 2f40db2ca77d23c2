package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TokenRepo is the MySQL-backed RevocationList.  Each row is one logged-out
// token id.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Revoke records tokenID.  Revoking the same id twice is a no-op.
func (r *TokenRepo) Revoke(ctx context.Context, tokenID string, accountID uint64, exp *time.Time) error {
	var expiresAt sql.NullTime
	if exp != nil {
		expiresAt = sql.NullTime{Time: exp.UTC(), Valid: true}
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT IGNORE INTO revoked_tokens (token_id, account_id, expires_at) VALUES (?,?,?)",
		tokenID, accountID, expiresAt)
	if err != nil {
		return fmt.Errorf("tokens.Revoke: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID has been revoked.
func (r *TokenRepo) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM revoked_tokens WHERE token_id=?", tokenID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("tokens.IsRevoked: %w", err)
	}
	return n > 0, nil
}

// PurgeExpired deletes entries whose token has expired on its own; they can
// no longer pass verification.
func (r *TokenRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM revoked_tokens WHERE expires_at IS NOT NULL AND expires_at < ?", now.UTC())
	if err != nil {
		return 0, fmt.Errorf("tokens.PurgeExpired: %w", err)
	}
	return res.RowsAffected()
}
