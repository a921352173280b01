package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/field-operations/internal/apperr"
)

// StoreRefreshToken inserts a refresh token hash row.
func (q *Queries) StoreRefreshToken(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp)
	return mapErr(err, "refresh token")
}

// ValidateRefreshToken returns userID if a non-revoked token exists that has
// not expired at now.
func (q *Queries) ValidateRefreshToken(ctx context.Context, tokenHash string, now time.Time) (uint64, error) {
	var (
		userID    uint64
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err := q.db.QueryRowContext(ctx,
		"SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&userID, &expiresAt, &revokedAt)
	if err != nil {
		return 0, mapErr(err, "refresh token")
	}
	if revokedAt.Valid || now.After(expiresAt) {
		return 0, apperr.NotFound("refresh token not found")
	}
	return userID, nil
}

// RevokeRefreshToken marks a token as revoked.
func (q *Queries) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := q.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE token_hash=? AND revoked_at IS NULL",
		tokenHash)
	return mapErr(err, "refresh token")
}

// RevokeUserRefreshTokens revokes all user's active tokens.
func (q *Queries) RevokeUserRefreshTokens(ctx context.Context, userID uint64) error {
	_, err := q.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE user_id=? AND revoked_at IS NULL",
		userID)
	return mapErr(err, "refresh token")
}
