package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/agroisync/gateway/internal/devauth/domain"
)

type challengesRepo struct {
	db *sql.DB
}

func (r *challengesRepo) CreateChallenge(ctx context.Context, c domain.Challenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO otp_challenges (id, account_id, token_fingerprint, attempts, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.AccountID, c.TokenFingerprint, c.Attempts, c.ExpiresAt, c.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *challengesRepo) GetChallengeByAccount(ctx context.Context, accountID string) (domain.Challenge, error) {
	var c domain.Challenge
	err := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, token_fingerprint, attempts, expires_at, created_at
		FROM otp_challenges WHERE account_id = ?
		ORDER BY created_at DESC LIMIT 1`, accountID).
		Scan(&c.ID, &c.AccountID, &c.TokenFingerprint, &c.Attempts, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		return domain.Challenge{}, mapNotFound(err)
	}
	return c, nil
}

func (r *challengesRepo) BumpAttempts(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE otp_challenges SET attempts = attempts + 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *challengesRepo) DeleteChallenge(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE id = ?`, id)
	return err
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM otp_challenges WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
