package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/agroisync/gateway/internal/devauth/domain"
)

type actionTokensRepo struct {
	db *sql.DB
}

func (r *actionTokensRepo) CreateActionToken(ctx context.Context, t domain.ActionToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO action_tokens (fingerprint, account_id, kind, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.Fingerprint, t.AccountID, t.Kind, t.ExpiresAt, t.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *actionTokensRepo) ConsumeActionToken(ctx context.Context, fingerprint string, kind domain.ActionTokenKind) (domain.ActionToken, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ActionToken{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var t domain.ActionToken
	err = tx.QueryRowContext(ctx, `
		SELECT fingerprint, account_id, kind, expires_at, created_at
		FROM action_tokens WHERE fingerprint = ? AND kind = ?`,
		fingerprint, kind).
		Scan(&t.Fingerprint, &t.AccountID, &t.Kind, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return domain.ActionToken{}, mapNotFound(err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM action_tokens WHERE fingerprint = ?`, fingerprint); err != nil {
		return domain.ActionToken{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.ActionToken{}, err
	}
	return t, nil
}

func (r *actionTokensRepo) DeleteExpiredActionTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM action_tokens WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
