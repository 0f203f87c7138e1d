package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/agroisync/gateway/internal/devauth/domain"
)

type accountsRepo struct {
	db *sql.DB
}

const accountColumns = `id, name, email, password_hash, role, is_admin, is_paid,
	plan_active, email_verified, totp_secret, failed_logins, locked_until,
	created_at, updated_at`

func scanAccount(row *sql.Row) (domain.Account, error) {
	var (
		a           domain.Account
		totpSecret  sql.NullString
		lockedUntil sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.IsAdmin,
		&a.IsPaid, &a.PlanActive, &a.EmailVerified, &totpSecret,
		&a.FailedLogins, &lockedUntil, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	a.TOTPSecret = mapNullString(totpSecret)
	a.LockedUntil = mapNullTime(lockedUntil)
	return a, nil
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, lower(?), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Email, a.PasswordHash, a.Role, a.IsAdmin, a.IsPaid,
		a.PlanActive, a.EmailVerified, mapOptionalString(a.TOTPSecret),
		a.FailedLogins, mapOptionalTime(a.LockedUntil), a.CreatedAt, a.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

func (r *accountsRepo) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = lower(?)`, email)
	return scanAccount(row)
}

func (r *accountsRepo) UpdateProfile(ctx context.Context, id, name, email string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET name = ?, email = lower(?), updated_at = ?
		WHERE id = ?`,
		name, email, time.Now().UTC(), id)
	if err != nil {
		return mapConstraint(err)
	}
	return requireRow(res)
}

func (r *accountsRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) MarkEmailVerified(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET email_verified = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) RecordLoginFailure(ctx context.Context, id string, failures int, lockedUntil *time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET failed_logins = ?, locked_until = ?, updated_at = ?
		WHERE id = ?`,
		failures, mapOptionalTime(lockedUntil), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) ResetLoginFailures(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET failed_logins = 0, locked_until = NULL, updated_at = ?
		WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// requireRow maps a zero-row update to store.ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}
