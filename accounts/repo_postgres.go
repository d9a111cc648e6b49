package accounts

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	apperrors "github.com/hutechbot/backend/internal/errors"
)

// PostgresRepo is the pgx-backed implementation of Repo.
type PostgresRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresRepo creates a PostgresRepo on an existing pool.
func NewPostgresRepo(pool *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{pool: pool}
}

// InitSchema creates the tables if they do not exist.
func (r *PostgresRepo) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id BIGSERIAL PRIMARY KEY,
			chat_id BIGINT NOT NULL,
			username TEXT NOT NULL,
			password_enc BYTEA NOT NULL,
			device_uuid TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			display_name TEXT NOT NULL DEFAULT '',
			preferred_campus TEXT,
			token TEXT,
			legacy_token TEXT,
			token_expiry TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (chat_id, username)
		)`,
		`CREATE INDEX IF NOT EXISTS accounts_chat_id_idx ON accounts (chat_id)`,
		`CREATE TABLE IF NOT EXISTS policy_consents (
			chat_id BIGINT PRIMARY KEY,
			consented BOOLEAN NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range statements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "[PostgresRepo.InitSchema] exec")
		}
	}
	return nil
}

const accountColumns = `chat_id, username, password_enc, device_uuid, is_active, display_name,
	COALESCE(preferred_campus, ''), COALESCE(token, ''), COALESCE(legacy_token, ''),
	COALESCE(token_expiry, 'epoch'::timestamptz), created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	var expiry time.Time
	err := row.Scan(&a.ChatID, &a.Username, &a.EncryptedPassword, &a.DeviceUUID, &a.Active,
		&a.DisplayName, &a.PreferredCampus, &a.Token, &a.LegacyToken, &expiry, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if expiry.Unix() > 0 {
		a.TokenExpiry = expiry
	}
	return &a, nil
}

func (r *PostgresRepo) Add(ctx context.Context, account *Account) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "[PostgresRepo.Add] begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET is_active = FALSE WHERE chat_id = $1`, account.ChatID); err != nil {
		return errors.Wrap(err, "[PostgresRepo.Add] deactivate")
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO accounts (chat_id, username, password_enc, device_uuid, is_active, display_name,
			token, legacy_token, token_expiry, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, NULLIF($6, ''), NULLIF($7, ''), $8, CURRENT_TIMESTAMP)
		ON CONFLICT (chat_id, username) DO UPDATE SET
			password_enc = EXCLUDED.password_enc,
			device_uuid = EXCLUDED.device_uuid,
			is_active = TRUE,
			display_name = EXCLUDED.display_name,
			token = EXCLUDED.token,
			legacy_token = EXCLUDED.legacy_token,
			token_expiry = EXCLUDED.token_expiry,
			updated_at = CURRENT_TIMESTAMP`,
		account.ChatID, account.Username, account.EncryptedPassword, account.DeviceUUID,
		account.DisplayName, account.Token, account.LegacyToken, nullableTime(account.TokenExpiry))
	if err != nil {
		return errors.Wrap(err, "[PostgresRepo.Add] upsert")
	}

	return errors.Wrap(tx.Commit(ctx), "[PostgresRepo.Add] commit")
}

func (r *PostgresRepo) Get(ctx context.Context, chatID int64, username string) (*Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE chat_id = $1 AND username = $2`,
		chatID, username)
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrAccountNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[PostgresRepo.Get] scan")
	}
	return account, nil
}

func (r *PostgresRepo) GetActive(ctx context.Context, chatID int64) (*Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE chat_id = $1 AND is_active = TRUE LIMIT 1`,
		chatID)
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNoActiveAccount
	}
	if err != nil {
		return nil, errors.Wrap(err, "[PostgresRepo.GetActive] scan")
	}
	return account, nil
}

func (r *PostgresRepo) List(ctx context.Context, chatID int64) ([]*Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE chat_id = $1 ORDER BY is_active DESC, created_at DESC`, chatID)
	if err != nil {
		return nil, errors.Wrap(err, "[PostgresRepo.List] query")
	}
	defer rows.Close()

	var result []*Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, errors.Wrap(err, "[PostgresRepo.List] scan")
		}
		result = append(result, account)
	}
	return result, errors.Wrap(rows.Err(), "[PostgresRepo.List] rows")
}

func (r *PostgresRepo) SetActive(ctx context.Context, chatID int64, username string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "[PostgresRepo.SetActive] begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET is_active = FALSE WHERE chat_id = $1`, chatID); err != nil {
		return errors.Wrap(err, "[PostgresRepo.SetActive] deactivate")
	}
	tag, err := tx.Exec(ctx,
		`UPDATE accounts SET is_active = TRUE, updated_at = CURRENT_TIMESTAMP
		 WHERE chat_id = $1 AND username = $2`, chatID, username)
	if err != nil {
		return errors.Wrap(err, "[PostgresRepo.SetActive] activate")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrAccountNotFound
	}
	return errors.Wrap(tx.Commit(ctx), "[PostgresRepo.SetActive] commit")
}

func (r *PostgresRepo) Remove(ctx context.Context, chatID int64, username string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM accounts WHERE chat_id = $1 AND username = $2`, chatID, username)
	return errors.Wrap(err, "[PostgresRepo.Remove] exec")
}

func (r *PostgresRepo) RemoveAll(ctx context.Context, chatID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE chat_id = $1`, chatID)
	return errors.Wrap(err, "[PostgresRepo.RemoveAll] exec")
}

func (r *PostgresRepo) UpdateTokens(ctx context.Context, chatID int64, username, token, legacyToken string, expiry time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts SET token = NULLIF($3, ''), legacy_token = NULLIF($4, ''),
			token_expiry = $5, updated_at = CURRENT_TIMESTAMP
		WHERE chat_id = $1 AND username = $2`,
		chatID, username, token, legacyToken, nullableTime(expiry))
	if err != nil {
		return errors.Wrap(err, "[PostgresRepo.UpdateTokens] exec")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrAccountNotFound
	}
	return nil
}

func (r *PostgresRepo) GetPreferredCampus(ctx context.Context, chatID int64) (string, error) {
	var campus string
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(preferred_campus, '') FROM accounts
		 WHERE chat_id = $1 AND preferred_campus IS NOT NULL LIMIT 1`, chatID).Scan(&campus)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "[PostgresRepo.GetPreferredCampus] scan")
	}
	return campus, nil
}

func (r *PostgresRepo) SetPreferredCampus(ctx context.Context, chatID int64, campus string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE accounts SET preferred_campus = NULLIF($1, '') WHERE chat_id = $2`, campus, chatID)
	return errors.Wrap(err, "[PostgresRepo.SetPreferredCampus] exec")
}

func (r *PostgresRepo) ClearPreferredCampus(ctx context.Context, chatID int64) error {
	return r.SetPreferredCampus(ctx, chatID, "")
}

func (r *PostgresRepo) HasConsented(ctx context.Context, chatID int64) (bool, error) {
	var consented bool
	err := r.pool.QueryRow(ctx,
		`SELECT consented FROM policy_consents WHERE chat_id = $1`, chatID).Scan(&consented)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "[PostgresRepo.HasConsented] scan")
	}
	return consented, nil
}

func (r *PostgresRepo) SetConsent(ctx context.Context, chatID int64, consented bool) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO policy_consents (chat_id, consented, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (chat_id) DO UPDATE SET
			consented = EXCLUDED.consented,
			updated_at = CURRENT_TIMESTAMP`, chatID, consented)
	return errors.Wrap(err, "[PostgresRepo.SetConsent] exec")
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

var _ Repo = (*PostgresRepo)(nil)
