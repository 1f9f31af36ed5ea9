package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/inkmarket-service/internal/domain"
)

// UserRepository defines persistence access for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByPublicID(ctx context.Context, publicID uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetBySecretHash(ctx context.Context, purpose domain.TokenPurpose, hash string) (*domain.User, error)
	List(ctx context.Context, limit, offset int) ([]*domain.User, error)

	UpdateProfile(ctx context.Context, user *domain.User) error
	UpdatePassword(ctx context.Context, id int64, hash string, changedAt time.Time) error
	UpdateEmail(ctx context.Context, id int64, email string) error
	SetActive(ctx context.Context, id int64, active bool) error

	// SetSecretToken overwrites the outstanding token for purpose.
	// pendingEmail is only stored for email changes.
	SetSecretToken(ctx context.Context, id int64, purpose domain.TokenPurpose, token *domain.SecretToken, pendingEmail string) error
	// ConsumeSecretToken clears the token only if it still matches hash and
	// reports whether it did.
	ConsumeSecretToken(ctx context.Context, id int64, purpose domain.TokenPurpose, hash string) (bool, error)
	ClearSecretToken(ctx context.Context, id int64, purpose domain.TokenPurpose) error

	Delete(ctx context.Context, id int64) error
}

type tokenColumns struct {
	hash    string
	expires string
}

var purposeColumns = map[domain.TokenPurpose]tokenColumns{
	domain.PurposePasswordReset: {"password_reset_token", "password_reset_expires"},
	domain.PurposeEmailChange:   {"email_change_token", "email_change_expires"},
	domain.PurposeReactivation:  {"reactivate_account_token", "reactivate_account_expires"},
}

func columnsFor(purpose domain.TokenPurpose) (tokenColumns, error) {
	cols, ok := purposeColumns[purpose]
	if !ok {
		return tokenColumns{}, fmt.Errorf("unknown token purpose %q", purpose)
	}
	return cols, nil
}

const userColumns = `
        id, public_id, email, display_name, first_name, last_name, role,
        is_active, verified_email, password_hash, password_changed_at,
        password_reset_token, password_reset_expires,
        email_change_token, email_change_expires, pending_email,
        reactivate_account_token, reactivate_account_expires,
        created_at, updated_at`

type userRepository struct {
	db DBTX
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (public_id, email, display_name, first_name, last_name, role,
                           is_active, verified_email, password_hash, password_changed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id, created_at, updated_at`

	if user.PublicID == uuid.Nil {
		user.PublicID = uuid.New()
	}
	err := r.db.QueryRow(ctx, query,
		user.PublicID,
		user.Email,
		user.DisplayName,
		user.FirstName,
		user.LastName,
		user.Role,
		user.IsActive,
		user.VerifiedEmail,
		user.PasswordHash,
		user.PasswordChangedAt,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	return translate(err)
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, `SELECT`+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *userRepository) GetByPublicID(ctx context.Context, publicID uuid.UUID) (*domain.User, error) {
	return r.getOne(ctx, `SELECT`+userColumns+` FROM users WHERE public_id=$1`, publicID)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT`+userColumns+` FROM users WHERE email=$1`, email)
}

func (r *userRepository) GetBySecretHash(ctx context.Context, purpose domain.TokenPurpose, hash string) (*domain.User, error) {
	cols, err := columnsFor(purpose)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT%s FROM users WHERE %s=$1`, userColumns, cols.hash)
	return r.getOne(ctx, query, hash)
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.Query(ctx, `SELECT`+userColumns+` FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *userRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET first_name=$1, last_name=$2, display_name=$3, updated_at=NOW()
        WHERE id=$4
        RETURNING updated_at`

	err := r.db.QueryRow(ctx, query, user.FirstName, user.LastName, user.DisplayName, user.ID).Scan(&user.UpdatedAt)
	return translate(err)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id int64, hash string, changedAt time.Time) error {
	const query = `
        UPDATE users SET password_hash=$1, password_changed_at=$2,
               password_reset_token=NULL, password_reset_expires=NULL, updated_at=NOW()
        WHERE id=$3`
	return r.exec(ctx, query, hash, changedAt, id)
}

func (r *userRepository) UpdateEmail(ctx context.Context, id int64, email string) error {
	const query = `UPDATE users SET email=$1, updated_at=NOW() WHERE id=$2`
	return r.exec(ctx, query, email, id)
}

func (r *userRepository) SetActive(ctx context.Context, id int64, active bool) error {
	const query = `UPDATE users SET is_active=$1, updated_at=NOW() WHERE id=$2`
	return r.exec(ctx, query, active, id)
}

func (r *userRepository) SetSecretToken(ctx context.Context, id int64, purpose domain.TokenPurpose, token *domain.SecretToken, pendingEmail string) error {
	cols, err := columnsFor(purpose)
	if err != nil {
		return err
	}
	if token == nil {
		return r.ClearSecretToken(ctx, id, purpose)
	}
	if purpose == domain.PurposeEmailChange {
		query := fmt.Sprintf(`UPDATE users SET %s=$1, %s=$2, pending_email=$3, updated_at=NOW() WHERE id=$4`, cols.hash, cols.expires)
		return r.exec(ctx, query, token.Hash, token.ExpiresAt, pendingEmail, id)
	}
	query := fmt.Sprintf(`UPDATE users SET %s=$1, %s=$2, updated_at=NOW() WHERE id=$3`, cols.hash, cols.expires)
	return r.exec(ctx, query, token.Hash, token.ExpiresAt, id)
}

func (r *userRepository) ConsumeSecretToken(ctx context.Context, id int64, purpose domain.TokenPurpose, hash string) (bool, error) {
	cols, err := columnsFor(purpose)
	if err != nil {
		return false, err
	}
	cmd, err := r.db.Exec(ctx, consumeQuery(cols, purpose), id, hash)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *userRepository) ClearSecretToken(ctx context.Context, id int64, purpose domain.TokenPurpose) error {
	cols, err := columnsFor(purpose)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE users SET %s=NULL, %s=NULL%s, updated_at=NOW() WHERE id=$1`,
		cols.hash, cols.expires, pendingClause(purpose))
	return r.exec(ctx, query, id)
}

// Delete removes the account; dependent rows go with it through ON DELETE CASCADE.
func (r *userRepository) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, `DELETE FROM users WHERE id=$1`, id)
}

// consumeQuery clears a token only while it matches and is unexpired, so two
// redemptions of the same link cannot both succeed.
func consumeQuery(cols tokenColumns, purpose domain.TokenPurpose) string {
	return fmt.Sprintf(`UPDATE users SET %s=NULL, %s=NULL%s, updated_at=NOW() WHERE id=$1 AND %s=$2 AND %s > NOW()`,
		cols.hash, cols.expires, pendingClause(purpose), cols.hash, cols.expires)
}

func pendingClause(purpose domain.TokenPurpose) string {
	if purpose == domain.PurposeEmailChange {
		return ", pending_email=NULL"
	}
	return ""
}

func (r *userRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) getOne(ctx context.Context, query string, args ...any) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, query, args...))
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user          domain.User
		role          string
		resetHash     *string
		resetExpires  *time.Time
		changeHash    *string
		changeExpires *time.Time
		pendingEmail  *string
		reactHash     *string
		reactExpires  *time.Time
	)
	if err := row.Scan(
		&user.ID,
		&user.PublicID,
		&user.Email,
		&user.DisplayName,
		&user.FirstName,
		&user.LastName,
		&role,
		&user.IsActive,
		&user.VerifiedEmail,
		&user.PasswordHash,
		&user.PasswordChangedAt,
		&resetHash,
		&resetExpires,
		&changeHash,
		&changeExpires,
		&pendingEmail,
		&reactHash,
		&reactExpires,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.Role = domain.Role(role)
	user.PasswordReset = secretToken(resetHash, resetExpires)
	user.EmailChange = secretToken(changeHash, changeExpires)
	user.Reactivation = secretToken(reactHash, reactExpires)
	if pendingEmail != nil {
		user.PendingEmail = *pendingEmail
	}
	return &user, nil
}

func secretToken(hash *string, expires *time.Time) *domain.SecretToken {
	if hash == nil || expires == nil {
		return nil
	}
	return &domain.SecretToken{Hash: *hash, ExpiresAt: *expires}
}
