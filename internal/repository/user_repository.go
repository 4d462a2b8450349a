package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/ticketon/backend/internal/model"
	"github.com/ticketon/backend/internal/utils"
)

// UserRepo persists application users.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

// ErrReferralCodeExists is returned when a generated referral code
// collides with an existing one.  Codes are random, so callers retry
// with a fresh code.
var ErrReferralCodeExists = errors.New("referral code already exists")

const userColumns = `id, name, email, password_hash, role, referral_code, referred_by_id,
    is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (model.User, error) {
	var u model.User
	var referredBy sql.NullInt64
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.ReferralCode,
		&referredBy, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if referredBy.Valid {
		id := uint64(referredBy.Int64)
		u.ReferredByID = &id
	}
	return u, err
}

// CreateTx inserts a user inside an existing transaction and returns
// the generated ID.  Referral registration needs the user row, the
// referrer's point grant and the welcome coupon in one unit of work,
// which is why creation is transactional.
func (r *UserRepo) CreateTx(ctx context.Context, tx *sql.Tx, name, email, password, role, referralCode string, referredByID *uint64, cost int, now time.Time) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	var referredBy interface{}
	if referredByID != nil {
		referredBy = *referredByID
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, role, referral_code, referred_by_id, is_active, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		name, email, hash, role, referralCode, referredBy, now.UTC(), now.UTC())
	if err != nil {
		if IsDuplicateCode(err) {
			// Two unique columns can trip this.  The driver message
			// names the violated key (uq_users_referral_code on MySQL,
			// users.referral_code on SQLite).
			if strings.Contains(strings.ToLower(err.Error()), "referral_code") {
				return 0, ErrReferralCodeExists
			}
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? LIMIT 1`, email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ? LIMIT 1`, id))
}

// GetByReferralCodeTx resolves a referral code to its owner inside an
// existing transaction.  sql.ErrNoRows means the code is unknown.
func (r *UserRepo) GetByReferralCodeTx(ctx context.Context, tx *sql.Tx, code string) (model.User, error) {
	return scanUser(tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE referral_code = ? LIMIT 1`, code))
}
