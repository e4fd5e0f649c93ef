package repo

import (
	"context"
	"fmt"

	"github.com/Skryldev/pereval/db"
	"github.com/Skryldev/pereval/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// UserRepository interface — for mocking in tests
// ─────────────────────────────────────────────────────────────────────────────

// UserRepository defines persistence of pass submitters.
type UserRepository interface {
	Upsert(ctx context.Context, params models.UpsertUserParams) (int64, error)
	IDByEmail(ctx context.Context, email string) (int64, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Count(ctx context.Context) (int64, error)
}

// userRepo is the production implementation backed by a db.Querier.
type userRepo struct {
	q db.Querier
}

// NewUserRepo returns a UserRepository backed by q.
// q can be a *db.DB, *db.Conn or *db.Tx.
func NewUserRepo(q db.Querier) UserRepository {
	return &userRepo{q: q}
}

// ─────────────────────────────────────────────────────────────────────────────
// SQL constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	// The conflict target makes the upsert atomic in the store: two
	// concurrent submissions for one e-mail end up on the same row.
	sqlUpsertUser = `
		INSERT INTO users (email, fam, name, otc, phone)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET
			fam   = EXCLUDED.fam,
			name  = EXCLUDED.name,
			otc   = EXCLUDED.otc,
			phone = EXCLUDED.phone
		RETURNING id`

	sqlUserIDByEmail = `
		SELECT id
		FROM   users
		WHERE  email = $1`

	sqlGetUserByEmail = `
		SELECT email, fam, name, otc, phone
		FROM   users
		WHERE  email = $1`

	sqlCountUsers = `
		SELECT COUNT(*) FROM users`
)

// Upsert inserts the submitter or, when the e-mail is already known,
// overwrites fam, name, otc and phone in place. It returns the user id.
func (r *userRepo) Upsert(ctx context.Context, p models.UpsertUserParams) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, sqlUpsertUser, p.Email, p.Fam, p.Name, p.Otc, p.Phone).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("repo/user: upsert: %w", err)
	}
	return id, nil
}

// IDByEmail returns the id of the user with the given e-mail.
// Returns db.ErrNotFound when no record matches.
func (r *userRepo) IDByEmail(ctx context.Context, email string) (int64, error) {
	var id int64
	if err := r.q.QueryRow(ctx, sqlUserIDByEmail, email).Scan(&id); err != nil {
		return 0, fmt.Errorf("repo/user: %w", err)
	}
	return id, nil
}

// GetByEmail returns the stored contact details for e-mail.
// Returns db.ErrNotFound when no record matches.
func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u := &models.User{}
	err := r.q.QueryRow(ctx, sqlGetUserByEmail, email).Scan(&u.Email, &u.Fam, &u.Name, &u.Otc, &u.Phone)
	if err != nil {
		return nil, fmt.Errorf("repo/user: %w", err)
	}
	return u, nil
}

// Count returns the total number of users.
func (r *userRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRow(ctx, sqlCountUsers).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

var _ UserRepository = (*userRepo)(nil)
