package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/class-enrollment/internal/apperr"
	"github.com/iliyamo/class-enrollment/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,name,photo_url,role,created_at"

// RegisterIfAbsent inserts u and falls back to the stored row when the email
// is already taken.
func (r *UserRepo) RegisterIfAbsent(ctx context.Context, u model.User) (model.User, bool, error) {
	u.Email = normalizeEmail(u.Email)
	if u.Email == "" {
		return model.User{}, false, apperr.New(apperr.KindInvalidInput, "email is required")
	}
	u.ID = uuid.NewString()
	u.Role = model.RoleNone
	u.CreatedAt = time.Now().UTC()
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?,?,?,?,?,?)",
		u.ID, u.Email, u.Name, u.PhotoURL, string(u.Role), u.CreatedAt)
	if err == nil {
		return u, true, nil
	}
	if !isDuplicate(err) {
		return model.User{}, false, classify(err, "")
	}
	existing, err := r.FindByEmail(ctx, u.Email)
	if err != nil {
		return model.User{}, false, err
	}
	return existing, false, nil
}

// List returns all users in registration order.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at, id")
	if err != nil {
		return nil, classify(err, "")
	}
	defer rows.Close()
	out := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, classify(err, "")
		}
		out = append(out, u)
	}
	return out, classify(rows.Err(), "")
}

// FindByEmail fetches a user by normalized email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", normalizeEmail(email)))
	if err != nil {
		return model.User{}, classify(err, "user not found")
	}
	return u, nil
}

// Promote sets the role of user id.
func (r *UserRepo) Promote(ctx context.Context, id string, role model.Role) error {
	if !role.Promotable() {
		return apperr.New(apperr.KindInvalidInput, "unknown role")
	}
	if err := checkUUID(id); err != nil {
		return err
	}
	// clientFoundRows: a matched row counts even when the role is unchanged
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET role=? WHERE id=?", string(role), id)
	if err != nil {
		return classify(err, "")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err, "")
	}
	if n == 0 {
		return apperr.New(apperr.KindNotFound, "user not found")
	}
	return nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanUser(s rowScanner) (model.User, error) {
	var u model.User
	var role string
	err := s.Scan(&u.ID, &u.Email, &u.Name, &u.PhotoURL, &role, &u.CreatedAt)
	u.Role = model.Role(role)
	return u, err
}
