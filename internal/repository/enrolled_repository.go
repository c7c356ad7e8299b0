package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/class-enrollment/internal/apperr"
	"github.com/iliyamo/class-enrollment/internal/model"
)

// EnrolledRepo stores cart line items in the enrolled table.
type EnrolledRepo struct {
	db *sql.DB
}

func NewEnrolledRepo(db *sql.DB) *EnrolledRepo { return &EnrolledRepo{db: db} }

const enrolledColumns = "id,class_id,email,name,image,instructor_name,price,created_at"

func (r *EnrolledRepo) Add(ctx context.Context, e model.Enrollment) (string, error) {
	e.ID = uuid.NewString()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO enrolled ("+enrolledColumns+") VALUES (?,?,?,?,?,?,?,?)",
		e.ID, e.ClassID, normalizeEmail(e.Email), e.Name, e.Image, e.InstructorName, e.Price, e.CreatedAt)
	if err != nil {
		return "", classify(err, "")
	}
	return e.ID, nil
}

func (r *EnrolledRepo) List(ctx context.Context) ([]model.Enrollment, error) {
	return r.query(ctx, "SELECT "+enrolledColumns+" FROM enrolled ORDER BY created_at, id")
}

func (r *EnrolledRepo) ListByEmail(ctx context.Context, email string) ([]model.Enrollment, error) {
	return r.query(ctx, "SELECT "+enrolledColumns+" FROM enrolled WHERE email=? ORDER BY created_at, id",
		normalizeEmail(email))
}

func (r *EnrolledRepo) query(ctx context.Context, q string, args ...any) ([]model.Enrollment, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err, "")
	}
	defer rows.Close()
	out := make([]model.Enrollment, 0)
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, classify(err, "")
		}
		out = append(out, e)
	}
	return out, classify(rows.Err(), "")
}

func (r *EnrolledRepo) Get(ctx context.Context, id string) (model.Enrollment, error) {
	if err := checkUUID(id); err != nil {
		return model.Enrollment{}, err
	}
	e, err := scanEnrollment(r.db.QueryRowContext(ctx, "SELECT "+enrolledColumns+" FROM enrolled WHERE id=?", id))
	if err != nil {
		return model.Enrollment{}, classify(err, "enrollment not found")
	}
	return e, nil
}

func (r *EnrolledRepo) RemoveOne(ctx context.Context, id string) error {
	if err := checkUUID(id); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM enrolled WHERE id=?", id)
	if err != nil {
		return classify(err, "")
	}
	if n, err := res.RowsAffected(); err != nil {
		return classify(err, "")
	} else if n == 0 {
		return apperr.New(apperr.KindNotFound, "enrollment not found")
	}
	return nil
}

func (r *EnrolledRepo) RemoveMany(ctx context.Context, email string, ids []string) (int64, error) {
	return removeEnrolled(ctx, r.db, email, ids)
}

// removeEnrolled deletes the listed line items of email with one IN
// statement.
func removeEnrolled(ctx context.Context, ex execer, email string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	for _, id := range ids {
		if err := checkUUID(id); err != nil {
			return 0, err
		}
	}
	marks, args := placeholders(ids)
	args = append(args, normalizeEmail(email))
	res, err := ex.ExecContext(ctx, "DELETE FROM enrolled WHERE id IN ("+marks+") AND email = ?", args...)
	if err != nil {
		return 0, classify(err, "")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify(err, "")
	}
	return n, nil
}

func scanEnrollment(s rowScanner) (model.Enrollment, error) {
	var e model.Enrollment
	err := s.Scan(&e.ID, &e.ClassID, &e.Email, &e.Name, &e.Image, &e.InstructorName, &e.Price, &e.CreatedAt)
	return e, err
}

// ValidID reports whether id has the UUID form used for line items.
func (r *EnrolledRepo) ValidID(id string) bool { return checkUUID(id) == nil }
