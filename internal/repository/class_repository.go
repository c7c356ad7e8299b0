package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/class-enrollment/internal/apperr"
	"github.com/iliyamo/class-enrollment/internal/model"
)

// ClassRepo provides access to the classes table.  Seat counters are only
// changed through conditional UPDATE statements so concurrent enrollments
// cannot drive available_seats below zero.
type ClassRepo struct {
	db *sql.DB
}

// NewClassRepo returns a new ClassRepo bound to the given database.
func NewClassRepo(db *sql.DB) *ClassRepo { return &ClassRepo{db: db} }

const classColumns = "id,name,image,instructor_name,instructor_email,price,available_seats,enroll,status,feedback,created_at"

// Create inserts a class and returns its generated id.
func (r *ClassRepo) Create(ctx context.Context, c model.Class) (string, error) {
	if c.AvailableSeats < 0 || c.Enroll < 0 {
		return "", apperr.New(apperr.KindInvalidInput, "seat counts must not be negative")
	}
	c.ID = uuid.NewString()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Status == "" {
		c.Status = model.ClassPending
	}
	var feedback sql.NullString
	if c.Feedback != "" {
		feedback = sql.NullString{String: c.Feedback, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO classes ("+classColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?)",
		c.ID, c.Name, c.Image, c.InstructorName, normalizeEmail(c.InstructorEmail), c.Price,
		c.AvailableSeats, c.Enroll, string(c.Status), feedback, c.CreatedAt)
	if err != nil {
		return "", classify(err, "")
	}
	return c.ID, nil
}

// List returns every class, oldest first.
func (r *ClassRepo) List(ctx context.Context) ([]model.Class, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+classColumns+" FROM classes ORDER BY created_at, id")
	if err != nil {
		return nil, classify(err, "")
	}
	defer rows.Close()
	out := make([]model.Class, 0)
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, classify(err, "")
		}
		out = append(out, c)
	}
	return out, classify(rows.Err(), "")
}

// Get fetches one class by id.
func (r *ClassRepo) Get(ctx context.Context, id string) (model.Class, error) {
	if err := checkUUID(id); err != nil {
		return model.Class{}, err
	}
	c, err := scanClass(r.db.QueryRowContext(ctx, "SELECT "+classColumns+" FROM classes WHERE id=?", id))
	if err != nil {
		return model.Class{}, classify(err, "class not found")
	}
	return c, nil
}

// Approve sets status to approved.
func (r *ClassRepo) Approve(ctx context.Context, id string) error {
	if err := checkUUID(id); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, "UPDATE classes SET status=? WHERE id=?", string(model.ClassApproved), id)
	if err != nil {
		return classify(err, "")
	}
	if n, err := res.RowsAffected(); err != nil {
		return classify(err, "")
	} else if n == 0 {
		return apperr.New(apperr.KindNotFound, "class not found")
	}
	return nil
}

// AdjustSeats applies both deltas in a single conditional UPDATE.  When no
// row matches, a follow-up existence check tells not_found apart from
// seats_exhausted.
func (r *ClassRepo) AdjustSeats(ctx context.Context, id string, seatDelta, enrollDelta int) error {
	if err := checkUUID(id); err != nil {
		return err
	}
	const q = `UPDATE classes
SET available_seats = available_seats + ?, enroll = enroll + ?
WHERE id = ? AND available_seats + ? >= 0 AND enroll + ? >= 0`
	res, err := r.db.ExecContext(ctx, q, seatDelta, enrollDelta, id, seatDelta, enrollDelta)
	if err != nil {
		return classify(err, "")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err, "")
	}
	if n > 0 {
		return nil
	}
	var one int
	err = r.db.QueryRowContext(ctx, "SELECT 1 FROM classes WHERE id=?", id).Scan(&one)
	if err != nil {
		return classify(err, "class not found")
	}
	return apperr.New(apperr.KindSeatsExhausted, "no seats available")
}

// SetSeats overwrites both counters, inserting a bare pending row when the
// class does not exist.
func (r *ClassRepo) SetSeats(ctx context.Context, id string, availableSeats, enroll int) error {
	if availableSeats < 0 || enroll < 0 {
		return apperr.New(apperr.KindInvalidInput, "seat counts must not be negative")
	}
	if err := checkUUID(id); err != nil {
		return err
	}
	const q = `INSERT INTO classes (id, available_seats, enroll, status, created_at)
VALUES (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE available_seats = VALUES(available_seats), enroll = VALUES(enroll)`
	_, err := r.db.ExecContext(ctx, q, id, availableSeats, enroll, string(model.ClassPending), time.Now().UTC())
	return classify(err, "")
}

func scanClass(s rowScanner) (model.Class, error) {
	var c model.Class
	var status string
	var feedback sql.NullString
	err := s.Scan(&c.ID, &c.Name, &c.Image, &c.InstructorName, &c.InstructorEmail, &c.Price,
		&c.AvailableSeats, &c.Enroll, &status, &feedback, &c.CreatedAt)
	c.Status = model.ClassStatus(status)
	c.Feedback = feedback.String
	return c, err
}
