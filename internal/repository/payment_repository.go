package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/class-enrollment/internal/apperr"
	"github.com/iliyamo/class-enrollment/internal/model"
)

// PaymentRepo stores payment records.  The item lists are kept as JSON
// arrays; a record's content is never rewritten after insert, only its
// status and settled_at.
type PaymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = "id,charge_id,email,price,amount_minor,currency,cart_items,class_ids,item_names,status,created_at,settled_at"

// Insert stores p.  A duplicate charge id is reported as already settled.
func (r *PaymentRepo) Insert(ctx context.Context, p model.Payment) (string, error) {
	return insertPayment(ctx, r.db, p)
}

func insertPayment(ctx context.Context, ex execer, p model.Payment) (string, error) {
	p.ID = uuid.NewString()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	cart, classes, names, err := marshalItems(p)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "encode payment", err)
	}
	_, err = ex.ExecContext(ctx,
		"INSERT INTO payments ("+paymentColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?,?)",
		p.ID, p.ChargeID, normalizeEmail(p.Email), p.Price, p.AmountMinor, p.Currency,
		cart, classes, names, string(p.Status), p.CreatedAt, p.SettledAt)
	if err != nil {
		if isDuplicate(err) {
			return "", apperr.New(apperr.KindAlreadySettled, "charge already settled")
		}
		return "", classify(err, "")
	}
	return p.ID, nil
}

func (r *PaymentRepo) FindByChargeID(ctx context.Context, chargeID string) (model.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE charge_id=? LIMIT 1", chargeID))
	if err != nil {
		return model.Payment{}, classify(err, "payment not found")
	}
	return p, nil
}

func (r *PaymentRepo) ListByEmail(ctx context.Context, email string) ([]model.Payment, error) {
	return r.query(ctx, "SELECT "+paymentColumns+" FROM payments WHERE email=? ORDER BY created_at, id",
		normalizeEmail(email))
}

func (r *PaymentRepo) ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.query(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE status=? AND created_at<=? ORDER BY created_at, id LIMIT ?",
		string(model.PaymentRetirementPending), createdBefore.UTC(), limit)
}

func (r *PaymentRepo) query(ctx context.Context, q string, args ...any) ([]model.Payment, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err, "")
	}
	defer rows.Close()
	out := make([]model.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, classify(err, "")
		}
		out = append(out, p)
	}
	return out, classify(rows.Err(), "")
}

// MarkSettled advances a pending payment.  Settled payments are untouched.
func (r *PaymentRepo) MarkSettled(ctx context.Context, id string, at time.Time) error {
	return markSettled(ctx, r.db, id, at)
}

func markSettled(ctx context.Context, ex execer, id string, at time.Time) error {
	if err := checkUUID(id); err != nil {
		return err
	}
	res, err := ex.ExecContext(ctx,
		"UPDATE payments SET status=?, settled_at=? WHERE id=? AND status=?",
		string(model.PaymentSettled), at.UTC(), id, string(model.PaymentRetirementPending))
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
	err = ex.QueryRowContext(ctx, "SELECT 1 FROM payments WHERE id=?", id).Scan(&one)
	return classify(err, "payment not found")
}

// SettleAtomic records p and deletes the paid cart items in one transaction.
// A duplicate charge id rolls everything back.
func (r *PaymentRepo) SettleAtomic(ctx context.Context, p model.Payment, cartItemIDs []string) (string, int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, classify(err, "")
	}
	defer func() { _ = tx.Rollback() }()

	p.Status = model.PaymentRetirementPending
	p.SettledAt = nil
	id, err := insertPayment(ctx, tx, p)
	if err != nil {
		return "", 0, err
	}
	removed, err := removeEnrolled(ctx, tx, p.Email, cartItemIDs)
	if err != nil {
		return "", 0, err
	}
	if removed == int64(len(cartItemIDs)) {
		if err := markSettled(ctx, tx, id, time.Now().UTC()); err != nil {
			return "", 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", 0, classify(err, "")
	}
	return id, removed, nil
}

func marshalItems(p model.Payment) (cart, classes, names []byte, err error) {
	if cart, err = json.Marshal(nonNil(p.CartItems)); err != nil {
		return
	}
	if classes, err = json.Marshal(nonNil(p.ClassIDs)); err != nil {
		return
	}
	names, err = json.Marshal(nonNil(p.ItemNames))
	return
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func scanPayment(s rowScanner) (model.Payment, error) {
	var (
		p                    model.Payment
		status               string
		cart, classes, names []byte
		settled              sql.NullTime
	)
	err := s.Scan(&p.ID, &p.ChargeID, &p.Email, &p.Price, &p.AmountMinor, &p.Currency,
		&cart, &classes, &names, &status, &p.CreatedAt, &settled)
	if err != nil {
		return model.Payment{}, err
	}
	p.Status = model.PaymentStatus(status)
	if settled.Valid {
		t := settled.Time
		p.SettledAt = &t
	}
	for _, f := range []struct {
		raw []byte
		dst *[]string
	}{{cart, &p.CartItems}, {classes, &p.ClassIDs}, {names, &p.ItemNames}} {
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return model.Payment{}, err
		}
	}
	return p, nil
}
