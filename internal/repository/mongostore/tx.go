package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/repository"
)

// NewWithTransactions is New with a payment store that settles inside a
// multi-document transaction.  The server must be a replica set member or a
// mongos; see SupportsTransactions.
func NewWithTransactions(db *mongo.Database) repository.Stores {
	stores := New(db)
	stores.Payments = &TxPaymentStore{
		PaymentStore: stores.Payments.(*PaymentStore),
		client:       db.Client(),
		cart:         db.Collection(enrolledCollection),
	}
	return stores
}

// SupportsTransactions reports whether the server behind db can run
// multi-document transactions.  Standalone servers cannot.
func SupportsTransactions(ctx context.Context, db *mongo.Database) (bool, error) {
	var hello struct {
		SetName string `bson:"setName"`
		Msg     string `bson:"msg"`
	}
	if err := db.RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
		return false, classify(err, "")
	}
	return hello.SetName != "" || hello.Msg == "isdbgrid", nil
}

// TxPaymentStore is a PaymentStore that also implements
// repository.AtomicSettler.
type TxPaymentStore struct {
	*PaymentStore
	client *mongo.Client
	cart   *mongo.Collection
}

type settleOutcome struct {
	id      string
	removed int64
}

// SettleAtomic inserts p, deletes the payer's listed cart items and, when
// every id was removed, marks p settled, all in one transaction.  A
// duplicate charge id aborts the transaction with already_settled.
func (s *TxPaymentStore) SettleAtomic(ctx context.Context, p model.Payment, cartItemIDs []string) (string, int64, error) {
	oids, err := parseIDs(cartItemIDs)
	if err != nil {
		return "", 0, err
	}
	sess, err := s.client.StartSession()
	if err != nil {
		return "", 0, classify(err, "")
	}
	defer sess.EndSession(ctx)

	p.Status = model.PaymentRetirementPending
	p.SettledAt = nil
	v, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		id, err := s.PaymentStore.Insert(sc, p)
		if err != nil {
			return nil, err
		}
		res, err := s.cart.DeleteMany(sc, bson.M{"_id": bson.M{"$in": oids}, "email": normalizeEmail(p.Email)})
		if err != nil {
			return nil, classify(err, "")
		}
		if res.DeletedCount == int64(len(oids)) {
			if err := s.PaymentStore.MarkSettled(sc, id, time.Now().UTC()); err != nil {
				return nil, err
			}
		}
		return settleOutcome{id: id, removed: res.DeletedCount}, nil
	})
	if err != nil {
		return "", 0, err
	}
	out := v.(settleOutcome)
	return out.id, out.removed, nil
}
