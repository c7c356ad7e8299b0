package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/class-enrollment/internal/apperr"
	"github.com/iliyamo/class-enrollment/internal/model"
)

type paymentDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	ChargeID    string             `bson:"chargeId"`
	Email       string             `bson:"email"`
	Price       float64            `bson:"price"`
	AmountMinor int64              `bson:"amountMinor"`
	Currency    string             `bson:"currency"`
	CartItems   []string           `bson:"cartItems"`
	ClassIDs    []string           `bson:"classItems"`
	ItemNames   []string           `bson:"itemNames"`
	Status      string             `bson:"status"`
	CreatedAt   time.Time          `bson:"createdAt"`
	SettledAt   *time.Time         `bson:"settledAt,omitempty"`
}

func (d paymentDoc) toModel() model.Payment {
	return model.Payment{
		ID:          d.ID.Hex(),
		ChargeID:    d.ChargeID,
		Email:       d.Email,
		Price:       d.Price,
		AmountMinor: d.AmountMinor,
		Currency:    d.Currency,
		CartItems:   d.CartItems,
		ClassIDs:    d.ClassIDs,
		ItemNames:   d.ItemNames,
		Status:      model.PaymentStatus(d.Status),
		CreatedAt:   d.CreatedAt,
		SettledAt:   d.SettledAt,
	}
}

type PaymentStore struct {
	coll *mongo.Collection
}

// Insert stores p.  The unique chargeId index turns a replayed charge into
// already_settled.
func (s *PaymentStore) Insert(ctx context.Context, p model.Payment) (string, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	doc := paymentDoc{
		ID:          primitive.NewObjectID(),
		ChargeID:    p.ChargeID,
		Email:       normalizeEmail(p.Email),
		Price:       p.Price,
		AmountMinor: p.AmountMinor,
		Currency:    p.Currency,
		CartItems:   orEmpty(p.CartItems),
		ClassIDs:    orEmpty(p.ClassIDs),
		ItemNames:   orEmpty(p.ItemNames),
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt.Truncate(time.Millisecond),
		SettledAt:   p.SettledAt,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperr.New(apperr.KindAlreadySettled, "charge already settled")
		}
		return "", classify(err, "")
	}
	return doc.ID.Hex(), nil
}

func (s *PaymentStore) FindByChargeID(ctx context.Context, chargeID string) (model.Payment, error) {
	var doc paymentDoc
	if err := s.coll.FindOne(ctx, bson.M{"chargeId": chargeID}).Decode(&doc); err != nil {
		return model.Payment{}, classify(err, "payment not found")
	}
	return doc.toModel(), nil
}

func (s *PaymentStore) ListByEmail(ctx context.Context, email string) ([]model.Payment, error) {
	return findAll(ctx, s.coll, bson.M{"email": normalizeEmail(email)}, paymentDoc.toModel)
}

func (s *PaymentStore) ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	filter := bson.M{
		"status":    string(model.PaymentRetirementPending),
		"createdAt": bson.M{"$lte": createdBefore},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	return findAll(ctx, s.coll, filter, paymentDoc.toModel, opts)
}

func (s *PaymentStore) MarkSettled(ctx context.Context, id string, at time.Time) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "status": string(model.PaymentRetirementPending)},
		bson.M{"$set": bson.M{"status": string(model.PaymentSettled), "settledAt": at.UTC()}})
	if err != nil {
		return classify(err, "")
	}
	if res.MatchedCount > 0 {
		return nil
	}
	// either already settled (no-op) or missing
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Err()
	return classify(err, "payment not found")
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
