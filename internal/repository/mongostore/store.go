// Package mongostore implements the repository contracts on MongoDB.  Ids
// are ObjectID hex strings; a string that is not valid hex is reported as
// invalid input rather than not found.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/class-enrollment/internal/apperr"
	"github.com/iliyamo/class-enrollment/internal/repository"
)

// Collection names.
const (
	usersCollection    = "users"
	classesCollection  = "classes"
	enrolledCollection = "enrolled"
	paymentsCollection = "payments"
)

// New returns the MongoDB stores backed by db.
func New(db *mongo.Database) repository.Stores {
	return repository.Stores{
		Users:    &UserStore{coll: db.Collection(usersCollection)},
		Classes:  &ClassStore{coll: db.Collection(classesCollection)},
		Cart:     &CartStore{coll: db.Collection(enrolledCollection)},
		Payments: &PaymentStore{coll: db.Collection(paymentsCollection)},
	}
}

// CreateIndexes creates the unique and lookup indexes the stores rely on.
// It is safe to call on every start.
func CreateIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		enrolledCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}},
		},
		paymentsCollection: {
			{Keys: bson.D{{Key: "chargeId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
	}
	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperr.New(apperr.KindInvalidInput, "malformed id")
	}
	return oid, nil
}

func parseIDs(ids []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := parseID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, oid)
	}
	return out, nil
}

func classify(err error, notFound string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.New(apperr.KindNotFound, notFound)
	}
	return apperr.Unavailable("store unavailable", err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// sortByCreated orders list queries oldest first.
var sortByCreated = options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

// findAll decodes every document matching filter into D and converts it.
func findAll[D any, T any](ctx context.Context, coll *mongo.Collection, filter any, conv func(D) T, opts ...*options.FindOptions) ([]T, error) {
	if len(opts) == 0 {
		opts = []*options.FindOptions{sortByCreated}
	}
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, classify(err, "")
	}
	var docs []D
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify(err, "")
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		out = append(out, conv(d))
	}
	return out, nil
}
