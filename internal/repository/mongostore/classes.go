package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/class-enrollment/internal/apperr"
	"github.com/iliyamo/class-enrollment/internal/model"
)

type classDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Name            string             `bson:"name"`
	Image           string             `bson:"image"`
	InstructorName  string             `bson:"instructorName"`
	InstructorEmail string             `bson:"instructorEmail"`
	Price           float64            `bson:"price"`
	AvailableSeats  int                `bson:"availableSeats"`
	Enroll          int                `bson:"enroll"`
	Status          string             `bson:"status"`
	Feedback        string             `bson:"feedback,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt"`
}

func (d classDoc) toModel() model.Class {
	return model.Class{
		ID:              d.ID.Hex(),
		Name:            d.Name,
		Image:           d.Image,
		InstructorName:  d.InstructorName,
		InstructorEmail: d.InstructorEmail,
		Price:           d.Price,
		AvailableSeats:  d.AvailableSeats,
		Enroll:          d.Enroll,
		Status:          model.ClassStatus(d.Status),
		Feedback:        d.Feedback,
		CreatedAt:       d.CreatedAt,
	}
}

type ClassStore struct {
	coll *mongo.Collection
}

func (s *ClassStore) Create(ctx context.Context, c model.Class) (string, error) {
	if c.AvailableSeats < 0 || c.Enroll < 0 {
		return "", apperr.New(apperr.KindInvalidInput, "seat counts must not be negative")
	}
	if c.Status == "" {
		c.Status = model.ClassPending
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	doc := classDoc{
		ID:              primitive.NewObjectID(),
		Name:            c.Name,
		Image:           c.Image,
		InstructorName:  c.InstructorName,
		InstructorEmail: normalizeEmail(c.InstructorEmail),
		Price:           c.Price,
		AvailableSeats:  c.AvailableSeats,
		Enroll:          c.Enroll,
		Status:          string(c.Status),
		Feedback:        c.Feedback,
		CreatedAt:       c.CreatedAt,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return "", classify(err, "")
	}
	return doc.ID.Hex(), nil
}

func (s *ClassStore) List(ctx context.Context) ([]model.Class, error) {
	return findAll(ctx, s.coll, bson.M{}, classDoc.toModel)
}

func (s *ClassStore) Get(ctx context.Context, id string) (model.Class, error) {
	oid, err := parseID(id)
	if err != nil {
		return model.Class{}, err
	}
	var doc classDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return model.Class{}, classify(err, "class not found")
	}
	return doc.toModel(), nil
}

func (s *ClassStore) Approve(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid},
		bson.M{"$set": bson.M{"status": string(model.ClassApproved)}})
	if err != nil {
		return classify(err, "")
	}
	if res.MatchedCount == 0 {
		return apperr.New(apperr.KindNotFound, "class not found")
	}
	return nil
}

// AdjustSeats applies both deltas with a single $inc guarded by a filter on
// the current counters, so the check and the write are one atomic step.
func (s *ClassStore) AdjustSeats(ctx context.Context, id string, seatDelta, enrollDelta int) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	filter := bson.M{
		"_id":            oid,
		"availableSeats": bson.M{"$gte": -seatDelta},
		"enroll":         bson.M{"$gte": -enrollDelta},
	}
	update := bson.M{"$inc": bson.M{"availableSeats": seatDelta, "enroll": enrollDelta}}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return classify(err, "")
	}
	if res.MatchedCount > 0 {
		return nil
	}
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.New(apperr.KindNotFound, "class not found")
	}
	if err != nil {
		return classify(err, "")
	}
	return apperr.New(apperr.KindSeatsExhausted, "no seats available")
}

func (s *ClassStore) SetSeats(ctx context.Context, id string, availableSeats, enroll int) error {
	if availableSeats < 0 || enroll < 0 {
		return apperr.New(apperr.KindInvalidInput, "seat counts must not be negative")
	}
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	update := bson.M{
		"$set": bson.M{"availableSeats": availableSeats, "enroll": enroll},
		"$setOnInsert": bson.M{
			"status":    string(model.ClassPending),
			"createdAt": time.Now().UTC().Truncate(time.Millisecond),
		},
	}
	_, err = s.coll.UpdateOne(ctx, bson.M{"_id": oid}, update, options.Update().SetUpsert(true))
	return classify(err, "")
}
