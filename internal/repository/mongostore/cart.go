package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/class-enrollment/internal/apperr"
	"github.com/iliyamo/class-enrollment/internal/model"
)

type enrolledDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	ClassID        string             `bson:"classId"`
	Email          string             `bson:"email"`
	Name           string             `bson:"name"`
	Image          string             `bson:"image"`
	InstructorName string             `bson:"instructorName"`
	Price          float64            `bson:"price"`
	CreatedAt      time.Time          `bson:"createdAt"`
}

func (d enrolledDoc) toModel() model.Enrollment {
	return model.Enrollment{
		ID:             d.ID.Hex(),
		ClassID:        d.ClassID,
		Email:          d.Email,
		Name:           d.Name,
		Image:          d.Image,
		InstructorName: d.InstructorName,
		Price:          d.Price,
		CreatedAt:      d.CreatedAt,
	}
}

type CartStore struct {
	coll *mongo.Collection
}

func (s *CartStore) Add(ctx context.Context, e model.Enrollment) (string, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	doc := enrolledDoc{
		ID:             primitive.NewObjectID(),
		ClassID:        e.ClassID,
		Email:          normalizeEmail(e.Email),
		Name:           e.Name,
		Image:          e.Image,
		InstructorName: e.InstructorName,
		Price:          e.Price,
		CreatedAt:      e.CreatedAt,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return "", classify(err, "")
	}
	return doc.ID.Hex(), nil
}

func (s *CartStore) List(ctx context.Context) ([]model.Enrollment, error) {
	return findAll(ctx, s.coll, bson.M{}, enrolledDoc.toModel)
}

func (s *CartStore) ListByEmail(ctx context.Context, email string) ([]model.Enrollment, error) {
	return findAll(ctx, s.coll, bson.M{"email": normalizeEmail(email)}, enrolledDoc.toModel)
}

func (s *CartStore) Get(ctx context.Context, id string) (model.Enrollment, error) {
	oid, err := parseID(id)
	if err != nil {
		return model.Enrollment{}, err
	}
	var doc enrolledDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return model.Enrollment{}, classify(err, "enrollment not found")
	}
	return doc.toModel(), nil
}

func (s *CartStore) RemoveOne(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return classify(err, "")
	}
	if res.DeletedCount == 0 {
		return apperr.New(apperr.KindNotFound, "enrollment not found")
	}
	return nil
}

func (s *CartStore) RemoveMany(ctx context.Context, email string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	oids, err := parseIDs(ids)
	if err != nil {
		return 0, err
	}
	res, err := s.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": oids}, "email": normalizeEmail(email)})
	if err != nil {
		return 0, classify(err, "")
	}
	return res.DeletedCount, nil
}

// ValidID reports whether id is an ObjectID hex string.
func (s *CartStore) ValidID(id string) bool { return primitive.IsValidObjectID(id) }
