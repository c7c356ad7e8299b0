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

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"`
	Name      string             `bson:"name"`
	PhotoURL  string             `bson:"photoURL"`
	Role      string             `bson:"role,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d userDoc) toModel() model.User {
	return model.User{
		ID:        d.ID.Hex(),
		Email:     d.Email,
		Name:      d.Name,
		PhotoURL:  d.PhotoURL,
		Role:      model.Role(d.Role),
		CreatedAt: d.CreatedAt,
	}
}

type UserStore struct {
	coll *mongo.Collection
}

// RegisterIfAbsent relies on the unique email index: a duplicate key error
// means another caller registered first and the stored user is returned.
func (s *UserStore) RegisterIfAbsent(ctx context.Context, u model.User) (model.User, bool, error) {
	doc := userDoc{
		ID:        primitive.NewObjectID(),
		Email:     normalizeEmail(u.Email),
		Name:      u.Name,
		PhotoURL:  u.PhotoURL,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if doc.Email == "" {
		return model.User{}, false, apperr.New(apperr.KindInvalidInput, "email is required")
	}
	_, err := s.coll.InsertOne(ctx, doc)
	if err == nil {
		return doc.toModel(), true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return model.User{}, false, classify(err, "")
	}
	existing, err := s.FindByEmail(ctx, doc.Email)
	return existing, false, err
}

func (s *UserStore) List(ctx context.Context) ([]model.User, error) {
	return findAll(ctx, s.coll, bson.M{}, userDoc.toModel)
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (model.User, error) {
	var doc userDoc
	err := s.coll.FindOne(ctx, bson.M{"email": normalizeEmail(email)}).Decode(&doc)
	if err != nil {
		return model.User{}, classify(err, "user not found")
	}
	return doc.toModel(), nil
}

func (s *UserStore) Promote(ctx context.Context, id string, role model.Role) error {
	if !role.Promotable() {
		return apperr.New(apperr.KindInvalidInput, "unknown role")
	}
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"role": string(role)}})
	if err != nil {
		return classify(err, "")
	}
	if res.MatchedCount == 0 {
		return apperr.New(apperr.KindNotFound, "user not found")
	}
	return nil
}
