package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	apperrors "github.com/experta/session-engine/internal/errors"
	"github.com/experta/session-engine/users"
)

const usersCollection = "users"

var _ users.Repo = (*UserRepo)(nil)

type userDoc struct {
	ID        string            `bson:"_id"`
	ForSystem bool              `bson:"forSystem"`
	Sessions  map[string]string `bson:"sessions"`
}

// UserRepo implements the profile-store contract on the users collection.
// The engine only reads identities and rewrites the embedded sessions map;
// every other field belongs to the profile service.
type UserRepo struct {
	col *mongo.Collection
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{col: db.Collection(usersCollection)}
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*users.Identity, error) {
	var doc userDoc
	err := r.col.FindOne(ctx, bson.M{"_id": id},
		options.FindOne().SetProjection(bson.M{"_id": 1, "forSystem": 1, "sessions": 1}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrIdentityNotFound
		}
		return nil, errors.Wrap(err, "find identity")
	}
	index := doc.Sessions
	if index == nil {
		index = map[string]string{}
	}
	return &users.Identity{
		ID:          doc.ID,
		ForSystem:   doc.ForSystem,
		DeviceIndex: index,
	}, nil
}

func (r *UserRepo) UpdateDeviceIndex(ctx context.Context, id string, index map[string]string) error {
	result, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"sessions": index}},
	)
	if err != nil {
		return errors.Wrap(err, "update device index")
	}
	if result.MatchedCount == 0 {
		return apperrors.ErrIdentityNotFound
	}
	return nil
}

func (r *UserRepo) IterateIDs(ctx context.Context, fn func(id string) error) error {
	cursor, err := r.col.Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return errors.Wrap(err, "find identities")
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return errors.Wrap(err, "decode identity id")
		}
		if err := fn(doc.ID); err != nil {
			return err
		}
	}
	return errors.Wrap(cursor.Err(), "iterate identities")
}
