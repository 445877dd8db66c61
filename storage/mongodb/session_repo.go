package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	apperrors "github.com/experta/session-engine/internal/errors"
	"github.com/experta/session-engine/sessions"
)

const sessionsCollection = "sessions"

var _ sessions.Repo = (*SessionRepo)(nil)

type sessionDoc struct {
	ID           string     `bson:"_id"`
	UserID       string     `bson:"user"`
	Device       string     `bson:"device"`
	DeviceAgent  string     `bson:"deviceAgent"`
	FCMToken     string     `bson:"fcmToken,omitempty"`
	IP           string     `bson:"ip"`
	Platform     string     `bson:"platform"`
	Provider     string     `bson:"provider"`
	AccessToken  string     `bson:"accessToken"`
	RefreshToken string     `bson:"refreshToken"`
	LoginAt      time.Time  `bson:"loginAt"`
	LogoutAt     *time.Time `bson:"logoutAt"`
	CreatedAt    time.Time  `bson:"createdAt"`
}

// SessionRepo implements sessions.Repo on a MongoDB collection.
type SessionRepo struct {
	col *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) *SessionRepo {
	return &SessionRepo{col: db.Collection(sessionsCollection)}
}

// EnsureIndexes creates the uniqueness constraint backing the one-session-
// per-(user, device) invariant.
func (r *SessionRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}, {Key: "device", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetName("unique_user_session"),
	})
	return errors.Wrap(err, "create session indexes")
}

func (r *SessionRepo) GetByID(ctx context.Context, id string) (*sessions.SessionRecord, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *SessionRepo) GetByUserDevice(ctx context.Context, userID, device string) (*sessions.SessionRecord, error) {
	return r.findOne(ctx, bson.M{"user": userID, "device": device})
}

func (r *SessionRepo) GetByRefreshToken(ctx context.Context, userID, refreshToken string) (*sessions.SessionRecord, error) {
	return r.findOne(ctx, bson.M{"user": userID, "refreshToken": refreshToken})
}

func (r *SessionRepo) GetByAccessToken(ctx context.Context, accessToken string) (*sessions.SessionRecord, error) {
	return r.findOne(ctx, bson.M{"accessToken": accessToken, "logoutAt": nil})
}

func (r *SessionRepo) ListByUser(ctx context.Context, userID string) ([]*sessions.SessionRecord, error) {
	cursor, err := r.col.Find(ctx, bson.M{"user": userID})
	if err != nil {
		return nil, errors.Wrap(err, "find sessions")
	}
	defer cursor.Close(ctx)

	var records []*sessions.SessionRecord
	for cursor.Next(ctx) {
		var doc sessionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decode session")
		}
		records = append(records, fromDoc(&doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate sessions")
	}
	return records, nil
}

func (r *SessionRepo) Create(ctx context.Context, record *sessions.SessionRecord) error {
	if _, err := r.col.InsertOne(ctx, toDoc(record)); err != nil {
		return errors.Wrap(err, "insert session")
	}
	return nil
}

func (r *SessionRepo) Update(ctx context.Context, record *sessions.SessionRecord) error {
	result, err := r.col.ReplaceOne(ctx,
		bson.M{"user": record.UserID, "device": record.Device},
		toDoc(record),
	)
	if err != nil {
		return errors.Wrap(err, "replace session")
	}
	if result.MatchedCount == 0 {
		return apperrors.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepo) UpdateAccessToken(ctx context.Context, userID, device, accessToken string) (*sessions.SessionRecord, error) {
	var doc sessionDoc
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"user": userID, "device": device},
		bson.M{"$set": bson.M{"accessToken": accessToken}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrSessionNotFound
		}
		return nil, errors.Wrap(err, "update session access token")
	}
	return fromDoc(&doc), nil
}

func (r *SessionRepo) Delete(ctx context.Context, userID, device string) (bool, error) {
	result, err := r.col.DeleteOne(ctx, bson.M{"user": userID, "device": device})
	if err != nil {
		return false, errors.Wrap(err, "delete session")
	}
	return result.DeletedCount > 0, nil
}

func (r *SessionRepo) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	result, err := r.col.DeleteMany(ctx, bson.M{"user": userID})
	if err != nil {
		return 0, errors.Wrap(err, "delete user sessions")
	}
	return int(result.DeletedCount), nil
}

func (r *SessionRepo) findOne(ctx context.Context, filter bson.M) (*sessions.SessionRecord, error) {
	var doc sessionDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrSessionNotFound
		}
		return nil, errors.Wrap(err, "find session")
	}
	return fromDoc(&doc), nil
}

func toDoc(record *sessions.SessionRecord) *sessionDoc {
	return &sessionDoc{
		ID:           record.ID,
		UserID:       record.UserID,
		Device:       record.Device,
		DeviceAgent:  record.DeviceAgent,
		FCMToken:     record.FCMToken,
		IP:           record.IP,
		Platform:     string(record.Platform),
		Provider:     record.Provider,
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
		LoginAt:      record.LoginAt,
		LogoutAt:     record.LogoutAt,
		CreatedAt:    record.CreatedAt,
	}
}

func fromDoc(doc *sessionDoc) *sessions.SessionRecord {
	return &sessions.SessionRecord{
		ID:           doc.ID,
		UserID:       doc.UserID,
		Device:       doc.Device,
		DeviceAgent:  doc.DeviceAgent,
		FCMToken:     doc.FCMToken,
		IP:           doc.IP,
		Platform:     sessions.Platform(doc.Platform),
		Provider:     doc.Provider,
		AccessToken:  doc.AccessToken,
		RefreshToken: doc.RefreshToken,
		LoginAt:      doc.LoginAt,
		LogoutAt:     doc.LogoutAt,
		CreatedAt:    doc.CreatedAt,
	}
}
