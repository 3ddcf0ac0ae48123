package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docassist/docassist-go/internal/model"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const usersCollection = "users"

// userDocument is the MongoDB layout of a user: history is embedded.
type userDocument struct {
	ID           bson.ObjectID     `bson:"_id,omitempty"`
	Name         string            `bson:"name"`
	Email        string            `bson:"email"`
	PasswordHash string            `bson:"password"`
	Phone        string            `bson:"phone,omitempty"`
	Bio          string            `bson:"bio,omitempty"`
	History      []historyDocument `bson:"history"`
	CreatedAt    time.Time         `bson:"createdAt"`
	UpdatedAt    time.Time         `bson:"updatedAt"`
}

type historyDocument struct {
	Filename  string    `bson:"filename"`
	CreatedAt time.Time `bson:"createdAt"`
}

func (d *userDocument) toModel() *model.User {
	history := make([]model.HistoryEntry, 0, len(d.History))
	for _, h := range d.History {
		history = append(history, model.HistoryEntry{Filename: h.Filename, CreatedAt: h.CreatedAt})
	}
	return &model.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Phone:        d.Phone,
		Bio:          d.Bio,
		History:      history,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// MongoUserRepository handles user persistence on MongoDB.
type MongoUserRepository struct {
	users *mongo.Collection
	now   func() time.Time
}

// NewMongoClient connects to MongoDB and verifies the connection.
func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// NewMongoUserRepository creates a MongoUserRepository on the given database.
func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{users: db.Collection(usersCollection), now: time.Now}
}

// EnsureIndexes creates the unique email index.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uq_users_email"),
	})
	if err != nil {
		return fmt.Errorf("create email index: %w", err)
	}
	return nil
}

func (r *MongoUserRepository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Millisecond)
}

// Create inserts a new user and sets the generated ID and timestamps on it.
func (r *MongoUserRepository) Create(ctx context.Context, user *model.User) error {
	now := r.timestamp()
	doc := userDocument{
		ID:           bson.NewObjectID(),
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Phone:        user.Phone,
		Bio:          user.Bio,
		History:      []historyDocument{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}

	user.ID = doc.ID.Hex()
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetByEmail retrieves a user by exact email match.
func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

// GetByID retrieves a user by ID. Malformed IDs are reported as not found.
func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

// EmailTakenByOther reports whether a user other than userID holds email.
func (r *MongoUserRepository) EmailTakenByOther(ctx context.Context, email, userID string) (bool, error) {
	filter := bson.D{{Key: "email", Value: email}}
	if oid, err := bson.ObjectIDFromHex(userID); err == nil {
		filter = append(filter, bson.E{Key: "_id", Value: bson.D{{Key: "$ne", Value: oid}}})
	}

	n, err := r.users.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count users by email: %w", err)
	}
	return n > 0, nil
}

// UpdateProfile applies the non-empty fields of upd and returns the updated user.
func (r *MongoUserRepository) UpdateProfile(ctx context.Context, id string, upd model.ProfileUpdate) (*model.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	set := bson.D{{Key: "updatedAt", Value: r.timestamp()}}
	for _, f := range []bson.E{
		{Key: "name", Value: upd.Name},
		{Key: "email", Value: upd.Email},
		{Key: "phone", Value: upd.Phone},
		{Key: "bio", Value: upd.Bio},
	} {
		if f.Value != "" {
			set = append(set, f)
		}
	}

	var doc userDocument
	err = r.users.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return nil, ErrUserNotFound
		case mongo.IsDuplicateKeyError(err):
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	return doc.toModel(), nil
}

// UpdatePassword replaces the stored password hash.
func (r *MongoUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.updateByID(ctx, id, bson.D{{Key: "$set", Value: bson.D{
		{Key: "password", Value: passwordHash},
		{Key: "updatedAt", Value: r.timestamp()},
	}}})
}

// AppendHistory pushes an entry onto the end of the embedded history array.
func (r *MongoUserRepository) AppendHistory(ctx context.Context, id string, entry model.HistoryEntry) error {
	return r.updateByID(ctx, id, bson.D{{Key: "$push", Value: bson.D{
		{Key: "history", Value: historyDocument{
			Filename:  entry.Filename,
			CreatedAt: entry.CreatedAt.UTC().Truncate(time.Millisecond),
		}},
	}}})
}

func (r *MongoUserRepository) updateByID(ctx context.Context, id string, update bson.D) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrUserNotFound
	}

	result, err := r.users.UpdateOne(ctx, bson.D{{Key: "_id", Value: oid}}, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.D) (*model.User, error) {
	var doc userDocument
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toModel(), nil
}
