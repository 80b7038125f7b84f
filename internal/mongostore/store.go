// Package mongostore implements the document-database session store backend.
// Evicted records are soft-deactivated rather than deleted so they remain
// available for audit.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mfriesen/actionreplay/internal/domain"
)

const collectionName = "sessions"

// sessionDocument is the stored shape of a session record. The credential is
// revealed explicitly here; this struct never leaves the package.
type sessionDocument struct {
	Identity     string    `bson:"identity"`
	Credential   string    `bson:"credential"`
	CreatedAt    time.Time `bson:"createdAt"`
	LastUsedAt   time.Time `bson:"lastUsedAt"`
	Method       string    `bson:"method"`
	SerialTag    string    `bson:"serialTag"`
	IsActive     bool      `bson:"isActive"`
	TotalActions int       `bson:"totalActions"`
}

type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Connect dials the document store and prepares the sessions collection with
// a unique index on identity.
func Connect(ctx context.Context, url, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to document store: %w", err)
	}

	coll := client.Database(database).Collection(collectionName)
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "identity", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "identity", Value: 1}, {Key: "isActive", Value: 1}},
		},
	}
	if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("failed to create session indexes: %w", err)
	}

	return &Store{client: client, coll: coll}, nil
}

func (s *Store) Name() string { return "mongo" }

func (s *Store) ListActive(ctx context.Context) ([]domain.SessionRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := s.coll.Find(ctx, bson.M{"isActive": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []sessionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}

	records := make([]domain.SessionRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, fromDocument(doc))
	}
	return records, nil
}

func (s *Store) Upsert(ctx context.Context, rec domain.SessionRecord) error {
	doc := toDocument(rec)
	opts := options.Replace().SetUpsert(true)
	if _, err := s.coll.ReplaceOne(ctx, bson.M{"identity": rec.Identity}, doc, opts); err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

func (s *Store) Deactivate(ctx context.Context, identity string) error {
	update := bson.M{"$set": bson.M{"isActive": false}}
	if _, err := s.coll.UpdateOne(ctx, bson.M{"identity": identity}, update); err != nil {
		return fmt.Errorf("failed to deactivate session: %w", err)
	}
	return nil
}

func (s *Store) MarkUsed(ctx context.Context, identity string, at time.Time) error {
	update := bson.M{
		"$set": bson.M{"lastUsedAt": at},
		"$inc": bson.M{"totalActions": 1},
	}
	if _, err := s.coll.UpdateOne(ctx, bson.M{"identity": identity, "isActive": true}, update); err != nil {
		return fmt.Errorf("failed to mark session used: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func toDocument(rec domain.SessionRecord) sessionDocument {
	return sessionDocument{
		Identity:     rec.Identity,
		Credential:   rec.Credential.Reveal(),
		CreatedAt:    rec.CreatedAt,
		LastUsedAt:   rec.LastUsedAt,
		Method:       string(rec.Method),
		SerialTag:    rec.SerialTag,
		IsActive:     rec.Active,
		TotalActions: rec.TotalActions,
	}
}

func fromDocument(doc sessionDocument) domain.SessionRecord {
	return domain.SessionRecord{
		Identity:     doc.Identity,
		Credential:   domain.NewCredential(doc.Credential),
		CreatedAt:    doc.CreatedAt,
		LastUsedAt:   doc.LastUsedAt,
		Method:       domain.AcquisitionMethod(doc.Method),
		SerialTag:    doc.SerialTag,
		Active:       doc.IsActive,
		TotalActions: doc.TotalActions,
	}
}
