package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sngm3741/form-intake/api/internal/infrastructure/kv"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// KVStore implements kv.Store on a single MongoDB collection.
type KVStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	now        func() time.Time
}

// Connect dials MongoDB and returns a store over db.collection. The timeout
// bounds the initial connection only.
func Connect(ctx context.Context, uri, database, collection string, timeout time.Duration) (*KVStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri).SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))
	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	return NewKVStore(client, database, collection), nil
}

// NewKVStore wraps an already connected client.
func NewKVStore(client *mongo.Client, database, collection string) *KVStore {
	return &KVStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
		now:        time.Now,
	}
}

// Get returns the value stored under key.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var doc entryDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(doc.Value), nil
}

// Put upserts the value under key.
func (s *KVStore) Put(ctx context.Context, key string, value []byte) error {
	doc := entryDocument{Key: key, Value: string(value), UpdatedAt: s.now().UTC()}
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *KVStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close はクライアントを切断する。
func (s *KVStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
