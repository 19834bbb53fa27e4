package scenes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps one scene document per project in a collection.
type MongoStore struct {
	coll      *mongo.Collection
	projectID string
	defaults  Defaults
}

type mongoRecord struct {
	ProjectID string `bson:"_id"`
	Document  `bson:",inline"`
}

func NewMongoStore(coll *mongo.Collection, projectID string, d Defaults) *MongoStore {
	return &MongoStore{coll: coll, projectID: projectID, defaults: d}
}

// ConnectMongo dials uri and returns the client and the scene collection.
func ConnectMongo(ctx context.Context, uri, database, collection string) (*mongo.Client, *mongo.Collection, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, client.Database(database).Collection(collection), nil
}

func (s *MongoStore) Load(ctx context.Context) (*Document, error) {
	var rec mongoRecord
	err := s.coll.FindOne(ctx, bson.M{"_id": s.projectID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		rec.Document = Document{}
	} else if err != nil {
		return nil, fmt.Errorf("load scenes %s: %w", s.projectID, err)
	}
	doc := rec.Document
	if err := Normalize(&doc, s.defaults); err != nil {
		return nil, fmt.Errorf("load scenes %s: %w", s.projectID, err)
	}
	return &doc, nil
}

func (s *MongoStore) Save(ctx context.Context, doc *Document) error {
	if err := Normalize(doc, s.defaults); err != nil {
		return err
	}
	doc.GeneratedAt = time.Now().UTC()

	rec := mongoRecord{ProjectID: s.projectID, Document: *doc}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": s.projectID}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save scenes %s: %w", s.projectID, err)
	}
	return nil
}

func (s *MongoStore) UpdateOne(ctx context.Context, index int, p Patch) (*Document, error) {
	return updateOne(ctx, s, index, p)
}

func (s *MongoStore) DeleteOne(ctx context.Context, index int) (*Document, error) {
	return deleteOne(ctx, s, index)
}
