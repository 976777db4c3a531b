package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"geo-insights/models"
)

// mongoDocument keeps the store order next to the record; _id is the doc_id.
type mongoDocument struct {
	ID     string               `bson:"_id"`
	Seq    int                  `bson:"seq"`
	Record models.ContentRecord `bson:",inline"`
}

// MongoCollection mirrors the content store into a MongoDB collection.
type MongoCollection struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *zap.Logger
}

func NewMongoCollection(ctx context.Context, uri, database, collection string, logger *zap.Logger) (*MongoCollection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	m := &MongoCollection{
		client: client,
		coll:   client.Database(database).Collection(collection),
		logger: logger,
	}
	if err := m.createIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return m, nil
}

func (m *MongoCollection) createIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "content_fingerprint", Value: 1}},
			// records without text carry no fingerprint and may repeat
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"content_fingerprint": bson.M{"$gt": ""}}),
		},
		{Keys: bson.D{{Key: "entity_name", Value: 1}, {Key: "seq", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create content store indexes: %w", err)
	}
	return nil
}

func (m *MongoCollection) Load(ctx context.Context) ([]models.ContentRecord, error) {
	cursor, err := m.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find content records: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode content records: %w", err)
	}
	records := make([]models.ContentRecord, len(docs))
	for i, d := range docs {
		records[i] = d.Record
	}
	return records, nil
}

// Save upserts every record by doc_id. Records are never removed, matching
// the store's insert-or-replace semantics.
func (m *MongoCollection) Save(ctx context.Context, records []models.ContentRecord) error {
	if len(records) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(records))
	for i, rec := range records {
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": rec.DocID}).
			SetReplacement(mongoDocument{ID: rec.DocID, Seq: i, Record: rec}).
			SetUpsert(true))
	}
	res, err := m.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return fmt.Errorf("bulk write content records: %w", err)
	}
	m.logger.Debug("Mongo content store synced",
		zap.Int64("upserted", res.UpsertedCount),
		zap.Int64("modified", res.ModifiedCount))
	return nil
}

func (m *MongoCollection) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
