package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap/zaptest"

	"geo-insights/models"
)

func mockCollection(mt *mtest.T) *MongoCollection {
	return &MongoCollection{client: mt.Client, coll: mt.Coll, logger: zaptest.NewLogger(mt)}
}

func TestMongoCollection(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("indexes", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		require.NoError(mt, mockCollection(mt).createIndexes(ctx))

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "createIndexes", evt.CommandName)
		indexes, err := evt.Command.Lookup("indexes").Array().Values()
		require.NoError(mt, err)
		require.Len(mt, indexes, 2)

		fingerprint := indexes[0].Document()
		assert.Equal(mt, "content_fingerprint_1", fingerprint.Lookup("name").StringValue())
		assert.True(mt, fingerprint.Lookup("unique").Boolean())
		assert.Equal(mt, "", fingerprint.Lookup("partialFilterExpression", "content_fingerprint", "$gt").StringValue())
		assert.Equal(mt, "entity_name_1_seq_1", indexes[1].Document().Lookup("name").StringValue())
	})

	mt.Run("save upserts by doc_id in store order", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 2},
			bson.E{Key: "nModified", Value: 0},
			bson.E{Key: "upserted", Value: bson.A{
				bson.D{{Key: "index", Value: 0}, {Key: "_id", Value: "a"}},
				bson.D{{Key: "index", Value: 1}, {Key: "_id", Value: "b"}},
			}},
		))
		records := []models.ContentRecord{
			record("https://rival.example/a", "Rival", "Widgets are great"),
			record("https://rival.example/b", "Rival", ""),
		}
		require.NoError(mt, mockCollection(mt).Save(ctx, records))

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "update", evt.CommandName)
		assert.True(mt, evt.Command.Lookup("ordered").Boolean())
		updates, err := evt.Command.Lookup("updates").Array().Values()
		require.NoError(mt, err)
		require.Len(mt, updates, 2)
		for i, u := range updates {
			doc := u.Document()
			assert.Equal(mt, records[i].DocID, doc.Lookup("q", "_id").StringValue())
			assert.True(mt, doc.Lookup("upsert").Boolean())
			assert.Equal(mt, records[i].DocID, doc.Lookup("u", "_id").StringValue())
			assert.Equal(mt, int64(i), doc.Lookup("u", "seq").AsInt64())
			assert.Equal(mt, records[i].URL, doc.Lookup("u", "url").StringValue())
			assert.Equal(mt, records[i].Fingerprint, doc.Lookup("u", "content_fingerprint").StringValue())
		}
	})

	mt.Run("save with nothing to write", func(mt *mtest.T) {
		require.NoError(mt, mockCollection(mt).Save(ctx, nil))
		assert.Nil(mt, mt.GetStartedEvent())
	})

	mt.Run("save surfaces duplicate fingerprints", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   1,
			Code:    11000,
			Message: "E11000 duplicate key error collection: content_fingerprint_1",
		}))
		err := mockCollection(mt).Save(ctx, []models.ContentRecord{
			record("https://rival.example/a", "Rival", "Widgets are great"),
			record("https://rival.example/b", "Rival", "Gizmos too"),
		})
		require.Error(mt, err)
		assert.True(mt, mongo.IsDuplicateKeyError(err))
	})

	mt.Run("load sorts by seq and merges into a store", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.content_store", mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: "a"}, {Key: "seq", Value: 0},
				{Key: "doc_id", Value: "a"}, {Key: "url", Value: "https://rival.example/a"},
				{Key: "entity_name", Value: "Rival"}, {Key: "content_fingerprint", Value: "f1"},
			},
			bson.D{
				{Key: "_id", Value: "b"}, {Key: "seq", Value: 1},
				{Key: "doc_id", Value: "b"}, {Key: "url", Value: "https://rival.example/b"},
				{Key: "entity_name", Value: "Rival"}, {Key: "content_fingerprint", Value: "f1"},
			},
		))

		s, err := Open(ctx, mockCollection(mt), zaptest.NewLogger(mt))
		require.NoError(mt, err)
		require.Equal(mt, 1, s.Len(), "second record repeats the first fingerprint")
		got := s.All()[0]
		assert.Equal(mt, "a", got.DocID)
		assert.Equal(mt, "https://rival.example/a", got.URL)
		assert.Equal(mt, "Rival", got.EntityName)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "find", evt.CommandName)
		assert.Equal(mt, int64(1), evt.Command.Lookup("sort", "seq").AsInt64())
	})
}
