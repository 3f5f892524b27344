package model

import (
	"context"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SystemIndexes holds the keys, options and the collection for an index.
// See
// https://docs.mongodb.com/manual/reference/method/db.collection.createIndex
// for more info.
type SystemIndexes struct {
	Keys       bson.D
	Unique     bool
	Collection string
}

// GetRequiredIndexes returns required indexes for the orchestrator database.
func GetRequiredIndexes() []SystemIndexes {
	return []SystemIndexes{
		{
			Keys:       bson.D{{Key: generatedServiceCreatedAtKey, Value: -1}},
			Collection: generatedServicesCollection,
		},
		{
			Keys:       bson.D{{Key: generatedServiceStatusKey, Value: 1}},
			Collection: generatedServicesCollection,
		},
	}
}

// EnsureIndexes creates the required indexes that do not exist yet.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	if db == nil {
		return errors.New("cannot create indexes without a database")
	}

	catcher := grip.NewBasicCatcher()
	for _, index := range GetRequiredIndexes() {
		model := mongo.IndexModel{Keys: index.Keys}
		if index.Unique {
			model.Options = options.Index().SetUnique(true)
		}
		name, err := db.Collection(index.Collection).Indexes().CreateOne(ctx, model)
		catcher.Wrapf(err, "creating index on '%s'", index.Collection)
		grip.DebugWhen(err == nil, message.Fields{
			"message":    "ensured index",
			"collection": index.Collection,
			"index":      name,
		})
	}

	return catcher.Resolve()
}
