package model

import (
	"context"
	"time"

	"github.com/Nikpro200125/orchestrator"
	"github.com/mongodb/anser/db"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps service records in the generated_services collection.
type MongoStore struct {
	env orchestrator.Environment
}

func NewMongoStore(env orchestrator.Environment) *MongoStore { return &MongoStore{env: env} }

func (s *MongoStore) collection() *mongo.Collection {
	return s.env.GetDB().Collection(generatedServicesCollection)
}

func (s *MongoStore) Save(ctx context.Context, svc *GeneratedService) error {
	if err := svc.Validate(); err != nil {
		return errors.Wrap(err, "invalid service")
	}

	insertResult, err := s.collection().InsertOne(ctx, svc)
	grip.DebugWhen(err == nil, message.Fields{
		"collection":   generatedServicesCollection,
		"id":           svc.ID,
		"insertResult": insertResult,
		"op":           "save new generated service",
	})

	return errors.Wrapf(err, "problem saving service %s", svc.ID)
}

func (s *MongoStore) Find(ctx context.Context, id string) (*GeneratedService, error) {
	out := &GeneratedService{}
	err := s.collection().FindOne(ctx, bson.M{generatedServiceIDKey: id}).Decode(out)
	if db.ResultsNotFound(err) {
		return nil, newNotFound(id)
	} else if err != nil {
		return nil, errors.Wrapf(err, "problem finding service %s", id)
	}
	return out, nil
}

func (s *MongoStore) FindAll(ctx context.Context) ([]GeneratedService, error) {
	opts := options.Find().SetSort(bson.D{{Key: generatedServiceCreatedAtKey, Value: -1}})
	cur, err := s.collection().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "problem finding services")
	}

	out := []GeneratedService{}
	if err = cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "problem decoding services")
	}
	return out, nil
}

func (s *MongoStore) UpdateStatus(ctx context.Context, id string, update StatusUpdate) error {
	if err := update.Status.Validate(); err != nil {
		return errors.WithStack(err)
	}

	set := bson.M{
		generatedServiceStatusKey:    update.Status,
		generatedServiceErrorKey:     update.Error,
		generatedServiceUpdatedAtKey: time.Now().UTC().Truncate(time.Millisecond),
	}
	if dep := update.Deployment; dep != nil {
		set[generatedServiceModeKey] = dep.Mode
		set[generatedServiceURLKey] = dep.URL
		set[generatedServicePortKey] = dep.Port
		set[generatedServiceImageKey] = dep.Image
		set[generatedServiceContainerKey] = dep.Container
	}

	updateResult, err := s.collection().UpdateOne(ctx, bson.M{generatedServiceIDKey: id}, bson.M{"$set": set})
	grip.DebugWhen(err == nil, message.Fields{
		"collection":   generatedServicesCollection,
		"id":           id,
		"status":       update.Status,
		"updateResult": updateResult,
		"op":           "update generated service status",
	})
	if err != nil {
		return errors.Wrapf(err, "problem updating service %s", id)
	}
	if updateResult.MatchedCount == 0 {
		return newNotFound(id)
	}
	return nil
}

func (s *MongoStore) Remove(ctx context.Context, id string) error {
	deleteResult, err := s.collection().DeleteOne(ctx, bson.M{generatedServiceIDKey: id})
	grip.DebugWhen(err == nil, message.Fields{
		"collection":   generatedServicesCollection,
		"id":           id,
		"deleteResult": deleteResult,
		"op":           "remove generated service",
	})
	if err != nil {
		return errors.Wrapf(err, "problem removing service %s", id)
	}
	if deleteResult.DeletedCount == 0 {
		return newNotFound(id)
	}
	return nil
}
