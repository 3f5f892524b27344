package model

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// BoltStore keeps service records as JSON values in one bolt bucket.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(db *bolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(generatedServicesCollection))
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating services bucket")
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Save(_ context.Context, svc *GeneratedService) error {
	if err := svc.Validate(); err != nil {
		return errors.Wrap(err, "invalid service")
	}
	data, err := json.Marshal(svc)
	if err != nil {
		return errors.Wrapf(err, "encoding service %s", svc.ID)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(generatedServicesCollection))
		if b.Get([]byte(svc.ID)) != nil {
			return errors.Errorf("service '%s' already exists", svc.ID)
		}
		return b.Put([]byte(svc.ID), data)
	})
	grip.DebugWhen(err == nil, message.Fields{
		"collection": generatedServicesCollection,
		"id":         svc.ID,
		"op":         "save new generated service",
	})
	return errors.Wrapf(err, "problem saving service %s", svc.ID)
}

func (s *BoltStore) Find(_ context.Context, id string) (*GeneratedService, error) {
	var out *GeneratedService
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(generatedServicesCollection)).Get([]byte(id))
		if data == nil {
			return newNotFound(id)
		}
		out = &GeneratedService{}
		return errors.Wrapf(json.Unmarshal(data, out), "decoding service %s", id)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) FindAll(_ context.Context) ([]GeneratedService, error) {
	out := []GeneratedService{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(generatedServicesCollection)).ForEach(func(k, v []byte) error {
			svc := GeneratedService{}
			if err := json.Unmarshal(v, &svc); err != nil {
				return errors.Wrapf(err, "decoding service %s", k)
			}
			out = append(out, svc)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *BoltStore) UpdateStatus(_ context.Context, id string, update StatusUpdate) error {
	if err := update.Status.Validate(); err != nil {
		return errors.WithStack(err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(generatedServicesCollection))
		data := b.Get([]byte(id))
		if data == nil {
			return newNotFound(id)
		}
		svc := &GeneratedService{}
		if err := json.Unmarshal(data, svc); err != nil {
			return errors.Wrapf(err, "decoding service %s", id)
		}

		update.apply(svc, time.Now().UTC().Truncate(time.Millisecond))

		data, err := json.Marshal(svc)
		if err != nil {
			return errors.Wrapf(err, "encoding service %s", id)
		}
		return errors.Wrapf(b.Put([]byte(id), data), "problem updating service %s", id)
	})
}

func (s *BoltStore) Remove(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(generatedServicesCollection))
		if b.Get([]byte(id)) == nil {
			return newNotFound(id)
		}
		return errors.Wrapf(b.Delete([]byte(id)), "problem removing service %s", id)
	})
}
