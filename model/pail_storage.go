package model

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/Nikpro200125/orchestrator"
	"github.com/evergreen-ci/pail"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// PailType describes the name of the blob storage backing a pail Bucket
// implementation.
type PailType string

const (
	PailGridFS PailType = "gridfs"
	PailLocal  PailType = "local"
)

// Create returns a pail Bucket backed by PailType.
func (t PailType) Create(ctx context.Context, env orchestrator.Environment, bucket, prefix string) (pail.Bucket, error) {
	var b pail.Bucket
	var err error

	switch t {
	case PailGridFS:
		client := env.GetClient()
		if client == nil {
			return nil, errors.New("gridfs buckets require a mongodb client")
		}
		conf := env.GetConf()

		opts := pail.GridFSOptions{
			Database: conf.DatabaseName,
			Name:     bucket,
			Prefix:   prefix,
		}
		b, err = pail.NewGridFSBucketWithClient(ctx, client, opts)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	case PailLocal:
		if err = os.MkdirAll(bucket, 0755); err != nil {
			return nil, errors.Wrapf(err, "creating local bucket %s", bucket)
		}
		opts := pail.LocalOptions{
			Path:   bucket,
			Prefix: prefix,
		}
		b, err = pail.NewLocalBucket(opts)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	default:
		return nil, errors.Errorf("bucket type '%s' not implemented", t)
	}

	if err = b.Check(ctx); err != nil {
		return nil, errors.WithStack(err)
	}
	return b, nil
}

// ArtifactKey is the bucket key of the specification uploaded for a
// service.
func ArtifactKey(id, filename string) string {
	base := path.Base(filename)
	if base == "." || base == "/" || base == "" {
		base = "spec"
	}
	return fmt.Sprintf("%s-%s", id, base)
}

// ArtifactStore keeps uploaded specifications in a pail bucket.
type ArtifactStore struct {
	bucket pail.Bucket
}

// NewArtifactStore opens the artifact bucket the environment is
// configured for.
func NewArtifactStore(ctx context.Context, env orchestrator.Environment) (*ArtifactStore, error) {
	if env == nil {
		return nil, errors.New("cannot create an artifact store with a nil environment")
	}
	conf := env.GetConf()
	b, err := PailType(conf.ArtifactBucketType).Create(ctx, env, conf.ArtifactBucket, "specs")
	if err != nil {
		return nil, errors.Wrap(err, "problem creating artifact bucket")
	}
	return &ArtifactStore{bucket: b}, nil
}

func NewArtifactStoreWithBucket(b pail.Bucket) *ArtifactStore { return &ArtifactStore{bucket: b} }

func (s *ArtifactStore) Put(ctx context.Context, key string, data []byte) error {
	err := s.bucket.Put(ctx, key, bytes.NewReader(data))
	grip.DebugWhen(err == nil, message.Fields{
		"message": "stored specification",
		"key":     key,
		"size":    len(data),
	})
	return errors.Wrapf(err, "problem storing specification %s", key)
}

func (s *ArtifactStore) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.bucket.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "problem fetching specification %s", key)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "problem reading specification %s", key)
	}
	return data, nil
}

func (s *ArtifactStore) Remove(ctx context.Context, key string) error {
	return errors.Wrapf(s.bucket.Remove(ctx, key), "problem removing specification %s", key)
}
