package model

import (
	"time"

	"github.com/Nikpro200125/orchestrator/deploy"
	"github.com/Nikpro200125/orchestrator/openapi"
	"github.com/google/uuid"
	"github.com/mongodb/anser/bsonutil"
	"github.com/pkg/errors"
)

const generatedServicesCollection = "generated_services"

// ServiceKind describes how a generated service produces responses.
type ServiceKind string

const (
	// KindRandom services answer with data generated from the response
	// schema alone.
	KindRandom ServiceKind = "random"
	// KindContracts services evaluate the contracts and bodies of a LibSL
	// specification.
	KindContracts ServiceKind = "contracts"
)

// KindOf returns the kind of service built from src.
func KindOf(src *openapi.Source) ServiceKind {
	if src != nil && src.Library != nil {
		return KindContracts
	}
	return KindRandom
}

// ServiceStatus is the lifecycle state of a generated service.
type ServiceStatus string

const (
	StatusPending ServiceStatus = "pending"
	StatusRunning ServiceStatus = "running"
	StatusFailed  ServiceStatus = "failed"
	StatusRemoved ServiceStatus = "removed"
)

func (s ServiceStatus) Validate() error {
	switch s {
	case StatusPending, StatusRunning, StatusFailed, StatusRemoved:
		return nil
	default:
		return errors.Errorf("invalid service status '%s'", s)
	}
}

// GeneratedService is the registry record of one uploaded specification
// and the mock service deployed from it.
type GeneratedService struct {
	ID        string        `bson:"_id" json:"id"`
	Name      string        `bson:"name" json:"name"`
	Filename  string        `bson:"filename" json:"filename"`
	Kind      ServiceKind   `bson:"kind" json:"kind"`
	Status    ServiceStatus `bson:"status" json:"status"`
	SpecKey   string        `bson:"spec_key" json:"spec_key"`
	Seed      int64         `bson:"seed" json:"seed"`
	Mode      deploy.Mode   `bson:"mode,omitempty" json:"mode,omitempty"`
	URL       string        `bson:"url,omitempty" json:"url,omitempty"`
	Port      int           `bson:"port,omitempty" json:"port,omitempty"`
	Image     string        `bson:"image,omitempty" json:"image,omitempty"`
	Container string        `bson:"container,omitempty" json:"container,omitempty"`
	Error     string        `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at" json:"updated_at"`
}

var (
	generatedServiceIDKey        = bsonutil.MustHaveTag(GeneratedService{}, "ID")
	generatedServiceStatusKey    = bsonutil.MustHaveTag(GeneratedService{}, "Status")
	generatedServiceModeKey      = bsonutil.MustHaveTag(GeneratedService{}, "Mode")
	generatedServiceURLKey       = bsonutil.MustHaveTag(GeneratedService{}, "URL")
	generatedServicePortKey      = bsonutil.MustHaveTag(GeneratedService{}, "Port")
	generatedServiceImageKey     = bsonutil.MustHaveTag(GeneratedService{}, "Image")
	generatedServiceContainerKey = bsonutil.MustHaveTag(GeneratedService{}, "Container")
	generatedServiceErrorKey     = bsonutil.MustHaveTag(GeneratedService{}, "Error")
	generatedServiceCreatedAtKey = bsonutil.MustHaveTag(GeneratedService{}, "CreatedAt")
	generatedServiceUpdatedAtKey = bsonutil.MustHaveTag(GeneratedService{}, "UpdatedAt")
)

// NewGeneratedService returns a pending record with a fresh id.
func NewGeneratedService(name, filename string, kind ServiceKind, seed int64) *GeneratedService {
	id := uuid.New().String()
	now := time.Now().UTC().Truncate(time.Millisecond)
	if name == "" {
		name = filename
	}
	return &GeneratedService{
		ID:        id,
		Name:      name,
		Filename:  filename,
		Kind:      kind,
		Status:    StatusPending,
		SpecKey:   ArtifactKey(id, filename),
		Seed:      seed,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *GeneratedService) Validate() error {
	if s.ID == "" {
		return errors.New("generated service must have an id")
	}
	if s.SpecKey == "" {
		return errors.New("generated service must reference its specification")
	}
	return errors.WithStack(s.Status.Validate())
}

// Deployment returns the deployment described by the record.
func (s *GeneratedService) Deployment() deploy.Deployment {
	return deploy.Deployment{
		ID:        s.ID,
		Mode:      s.Mode,
		URL:       s.URL,
		Port:      s.Port,
		Image:     s.Image,
		Container: s.Container,
	}
}

// StatusUpdate changes the lifecycle state of a service. A nil Deployment
// leaves the deployment fields as they are.
type StatusUpdate struct {
	Status     ServiceStatus
	Deployment *deploy.Deployment
	Error      string
}

func (u StatusUpdate) apply(s *GeneratedService, now time.Time) {
	s.Status = u.Status
	s.Error = u.Error
	s.UpdatedAt = now
	if u.Deployment != nil {
		s.Mode = u.Deployment.Mode
		s.URL = u.Deployment.URL
		s.Port = u.Deployment.Port
		s.Image = u.Deployment.Image
		s.Container = u.Deployment.Container
	}
}
