package model

import (
	"time"

	"github.com/Nikpro200125/orchestrator/deploy"
	dbmodel "github.com/Nikpro200125/orchestrator/model"
	"github.com/evergreen-ci/utility"
	"github.com/pkg/errors"
)

// APIGeneratedService describes a generated mock service.
type APIGeneratedService struct {
	ID        *string `json:"id"`
	Name      *string `json:"name"`
	Filename  *string `json:"filename"`
	Kind      *string `json:"kind"`
	Status    *string `json:"status"`
	URL       *string `json:"url"`
	Mode      *string `json:"mode"`
	Port      int     `json:"port"`
	Image     *string `json:"image"`
	Container *string `json:"container"`
	Error     *string `json:"error"`
	Seed      int64   `json:"seed"`
	CreatedAt APITime `json:"created_at"`
	UpdatedAt APITime `json:"updated_at"`
}

// Import transforms a GeneratedService object into an APIGeneratedService
// object.
func (a *APIGeneratedService) Import(i interface{}) error {
	var svc dbmodel.GeneratedService
	switch s := i.(type) {
	case dbmodel.GeneratedService:
		svc = s
	case *dbmodel.GeneratedService:
		if s == nil {
			return errors.New("cannot import a nil service")
		}
		svc = *s
	default:
		return errors.Errorf("incorrect type %T when importing a generated service", i)
	}

	a.ID = utility.ToStringPtr(svc.ID)
	a.Name = utility.ToStringPtr(svc.Name)
	a.Filename = utility.ToStringPtr(svc.Filename)
	a.Kind = utility.ToStringPtr(string(svc.Kind))
	a.Status = utility.ToStringPtr(string(svc.Status))
	a.URL = utility.ToStringPtr(svc.URL)
	a.Mode = utility.ToStringPtr(string(svc.Mode))
	a.Port = svc.Port
	a.Image = utility.ToStringPtr(svc.Image)
	a.Container = utility.ToStringPtr(svc.Container)
	a.Error = utility.ToStringPtr(svc.Error)
	a.Seed = svc.Seed
	a.CreatedAt = NewTime(svc.CreatedAt)
	a.UpdatedAt = NewTime(svc.UpdatedAt)

	return nil
}

// Export returns the GeneratedService the API model describes.
func (a *APIGeneratedService) Export() (interface{}, error) {
	return dbmodel.GeneratedService{
		ID:        utility.FromStringPtr(a.ID),
		Name:      utility.FromStringPtr(a.Name),
		Filename:  utility.FromStringPtr(a.Filename),
		Kind:      dbmodel.ServiceKind(utility.FromStringPtr(a.Kind)),
		Status:    dbmodel.ServiceStatus(utility.FromStringPtr(a.Status)),
		URL:       utility.FromStringPtr(a.URL),
		Mode:      deploy.Mode(utility.FromStringPtr(a.Mode)),
		Port:      a.Port,
		Image:     utility.FromStringPtr(a.Image),
		Container: utility.FromStringPtr(a.Container),
		Error:     utility.FromStringPtr(a.Error),
		Seed:      a.Seed,
		CreatedAt: time.Time(a.CreatedAt),
		UpdatedAt: time.Time(a.UpdatedAt),
	}, nil
}

// APIGenerateResponse acknowledges an asynchronous generate request.
type APIGenerateResponse struct {
	ID     *string `json:"id"`
	Status *string `json:"status"`
	URL    *string `json:"url,omitempty"`
}
