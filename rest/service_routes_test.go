package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/Nikpro200125/orchestrator"
	dbModel "github.com/Nikpro200125/orchestrator/model"
	"github.com/Nikpro200125/orchestrator/rest/data"
	"github.com/Nikpro200125/orchestrator/rest/model"
	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/utility"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

func newUploadRequest(path string, req GenerateRequest, async bool) (*http.Request, error) {
	body, contentType, err := req.form(async)
	if err != nil {
		return nil, err
	}
	r, err := http.NewRequest(http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	r.Header.Set("Content-Type", contentType)
	return r, nil
}

func errorStatus(err error) int {
	resp, ok := errors.Cause(err).(gimlet.ErrorResponse)
	if !ok {
		return 0
	}
	return resp.StatusCode
}

type serviceHandlerSuite struct {
	sc data.MockConnector
	rh map[string]gimlet.RouteHandler

	petstore []byte
	shop     []byte

	suite.Suite
}

func TestServiceHandlerSuite(t *testing.T) {
	suite.Run(t, new(serviceHandlerSuite))
}

func (s *serviceHandlerSuite) SetupSuite() {
	var err error
	s.petstore, err = os.ReadFile("../openapi/testdata/petstore.yaml")
	s.Require().NoError(err)
	s.shop, err = os.ReadFile("../libsl/testdata/shop.lsl")
	s.Require().NoError(err)
}

func (s *serviceHandlerSuite) SetupTest() {
	s.sc = data.MockConnector{
		DeployURL: "http://127.0.0.1:40001",
		CachedServices: map[string]dbModel.GeneratedService{
			"abc": {
				ID:       "abc",
				Name:     "pets",
				Filename: "petstore.yaml",
				Kind:     dbModel.KindRandom,
				Status:   dbModel.StatusRunning,
				URL:      "http://127.0.0.1:40000",
			},
		},
	}
	s.rh = map[string]gimlet.RouteHandler{
		"generate": makeGenerateService(&s.sc),
		"convert":  makeConvert(&s.sc),
		"list":     makeGetServices(&s.sc),
		"get":      makeGetServiceByID(&s.sc),
		"remove":   makeRemoveServiceByID(&s.sc),
		"status":   makeGetStatus(&s.sc, nil),
	}
}

func (s *serviceHandlerSuite) TestGenerateServiceSync() {
	rh := s.rh["generate"].Factory()
	r, err := newUploadRequest("/api/generate-service", GenerateRequest{Filename: "petstore.yaml", Data: s.petstore, Name: "pets", Seed: 3}, false)
	s.Require().NoError(err)
	s.Require().NoError(rh.Parse(context.TODO(), r))

	resp := rh.Run(context.TODO())
	s.Require().NotNil(resp)
	s.Equal(http.StatusOK, resp.Status())
	s.Equal("http://127.0.0.1:40001", resp.Data())
	s.Len(s.sc.CachedServices, 2)
}

func (s *serviceHandlerSuite) TestGenerateServiceAsync() {
	rh := s.rh["generate"].Factory()
	r, err := newUploadRequest("/api/generate-service", GenerateRequest{Filename: "shop.lsl", Data: s.shop}, true)
	s.Require().NoError(err)
	s.Require().NoError(rh.Parse(context.TODO(), r))

	resp := rh.Run(context.TODO())
	s.Require().NotNil(resp)
	s.Equal(http.StatusAccepted, resp.Status())
	ack, ok := resp.Data().(*model.APIGenerateResponse)
	s.Require().True(ok)
	s.Equal(string(dbModel.StatusPending), utility.FromStringPtr(ack.Status))
	s.Contains(s.sc.CachedServices, utility.FromStringPtr(ack.ID))
}

func (s *serviceHandlerSuite) TestGenerateServiceInvalidSpecification() {
	rh := s.rh["generate"].Factory()
	r, err := newUploadRequest("/api/generate-service", GenerateRequest{Filename: "broken.yaml", Data: []byte("openapi: [")}, false)
	s.Require().NoError(err)
	s.Require().NoError(rh.Parse(context.TODO(), r))

	resp := rh.Run(context.TODO())
	s.Require().NotNil(resp)
	s.Equal(http.StatusBadRequest, resp.Status())
	s.Len(s.sc.CachedServices, 1)
}

func (s *serviceHandlerSuite) TestGenerateServiceDeployFailure() {
	s.sc.DeployError = errors.New("docker build failed")
	rh := s.rh["generate"].Factory()
	r, err := newUploadRequest("/api/generate-service", GenerateRequest{Filename: "petstore.yaml", Data: s.petstore}, false)
	s.Require().NoError(err)
	s.Require().NoError(rh.Parse(context.TODO(), r))

	resp := rh.Run(context.TODO())
	s.Require().NotNil(resp)
	s.Equal(http.StatusInternalServerError, resp.Status())
}

func (s *serviceHandlerSuite) TestGenerateServiceParseErrors() {
	rh := s.rh["generate"].Factory()

	r := httptest.NewRequest(http.MethodPost, "/api/generate-service", nil)
	s.Equal(http.StatusBadRequest, errorStatus(rh.Parse(context.TODO(), r)))

	r, err := newUploadRequest("/api/generate-service?seed=abc", GenerateRequest{Filename: "petstore.yaml", Data: s.petstore}, false)
	s.Require().NoError(err)
	s.Equal(http.StatusBadRequest, errorStatus(rh.Parse(context.TODO(), r)))

	r, err = newUploadRequest("/api/generate-service?async=maybe", GenerateRequest{Filename: "petstore.yaml", Data: s.petstore}, false)
	s.Require().NoError(err)
	s.Equal(http.StatusBadRequest, errorStatus(rh.Parse(context.TODO(), r)))
}

func (s *serviceHandlerSuite) TestConvert() {
	rh := s.rh["convert"].Factory()
	r, err := newUploadRequest("/api/convert", GenerateRequest{Filename: "shop.lsl", Data: s.shop}, false)
	s.Require().NoError(err)
	s.Require().NoError(rh.Parse(context.TODO(), r))

	resp := rh.Run(context.TODO())
	s.Require().NotNil(resp)
	s.Equal(http.StatusOK, resp.Status())
	out, ok := resp.Data().(string)
	s.Require().True(ok)
	s.Contains(out, "openapi:")
	s.Contains(out, "paths:")
}

func (s *serviceHandlerSuite) TestConvertRejectsOpenAPI() {
	rh := s.rh["convert"].Factory()
	r, err := newUploadRequest("/api/convert", GenerateRequest{Filename: "petstore.yaml", Data: s.petstore}, false)
	s.Require().NoError(err)
	s.Require().NoError(rh.Parse(context.TODO(), r))

	resp := rh.Run(context.TODO())
	s.Require().NotNil(resp)
	s.Equal(http.StatusBadRequest, resp.Status())
}

func (s *serviceHandlerSuite) TestGetServices() {
	rh := s.rh["list"].Factory()
	s.Require().NoError(rh.Parse(context.TODO(), nil))

	resp := rh.Run(context.TODO())
	s.Require().NotNil(resp)
	s.Equal(http.StatusOK, resp.Status())
	services, ok := resp.Data().([]model.APIGeneratedService)
	s.Require().True(ok)
	s.Require().Len(services, 1)
	s.Equal("abc", utility.FromStringPtr(services[0].ID))
}

func (s *serviceHandlerSuite) TestGetServiceByID() {
	rh := s.rh["get"].Factory().(*serviceGetByIDHandler)
	r, err := http.NewRequest(http.MethodGet, "/api/services/abc", nil)
	s.Require().NoError(err)
	r = mux.SetURLVars(r, map[string]string{"id": "abc"})
	s.Require().NoError(rh.Parse(context.TODO(), r))
	s.Equal("abc", rh.id)

	resp := rh.Run(context.TODO())
	s.Require().NotNil(resp)
	s.Equal(http.StatusOK, resp.Status())
	svc, ok := resp.Data().(*model.APIGeneratedService)
	s.Require().True(ok)
	s.Equal("http://127.0.0.1:40000", utility.FromStringPtr(svc.URL))

	rh.id = "missing"
	resp = rh.Run(context.TODO())
	s.Require().NotNil(resp)
	s.Equal(http.StatusNotFound, resp.Status())
}

func (s *serviceHandlerSuite) TestRemoveServiceByID() {
	rh := s.rh["remove"].Factory().(*serviceRemoveByIDHandler)
	rh.id = "abc"

	resp := rh.Run(context.TODO())
	s.Require().NotNil(resp)
	s.Equal(http.StatusOK, resp.Status())
	svc, ok := resp.Data().(*model.APIGeneratedService)
	s.Require().True(ok)
	s.Equal(string(dbModel.StatusRemoved), utility.FromStringPtr(svc.Status))
	s.Equal(dbModel.StatusRemoved, s.sc.CachedServices["abc"].Status)

	rh.id = "missing"
	resp = rh.Run(context.TODO())
	s.Require().NotNil(resp)
	s.Equal(http.StatusNotFound, resp.Status())
}

func (s *serviceHandlerSuite) TestStatus() {
	rh := s.rh["status"].Factory()
	s.Require().NoError(rh.Parse(context.TODO(), nil))

	resp := rh.Run(context.TODO())
	s.Require().NotNil(resp)
	s.Equal(http.StatusOK, resp.Status())
	status, ok := resp.Data().(*StatusResponse)
	s.Require().True(ok)
	s.Equal(orchestrator.BuildRevision, status.Revision)
	s.Equal(1, status.Services)
	s.Equal(1, status.ByStatus[string(dbModel.StatusRunning)])
}

func TestRateLimitMiddleware(t *testing.T) {
	m := NewRateLimitMiddleware(0.001, 2)
	calls := 0
	next := func(rw http.ResponseWriter, r *http.Request) {
		calls++
		rw.WriteHeader(http.StatusOK)
	}

	codes := []int{}
	for i := 0; i < 3; i++ {
		rw := httptest.NewRecorder()
		m.ServeHTTP(rw, httptest.NewRequest(http.MethodPost, "/api/generate-service", nil), next)
		codes = append(codes, rw.Code)
	}

	assert.Equal(t, 2, calls)
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestServiceValidate(t *testing.T) {
	assert.Error(t, (&Service{}).Validate())

	s := &Service{}
	_, err := s.Handler()
	assert.Error(t, err)
}
