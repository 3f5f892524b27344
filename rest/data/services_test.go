package data

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Nikpro200125/orchestrator"
	dbModel "github.com/Nikpro200125/orchestrator/model"
	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/utility"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func readTestFile(t *testing.T, path string) []byte {
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func statusCode(err error) int {
	resp, ok := errors.Cause(err).(gimlet.ErrorResponse)
	if !ok {
		return 0
	}
	return resp.StatusCode
}

type ServiceConnectorSuite struct {
	ctx    context.Context
	cancel context.CancelFunc
	env    orchestrator.Environment
	sc     Connector

	petstore []byte
	shop     []byte

	suite.Suite
}

func TestServiceConnectorSuiteDB(t *testing.T) {
	suite.Run(t, new(ServiceConnectorSuite))
}

func (s *ServiceConnectorSuite) SetupSuite() {
	s.petstore = readTestFile(s.T(), "../../openapi/testdata/petstore.yaml")
	s.shop = readTestFile(s.T(), "../../libsl/testdata/shop.lsl")
}

func (s *ServiceConnectorSuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	dir := s.T().TempDir()

	var err error
	s.env, err = orchestrator.NewEnvironment(s.ctx, "data-test", &orchestrator.Configuration{
		BoltPath:       filepath.Join(dir, "registry.db"),
		ArtifactBucket: filepath.Join(dir, "artifacts"),
		NumWorkers:     2,
		PublicHost:     "127.0.0.1",
	})
	s.Require().NoError(err)

	s.sc, err = CreateDBConnector(s.ctx, s.env)
	s.Require().NoError(err)
}

func (s *ServiceConnectorSuite) TearDownTest() {
	s.NoError(s.env.Close(s.ctx))
	s.cancel()
}

func (s *ServiceConnectorSuite) TestGenerateOpenAPIService() {
	svc, err := s.sc.GenerateService(s.ctx, GenerateOptions{Filename: "petstore.yaml", Data: s.petstore, Seed: 5})
	s.Require().NoError(err)
	s.Equal("running", utility.FromStringPtr(svc.Status))
	s.Equal("random", utility.FromStringPtr(svc.Kind))
	s.Equal("petstore.yaml", utility.FromStringPtr(svc.Name))

	resp, err := http.Get(utility.FromStringPtr(svc.URL) + "/pets/1")
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	found, err := s.sc.FindServiceByID(s.ctx, utility.FromStringPtr(svc.ID))
	s.Require().NoError(err)
	s.Equal(svc.URL, found.URL)

	all, err := s.sc.FindServices(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *ServiceConnectorSuite) TestGenerateLibSLService() {
	svc, err := s.sc.GenerateService(s.ctx, GenerateOptions{Filename: "shop.lsl", Data: s.shop, Name: "shop"})
	s.Require().NoError(err)
	s.Equal("contracts", utility.FromStringPtr(svc.Kind))
	s.Equal("shop", utility.FromStringPtr(svc.Name))
	s.NotEmpty(utility.FromStringPtr(svc.URL))
}

func (s *ServiceConnectorSuite) TestGenerateAsync() {
	svc, err := s.sc.GenerateService(s.ctx, GenerateOptions{Filename: "petstore.yaml", Data: s.petstore, Async: true})
	s.Require().NoError(err)
	s.Equal("pending", utility.FromStringPtr(svc.Status))

	id := utility.FromStringPtr(svc.ID)
	s.Eventually(func() bool {
		found, err := s.sc.FindServiceByID(s.ctx, id)
		return err == nil && utility.FromStringPtr(found.Status) == "running"
	}, 10*time.Second, 20*time.Millisecond)
}

func (s *ServiceConnectorSuite) TestGenerateRejectsInvalidInput() {
	for name, opts := range map[string]GenerateOptions{
		"Empty":          {Filename: "empty.yaml", Data: []byte("  ")},
		"BrokenOpenAPI":  {Filename: "broken.yaml", Data: []byte("openapi: [")},
		"BrokenLibSL":    {Filename: "broken.lsl", Data: []byte("libsl \"1.0.0\";\nautomaton {")},
		"InvalidOpenAPI": {Filename: "invalid.json", Data: []byte(`{"openapi": "3.0.1"}`)},
	} {
		s.Run(name, func() {
			_, err := s.sc.GenerateService(s.ctx, opts)
			s.Require().Error(err)
			s.Equal(http.StatusBadRequest, statusCode(err))
		})
	}

	all, err := s.sc.FindServices(s.ctx)
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *ServiceConnectorSuite) TestRemoveService() {
	svc, err := s.sc.GenerateService(s.ctx, GenerateOptions{Filename: "petstore.yaml", Data: s.petstore})
	s.Require().NoError(err)

	removed, err := s.sc.RemoveServiceByID(s.ctx, utility.FromStringPtr(svc.ID))
	s.Require().NoError(err)
	s.Equal("removed", utility.FromStringPtr(removed.Status))
	s.Empty(utility.FromStringPtr(removed.URL))

	_, err = http.Get(utility.FromStringPtr(svc.URL) + "/pets/1")
	s.Error(err)
}

func (s *ServiceConnectorSuite) TestMissingService() {
	_, err := s.sc.FindServiceByID(s.ctx, "missing")
	s.Equal(http.StatusNotFound, statusCode(err))
	_, err = s.sc.RemoveServiceByID(s.ctx, "missing")
	s.Equal(http.StatusNotFound, statusCode(err))
}

func (s *ServiceConnectorSuite) TestConvert() {
	out, err := s.sc.ConvertSpecification(s.ctx, "shop.lsl", s.shop)
	s.Require().NoError(err)
	s.Contains(string(out), "openapi: 3.0.1")
	s.Contains(string(out), "paths:")

	_, err = s.sc.ConvertSpecification(s.ctx, "petstore.yaml", s.petstore)
	s.Equal(http.StatusBadRequest, statusCode(err))
}

func TestMockConnector(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	petstore := readTestFile(t, "../../openapi/testdata/petstore.yaml")
	mc := &MockConnector{DeployURL: "http://localhost:1234"}

	svc, err := mc.GenerateService(ctx, GenerateOptions{Filename: "petstore.yaml", Data: petstore})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:1234", utility.FromStringPtr(svc.URL))
	assert.Equal(t, string(dbModel.StatusRunning), utility.FromStringPtr(svc.Status))

	async, err := mc.GenerateService(ctx, GenerateOptions{Filename: "petstore.yaml", Data: petstore, Async: true})
	require.NoError(t, err)
	assert.Equal(t, string(dbModel.StatusPending), utility.FromStringPtr(async.Status))

	all, err := mc.FindServices(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	removed, err := mc.RemoveServiceByID(ctx, utility.FromStringPtr(svc.ID))
	require.NoError(t, err)
	assert.Equal(t, string(dbModel.StatusRemoved), utility.FromStringPtr(removed.Status))

	mc.DeployError = errors.New("docker build failed")
	_, err = mc.GenerateService(ctx, GenerateOptions{Filename: "petstore.yaml", Data: petstore})
	assert.Equal(t, http.StatusInternalServerError, statusCode(err))

	_, err = mc.FindServiceByID(ctx, "missing")
	assert.Equal(t, http.StatusNotFound, statusCode(err))
}
