package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Nikpro200125/orchestrator/deploy"
	dbmodel "github.com/Nikpro200125/orchestrator/model"
	"github.com/evergreen-ci/utility"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportGeneratedService(t *testing.T) {
	created := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc := dbmodel.GeneratedService{
		ID:        "abc",
		Name:      "pets",
		Filename:  "petstore.yaml",
		Kind:      dbmodel.KindRandom,
		Status:    dbmodel.StatusRunning,
		Seed:      3,
		Mode:      deploy.ModeDocker,
		URL:       "http://localhost:49153",
		Port:      49153,
		Image:     "generated-api-service-1",
		Container: "brave_turing",
		CreatedAt: created,
		UpdatedAt: created.Add(time.Minute),
	}

	for name, in := range map[string]interface{}{
		"Value":   svc,
		"Pointer": &svc,
	} {
		t.Run(name, func(t *testing.T) {
			api := &APIGeneratedService{}
			require.NoError(t, api.Import(in))
			assert.Equal(t, "abc", utility.FromStringPtr(api.ID))
			assert.Equal(t, "running", utility.FromStringPtr(api.Status))
			assert.Equal(t, "random", utility.FromStringPtr(api.Kind))
			assert.Equal(t, "http://localhost:49153", utility.FromStringPtr(api.URL))
			assert.Equal(t, 49153, api.Port)
			assert.Equal(t, NewTime(created), api.CreatedAt)

			out, err := api.Export()
			require.NoError(t, err)
			assert.Equal(t, svc, out)
		})
	}

	t.Run("InvalidType", func(t *testing.T) {
		api := &APIGeneratedService{}
		assert.Error(t, api.Import("abc"))
		assert.Error(t, api.Import((*dbmodel.GeneratedService)(nil)))
	})
	t.Run("JSON", func(t *testing.T) {
		api := &APIGeneratedService{}
		require.NoError(t, api.Import(svc))
		data, err := json.Marshal(api)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"created_at":"2024-03-01T12:00:00.000Z"`)
		assert.Contains(t, string(data), `"status":"running"`)
	})
}
