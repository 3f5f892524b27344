package main

import (
	"testing"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/stretchr/testify/assert"
)

func TestBuildApp(t *testing.T) {
	app := buildApp()
	assert.Equal(t, "orchestrator", app.Name)

	names := []string{}
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
	}
	assert.Equal(t, []string{"service", "mock", "convert", "client"}, names)
}

func TestLoggingSetup(t *testing.T) {
	assert.NoError(t, loggingSetup("orchestrator-test", "debug"))
	assert.Equal(t, level.Debug, grip.GetSender().Level().Threshold)

	assert.NoError(t, loggingSetup("orchestrator-test", "info"))
	assert.Equal(t, level.Info, grip.GetSender().Level().Threshold)
}
