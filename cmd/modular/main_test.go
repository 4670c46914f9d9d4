package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gocrud/modular/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvCommand(t *testing.T) {
	file := filepath.Join(t.TempDir(), "appsettings.yaml")
	require.NoError(t, os.WriteFile(file, []byte("logging:\n  level: warn\n"), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"env", "--env", "Staging", "--config", file})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "Environment:     Staging")
	assert.Contains(t, out.String(), "Application:     modular")
	assert.Contains(t, out.String(), "Logging:Level:   warn")
}

func TestEnvCommand_FromVariables(t *testing.T) {
	t.Setenv("MODULAR_ENVIRONMENT", "Development")

	app, err := newBuilder("", "", false).Build()
	require.NoError(t, err)
	defer app.Shutdown(context.Background())

	assert.True(t, app.Environment().IsDevelopment())
}

func TestServeBuilder_InfoEndpoint(t *testing.T) {
	t.Setenv("MODULAR_LOGGING__LEVEL", "error")

	app, err := newServeBuilder("Testing", "", false, 0).Build()
	require.NoError(t, err)
	require.NoError(t, app.Initialize(context.Background()))
	defer app.Shutdown(context.Background())

	ctx := core.NewApplicationInitializationContext(context.Background(), app.Services())
	builder := core.MustGetApplicationBuilder(ctx)
	assert.Equal(t, 0, builder.Port())

	w := httptest.NewRecorder()
	builder.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/info", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Testing", body["environment"])
	assert.Equal(t, app.Info().InstanceID, body["instance_id"])

	// 调度器未启动
	w = httptest.NewRecorder()
	builder.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/cron", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
