package database_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gocrud/modular/config"
	"github.com/gocrud/modular/core"
	"github.com/gocrud/modular/di"
	"github.com/gocrud/modular/logging"
	"github.com/gocrud/modular/modules/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Name string
}

type MockDBService struct {
	Master *gorm.DB `di:"master"`
	Slave  *gorm.DB `di:"slave,?"`
}

func newBuilder(settings map[string]any) *core.ApplicationBuilder {
	return core.NewApplicationBuilder().
		UseEnvironment("Testing").
		ConfigureLogging(func(b *logging.LoggingBuilder) {
			b.AddConsole(logging.ConsoleLoggerOptions{Output: io.Discard})
		}).
		ConfigureConfiguration(func(b *config.ConfigurationBuilder) {
			b.AddInMemory(settings)
		})
}

func TestDatabaseModule_FromConfiguration(t *testing.T) {
	app, err := newBuilder(map[string]any{
		"Database": map[string]any{
			"Connections": map[string]any{
				"master": map[string]any{"driver": "sqlite", "dsn": ":memory:", "max_open_conns": "1"},
			},
		},
	}).
		AddModule(database.NewModule(
			database.WithConnection("master", database.AutoMigrate(&User{})),
		)).
		ConfigureServices(func(ctx *core.ServiceConfigurationContext) error {
			di.Register[*MockDBService](ctx.Container())
			return nil
		}).
		Build()
	require.NoError(t, err)

	var svc *MockDBService
	app.GetService(&svc)
	require.NotNil(t, svc.Master)
	assert.Nil(t, svc.Slave)

	// 自动迁移已经执行
	require.NoError(t, svc.Master.Create(&User{Name: "alice"}).Error)
	var count int64
	require.NoError(t, svc.Master.Model(&User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	sqlDB, err := svc.Master.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

	require.NoError(t, app.Shutdown(context.Background()))
	assert.Error(t, sqlDB.Ping())
}

func TestDatabaseModule_DefaultWithDialector(t *testing.T) {
	app, err := newBuilder(map[string]any{}).
		UseWeb().
		AddModule(database.NewModule(
			database.WithConnection("default", func(o *database.ConnectionOptions) {
				o.Dialector = sqlite.Open(":memory:")
				o.LogLevel = "silent"
			}),
		)).
		Build()
	require.NoError(t, err)
	require.NoError(t, app.Initialize(context.Background()))
	defer app.Shutdown(context.Background())

	db, err := di.Resolve[*gorm.DB](app.Services())
	require.NoError(t, err)
	named, err := di.ResolveNamed[*gorm.DB](app.Services(), "default")
	require.NoError(t, err)
	assert.Same(t, db, named)

	ctx := core.NewApplicationInitializationContext(context.Background(), app.Services())
	builder := core.MustGetApplicationBuilder(ctx)
	w := httptest.NewRecorder()
	builder.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/database", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestDatabaseModule_Errors(t *testing.T) {
	_, err := newBuilder(map[string]any{}).
		AddModule(database.NewModule(database.WithConnection("empty"))).
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn or dialector is required")

	_, err = newBuilder(map[string]any{
		"Database": map[string]any{
			"Connections": map[string]any{
				"pg": map[string]any{"driver": "postgres", "dsn": "host=localhost"},
			},
		},
	}).AddModule(database.NewModule()).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")

	_, err = newBuilder(map[string]any{}).
		AddModule(database.NewModule(database.WithConnection("noisy", func(o *database.ConnectionOptions) {
			o.DSN = ":memory:"
			o.LogLevel = "chatty"
		}))).
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown database log level")
}
