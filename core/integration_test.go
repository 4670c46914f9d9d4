package core_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/modular/config"
	"github.com/gocrud/modular/core"
	"github.com/gocrud/modular/di"
	"github.com/gocrud/modular/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// TestService 模拟业务服务
type TestService struct {
	DB     *gorm.DB             `di:""`
	Config config.Configuration `di:""`
}

func (s *TestService) GetAppName() string {
	if s.Config == nil {
		return "no-config"
	}
	return s.Config.Get("app:name")
}

// TestController 模拟控制器
type TestController struct {
	Service *TestService
}

// NewTestController 使用构造函数注入
func NewTestController(svc *TestService) *TestController {
	return &TestController{Service: svc}
}

func (c *TestController) MountRoutes(r gin.IRouter) {
	r.GET("/ping", func(ctx *gin.Context) {
		name := "unknown"
		if c.Service != nil {
			name = c.Service.GetAppName()
		}
		if c.Service != nil && c.Service.DB == nil {
			name += "-nodb"
		}
		ctx.String(http.StatusOK, "pong: "+name)
	})
}

// healthModule 在初始化阶段映射健康检查
type healthModule struct{}

func (m *healthModule) Name() string { return "health" }
func (m *healthModule) OnApplicationInitialization(ctx *core.ApplicationInitializationContext) error {
	builder, err := core.GetApplicationBuilderOrNil(ctx)
	if err != nil || builder == nil {
		return err
	}
	builder.Get("/health", web.HealthHandler("app", func(context.Context) error { return nil }))
	return nil
}

func TestIntegration(t *testing.T) {
	t.Setenv("TEST_APP__NAME", "IntegrationTest")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	var pipeline *web.ApplicationBuilder
	app, err := quietBuilder().
		ConfigureConfiguration(func(b *config.ConfigurationBuilder) {
			b.AddInMemory(map[string]any{"Web": map[string]any{"Port": 0}})
			b.AddEnvironmentVariables("TEST_")
		}).
		ConfigureServices(func(ctx *core.ServiceConfigurationContext) error {
			di.Register[*gorm.DB](ctx.Container(), di.WithValue(db))
			di.Register[*TestService](ctx.Container())
			return nil
		}).
		UseWeb(func(b *web.ApplicationBuilder) error {
			pipeline = b
			return b.AddControllers(NewTestController)
		}).
		AddModule(&healthModule{}).
		Build()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.RunAsync(context.Background()) }()

	host := pipeline.Build()
	select {
	case <-host.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("web host did not start")
	}
	addr := host.Address()
	require.NotEmpty(t, addr)

	get := func(path string) (int, string) {
		resp, err := http.Get(fmt.Sprintf("http://%s%s", addr, path))
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, body := get("/ping")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pong: IntegrationTest", body)

	code, body = get("/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "healthy")

	require.NoError(t, app.Stop(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("RunAsync did not return")
	}
}

// TestWorker 托管服务测试
type TestWorker struct {
	Started chan struct{}
	Stopped chan struct{}
	StopCh  chan struct{}
}

func (w *TestWorker) Start(ctx context.Context) error {
	close(w.Started)
	<-w.StopCh
	return nil
}

func (w *TestWorker) Stop(ctx context.Context) error {
	close(w.StopCh)
	time.Sleep(10 * time.Millisecond)
	close(w.Stopped)
	return nil
}

func TestHostedService(t *testing.T) {
	worker := &TestWorker{
		Started: make(chan struct{}),
		Stopped: make(chan struct{}),
		StopCh:  make(chan struct{}),
	}

	app, err := quietBuilder().
		ConfigureServices(func(ctx *core.ServiceConfigurationContext) error {
			core.RegisterHostedService[*TestWorker](ctx, di.WithValue(worker))
			return nil
		}).
		Build()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.RunAsync(context.Background()) }()

	select {
	case <-worker.Started:
	case <-time.After(time.Second):
		t.Fatal("worker should be started")
	}

	require.NoError(t, app.Stop(context.Background()))

	select {
	case <-worker.Stopped:
	case <-time.After(time.Second):
		t.Fatal("worker should be stopped")
	}
	assert.NoError(t, <-done)
}
