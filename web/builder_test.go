package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/modular/di"
	"github.com/gocrud/modular/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------- Mock Controllers ----------------

// SimpleController 普通控制器
type SimpleController struct{}

func (c *SimpleController) MountRoutes(router gin.IRouter) {
	router.GET("/simple", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "simple")
	})
}

// DepService 模拟依赖服务
type DepService struct {
	Value string
}

// ControllerWithDep 构造函数注入
type ControllerWithDep struct {
	Svc *DepService
}

func NewControllerWithDep(svc *DepService) *ControllerWithDep {
	return &ControllerWithDep{Svc: svc}
}

func (c *ControllerWithDep) MountRoutes(router gin.IRouter) {
	router.GET("/dep", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, c.Svc.Value)
	})
}

// ControllerWithTag 字段注入
type ControllerWithTag struct {
	Svc *DepService `di:""`
}

func (c *ControllerWithTag) MountRoutes(router gin.IRouter) {
	router.GET("/tag", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "tag:"+c.Svc.Value)
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	h.ServeHTTP(w, req)
	return w
}

// ---------------- Tests ----------------

func TestApplicationBuilder_AddControllers(t *testing.T) {
	container := di.NewContainer()
	di.Register[*DepService](container, di.WithValue(&DepService{Value: "injected-value"}))

	builder := NewApplicationBuilder(container, logging.NewNopFactory().CreateLogger("web"))
	require.NoError(t, builder.AddControllers(NewControllerWithDep, &ControllerWithTag{}, &SimpleController{}))

	host := builder.Build()
	require.NoError(t, container.Build())
	require.NoError(t, host.mapControllers())

	w := get(t, builder, "/simple")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "simple", w.Body.String())

	assert.Equal(t, "injected-value", get(t, builder, "/dep").Body.String())
	assert.Equal(t, "tag:injected-value", get(t, builder, "/tag").Body.String())
}

func TestApplicationBuilder_DuplicateController(t *testing.T) {
	builder := NewApplicationBuilder(di.NewContainer(), logging.NewNopFactory().CreateLogger("web"))

	require.NoError(t, builder.AddControllers(NewControllerWithDep))
	err := builder.AddControllers(NewControllerWithDep)
	assert.ErrorIs(t, err, di.ErrAlreadyRegistered)
}

func TestApplicationBuilder_RoutesAndProperties(t *testing.T) {
	builder := NewApplicationBuilder(di.NewContainer(), logging.NewNopFactory().CreateLogger("web"))

	var hits []string
	builder.Use(func(c *gin.Context) {
		hits = append(hits, c.Request.URL.Path)
		c.Next()
	})
	builder.Get("/a", func(c *gin.Context) { c.String(http.StatusOK, "a") })
	builder.Map(http.MethodPatch, "/p", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	builder.Group("/api").GET("/b", func(c *gin.Context) { c.String(http.StatusOK, "b") })
	builder.MapControllers(&SimpleController{})

	assert.Equal(t, "a", get(t, builder, "/a").Body.String())
	assert.Equal(t, "b", get(t, builder, "/api/b").Body.String())
	assert.Equal(t, "simple", get(t, builder, "/simple").Body.String())

	w := httptest.NewRecorder()
	builder.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/p", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"/a", "/api/b", "/simple", "/p"}, hits)

	builder.SetProperty("tenant", "acme")
	v, ok := builder.Property("tenant")
	assert.True(t, ok)
	assert.Equal(t, "acme", v)

	props := builder.Properties()
	props["tenant"] = "changed"
	v, _ = builder.Property("tenant")
	assert.Equal(t, "acme", v)

	assert.Equal(t, DefaultPort, builder.Port())
	assert.Equal(t, 0, builder.UsePort(0).Port())
}

type lineWriter struct {
	mu  sync.Mutex
	out []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.out = append(w.out, p...)
	return len(p), nil
}

func (w *lineWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return string(w.out)
}

func TestRequestLogger(t *testing.T) {
	out := &lineWriter{}
	logger := logging.NewLoggingBuilder().
		AddConsole(logging.ConsoleLoggerOptions{Output: out}).
		Build().
		CreateLogger("http")

	builder := NewApplicationBuilder(di.NewContainer(), logger)
	builder.Use(RequestLogger(logger))
	builder.Get("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	builder.Get("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	get(t, builder, "/ok")
	get(t, builder, "/fail")
	get(t, builder, "/missing")

	logs := out.String()
	assert.Contains(t, logs, "INFO [http] HTTP request {method=GET, path=/ok, status=200")
	assert.Contains(t, logs, "ERROR [http] HTTP request {method=GET, path=/fail, status=500")
	assert.Contains(t, logs, "WARN [http] HTTP request {method=GET, path=/missing, status=404")
}

func TestHealthHandler(t *testing.T) {
	builder := NewApplicationBuilder(di.NewContainer(), logging.NewNopFactory().CreateLogger("web"))
	builder.Get("/health/up", HealthHandler("up", func(context.Context) error { return nil }))
	builder.Get("/health/down", HealthHandler("down", func(context.Context) error { return errors.New("refused") }))

	w := get(t, builder, "/health/up")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"name":"up","status":"healthy"}`, w.Body.String())

	w = get(t, builder, "/health/down")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"name":"down","status":"unhealthy","error":"refused"}`, w.Body.String())
}

func TestHost_StartStop(t *testing.T) {
	container := di.NewContainer()
	builder := NewApplicationBuilder(container, logging.NewNopFactory().CreateLogger("web"))
	builder.UsePort(0)
	require.NoError(t, builder.AddControllers(&SimpleController{}))
	require.NoError(t, container.Build())

	host := builder.Build()
	assert.Equal(t, "web", host.Name())

	done := make(chan error, 1)
	go func() { done <- host.Start(context.Background()) }()

	select {
	case <-host.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("host did not start listening")
	}
	require.NotEmpty(t, host.Address())

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + host.Address() + "/simple")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "simple", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, host.Stop(ctx))
	assert.NoError(t, <-done)
}
