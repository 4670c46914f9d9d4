package web

import (
	"fmt"
	"net/http"
	"reflect"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/modular/di"
	"github.com/gocrud/modular/logging"
)

// DefaultPort 未配置端口时使用的端口
const DefaultPort = 8080

// Controller 控制器接口
type Controller interface {
	// MountRoutes 注册路由
	MountRoutes(router gin.IRouter)
}

// ApplicationBuilder HTTP 请求管道构建器（基于 Gin）
// 在应用构建阶段创建，模块在初始化阶段通过它注册中间件和路由
type ApplicationBuilder struct {
	services        di.Container
	logger          logging.Logger
	engine          *gin.Engine
	port            int
	controllerTypes []reflect.Type

	hostOnce sync.Once
	host     *Host

	mu         sync.RWMutex
	properties map[string]any
}

// NewApplicationBuilder 创建请求管道构建器
// services 为应用的 DI 容器，用于在主机启动时解析控制器
func NewApplicationBuilder(services di.Container, logger logging.Logger) *ApplicationBuilder {
	// 设置 Gin 为发布模式（默认）
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	// 默认中间件：恢复 panic
	engine.Use(gin.Recovery())

	return &ApplicationBuilder{
		services:   services,
		logger:     logger,
		engine:     engine,
		port:       DefaultPort,
		properties: make(map[string]any),
	}
}

// ApplicationServices 返回应用的 DI 容器
func (b *ApplicationBuilder) ApplicationServices() di.Container {
	return b.services
}

// Properties 返回属性的副本
func (b *ApplicationBuilder) Properties() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]any, len(b.properties))
	for k, v := range b.properties {
		out[k] = v
	}
	return out
}

// SetProperty 设置模块间共享的属性
func (b *ApplicationBuilder) SetProperty(key string, value any) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.properties[key] = value
	return b
}

// Property 读取属性
func (b *ApplicationBuilder) Property(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.properties[key]
	return v, ok
}

// UsePort 设置端口，0 表示由系统分配
func (b *ApplicationBuilder) UsePort(port int) *ApplicationBuilder {
	b.port = port
	return b
}

// Port 返回配置的端口
func (b *ApplicationBuilder) Port() int {
	return b.port
}

// Use 使用全局中间件
func (b *ApplicationBuilder) Use(middleware ...gin.HandlerFunc) *ApplicationBuilder {
	b.engine.Use(middleware...)
	return b
}

// Map 注册任意方法的路由
func (b *ApplicationBuilder) Map(method, path string, handlers ...gin.HandlerFunc) *ApplicationBuilder {
	b.engine.Handle(method, path, handlers...)
	return b
}

// Get 注册 GET 路由
func (b *ApplicationBuilder) Get(path string, handlers ...gin.HandlerFunc) *ApplicationBuilder {
	return b.Map(http.MethodGet, path, handlers...)
}

// Post 注册 POST 路由
func (b *ApplicationBuilder) Post(path string, handlers ...gin.HandlerFunc) *ApplicationBuilder {
	return b.Map(http.MethodPost, path, handlers...)
}

// Put 注册 PUT 路由
func (b *ApplicationBuilder) Put(path string, handlers ...gin.HandlerFunc) *ApplicationBuilder {
	return b.Map(http.MethodPut, path, handlers...)
}

// Delete 注册 DELETE 路由
func (b *ApplicationBuilder) Delete(path string, handlers ...gin.HandlerFunc) *ApplicationBuilder {
	return b.Map(http.MethodDelete, path, handlers...)
}

// Group 创建路由组
func (b *ApplicationBuilder) Group(relativePath string, handlers ...gin.HandlerFunc) *gin.RouterGroup {
	return b.engine.Group(relativePath, handlers...)
}

// Static 服务静态文件
func (b *ApplicationBuilder) Static(relativePath, root string) *ApplicationBuilder {
	b.engine.Static(relativePath, root)
	return b
}

// NoRoute 处理 404
func (b *ApplicationBuilder) NoRoute(handlers ...gin.HandlerFunc) *ApplicationBuilder {
	b.engine.NoRoute(handlers...)
	return b
}

// MapControllers 立即挂载控制器实例的路由
func (b *ApplicationBuilder) MapControllers(controllers ...Controller) *ApplicationBuilder {
	for _, ctrl := range controllers {
		ctrl.MountRoutes(b.engine)
	}
	return b
}

// AddControllers 把控制器注册到 DI 容器，主机启动时解析并挂载
// 参数可以是构造函数（构造函数注入）或结构体指针（di 标签字段注入）
// 必须在容器 Build 之前调用
func (b *ApplicationBuilder) AddControllers(controllers ...any) error {
	for _, item := range controllers {
		typ, err := di.RegisterAuto(b.services, item)
		if err != nil {
			return fmt.Errorf("web: register controller %T: %w", item, err)
		}
		b.controllerTypes = append(b.controllerTypes, typ)
	}
	return nil
}

// Engine 获取 Gin 引擎（用于高级定制）
func (b *ApplicationBuilder) Engine() *gin.Engine {
	return b.engine
}

// ServeHTTP 让构建器可以直接用于 httptest
func (b *ApplicationBuilder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.engine.ServeHTTP(w, r)
}

// Build 构建 Web 主机，多次调用返回同一个主机
func (b *ApplicationBuilder) Build() *Host {
	b.hostOnce.Do(func() {
		b.host = newHost(b)
	})
	return b.host
}
