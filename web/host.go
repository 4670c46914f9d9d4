package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gocrud/modular/logging"
)

// Host Web 主机，实现 hosting.HostedService
type Host struct {
	builder *ApplicationBuilder
	server  *http.Server
	logger  logging.Logger

	mu    sync.RWMutex
	addr  string
	ready chan struct{}
}

func newHost(b *ApplicationBuilder) *Host {
	return &Host{
		builder: b,
		server:  &http.Server{Handler: b.engine},
		logger:  b.logger,
		ready:   make(chan struct{}),
	}
}

// Name 托管服务名称
func (h *Host) Name() string {
	return "web"
}

// Address 获取监听地址 (e.g., "[::]:50234")
// 仅在开始监听后有效
func (h *Host) Address() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.addr
}

// Ready 开始监听后关闭
func (h *Host) Ready() <-chan struct{} {
	return h.ready
}

// Start 启动 Web 主机
// 此方法会阻塞，直到服务退出
func (h *Host) Start(ctx context.Context) error {
	// 延迟到容器构建完成后再解析控制器
	if err := h.mapControllers(); err != nil {
		return fmt.Errorf("web: failed to map controllers: %w", err)
	}

	addr := fmt.Sprintf(":%d", h.builder.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("web: failed to listen on %s: %w", addr, err)
	}

	h.mu.Lock()
	h.addr = ln.Addr().String()
	h.mu.Unlock()
	close(h.ready)

	h.logger.Info("Web host started", logging.F("address", h.Address()))

	// Serve 会一直阻塞直到 Shutdown 被调用或发生错误
	if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		h.logger.Error("Web host error", logging.Err(err))
		return err
	}
	return nil
}

// Stop 优雅关闭，等待进行中的请求完成或 ctx 到期
func (h *Host) Stop(ctx context.Context) error {
	h.logger.Info("Stopping web host")

	if err := h.server.Shutdown(ctx); err != nil {
		h.logger.Error("Failed to shutdown web host gracefully", logging.Err(err))
		return err
	}

	h.logger.Info("Web host stopped")
	return nil
}

// mapControllers 从容器解析并注册控制器
func (h *Host) mapControllers() error {
	for _, typ := range h.builder.controllerTypes {
		instance, err := h.builder.services.Get(typ)
		if err != nil {
			return fmt.Errorf("failed to resolve controller %v: %w", typ, err)
		}

		ctrl, ok := instance.(Controller)
		if !ok {
			return fmt.Errorf("instance %v does not implement web.Controller interface", typ)
		}

		ctrl.MountRoutes(h.builder.engine)
		h.logger.Debug("Mapped controller routes", logging.F("controller", typ.String()))
	}
	return nil
}
