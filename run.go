package modular

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gocrud/modular/core"
)

// Run 构建并运行应用，直到收到 SIGINT/SIGTERM 或托管服务失败
func Run(builder *core.ApplicationBuilder) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, builder)
}

// RunContext 构建并运行应用，直到 ctx 结束
func RunContext(ctx context.Context, builder *core.ApplicationBuilder) error {
	app, err := builder.Build()
	if err != nil {
		return err
	}
	return app.RunAsync(ctx)
}
