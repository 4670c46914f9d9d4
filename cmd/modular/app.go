package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/modular/config"
	"github.com/gocrud/modular/core"
	"github.com/gocrud/modular/di"
	"github.com/gocrud/modular/hosting"
	"github.com/gocrud/modular/logging"
	"github.com/gocrud/modular/modules/cron"
	"github.com/gocrud/modular/web"
)

// EnvironmentPrefix 环境变量前缀，MODULAR_WEB__PORT 对应 web:port
const EnvironmentPrefix = "MODULAR_"

// newBuilder 按命令行参数创建应用构建器
func newBuilder(env, file string, zapLogs bool) *core.ApplicationBuilder {
	if env == "" {
		env = os.Getenv(EnvironmentPrefix + "ENVIRONMENT")
	}
	b := core.NewApplicationBuilder().
		UseEnvironment(env, hosting.WithApplicationName("modular"))

	b.ConfigureConfiguration(func(cb *config.ConfigurationBuilder) {
		if file != "" {
			switch strings.ToLower(filepath.Ext(file)) {
			case ".yaml", ".yml":
				cb.AddYamlFile(file)
			default:
				cb.AddJsonFile(file)
			}
		}
		cb.AddEnvironmentVariables(EnvironmentPrefix)
	})

	if zapLogs {
		b.ConfigureLogging(func(lb *logging.LoggingBuilder) {
			lb.AddZap(logging.ZapOptions{Encoding: "json"})
		})
	}
	return b
}

// infoModule 映射 /info，报告运行环境与实例信息
type infoModule struct{}

func (infoModule) Name() string { return "info" }

func (infoModule) OnApplicationInitialization(ctx *core.ApplicationInitializationContext) error {
	builder, err := core.GetApplicationBuilderOrNil(ctx)
	if err != nil || builder == nil {
		return err
	}
	env, err := core.GetEnvironment(ctx)
	if err != nil {
		return err
	}
	loggerFactory, err := core.GetLoggerFactory(ctx)
	if err != nil {
		return err
	}
	info, err := di.GetRequiredService[*core.ApplicationInfo](ctx.ServiceProvider)
	if err != nil {
		return fmt.Errorf("resolve application info: %w", err)
	}

	builder.Use(web.RequestLogger(loggerFactory.CreateLogger("Http")))

	builder.Get("/info", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"application":  info.Name,
			"instance_id":  info.InstanceID,
			"built_at":     info.BuiltAt,
			"environment":  env.Name(),
			"content_root": env.ContentRootPath(),
		})
	})
	return nil
}

// newServeBuilder 组装 serve 命令使用的应用，port 小于 0 表示沿用配置
func newServeBuilder(env, file string, zapLogs bool, port int) *core.ApplicationBuilder {
	b := newBuilder(env, file, zapLogs)
	b.UseWeb(func(wb *web.ApplicationBuilder) error {
		// 未指定端口时使用配置 web:port
		if port >= 0 {
			wb.UsePort(port)
		}
		return nil
	})
	b.AddModule(
		infoModule{},
		cron.NewModule(
			cron.AddJob("@every 1m", "heartbeat", func(logger logging.Logger) {
				logger.Debug("heartbeat")
			}),
		),
	)
	return b
}
