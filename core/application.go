package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/gocrud/modular/config"
	"github.com/gocrud/modular/di"
	"github.com/gocrud/modular/hosting"
	"github.com/gocrud/modular/logging"
	"github.com/gocrud/modular/web"
	"github.com/hashicorp/go-multierror"
)

// EnvironmentPrefix 未显式设置环境时，从 APP_ENVIRONMENT 读取
const EnvironmentPrefix = "APP_"

// Application 应用程序接口
type Application interface {
	// Initialize 依次执行模块的预初始化、初始化、后初始化，只执行一次
	Initialize(ctx context.Context) error
	Run() error
	RunAsync(ctx context.Context) error
	Stop(ctx context.Context) error
	// Shutdown 按模块加载的相反顺序执行关闭钩子，只执行一次
	Shutdown(ctx context.Context) error
	Services() di.Container
	Configuration() config.Configuration
	Logger() logging.Logger
	Environment() hosting.Environment
	Info() *ApplicationInfo
	Modules() []Module
	GetService(ptr any)
}

// ApplicationBuilder 应用程序构建器
type ApplicationBuilder struct {
	environmentName      string
	environmentOptions   []hosting.EnvironmentOption
	configBuilder        *config.ConfigurationBuilder
	loggingBuilder       *logging.LoggingBuilder
	serviceConfigurators []func(*ServiceConfigurationContext) error
	modules              []Module
	useWeb               bool
	webConfigurators     []func(*web.ApplicationBuilder) error
	shutdownTimeout      time.Duration
	taskCount            int
	mu                   sync.RWMutex
}

// NewApplicationBuilder 创建应用程序构建器
func NewApplicationBuilder() *ApplicationBuilder {
	return &ApplicationBuilder{
		configBuilder:   config.NewConfigurationBuilder(),
		loggingBuilder:  logging.NewLoggingBuilder(),
		shutdownTimeout: 30 * time.Second,
	}
}

// UseEnvironment 设置环境
func (b *ApplicationBuilder) UseEnvironment(name string, opts ...hosting.EnvironmentOption) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.environmentName = name
	b.environmentOptions = append(b.environmentOptions, opts...)
	return b
}

// ConfigureConfiguration 配置配置系统
func (b *ApplicationBuilder) ConfigureConfiguration(configure func(*config.ConfigurationBuilder)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		configure(b.configBuilder)
	}
	return b
}

// ConfigureLogging 配置日志系统
// 未添加任何提供者时默认使用控制台日志
func (b *ApplicationBuilder) ConfigureLogging(configure func(*logging.LoggingBuilder)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		configure(b.loggingBuilder)
	}
	return b
}

// ConfigureServices 配置服务，在所有模块的 ConfigureServices 之后执行
func (b *ApplicationBuilder) ConfigureServices(configure func(*ServiceConfigurationContext) error) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		b.serviceConfigurators = append(b.serviceConfigurators, configure)
	}
	return b
}

// AddModule 添加模块
// 模块未实现任何受支持的接口时 panic
func (b *ApplicationBuilder) AddModule(modules ...Module) *ApplicationBuilder {
	for _, m := range modules {
		if err := validateModule(m); err != nil {
			panic(err.Error())
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.modules = append(b.modules, modules...)
	return b
}

// UseWeb 启用 HTTP 主机
// configure 在容器构建之前执行，可以注册控制器、中间件和路由
func (b *ApplicationBuilder) UseWeb(configure ...func(*web.ApplicationBuilder) error) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.useWeb = true
	for _, c := range configure {
		if c != nil {
			b.webConfigurators = append(b.webConfigurators, c)
		}
	}
	return b
}

// AddOptions 注册配置选项（语法糖，简化配置选项注册）
// 使用示例: core.AddOptions[AppSetting](builder, "app")
func AddOptions[T any](b *ApplicationBuilder, section string) *ApplicationBuilder {
	return b.ConfigureServices(func(ctx *ServiceConfigurationContext) error {
		ConfigureOptions[T](ctx, section)
		return nil
	})
}

// AddTask 添加一个简单的后台任务
func (b *ApplicationBuilder) AddTask(task func(ctx context.Context) error) *ApplicationBuilder {
	b.mu.Lock()
	b.taskCount++
	name := fmt.Sprintf("task-%d", b.taskCount)
	b.mu.Unlock()

	return b.ConfigureServices(func(ctx *ServiceConfigurationContext) error {
		ctx.AddHostedService(&functionalService{name: name, task: task})
		return nil
	})
}

// functionalService 函数式托管服务
type functionalService struct {
	name string
	task func(ctx context.Context) error
}

func (f *functionalService) Name() string {
	return f.name
}

func (f *functionalService) Start(ctx context.Context) error {
	return f.task(ctx)
}

func (f *functionalService) Stop(ctx context.Context) error {
	return nil
}

// UseShutdownTimeout 设置关闭超时
func (b *ApplicationBuilder) UseShutdownTimeout(timeout time.Duration) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdownTimeout = timeout
	return b
}

func (b *ApplicationBuilder) buildEnvironment() hosting.Environment {
	if b.environmentName == "" {
		return hosting.EnvironmentFromVariables(EnvironmentPrefix, b.environmentOptions...)
	}
	return hosting.NewEnvironment(b.environmentName, b.environmentOptions...)
}

// Build 构建应用程序
// 框架服务在任何模块代码执行之前注册到容器
func (b *ApplicationBuilder) Build() (Application, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// 构建可重载的配置
	configuration, err := b.configBuilder.BuildReloadable()
	if err != nil {
		return nil, fmt.Errorf("app: build configuration: %w", err)
	}

	// 构建日志工厂
	if raw := configuration.Get("logging:level"); raw != "" {
		level, err := logging.ParseLevel(raw)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		b.loggingBuilder.SetMinimumLevel(level)
	}
	if !b.loggingBuilder.HasProviders() {
		b.loggingBuilder.AddConsole()
	}
	loggerFactory := b.loggingBuilder.Build()
	logger := loggerFactory.CreateLogger("Application")

	environment := b.buildEnvironment()
	info := newApplicationInfo(environment.ApplicationName())

	logger.Info("Building application",
		logging.F("environment", environment.Name()),
		logging.F("instance", info.InstanceID))

	// 构建失败时回滚已配置的模块，释放其创建的客户端
	container := di.NewContainer()
	var configured []Module
	fail := func(err error) (Application, error) {
		return nil, rollback(container, configured, loggerFactory, logger, err)
	}

	modules, err := loadModules(b.modules)
	if err != nil {
		return fail(err)
	}

	// 注册核心服务到容器
	di.Register[config.Configuration](container, di.WithValue(configuration))
	di.Register[*config.ReloadableConfiguration](container, di.WithValue(configuration))
	di.Register[logging.LoggerFactory](container, di.WithValue(loggerFactory))
	di.Register[logging.Logger](container, di.WithValue(logger))
	di.Register[hosting.Environment](container, di.WithValue(environment))
	di.Register[*ApplicationInfo](container, di.WithValue(info))
	di.Register[di.Container](container, di.WithValue(container))
	webAccessor := di.AddObjectAccessor[*web.ApplicationBuilder](container)

	services := &ServiceConfigurationContext{
		container:     container,
		configuration: configuration,
		environment:   environment,
		loggerFactory: loggerFactory,
		logger:        logger,
	}

	if b.useWeb {
		wb := web.NewApplicationBuilder(container, loggerFactory.CreateLogger("Web"))
		if port, err := configuration.GetInt("web:port"); err == nil {
			wb.UsePort(port)
		}
		for _, configure := range b.webConfigurators {
			if err := configure(wb); err != nil {
				return fail(fmt.Errorf("app: configure web: %w", err))
			}
		}
		webAccessor.Set(wb)
		services.web = wb
	}

	for _, m := range modules {
		sc, ok := m.(ServiceConfigurator)
		if !ok {
			configured = append(configured, m)
			continue
		}
		if err := sc.ConfigureServices(services); err != nil {
			return fail(fmt.Errorf("app: module %s: configure services: %w", m.Name(), err))
		}
		configured = append(configured, m)
		logger.Debug("Module services configured", logging.F("module", m.Name()))
	}

	for _, configure := range b.serviceConfigurators {
		if err := configure(services); err != nil {
			return fail(fmt.Errorf("app: configure services: %w", err))
		}
	}

	if err := container.Build(); err != nil {
		return fail(fmt.Errorf("app: build container: %w", err))
	}
	logger.Info("DI container built successfully", logging.F("modules", len(modules)))

	hostedServices, err := services.resolveHostedServices()
	if err != nil {
		return fail(err)
	}
	// Web 主机最后启动，因而最先停止
	if services.web != nil {
		hostedServices = append(hostedServices, services.web.Build())
	}

	return &application{
		container:       container,
		configuration:   configuration,
		loggerFactory:   loggerFactory,
		logger:          logger,
		environment:     environment,
		info:            info,
		modules:         modules,
		hostedServices:  hostedServices,
		shutdownTimeout: b.shutdownTimeout,
		stopCh:          make(chan struct{}),
	}, nil
}

// rollback 按相反顺序调用已配置模块的关闭钩子并关闭日志工厂
// 返回的错误包含 cause 和所有关闭错误，errors.Is 仍能匹配 cause
func rollback(container di.Container, configured []Module, loggerFactory logging.LoggerFactory, logger logging.Logger, cause error) error {
	logger.Error("Application build failed", logging.Err(cause))

	result := multierror.Append(nil, cause)
	sc := NewApplicationShutdownContext(context.Background(), container)
	for i := len(configured) - 1; i >= 0; i-- {
		m := configured[i]
		h, ok := m.(ShutdownHandler)
		if !ok {
			continue
		}
		if err := h.OnApplicationShutdown(sc); err != nil {
			result = multierror.Append(result, fmt.Errorf("module %s: shutdown: %w", m.Name(), err))
		}
	}
	if err := loggerFactory.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if len(result.Errors) == 1 {
		return cause
	}
	return result
}

// application 应用程序实现
type application struct {
	container       di.Container
	configuration   *config.ReloadableConfiguration
	loggerFactory   logging.LoggerFactory
	logger          logging.Logger
	environment     hosting.Environment
	info            *ApplicationInfo
	modules         []Module
	hostedServices  []hosting.HostedService
	shutdownTimeout time.Duration

	initOnce     sync.Once
	initErr      error
	shutdownOnce sync.Once
	shutdownErr  error
	stopOnce     sync.Once
	stopCh       chan struct{}

	mu      sync.Mutex
	running bool
}

// Initialize 执行模块初始化的三个阶段
func (a *application) Initialize(ctx context.Context) error {
	a.initOnce.Do(func() {
		a.initErr = a.initialize(ctx)
	})
	return a.initErr
}

func (a *application) initialize(ctx context.Context) error {
	ic := NewApplicationInitializationContext(ctx, a.container)

	phase := func(name string, run func(Module) (bool, error)) error {
		for _, m := range a.modules {
			ran, err := run(m)
			if err != nil {
				return fmt.Errorf("app: module %s: %s: %w", m.Name(), name, err)
			}
			if ran {
				a.logger.Debug("Module "+name+" completed", logging.F("module", m.Name()))
			}
		}
		return nil
	}

	if err := phase("pre-initialization", func(m Module) (bool, error) {
		if p, ok := m.(PreInitializer); ok {
			return true, p.OnPreApplicationInitialization(ic)
		}
		return false, nil
	}); err != nil {
		return err
	}

	if err := phase("initialization", func(m Module) (bool, error) {
		if i, ok := m.(Initializer); ok {
			return true, i.OnApplicationInitialization(ic)
		}
		return false, nil
	}); err != nil {
		return err
	}

	if err := phase("post-initialization", func(m Module) (bool, error) {
		if p, ok := m.(PostInitializer); ok {
			return true, p.OnPostApplicationInitialization(ic)
		}
		return false, nil
	}); err != nil {
		return err
	}

	a.logger.Info("Application initialized", logging.F("modules", len(a.modules)))
	return nil
}

// Shutdown 按相反顺序调用模块关闭钩子，汇总错误，最后关闭日志工厂
func (a *application) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		sc := NewApplicationShutdownContext(ctx, a.container)

		var result *multierror.Error
		for i := len(a.modules) - 1; i >= 0; i-- {
			m := a.modules[i]
			h, ok := m.(ShutdownHandler)
			if !ok {
				continue
			}
			if err := h.OnApplicationShutdown(sc); err != nil {
				a.logger.Error("Module shutdown failed", logging.F("module", m.Name()), logging.Err(err))
				result = multierror.Append(result, fmt.Errorf("module %s: %w", m.Name(), err))
			}
		}

		a.logger.Info("Application stopped")
		if err := a.loggerFactory.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		a.shutdownErr = result.ErrorOrNil()
	})
	return a.shutdownErr
}

// Run 运行应用程序（阻塞）
func (a *application) Run() error {
	return a.RunAsync(context.Background())
}

// RunAsync 运行应用程序，直到收到信号、调用 Stop、ctx 取消或托管服务失败
func (a *application) RunAsync(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return errors.New("application is already running")
	}
	a.running = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	if err := a.Initialize(ctx); err != nil {
		// 已创建的客户端和日志写入器仍需释放
		result := multierror.Append(nil, err)
		if shutdownErr := a.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
			result = multierror.Append(result, shutdownErr)
		}
		if len(result.Errors) == 1 {
			return err
		}
		return result
	}

	a.logger.Info("Starting application",
		logging.F("environment", a.environment.Name()))

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	// 文件配置源变更时自动重载
	if err := a.configuration.StartWatch(runCtx, func(err error) {
		if err != nil {
			a.logger.Error("Failed to reload configuration", logging.Err(err))
			return
		}
		a.logger.Info("Configuration reloaded successfully")
	}); err != nil {
		a.logger.Warn("Failed to start config watch", logging.Err(err))
	}

	manager := hosting.NewHostedServiceManager(a.loggerFactory.CreateLogger("Hosting"))
	for _, service := range a.hostedServices {
		manager.Add(service)
	}
	errCh := manager.StartAll(runCtx)

	a.logger.Info("Application started successfully")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var result *multierror.Error

	select {
	case sig := <-sigCh:
		a.logger.Info("Received shutdown signal", logging.F("signal", sig.String()))
	case <-a.stopCh:
		a.logger.Info("Application stop requested")
	case <-ctx.Done():
		a.logger.Info("Context cancelled")
	case err := <-errCh:
		a.logger.Error("Hosted service failed, stopping application", logging.Err(err))
		result = multierror.Append(result, err)
	}

	a.logger.Info("Shutting down application",
		logging.F("timeout", a.shutdownTimeout.String()))

	// 通知所有服务停止
	runCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if err := manager.StopAll(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}

	done := make(chan struct{})
	go func() {
		manager.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		a.logger.Warn("Hosted services did not exit before shutdown timeout")
	}

	a.configuration.StopWatch()

	if err := a.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Stop 请求停止运行中的应用程序，可重复调用
func (a *application) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() { close(a.stopCh) })
	return nil
}

// Services 获取服务容器
func (a *application) Services() di.Container {
	return a.container
}

// Configuration 获取配置
func (a *application) Configuration() config.Configuration {
	return a.configuration
}

// Logger 获取日志记录器
func (a *application) Logger() logging.Logger {
	return a.logger
}

// Environment 获取环境
func (a *application) Environment() hosting.Environment {
	return a.environment
}

// Info 获取应用实例信息
func (a *application) Info() *ApplicationInfo {
	return a.info
}

// Modules 按加载顺序返回模块
func (a *application) Modules() []Module {
	out := make([]Module, len(a.modules))
	copy(out, a.modules)
	return out
}

// GetService 获取服务实例（通过指针参数）
//
// 使用示例：
//
//	var myService *MyService
//	app.GetService(&myService)
func (a *application) GetService(ptr any) {
	ptrValue := reflect.ValueOf(ptr)
	if ptrValue.Kind() != reflect.Pointer {
		panic(fmt.Sprintf("app: GetService argument must be a pointer, got %T", ptr))
	}

	elemValue := ptrValue.Elem()
	if !elemValue.CanSet() {
		panic("app: GetService argument must be settable")
	}

	targetType := elemValue.Type()

	instance, err := a.container.Get(targetType)
	if err != nil {
		panic(fmt.Sprintf("app: failed to get service %s: %v", targetType.String(), err))
	}

	if instance == nil {
		elemValue.Set(reflect.Zero(targetType))
		return
	}
	elemValue.Set(reflect.ValueOf(instance))
}
