package core_test

import (
	"errors"
	"testing"

	"github.com/gocrud/modular/config"
	"github.com/gocrud/modular/core"
	"github.com/gocrud/modular/di"
	"github.com/gocrud/modular/hosting"
	"github.com/gocrud/modular/internal/check"
	"github.com/gocrud/modular/logging"
	"github.com/gocrud/modular/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInitContext(t *testing.T, register func(c di.Container)) *core.ApplicationInitializationContext {
	t.Helper()
	c := di.NewContainer()
	if register != nil {
		register(c)
	}
	require.NoError(t, c.Build())
	return core.NewApplicationInitializationContext(nil, c)
}

func TestGetApplicationBuilder(t *testing.T) {
	var builder *web.ApplicationBuilder
	ctx := newInitContext(t, func(c di.Container) {
		builder = web.NewApplicationBuilder(c, logging.NewLogger())
		di.AddObjectAccessor(c, builder)
	})

	got, err := core.GetApplicationBuilder(ctx)
	require.NoError(t, err)
	assert.Same(t, builder, got)
	assert.Same(t, builder, core.MustGetApplicationBuilder(ctx))

	got, err = core.GetApplicationBuilderOrNil(ctx)
	require.NoError(t, err)
	assert.Same(t, builder, got)
}

func TestGetApplicationBuilder_NilValue(t *testing.T) {
	ctx := newInitContext(t, func(c di.Container) {
		di.AddObjectAccessor[*web.ApplicationBuilder](c)
	})

	_, err := core.GetApplicationBuilder(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, check.ErrNil))
	assert.Contains(t, err.Error(), "applicationBuilder")

	got, err := core.GetApplicationBuilderOrNil(ctx)
	assert.NoError(t, err)
	assert.Nil(t, got)

	assert.Panics(t, func() { core.MustGetApplicationBuilder(ctx) })
}

func TestGetApplicationBuilder_AccessorMissing(t *testing.T) {
	ctx := newInitContext(t, nil)

	_, err := core.GetApplicationBuilder(ctx)
	assert.True(t, errors.Is(err, di.ErrServiceNotFound))

	// 访问器本身是必需的
	_, err = core.GetApplicationBuilderOrNil(ctx)
	assert.True(t, errors.Is(err, di.ErrServiceNotFound))
}

func TestGetApplicationBuilder_SetAfterBuild(t *testing.T) {
	var accessor *di.ObjectAccessor[*web.ApplicationBuilder]
	ctx := newInitContext(t, func(c di.Container) {
		accessor = di.AddObjectAccessor[*web.ApplicationBuilder](c)
	})

	got, err := core.GetApplicationBuilderOrNil(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	builder := web.NewApplicationBuilder(ctx.ServiceProvider, logging.NewLogger())
	accessor.Set(builder)

	// 不缓存，每次都查询容器
	got, err = core.GetApplicationBuilder(ctx)
	require.NoError(t, err)
	assert.Same(t, builder, got)
}

func TestGetEnvironment(t *testing.T) {
	env := hosting.NewEnvironment(hosting.Development, hosting.WithApplicationName("demo"))
	ctx := newInitContext(t, func(c di.Container) {
		di.Register[hosting.Environment](c, di.WithValue(env))
	})

	got, err := core.GetEnvironment(ctx)
	require.NoError(t, err)
	assert.Equal(t, env, got)
	assert.True(t, got.IsDevelopment())

	got, err = core.GetEnvironmentOrNil(ctx)
	require.NoError(t, err)
	assert.Equal(t, env, got)

	assert.Equal(t, "demo", core.MustGetEnvironment(ctx).ApplicationName())
}

func TestGetEnvironment_Missing(t *testing.T) {
	ctx := newInitContext(t, nil)

	_, err := core.GetEnvironment(ctx)
	assert.True(t, errors.Is(err, di.ErrServiceNotFound))
	assert.True(t, di.IsNotFound(err))

	got, err := core.GetEnvironmentOrNil(ctx)
	assert.NoError(t, err)
	assert.Nil(t, got)

	assert.Panics(t, func() { core.MustGetEnvironment(ctx) })
}

func TestGetEnvironmentOrNil_FactoryError(t *testing.T) {
	boom := errors.New("boom")
	c := di.NewContainer()
	di.Register[hosting.Environment](c,
		di.WithFactory(func() (hosting.Environment, error) { return nil, boom }),
		di.WithTransient(),
	)
	require.NoError(t, c.Build())
	ctx := core.NewApplicationInitializationContext(nil, c)

	// 已注册但构造失败的错误不会被吞掉
	_, err := core.GetEnvironmentOrNil(ctx)
	assert.True(t, errors.Is(err, boom))
}

func TestGetConfiguration(t *testing.T) {
	cfg := config.NewFromMap(map[string]any{"App": map[string]any{"Name": "demo"}})
	ctx := newInitContext(t, func(c di.Container) {
		di.Register[config.Configuration](c, di.WithValue(cfg))
	})

	got, err := core.GetConfiguration(ctx)
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Get("App:Name"))
	assert.Equal(t, "demo", core.MustGetConfiguration(ctx).Get("app.name"))
}

func TestGetConfiguration_Missing(t *testing.T) {
	ctx := newInitContext(t, nil)

	_, err := core.GetConfiguration(ctx)
	assert.True(t, errors.Is(err, di.ErrServiceNotFound))
	assert.Panics(t, func() { core.MustGetConfiguration(ctx) })
}

func TestGetLoggerFactory(t *testing.T) {
	factory := logging.NewNopFactory()
	ctx := newInitContext(t, func(c di.Container) {
		di.Register[logging.LoggerFactory](c, di.WithValue(factory))
	})

	got, err := core.GetLoggerFactory(ctx)
	require.NoError(t, err)
	assert.Equal(t, factory, got)
	assert.NotNil(t, core.MustGetLoggerFactory(ctx).CreateLogger("test"))
}

func TestGetLoggerFactory_Missing(t *testing.T) {
	ctx := newInitContext(t, nil)

	_, err := core.GetLoggerFactory(ctx)
	assert.True(t, errors.Is(err, di.ErrServiceNotFound))
	assert.Panics(t, func() { core.MustGetLoggerFactory(ctx) })
}

func TestAccessors_Scope(t *testing.T) {
	env := hosting.NewEnvironment(hosting.Staging)
	c := di.NewContainer()
	di.Register[hosting.Environment](c, di.WithValue(env))
	require.NoError(t, c.Build())

	scope := c.CreateScope()
	defer scope.Dispose()

	ctx := core.NewApplicationInitializationContext(nil, scope)
	got, err := core.GetEnvironment(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsStaging())
}

func TestNewApplicationInitializationContext_NilContainer(t *testing.T) {
	assert.Panics(t, func() {
		core.NewApplicationInitializationContext(nil, nil)
	})
}
