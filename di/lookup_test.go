package di_test

import (
	"errors"
	"testing"

	"github.com/gocrud/modular/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Clock interface {
	Now() int
}

type fixedClock struct{ at int }

func (c *fixedClock) Now() int { return c.at }

type Reporter struct {
	Clock Clock `di:""`
}

type OptionalDeps struct {
	Clock Clock    `di:"?"`
	Named *Service `di:"primary,optional"`
}

type Service struct {
	Name string
}

func TestGetRequiredService_NotRegistered(t *testing.T) {
	c := di.NewContainer()
	require.NoError(t, c.Build())

	_, err := di.GetRequiredService[Clock](c)
	require.Error(t, err)
	assert.True(t, errors.Is(err, di.ErrServiceNotFound))

	var svcErr *di.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, di.TypeOf[Clock](), svcErr.Type)
}

func TestGetService_NotRegisteredReturnsZero(t *testing.T) {
	c := di.NewContainer()
	require.NoError(t, c.Build())

	clock, err := di.GetService[Clock](c)
	assert.NoError(t, err)
	assert.Nil(t, clock)
}

func TestGetService_Registered(t *testing.T) {
	c := di.NewContainer()
	di.Register[Clock](c, di.WithValue(&fixedClock{at: 7}))
	require.NoError(t, c.Build())

	clock, err := di.GetService[Clock](c)
	require.NoError(t, err)
	assert.Equal(t, 7, clock.Now())
}

func TestGetService_PropagatesMissingDependency(t *testing.T) {
	c := di.NewContainer()
	di.Register[*Reporter](c, di.WithTransient())
	require.NoError(t, c.Build())

	// Reporter 已注册，但其依赖 Clock 缺失：可选查找不能吞掉该错误
	_, err := di.GetService[*Reporter](c)
	require.Error(t, err)
	assert.True(t, di.IsNotFound(err))
}

func TestGetService_PropagatesFactoryError(t *testing.T) {
	c := di.NewContainer()
	boom := errors.New("boom")
	di.Register[*Service](c, di.WithTransient(), di.WithFactory(func() (*Service, error) {
		return nil, boom
	}))
	require.NoError(t, c.Build())

	_, err := di.GetService[*Service](c)
	assert.ErrorIs(t, err, boom)
}

func TestResolve_BeforeBuild(t *testing.T) {
	c := di.NewContainer()
	di.Register[Clock](c, di.WithValue(&fixedClock{}))

	_, err := di.Resolve[Clock](c)
	assert.ErrorIs(t, err, di.ErrContainerNotBuilt)
}

func TestRegister_AfterBuild(t *testing.T) {
	c := di.NewContainer()
	require.NoError(t, c.Build())

	err := c.Add(&di.ServiceDefinition{Type: di.TypeOf[*Service]()})
	assert.ErrorIs(t, err, di.ErrContainerBuilt)
}

func TestTryRegister(t *testing.T) {
	c := di.NewContainer()
	assert.True(t, di.TryRegister[*Service](c, di.WithValue(&Service{Name: "first"})))
	assert.False(t, di.TryRegister[*Service](c, di.WithValue(&Service{Name: "second"})))
	assert.True(t, di.TryRegister[*Service](c, di.WithName("other"), di.WithValue(&Service{Name: "other"})))
	require.NoError(t, c.Build())

	svc := di.MustResolve[*Service](c)
	assert.Equal(t, "first", svc.Name)
}

func TestOptionalAndNamedFields(t *testing.T) {
	c := di.NewContainer()
	di.Register[*Service](c, di.WithName("primary"), di.WithValue(&Service{Name: "primary"}))
	di.Register[*OptionalDeps](c)
	require.NoError(t, c.Build())

	deps, err := di.Resolve[*OptionalDeps](c)
	require.NoError(t, err)
	assert.Nil(t, deps.Clock)
	require.NotNil(t, deps.Named)
	assert.Equal(t, "primary", deps.Named.Name)
}

type cycleA struct {
	B *cycleB `di:""`
}

type cycleB struct {
	A *cycleA `di:""`
}

func TestBuild_CircularDependency(t *testing.T) {
	c := di.NewContainer()
	di.Register[*cycleA](c)
	di.Register[*cycleB](c)

	err := c.Build()
	assert.ErrorIs(t, err, di.ErrCircularDependency)
}

func TestScopedFromRoot(t *testing.T) {
	c := di.NewContainer()
	di.Register[*Service](c, di.WithScoped(), di.WithFactory(func() *Service { return &Service{} }))
	require.NoError(t, c.Build())

	_, err := di.Resolve[*Service](c)
	assert.ErrorIs(t, err, di.ErrScopedFromRoot)

	scope := c.CreateScope()
	defer scope.Dispose()
	s1 := di.MustResolve[*Service](scope)
	s2 := di.MustResolve[*Service](scope)
	assert.Same(t, s1, s2)
}
