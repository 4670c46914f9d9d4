package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// EmptyModule 未实现任何接口
type EmptyModule struct{}

func (m *EmptyModule) Name() string { return "Empty" }

type baseModule struct{}

func (m *baseModule) Name() string { return "Base" }
func (m *baseModule) ConfigureServices(ctx *ServiceConfigurationContext) error {
	return nil
}

type middleModule struct{}

func (m *middleModule) Name() string         { return "Middle" }
func (m *middleModule) DependsOn() []Module { return []Module{&baseModule{}} }

type topModule struct{}

func (m *topModule) Name() string { return "Top" }
func (m *topModule) DependsOn() []Module {
	return []Module{&middleModule{}, &baseModule{}}
}

type cycleA struct{}

func (m *cycleA) Name() string         { return "A" }
func (m *cycleA) DependsOn() []Module { return []Module{&cycleB{}} }

type cycleB struct{}

func (m *cycleB) Name() string         { return "B" }
func (m *cycleB) DependsOn() []Module { return []Module{&cycleA{}} }

type emptyDependent struct{}

func (m *emptyDependent) Name() string         { return "EmptyDependent" }
func (m *emptyDependent) DependsOn() []Module { return []Module{&EmptyModule{}} }

func names(modules []Module) []string {
	out := make([]string, len(modules))
	for i, m := range modules {
		out[i] = m.Name()
	}
	return out
}

func TestAddModule_Panic_WhenNoInterfaceImplemented(t *testing.T) {
	builder := NewApplicationBuilder()

	defer func() {
		r := recover()
		require.NotNil(t, r, "AddModule should panic for EmptyModule")
		assert.Contains(t, r.(string), "Module 'Empty' does not implement any supported interfaces")
	}()

	builder.AddModule(&EmptyModule{})
}

func TestAddModule_Accepts(t *testing.T) {
	assert.NotPanics(t, func() {
		NewApplicationBuilder().AddModule(&baseModule{}, &middleModule{})
	})
}

func TestLoadModules_DependenciesFirst(t *testing.T) {
	modules, err := loadModules([]Module{&topModule{}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Base", "Middle", "Top"}, names(modules))
}

func TestLoadModules_Dedup(t *testing.T) {
	modules, err := loadModules([]Module{&baseModule{}, &topModule{}, &middleModule{}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Base", "Middle", "Top"}, names(modules))
}

func TestLoadModules_Cycle(t *testing.T) {
	_, err := loadModules([]Module{&cycleA{}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModuleCycle))
	assert.Contains(t, err.Error(), "A -> B -> A")
}

func TestLoadModules_InvalidDependency(t *testing.T) {
	_, err := loadModules([]Module{&emptyDependent{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Module 'Empty'")
}

func TestLoadModules_NilModule(t *testing.T) {
	_, err := loadModules([]Module{nil})
	assert.Error(t, err)
}
