package di

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// Container 依赖注入容器
//
// 注册阶段调用 Add，Build 之后定义不可变，解析无锁。
type Container interface {
	Add(def *ServiceDefinition) error
	// Build 分析依赖、检测循环并按依赖顺序创建所有单例，重复调用无效果
	Build() error
	Get(typ reflect.Type) (any, error)
	GetNamed(typ reflect.Type, name string) (any, error)
	Has(typ reflect.Type, name string) bool
	CreateScope() Scope
}

type container struct {
	mu      sync.RWMutex
	defs    []*ServiceDefinition
	byKey   map[ServiceKey]*ServiceDefinition
	built   atomic.Bool
	buildMu sync.Mutex
	// buildErr 首次创建单例失败的错误，之后的 Build 原样返回
	buildErr error
}

// NewContainer 创建空容器
func NewContainer() Container {
	return &container{byKey: make(map[ServiceKey]*ServiceDefinition)}
}

func (c *container) Add(def *ServiceDefinition) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.built.Load() {
		return newServiceError(def.Type, def.Name, ErrContainerBuilt)
	}
	key := def.key()
	if _, exists := c.byKey[key]; exists {
		return newServiceError(def.Type, def.Name, ErrAlreadyRegistered)
	}
	def.ID = len(c.defs)
	c.defs = append(c.defs, def)
	c.byKey[key] = def
	return nil
}

func (c *container) Build() error {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()
	if c.built.Load() {
		return c.buildErr
	}

	c.mu.Lock()
	for _, def := range c.defs {
		p, err := newPlan(def)
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("di: inspect %v: %w", def.key(), err)
		}
		def.plan = p
	}
	order, err := sortDefinitions(c.defs, c.byKey)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.built.Store(true)
	c.mu.Unlock()

	// 锁外创建单例，构造函数内可以再解析其他服务
	for _, def := range order {
		if def.Scope != ScopeSingleton {
			continue
		}
		if _, err := c.singleton(def); err != nil {
			c.buildErr = fmt.Errorf("di: build singleton %v: %w", def.key(), err)
			return c.buildErr
		}
	}
	return nil
}

func (c *container) Get(typ reflect.Type) (any, error) {
	return c.GetNamed(typ, "")
}

func (c *container) GetNamed(typ reflect.Type, name string) (any, error) {
	def, err := c.lookup(typ, name)
	if err != nil {
		return nil, err
	}
	switch def.Scope {
	case ScopeSingleton:
		return c.singleton(def)
	case ScopeTransient:
		return def.plan.construct(c, def)
	case ScopeScoped:
		return nil, newServiceError(typ, name, ErrScopedFromRoot)
	default:
		return nil, fmt.Errorf("di: unknown scope %v", def.Scope)
	}
}

// lookup 构建后 byKey 不再变化，可以无锁读取
func (c *container) lookup(typ reflect.Type, name string) (*ServiceDefinition, error) {
	if !c.built.Load() {
		return nil, newServiceError(typ, name, ErrContainerNotBuilt)
	}
	def, ok := c.byKey[ServiceKey{Type: typ, Name: name}]
	if !ok {
		return nil, newServiceError(typ, name, ErrServiceNotFound)
	}
	return def, nil
}

func (c *container) singleton(def *ServiceDefinition) (any, error) {
	def.singletonOnce.Do(func() {
		def.singleton, def.singletonErr = def.plan.construct(c, def)
	})
	return def.singleton, def.singletonErr
}

func (c *container) Has(typ reflect.Type, name string) bool {
	if !c.built.Load() {
		c.mu.RLock()
		defer c.mu.RUnlock()
	}
	_, ok := c.byKey[ServiceKey{Type: typ, Name: name}]
	return ok
}

func (c *container) CreateScope() Scope {
	return newScope(c)
}
