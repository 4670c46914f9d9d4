package di

import (
	"fmt"
	"io"
	"reflect"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Scope 作用域容器：作用域服务每个作用域一个实例，单例委托给根容器
type Scope interface {
	Container
	// Dispose 按创建的相反顺序关闭实现了 io.Closer 的作用域实例，汇总关闭错误
	Dispose() error
}

type scopedEntry struct {
	once     sync.Once
	instance any
	err      error
}

type scope struct {
	root *container

	mu       sync.Mutex
	entries  map[int]*scopedEntry
	created  []any
	disposed bool
}

func newScope(root *container) *scope {
	return &scope{root: root, entries: make(map[int]*scopedEntry)}
}

func (s *scope) Add(def *ServiceDefinition) error {
	return fmt.Errorf("di: cannot register %v on a scope", def.key())
}

func (s *scope) Build() error { return nil }

func (s *scope) CreateScope() Scope { return s.root.CreateScope() }

func (s *scope) Has(typ reflect.Type, name string) bool { return s.root.Has(typ, name) }

func (s *scope) Get(typ reflect.Type) (any, error) { return s.GetNamed(typ, "") }

func (s *scope) GetNamed(typ reflect.Type, name string) (any, error) {
	def, err := s.root.lookup(typ, name)
	if err != nil {
		return nil, err
	}
	switch def.Scope {
	case ScopeSingleton:
		return s.root.singleton(def)
	case ScopeTransient:
		// 瞬时服务的依赖在本作用域内解析
		return def.plan.construct(s, def)
	case ScopeScoped:
		return s.scoped(def)
	default:
		return nil, fmt.Errorf("di: unknown scope %v", def.Scope)
	}
}

func (s *scope) scoped(def *ServiceDefinition) (any, error) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil, fmt.Errorf("di: resolve %v from disposed scope", def.key())
	}
	entry, ok := s.entries[def.ID]
	if !ok {
		entry = &scopedEntry{}
		s.entries[def.ID] = entry
	}
	s.mu.Unlock()

	entry.once.Do(func() {
		entry.instance, entry.err = def.plan.construct(s, def)
		if entry.err == nil && entry.instance != nil {
			s.mu.Lock()
			s.created = append(s.created, entry.instance)
			s.mu.Unlock()
		}
	})
	return entry.instance, entry.err
}

func (s *scope) Dispose() error {
	s.mu.Lock()
	created := s.created
	s.created, s.entries, s.disposed = nil, nil, true
	s.mu.Unlock()

	var result *multierror.Error
	for i := len(created) - 1; i >= 0; i-- {
		closer, ok := created[i].(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("di: close %T: %w", closer, err))
		}
	}
	return result.ErrorOrNil()
}
