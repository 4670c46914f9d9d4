package di

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// dependency 一个待注入的依赖：函数参数或结构体字段
type dependency struct {
	key      ServiceKey
	optional bool
	// field 结构体字段下标，函数参数为 -1
	field     int
	fieldName string
}

// plan 构建时计算的注入方案
type plan struct {
	deps []dependency
}

// edges 返回参与依赖图排序的依赖
// 可选依赖同样计入，可选只表示目标可以未注册
func (p *plan) edges() []ServiceKey {
	keys := make([]ServiceKey, 0, len(p.deps))
	for _, d := range p.deps {
		keys = append(keys, d.key)
	}
	return keys
}

// newPlan 分析定义的构造方式
func newPlan(def *ServiceDefinition) (*plan, error) {
	switch {
	case def.IsValue:
		if def.InjectFields && def.Impl != nil {
			return structPlan(reflect.TypeOf(def.Impl))
		}
		return &plan{}, nil
	case def.isFunc():
		return funcPlan(reflect.TypeOf(def.Impl))
	case def.ImplType == nil:
		return nil, errors.New("no implementation type")
	default:
		return structPlan(def.ImplType)
	}
}

func funcPlan(fnType reflect.Type) (*plan, error) {
	if fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("expected function, got %v", fnType)
	}
	if fnType.NumOut() == 0 {
		return nil, fmt.Errorf("factory %v returns nothing", fnType)
	}
	p := &plan{deps: make([]dependency, fnType.NumIn())}
	for i := range p.deps {
		p.deps[i] = dependency{key: ServiceKey{Type: fnType.In(i)}, field: -1}
	}
	return p, nil
}

func structPlan(typ reflect.Type) (*plan, error) {
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	p := &plan{}
	if typ.Kind() != reflect.Struct {
		return p, nil
	}
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag, ok := field.Tag.Lookup("di")
		if !ok {
			continue
		}
		if !field.IsExported() {
			return nil, fmt.Errorf("field %s is unexported", field.Name)
		}
		name, optional := parseTag(tag)
		p.deps = append(p.deps, dependency{
			key:       ServiceKey{Type: field.Type, Name: name},
			optional:  optional,
			field:     i,
			fieldName: field.Name,
		})
	}
	return p, nil
}

// parseTag 解析 `di:"name,?"`，"?" 或 "optional" 表示可选依赖
func parseTag(tag string) (name string, optional bool) {
	parts := strings.Split(tag, ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "?" || part == "optional" {
			optional = true
			continue
		}
		if i == 0 {
			name = part
		}
	}
	return name, optional
}

// construct 按方案创建实例，依赖从 c 解析
func (p *plan) construct(c Container, def *ServiceDefinition) (any, error) {
	switch {
	case def.IsValue:
		if def.InjectFields && def.Impl != nil {
			v := reflect.ValueOf(def.Impl)
			if v.Kind() == reflect.Pointer && v.Elem().Kind() == reflect.Struct {
				if err := p.inject(c, v.Elem()); err != nil {
					return nil, err
				}
			}
		}
		return def.Impl, nil

	case def.isFunc():
		args := make([]reflect.Value, len(p.deps))
		for i, d := range p.deps {
			v, err := c.GetNamed(d.key.Type, d.key.Name)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			args[i] = valueOf(v, d.key.Type)
		}
		out := reflect.ValueOf(def.Impl).Call(args)
		if last := out[len(out)-1]; len(out) > 1 && last.Type().Implements(errorType) && !last.IsNil() {
			return nil, last.Interface().(error)
		}
		return out[0].Interface(), nil

	default:
		typ := def.ImplType
		isPtr := typ.Kind() == reflect.Pointer
		if isPtr {
			typ = typ.Elem()
		}
		v := reflect.New(typ)
		if typ.Kind() == reflect.Struct {
			if err := p.inject(c, v.Elem()); err != nil {
				return nil, err
			}
		}
		if isPtr {
			return v.Interface(), nil
		}
		return v.Elem().Interface(), nil
	}
}

func (p *plan) inject(c Container, target reflect.Value) error {
	for _, d := range p.deps {
		v, err := c.GetNamed(d.key.Type, d.key.Name)
		if err != nil {
			if d.optional && IsNotFound(err) {
				continue
			}
			return fmt.Errorf("field %s: %w", d.fieldName, err)
		}
		target.Field(d.field).Set(valueOf(v, d.key.Type))
	}
	return nil
}

// valueOf 返回可赋值给 typ 的反射值，nil 实例映射为零值
func valueOf(v any, typ reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(typ)
	}
	return reflect.ValueOf(v)
}

// sortDefinitions 按依赖关系排序，依赖在前；同层保持注册顺序
// 未注册的依赖留到解析时报告
func sortDefinitions(defs []*ServiceDefinition, byKey map[ServiceKey]*ServiceDefinition) ([]*ServiceDefinition, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[ServiceKey]int, len(defs))
	order := make([]*ServiceDefinition, 0, len(defs))
	var path []ServiceKey

	var visit func(def *ServiceDefinition) error
	visit = func(def *ServiceDefinition) error {
		key := def.key()
		switch state[key] {
		case done:
			return nil
		case visiting:
			return cycleError(path, key)
		}
		state[key] = visiting
		path = append(path, key)

		for _, depKey := range def.plan.edges() {
			dep, ok := byKey[depKey]
			if !ok {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		state[key] = done
		order = append(order, def)
		return nil
	}

	for _, def := range defs {
		if err := visit(def); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func cycleError(path []ServiceKey, repeated ServiceKey) error {
	start := 0
	for i, k := range path {
		if k == repeated {
			start = i
			break
		}
	}
	names := make([]string, 0, len(path)-start+1)
	for _, k := range path[start:] {
		names = append(names, k.String())
	}
	names = append(names, repeated.String())
	return fmt.Errorf("%w: %s", ErrCircularDependency, strings.Join(names, " -> "))
}
