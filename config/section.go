package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
)

// configuration 只读配置树，构建后不再修改
type configuration struct {
	data map[string]any
}

func (c *configuration) Get(key string) string {
	switch v := c.lookup(key).(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (c *configuration) GetWithDefault(key, defaultValue string) string {
	if value := c.Get(key); value != "" {
		return value
	}
	return defaultValue
}

func (c *configuration) GetInt(key string) (int, error) {
	switch v := c.lookup(key).(type) {
	case nil:
		return 0, notFound(key)
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("config: %s: cannot convert %T to int", key, v)
	}
}

func (c *configuration) GetBool(key string) (bool, error) {
	switch v := c.lookup(key).(type) {
	case nil:
		return false, notFound(key)
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	default:
		return false, fmt.Errorf("config: %s: cannot convert %T to bool", key, v)
	}
}

func (c *configuration) GetDuration(key string) (time.Duration, error) {
	value := c.lookup(key)
	if s, ok := value.(string); ok {
		return time.ParseDuration(s)
	}
	if value == nil {
		return 0, notFound(key)
	}
	ms, err := c.GetInt(key)
	if err != nil {
		return 0, fmt.Errorf("config: %s: cannot convert %T to duration", key, value)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func (c *configuration) GetSection(key string) Configuration {
	if m, ok := c.lookup(key).(map[string]any); ok {
		return &configuration{data: m}
	}
	return &configuration{data: map[string]any{}}
}

// Bind 使用 json 标签匹配字段，字符串会被弱类型转换（例如环境变量中的 "8080"）
func (c *configuration) Bind(key string, target any) error {
	data := c.lookup(key)
	if data == nil {
		return notFound(key)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("config: create decoder: %w", err)
	}
	if err := decoder.Decode(data); err != nil {
		return fmt.Errorf("config: bind %s: %w", key, err)
	}
	return nil
}

func (c *configuration) GetAll() map[string]any {
	out := make(map[string]any, len(c.data))
	mergeMaps(out, c.data)
	return out
}

// lookup 按路径取值，空路径返回整棵树
func (c *configuration) lookup(key string) any {
	if key == "" {
		return c.data
	}
	var current any = c.data
	for _, part := range splitKey(key) {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

func notFound(key string) error {
	return fmt.Errorf("config: key %s not found", key)
}

var keyCache sync.Map

// splitKey 把 "A:b.C" 拆分为 ["a" "b" "c"]，结果按原始键缓存
func splitKey(key string) []string {
	if parts, ok := keyCache.Load(key); ok {
		return parts.([]string)
	}
	parts := strings.FieldsFunc(strings.ToLower(key), func(r rune) bool {
		return r == ':' || r == '.'
	})
	keyCache.Store(key, parts)
	return parts
}

// normalizeKeys 递归复制并把键转为小写，YAML 解出的 map[any]any 一并转换
func normalizeKeys(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		switch child := v.(type) {
		case map[string]any:
			v = normalizeKeys(child)
		case map[any]any:
			converted := make(map[string]any, len(child))
			for ck, cv := range child {
				converted[fmt.Sprint(ck)] = cv
			}
			v = normalizeKeys(converted)
		}
		key := strings.ToLower(k)
		if existing, ok := dst[key].(map[string]any); ok {
			if incoming, ok := v.(map[string]any); ok {
				mergeMaps(existing, incoming)
				continue
			}
		}
		dst[key] = v
	}
	return dst
}

// mergeMaps 把 src 深度合并进 dst，src 中的子树会被复制
func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		incoming, isMap := v.(map[string]any)
		if !isMap {
			dst[k] = v
			continue
		}
		existing, ok := dst[k].(map[string]any)
		if !ok {
			existing = make(map[string]any, len(incoming))
			dst[k] = existing
		}
		mergeMaps(existing, incoming)
	}
}
