package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"gopkg.in/yaml.v3"
)

// FileFormat 配置文件格式
type FileFormat string

const (
	FormatJSON FileFormat = "json"
	FormatYAML FileFormat = "yaml"
)

// FileSource 文件配置源，可被 ReloadableConfiguration 监听
type FileSource struct {
	Path     string
	Format   FileFormat
	Optional bool
}

func (s *FileSource) Name() string {
	return fmt.Sprintf("%sFile(%s)", strings.ToUpper(string(s.Format)), s.Path)
}

func (s *FileSource) Load() (map[string]any, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		if s.Optional && errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var result map[string]any
	switch s.Format {
	case FormatYAML:
		err = yaml.Unmarshal(raw, &result)
	case FormatJSON, "":
		err = json.Unmarshal(raw, &result)
	default:
		return nil, fmt.Errorf("unsupported format %q", s.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	if result == nil {
		result = map[string]any{}
	}
	return result, nil
}

// WatchPath 实现 WatchableSource
func (s *FileSource) WatchPath() string {
	return s.Path
}

// EnvironmentVariableSource 环境变量配置源
// 去掉前缀后双下划线表示层级：APP_LOGGING__LEVEL -> logging:level
type EnvironmentVariableSource struct {
	Prefix string
}

func (s *EnvironmentVariableSource) Name() string {
	return fmt.Sprintf("EnvironmentVariables(%s)", s.Prefix)
}

func (s *EnvironmentVariableSource) Load() (map[string]any, error) {
	result := make(map[string]any)
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		key, ok = strings.CutPrefix(key, s.Prefix)
		if !ok || key == "" {
			continue
		}
		setNestedValue(result, strings.Split(strings.ToLower(key), "__"), parseScalar(value))
	}
	return result, nil
}

// InMemorySource 内存配置源，每次加载都读取 Data 的当前值
type InMemorySource struct {
	Data map[string]any
}

func (s *InMemorySource) Name() string {
	return "InMemory"
}

func (s *InMemorySource) Load() (map[string]any, error) {
	result := make(map[string]any, len(s.Data))
	mergeMaps(result, s.Data)
	return result, nil
}

// EtcdOptions etcd 配置源选项
type EtcdOptions struct {
	Endpoints []string
	Username  string
	Password  string
	// Prefix 键前缀，/app/redis/addr 在前缀 /app 下对应 redis:addr
	Prefix      string
	Timeout     time.Duration
	DialTimeout time.Duration
}

// EtcdSource etcd 配置源
type EtcdSource struct {
	Options EtcdOptions
}

func (s *EtcdSource) Name() string {
	return fmt.Sprintf("Etcd(%s)", strings.Join(s.Options.Endpoints, ","))
}

func (s *EtcdSource) Load() (map[string]any, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   s.Options.Endpoints,
		Username:    s.Options.Username,
		Password:    s.Options.Password,
		DialTimeout: s.Options.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create etcd client: %w", err)
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), s.Options.Timeout)
	defer cancel()

	prefix := s.Options.Prefix
	if prefix == "" {
		prefix = "/"
	}
	resp, err := cli.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("read etcd prefix %s: %w", prefix, err)
	}

	result := make(map[string]any)
	for _, kv := range resp.Kvs {
		key := strings.Trim(strings.TrimPrefix(string(kv.Key), s.Options.Prefix), "/")
		if key == "" {
			continue
		}
		setNestedValue(result, strings.Split(strings.ToLower(key), "/"), decodeEtcdValue(kv.Value))
	}
	return result, nil
}

// decodeEtcdValue 依次尝试 JSON、YAML 映射，最后按字符串处理
func decodeEtcdValue(raw []byte) any {
	var jsonValue any
	if err := json.Unmarshal(raw, &jsonValue); err == nil {
		return jsonValue
	}
	var yamlValue map[string]any
	if err := yaml.Unmarshal(raw, &yamlValue); err == nil && yamlValue != nil {
		return yamlValue
	}
	return string(raw)
}

// setNestedValue 沿 path 创建中间节点并写入值，路径被标量占用时放弃
func setNestedValue(tree map[string]any, path []string, value any) {
	current := tree
	for _, part := range path[:len(path)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			if _, occupied := current[part]; occupied {
				return
			}
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[path[len(path)-1]] = value
}

// parseScalar 把环境变量的字符串值转换为整数、浮点或布尔
func parseScalar(s string) any {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
