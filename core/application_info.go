package core

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationInfo 应用实例信息
type ApplicationInfo struct {
	// Name 应用名称
	Name string
	// InstanceID 每次进程启动唯一
	InstanceID string
	// BuiltAt 应用构建时间
	BuiltAt time.Time
}

func newApplicationInfo(name string) *ApplicationInfo {
	return &ApplicationInfo{
		Name:       name,
		InstanceID: uuid.NewString(),
		BuiltAt:    time.Now(),
	}
}
