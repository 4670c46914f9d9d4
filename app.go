// Package modular 是应用宿主的入口
//
// 典型用法：
//
//	app, err := modular.NewApplicationBuilder().
//	    UseWeb().
//	    AddModule(redis.NewModule(), cron.NewModule()).
//	    Build()
package modular

import "github.com/gocrud/modular/core"

// NewApplicationBuilder 创建应用程序构建器
// 这是创建应用程序的入口点
func NewApplicationBuilder() *core.ApplicationBuilder {
	return core.NewApplicationBuilder()
}
