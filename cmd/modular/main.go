// Command modular 演示模块化应用宿主：Web 管道、定时任务与运行环境
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// 全局参数
	environmentName string
	configFile      string
	jsonLogs        bool
)

var rootCmd = &cobra.Command{
	Use:           "modular",
	Short:         "Modular application host",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&environmentName, "env", "e", "", "Environment name (defaults to MODULAR_ENVIRONMENT, then Production)")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file (.json, .yaml or .yml)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Write structured JSON logs through zap")

	rootCmd.AddCommand(serveCmd, envCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
