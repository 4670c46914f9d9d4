package main

import (
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP host and the cron scheduler",
	Long: `Start the application: HTTP pipeline with /info and /health/cron,
and a cron scheduler running a heartbeat job.

Configuration is read from --config and MODULAR_ environment variables,
e.g. MODULAR_WEB__PORT=8080 or MODULAR_LOGGING__LEVEL=debug.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", -1, "HTTP port (defaults to web:port, then 8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := newServeBuilder(environmentName, configFile, jsonLogs, servePort).Build()
	if err != nil {
		return err
	}
	return app.RunAsync(cmd.Context())
}
