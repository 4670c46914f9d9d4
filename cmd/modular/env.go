package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print the resolved environment",
	RunE:  runEnv,
}

func runEnv(cmd *cobra.Command, args []string) error {
	app, err := newBuilder(environmentName, configFile, jsonLogs).Build()
	if err != nil {
		return err
	}
	defer app.Shutdown(cmd.Context())

	env := app.Environment()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Environment:     %s\n", env.Name())
	fmt.Fprintf(out, "Application:     %s\n", env.ApplicationName())
	fmt.Fprintf(out, "ContentRoot:     %s\n", env.ContentRootPath())
	fmt.Fprintf(out, "WebRoot:         %s\n", env.WebRootPath())
	fmt.Fprintf(out, "InstanceID:      %s\n", app.Info().InstanceID)
	fmt.Fprintf(out, "Logging:Level:   %s\n", app.Configuration().GetWithDefault("logging:level", "info"))
	return nil
}
