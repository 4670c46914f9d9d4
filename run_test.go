package modular_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/gocrud/modular"
	"github.com/gocrud/modular/core"
	"github.com/gocrud/modular/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunContext(t *testing.T) {
	ran := make(chan struct{})
	builder := modular.NewApplicationBuilder().
		UseEnvironment("Testing").
		ConfigureLogging(func(b *logging.LoggingBuilder) {
			b.AddConsole(logging.ConsoleLoggerOptions{Output: io.Discard})
		}).
		AddTask(func(ctx context.Context) error {
			close(ran)
			<-ctx.Done()
			return nil
		})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- modular.RunContext(ctx, builder) }()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not start")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestRunContext_BuildError(t *testing.T) {
	builder := modular.NewApplicationBuilder().
		ConfigureServices(func(*core.ServiceConfigurationContext) error {
			return assert.AnError
		})

	err := modular.RunContext(context.Background(), builder)
	require.ErrorIs(t, err, assert.AnError)
}
