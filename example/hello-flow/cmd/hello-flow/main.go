package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "embed"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// embeddedConfig holds the application configuration.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// embeddedJSL holds the job definition.
//
//go:embed resources/job.yaml
var embeddedJSL []byte

var (
	envFilePath string
	jobParams   map[string]string
	nextRun     bool
)

var rootCmd = &cobra.Command{
	Use:   "hello-flow",
	Short: "Run the hello-flow example job",
	Long:  "hello-flow runs helloFlowJob once and exits. Pass --param mode=parallel to take the split branch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&envFilePath, "env-file", envOrDefault("ENV_FILE_PATH", ".env"), "Path to the .env file")
	rootCmd.Flags().StringToStringVarP(&jobParams, "param", "p", nil, "Job parameter as key=value (repeatable)")
	rootCmd.Flags().BoolVar(&nextRun, "next", false, "Start a new job instance by adding a run.id parameter")
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func run(ctx context.Context) error {
	app := fx.New(GetApplicationOptions(ctx, envFilePath, embeddedConfig, embeddedJSL, jobParams, nextRun)...)
	app.Run()
	return app.Err()
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Attempting to stop the job...", sig)
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Fatalf("Application run failed: %v", err)
	}
}
