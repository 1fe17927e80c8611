package main

import (
	"fmt"
	"os"

	"github.com/aegisdns/aegisdns/internal/config"
	"github.com/aegisdns/aegisdns/internal/logging"
	"github.com/aegisdns/aegisdns/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Configure(logging.Config{
		Level:            cfg.LogLevel,
		Structured:       true,
		StructuredFormat: cfg.LogFormat,
		ExtraFields: map[string]string{
			"instance_id": cfg.InstanceID,
		},
	})

	runner := server.NewRunner(logger)
	if err := runner.Run(cfg); err != nil {
		logger.Error("aegisdns exited with error", "error", err)
		os.Exit(1)
	}
}
