package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/gatekeeper/internal/config"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
)

var cfgPath string

func main() {
	// .env es opcional; en prod las vars vienen del entorno real
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "gatekeeper",
		Short:        "Tenant-scoped authorization and secure-token service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config file")

	root.AddCommand(serveCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Config{Env: cfg.Env, Level: cfg.LogLevel})
	return cfg, nil
}
