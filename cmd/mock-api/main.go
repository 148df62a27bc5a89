package main

import (
	"fmt"
	"os"

	"github.com/fustanlabs/fustan-sync/cmd/mock-api/backend"
	"github.com/fustanlabs/fustan-sync/internal/common/config"
	"github.com/fustanlabs/fustan-sync/pkg/logger"
	"github.com/fustanlabs/fustan-sync/pkg/version"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of mock-api",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mock-api version %s\n", version.Get())
		},
	}

	rootCmd = &cobra.Command{
		Use:   "mock-api",
		Short: "Mock Fustan backend",
		Long:  `mock-api serves an in-memory rendition of the Fustan REST and realtime surface for local development`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "conf", "c", "mock-api.yaml", "path to configuration file")
	rootCmd.AddCommand(versionCmd)
}

func run() {
	cfg, cfgPath, err := config.LoadConfig[config.MockAPIConfig](configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration from %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	srv, err := backend.NewServer(log, cfg.JWT)
	if err != nil {
		log.Fatal("failed to create mock server", zap.Error(err))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Info("mock-api listening",
		zap.String("addr", addr),
		zap.String("version", version.Get()))
	if err := srv.Router().Run(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
