package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/v2xlab/vextel/internal/config"
	"github.com/v2xlab/vextel/internal/logging"
	"github.com/v2xlab/vextel/internal/run"
	"github.com/v2xlab/vextel/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		os.Exit(runCmd(os.Args[2:]))
	case "validate":
		os.Exit(validateCmd(os.Args[2:]))
	case "version":
		fmt.Println(version.Get().String())
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `vextel - V2X telemetry collector

Usage:
  vextel run [-config file]       start a collection run
  vextel validate [-config file]  check a configuration and exit
  vextel version                  print version information
`)
}

func loadConfig(args []string, name string) (*config.Config, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath != "" {
		return config.LoadFromFile(*configPath)
	}
	return config.Load()
}

func runCmd(args []string) int {
	cfg, err := loadConfig(args, "run")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.FilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	info := version.Get()
	logger.Info("Starting V2X telemetry collector",
		zap.String("version", info.Version),
		zap.String("gitCommit", info.GitCommit),
		zap.String("buildDate", info.BuildDate),
		zap.String("goVersion", info.GoVersion),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run.New(logger, cfg).Run(ctx); err != nil {
		logger.Error("Collection run failed", zap.Error(err))
		return 1
	}

	logger.Info("Collection run complete")
	return 0
}

func validateCmd(args []string) int {
	cfg, err := loadConfig(args, "validate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}
	fmt.Println("Configuration OK")
	return 0
}
