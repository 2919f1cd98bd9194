package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"mptest/internal/app/runner"
	"mptest/internal/infra/dockerexec"
	"mptest/internal/infra/kafkareport"
	"mptest/internal/infra/localproc"
	"mptest/internal/infra/pyboard"
	"mptest/internal/infra/wasmexec"
	"mptest/internal/ports"
)

func main() {
	cfg, err := loadAppConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("invalid arguments: %v", err)
	}

	os.Exit(run(cfg))
}

func run(cfg appConfig) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files := cfg.Files
	if len(files) == 0 {
		var err error
		files, err = runner.DiscoverTests(cfg.TestDirs)
		if err != nil {
			log.Printf("failed to discover tests: %v", err)
			return 1
		}
	}

	target, err := buildTargetExecutor(ctx, cfg)
	if err != nil {
		log.Printf("failed to initialize target executor: %v", err)
		return 1
	}
	reference := localproc.NewReference(cfg.Reference)

	var publisher ports.ReportPublisher
	if len(cfg.ResultsBrokers) > 0 {
		publisher, err = kafkareport.NewPublisher(kafkareport.Config{
			Brokers: cfg.ResultsBrokers,
			Topic:   cfg.ResultsTopic,
		})
		if err != nil {
			log.Printf("failed to initialize report publisher: %v", err)
			_ = target.Close()
			return 1
		}
	}

	service := runner.NewService(runner.Config{
		DoubleExpNewlines: runtime.GOOS == "windows",
		CISkips:           cfg.CISkips,
		Exclusions:        ciExclusions,
		Out:               os.Stdout,
	}, reference, target, publisher)
	defer func() {
		if cerr := service.Close(); cerr != nil {
			log.Printf("warning: failed to close runner: %v", cerr)
		}
	}()

	if err := service.Run(ctx, files); err != nil {
		log.Printf("test run aborted: %v", err)
		return 1
	}
	if !service.Summarize() {
		return 1
	}
	return 0
}

func buildTargetExecutor(ctx context.Context, cfg appConfig) (ports.Executor, error) {
	switch {
	case cfg.Pyboard:
		return pyboard.Open(cfg.Device, cfg.BaudRate)
	case cfg.DockerImage != "":
		return dockerexec.New(dockerexec.Config{Image: cfg.DockerImage})
	case cfg.WASMModule != "":
		return wasmexec.New(ctx, cfg.WASMModule)
	default:
		return localproc.NewTarget(cfg.Target), nil
	}
}
