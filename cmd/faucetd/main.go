package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap/zapcore"

	"github.com/zama-ai/faucet-contract/pkg/collector"
	"github.com/zama-ai/faucet-contract/pkg/config"
	"github.com/zama-ai/faucet-contract/pkg/logger"
	"github.com/zama-ai/faucet-contract/pkg/scheduler"
	httpfiber "github.com/zama-ai/faucet-contract/pkg/server/http"
	"github.com/zama-ai/faucet-contract/pkg/validation"
	"github.com/zama-ai/faucet-contract/pkg/version"
)

var (
	cfgPath     = flag.String("config", "config.yaml", "path to the config file")
	showVersion = flag.Bool("version", false, "print version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		versionJSON, _ := json.Marshal(version.GetVersion())
		fmt.Println(string(versionJSON))
		return
	}

	cfg, err := config.ReadConfigFile(*cfgPath)
	if err != nil {
		panic(fmt.Errorf("failed to read config: %v", err))
	}

	level, err := zapcore.ParseLevel(cfg.Global.LogLevel)
	if err != nil {
		panic(fmt.Errorf("failed to parse log level: %v", err))
	}
	err = logger.InitLogger(logger.WithLevel(level), logger.WithEncodeTime("timestamp", zapcore.ISO8601TimeEncoder))
	if err != nil {
		panic(fmt.Errorf("failed to init logger: %v", err))
	}

	if err := validation.NewConfigValidator().ValidateConfig(cfg); err != nil {
		logger.Fatalf("Configuration validation failed: %v", err)
	}
	logger.Infof("Configuration validated successfully")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, session, err := bootstrap(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to bootstrap chain: %v", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collectorSet, err := collector.NewCollectors(ctx, cfg, c, session)
	if err != nil {
		logger.Fatalf("Failed to create collectors: %v", err)
	}
	if err := collectorSet.Register(promRegistry); err != nil {
		logger.Fatalf("Failed to register collectors: %v", err)
	}

	opts := []httpfiber.Option{httpfiber.WithRegistry(promRegistry)}

	var refill *scheduler.RefillScheduler
	if cfg.Faucet.IsRefillEnabled() {
		refill, err = scheduler.NewRefillScheduler(cfg, session)
		if err != nil {
			logger.Fatalf("Failed to create refill scheduler: %v", err)
		}
		if err := refill.Start(); err != nil {
			logger.Fatalf("Failed to start refill scheduler: %v", err)
		}
		opts = append(opts, httpfiber.WithRefillScheduler(refill))
	} else {
		logger.Infof("Refill is disabled")
	}

	server, err := httpfiber.NewServer(cfg, c, session, opts...)
	if err != nil {
		logger.Fatalf("Failed to create server: %v", err)
	}

	signalChain := make(chan os.Signal, 1)
	signal.Notify(signalChain, os.Interrupt, syscall.SIGTERM)
	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("failed to run server: %v", err)
		}
	}()
	<-signalChain

	logger.Infof("Shutting down...")

	if refill != nil {
		if err := refill.Stop(); err != nil {
			logger.Errorf("Failed to stop refill scheduler: %v", err)
		}
	}
	collectorSet.Close()
	server.Stop()
	logger.Infof("Shutdown complete")
}
