package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	adhoc "github.com/MihirRajeshPanchal/BlitzAI/Adhoc"
	"github.com/MihirRajeshPanchal/BlitzAI/config"
	backend "github.com/MihirRajeshPanchal/BlitzAI/gRPC"
	"github.com/MihirRajeshPanchal/BlitzAI/gateway"
	"github.com/MihirRajeshPanchal/BlitzAI/logger"
	"github.com/MihirRajeshPanchal/BlitzAI/monitor"
	"github.com/MihirRajeshPanchal/BlitzAI/pipeline"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "blitzai:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.LogMode, cfg.LogLevel); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	fmt.Println(strings.Repeat("#", 64))
	fmt.Println("  HTTP  Port:", cfg.HTTPPort)
	fmt.Println("  gRPC  Port:", cfg.RPCPort)
	fmt.Println(" Adhoc  Port:", cfg.AdhocPort)
	fmt.Println("Workers Num:", cfg.WorkersNum)
	fmt.Println(strings.Repeat("#", 64))
	if cfg.Keys.Roboflow == "" {
		logger.Log().Warn("ROBOFLOW_KEY is not set; detection routes will fail")
	}
	if cfg.ProviderTimeout == 0 {
		logger.Log().Warn("providerTimeout is 0; provider calls are bounded only by the client")
	}

	tasks, err := pipeline.TasksFromConfig(cfg.Tasks)
	if err != nil {
		return err
	}
	detector := adhoc.NewRoboflowClient(cfg.Keys.Roboflow, cfg.ProviderTimeout)
	controller := pipeline.NewController(detector, tasks, cfg.ScratchDir)
	gemini := adhoc.NewGeminiClient(adhoc.GeminiConfig{
		APIKey:      cfg.Keys.Gemini,
		Endpoint:    cfg.Gemini.Endpoint,
		TextModel:   cfg.Gemini.TextModel,
		VisionModel: cfg.Gemini.VisionModel,
		Timeout:     cfg.ProviderTimeout,
	})
	whisper := adhoc.NewWhisperClient(adhoc.WhisperConfig{
		APIKey:   cfg.Keys.OpenAI,
		Endpoint: cfg.OpenAI.Endpoint,
		Model:    cfg.OpenAI.WhisperModel,
		Timeout:  cfg.ProviderTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		monitor.StartMon(cfg.AdhocPort, ctx)
	}()

	rpc := backend.NewServer(controller, cfg.WorkersNum, cfg.AllowRemoteShutdown)
	grpcServer, err := backend.StartGRPCServer(cfg.RPCPort, rpc)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: gateway.New(gateway.Options{
			Runner:         controller,
			Generator:      gemini,
			Transcriber:    whisper,
			ScratchDir:     cfg.ScratchDir,
			MaxUploadBytes: int64(cfg.MaxUploadMB) << 20,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpErr := make(chan error, 1)
	go func() {
		logger.Log().Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-signals:
		logger.Log().Info("signal received", zap.Stringer("signal", sig))
	case <-rpc.CloseChannel:
	case err = <-httpErr:
		logger.Log().Error("http server failed", zap.Error(err))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownGrace)
	defer stop()
	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		logger.Log().Error("http shutdown", zap.Error(serr))
	}
	grpcServer.GracefulStop()
	rpc.Stop()
	cancel()
	wg.Wait()
	logger.Log().Info("safely exited")
	return err
}
