package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"

	"github.com/MihirRajeshPanchal/BlitzAI/logger"
)

const sampleInterval = 500 * time.Millisecond

var (
	Registry = prometheus.NewRegistry()

	memUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "memory_usage_Megabytes",
		Help: "Memory usage in Megabytes",
	})
	cpuUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cpu_usage_percent",
		Help: "CPU usage in percent",
	})

	GRPCTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grpc_requests_total",
		Help: "Total number of gRPC requests processed",
	}, []string{"method"})

	PipelineRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_runs_total",
		Help: "Pipeline executions by task and outcome",
	}, []string{"task", "outcome"})

	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_stage_seconds",
		Help:    "Time spent in each pipeline stage",
		Buckets: prometheus.DefBuckets,
	}, []string{"task", "stage"})

	ProviderCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_calls_total",
		Help: "Outbound provider calls by provider and outcome",
	}, []string{"provider", "outcome"})

	PassthroughRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "passthrough_requests_total",
		Help: "Passthrough route calls by route and outcome",
	}, []string{"route", "outcome"})
)

func init() {
	Registry.MustRegister(memUsage, cpuUsage, GRPCTotal, PipelineRuns, StageDuration, ProviderCalls, PassthroughRuns)
}

// Handler serves the metrics of Registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// ObserveStage records how long a pipeline stage took since start.
func ObserveStage(task, stage string, start time.Time) {
	StageDuration.WithLabelValues(task, stage).Observe(time.Since(start).Seconds())
}

// Outcome labels a finished call: "ok" or the error kind.
func Outcome(kind string, err error) string {
	if err == nil {
		return "ok"
	}
	return kind
}

func sampleProcess(p *process.Process) {
	if mem, err := p.MemoryInfo(); err == nil {
		memUsage.Set(float64(mem.RSS / 1024 / 1024))
	}
	if pct, err := p.CPUPercent(); err == nil {
		cpuUsage.Set(math.Round(pct*100) / 100)
	}
}

// StartMon serves /metrics on port and samples process usage until ctx is done.
func StartMon(port int, ctx context.Context) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Log().Error("monitor: cannot inspect own process", zap.Error(err))
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log().Error("metrics server stopped", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()
sample:
	for {
		select {
		case <-ctx.Done():
			break sample
		case <-ticker.C:
			sampleProcess(p)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log().Error("metrics server shutdown", zap.Error(err))
	}
}
