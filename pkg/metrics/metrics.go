// Package metrics 提供 Prometheus helper，包含 HTTP、数据库与对账业务指标
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prams2104/opspilot/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram

	// 对账运行计数
	ReconciliationRunsTotal prometheus.Counter
	// 对账运行耗时
	ReconciliationRunDuration prometheus.Histogram
	// 检出问题计数（按类型）
	IssuesDetectedTotal *prometheus.CounterVec

	// Copilot 请求计数（按后端）
	CopilotRequestsTotal *prometheus.CounterVec
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opspilot",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "opspilot",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		ReconciliationRunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "opspilot",
			Subsystem: serviceName,
			Name:      "reconciliation_runs_total",
			Help:      "Total reconciliation runs executed",
		}),
		ReconciliationRunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "opspilot",
			Subsystem: serviceName,
			Name:      "reconciliation_run_duration_seconds",
			Help:      "Reconciliation run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		IssuesDetectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opspilot",
			Subsystem: serviceName,
			Name:      "issues_detected_total",
			Help:      "Total reconciliation issues detected",
		}, []string{"issue_type"}),
		CopilotRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opspilot",
			Subsystem: serviceName,
			Name:      "copilot_requests_total",
			Help:      "Total copilot requests served",
		}, []string{"backend"}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReconciliationRunsTotal,
		m.ReconciliationRunDuration,
		m.IssuesDetectedTotal,
		m.CopilotRequestsTotal,
	}

	for _, c := range collectors {
		if err := prometheus.DefaultRegisterer.Register(c); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	return nil
}

// StartHTTPServer 启动 Prometheus HTTP 服务器
func StartHTTPServer(port int, path string) error {
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info(context.Background(), "Starting Prometheus HTTP server", "addr", addr, "path", path)
	return http.ListenAndServe(addr, mux)
}
