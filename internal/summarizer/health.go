package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/localrivet/smartsummary/internal/cache"
	"github.com/localrivet/smartsummary/internal/ledger"
	"github.com/localrivet/smartsummary/internal/strategy"
	"github.com/localrivet/smartsummary/internal/telemetry"
)

// HealthStatus represents the health status of the service
type HealthStatus string

const (
	// StatusHealthy indicates the service is fully operational
	StatusHealthy HealthStatus = "healthy"

	// StatusDegraded indicates the service answers but most model calls fail
	StatusDegraded HealthStatus = "degraded"
)

// degradedFailureRate is the model-call failure percentage above which the
// service reports itself degraded.
const degradedFailureRate = 50.0

// StatsReport summarises what the orchestrator has done since it started.
type StatsReport struct {
	Status          HealthStatus       `json:"status"`
	Timestamp       time.Time          `json:"timestamp"`
	Provider        string             `json:"provider"`
	Requests        int64              `json:"requests"`
	FailedRequests  int64              `json:"failed_requests"`
	StreamRequests  int64              `json:"stream_requests"`
	Strategies      map[string]int64   `json:"strategies"`
	Cache           cache.Stats        `json:"cache"`
	LLMCalls        int64              `json:"llm_calls"`
	LLMFailureRate  float64            `json:"llm_failure_rate"`
	ResponseTimesMS map[string]float64 `json:"response_times_ms"`
	Usage           *ledger.Totals     `json:"usage,omitempty"`
	Uptime          string             `json:"uptime"`
	Metrics         telemetry.Snapshot `json:"metrics"`
}

// Stats builds a StatsReport. Ledger failures leave Usage empty rather than
// failing the report.
func (o *Orchestrator) Stats(ctx context.Context) *StatsReport {
	m := o.metrics
	snap := m.Snapshot()

	strategies := make(map[string]int64)
	for _, s := range strategy.All {
		strategies[string(s)] = m.GetCounter(telemetry.MetricStrategyPrefix + string(s))
	}

	calls := m.GetCounter(telemetry.MetricLLMCalls)
	failures := m.GetCounter(telemetry.MetricLLMFailures)
	var failureRate float64
	if calls > 0 {
		failureRate = float64(failures) / float64(calls) * 100.0
	}

	status := StatusHealthy
	if failureRate > degradedFailureRate {
		status = StatusDegraded
	}

	report := &StatsReport{
		Status:         status,
		Timestamp:      time.Now(),
		Provider:       o.gateway.Name(),
		Requests:       m.GetCounter(telemetry.MetricRequests),
		FailedRequests: m.GetCounter(telemetry.MetricRequestsFailed),
		StreamRequests: m.GetCounter(telemetry.MetricStreamRequests),
		Strategies:     strategies,
		Cache:          o.cache.Stats(),
		LLMCalls:       calls,
		LLMFailureRate: failureRate,
		ResponseTimesMS: map[string]float64{
			"request": millis(m.GetTimerAverage(telemetry.MetricRequestDuration)),
			"llm":     millis(m.GetTimerAverage(telemetry.MetricLLMResponseTime)),
			"llm_p95": millis(m.GetTimerP95(telemetry.MetricLLMResponseTime)),
			"cache":   millis(m.GetTimerAverage(telemetry.MetricCacheLookupTime)),
		},
		Uptime:  snap.Uptime,
		Metrics: snap,
	}

	if o.ledger != nil {
		totals, err := o.ledger.Totals(ctx)
		if err != nil {
			o.logger.Warn("Failed to read usage totals", "error", err)
		} else {
			report.Usage = &totals
		}
	}
	return report
}

// StatsJSON renders Stats as indented JSON.
func (o *Orchestrator) StatsJSON(ctx context.Context) (string, error) {
	reportJSON, err := json.MarshalIndent(o.Stats(ctx), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal stats report: %w", err)
	}
	return string(reportJSON), nil
}

// ResetMetrics clears every metric. Cached summaries and the ledger are kept.
func (o *Orchestrator) ResetMetrics() {
	o.metrics.Reset()
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
