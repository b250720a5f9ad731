// Copyright 2025 CL8Y Bridge Contributors
//
// Package metrics exposes Prometheus instrumentation for the coordination
// plane: queue depths polled from the store, submission and cancel
// counters, and submit latency.
package metrics

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cl8y-bridge/bridge-core/pkg/store"
)

// queuePollInterval is how often the store-backed gauges refresh.
const queuePollInterval = 15 * time.Second

// Counter is implemented by any repository exposing per-status counts.
type Counter interface {
	CountByStatus(ctx context.Context, status store.DepositStatus) (int, error)
}

// Metrics owns the process's collectors.
type Metrics struct {
	registry *prometheus.Registry

	depositQueueDepth  *prometheus.GaugeVec
	approvalQueueDepth *prometheus.GaugeVec
	releaseQueueDepth  *prometheus.GaugeVec
	submissionsTotal   *prometheus.CounterVec
	cancelsTotal       *prometheus.CounterVec
	submitDuration     *prometheus.HistogramVec

	logger *log.Logger
}

// New registers the bridge collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		depositQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bridge_deposits",
			Help: "Observed deposits by status.",
		}, []string{"status"}),
		approvalQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bridge_approvals",
			Help: "Destination-chain approvals by status.",
		}, []string{"status"}),
		releaseQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bridge_releases",
			Help: "Cosmos-destination releases by status.",
		}, []string{"status"}),
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_submissions_total",
			Help: "Approval submissions by destination chain and result.",
		}, []string{"chain", "result"}),
		cancelsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_cancels_total",
			Help: "Cancel transactions submitted by destination chain.",
		}, []string{"chain"}),
		submitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bridge_submit_duration_seconds",
			Help:    "Wall time of one approval broadcast.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"chain"}),
		logger: log.New(log.Writer(), "[Metrics] ", log.LstdFlags),
	}

	registry.MustRegister(
		m.depositQueueDepth, m.approvalQueueDepth, m.releaseQueueDepth,
		m.submissionsTotal, m.cancelsTotal, m.submitDuration,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncSubmission counts one approval broadcast outcome.
func (m *Metrics) IncSubmission(chain string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.submissionsTotal.WithLabelValues(chain, result).Inc()
}

// IncCancel counts one cancel broadcast.
func (m *Metrics) IncCancel(chain string) {
	m.cancelsTotal.WithLabelValues(chain).Inc()
}

// ObserveSubmitDuration records one broadcast's wall time.
func (m *Metrics) ObserveSubmitDuration(chain string, d time.Duration) {
	m.submitDuration.WithLabelValues(chain).Observe(d.Seconds())
}

// PollQueues refreshes the queue-depth gauges from the store until ctx is
// cancelled.
func (m *Metrics) PollQueues(ctx context.Context, deposits, approvals, releases Counter) error {
	ticker := time.NewTicker(queuePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		m.refreshQueue(ctx, m.depositQueueDepth, deposits,
			store.StatusNew, store.StatusVerified, store.StatusApproved, store.StatusFailed, store.StatusReorged)
		m.refreshQueue(ctx, m.approvalQueueDepth, approvals,
			store.StatusVerified, store.StatusPending, store.StatusSubmitted, store.StatusConfirmed, store.StatusFailed)
		m.refreshQueue(ctx, m.releaseQueueDepth, releases,
			store.StatusVerified, store.StatusPending, store.StatusSubmitted, store.StatusConfirmed, store.StatusFailed)
	}
}

func (m *Metrics) refreshQueue(ctx context.Context, gauge *prometheus.GaugeVec, counter Counter, statuses ...store.DepositStatus) {
	for _, status := range statuses {
		count, err := counter.CountByStatus(ctx, status)
		if err != nil {
			m.logger.Printf("failed to count %s rows: %v", status, err)
			continue
		}
		gauge.WithLabelValues(string(status)).Set(float64(count))
	}
}
