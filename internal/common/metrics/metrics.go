// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CRMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_requests_total",
			Help: "Total number of outbound CRM requests by final outcome",
		},
		[]string{"operation", "status"},
	)

	CRMRequestRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_request_retries_total",
			Help: "Total number of single-shot CRM request retries by reason",
		},
		[]string{"reason"},
	)

	CRMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "crm_request_duration_seconds",
			Help: "Duration of outbound CRM requests in seconds",
		},
		[]string{"operation"},
	)

	SyncRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_total",
			Help: "Total number of records processed by sync workflows",
		},
		[]string{"entity", "result"},
	)

	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Total number of background sync runs by task and status",
		},
		[]string{"task", "status"},
	)
)
