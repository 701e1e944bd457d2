package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docuchain", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docuchain", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	DocumentUploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docuchain", Name: "document_uploads_total", Help: "Number of document uploads by outcome."},
		[]string{"outcome"},
	)
	DocumentDownloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docuchain", Name: "document_downloads_total", Help: "Number of document downloads by outcome."},
		[]string{"outcome"},
	)
	LedgerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docuchain", Name: "ledger_calls_total", Help: "Number of ledger adapter calls by operation and outcome."},
		[]string{"operation", "outcome"},
	)
	BlobCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docuchain", Name: "blob_calls_total", Help: "Number of blob store adapter calls by operation and outcome."},
		[]string{"operation", "outcome"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(DocumentUploads)
	reg.MustRegister(DocumentDownloads)
	reg.MustRegister(LedgerCalls)
	reg.MustRegister(BlobCalls)
}
