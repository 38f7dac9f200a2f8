package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NegotiationsOpenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "negotiations_opened_total",
		Help: "Total number of negotiations opened",
	})

	NegotiationsAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "negotiations_accepted_total",
		Help: "Total number of negotiations accepted",
	})

	NegotiationsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "negotiations_rejected_total",
		Help: "Total number of rejected negotiation attempts",
	}, []string{"reason"})

	NegotiationsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "negotiations_cancelled_total",
		Help: "Total number of cancelled negotiations",
	})

	NegotiationsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "negotiations_expired_total",
		Help: "Total number of negotiations expired by TTL",
	})

	OffersCounteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offers_countered_total",
		Help: "Total number of counteroffers appended to ledgers",
	})

	OffersRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offers_rejected_total",
		Help: "Total number of ledger appends rejected by validation",
	})

	CodesIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discount_codes_issued_total",
		Help: "Total number of discount codes issued",
	})

	CodesRedeemedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discount_codes_redeemed_total",
		Help: "Total number of discount codes redeemed",
	})

	CodeRedemptionConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discount_code_redemption_conflicts_total",
		Help: "Total number of redemption attempts that lost the atomic race",
	})

	CodeValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discount_code_validations_total",
		Help: "Total number of code validation previews",
	}, []string{"outcome"})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "expiry_sweep_duration_seconds",
		Help:    "Duration of expiry sweeper runs",
		Buckets: prometheus.DefBuckets,
	})

	SweptNegotiationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swept_negotiations_total",
		Help: "Total number of negotiations expired by the background sweep",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
