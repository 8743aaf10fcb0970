// Package metrics holds the service's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts scan attempts by outcome: accepted, rejected,
	// denied, failed.
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classtrack_scans_total",
		Help: "QR scan attempts by outcome.",
	}, []string{"outcome"})

	// RecordsTotal counts committed attendance records by period and status.
	RecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classtrack_records_total",
		Help: "Committed attendance records by period and status.",
	}, []string{"period", "status"})
)
