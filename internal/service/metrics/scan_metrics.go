package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    ScanAPILatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "signalscan",
            Subsystem: "api",
            Name:      "latency_seconds",
            Help:      "Latency of scan API endpoints",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"endpoint"},
    )

    ScanAPIErrors = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "signalscan",
            Subsystem: "api",
            Name:      "errors_total",
            Help:      "Errors by scan API endpoint",
        },
        []string{"endpoint"},
    )
)

func Register() {
    once.Do(func() {
        prometheus.MustRegister(ScanAPILatency, ScanAPIErrors)
    })
}
