// Package metrics exposes §6's optional Prometheus endpoint: per-logical-
// core checked_hashes and founds_proofs counters, plus epoch_age_seconds
// and allocated_logical_cores gauges.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capacitymesh/ccp/internal/ccptypes"
)

// Registry bundles every metric this daemon exports, mirroring how the
// wider corpus's ethereum-family nodes register one Collector per
// subsystem against a shared prometheus.Registry.
type Registry struct {
	reg *prometheus.Registry

	checkedHashes          *prometheus.CounterVec
	foundsProofs           *prometheus.CounterVec
	epochAgeSeconds        prometheus.Gauge
	allocatedLogicalCores  prometheus.Gauge
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		checkedHashes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ccp",
			Name:      "checked_hashes",
			Help:      "Total RandomX hashes checked, by logical core.",
		}, []string{"core"}),
		foundsProofs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ccp",
			Name:      "founds_proofs",
			Help:      "Total golden proofs found, by logical core.",
		}, []string{"core"}),
		epochAgeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ccp",
			Name:      "epoch_age_seconds",
			Help:      "Seconds since the current epoch began.",
		}),
		allocatedLogicalCores: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ccp",
			Name:      "allocated_logical_cores",
			Help:      "Number of logical cores currently committed.",
		}),
	}
	r.reg.MustRegister(r.checkedHashes, r.foundsProofs, r.epochAgeSeconds, r.allocatedLogicalCores)
	return r
}

func (r *Registry) AddCheckedHashes(core ccptypes.LogicalCoreId, n int) {
	r.checkedHashes.WithLabelValues(coreLabel(core)).Add(float64(n))
}

func (r *Registry) IncFoundsProofs(core ccptypes.LogicalCoreId) {
	r.foundsProofs.WithLabelValues(coreLabel(core)).Inc()
}

func (r *Registry) SetEpochAgeSeconds(seconds float64) {
	r.epochAgeSeconds.Set(seconds)
}

func (r *Registry) SetAllocatedLogicalCores(n int) {
	r.allocatedLogicalCores.Set(float64(n))
}

// Handler returns the `/metrics` HTTP handler to mount on the
// PrometheusEndpoint's bind address.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func coreLabel(core ccptypes.LogicalCoreId) string {
	return strconv.FormatUint(uint64(core), 10)
}
