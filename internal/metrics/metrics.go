package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every sportlist metric. It is private so a run writes only its own series.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// ProviderEntries is the number of entries each provider contributed to the last run.
var ProviderEntries = factory.NewGaugeVec(prometheus.GaugeOpts{
	Name: "sportlist_provider_entries",
	Help: "Entries resolved per provider",
}, []string{"provider"})

// FetchTotal counts primary page fetches by outcome (ok, cached, error, status).
var FetchTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Name: "sportlist_fetch_total",
	Help: "Primary fetches by outcome",
}, []string{"outcome"})

// ProbeTotal counts short-timeout probes by kind and result.
//
//	kind=mirror  result=match|miss
//	kind=server  result=live|cloudflare|bad_status|not_manifest|timeout|error
var ProbeTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Name: "sportlist_probe_total",
	Help: "Liveness and mirror probes by kind and result",
}, []string{"kind", "result"})

var MirrorCandidatesProbed = factory.NewCounterVec(prometheus.CounterOpts{
	Name: "sportlist_mirror_candidates_probed",
	Help: "Mirror candidates probed before the scan stopped",
}, []string{"provider"})

var RunDuration = factory.NewGauge(prometheus.GaugeOpts{
	Name: "sportlist_run_duration_seconds",
	Help: "Wall time of the last resolution run",
})

// WriteTextfile writes the registry in node-exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
