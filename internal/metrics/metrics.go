// Package metrics exposes the Prometheus collectors shared across
// CAPIO-CL's components. It follows the teacher's shape: package-level
// promauto vars plus small RecordXxx/UpdateXxx helpers, so owning
// packages never reach into the vars directly.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registryMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capiocl_registry_mutations_total",
			Help: "Total number of mutating Entry Store operations, by operation.",
		},
		[]string{"op"},
	)

	monitorCommitsSetTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capiocl_monitor_commits_set_total",
		Help: "Total number of commits recorded by a backend (a multicast advertisement sent, or a new filesystem token created).",
	})

	monitorCommitsCheckedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capiocl_monitor_commits_checked_total",
			Help: "Total number of is_committed calls, by backend and hit/miss.",
		},
		[]string{"backend", "hit"},
	)

	codecDocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capiocl_codec_documents_total",
			Help: "Total number of parse/serialize operations, by op and result.",
		},
		[]string{"op", "result"},
	)
)

// RegistryMutation records a mutating Entry Store operation.
func RegistryMutation(op string) {
	registryMutationsTotal.WithLabelValues(op).Inc()
}

// MonitorCommitSet records a commit recorded by a backend.
func MonitorCommitSet() {
	monitorCommitsSetTotal.Inc()
}

// MonitorCommitChecked records an is_committed call against one backend.
func MonitorCommitChecked(backend string, hit bool) {
	label := "false"
	if hit {
		label = "true"
	}
	monitorCommitsCheckedTotal.WithLabelValues(backend, label).Inc()
}

// CodecDocument records a parse or serialize attempt and its outcome.
func CodecDocument(op, result string) {
	codecDocumentsTotal.WithLabelValues(op, result).Inc()
}
