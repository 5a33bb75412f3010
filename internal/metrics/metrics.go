// Package metrics counts pipeline progress in a prometheus registry owned by
// one run. The registry can be exported in the node exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wikiclicks"

type Metrics struct {
	Registry *prometheus.Registry

	partitions *prometheus.CounterVec
	artifacts  *prometheus.CounterVec
	bytes      *prometheus.CounterVec
	dictionary *prometheus.GaugeVec
	duration   *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		partitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partitions_total",
			Help:      "Partitions handled, by language and status",
		}, []string{"lang", "status"}),
		artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_written_total",
			Help:      "Artifact files published",
		}, []string{"artifact"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_bytes_total",
			Help:      "Bytes of published artifact files",
		}, []string{"artifact"}),
		dictionary: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dictionary_entries",
			Help:      "Titles held by the language dictionary",
		}, []string{"lang"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "partition_duration_seconds",
			Help:      "Time spent processing one partition",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"lang"}),
	}
	m.Registry.MustRegister(m.partitions, m.artifacts, m.bytes, m.dictionary, m.duration)
	return m
}

// Partition records the outcome of one partition. A nil receiver is a no-op.
func (m *Metrics) Partition(lang, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.partitions.WithLabelValues(lang, status).Inc()
	m.duration.WithLabelValues(lang).Observe(elapsed.Seconds())
}

func (m *Metrics) Artifact(artifact string, size int64) {
	if m == nil {
		return
	}
	m.artifacts.WithLabelValues(artifact).Inc()
	m.bytes.WithLabelValues(artifact).Add(float64(size))
}

func (m *Metrics) Dictionary(lang string, entries int) {
	if m == nil {
		return
	}
	m.dictionary.WithLabelValues(lang).Set(float64(entries))
}

// WriteFile exports every metric to path.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
