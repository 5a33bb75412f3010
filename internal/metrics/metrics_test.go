package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New()
	m.Partition("en", "processed", time.Second)
	m.Partition("en", "processed", time.Second)
	m.Partition("en", "skipped", 0)
	m.Artifact("article_top", 128)
	m.Dictionary("en", 42)

	require.Equal(t, 2.0, testutil.ToFloat64(m.partitions.WithLabelValues("en", "processed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.partitions.WithLabelValues("en", "skipped")))
	require.Equal(t, 128.0, testutil.ToFloat64(m.bytes.WithLabelValues("article_top")))
	require.Equal(t, 42.0, testutil.ToFloat64(m.dictionary.WithLabelValues("en")))

	path := filepath.Join(t.TempDir(), "wikiclicks.prom")
	require.NoError(t, m.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `wikiclicks_partitions_total{lang="en",status="processed"} 2`)
}

func TestNil(t *testing.T) {
	var m *Metrics
	m.Partition("en", "processed", time.Second)
	m.Artifact("edges_monthly", 1)
	m.Dictionary("en", 1)
}
