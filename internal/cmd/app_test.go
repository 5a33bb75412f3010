package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vinceanalytics/wikiclicks/internal/config"
	"github.com/vinceanalytics/wikiclicks/internal/facts"
	"github.com/vinceanalytics/wikiclicks/internal/gold"
	"github.com/vinceanalytics/wikiclicks/internal/partition"
	"github.com/vinceanalytics/wikiclicks/internal/storage"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := App()
	var out, logs bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &logs
	err := app.Run(context.Background(), append([]string{"wikiclicks"}, args...))
	return out.String(), err
}

func lake(t *testing.T) (silver, goldDir string) {
	t.Helper()
	dir := t.TempDir()
	silver = filepath.Join(dir, "silver")
	goldDir = filepath.Join(dir, "gold")
	p := func(s string) *string { return &s }
	_, err := storage.Write(&storage.Publisher{}, partition.Path(silver, "", "en", 2024, 1), []facts.Transition{
		{CurrTitle: p("Paris"), N: 100},
		{PrevTitle: p("Paris"), CurrTitle: p("London"), Type: p("link"), N: 50},
		{CurrTitle: p("London"), N: 30},
	})
	require.NoError(t, err)
	return silver, goldDir
}

func TestGoldAndInsights(t *testing.T) {
	silver, goldDir := lake(t)
	metricsFile := filepath.Join(t.TempDir(), "wikiclicks.prom")

	out, err := run(t, "--silver", silver, "--gold", goldDir, "--metrics-file", metricsFile, "gold", "--topn", "1")
	require.NoError(t, err)
	require.Contains(t, out, "languages=1 processed=1 skipped=0")

	top, err := storage.Read[facts.Top](partition.Path(goldDir, facts.ArticleTop, "en", 2024, 1))
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Equal(t, int64(2), top[0].CurrID)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	require.Contains(t, string(data), "wikiclicks_partitions_total")

	out, err = run(t, "--gold", goldDir, "insights", "--langs", "all")
	require.NoError(t, err)
	require.Contains(t, out, "all_time_top")
	require.True(t, storage.Exists(filepath.Join(filepath.Dir(goldDir), config.SpecificsDir, "all_time_top", "lang=en", partition.DataFile)))

	out, err = run(t, "--silver", silver, "--gold", goldDir, "gold")
	require.NoError(t, err)
	require.Contains(t, out, "processed=0 skipped=1")
}

func TestConfigFile(t *testing.T) {
	silver, goldDir := lake(t)
	path := filepath.Join(t.TempDir(), "settings.yml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("silver_dir: %s\ngold_dir: %s\ngold:\n  referrers: false\n", silver, goldDir)), 0644))

	_, err := run(t, "--config", path, "gold", "--no-edges")
	require.NoError(t, err)
	require.True(t, storage.Exists(partition.Path(goldDir, facts.ArticlePopularity, "en", 2024, 1)))
	require.False(t, storage.Exists(partition.Path(goldDir, facts.EdgesMonthly, "en", 2024, 1)))
	require.False(t, storage.Exists(partition.Path(goldDir, facts.ReferrersTop, "en", 2024, 1)))
}

func TestErrors(t *testing.T) {
	silver, goldDir := lake(t)

	_, err := run(t, "--silver", filepath.Join(silver, "missing"), "--gold", goldDir, "gold")
	require.ErrorIs(t, err, gold.ErrInputMissing)

	_, err = run(t, "--silver", silver, "--gold", goldDir, "gold", "--lang", "de")
	require.ErrorIs(t, err, gold.ErrNoPartitions)

	_, err = run(t, "--gold", goldDir, "insights", "--lang", "en", "--langs", "en,de")
	require.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = run(t, "--silver", silver, "--gold", goldDir, "gold", "--topn", "0")
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "v0.1.0")
}
