package cmd

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"
	"github.com/vinceanalytics/wikiclicks/internal/config"
	"github.com/vinceanalytics/wikiclicks/internal/log"
	"github.com/vinceanalytics/wikiclicks/internal/metrics"
	"github.com/vinceanalytics/wikiclicks/internal/version"
)

func App() *cli.Command {
	return &cli.Command{
		Name:        "wikiclicks",
		Usage:       "Builds surrogate keyed gold facts and insights from wikipedia clickstream partitions",
		Description: description,
		Version:     version.Release(),
		Commands:    []*cli.Command{goldCmd(), insightsCmd(), version.Cmd()},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to a YAML settings file",
				Sources: cli.EnvVars("WIKICLICKS_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "silver",
				Usage:   "Root of the cleaned clickstream partitions",
				Sources: cli.EnvVars("WIKICLICKS_SILVER"),
			},
			&cli.StringFlag{
				Name:    "gold",
				Usage:   "Root of the gold facts and dictionaries",
				Sources: cli.EnvVars("WIKICLICKS_GOLD"),
			},
			&cli.StringFlag{
				Name:    "specifics",
				Usage:   "Root of the derived insights, defaults to GOLD_Specifics next to the gold root",
				Sources: cli.EnvVars("WIKICLICKS_SPECIFICS"),
			},
			&cli.StringFlag{
				Name:    "tmp",
				Usage:   "Scratch directory for staging files, one sub directory per language",
				Sources: cli.EnvVars("WIKICLICKS_TMP"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level, values are (trace,debug,info,warn,error)",
				Sources: cli.EnvVars("WIKICLICKS_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "metrics-file",
				Usage:   "Write run metrics to this file in the prometheus text format",
				Sources: cli.EnvVars("WIKICLICKS_METRICS_FILE"),
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Languages processed in parallel",
				Sources: cli.EnvVars("WIKICLICKS_WORKERS"),
			},
		},
	}
}

const description = `wikiclicks assigns every article title a stable integer id per language and
computes monthly popularity, top-N, referrer and edge facts against those ids.
Runs are resumable: published artifacts are skipped unless asked otherwise.`

// setup resolves the options shared by every command: defaults, then the
// settings file, then flags and environment variables. It returns a context
// carrying the logger.
func setup(ctx context.Context, c *cli.Command) (context.Context, *config.Options, *metrics.Metrics, error) {
	o := config.Defaults()
	if path := c.String("config"); path != "" {
		if err := config.Load(path, o); err != nil {
			return ctx, nil, nil, err
		}
	}
	str(c, "silver", &o.SilverDir)
	str(c, "gold", &o.GoldDir)
	str(c, "specifics", &o.SpecificsDir)
	str(c, "tmp", &o.TmpDir)
	str(c, "log-level", &o.LogLevel)
	str(c, "metrics-file", &o.MetricsFile)
	num(c, "workers", &o.Gold.Workers)

	w := c.Root().ErrWriter
	if w == nil {
		w = os.Stderr
	}
	ctx = log.Set(ctx, log.New(w, o.LogLevel))
	return ctx, o, metrics.New(), nil
}

// flush writes the metrics file when one is configured.
func flush(ctx context.Context, o *config.Options, m *metrics.Metrics) {
	if o.MetricsFile == "" {
		return
	}
	if err := m.WriteFile(o.MetricsFile); err != nil {
		log.Get(ctx).Error().Err(err).Str("path", o.MetricsFile).Msg("writing metrics")
	}
}

func str(c *cli.Command, name string, dst *string) {
	if c.IsSet(name) {
		*dst = c.String(name)
	}
}

func num(c *cli.Command, name string, dst *int) {
	if c.IsSet(name) {
		*dst = int(c.Int(name))
	}
}

func flag(c *cli.Command, name string, dst *bool, value bool) {
	if c.IsSet(name) && c.Bool(name) {
		*dst = value
	}
}
