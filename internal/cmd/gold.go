package cmd

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/urfave/cli/v3"
	"github.com/vinceanalytics/wikiclicks/internal/config"
	"github.com/vinceanalytics/wikiclicks/internal/gold"
)

func goldCmd() *cli.Command {
	return &cli.Command{
		Name:  "gold",
		Usage: "Updates dictionaries and publishes the gold facts of every partition",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "topn",
				Usage:   "Articles kept per month in article_top",
				Sources: cli.EnvVars("WIKICLICKS_TOPN"),
			},
			&cli.IntFlag{
				Name:    "topm-referrers",
				Usage:   "Referrers kept per article in referrers_top",
				Sources: cli.EnvVars("WIKICLICKS_TOPM_REFERRERS"),
			},
			&cli.IntFlag{
				Name:  "min-clicks-edges",
				Usage: "Minimum transitions for an edge to be kept",
			},
			&cli.IntFlag{
				Name:  "min-clicks-referrers",
				Usage: "Minimum clicks for a referrer to be kept",
			},
			&cli.BoolFlag{
				Name:  "no-edges",
				Usage: "Do not publish edges_monthly",
			},
			&cli.BoolFlag{
				Name:  "no-referrers",
				Usage: "Do not publish referrers_top",
			},
			&cli.BoolFlag{
				Name:  "skip-existing",
				Usage: "Skip artifacts that are already published",
			},
			&cli.BoolFlag{
				Name:  "no-skip-existing",
				Usage: "Recompute and republish every artifact",
			},
			&cli.IntFlag{
				Name:    "threads",
				Usage:   "Artifacts of a partition published concurrently",
				Sources: cli.EnvVars("WIKICLICKS_THREADS"),
			},
			&cli.StringFlag{
				Name:  "lang",
				Usage: "Only process this language",
			},
			&cli.IntFlag{
				Name:  "year",
				Usage: "Only process this year",
			},
			&cli.IntFlag{
				Name:  "month",
				Usage: "Only process this month",
			},
			&cli.BoolFlag{
				Name:  "latest-month",
				Usage: "Only process the most recent month available",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, o, m, err := setup(ctx, c)
			if err != nil {
				return err
			}
			goldFlags(c, o)
			s, err := gold.Run(ctx, o, m)
			flush(ctx, o, m)
			if err != nil {
				return err
			}
			return writeGold(c.Root().Writer, s)
		},
	}
}

func goldFlags(c *cli.Command, o *config.Options) {
	g := &o.Gold
	num(c, "topn", &g.TopN)
	num(c, "topm-referrers", &g.TopReferrers)
	if c.IsSet("min-clicks-edges") {
		g.MinEdgeCount = int64(c.Int("min-clicks-edges"))
	}
	if c.IsSet("min-clicks-referrers") {
		g.MinReferrerCount = int64(c.Int("min-clicks-referrers"))
	}
	flag(c, "no-edges", &g.Edges, false)
	flag(c, "no-referrers", &g.Referrers, false)
	flag(c, "skip-existing", &g.SkipExisting, true)
	flag(c, "no-skip-existing", &g.SkipExisting, false)
	num(c, "threads", &g.Threads)
	str(c, "lang", &g.Lang)
	num(c, "year", &g.Year)
	num(c, "month", &g.Month)
	flag(c, "latest-month", &g.LatestMonth, true)
}

func writeGold(w io.Writer, s gold.Summary) error {
	_, err := fmt.Fprintf(w, "languages=%d processed=%d skipped=%d elapsed=%s\n",
		s.Languages, s.Processed, s.Skipped, s.Elapsed.Round(time.Millisecond))
	if err != nil {
		return err
	}
	for _, name := range slices.Sorted(maps.Keys(s.Artifacts)) {
		fmt.Fprintf(w, "  %-20s %d\n", name, s.Artifacts[name])
	}
	for _, f := range s.Failures {
		fmt.Fprintf(w, "  failed %s\n", f)
	}
	return nil
}
