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
	"github.com/vinceanalytics/wikiclicks/internal/insights"
)

func insightsCmd() *cli.Command {
	return &cli.Command{
		Name:  "insights",
		Usage: "Builds yearly, all time, trailing six month and trending rollups from the gold facts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "lang",
				Usage: "Only build this language",
			},
			&cli.StringFlag{
				Name:  "langs",
				Usage: "Comma separated languages, or all",
			},
			&cli.IntFlag{
				Name:  "topn-alltime",
				Usage: "Articles kept in all_time_top",
			},
			&cli.IntFlag{
				Name:  "topn-trending",
				Usage: "Articles kept in trending_mom",
			},
			&cli.IntFlag{
				Name:  "topn-edges",
				Usage: "Pairs kept in edges_6m",
			},
			&cli.IntFlag{
				Name:  "topm-referrers",
				Usage: "Referrers kept per article in referrers_6m",
			},
			&cli.BoolFlag{
				Name:  "no-skip",
				Usage: "Overwrite insights that already exist",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, o, m, err := setup(ctx, c)
			if err != nil {
				return err
			}
			if err := insightsFlags(c, o); err != nil {
				return err
			}
			s, err := insights.Build(ctx, o, m)
			flush(ctx, o, m)
			if err != nil {
				return err
			}
			return writeInsights(c.Root().Writer, s)
		},
	}
}

func insightsFlags(c *cli.Command, o *config.Options) error {
	i := &o.Insights
	switch {
	case c.IsSet("lang") && c.IsSet("langs"):
		return fmt.Errorf("%w: use --lang or --langs, not both", config.ErrInvalidConfig)
	case c.IsSet("lang"):
		i.Langs = []string{c.String("lang")}
	case c.IsSet("langs"):
		i.Langs = config.ParseLangs(c.String("langs"))
	}
	num(c, "topn-alltime", &i.TopNAllTime)
	num(c, "topn-trending", &i.TopNTrending)
	num(c, "topn-edges", &i.TopNEdges)
	num(c, "topm-referrers", &i.TopMReferrers)
	flag(c, "no-skip", &i.Overwrite, true)
	return nil
}

func writeInsights(w io.Writer, s insights.Summary) error {
	_, err := fmt.Fprintf(w, "languages=%d elapsed=%s\n", s.Languages, s.Elapsed.Round(time.Millisecond))
	if err != nil {
		return err
	}
	names := slices.Sorted(maps.Keys(s.Written))
	for _, k := range slices.Sorted(maps.Keys(s.Existing)) {
		if _, ok := s.Written[k]; !ok {
			names = append(names, k)
		}
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-14s written=%d existing=%d\n", name, s.Written[name], s.Existing[name])
	}
	for _, i := range s.Issues {
		fmt.Fprintf(w, "  skipped %s %s: %v\n", i.Lang, i.Artifact, i.Err)
	}
	return nil
}
