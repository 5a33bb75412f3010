// Package insights derives cross partition rollups from the published gold
// facts: yearly and all time leaders, trailing six month edges and referrers,
// and month over month trends.
//
// Sources are probed once per language for a usable article column. When none
// exists the affected rollups are skipped with a warning.
package insights

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/vinceanalytics/wikiclicks/internal/config"
	"github.com/vinceanalytics/wikiclicks/internal/dict"
	"github.com/vinceanalytics/wikiclicks/internal/facts"
	"github.com/vinceanalytics/wikiclicks/internal/log"
	"github.com/vinceanalytics/wikiclicks/internal/metrics"
	"github.com/vinceanalytics/wikiclicks/internal/partition"
	"github.com/vinceanalytics/wikiclicks/internal/storage"
	"golang.org/x/sync/errgroup"
)

const (
	TopByYearArtifact = "top10_by_year"
	AllTimeArtifact   = "all_time_top"
	EdgesArtifact     = "edges_6m"
	TrendingArtifact  = "trending_mom"
	ReferrersArtifact = "referrers_6m"

	yearlyTop      = 10
	trailingMonths = 6
)

var (
	ErrNoTitleColumn = errors.New("insights: no title column")
	ErrNoLanguages   = errors.New("insights: no languages found")
)

// Issue is a rollup that could not be produced for a language.
type Issue struct {
	Lang     string
	Artifact string
	Err      error
}

type Summary struct {
	Languages int
	// Written counts published files per artifact. Existing counts the files
	// left untouched because they were already published.
	Written  map[string]int
	Existing map[string]int
	Issues   []Issue
	Elapsed  time.Duration
}

func newSummary() Summary {
	return Summary{Written: make(map[string]int), Existing: make(map[string]int)}
}

func (s *Summary) merge(o Summary) {
	for k, v := range o.Written {
		s.Written[k] += v
	}
	for k, v := range o.Existing {
		s.Existing[k] += v
	}
	s.Issues = append(s.Issues, o.Issues...)
}

// Build produces the rollups of every selected language. Languages default to
// all languages present in either source.
func Build(ctx context.Context, o *config.Options, m *metrics.Metrics) (Summary, error) {
	start := time.Now()
	s := newSummary()
	if err := o.Validate(); err != nil {
		return s, err
	}
	langs := o.Insights.Langs
	if len(langs) == 0 {
		var err error
		langs, err = partition.Languages(o.GoldDir, facts.ArticlePopularity, facts.EdgesMonthly)
		if err != nil {
			return s, err
		}
	}
	if len(langs) == 0 {
		return s, fmt.Errorf("%w under %s", ErrNoLanguages, o.GoldDir)
	}
	s.Languages = len(langs)
	lg := log.Get(ctx)
	lg.Info().
		Str("gold", o.GoldDir).
		Str("specifics", o.Specifics()).
		Strs("langs", langs).
		Bool("overwrite", o.Insights.Overwrite).
		Msg("building insights")

	reports := make([]Summary, len(langs))
	var g errgroup.Group
	g.SetLimit(o.Gold.Workers)
	for i, lang := range langs {
		g.Go(func() error {
			b := &builder{
				opts:    o,
				root:    o.Specifics(),
				lang:    lang,
				pub:     &storage.Publisher{Scratch: o.Scratch(lang), Retries: 3},
				metrics: m,
				sum:     newSummary(),
			}
			b.run(log.With(ctx, "lang", lang))
			reports[i] = b.sum
			return nil
		})
	}
	g.Wait()
	for _, r := range reports {
		s.merge(r)
	}
	s.Elapsed = time.Since(start)
	for _, i := range s.Issues {
		lg.Warn().Str("lang", i.Lang).Str("artifact", i.Artifact).Err(i.Err).Msg("insight skipped")
	}
	lg.Info().
		Interface("written", s.Written).
		Interface("existing", s.Existing).
		Int("issues", len(s.Issues)).
		Dur("elapsed", s.Elapsed).
		Msg("insights complete")
	return s, ctx.Err()
}

// builder produces the rollups of one language.
type builder struct {
	opts    *config.Options
	root    string
	lang    string
	pub     *storage.Publisher
	metrics *metrics.Metrics
	names   namer
	sum     Summary
}

func (b *builder) run(ctx context.Context) {
	if err := b.pub.Sweep(); err != nil {
		log.Get(ctx).Warn().Err(err).Str("scratch", b.pub.Scratch).Msg("cannot clear scratch directory")
	}
	d, err := dict.Load(b.opts.DictPath(b.lang))
	if err != nil {
		log.Get(ctx).Warn().Err(err).Msg("dictionary unavailable, ids are rendered as numbers")
	} else {
		b.names.dict = d
	}
	if err := ctx.Err(); err != nil {
		return
	}
	b.popularity(ctx)
	if err := ctx.Err(); err != nil {
		return
	}
	b.edges(ctx)
}

func (b *builder) issue(artifacts []string, err error) {
	for _, a := range artifacts {
		b.sum.Issues = append(b.sum.Issues, Issue{Lang: b.lang, Artifact: a, Err: err})
	}
}

// pending reports whether path still has to be written.
func (b *builder) pending(ctx context.Context, artifact, path string) bool {
	if b.opts.Insights.Overwrite || !storage.Exists(path) {
		return true
	}
	b.sum.Existing[artifact]++
	log.Get(ctx).Debug().Str("artifact", artifact).Str("path", path).Msg("exists, skipping")
	return false
}

func write[T any](ctx context.Context, b *builder, artifact, path string, rows []T) {
	start := time.Now()
	size, err := storage.Write(b.pub, path, rows)
	if err != nil {
		b.issue([]string{artifact}, err)
		return
	}
	b.sum.Written[artifact]++
	b.metrics.Artifact(artifact, size)
	log.Get(ctx).Info().
		Str("artifact", artifact).
		Str("path", path).
		Int("rows", len(rows)).
		Int64("size", size).
		Dur("elapsed", time.Since(start)).
		Msg("published")
}

func (b *builder) popularity(ctx context.Context) {
	src, err := open(b.opts.GoldDir, facts.ArticlePopularity, b.lang)
	all := []string{TopByYearArtifact, AllTimeArtifact, TrendingArtifact}
	if err != nil {
		b.issue(all, err)
		return
	}
	now, ok := src.latest()
	if !ok {
		log.Get(ctx).Warn().Str("source", facts.ArticlePopularity).Msg("no data")
		return
	}

	var years []int
	for _, y := range src.years() {
		if b.pending(ctx, TopByYearArtifact, b.yearPath(y)) {
			years = append(years, y)
		}
	}
	allTime := b.pending(ctx, AllTimeArtifact, b.langPath(AllTimeArtifact))
	trending := b.pending(ctx, TrendingArtifact, b.periodPath(TrendingArtifact, now))
	if len(years) == 0 && !allTime && !trending {
		return
	}

	curr := src.variant("curr")
	if curr == None {
		b.issue(all, fmt.Errorf("%w: %s has no curr_title, curr_name or curr_id", ErrNoTitleColumn, facts.ArticlePopularity))
		return
	}
	log.Get(ctx).Debug().Str("source", facts.ArticlePopularity).Stringer("curr", curr).Msg("resolved columns")
	clicks, err := src.clicks(curr, b.names, nil)
	if err != nil {
		b.issue(all, err)
		return
	}
	if len(years) > 0 {
		byYear := TopByYear(clicks, yearlyTop)
		for _, y := range years {
			write(ctx, b, TopByYearArtifact, b.yearPath(y), byYear[y])
		}
	}
	if allTime {
		write(ctx, b, AllTimeArtifact, b.langPath(AllTimeArtifact), AllTimeTop(clicks, b.opts.Insights.TopNAllTime))
	}
	if trending {
		write(ctx, b, TrendingArtifact, b.periodPath(TrendingArtifact, now), Trending(clicks, now, b.opts.Insights.TopNTrending))
	}
}

func (b *builder) edges(ctx context.Context) {
	src, err := open(b.opts.GoldDir, facts.EdgesMonthly, b.lang)
	all := []string{EdgesArtifact, ReferrersArtifact}
	if err != nil {
		b.issue(all, err)
		return
	}
	now, ok := src.latest()
	if !ok {
		log.Get(ctx).Warn().Str("source", facts.EdgesMonthly).Msg("no data")
		return
	}
	edges := b.pending(ctx, EdgesArtifact, b.periodPath(EdgesArtifact, now))
	referrers := b.pending(ctx, ReferrersArtifact, b.periodPath(ReferrersArtifact, now))
	if !edges && !referrers {
		return
	}

	prev, curr := src.variant("prev"), src.variant("curr")
	if prev == None || curr == None {
		b.issue(all, fmt.Errorf("%w: %s lacks prev_* or curr_* article columns", ErrNoTitleColumn, facts.EdgesMonthly))
		return
	}
	log.Get(ctx).Debug().Str("source", facts.EdgesMonthly).Stringer("prev", prev).Stringer("curr", curr).Msg("resolved columns")
	window := now.Window(trailingMonths)
	ts, err := src.transitions(prev, curr, b.names, func(p partition.Period) bool {
		_, ok := window[p]
		return ok
	})
	if err != nil {
		b.issue(all, err)
		return
	}
	if edges {
		write(ctx, b, EdgesArtifact, b.periodPath(EdgesArtifact, now), Edges(ts, b.opts.Insights.TopNEdges))
	}
	if referrers {
		write(ctx, b, ReferrersArtifact, b.periodPath(ReferrersArtifact, now), Referrers(ts, b.opts.Insights.TopMReferrers))
	}
}

func (b *builder) yearPath(year int) string {
	return filepath.Join(partition.YearPath(b.root, TopByYearArtifact, b.lang, year), partition.DataFile)
}

func (b *builder) langPath(artifact string) string {
	return filepath.Join(partition.LangPath(b.root, artifact, b.lang), partition.DataFile)
}

func (b *builder) periodPath(artifact string, p partition.Period) string {
	return partition.Path(b.root, artifact, b.lang, p.Year, p.Month)
}
