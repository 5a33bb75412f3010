package gold

import (
	"context"
	"fmt"
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

type Status string

const (
	Processed Status = "processed"
	Skipped   Status = "skipped"
)

type Result struct {
	Partition partition.Partition
	Status    Status
	// Written lists the artifacts published for the partition with their row
	// counts.
	Written map[string]int
	Elapsed time.Duration
}

// Aggregator computes and publishes the gold facts of partitions belonging to
// one language. It holds no dictionary state, the current dictionary is passed
// to every call and the one to continue with is returned.
type Aggregator struct {
	opts    *config.Options
	pub     *storage.Publisher
	metrics *metrics.Metrics
}

func NewAggregator(o *config.Options, lang string, m *metrics.Metrics) *Aggregator {
	return &Aggregator{
		opts:    o,
		pub:     &storage.Publisher{Scratch: o.Scratch(lang), Retries: 3},
		metrics: m,
	}
}

// Enabled returns the artifacts produced under the current switches.
func (a *Aggregator) Enabled() []string {
	o := []string{facts.ArticlePopularity, facts.ArticleTop}
	if a.opts.Gold.Referrers {
		o = append(o, facts.ReferrersTop)
	}
	if a.opts.Gold.Edges {
		o = append(o, facts.EdgesMonthly)
	}
	return o
}

// Missing returns the enabled artifacts that still have to be published for
// p. Without skip-existing every enabled artifact is missing.
func (a *Aggregator) Missing(p partition.Partition) []string {
	enabled := a.Enabled()
	if !a.opts.Gold.SkipExisting {
		return enabled
	}
	o := make([]string, 0, len(enabled))
	for _, name := range enabled {
		if !storage.Exists(a.path(name, p)) {
			o = append(o, name)
		}
	}
	return o
}

func (a *Aggregator) path(artifact string, p partition.Partition) string {
	return partition.Path(a.opts.GoldDir, artifact, p.Lang, p.Year, p.Month)
}

// ProcessPartition brings the gold artifacts of p up to date.
//
// The dictionary is merged with every title of p and persisted before any
// fact is computed. The returned dictionary is the one the caller must use for
// the next partition: d itself when nothing new was persisted, the merged
// value otherwise, even if publishing a fact later fails.
func (a *Aggregator) ProcessPartition(ctx context.Context, p partition.Partition, d *dict.Dictionary) (Result, *dict.Dictionary, error) {
	start := time.Now()
	res := Result{Partition: p, Status: Skipped}
	missing := a.Missing(p)
	if len(missing) == 0 {
		res.Elapsed = time.Since(start)
		return res, d, nil
	}
	rows, err := facts.Read(p.Path)
	if err != nil {
		return res, d, err
	}

	next := d.Merge(facts.Titles(rows))
	dictPath := a.opts.DictPath(p.Lang)
	if next != d || !storage.Exists(dictPath) {
		size, err := next.Persist(a.pub, dictPath)
		if err != nil {
			return res, d, fmt.Errorf("persisting dictionary %s: %w", dictPath, err)
		}
		log.Get(ctx).Debug().
			Str("path", dictPath).
			Int("entries", next.Len()).
			Int("added", next.Len()-d.Len()).
			Int64("size", size).
			Uint64("digest", next.Digest()).
			Msg("dictionary persisted")
	}
	a.metrics.Dictionary(p.Lang, next.Len())

	resolved, err := facts.Resolve(rows, next)
	if err != nil {
		return res, next, err
	}
	k := facts.Key{Lang: p.Lang, Year: p.Year, Month: p.Month}
	g := a.opts.Gold

	written := make([]int, len(missing))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.Threads)
	for i, name := range missing {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := a.path(name, p)
			var (
				n    int
				size int64
				err  error
			)
			began := time.Now()
			switch name {
			case facts.ArticlePopularity:
				rows := facts.PopularityOf(k, resolved)
				n = len(rows)
				size, err = storage.Write(a.pub, path, rows)
			case facts.ArticleTop:
				rows := facts.TopOf(k, resolved, g.TopN)
				n = len(rows)
				size, err = storage.Write(a.pub, path, rows)
			case facts.ReferrersTop:
				rows := facts.ReferrersOf(k, resolved, g.MinReferrerCount, g.TopReferrers)
				n = len(rows)
				size, err = storage.Write(a.pub, path, rows)
			case facts.EdgesMonthly:
				rows := facts.EdgesOf(k, resolved, g.MinEdgeCount)
				n = len(rows)
				size, err = storage.Write(a.pub, path, rows)
			default:
				err = fmt.Errorf("unknown artifact %q", name)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			written[i] = n
			a.metrics.Artifact(name, size)
			log.Get(ctx).Info().
				Str("artifact", name).
				Str("path", path).
				Int("rows", n).
				Int64("size", size).
				Dur("elapsed", time.Since(began)).
				Msg("published")
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return res, next, err
	}
	res.Status = Processed
	res.Written = make(map[string]int, len(missing))
	for i, name := range missing {
		res.Written[name] = written[i]
	}
	res.Elapsed = time.Since(start)
	return res, next, nil
}
