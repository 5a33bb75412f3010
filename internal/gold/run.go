// Package gold turns cleaned clickstream partitions into the gold fact tables.
//
// Languages are independent lanes processed concurrently. Within a lane,
// partitions are processed strictly in chronological order because each one
// may append titles to the language dictionary the next one relies on.
package gold

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/vinceanalytics/wikiclicks/internal/config"
	"github.com/vinceanalytics/wikiclicks/internal/log"
	"github.com/vinceanalytics/wikiclicks/internal/metrics"
	"github.com/vinceanalytics/wikiclicks/internal/partition"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInputMissing = errors.New("gold: input root missing")
	ErrNoPartitions = errors.New("gold: no partitions match")
)

type Summary struct {
	Processed int
	Skipped   int
	Languages int
	Failures  []Failure
	// Artifacts counts published files per artifact.
	Artifacts map[string]int
	Elapsed   time.Duration
}

func (s *Summary) merge(r Report) {
	s.Processed += r.Processed
	s.Skipped += r.Skipped
	s.Failures = append(s.Failures, r.Failures...)
	for k, v := range r.Artifacts {
		s.Artifacts[k] += v
	}
}

// Run processes every partition of the silver root selected by the filters.
// Configuration, a missing input root and an empty selection are fatal and
// reported before any lane starts. Partition and language failures are
// recorded in the summary instead.
func Run(ctx context.Context, o *config.Options, m *metrics.Metrics) (Summary, error) {
	start := time.Now()
	s := Summary{Artifacts: make(map[string]int)}
	if err := o.Validate(); err != nil {
		return s, err
	}
	stat, err := os.Stat(o.SilverDir)
	if err != nil {
		return s, fmt.Errorf("%w: %v", ErrInputMissing, err)
	}
	if !stat.IsDir() {
		return s, fmt.Errorf("%w: %s is not a directory", ErrInputMissing, o.SilverDir)
	}
	found, malformed, err := partition.Discover(o.SilverDir)
	if err != nil {
		return s, err
	}
	lg := log.Get(ctx)
	for _, e := range malformed {
		lg.Warn().Err(e).Msg("skipping partition")
		s.Skipped++
		s.Failures = append(s.Failures, Failure{Err: e})
	}
	parts := partition.Filter{
		Lang:   o.Gold.Lang,
		Year:   o.Gold.Year,
		Month:  o.Gold.Month,
		Latest: o.Gold.LatestMonth,
	}.Apply(found)
	if len(parts) == 0 {
		return s, fmt.Errorf("%w under %s", ErrNoPartitions, o.SilverDir)
	}
	lanes := partition.ByLanguage(parts)
	langs := slices.Sorted(maps.Keys(lanes))
	s.Languages = len(langs)

	lg.Info().
		Str("silver", o.SilverDir).
		Str("gold", o.GoldDir).
		Str("tmp", o.TmpDir).
		Int("languages", len(langs)).
		Int("partitions", len(parts)).
		Int("workers", o.Gold.Workers).
		Int("threads", o.Gold.Threads).
		Bool("edges", o.Gold.Edges).
		Bool("referrers", o.Gold.Referrers).
		Bool("skip_existing", o.Gold.SkipExisting).
		Msg("starting gold run")

	reports := make([]Report, len(langs))
	var g errgroup.Group
	g.SetLimit(o.Gold.Workers)
	for i, lang := range langs {
		g.Go(func() error {
			reports[i] = NewAggregator(o, lang, m).Lane(ctx, lang, lanes[lang])
			return nil
		})
	}
	g.Wait()

	for _, r := range reports {
		s.merge(r)
	}
	s.Elapsed = time.Since(start)
	for _, f := range s.Failures {
		lg.Warn().Str("failure", f.String()).Msg("not processed")
	}
	lg.Info().
		Int("processed", s.Processed).
		Int("skipped", s.Skipped).
		Int("failures", len(s.Failures)).
		Interface("artifacts", s.Artifacts).
		Dur("elapsed", s.Elapsed).
		Msg("gold run complete")
	return s, ctx.Err()
}
