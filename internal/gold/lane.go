package gold

import (
	"context"
	"fmt"
	"time"

	"github.com/vinceanalytics/wikiclicks/internal/dict"
	"github.com/vinceanalytics/wikiclicks/internal/log"
	"github.com/vinceanalytics/wikiclicks/internal/partition"
)

// Failure identifies a partition, or a whole language when Year is zero, that
// could not be processed.
type Failure struct {
	Lang  string
	Year  int
	Month int
	Path  string
	Err   error
}

func (f Failure) String() string {
	switch {
	case f.Lang == "":
		return fmt.Sprintf("%s: %v", f.Path, f.Err)
	case f.Year == 0:
		return fmt.Sprintf("%s: %v", f.Lang, f.Err)
	default:
		return fmt.Sprintf("%s/%04d-%02d: %v", f.Lang, f.Year, f.Month, f.Err)
	}
}

// Report is the outcome of one language lane.
type Report struct {
	Lang       string
	Processed  int
	Skipped    int
	Failures   []Failure
	Artifacts  map[string]int
	Dictionary *dict.Dictionary
}

// Lane processes the partitions of lang one after the other in chronological
// order, threading the dictionary through every call. A failed partition is
// recorded and the lane moves on; a dictionary that cannot be loaded fails
// every partition of the lane.
func (a *Aggregator) Lane(ctx context.Context, lang string, parts []partition.Partition) Report {
	ctx = log.With(ctx, "lang", lang)
	r := Report{Lang: lang, Artifacts: make(map[string]int)}
	start := time.Now()

	if err := a.pub.Sweep(); err != nil {
		log.Get(ctx).Warn().Err(err).Str("scratch", a.pub.Scratch).Msg("cannot clear scratch directory")
	}
	d, err := dict.Load(a.opts.DictPath(lang))
	if err != nil {
		log.Get(ctx).Error().Err(err).Int("partitions", len(parts)).Msg("cannot load dictionary, skipping language")
		r.Skipped = len(parts)
		r.Failures = append(r.Failures, Failure{Lang: lang, Path: a.opts.DictPath(lang), Err: err})
		for range parts {
			a.metrics.Partition(lang, string(Skipped), 0)
		}
		return r
	}
	log.Get(ctx).Debug().Int("entries", d.Len()).Int64("max_id", d.Max()).Msg("dictionary loaded")

	for i, p := range parts {
		if err := ctx.Err(); err != nil {
			rest := len(parts) - i
			log.Get(ctx).Warn().Err(err).Int("partitions", rest).Msg("stopping language")
			r.Skipped += rest
			r.Failures = append(r.Failures, Failure{Lang: lang, Year: p.Year, Month: p.Month, Path: p.Path, Err: err})
			break
		}
		pctx := log.With(ctx, "year", fmt.Sprintf("%04d", p.Year), "month", fmt.Sprintf("%02d", p.Month))
		began := time.Now()
		res, next, err := a.ProcessPartition(pctx, p, d)
		d = next
		if err != nil {
			log.Get(pctx).Error().Err(err).Str("path", p.Path).Msg("partition failed")
			r.Skipped++
			r.Failures = append(r.Failures, Failure{Lang: lang, Year: p.Year, Month: p.Month, Path: p.Path, Err: err})
			a.metrics.Partition(lang, string(Skipped), time.Since(began))
			continue
		}
		a.metrics.Partition(lang, string(res.Status), res.Elapsed)
		switch res.Status {
		case Processed:
			r.Processed++
			for name := range res.Written {
				r.Artifacts[name]++
			}
			log.Get(pctx).Info().Int("artifacts", len(res.Written)).Dur("elapsed", res.Elapsed).Msg("partition processed")
		default:
			r.Skipped++
			log.Get(pctx).Debug().Msg("partition up to date")
		}
	}
	r.Dictionary = d
	log.Get(ctx).Info().
		Int("processed", r.Processed).
		Int("skipped", r.Skipped).
		Int("entries", d.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("language done")
	return r
}
