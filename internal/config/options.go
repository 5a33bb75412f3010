package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

const (
	SpecificsDir = "GOLD_Specifics"
	DictDir      = "dimensions/articles"
	DictFile     = "dict.parquet"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Options struct {
	SilverDir    string `yaml:"silver_dir"`
	GoldDir      string `yaml:"gold_dir"`
	SpecificsDir string `yaml:"specifics_dir"`
	TmpDir       string `yaml:"tmp_dir"`
	LogLevel     string `yaml:"log_level"`
	MetricsFile  string `yaml:"metrics_file"`

	Gold     Gold     `yaml:"gold"`
	Insights Insights `yaml:"insights"`
}

// Gold configures the partition aggregation pipeline.
type Gold struct {
	TopN             int   `yaml:"top_n"`
	TopReferrers     int   `yaml:"top_referrers"`
	MinEdgeCount     int64 `yaml:"min_edge_count"`
	MinReferrerCount int64 `yaml:"min_referrer_count"`

	Edges        bool `yaml:"edges"`
	Referrers    bool `yaml:"referrers"`
	SkipExisting bool `yaml:"skip_existing"`

	// Workers is the number of languages processed at once. Threads bounds
	// the artifacts published concurrently for one partition.
	Workers int `yaml:"workers"`
	Threads int `yaml:"threads"`

	Lang        string `yaml:"lang"`
	Year        int    `yaml:"year"`
	Month       int    `yaml:"month"`
	LatestMonth bool   `yaml:"latest_month"`
}

// Insights configures the cross partition rollups.
type Insights struct {
	Langs         []string `yaml:"langs"`
	TopNAllTime   int      `yaml:"topn_alltime"`
	TopNTrending  int      `yaml:"topn_trending"`
	TopNEdges     int      `yaml:"topn_edges"`
	TopMReferrers int      `yaml:"topm_referrers"`
	Overwrite     bool     `yaml:"overwrite"`
}

func Defaults() *Options {
	return &Options{
		SilverDir: "silver",
		GoldDir:   "gold",
		LogLevel:  "info",
		Gold: Gold{
			TopN:             1000,
			TopReferrers:     50,
			MinEdgeCount:     1,
			MinReferrerCount: 1,
			Edges:            true,
			Referrers:        true,
			SkipExisting:     true,
			Workers:          2,
			Threads:          6,
		},
		Insights: Insights{
			TopNAllTime:   500,
			TopNTrending:  1000,
			TopNEdges:     100000,
			TopMReferrers: 50,
		},
	}
}

// Load merges the YAML settings file at path into o. Keys absent from the
// file keep their current value.
func Load(path string, o *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := yaml.UnmarshalStrict(data, o); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

func (o *Options) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(o.SilverDir != "", "silver_dir is required")
	check(o.GoldDir != "", "gold_dir is required")
	check(o.Gold.TopN > 0, "top_n must be positive, got %d", o.Gold.TopN)
	check(o.Gold.TopReferrers > 0, "top_referrers must be positive, got %d", o.Gold.TopReferrers)
	check(o.Gold.MinEdgeCount > 0, "min_edge_count must be positive, got %d", o.Gold.MinEdgeCount)
	check(o.Gold.MinReferrerCount > 0, "min_referrer_count must be positive, got %d", o.Gold.MinReferrerCount)
	check(o.Gold.Workers > 0, "workers must be positive, got %d", o.Gold.Workers)
	check(o.Gold.Threads > 0, "threads must be positive, got %d", o.Gold.Threads)
	check(o.Gold.Year >= 0, "year must not be negative, got %d", o.Gold.Year)
	check(o.Gold.Month >= 0 && o.Gold.Month <= 12, "month must be within 1..12, got %d", o.Gold.Month)
	check(o.Insights.TopNAllTime > 0, "topn_alltime must be positive, got %d", o.Insights.TopNAllTime)
	check(o.Insights.TopNTrending > 0, "topn_trending must be positive, got %d", o.Insights.TopNTrending)
	check(o.Insights.TopNEdges > 0, "topn_edges must be positive, got %d", o.Insights.TopNEdges)
	check(o.Insights.TopMReferrers > 0, "topm_referrers must be positive, got %d", o.Insights.TopMReferrers)
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Specifics returns the insights output root. It defaults to a GOLD_Specifics
// directory next to the gold root.
func (o *Options) Specifics() string {
	if o.SpecificsDir != "" {
		return o.SpecificsDir
	}
	return filepath.Join(filepath.Dir(filepath.Clean(o.GoldDir)), SpecificsDir)
}

// DictPath is the dictionary file of lang inside the gold root.
func (o *Options) DictPath(lang string) string {
	return filepath.Join(o.GoldDir, filepath.FromSlash(DictDir), "lang="+lang, DictFile)
}

// Scratch is the staging directory owned by the lane of lang, empty when no
// temporary directory is configured.
func (o *Options) Scratch(lang string) string {
	if o.TmpDir == "" {
		return ""
	}
	return filepath.Join(o.TmpDir, "lang="+lang)
}

// ParseLangs turns a --langs value into a language list. An empty value or
// "all" selects every language and returns nil.
func ParseLangs(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return nil
	}
	var o []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			o = append(o, v)
		}
	}
	return o
}
