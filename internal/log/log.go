package log

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.DurationFieldUnit = time.Millisecond
}

// New returns a logger writing to w at the given level. Unknown levels fall
// back to info.
func New(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func Set(ctx context.Context, lg zerolog.Logger) context.Context {
	return lg.WithContext(ctx)
}

// Get returns the logger stored in ctx. A disabled logger is returned when
// none was set so callers never have to check.
func Get(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// With returns a child context whose logger carries the extra string fields.
func With(ctx context.Context, kv ...string) context.Context {
	lc := Get(ctx).With()
	for i := 0; i+1 < len(kv); i += 2 {
		lc = lc.Str(kv[i], kv[i+1])
	}
	lg := lc.Logger()
	return lg.WithContext(ctx)
}
