package testutil

import (
	"io"
	"log/slog"

	"github.com/roach88/tap/internal/tap"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Options returns root options for reproducible tests: a queue nobody runs
// (flushes happen only through FlushSync or an explicit Drain), a
// discarding logger, "t-N" instance IDs and a fresh logical clock. A nil
// observer is left unset. extra options are applied last.
//
// The same resource driven the same way with these options produces
// identical events, which is what golden traces rely on.
func Options(obs tap.Observer, extra ...tap.Option) []tap.Option {
	opts := []tap.Option{
		tap.WithScheduler(tap.NewQueue()),
		tap.WithLogger(DiscardLogger()),
		tap.WithIDGenerator(tap.NewSequenceGenerator("t")),
		tap.WithClock(tap.NewClock()),
	}
	if obs != nil {
		opts = append(opts, tap.WithObserver(obs))
	}
	return append(opts, extra...)
}
