// Package numbering generates year-scoped work order numbers (OT-YYYY-NNN).
package numbering

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

// Prefix starts every order number.
const Prefix = "OT"

// Format renders an order number for year and seq, zero-padded to three digits.
func Format(year, seq int) string {
	return fmt.Sprintf("%s-%d-%03d", Prefix, year, seq)
}

// Parse splits an order number into year and sequence.
func Parse(number string) (year, seq int, ok bool) {
	parts := strings.Split(number, "-")
	if len(parts) != 3 || parts[0] != Prefix {
		return 0, 0, false
	}
	y, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 4 {
		return 0, 0, false
	}
	s, err := strconv.Atoi(parts[2])
	if err != nil || s < 0 {
		return 0, 0, false
	}
	return y, s, true
}

// Next returns the number following the highest sequence of year among
// existing. Numbers of other years or in another format are ignored.
func Next(existing []string, year int) string {
	maxSeq := 0
	for _, n := range existing {
		y, s, ok := Parse(n)
		if !ok || y != year {
			continue
		}
		if s > maxSeq {
			maxSeq = s
		}
	}
	return Format(year, maxSeq+1)
}

// Lookup returns every persisted order number for year.
type Lookup func(ctx context.Context, year int) ([]string, error)

// Generator produces order numbers from persisted state.
type Generator struct {
	lookup Lookup
	now    func() time.Time
	rand   func() int
	logger *slog.Logger
	// OnFallback, if set, is called whenever a random number is handed out.
	OnFallback func()
}

// NewGenerator creates a Generator backed by lookup.
func NewGenerator(lookup Lookup, logger *slog.Logger) *Generator {
	return &Generator{
		lookup: lookup,
		now:    time.Now,
		rand:   func() int { return 100 + rand.IntN(900) },
		logger: logger,
	}
}

// WithClock overrides the time source. Used by tests.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithRand overrides the fallback suffix source. Used by tests.
func (g *Generator) WithRand(fn func() int) *Generator {
	g.rand = fn
	return g
}

// Next returns the next order number for the current year.
//
// If the lookup fails, a random three-digit suffix is used instead and
// degraded is true. Such a number may collide with an existing order.
func (g *Generator) Next(ctx context.Context) (number string, degraded bool) {
	year := g.now().Year()
	existing, err := g.lookup(ctx, year)
	if err != nil {
		number = Format(year, g.rand())
		g.logger.Warn("order number lookup failed, using random suffix",
			slog.String("number", number),
			slog.String("error", err.Error()))
		if g.OnFallback != nil {
			g.OnFallback()
		}
		return number, true
	}
	return Next(existing, year), false
}
