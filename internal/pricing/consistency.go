package pricing

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-refunds/internal/money"
	"github.com/noah-isme/toko-refunds/internal/obs"
)

// Totals is a net, vat and gross triple as decimal strings.
type Totals struct {
	Net   string `json:"net"`
	Vat   string `json:"vat"`
	Gross string `json:"gross"`
}

// Checker detects totals where net + vat != gross. It only observes: upstream
// rounding may legitimately produce small differences, so mismatches are
// logged and counted but never returned as errors.
type Checker struct {
	Logger zerolog.Logger
	// Scope labels the mismatch counter, e.g. "cart" or "refund".
	Scope string
}

// NewChecker returns a checker logging through logger.
func NewChecker(logger zerolog.Logger, scope string) *Checker {
	return &Checker{Logger: logger.With().Str("component", "totals_checker").Logger(), Scope: scope}
}

// Check reports whether t is internally consistent, emitting one warning per
// mismatch. A nil checker still evaluates but stays silent.
func (c *Checker) Check(ctx context.Context, ownerID string, t Totals) bool {
	net, errNet := money.Parse(t.Net)
	vat, errVat := money.Parse(t.Vat)
	gross, errGross := money.Parse(t.Gross)
	if errNet == nil && errVat == nil && errGross == nil {
		expected := net.Add(vat)
		if expected.Equal(gross) {
			return true
		}
		c.report(ctx, ownerID, t, expected.String())
		return false
	}
	c.report(ctx, ownerID, t, "")
	return false
}

func (c *Checker) report(ctx context.Context, ownerID string, t Totals, expected string) {
	if c == nil {
		return
	}
	scope := c.Scope
	if scope == "" {
		scope = "totals"
	}
	if obs.TotalsMismatchTotal != nil {
		obs.TotalsMismatchTotal.WithLabelValues(scope).Inc()
	}
	logger := obs.LoggerFrom(ctx, c.Logger)
	evt := logger.Warn().
		Str("scope", scope).
		Str("owner_id", ownerID).
		Str("net", t.Net).
		Str("vat", t.Vat).
		Str("gross", t.Gross)
	if expected != "" {
		evt = evt.Str("expected_gross", expected)
	} else {
		evt = evt.Bool("unparseable", true)
	}
	evt.Msg("totals_mismatch")
}
