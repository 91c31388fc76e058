// Package billing holds the money arithmetic for service requests. All
// amounts are integer paise; formatting to rupees happens only at the edges.
package billing

import (
	"github.com/shopspring/decimal"
)

// TotalsSource is the stored aggregate view of a request. Stored totals may
// be stale (they predate the app computing totals authoritatively), so reads
// go through CalculateRequestTotals instead of trusting them directly.
type TotalsSource struct {
	SubtotalPaise int64
	TotalPaise    int64
	LacartePaise  *int64 // per-order override; nil means use the fallback
}

// Totals is a reconciled (subtotal, total) pair safe for display and export.
type Totals struct {
	SubtotalPaise int64
	TotalPaise    int64
}

// CalculateRequestTotals recomputes a trustworthy subtotal/total pair.
//
// The subtotal comes from the live item list when one is supplied, else the
// stored subtotal. The effective La Carte charge is the per-order override if
// set, else fallbackLaCarte. The returned total is floored at the stored
// total: a stored total may legitimately exceed subtotal+lacarte when it
// already includes add-ons or bundles that are only resolvable through the
// confirmed-selection tables, and it must never be lowered here.
func CalculateRequestTotals(src TotalsSource, itemPrices []int64, fallbackLaCarte int64) Totals {
	subtotal := src.SubtotalPaise
	if len(itemPrices) > 0 {
		subtotal = 0
		for _, p := range itemPrices {
			subtotal += p
		}
	}

	lacarte := fallbackLaCarte
	if src.LacartePaise != nil {
		lacarte = *src.LacartePaise
	}

	derived := subtotal + lacarte
	total := src.TotalPaise
	if derived > total {
		total = derived
	}

	return Totals{SubtotalPaise: subtotal, TotalPaise: total}
}

// EffectiveLaCarte resolves the per-order override against the global charge.
func EffectiveLaCarte(override *int64, fallback int64) int64 {
	if override != nil {
		return *override
	}
	return fallback
}

var hundred = decimal.NewFromInt(100)

// FormatPaise renders integer paise as a rupee amount with two decimals,
// e.g. 150000 -> "1500.00".
func FormatPaise(paise int64) string {
	return decimal.NewFromInt(paise).Div(hundred).StringFixed(2)
}
