// Package selection models the customer's staged choices for one service
// request: which line items, add-ons, and bundle are picked before
// confirmation. The state is explicit and scoped to a single order slug;
// persistence is an injectable Store so the staging area can live in memory,
// in a shared store, or nowhere at all under test.
package selection

import (
	"github.com/google/uuid"
)

// State is the staged selection for one request. It is a value type: all
// operations return a new State and never mutate the receiver.
type State struct {
	ItemIDs  []uuid.UUID `json:"item_ids"`
	AddonIDs []uuid.UUID `json:"addon_ids"`
	BundleID *uuid.UUID  `json:"bundle_id"`
}

// Catalog carries the live prices a selection is valued against. Inactive or
// deleted entries are simply absent and contribute nothing.
type Catalog struct {
	ItemPrices   map[uuid.UUID]int64
	AddonPrices  map[uuid.UUID]int64
	BundlePrices map[uuid.UUID]int64
}

// Totals is the reactively computed value of a selection.
type Totals struct {
	SubtotalPaise  int64 `json:"subtotal_paise"`
	AddonsPaise    int64 `json:"addons_paise"`
	BundlePaise    int64 `json:"bundle_paise"`
	LacartePaise   int64 `json:"lacarte_paise"`
	TotalPaise     int64 `json:"total_paise"`
	SelectionPaise int64 `json:"selection_paise"`
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func toggle(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids)+1)
	found := false
	for _, v := range ids {
		if v == id {
			found = true
			continue
		}
		out = append(out, v)
	}
	if !found {
		out = append(out, id)
	}
	return out
}

// HasItem reports whether the line item is currently selected.
func (s State) HasItem(id uuid.UUID) bool { return contains(s.ItemIDs, id) }

// HasAddon reports whether the add-on is currently selected.
func (s State) HasAddon(id uuid.UUID) bool { return contains(s.AddonIDs, id) }

// ToggleItem flips a line item in or out of the selection.
func (s State) ToggleItem(id uuid.UUID) State {
	s.ItemIDs = toggle(s.ItemIDs, id)
	return s
}

// ToggleAddon flips an add-on in or out of the selection.
func (s State) ToggleAddon(id uuid.UUID) State {
	s.AddonIDs = toggle(s.AddonIDs, id)
	return s
}

// SelectBundle applies the cardinality-one bundle rule: picking a different
// bundle replaces the current one, picking the current bundle clears it.
func (s State) SelectBundle(id uuid.UUID) State {
	if s.BundleID != nil && *s.BundleID == id {
		s.BundleID = nil
		return s
	}
	b := id
	s.BundleID = &b
	return s
}

// Sanitize drops selected IDs that no longer exist in the live catalog, so a
// stale staged selection cannot reference retired entries.
func (s State) Sanitize(cat Catalog) State {
	items := make([]uuid.UUID, 0, len(s.ItemIDs))
	for _, id := range s.ItemIDs {
		if _, ok := cat.ItemPrices[id]; ok {
			items = append(items, id)
		}
	}
	addons := make([]uuid.UUID, 0, len(s.AddonIDs))
	for _, id := range s.AddonIDs {
		if _, ok := cat.AddonPrices[id]; ok {
			addons = append(addons, id)
		}
	}
	s.ItemIDs = items
	s.AddonIDs = addons
	if s.BundleID != nil {
		if _, ok := cat.BundlePrices[*s.BundleID]; !ok {
			s.BundleID = nil
		}
	}
	return s
}

// ComputeTotals values the selection against live catalog prices plus the
// effective La Carte charge. Stored aggregates are never consulted here.
func (s State) ComputeTotals(cat Catalog, lacartePaise int64) Totals {
	var t Totals
	t.LacartePaise = lacartePaise
	for _, id := range s.ItemIDs {
		t.SubtotalPaise += cat.ItemPrices[id]
	}
	for _, id := range s.AddonIDs {
		t.AddonsPaise += cat.AddonPrices[id]
	}
	if s.BundleID != nil {
		t.BundlePaise = cat.BundlePrices[*s.BundleID]
	}
	t.SelectionPaise = t.SubtotalPaise + t.AddonsPaise + t.BundlePaise
	t.TotalPaise = t.SelectionPaise + t.LacartePaise
	return t
}

// CanConfirm gates confirmation on the minimum-selection rule: the total must
// exceed the La Carte charge alone, i.e. at least one billable selection.
func (s State) CanConfirm(cat Catalog, lacartePaise int64) bool {
	return s.ComputeTotals(cat, lacartePaise).SelectionPaise > 0
}
