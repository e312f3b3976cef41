// Package ledger tracks the service items (cakes, decor, gifts, movies,
// add-ons and custom categories) selected on a booking.  Every mutation
// reports the signed cost change it caused so the caller can fold it into
// the pricing breakdown without re-summing the whole booking.
package ledger

import (
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/theater-booking/internal/model"
	"github.com/iliyamo/theater-booking/internal/pricing"
)

var (
	// ErrNoPendingVariant is returned by ConfirmVariant when no variant
	// choice is open.
	ErrNoPendingVariant = errors.New("no variant choice pending")
	// ErrUnknownVariant is returned when the chosen variant is not offered
	// by the pending item.  The choice stays open.
	ErrUnknownVariant = errors.New("unknown variant")
)

// DefaultCustomName names custom entries added without a name.
const DefaultCustomName = "Other"

// Mutation is the outcome of one ledger edit.  Items is the category's new
// selection list; Delta is positive for additions and negative for
// removals.  Pending is set when the edit opened a variant choice instead
// of adding anything.
type Mutation struct {
	Category string
	Items    []model.ServiceSelection
	Delta    int64
	Pending  *VariantChoice
}

// VariantChoice is an open Half/Full or Small/Medium/Large selection step
// waiting for ConfirmVariant.
type VariantChoice struct {
	Category string            `json:"category"`
	Item     model.ServiceItem `json:"item"`
	Variants []model.Variant   `json:"variants"`
}

// Ledger holds the selections of one booking.  It is not safe for
// concurrent use; the owning session serializes access.
type Ledger struct {
	selections map[string][]model.ServiceSelection
	pending    *VariantChoice
}

// New returns a ledger seeded with a copy of the stored selections.
func New(initial map[string][]model.ServiceSelection) *Ledger {
	l := &Ledger{selections: make(map[string][]model.ServiceSelection, len(initial))}
	for k, items := range initial {
		if len(items) > 0 {
			l.selections[k] = append([]model.ServiceSelection(nil), items...)
		}
	}
	return l
}

// Toggle adds item to the category, or removes it when an entry for the
// same base item is already selected.  Items with variant prices are not
// added directly: the returned mutation carries a pending VariantChoice to
// be settled with ConfirmVariant or CancelVariant.
func (l *Ledger) Toggle(category string, item model.ServiceItem) Mutation {
	key := FieldKey(category)
	current := l.selections[key]

	var kept []model.ServiceSelection
	var removed int64
	for _, sel := range current {
		if sameBase(sel, item) {
			removed += sel.LineTotal()
			continue
		}
		kept = append(kept, sel)
	}
	if len(kept) != len(current) {
		l.set(key, kept)
		return l.mutation(key, -removed)
	}

	if key == KeyMovies {
		l.set(key, []model.ServiceSelection{selectionOf(item)})
		return l.mutation(key, 0)
	}

	if variants := item.Variants(); len(variants) > 0 {
		l.pending = &VariantChoice{Category: key, Item: item, Variants: variants}
		m := l.mutation(key, 0)
		m.Pending = l.pending
		return m
	}

	sel := selectionOf(item)
	l.set(key, append(current, sel))
	return l.mutation(key, sel.LineTotal())
}

// Pending returns the open variant choice, if any.
func (l *Ledger) Pending() *VariantChoice { return l.pending }

// ConfirmVariant settles the pending choice by adding the chosen variant
// with the given quantity (at least 1).
func (l *Ledger) ConfirmVariant(variant string, quantity int) (Mutation, error) {
	if l.pending == nil {
		return Mutation{}, ErrNoPendingVariant
	}
	p := l.pending
	want := strings.TrimSpace(variant)
	for _, v := range p.Variants {
		if !strings.EqualFold(v.Key, want) && !strings.EqualFold(v.Label, want) {
			continue
		}
		if quantity < 1 {
			quantity = 1
		}
		sel := model.ServiceSelection{
			ID:        variantID(p.Item, v),
			Name:      p.Item.Name + " (" + v.Label + ")",
			Variant:   v.Key,
			UnitPrice: v.Price,
			Quantity:  quantity,
			FoodType:  p.Item.FoodType,
		}
		l.pending = nil
		l.set(p.Category, append(l.selections[p.Category], sel))
		return l.mutation(p.Category, sel.LineTotal()), nil
	}
	return Mutation{}, ErrUnknownVariant
}

// CancelVariant drops the pending choice without changing anything.
func (l *Ledger) CancelVariant() { l.pending = nil }

// AddCustom inserts a free-form item that is not in the catalog.  Repeated
// calls add separate entries, each with its own id.  Raw price and
// quantity are coerced like any other monetary input.
func (l *Ledger) AddCustom(category, name string, unitPrice, quantity any) Mutation {
	key := FieldKey(category)
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultCustomName
	}
	qty := pricing.ParseCount(quantity)
	if qty < 1 {
		qty = 1
	}
	sel := model.ServiceSelection{
		ID:        "custom-" + uuid.NewString(),
		Name:      name,
		UnitPrice: pricing.ParseAmount(unitPrice),
		Quantity:  qty,
		Custom:    true,
	}
	if key == KeyMovies {
		l.set(key, []model.ServiceSelection{sel})
		return l.mutation(key, 0)
	}
	l.set(key, append(l.selections[key], sel))
	return l.mutation(key, sel.LineTotal())
}

// Remove deletes the single entry identified by id (or by name for entries
// stored without an id).  The bool is false when nothing matched.
func (l *Ledger) Remove(category, id string) (Mutation, bool) {
	key := FieldKey(category)
	current := l.selections[key]
	for i, sel := range current {
		if sel.ID == id || (sel.ID == "" && sel.Name == id) {
			next := append(append([]model.ServiceSelection(nil), current[:i]...), current[i+1:]...)
			l.set(key, next)
			return l.mutation(key, -sel.LineTotal()), true
		}
	}
	return l.mutation(key, 0), false
}

// Items returns a copy of the selections stored under a category.
func (l *Ledger) Items(category string) []model.ServiceSelection {
	items := l.selections[FieldKey(category)]
	if len(items) == 0 {
		return nil
	}
	return append([]model.ServiceSelection(nil), items...)
}

// Categories lists the field keys holding at least one selection, sorted.
func (l *Ledger) Categories() []string {
	keys := make([]string, 0, len(l.selections))
	for k := range l.selections {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Total sums every priced selection.  Movies never count.
func (l *Ledger) Total() int64 {
	var total int64
	for k, items := range l.selections {
		total += categoryTotal(k, items)
	}
	return total
}

// All returns a deep copy of every category's selections.
func (l *Ledger) All() map[string][]model.ServiceSelection {
	out := make(map[string][]model.ServiceSelection, len(l.selections))
	for k, items := range l.selections {
		out[k] = append([]model.ServiceSelection(nil), items...)
	}
	return out
}

func (l *Ledger) set(key string, items []model.ServiceSelection) {
	if len(items) == 0 {
		delete(l.selections, key)
		return
	}
	l.selections[key] = items
}

func (l *Ledger) mutation(key string, delta int64) Mutation {
	if key == KeyMovies {
		delta = 0
	}
	return Mutation{Category: key, Items: l.Items(key), Delta: delta}
}

func categoryTotal(key string, items []model.ServiceSelection) int64 {
	if key == KeyMovies {
		return 0
	}
	var total int64
	for _, it := range items {
		total += it.LineTotal()
	}
	return total
}

func selectionOf(item model.ServiceItem) model.ServiceSelection {
	return model.ServiceSelection{
		ID:        item.ID,
		Name:      item.Name,
		UnitPrice: item.Price,
		Quantity:  1,
		FoodType:  item.FoodType,
	}
}

func variantID(item model.ServiceItem, v model.Variant) string {
	if item.ID == "" {
		return ""
	}
	return item.ID + "-" + v.Key
}

// sameBase reports whether a stored selection is an entry for the catalog
// item: same id (or the id with a variant suffix), else the same name or
// the "<name> (<variant>)" form.  Custom entries never match the catalog.
func sameBase(sel model.ServiceSelection, item model.ServiceItem) bool {
	if sel.Custom {
		return false
	}
	if sel.ID != "" && item.ID != "" {
		if sel.ID == item.ID || strings.HasPrefix(sel.ID, item.ID+"-") {
			return true
		}
	}
	if item.Name == "" {
		return false
	}
	return sel.Name == item.Name || strings.HasPrefix(sel.Name, item.Name+" (")
}
