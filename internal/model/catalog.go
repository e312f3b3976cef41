package model

import "strings"

// OccasionDefinition describes an occasion staff can pick and the extra
// fields it requires.  Read-only catalog data.
type OccasionDefinition struct {
	Name               string            `json:"name"`
	RequiredFields     []string          `json:"requiredFields"`
	FieldLabels        map[string]string `json:"fieldLabels"`
	IncludesDecoration bool              `json:"includeInDecoration"`
	IsActive           bool              `json:"isActive"`
}

// Label returns the human label configured for a field key, or "".
func (d OccasionDefinition) Label(key string) string {
	return d.FieldLabels[key]
}

// Capacity is the guest range included in a theater's base price (Min) and
// the hard maximum it can hold (Max).
type Capacity struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Theater is a private screening room that can be booked per slot.
type Theater struct {
	Name          string   `json:"name"`
	Capacity      Capacity `json:"capacity"`
	BasePrice     int64    `json:"basePrice"`
	ExtraGuestFee int64    `json:"extraGuestFee"`
	DecorationFee int64    `json:"decorationFee"`
	Slots         []string `json:"timeSlots"`
}

// ServiceCategory groups catalog items under a display name such as
// "Cakes" or "Photo Shoot".
type ServiceCategory struct {
	Name  string        `json:"name"`
	Items []ServiceItem `json:"items"`
}

// ServiceItem is a catalog entry.  Price is used when the item has no
// variant prices.
type ServiceItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	HalfPrice   int64  `json:"halfPrice,omitempty"`
	FullPrice   int64  `json:"fullPrice,omitempty"`
	SmallPrice  int64  `json:"smallPrice,omitempty"`
	MediumPrice int64  `json:"mediumPrice,omitempty"`
	LargePrice  int64  `json:"largePrice,omitempty"`
	FoodType    string `json:"foodType,omitempty"`
}

// Variant is one priced size/portion option of a catalog item.
type Variant struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Price int64  `json:"price"`
}

// Variants lists the priced options of the item: Half/Full when either is
// set, otherwise Small/Medium/Large.  Options without a price are skipped.
func (i ServiceItem) Variants() []Variant {
	var out []Variant
	if i.HalfPrice > 0 || i.FullPrice > 0 {
		if i.HalfPrice > 0 {
			out = append(out, Variant{Key: "half", Label: "Half", Price: i.HalfPrice})
		}
		if i.FullPrice > 0 {
			out = append(out, Variant{Key: "full", Label: "Full", Price: i.FullPrice})
		}
		return out
	}
	if i.SmallPrice > 0 {
		out = append(out, Variant{Key: "small", Label: "Small", Price: i.SmallPrice})
	}
	if i.MediumPrice > 0 {
		out = append(out, Variant{Key: "medium", Label: "Medium", Price: i.MediumPrice})
	}
	if i.LargePrice > 0 {
		out = append(out, Variant{Key: "large", Label: "Large", Price: i.LargePrice})
	}
	return out
}

// PricingDefaults are the global fallbacks used when neither the booking
// snapshot nor the theater carries a fee.
type PricingDefaults struct {
	DecorationFee int64 `json:"decorationFee"`
	ExtraGuestFee int64 `json:"extraGuestFee"`
}

// Catalogs bundles every catalog read the reconciler needs.  Any slice may
// be empty when its source failed to load.
type Catalogs struct {
	Theaters  []Theater
	Services  []ServiceCategory
	Occasions []OccasionDefinition
	Defaults  PricingDefaults
}

// Theater looks a theater up by name, ignoring case and surrounding space.
func (c Catalogs) Theater(name string) (Theater, bool) {
	want := strings.TrimSpace(name)
	for _, t := range c.Theaters {
		if strings.EqualFold(strings.TrimSpace(t.Name), want) {
			return t, true
		}
	}
	return Theater{}, false
}
