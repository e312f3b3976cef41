// Package occasion maps the free-form occasion fields found on stored
// bookings onto the canonical field keys declared by the occasion catalog.
//
// Bookings written by older versions of the portal keep occasion details as
// ad-hoc flat keys, as <key>/<key>_label pairs, or inside an occasionData
// map, and occasion names drift ("Birthday", "birth day", "Bday Party").
// The Resolver reconciles all of them with approximate matching and never
// fails: anything it cannot place is reported as missing.
package occasion

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/iliyamo/theater-booking/internal/model"
)

// Field is one candidate occasion value lifted from a raw booking.
type Field struct {
	Key              string // key as stored
	Label            string // text of the companion <key>_label entry, if any
	Value            string
	FromOccasionData bool // found inside the nested occasionData map
}

// Input is everything the resolver looks at for one booking.  Direct is the
// stored occasionData map (may be nil); Fields lists every candidate value
// in stored order, including the entries of Direct.
type Input struct {
	Direct *model.Document
	Fields []Field
}

// Resolution is the outcome of resolving one booking's occasion.
type Resolution struct {
	Definition *model.OccasionDefinition // nil for custom or unknown occasions
	Data       *model.Document           // canonical field key -> string value
	Missing    []string                  // required keys left empty
	// Consumed lists the occasionData keys whose values were placed under
	// a different canonical key.
	Consumed []string
}

// Custom reports whether no catalog definition applies.
func (r Resolution) Custom() bool { return r.Definition == nil }

// Resolver matches occasion names and fields against the catalog.  It is
// safe for concurrent use once built.
type Resolver struct {
	defs     []model.OccasionDefinition
	synonyms map[string][]string
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithSynonyms adds raw key/label fragments accepted for a field key.  The
// built-in table is only a seed list; occasions added to the catalog later
// should register theirs here.
func WithSynonyms(key string, words ...string) Option {
	return func(r *Resolver) {
		for _, w := range words {
			if n := Normalize(w); n != "" {
				r.synonyms[key] = append(r.synonyms[key], n)
			}
		}
	}
}

// NewResolver builds a resolver over a snapshot of the occasion catalog.
func NewResolver(defs []model.OccasionDefinition, opts ...Option) *Resolver {
	r := &Resolver{
		defs:     append([]model.OccasionDefinition(nil), defs...),
		synonyms: make(map[string][]string, len(seedSynonyms)),
	}
	for k, words := range seedSynonyms {
		r.synonyms[k] = append([]string(nil), words...)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Definitions returns the catalog snapshot the resolver was built with.
func (r *Resolver) Definitions() []model.OccasionDefinition {
	return append([]model.OccasionDefinition(nil), r.defs...)
}

// Match finds the definition for an occasion name.  An exact normalized
// match wins (inactive definitions included, old bookings still point at
// them); otherwise the closest active definition within MaxDistance edits
// is returned, ties going to catalog order.
func (r *Resolver) Match(name string) (*model.OccasionDefinition, bool) {
	n := Normalize(name)
	if n == "" {
		return nil, false
	}
	for i := range r.defs {
		if Normalize(r.defs[i].Name) == n {
			def := r.defs[i]
			return &def, true
		}
	}
	best, bestDist := -1, MaxDistance+1
	for i := range r.defs {
		if !r.defs[i].IsActive {
			continue
		}
		if d := levenshtein.ComputeDistance(n, Normalize(r.defs[i].Name)); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return nil, false
	}
	def := r.defs[best]
	return &def, true
}

// Resolve produces the canonical occasion data for a booking.
//
// With a definition, every required key is filled from (in order) the
// direct occasionData value, a raw key equal to the field key, a
// <key>_label whose text matches the field label, the synonym table, and
// finally a fuzzy match of occasionData keys against the field label.  Each
// raw value is used at most once.
//
// Without a definition, every non-empty occasionData entry is kept as-is
// in stored order.
func (r *Resolver) Resolve(name string, in Input) Resolution {
	def, ok := r.Match(name)
	data := model.NewDocument()
	if !ok {
		for _, k := range in.Direct.Keys() {
			if isLabelKey(k) {
				continue
			}
			if v := strings.TrimSpace(in.Direct.String(k)); v != "" {
				data.Set(k, v)
			}
		}
		return Resolution{Data: data}
	}

	used := make(map[int]bool, len(in.Fields))
	var missing, consumed []string
	for _, key := range def.RequiredFields {
		if v := strings.TrimSpace(in.Direct.String(key)); v != "" {
			for i, f := range in.Fields {
				if f.FromOccasionData && f.Key == key {
					used[i] = true
				}
			}
			data.Set(key, v)
			continue
		}
		v, idx := r.find(*def, key, in.Fields, used)
		if idx >= 0 {
			used[idx] = true
			if f := in.Fields[idx]; f.FromOccasionData && f.Key != key {
				consumed = append(consumed, f.Key)
			}
		}
		data.Set(key, v)
		if v == "" {
			missing = append(missing, key)
		}
	}
	return Resolution{Definition: def, Data: data, Missing: missing, Consumed: consumed}
}

func (r *Resolver) find(def model.OccasionDefinition, key string, fields []Field, used map[int]bool) (string, int) {
	usable := func(i int) bool {
		return !used[i] && strings.TrimSpace(fields[i].Value) != ""
	}
	value := func(i int) (string, int) {
		return strings.TrimSpace(fields[i].Value), i
	}

	for i, f := range fields {
		if usable(i) && strings.EqualFold(f.Key, key) {
			return value(i)
		}
	}

	label := Normalize(def.Label(key))
	if label != "" {
		for i, f := range fields {
			if usable(i) && f.Label != "" && related(Normalize(f.Label), label) {
				return value(i)
			}
		}
	}

	if syns := r.synonyms[key]; len(syns) > 0 {
		for i, f := range fields {
			if !usable(i) {
				continue
			}
			nk, nl := Normalize(f.Key), Normalize(f.Label)
			for _, syn := range syns {
				if matchesSynonym(nk, syn) || matchesSynonym(nl, syn) {
					return value(i)
				}
			}
		}
	}

	target := label
	if target == "" {
		target = Normalize(key)
	}
	for i, f := range fields {
		if usable(i) && f.FromOccasionData && !isLabelKey(f.Key) && near(Normalize(f.Key), target) {
			return value(i)
		}
	}
	return "", -1
}

// Labels returns the display label of every required field of def, falling
// back to a humanized key when the catalog has none.
func (r *Resolver) Labels(def *model.OccasionDefinition, data *model.Document) map[string]string {
	out := make(map[string]string)
	if def == nil {
		for _, k := range data.Keys() {
			out[k] = Humanize(k)
		}
		return out
	}
	for _, k := range def.RequiredFields {
		if l := strings.TrimSpace(def.Label(k)); l != "" {
			out[k] = l
		} else {
			out[k] = Humanize(k)
		}
	}
	return out
}

func matchesSynonym(raw, syn string) bool {
	if raw == "" {
		return false
	}
	return strings.Contains(raw, syn) || levenshtein.ComputeDistance(raw, syn) <= MaxDistance
}

// LabelSuffix marks a companion key holding the human label of a raw value.
const LabelSuffix = "_label"

func isLabelKey(k string) bool {
	return strings.HasSuffix(k, LabelSuffix)
}
