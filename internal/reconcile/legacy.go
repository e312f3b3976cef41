package reconcile

import (
	"encoding/json"
	"strings"

	"github.com/iliyamo/theater-booking/internal/ledger"
	"github.com/iliyamo/theater-booking/internal/model"
	"github.com/iliyamo/theater-booking/internal/occasion"
	"github.com/iliyamo/theater-booking/internal/pricing"
)

// Root aliases written by the various portal versions, canonical name
// first.
var (
	bookingIDKeys = []string{"bookingId", "bookingID", "id"}
	nameKeys      = []string{"name", "customerName"}
	emailKeys     = []string{"email", "customerEmail"}
	phoneKeys     = []string{"phone", "phoneNumber", "whatsapp"}
	theaterKeys   = []string{"theaterName", "theater"}
	dateKeys      = []string{"date", "bookingDate"}
	timeKeys      = []string{"time", "timeSlot"}
	guestKeys     = []string{"numberOfPeople", "guestCount", "guests"}
	occasionKeys  = []string{"occasion", "occasionName"}
	statusKeys    = []string{"status", "bookingStatus"}
	paymentKeys   = []string{"paymentStatus"}

	rootKeys = [][]string{
		bookingIDKeys, nameKeys, emailKeys, phoneKeys, theaterKeys, dateKeys,
		timeKeys, guestKeys, occasionKeys, statusKeys, paymentKeys,
	}
)

const (
	keyStoreID      = "_id"
	keyPricingData  = "pricingData"
	keyOccasionData = "occasionData"
)

// Keys that are never occasion fields even though they sit on the root.
var bookkeepingKeys = map[string]bool{
	keyStoreID: true, keyPricingData: true, keyOccasionData: true,
	"createdAt": true, "updatedAt": true, "createdBy": true, "updatedBy": true,
	"staffId": true, "notes": true, "__v": true, "isManualBooking": true,
	"bookingType": true, "source": true,
}

var reservedKeys = func() map[string]bool {
	out := make(map[string]bool)
	for k := range bookkeepingKeys {
		out[k] = true
	}
	for _, keys := range rootKeys {
		for _, k := range keys {
			out[k] = true
		}
	}
	return out
}()

// Normalized is a stored booking after the legacy shape adapter ran.
type Normalized struct {
	Booking    *model.Booking
	Resolution occasion.Resolution
	// Fields are every occasion value candidate found in the record, kept
	// so the occasion can be re-resolved when staff change it.
	Fields []occasion.Field
	// Priced is false for records that never stored a total.
	Priced bool
	Shape  StoredShape
}

// StoredShape is what a stored record carries outside the canonical
// booking.  Stores merge a save into the existing record, so a full save
// overwrites these too or the old values would be read back on reload.
type StoredShape struct {
	// aliases pairs each legacy root key present with its canonical key.
	aliases [][2]string
	// occasion holds the occasionData entries the resolver did not lift
	// into a canonical field.
	occasion *model.Document
}

func storedShape(raw *model.Document, res occasion.Resolution) StoredShape {
	sh := StoredShape{occasion: model.NewDocument()}
	for _, keys := range rootKeys {
		for _, k := range keys[1:] {
			if raw.Has(k) {
				sh.aliases = append(sh.aliases, [2]string{k, keys[0]})
			}
		}
	}
	consumed := make(map[string]bool, len(res.Consumed))
	for _, k := range res.Consumed {
		consumed[k] = true
	}
	direct := raw.Doc(keyOccasionData)
	for _, k := range direct.Keys() {
		if consumed[k] || consumed[strings.TrimSuffix(k, occasion.LabelSuffix)] {
			continue
		}
		v, _ := direct.Get(k)
		sh.occasion.Set(k, v)
	}
	return sh
}

// apply writes the canonical values over every legacy alias and keeps the
// unlifted occasionData entries beneath the resolved ones.
func (sh StoredShape) apply(d *model.Document) {
	for _, a := range sh.aliases {
		v, _ := d.Get(a[1])
		d.Set(a[0], v)
	}
	if sh.occasion.Len() == 0 {
		return
	}
	od := sh.occasion.Clone()
	od.Merge(d.Doc(keyOccasionData))
	d.Set(keyOccasionData, od)
}

// Adapter turns raw stored records into canonical bookings.  It is the only
// place that knows about historical record shapes.
type Adapter struct {
	catalogs model.Catalogs
	resolver *occasion.Resolver
	calc     *pricing.Calculator
}

// NewAdapter builds an adapter over a catalog snapshot.
func NewAdapter(cat model.Catalogs, opts ...occasion.Option) *Adapter {
	return &Adapter{
		catalogs: cat,
		resolver: occasion.NewResolver(cat.Occasions, opts...),
		calc:     pricing.NewCalculator(cat.Defaults),
	}
}

// Normalize reads a raw record.  It never fails: absent or malformed values
// become zero values and unmatched occasion fields are reported missing.
func (a *Adapter) Normalize(raw *model.Document) Normalized {
	b := &model.Booking{
		BookingID:     firstString(raw, bookingIDKeys),
		StoreID:       storeID(raw),
		Name:          firstString(raw, nameKeys),
		Email:         firstString(raw, emailKeys),
		Phone:         firstString(raw, phoneKeys),
		Theater:       firstString(raw, theaterKeys),
		Date:          firstString(raw, dateKeys),
		Time:          firstString(raw, timeKeys),
		Guests:        pricing.ParseCount(firstValue(raw, guestKeys)),
		Occasion:      firstString(raw, occasionKeys),
		Status:        model.ParseBookingStatus(firstString(raw, statusKeys)),
		PaymentStatus: model.ParsePaymentStatus(firstString(raw, paymentKeys)),
		Services:      readServices(raw),
	}

	fields := occasionFields(raw)
	res := a.resolver.Resolve(b.Occasion, occasion.Input{Direct: raw.Doc(keyOccasionData), Fields: fields})
	b.OccasionData = res.Data

	priced := pricing.HasTotal(raw.Doc(keyPricingData), raw)
	b.Pricing = a.price(raw, b, res.Definition, priced)
	b.Guests = b.Pricing.GuestCount
	return Normalized{
		Booking:    b,
		Resolution: res,
		Fields:     fields,
		Priced:     priced,
		Shape:      storedShape(raw, res),
	}
}

func (a *Adapter) price(raw *model.Document, b *model.Booking, def *model.OccasionDefinition, priced bool) model.PricingState {
	ps := pricing.ReadSnapshot(raw.Doc(keyPricingData), raw)
	ps.GuestCount = b.Guests
	decorates := def != nil && def.IncludesDecoration

	if t, ok := a.catalogs.Theater(b.Theater); ok {
		b.Theater = t.Name
		if ps.BasePrice == 0 {
			ps.BasePrice = t.BasePrice
		}
		ps.CapacityMin, ps.CapacityMax = t.Capacity.Min, t.Capacity.Max
		if ps.ExtraGuestFee == 0 {
			ps.ExtraGuestFee = t.ExtraGuestFee
		}
		if ps.DecorationFeeBase == 0 && decorates {
			ps.DecorationFeeBase = t.DecorationFee
		}
	}
	if ps.ExtraGuestFee == 0 {
		ps.ExtraGuestFee = a.catalogs.Defaults.ExtraGuestFee
	}
	if ps.ServiceItemsTotal == 0 {
		ps.ServiceItemsTotal = ledger.New(b.Services).Total()
	}
	if priced {
		return ps
	}
	if decorates {
		if ps.DecorationFeeBase == 0 {
			ps.DecorationFeeBase = a.catalogs.Defaults.DecorationFee
		}
		ps.DecorationApplied = ps.DecorationFeeBase > 0
	}
	return a.calc.Reprice(ps)
}

// occasionFields collects candidate values: entries of the occasionData map
// first, then loose root keys, each paired with its <key>_label companion.
func occasionFields(raw *model.Document) []occasion.Field {
	var out []occasion.Field
	direct := raw.Doc(keyOccasionData)
	for _, k := range direct.Keys() {
		if strings.HasSuffix(k, occasion.LabelSuffix) {
			continue
		}
		v, ok := scalar(direct, k)
		if !ok {
			continue
		}
		out = append(out, occasion.Field{
			Key:              k,
			Label:            direct.String(k + occasion.LabelSuffix),
			Value:            v,
			FromOccasionData: true,
		})
	}
	for _, k := range raw.Keys() {
		if reservedKeys[k] || pricing.IsSnapshotKey(k) || ledger.IsCategoryKey(k) ||
			strings.HasSuffix(k, occasion.LabelSuffix) {
			continue
		}
		v, ok := scalar(raw, k)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		out = append(out, occasion.Field{Key: k, Label: raw.String(k + occasion.LabelSuffix), Value: v})
	}
	return out
}

// scalar returns text and number values; objects, arrays, booleans and
// nulls are not occasion values.
func scalar(d *model.Document, k string) (string, bool) {
	v, _ := d.Get(k)
	switch v.(type) {
	case string, json.Number, float64, int, int64:
		return model.AsString(v), true
	}
	return "", false
}

func readServices(raw *model.Document) map[string][]model.ServiceSelection {
	out := make(map[string][]model.ServiceSelection)
	for _, k := range raw.Keys() {
		if !ledger.IsCategoryKey(k) {
			continue
		}
		v, _ := raw.Get(k)
		var items []model.ServiceSelection
		switch list := v.(type) {
		case []model.ServiceSelection:
			items = append(items, list...)
		case []any:
			for _, el := range list {
				if d, ok := el.(*model.Document); ok {
					items = append(items, readSelection(d))
				}
			}
		}
		if len(items) > 0 {
			out[k] = items
		}
	}
	return out
}

func readSelection(d *model.Document) model.ServiceSelection {
	qty := pricing.ParseCount(firstValue(d, []string{"quantity", "qty"}))
	if qty < 1 {
		qty = 1
	}
	custom, _ := firstValue(d, []string{"isCustom", "custom"}).(bool)
	return model.ServiceSelection{
		ID:        firstString(d, []string{"id", "_id", "itemId"}),
		Name:      firstString(d, []string{"name", "title"}),
		Variant:   firstString(d, []string{"variant", "size"}),
		UnitPrice: pricing.ParseAmount(firstValue(d, []string{"price", "unitPrice", "amount"})),
		Quantity:  qty,
		FoodType:  firstString(d, []string{"foodType", "type"}),
		Custom:    custom,
	}
}

func firstValue(d *model.Document, keys []string) any {
	for _, k := range keys {
		if v, ok := d.Get(k); ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(d *model.Document, keys []string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(d.String(k)); s != "" {
			return s
		}
	}
	return ""
}

// storeID reads the persistent-store id, which Mongo exports either as a
// plain hex string or as {"$oid": "..."}.
func storeID(raw *model.Document) string {
	if nested := raw.Doc(keyStoreID); nested != nil {
		return nested.String("$oid")
	}
	return strings.TrimSpace(raw.String(keyStoreID))
}
