package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/theater-booking/internal/model"
	"github.com/iliyamo/theater-booking/internal/slots"
)

var errNotFound = errors.New("not found")

type memStore struct {
	mu      sync.Mutex
	docs    map[string]*model.Document
	saved   []*model.Document
	saveErr error
	mutate  func(*model.Document)
}

func newMemStore(docs ...*model.Document) *memStore {
	m := &memStore{docs: make(map[string]*model.Document)}
	for _, d := range docs {
		m.docs[d.String("bookingId")] = d
	}
	return m
}

func (m *memStore) FetchBooking(_ context.Context, id string) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, errNotFound
	}
	return d.Clone(), nil
}

func (m *memStore) SaveBooking(_ context.Context, id string, payload *model.Document) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, payload.Clone())
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	merged := m.docs[id].Clone()
	for _, k := range payload.Keys() {
		v, _ := payload.Get(k)
		merged.Set(k, v)
	}
	if m.mutate != nil {
		m.mutate(merged)
	}
	b, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	var stored model.Document
	if err := json.Unmarshal(b, &stored); err != nil {
		return nil, err
	}
	m.docs[id] = &stored
	return stored.Clone(), nil
}

type staticCatalog struct {
	cat model.Catalogs
	err error
}

func (c staticCatalog) Theaters(context.Context) ([]model.Theater, error) {
	return c.cat.Theaters, c.err
}

func (c staticCatalog) ServiceCategories(context.Context) ([]model.ServiceCategory, error) {
	return c.cat.Services, c.err
}

func (c staticCatalog) Occasions(context.Context) ([]model.OccasionDefinition, error) {
	return c.cat.Occasions, c.err
}

func (c staticCatalog) PricingDefaults(context.Context) (model.PricingDefaults, error) {
	return c.cat.Defaults, c.err
}

type savedRecorder struct {
	mu       sync.Mutex
	bookings []*model.Booking
}

func (r *savedRecorder) BookingSaved(_ context.Context, b *model.Booking) {
	r.mu.Lock()
	r.bookings = append(r.bookings, b)
	r.mu.Unlock()
}

func testCatalogs() model.Catalogs {
	return model.Catalogs{
		Theaters: []model.Theater{{
			Name:          "Lounge",
			Capacity:      model.Capacity{Min: 2, Max: 6},
			BasePrice:     2000,
			ExtraGuestFee: 200,
			DecorationFee: 800,
			Slots:         []string{"10:00 AM - 1:00 PM", "1:30 PM - 4:30 PM"},
		}},
		Services: []model.ServiceCategory{
			{Name: "Cakes", Items: []model.ServiceItem{
				{ID: "cake-choc", Name: "Chocolate Truffle", Price: 400},
				{ID: "cake-rv", Name: "Red Velvet", Price: 400},
			}},
			{Name: "Photo Shoot", Items: []model.ServiceItem{{ID: "ps1", Name: "Polaroid", Price: 500}}},
		},
		Occasions: []model.OccasionDefinition{
			{
				Name:               "Birthday",
				RequiredFields:     []string{"birthdayName", "birthdayGender"},
				FieldLabels:        map[string]string{"birthdayName": "Birthday Person Name", "birthdayGender": "Gender"},
				IncludesDecoration: true,
				IsActive:           true,
			},
			{
				Name:               "Anniversary",
				RequiredFields:     []string{"partner1Name", "partner2Name"},
				FieldLabels:        map[string]string{"partner1Name": "Your Nickname", "partner2Name": "Partner Nickname"},
				IncludesDecoration: true,
				IsActive:           true,
			},
		},
		Defaults: model.PricingDefaults{DecorationFee: 1000, ExtraGuestFee: 150},
	}
}

func doc(t *testing.T, s string) *model.Document {
	t.Helper()
	var d model.Document
	require.NoError(t, json.Unmarshal([]byte(s), &d))
	return &d
}

func jsonOf(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

const legacyBooking = `{
	"_id": {"$oid": "65f0c0ffee"},
	"bookingId": "BK-100",
	"customerName": "Ravi",
	"phoneNumber": "98450 00000",
	"theater": "lounge",
	"bookingDate": "2024-05-01",
	"timeSlot": "10:00 AM - 1:00 PM",
	"guests": "4",
	"occasionName": "Anniversery",
	"field_a": "Bunny",
	"field_a_label": "Your Nickname",
	"occasionData": {"Partner Nickname": "Honey"},
	"finalAmount": "3,400",
	"advance": 1000,
	"paymentStatus": "partial",
	"cakes": [{"id": "cake-choc", "name": "Chocolate Truffle", "price": "400", "qty": 1}]
}`

func newReconciler(store *memStore, cat CatalogReader, opts ...Option) *Reconciler {
	log, _ := logtest.NewNullLogger()
	return New(store, store, cat, log, opts...)
}

func TestNormalizeBirthdayField(t *testing.T) {
	a := NewAdapter(testCatalogs())
	n := a.Normalize(doc(t, `{"bookingId": "BK-1", "occasion": "Birthday", "birthdayName": "Asha"}`))

	require.NotNil(t, n.Resolution.Definition)
	assert.Equal(t, "Asha", n.Booking.OccasionData.String("birthdayName"))
	assert.Equal(t, []string{"birthdayGender"}, n.Resolution.Missing)
}

func TestNormalizeLegacyShape(t *testing.T) {
	a := NewAdapter(testCatalogs())
	n := a.Normalize(doc(t, legacyBooking))
	b := n.Booking

	assert.Equal(t, "BK-100", b.BookingID)
	assert.Equal(t, "65f0c0ffee", b.StoreID)
	assert.Equal(t, "Ravi", b.Name)
	assert.Equal(t, "98450 00000", b.Phone)
	assert.Equal(t, "Lounge", b.Theater)
	assert.Equal(t, "2024-05-01", b.Date)
	assert.Equal(t, "10:00 AM - 1:00 PM", b.Time)
	assert.Equal(t, 4, b.Guests)
	assert.Equal(t, model.PaymentAdvance, b.PaymentStatus)
	assert.Equal(t, model.StatusPending, b.Status)

	assert.Equal(t, "Bunny", b.OccasionData.String("partner1Name"))
	assert.Equal(t, "Honey", b.OccasionData.String("partner2Name"))
	assert.Empty(t, n.Resolution.Missing)

	require.Len(t, b.Services["cakes"], 1)
	assert.Equal(t, int64(400), b.Services["cakes"][0].UnitPrice)

	assert.True(t, n.Priced)
	assert.Equal(t, int64(3400), b.Pricing.TotalAmount)
	assert.Equal(t, int64(1000), b.Pricing.AdvancePayment)
	assert.Equal(t, int64(2400), b.Pricing.VenuePayment)
	assert.Equal(t, int64(2000), b.Pricing.BasePrice)
	assert.Equal(t, int64(400), b.Pricing.ServiceItemsTotal)
	assert.Equal(t, 2, b.Pricing.CapacityMin)
}

func TestNormalizeRoundTripKeepsOccasionData(t *testing.T) {
	cases := map[string]string{
		"catalog occasion": legacyBooking,
		"custom occasion": `{
			"bookingId": "BK-7",
			"occasion": "Graduation",
			"occasionData": {"Hero": "Sam", "Hero_label": "Guest of honour", "Empty": "", "Colour": "Blue"}
		}`,
		"missing fields": `{"bookingId": "BK-8", "occasion": "Birthday", "gender": "Female"}`,
	}
	a := NewAdapter(testCatalogs())
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			first := a.Normalize(doc(t, raw))
			payload := Payload(first.Booking)
			second := a.Normalize(doc(t, jsonOf(t, payload)))

			assert.Equal(t, jsonOf(t, first.Booking.OccasionData), jsonOf(t, second.Booking.OccasionData))
			assert.Equal(t, first.Booking.Pricing, second.Booking.Pricing)
			assert.Equal(t, first.Resolution.Missing, second.Resolution.Missing)
		})
	}
}

func TestNormalizeUnpricedBookingIsRepriced(t *testing.T) {
	a := NewAdapter(testCatalogs())
	n := a.Normalize(doc(t, `{"bookingId": "BK-2", "theaterName": "Lounge", "numberOfPeople": 5, "occasion": "Birthday"}`))
	p := n.Booking.Pricing

	assert.False(t, n.Priced)
	assert.True(t, p.DecorationApplied)
	assert.Equal(t, int64(800), p.AppliedDecorationFee)
	assert.Equal(t, int64(600), p.ExtraGuestCharge)
	assert.Equal(t, int64(2000+600+800), p.TotalAmount)
	assert.Equal(t, p.TotalAmount, p.VenuePayment)
}

func TestOpenFailsOpenWhenCatalogsUnavailable(t *testing.T) {
	store := newMemStore(doc(t, legacyBooking))
	r := newReconciler(store, staticCatalog{err: errors.New("catalog db down")})

	s, err := r.Open(context.Background(), "BK-100")
	require.NoError(t, err)
	b := s.Booking()
	assert.Equal(t, "Ravi", b.Name)
	assert.Equal(t, int64(3400), b.Pricing.TotalAmount)
	assert.True(t, s.View().CustomOccasion)

	s.SetTheater("Unknown Hall")
	assert.Equal(t, "Unknown Hall", s.Booking().Theater)
	assert.Equal(t, int64(3400), s.Pricing().TotalAmount)
}

func TestOpenUnknownBooking(t *testing.T) {
	r := newReconciler(newMemStore(), staticCatalog{cat: testCatalogs()})
	_, err := r.Open(context.Background(), "nope")
	assert.ErrorIs(t, err, errNotFound)
}

func TestSessionServiceScenario(t *testing.T) {
	r := newReconciler(newMemStore(doc(t, legacyBooking)), staticCatalog{cat: testCatalogs()})
	s, err := r.Open(context.Background(), "BK-100")
	require.NoError(t, err)
	start := s.Pricing().TotalAmount

	m, err := s.ToggleService("Cakes", "cake-rv")
	require.NoError(t, err)
	assert.Equal(t, int64(400), m.Delta)
	assert.Equal(t, start+400, s.Pricing().TotalAmount)

	m, err = s.AddCustomService("Cakes", "Other", 150, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(300), m.Delta)
	assert.Equal(t, start+700, s.Pricing().TotalAmount)

	m, err = s.RemoveService("Cakes", "cake-rv")
	require.NoError(t, err)
	assert.Equal(t, int64(-400), m.Delta)
	assert.Equal(t, start+300, s.Pricing().TotalAmount)
	assert.Len(t, s.Booking().Services["cakes"], 2)

	_, err = s.ToggleService("Cakes", "no-such-cake")
	assert.ErrorIs(t, err, ErrUnknownService)
	_, err = s.RemoveService("Cakes", "cake-rv")
	assert.ErrorIs(t, err, ErrServiceNotSelected)
}

func TestSaveFailureLeavesSessionUnchanged(t *testing.T) {
	store := newMemStore(doc(t, legacyBooking))
	store.saveErr = errors.New("connection reset")
	notes := &savedRecorder{}
	r := newReconciler(store, staticCatalog{cat: testCatalogs()}, WithNotifier(notes))
	s, err := r.Open(context.Background(), "BK-100")
	require.NoError(t, err)
	s.SetAdvance(1500)
	before := jsonOf(t, s.Payload())

	err = s.Save(context.Background())
	var saveErr *SaveError
	require.ErrorAs(t, err, &saveErr)
	assert.Equal(t, "BK-100", saveErr.BookingID)
	assert.True(t, strings.Contains(saveErr.Error(), "BK-100"))
	assert.Equal(t, before, jsonOf(t, s.Payload()))
	assert.Empty(t, notes.bookings)
}

func TestSaveRenormalizesEcho(t *testing.T) {
	store := newMemStore(doc(t, legacyBooking))
	store.mutate = func(d *model.Document) { d.Set("status", "confirmed") }
	notes := &savedRecorder{}
	r := newReconciler(store, staticCatalog{cat: testCatalogs()}, WithNotifier(notes))
	s, err := r.Open(context.Background(), "BK-100")
	require.NoError(t, err)

	s.SetGuestCount(6)
	want := s.Pricing()
	require.NoError(t, s.Save(context.Background()))

	b := s.Booking()
	assert.Equal(t, model.StatusConfirmed, b.Status)
	assert.Equal(t, want, b.Pricing)
	assert.Equal(t, "Bunny", b.OccasionData.String("partner1Name"))
	require.Len(t, notes.bookings, 1)
	assert.Equal(t, "BK-100", notes.bookings[0].BookingID)
}

func TestAutosaveAndSaveShareSnapshot(t *testing.T) {
	store := newMemStore(doc(t, legacyBooking))
	r := newReconciler(store, staticCatalog{cat: testCatalogs()})
	s, err := r.Open(context.Background(), "BK-100")
	require.NoError(t, err)

	_, err = s.ToggleService("Photo Shoot", "Polaroid")
	require.NoError(t, err)
	require.NoError(t, s.Autosave(context.Background(), "Photo Shoot"))
	require.NoError(t, s.Save(context.Background()))

	require.Len(t, store.saved, 2)
	auto, full := store.saved[0], store.saved[1]
	assert.True(t, auto.Has("selectedPhotoShoot"))
	assert.False(t, auto.Has("occasionData"))
	assert.Equal(t, jsonOf(t, full.Doc("pricingData")), jsonOf(t, auto.Doc("pricingData")))
}

func TestSetOccasionReResolvesAndPrices(t *testing.T) {
	r := newReconciler(newMemStore(doc(t, legacyBooking)), staticCatalog{cat: testCatalogs()})
	s, err := r.Open(context.Background(), "BK-100")
	require.NoError(t, err)
	start := s.Pricing().TotalAmount

	p := s.SetOccasion("birthday")
	assert.Equal(t, start+800, p.TotalAmount)
	assert.ElementsMatch(t, []string{"birthdayName", "birthdayGender"}, s.MissingFields())

	s.SetOccasionField("birthdayName", " Asha ")
	assert.Equal(t, []string{"birthdayGender"}, s.MissingFields())

	p = s.SetOccasion("")
	assert.Equal(t, start, p.TotalAmount)
	assert.Zero(t, p.DecorationFeeBase)
	assert.Nil(t, s.MissingFields())

	p = s.SetOccasion("Housewarming")
	assert.Equal(t, start, p.TotalAmount)
	assert.True(t, s.View().CustomOccasion)
}

func TestApplyOps(t *testing.T) {
	r := newReconciler(newMemStore(doc(t, legacyBooking)), staticCatalog{cat: testCatalogs()})
	s, err := r.Open(context.Background(), "BK-100")
	require.NoError(t, err)

	ops := []Op{
		{Op: "setTotal", Value: "4000"},
		{Op: "setAdvance", Value: 1000.0},
		{Op: "setAdminDiscount", Value: "250"},
		{Op: "toggleDecoration", On: true},
		{Op: "setCustomer", Email: "ravi@example.com"},
		{Op: "setStatus", Status: "Confirmed"},
	}
	for _, op := range ops {
		require.NoError(t, s.Apply(context.Background(), op), op.Op)
	}
	b := s.Booking()
	assert.Equal(t, int64(4000-250+800), b.Pricing.TotalAmount)
	assert.Equal(t, b.Pricing.TotalAmount-1000, b.Pricing.VenuePayment)
	assert.Equal(t, "ravi@example.com", b.Email)
	assert.Equal(t, model.StatusConfirmed, b.Status)

	assert.ErrorIs(t, s.Apply(context.Background(), Op{Op: "explode"}), ErrUnknownOp)
}

func TestNewManualSession(t *testing.T) {
	r := newReconciler(newMemStore(), staticCatalog{cat: testCatalogs()})
	s, err := r.NewManual(context.Background(), "Lounge", "2024-05-01", "1:30 PM - 4:30 PM")
	require.NoError(t, err)

	assert.True(t, s.Manual())
	b := s.Booking()
	assert.NotEmpty(t, b.BookingID)
	assert.Equal(t, int64(2000), b.Pricing.TotalAmount)
	assert.Equal(t, 2, b.Guests)
}

func TestRemovingLastServiceSurvivesSave(t *testing.T) {
	store := newMemStore(doc(t, legacyBooking))
	r := newReconciler(store, staticCatalog{cat: testCatalogs()})
	s, err := r.Open(context.Background(), "BK-100")
	require.NoError(t, err)
	start := s.Pricing().TotalAmount

	_, err = s.RemoveService("Cakes", "cake-choc")
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background()))

	require.Len(t, store.saved, 1)
	cakes, ok := store.saved[0].Get("cakes")
	require.True(t, ok)
	assert.Empty(t, cakes)

	b := s.Booking()
	assert.Empty(t, b.Services["cakes"], "removed cake came back after save")
	assert.Zero(t, b.Pricing.ServiceItemsTotal)
	assert.Equal(t, start-400, b.Pricing.TotalAmount)

	reopened, err := r.Open(context.Background(), "BK-100")
	require.NoError(t, err)
	assert.Empty(t, reopened.Booking().Services["cakes"])
	assert.Equal(t, start-400, reopened.Pricing().TotalAmount)
}

func TestClearedFieldsOverwriteLegacyAliases(t *testing.T) {
	store := newMemStore(doc(t, legacyBooking))
	r := newReconciler(store, staticCatalog{cat: testCatalogs()})
	s, err := r.Open(context.Background(), "BK-100")
	require.NoError(t, err)

	s.SetOccasion("")
	s.SetCustomer("Ravi K", "", "")
	require.NoError(t, s.Save(context.Background()))

	saved := store.saved[0]
	assert.Equal(t, "", saved.String("occasionName"))
	assert.Equal(t, "Ravi K", saved.String("customerName"))
	assert.Equal(t, "Lounge", saved.String("theater"))

	b := s.Booking()
	assert.Empty(t, b.Occasion)
	assert.Zero(t, b.OccasionData.Len())
	assert.Equal(t, "Ravi K", b.Name)

	reopened, err := r.Open(context.Background(), "BK-100")
	require.NoError(t, err)
	assert.Empty(t, reopened.Booking().Occasion)
}

func TestSaveKeepsUnresolvedOccasionData(t *testing.T) {
	const raw = `{
		"bookingId": "BK-9",
		"occasion": "Birthday",
		"occasionData": {"birthdayName": "Asha", "cakeMessage": "Happy 30th", "Gender": "F"}
	}`
	store := newMemStore(doc(t, raw), doc(t, legacyBooking))
	r := newReconciler(store, staticCatalog{cat: testCatalogs()})

	s, err := r.Open(context.Background(), "BK-9")
	require.NoError(t, err)
	assert.Equal(t, "F", s.Booking().OccasionData.String("birthdayGender"))
	s.SetOccasionField("birthdayName", "Asha R")
	require.NoError(t, s.Save(context.Background()))

	od := store.saved[0].Doc("occasionData")
	assert.Equal(t, "Happy 30th", od.String("cakeMessage"))
	assert.Equal(t, "Asha R", od.String("birthdayName"))
	assert.Equal(t, "F", od.String("birthdayGender"))
	assert.False(t, od.Has("Gender"), "lifted entries are replaced by their canonical key")

	s, err = r.Open(context.Background(), "BK-100")
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background()))
	assert.False(t, store.saved[1].Doc("occasionData").Has("Partner Nickname"))
}

func TestAddCustomServiceRejectsEmptyCategory(t *testing.T) {
	r := newReconciler(newMemStore(doc(t, legacyBooking)), staticCatalog{cat: testCatalogs()})
	s, err := r.Open(context.Background(), "BK-100")
	require.NoError(t, err)
	start := s.Pricing().TotalAmount

	_, err = s.AddCustomService("", "Candles", 100, 1)
	assert.ErrorIs(t, err, ErrInvalidCategory)
	err = s.Apply(context.Background(), Op{Op: "addCustomService", Category: "  ", Name: "Candles", Value: 100})
	assert.ErrorIs(t, err, ErrInvalidCategory)
	assert.Equal(t, start, s.Pricing().TotalAmount)
	assert.Len(t, s.Booking().Services, 1)
}

func TestSetSlotChecksAvailability(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	fetch := slots.FetcherFunc(func(_ context.Context, _, date string) ([]model.TimeSlot, error) {
		if date != "2024-05-01" {
			return nil, nil
		}
		return []model.TimeSlot{
			{Label: "10:00 AM - 1:00 PM", Status: model.SlotBooked, BookingID: "BK-100"},
			{Label: "1:30 PM - 4:30 PM", Status: model.SlotBooked, BookingID: "BK-200"},
		}, nil
	})
	reg := slots.NewRegistry(fetch, slots.RegistryConfig{Interval: time.Hour}, log)
	t.Cleanup(reg.Close)
	store := newMemStore(doc(t, legacyBooking))
	r := newReconciler(store, staticCatalog{cat: testCatalogs()}, WithSlotChecker(reg))
	ctx := context.Background()

	s, err := r.Open(ctx, "BK-100")
	require.NoError(t, err)

	err = s.Apply(ctx, Op{Op: "setSlot", Date: "2024-05-01", Time: "1:30 PM - 4:30 PM"})
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.Equal(t, "10:00 AM - 1:00 PM", s.Booking().Time)

	require.NoError(t, s.SetSlot(ctx, "2024-05-01", "10:00 AM - 1:00 PM"))
	require.NoError(t, s.SetSlot(ctx, "2024-05-02", "1:30 PM - 4:30 PM"))
	assert.Equal(t, "2024-05-02", s.Booking().Date)

	_, err = r.NewManual(ctx, "Lounge", "2024-05-01", "1:30 PM - 4:30 PM")
	assert.ErrorIs(t, err, ErrSlotTaken)
}
