package repository

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/theater-booking/internal/model"
)

// TheaterLister provides the theater catalog, slot labels included.
type TheaterLister interface {
	Theaters(ctx context.Context) ([]model.Theater, error)
}

// MongoSlotRepo derives slot occupancy from the bookings collection.  It
// is the slot tracker's fetcher when bookings live in MongoDB; labels and
// their order come from the theater catalog.
type MongoSlotRepo struct {
	coll     *mongo.Collection
	theaters TheaterLister
	log      logrus.FieldLogger
}

// NewMongoSlotRepo returns a slot reader over db's bookings collection.
func NewMongoSlotRepo(db *mongo.Database, theaters TheaterLister, log logrus.FieldLogger) *MongoSlotRepo {
	return &MongoSlotRepo{coll: db.Collection(BookingCollection), theaters: theaters, log: log}
}

// Slots lists the theater's slots in catalog order.  A slot held by more
// than one booking is reported once, for the first booking found.  Booked
// labels the catalog does not know are appended so they still count as
// taken.
func (r *MongoSlotRepo) Slots(ctx context.Context, theater, date string) ([]model.TimeSlot, error) {
	labels, err := r.labels(ctx, theater)
	if err != nil {
		return nil, err
	}

	name := primitive.Regex{Pattern: "^" + regexp.QuoteMeta(strings.TrimSpace(theater)) + "$", Options: "i"}
	filter := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "theaterName", Value: name}},
			bson.D{{Key: "theater", Value: name}},
		}}},
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "date", Value: date}},
			bson.D{{Key: "bookingDate", Value: date}},
		}}},
	}}}
	opts := options.Find().
		SetProjection(bson.D{
			{Key: "bookingId", Value: 1}, {Key: "time", Value: 1}, {Key: "timeSlot", Value: 1},
			{Key: "status", Value: 1}, {Key: "bookingStatus", Value: 1}, {Key: "slotStatus", Value: 1},
		}).
		SetSort(bson.D{{Key: "bookingId", Value: 1}})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find slots %s/%s: %w", theater, date, err)
	}
	var rows []bson.D
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("read slots %s/%s: %w", theater, date, err)
	}

	held := make(map[string]model.TimeSlot)
	var extra []string
	for _, row := range rows {
		d := fromBSON(row).(*model.Document)
		cols := columnsOf(d)
		status := model.ParseSlotStatus(cols.slotStatus)
		if cols.slot == "" || (status != model.SlotBooked && status != model.SlotGoing) {
			continue
		}
		key := labelKey(cols.slot)
		if _, ok := held[key]; ok {
			continue
		}
		held[key] = model.TimeSlot{Label: cols.slot, Status: status, BookingID: firstText(d, "bookingId")}
		extra = append(extra, key)
	}

	out := make([]model.TimeSlot, 0, len(labels)+len(held))
	for _, label := range labels {
		key := labelKey(label)
		if s, ok := held[key]; ok {
			s.Label = label
			out = append(out, s)
			delete(held, key)
			continue
		}
		out = append(out, model.TimeSlot{Label: label, Status: model.SlotNone})
	}
	for _, key := range extra {
		if s, ok := held[key]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *MongoSlotRepo) labels(ctx context.Context, theater string) ([]string, error) {
	list, err := r.theaters.Theaters(ctx)
	if err != nil {
		return nil, fmt.Errorf("list theaters: %w", err)
	}
	for _, t := range list {
		if strings.EqualFold(strings.TrimSpace(t.Name), strings.TrimSpace(theater)) {
			return t.Slots, nil
		}
	}
	r.log.WithField("theater", theater).Warn("theater not in catalog, showing booked slots only")
	return nil, nil
}

func labelKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
