package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/theater-booking/internal/model"
)

// BookingCollection is the collection bookings are stored in.
const BookingCollection = "bookings"

// MongoBookingRepo keeps bookings in a MongoDB collection, one document per
// booking keyed by bookingId.  Documents are read and written as bson.D so
// field order survives the round trip.
type MongoBookingRepo struct {
	coll *mongo.Collection
	log  logrus.FieldLogger
}

// NewMongoBookingRepo returns a booking store over db's bookings collection.
func NewMongoBookingRepo(db *mongo.Database, log logrus.FieldLogger) *MongoBookingRepo {
	return &MongoBookingRepo{coll: db.Collection(BookingCollection), log: log}
}

// FetchBooking loads the stored document of a booking.
func (r *MongoBookingRepo) FetchBooking(ctx context.Context, bookingID string) (*model.Document, error) {
	var raw bson.D
	err := r.coll.FindOne(ctx, bson.D{{Key: "bookingId", Value: bookingID}}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find booking %s: %w", bookingID, err)
	}
	return fromBSON(raw).(*model.Document), nil
}

// SaveBooking sets every payload key on the stored document, creating it
// when absent, and returns the document as stored.
func (r *MongoBookingRepo) SaveBooking(ctx context.Context, bookingID string, payload *model.Document) (*model.Document, error) {
	set, err := toBSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode booking %s: %w", bookingID, err)
	}
	update := bson.D{
		{Key: "$set", Value: set},
		{Key: "$currentDate", Value: bson.D{{Key: "updatedAt", Value: true}}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out bson.D
	err = r.coll.FindOneAndUpdate(ctx, bson.D{{Key: "bookingId", Value: bookingID}}, update, opts).Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("update booking %s: %w", bookingID, err)
	}
	r.log.WithField("booking_id", bookingID).Debug("booking stored")
	return fromBSON(out).(*model.Document), nil
}

// toBSON converts a payload through relaxed extended JSON, which keeps key
// order and maps numbers onto int32/int64/double.
func toBSON(d *model.Document) (bson.D, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var out bson.D
	if err := bson.UnmarshalExtJSON(body, false, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// fromBSON converts decoded BSON into the values a model.Document holds.
// Object ids become hex strings and dates RFC 3339 text.
func fromBSON(v any) any {
	switch t := v.(type) {
	case bson.D:
		d := model.NewDocument()
		for _, e := range t {
			d.Set(e.Key, fromBSON(e.Value))
		}
		return d
	case bson.M:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := model.NewDocument()
		for _, k := range keys {
			d.Set(k, fromBSON(t[k]))
		}
		return d
	case bson.A:
		out := make([]any, len(t))
		for i := range t {
			out[i] = fromBSON(t[i])
		}
		return out
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339)
	case primitive.Decimal128:
		return t.String()
	case int32:
		return int64(t)
	}
	return v
}
