package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/theater-booking/internal/model"
)

// CatalogRepo reads the theater, service, occasion and pricing catalogs.
// All four are maintained by the admin portal; this service never writes
// them.
type CatalogRepo struct {
	db  *sqlx.DB
	log logrus.FieldLogger
}

// NewCatalogRepo returns a catalog reader.
func NewCatalogRepo(db *sqlx.DB, log logrus.FieldLogger) *CatalogRepo {
	return &CatalogRepo{db: db, log: log}
}

type theaterRow struct {
	Name          string `db:"name"`
	CapacityMin   int    `db:"capacity_min"`
	CapacityMax   int    `db:"capacity_max"`
	BasePrice     int64  `db:"base_price"`
	ExtraGuestFee int64  `db:"extra_guest_fee"`
	DecorationFee int64  `db:"decoration_fee"`
}

type slotLabelRow struct {
	Theater string `db:"theater_name"`
	Label   string `db:"label"`
}

// Theaters lists the active theaters with their slot labels in display
// order.
func (r *CatalogRepo) Theaters(ctx context.Context) ([]model.Theater, error) {
	var rows []theaterRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT name, capacity_min, capacity_max, base_price, extra_guest_fee, decoration_fee
		FROM theaters WHERE is_active = TRUE ORDER BY name`); err != nil {
		return nil, fmt.Errorf("select theaters: %w", err)
	}
	var labels []slotLabelRow
	if err := r.db.SelectContext(ctx, &labels, `SELECT theater_name, label FROM theater_slots ORDER BY theater_name, position`); err != nil {
		return nil, fmt.Errorf("select theater slots: %w", err)
	}
	byTheater := make(map[string][]string)
	for _, l := range labels {
		k := strings.ToLower(l.Theater)
		byTheater[k] = append(byTheater[k], l.Label)
	}

	out := make([]model.Theater, 0, len(rows))
	for _, t := range rows {
		out = append(out, model.Theater{
			Name:          t.Name,
			Capacity:      model.Capacity{Min: t.CapacityMin, Max: t.CapacityMax},
			BasePrice:     t.BasePrice,
			ExtraGuestFee: t.ExtraGuestFee,
			DecorationFee: t.DecorationFee,
			Slots:         byTheater[strings.ToLower(t.Name)],
		})
	}
	return out, nil
}

type serviceItemRow struct {
	Category    string         `db:"category"`
	ItemID      string         `db:"item_id"`
	Name        string         `db:"name"`
	Price       int64          `db:"price"`
	HalfPrice   int64          `db:"half_price"`
	FullPrice   int64          `db:"full_price"`
	SmallPrice  int64          `db:"small_price"`
	MediumPrice int64          `db:"medium_price"`
	LargePrice  int64          `db:"large_price"`
	FoodType    sql.NullString `db:"food_type"`
}

// ServiceCategories lists active service items grouped by category, in
// category order.
func (r *CatalogRepo) ServiceCategories(ctx context.Context) ([]model.ServiceCategory, error) {
	var rows []serviceItemRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT category, item_id, name, price,
			half_price, full_price, small_price, medium_price, large_price, food_type
		FROM service_items WHERE is_active = TRUE
		ORDER BY category_position, category, position`); err != nil {
		return nil, fmt.Errorf("select service items: %w", err)
	}
	var out []model.ServiceCategory
	index := make(map[string]int)
	for _, row := range rows {
		i, ok := index[row.Category]
		if !ok {
			i = len(out)
			index[row.Category] = i
			out = append(out, model.ServiceCategory{Name: row.Category})
		}
		out[i].Items = append(out[i].Items, model.ServiceItem{
			ID:          row.ItemID,
			Name:        row.Name,
			Price:       row.Price,
			HalfPrice:   row.HalfPrice,
			FullPrice:   row.FullPrice,
			SmallPrice:  row.SmallPrice,
			MediumPrice: row.MediumPrice,
			LargePrice:  row.LargePrice,
			FoodType:    row.FoodType.String,
		})
	}
	return out, nil
}

type occasionRow struct {
	Name               string `db:"name"`
	RequiredFields     string `db:"required_fields"`
	FieldLabels        string `db:"field_labels"`
	IncludesDecoration bool   `db:"include_in_decoration"`
	IsActive           bool   `db:"is_active"`
}

// Occasions lists every occasion definition, inactive ones included: old
// bookings still refer to them by name.
func (r *CatalogRepo) Occasions(ctx context.Context) ([]model.OccasionDefinition, error) {
	var rows []occasionRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT name, required_fields, field_labels, include_in_decoration, is_active
		FROM occasions ORDER BY position, name`); err != nil {
		return nil, fmt.Errorf("select occasions: %w", err)
	}
	out := make([]model.OccasionDefinition, 0, len(rows))
	for _, row := range rows {
		def := model.OccasionDefinition{
			Name:               row.Name,
			IncludesDecoration: row.IncludesDecoration,
			IsActive:           row.IsActive,
		}
		if err := decodeJSONColumn(row.RequiredFields, &def.RequiredFields); err != nil {
			r.log.WithError(err).WithField("occasion", row.Name).Warn("bad required_fields, treating as empty")
		}
		if err := decodeJSONColumn(row.FieldLabels, &def.FieldLabels); err != nil {
			r.log.WithError(err).WithField("occasion", row.Name).Warn("bad field_labels, treating as empty")
		}
		out = append(out, def)
	}
	return out, nil
}

// PricingDefaults reads the global fee fallbacks.  A missing settings row
// yields zero defaults.
func (r *CatalogRepo) PricingDefaults(ctx context.Context) (model.PricingDefaults, error) {
	var d model.PricingDefaults
	row := r.db.QueryRowxContext(ctx, `SELECT decoration_fee, extra_guest_fee FROM pricing_settings LIMIT 1`)
	if err := row.Scan(&d.DecorationFee, &d.ExtraGuestFee); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.PricingDefaults{}, nil
		}
		return model.PricingDefaults{}, fmt.Errorf("select pricing settings: %w", err)
	}
	return d, nil
}

func decodeJSONColumn(raw string, dst any) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}
