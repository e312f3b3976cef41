package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/theater-booking/internal/model"
)

// ErrUnknownOp is returned by Apply for an operation name it does not know.
var ErrUnknownOp = errors.New("unknown edit operation")

// Op is one staff edit as submitted by a client.  Only the fields relevant
// to the named operation are read.
type Op struct {
	Op            string `json:"op"`
	Value         any    `json:"value,omitempty"`
	On            bool   `json:"on,omitempty"`
	Code          string `json:"code,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Field         string `json:"field,omitempty"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Date          string `json:"date,omitempty"`
	Time          string `json:"time,omitempty"`
	Status        string `json:"status,omitempty"`
	PaymentStatus string `json:"paymentStatus,omitempty"`
	Category      string `json:"category,omitempty"`
	Item          string `json:"item,omitempty"`
	Variant       string `json:"variant,omitempty"`
	Quantity      any    `json:"quantity,omitempty"`
}

// Apply performs one edit.  Edits are not batched: callers apply a list of
// operations by calling Apply for each in order.
func (s *Session) Apply(ctx context.Context, op Op) error {
	switch op.Op {
	case "setTotal":
		s.SetTotal(op.Value)
	case "setAdvance":
		s.SetAdvance(op.Value)
	case "setVenuePayment":
		s.SetVenuePayment(op.Value)
	case "setAdminDiscount":
		s.SetAdminDiscount(op.Value)
	case "setGenericDiscount", "setDiscount":
		s.SetGenericDiscount(op.Value)
	case "setCoupon":
		s.SetCoupon(op.Code, op.Value)
	case "setPenalty":
		s.SetPenalty(op.Value, op.Reason)
	case "setDecorationFee":
		s.SetDecorationFee(op.Value)
	case "toggleDecoration":
		s.ToggleDecoration(op.On)
	case "setGuestCount":
		s.SetGuestCount(op.Value)
	case "setTheater":
		s.SetTheater(op.Name)
	case "setSlot":
		return s.SetSlot(ctx, op.Date, op.Time)
	case "setCustomer":
		s.SetCustomer(op.Name, op.Email, op.Phone)
	case "setStatus":
		s.SetStatus(op.Status, op.PaymentStatus)
	case "setOccasion":
		s.SetOccasion(op.Name)
	case "setOccasionField":
		s.SetOccasionField(op.Field, model.AsString(op.Value))
	case "toggleService":
		_, err := s.ToggleService(op.Category, op.Item)
		return err
	case "confirmVariant":
		_, err := s.ConfirmVariant(op.Variant, op.Quantity)
		return err
	case "cancelVariant":
		s.CancelVariant()
	case "addCustomService":
		_, err := s.AddCustomService(op.Category, op.Name, op.Value, op.Quantity)
		return err
	case "removeService":
		_, err := s.RemoveService(op.Category, op.Item)
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOp, op.Op)
	}
	return nil
}
