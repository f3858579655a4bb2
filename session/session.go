// Package session keeps the per-user dialog state between chat messages.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hostel-market/models"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("no active dialog")

// FlowKind names a multi-step dialog.
type FlowKind string

const (
	FlowAddProduct       FlowKind = "add_product"
	FlowDeleteProduct    FlowKind = "delete_product"
	FlowSetProfit        FlowKind = "set_profit"
	FlowPlaceOrder       FlowKind = "place_order"
	FlowCancelOrderAdmin FlowKind = "cancel_order_admin"
	FlowUpdateAddress    FlowKind = "update_address"
)

// Step is a named state inside a flow.
type Step string

// Draft holds the fields a flow has collected so far. Each flow has its own type.
type Draft interface {
	Flow() FlowKind
}

type AddProductDraft struct {
	Name           string          `json:"name,omitempty"`
	OriginalPrice  decimal.Decimal `json:"original_price"`
	Price          decimal.Decimal `json:"price"`
	Stock          int             `json:"stock,omitempty"`
	PaymentMethods string          `json:"payment_methods,omitempty"`
	Location       string          `json:"location,omitempty"`
}

func (*AddProductDraft) Flow() FlowKind { return FlowAddProduct }

type DeleteProductDraft struct {
	Code string `json:"code,omitempty"`
	Name string `json:"name,omitempty"`
}

func (*DeleteProductDraft) Flow() FlowKind { return FlowDeleteProduct }

type SetProfitDraft struct {
	Code string `json:"code,omitempty"`
	Name string `json:"name,omitempty"`
}

func (*SetProfitDraft) Flow() FlowKind { return FlowSetProfit }

type PlaceOrderDraft struct {
	Code          string               `json:"code,omitempty"`
	Quantity      int                  `json:"quantity,omitempty"`
	Address       string               `json:"address,omitempty"`
	Payment       models.PaymentMethod `json:"payment,omitempty"`
	CustomerName  string               `json:"customer_name,omitempty"`
	CustomerPhone string               `json:"customer_phone,omitempty"`
	CustomerRoom  string               `json:"customer_room,omitempty"`
}

func (*PlaceOrderDraft) Flow() FlowKind { return FlowPlaceOrder }

type CancelOrderDraft struct {
	OrderID string `json:"order_id,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func (*CancelOrderDraft) Flow() FlowKind { return FlowCancelOrderAdmin }

type UpdateAddressDraft struct{}

func (*UpdateAddressDraft) Flow() FlowKind { return FlowUpdateAddress }

func newDraft(kind FlowKind) (Draft, error) {
	switch kind {
	case FlowAddProduct:
		return &AddProductDraft{}, nil
	case FlowDeleteProduct:
		return &DeleteProductDraft{}, nil
	case FlowSetProfit:
		return &SetProfitDraft{}, nil
	case FlowPlaceOrder:
		return &PlaceOrderDraft{}, nil
	case FlowCancelOrderAdmin:
		return &CancelOrderDraft{}, nil
	case FlowUpdateAddress:
		return &UpdateAddressDraft{}, nil
	}
	return nil, fmt.Errorf("unknown flow %q", kind)
}

// Session is one user's active dialog. A user has at most one.
type Session struct {
	UserID    int64
	Step      Step
	Draft     Draft
	Attempts  int // invalid inputs at the current step
	CreatedAt time.Time
	UpdatedAt time.Time
}

func New(userID int64, draft Draft, step Step, now time.Time) *Session {
	return &Session{UserID: userID, Step: step, Draft: draft, CreatedAt: now, UpdatedAt: now}
}

func (s *Session) Flow() FlowKind {
	if s.Draft == nil {
		return ""
	}
	return s.Draft.Flow()
}

type envelope struct {
	UserID    int64           `json:"user_id"`
	Flow      FlowKind        `json:"flow"`
	Step      Step            `json:"step"`
	Attempts  int             `json:"attempts,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Draft     json.RawMessage `json:"draft"`
}

func (s *Session) MarshalJSON() ([]byte, error) {
	if s.Draft == nil {
		return nil, errors.New("session has no draft")
	}
	d, err := json.Marshal(s.Draft)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		UserID:    s.UserID,
		Flow:      s.Draft.Flow(),
		Step:      s.Step,
		Attempts:  s.Attempts,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Draft:     d,
	})
}

func (s *Session) UnmarshalJSON(b []byte) error {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	d, err := newDraft(env.Flow)
	if err != nil {
		return err
	}
	if len(env.Draft) > 0 {
		if err := json.Unmarshal(env.Draft, d); err != nil {
			return fmt.Errorf("decode %s draft: %w", env.Flow, err)
		}
	}
	*s = Session{
		UserID:    env.UserID,
		Step:      env.Step,
		Draft:     d,
		Attempts:  env.Attempts,
		CreatedAt: env.CreatedAt,
		UpdatedAt: env.UpdatedAt,
	}
	return nil
}

// Store persists sessions. Get returns ErrNotFound when the user has no dialog
// or it has been idle longer than the store's TTL.
type Store interface {
	Get(ctx context.Context, userID int64) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID int64) error
}
