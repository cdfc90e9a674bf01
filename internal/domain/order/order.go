package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound               = errors.New("order: not found")
	ErrConflict               = errors.New("order: conflict")
	ErrEmptyCart              = errors.New("order: cart is empty")
	ErrUserRequired           = errors.New("order: user id is required")
	ErrInvalidPaymentMethod   = errors.New("order: unknown payment method")
	ErrInvalidStatus          = errors.New("order: unknown status")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentCOD      PaymentMethod = "cod"
	PaymentRazorpay PaymentMethod = "razorpay"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentRazorpay
}

// Label is the customer-facing name of the payment method.
func (m PaymentMethod) Label() string {
	if m == PaymentCOD {
		return "Cash on Delivery"
	}
	return "Razorpay"
}

type Address struct {
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Line1   string `json:"address_line1"`
	Line2   string `json:"address_line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

// Line is a product captured at the price paid.
type Line struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

func (l Line) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Order struct {
	ID               string
	UserID           string
	IdempotencyKey   string
	Items            []Line
	Subtotal         decimal.Decimal
	Tax              decimal.Decimal
	DeliveryFee      decimal.Decimal
	Total            decimal.Decimal
	Status           Status
	PaymentStatus    PaymentStatus
	PaymentMethod    PaymentMethod
	PaymentReference string
	Address          Address
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// New builds a pending order and prices it with p.
func New(id, userID, idempotencyKey string, lines []Line, p Pricing, method PaymentMethod, address Address) (*Order, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	if !method.Valid() {
		return nil, ErrInvalidPaymentMethod
	}

	totals := p.Quote(lines)
	now := time.Now().UTC()
	return &Order{
		ID:             id,
		UserID:         userID,
		IdempotencyKey: idempotencyKey,
		Items:          append([]Line(nil), lines...),
		Subtotal:       totals.Subtotal,
		Tax:            totals.Tax,
		DeliveryFee:    totals.DeliveryFee,
		Total:          totals.Total,
		Status:         StatusPending,
		PaymentStatus:  PaymentPending,
		PaymentMethod:  method,
		Address:        address,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// TransitionTo moves the order along its lifecycle.
func (o *Order) TransitionTo(to Status) error {
	cur, err := stateOf(o.Status)
	if err != nil {
		return err
	}
	var next OrderState
	switch to {
	case StatusProcessing:
		next, err = cur.OnProcessing(o)
	case StatusShipped:
		next, err = cur.OnShipped(o)
	case StatusDelivered:
		next, err = cur.OnDelivered(o)
	case StatusCancelled:
		next, err = cur.OnCancelled(o)
	case StatusPending:
		if cur.Status() != StatusPending {
			return ErrInvalidStateTransition
		}
		return nil
	default:
		return ErrInvalidStatus
	}
	if err != nil {
		return err
	}
	o.Status = next.Status()
	o.touch()
	return nil
}

// MarkPaid records a successful payment.
func (o *Order) MarkPaid(reference string) error {
	if o.Status == StatusCancelled {
		return ErrInvalidStateTransition
	}
	o.PaymentStatus = PaymentPaid
	if reference != "" {
		o.PaymentReference = reference
	}
	o.touch()
	return nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]Line(nil), o.Items...)
	return &clone
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
