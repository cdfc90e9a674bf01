package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	shortIDLen   = 8
	previewItems = 3
)

// Label capitalises a status word for display ("delivered" -> "Delivered").
func Label[S ~string](s S) string {
	// a Caser keeps state between calls, so it is not shared
	return cases.Title(language.English).String(strings.ReplaceAll(string(s), "_", " "))
}

// ShortID is the last eight characters of an order ID.
func ShortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[len(id)-shortIDLen:]
}

// InvoiceNumber derives the printed invoice number from the order ID.
func InvoiceNumber(id string) string {
	return "INV-" + strings.ToUpper(ShortID(id))
}

type InvoiceLine struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

type Invoice struct {
	Number             string
	OrderID            string
	IssuedAt           time.Time
	Status             Status
	StatusLabel        string
	PaymentStatus      PaymentStatus
	PaymentStatusLabel string
	PaymentMethod      PaymentMethod
	PaymentMethodLabel string
	PaymentReference   string
	BillTo             Address
	Lines              []InvoiceLine
	Subtotal           decimal.Decimal
	Tax                decimal.Decimal
	DeliveryFee        decimal.Decimal
	FreeDelivery       bool
	Total              decimal.Decimal
}

// BuildInvoice renders the invoice read model of o.
func BuildInvoice(o *Order) Invoice {
	lines := make([]InvoiceLine, 0, len(o.Items))
	for _, l := range o.Items {
		lines = append(lines, InvoiceLine{
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.Price,
			LineTotal: l.LineTotal(),
		})
	}
	return Invoice{
		Number:             InvoiceNumber(o.ID),
		OrderID:            o.ID,
		IssuedAt:           o.CreatedAt,
		Status:             o.Status,
		StatusLabel:        Label(o.Status),
		PaymentStatus:      o.PaymentStatus,
		PaymentStatusLabel: Label(o.PaymentStatus),
		PaymentMethod:      o.PaymentMethod,
		PaymentMethodLabel: o.PaymentMethod.Label(),
		PaymentReference:   o.PaymentReference,
		BillTo:             o.Address,
		Lines:              lines,
		Subtotal:           o.Subtotal,
		Tax:                o.Tax,
		DeliveryFee:        o.DeliveryFee,
		FreeDelivery:       o.DeliveryFee.IsZero(),
		Total:              o.Total,
	}
}

// Summary is one row of the order history list.
type Summary struct {
	OrderID     string
	ShortID     string
	CreatedAt   time.Time
	Status      Status
	StatusLabel string
	Total       decimal.Decimal
	Preview     []InvoiceLine
	MoreItems   int
}

func Summarize(o *Order) Summary {
	n := min(len(o.Items), previewItems)
	preview := make([]InvoiceLine, 0, n)
	for _, l := range o.Items[:n] {
		preview = append(preview, InvoiceLine{
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.Price,
			LineTotal: l.LineTotal(),
		})
	}
	return Summary{
		OrderID:     o.ID,
		ShortID:     ShortID(o.ID),
		CreatedAt:   o.CreatedAt,
		Status:      o.Status,
		StatusLabel: Label(o.Status),
		Total:       o.Total,
		Preview:     preview,
		MoreItems:   len(o.Items) - n,
	}
}
