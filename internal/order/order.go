// Package order implements the order aggregate: the lifecycle state machine,
// the pricing rules, and the persistence and queue ports it drives.
package order

import "time"

// State is the derived lifecycle position of an order. It is not stored;
// it falls out of which nullable fields have been filled in.
type State string

const (
	// StateOpen: created, lines fixed, no shipping info yet.
	StateOpen State = "OPEN"
	// StateAddressed: shipping info and email set, tax and shipping computed.
	StateAddressed State = "ADDRESSED"
	// StatePaid is terminal. No transition leaves it.
	StatePaid State = "PAID"
)

// Line is one (item, quantity) pair of an order. Product attributes are
// denormalised onto the line at read time from the catalog join; only the
// reference and quantity are stored.
type Line struct {
	ProductID int64
	Quantity  int

	Name      string
	UnitPrice float64
	Weight    int
}

// ShippingInfo is the all-or-nothing address block. The omitempty tags make
// the zero value marshal as {}, matching the wire shape for an unaddressed
// order.
type ShippingInfo struct {
	Country    string `json:"country,omitempty"`
	Address    string `json:"address,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	City       string `json:"city,omitempty"`
	Province   string `json:"province,omitempty"`
}

func (s ShippingInfo) complete() bool {
	return s.Country != "" && s.Address != "" && s.PostalCode != "" && s.City != "" && s.Province != ""
}

func (s ShippingInfo) empty() bool {
	return s == ShippingInfo{}
}

// Order is the aggregate root. Lines are fixed at creation; TotalPrice is
// the line subtotal computed once at creation time. TotalPriceTax and
// ShippingPrice stay nil until shipping info is set, and are always set or
// unset together.
type Order struct {
	ID            int64
	Lines         []Line
	TotalPrice    float64
	TotalPriceTax *float64
	ShippingPrice *float64
	Email         string
	Shipping      ShippingInfo
	Paid          bool

	// TransactionID is the gateway's identifier for the approved charge.
	TransactionID string
	// TransactionError is the JSON-encoded structured error of the last
	// failed attempt, empty once a charge succeeds.
	TransactionError string

	CreatedAt time.Time
}

// State derives the lifecycle position.
func (o *Order) State() State {
	switch {
	case o.Paid:
		return StatePaid
	case o.TotalPriceTax != nil:
		return StateAddressed
	default:
		return StateOpen
	}
}

// TotalWeight sums item weight × quantity over all lines.
func (o *Order) TotalWeight() int {
	total := 0
	for _, l := range o.Lines {
		total += l.Weight * l.Quantity
	}
	return total
}

// ChargeAmount is the amount submitted to the gateway: tax-inclusive total
// plus shipping. Only valid once the order is addressed.
func (o *Order) ChargeAmount() float64 {
	var amount float64
	if o.TotalPriceTax != nil {
		amount += *o.TotalPriceTax
	}
	if o.ShippingPrice != nil {
		amount += *o.ShippingPrice
	}
	return round2(amount)
}

// Summary is the admin listing row for GET /order.
type Summary struct {
	ID            int64
	Email         string
	TotalPrice    float64
	Paid          bool
	ProductsCount int
}
