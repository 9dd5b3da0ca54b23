package order

import "encoding/json"

// Snapshot is the full externally-visible representation of an order, both
// the GET response body and the value cached by the payment worker.
type Snapshot struct {
	Order SnapshotOrder `json:"order"`
}

type SnapshotOrder struct {
	ID            int64             `json:"id"`
	TotalPrice    float64           `json:"total_price"`
	TotalPriceTax float64           `json:"total_price_tax"`
	Email         *string           `json:"email"`
	CreditCard    CardSummary       `json:"credit_card"`
	Shipping      ShippingInfo      `json:"shipping_information"`
	Paid          bool              `json:"paid"`
	Transaction   json.RawMessage   `json:"transaction"`
	Products      []SnapshotProduct `json:"products"`
	ShippingPrice float64           `json:"shipping_price"`
}

// CardSummary is the masked card block: never more than the first and last
// four digits of the number. The zero value marshals as {}.
type CardSummary struct {
	Name            string `json:"name,omitempty"`
	FirstDigits     string `json:"first_digits,omitempty"`
	LastDigits      string `json:"last_digits,omitempty"`
	ExpirationYear  int    `json:"expiration_year,omitempty"`
	ExpirationMonth int    `json:"expiration_month,omitempty"`
}

type SnapshotProduct struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	// Weight appears only in worker-built snapshots, mirroring the richer
	// settlement-time representation.
	Weight int `json:"weight,omitempty"`
}

// MaskCard reduces a full card to its cacheable summary.
func MaskCard(number, name string, month, year int) CardSummary {
	summary := CardSummary{
		Name:            name,
		ExpirationMonth: month,
		ExpirationYear:  year,
	}
	if len(number) >= 4 {
		summary.FirstDigits = number[:4]
		summary.LastDigits = number[len(number)-4:]
	}
	return summary
}

// Snapshot builds the read-path representation: no card block, transaction
// reconstructed from the stored bookkeeping fields.
func (o *Order) Snapshot() Snapshot {
	return o.snapshot(CardSummary{}, o.transactionJSON(), false)
}

// SettlementSnapshot builds the worker's post-attempt representation: masked
// card data and the transaction block as returned (or decoded) from the
// gateway, products carrying their weight.
func (o *Order) SettlementSnapshot(card CardSummary, transaction json.RawMessage) Snapshot {
	return o.snapshot(card, transaction, true)
}

func (o *Order) snapshot(card CardSummary, transaction json.RawMessage, withWeight bool) Snapshot {
	products := make([]SnapshotProduct, len(o.Lines))
	for i, l := range o.Lines {
		products[i] = SnapshotProduct{
			ID:       l.ProductID,
			Name:     l.Name,
			Quantity: l.Quantity,
			Price:    l.UnitPrice,
		}
		if withWeight {
			products[i].Weight = l.Weight
		}
	}

	var email *string
	if o.Email != "" {
		email = &o.Email
	}

	var taxTotal, shipping float64
	if o.TotalPriceTax != nil {
		taxTotal = *o.TotalPriceTax
	}
	if o.ShippingPrice != nil {
		shipping = *o.ShippingPrice
	}

	if len(transaction) == 0 {
		transaction = json.RawMessage(`{}`)
	}

	return Snapshot{Order: SnapshotOrder{
		ID:            o.ID,
		TotalPrice:    o.TotalPrice,
		TotalPriceTax: taxTotal,
		Email:         email,
		CreditCard:    card,
		Shipping:      o.Shipping,
		Paid:          o.Paid,
		Transaction:   transaction,
		Products:      products,
		ShippingPrice: shipping,
	}}
}

// transactionJSON rebuilds the transaction block from stored fields: the
// transaction id after an approval, the structured error after a failure,
// {} before any attempt.
func (o *Order) transactionJSON() json.RawMessage {
	switch {
	case o.TransactionID != "":
		b, _ := json.Marshal(map[string]string{"id": o.TransactionID})
		return b
	case o.TransactionError != "":
		raw := []byte(o.TransactionError)
		if json.Valid(raw) {
			return raw
		}
		b, _ := json.Marshal(map[string]string{
			"error":   "payment-failed",
			"details": o.TransactionError,
		})
		return b
	default:
		return json.RawMessage(`{}`)
	}
}
