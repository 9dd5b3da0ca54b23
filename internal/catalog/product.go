// Package catalog holds the purchasable items table. Products are owned by
// the remote catalog feed; this service only reads them when pricing orders
// and upserts them during bootstrap.
package catalog

// Product mirrors the remote feed entry field for field. The id is the
// feed's stable identifier, not a locally generated one.
type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Weight      int     `json:"weight"`
	InStock     bool    `json:"in_stock"`
	Image       string  `json:"image"`
}
