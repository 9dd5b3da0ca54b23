package httpx

import (
	"github.com/jcmexdev/shop-orders/internal/order"
	"github.com/jcmexdev/shop-orders/internal/queue"
)

// orderLineDTO is one requested line. Quantity is a pointer so an absent
// field can default to 1 instead of failing validation as 0.
type orderLineDTO struct {
	ID       int64 `json:"id"`
	Quantity *int  `json:"quantity"`
}

// CreateOrderRequest accepts the multi-line shape and, as compatibility
// sugar, the legacy singular "product" shape; the latter is normalised to a
// one-element slice here and never reaches the core.
type CreateOrderRequest struct {
	Products []orderLineDTO `json:"products"`
	Product  *orderLineDTO  `json:"product"`
}

// Lines validates the envelope and maps it to domain lines.
func (r *CreateOrderRequest) Lines() ([]order.NewLine, *order.Error) {
	var entries []orderLineDTO
	switch {
	case r.Products != nil:
		entries = r.Products
	case r.Product != nil:
		entries = []orderLineDTO{*r.Product}
	default:
		return nil, order.ErrProductsMissing()
	}

	if len(entries) == 0 {
		return nil, order.ErrProductsEmpty()
	}

	lines := make([]order.NewLine, len(entries))
	for i, e := range entries {
		quantity := 1
		if e.Quantity != nil {
			quantity = *e.Quantity
		}
		lines[i] = order.NewLine{ProductID: e.ID, Quantity: quantity}
	}
	return lines, nil
}

// UpdateOrderRequest is the tagged union for PUT /order/{id}: exactly one of
// the two branches must be present.
type UpdateOrderRequest struct {
	Order      *ShippingUpdate `json:"order"`
	CreditCard *queue.Card     `json:"credit_card"`
}

type ShippingUpdate struct {
	Email               string             `json:"email"`
	ShippingInformation order.ShippingInfo `json:"shipping_information"`
}

type CreateOrderResponse struct {
	OrderID int64 `json:"order_id"`
}

type PaymentAcceptedResponse struct {
	Message string `json:"message"`
	JobID   string `json:"job_id"`
}

type ProductListResponse struct {
	Products []productDTO `json:"products"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
}

type productDTO struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Weight      int     `json:"weight"`
	InStock     bool    `json:"in_stock"`
	Image       string  `json:"image"`
}

type OrderListResponse struct {
	Orders []orderSummaryDTO `json:"orders"`
}

type orderSummaryDTO struct {
	ID            int64   `json:"id"`
	Email         *string `json:"email"`
	TotalPrice    float64 `json:"total_price"`
	Paid          bool    `json:"paid"`
	ProductsCount int     `json:"products_count"`
}

type jobStatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Result any    `json:"result"`
}
