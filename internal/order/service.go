package order

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jcmexdev/shop-orders/internal/catalog"
	"github.com/jcmexdev/shop-orders/internal/queue"
)

// pendingTTL bounds the per-order submission guard. A crashed worker can
// block resubmission for at most this long.
const pendingTTL = 10 * time.Minute

// Store is the persistence port for the order aggregate. The Postgres
// implementation lives in this package; tests inject an in-memory fake.
type Store interface {
	// CreateOrder persists the order and its lines, returning the new id.
	CreateOrder(ctx context.Context, o *Order) (int64, error)

	// GetOrder returns nil with no error when the order does not exist.
	GetOrder(ctx context.Context, id int64) (*Order, error)

	// UpdateShipping atomically sets email, address and the computed totals.
	UpdateShipping(ctx context.Context, id int64, email string, info ShippingInfo, taxTotal, shippingPrice float64) error

	// RecordPaymentSuccess marks the order paid, stores the gateway
	// transaction id and clears any prior transaction error.
	RecordPaymentSuccess(ctx context.Context, id int64, transactionID string) error

	// RecordPaymentFailure stores the structured error JSON of a failed
	// attempt. The paid flag is untouched.
	RecordPaymentFailure(ctx context.Context, id int64, errorJSON string) error

	ListOrders(ctx context.Context) ([]Summary, error)
}

// ProductFinder is the read-only slice of the catalog the state machine
// needs. Get returns nil with no error for unknown ids.
type ProductFinder interface {
	Get(ctx context.Context, id int64) (*catalog.Product, error)
}

// PaymentQueue is the enqueue side of the job queue plus the per-order
// submission guard.
type PaymentQueue interface {
	Enqueue(ctx context.Context, job *queue.PaymentJob) (string, error)
	TryAcquirePending(ctx context.Context, orderID int64, ttl time.Duration) (bool, error)
	ReleasePending(ctx context.Context, orderID int64) error
}

// NewLine is a requested (item, quantity) pair at order creation.
type NewLine struct {
	ProductID int64
	Quantity  int
}

// Service enforces the order lifecycle: OPEN → ADDRESSED → PAID, with PAID
// terminal. All collaborators are injected so the machine is testable in
// isolation.
type Service struct {
	store      Store
	products   ProductFinder
	queue      PaymentQueue
	gatewayURL string
}

func NewService(store Store, products ProductFinder, q PaymentQueue, gatewayURL string) *Service {
	return &Service{
		store:      store,
		products:   products,
		queue:      q,
		gatewayURL: gatewayURL,
	}
}

// CreateOrder validates every requested line against the catalog, computes
// the subtotal, and persists the order in OPEN state. No partial order is
// ever written: validation completes before the store is touched.
func (s *Service) CreateOrder(ctx context.Context, lines []NewLine) (int64, error) {
	if len(lines) == 0 {
		return 0, ErrProductsEmpty()
	}

	resolved := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.ProductID <= 0 || l.Quantity < 1 {
			return 0, ErrInvalidEntry()
		}

		product, err := s.products.Get(ctx, l.ProductID)
		if err != nil {
			return 0, fmt.Errorf("order: resolve product %d: %w", l.ProductID, err)
		}
		if product == nil {
			return 0, ErrProductNotFound(l.ProductID)
		}
		if !product.InStock {
			return 0, ErrOutOfInventory(l.ProductID)
		}

		resolved = append(resolved, Line{
			ProductID: product.ID,
			Quantity:  l.Quantity,
			Name:      product.Name,
			UnitPrice: product.Price,
			Weight:    product.Weight,
		})
	}

	o := &Order{
		Lines:      resolved,
		TotalPrice: Subtotal(resolved),
		CreatedAt:  time.Now().UTC(),
	}

	id, err := s.store.CreateOrder(ctx, o)
	if err != nil {
		return 0, fmt.Errorf("order: create: %w", err)
	}

	slog.InfoContext(ctx, "order created", "order_id", id, "lines", len(resolved), "total_price", o.TotalPrice)
	return id, nil
}

// GetOrder loads an order or reports ErrOrderNotFound.
func (s *Service) GetOrder(ctx context.Context, id int64) (*Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("order: get %d: %w", id, err)
	}
	if o == nil {
		return nil, ErrOrderNotFound()
	}
	return o, nil
}

// SetShippingInfo transitions OPEN → ADDRESSED, recomputing the tax-inclusive
// total and the shipping cost. Idempotent while the order is unpaid: calling
// it again overwrites the address and recomputes both amounts.
func (s *Service) SetShippingInfo(ctx context.Context, id int64, email string, info ShippingInfo) (*Order, error) {
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Paid {
		return nil, ErrAlreadyPaid()
	}

	email = strings.TrimSpace(email)
	if email == "" || !info.complete() {
		return nil, ErrShippingFieldsMissing()
	}

	taxTotal := TaxInclusiveTotal(o.TotalPrice, info.Province)
	shipping := ShippingCost(o.TotalWeight())

	if err := s.store.UpdateShipping(ctx, id, email, info, taxTotal, shipping); err != nil {
		return nil, fmt.Errorf("order: update shipping for %d: %w", id, err)
	}

	slog.InfoContext(ctx, "shipping info set",
		"order_id", id, "province", info.Province, "total_price_tax", taxTotal, "shipping_price", shipping)

	return s.GetOrder(ctx, id)
}

// SubmitPayment validates the request, takes the per-order guard, and
// enqueues a payment job. It never blocks on the gateway: the returned job id
// is the handle clients poll while the worker settles out-of-band.
func (s *Service) SubmitPayment(ctx context.Context, id int64, card queue.Card) (string, error) {
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return "", err
	}
	if o.Paid {
		return "", ErrAlreadyPaid()
	}
	if o.State() == StateOpen {
		return "", ErrShippingRequired()
	}
	if !card.Complete() {
		return "", ErrCardFieldsMissing()
	}

	acquired, err := s.queue.TryAcquirePending(ctx, id, pendingTTL)
	if err != nil {
		return "", ErrQueueUnavailable()
	}
	if !acquired {
		return "", ErrPaymentPending()
	}

	job := &queue.PaymentJob{
		OrderID:    id,
		Amount:     o.ChargeAmount(),
		Card:       card,
		GatewayURL: s.gatewayURL,
	}

	jobID, err := s.queue.Enqueue(ctx, job)
	if err != nil {
		// Free the guard so the client can retry once the queue is back.
		if relErr := s.queue.ReleasePending(ctx, id); relErr != nil {
			slog.ErrorContext(ctx, "failed to release pending guard after enqueue failure",
				"order_id", id, "error", relErr)
		}
		return "", ErrQueueUnavailable()
	}

	slog.InfoContext(ctx, "payment job enqueued", "order_id", id, "job_id", jobID, "amount", job.Amount)
	return jobID, nil
}

// ListOrders returns the admin listing, newest first.
func (s *Service) ListOrders(ctx context.Context) ([]Summary, error) {
	summaries, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("order: list: %w", err)
	}
	return summaries, nil
}
