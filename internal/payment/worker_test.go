package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/shop-orders/internal/order"
	"github.com/jcmexdev/shop-orders/internal/queue"
)

type fakeStore struct {
	orders map[int64]*order.Order
}

func (f *fakeStore) CreateOrder(_ context.Context, o *order.Order) (int64, error) {
	f.orders[o.ID] = o
	return o.ID, nil
}

func (f *fakeStore) GetOrder(_ context.Context, id int64) (*order.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	clone := *o
	return &clone, nil
}

func (f *fakeStore) UpdateShipping(context.Context, int64, string, order.ShippingInfo, float64, float64) error {
	return errors.New("not used")
}

func (f *fakeStore) RecordPaymentSuccess(_ context.Context, id int64, transactionID string) error {
	o := f.orders[id]
	o.Paid = true
	o.TransactionID = transactionID
	o.TransactionError = ""
	return nil
}

func (f *fakeStore) RecordPaymentFailure(_ context.Context, id int64, errorJSON string) error {
	f.orders[id].TransactionError = errorJSON
	return nil
}

func (f *fakeStore) ListOrders(context.Context) ([]order.Summary, error) {
	return nil, nil
}

type fakeJobQueue struct {
	released []int64
	results  map[string][]byte
	statuses map[string]queue.Status
}

func newFakeJobQueue() *fakeJobQueue {
	return &fakeJobQueue{results: make(map[string][]byte), statuses: make(map[string]queue.Status)}
}

func (f *fakeJobQueue) Dequeue(context.Context, time.Duration) (*queue.PaymentJob, error) {
	return nil, nil
}

func (f *fakeJobQueue) SetResult(_ context.Context, jobID string, result []byte, status queue.Status) error {
	f.results[jobID] = result
	f.statuses[jobID] = status
	return nil
}

func (f *fakeJobQueue) ReleasePending(_ context.Context, orderID int64) error {
	f.released = append(f.released, orderID)
	return nil
}

type fakeCache struct {
	entries map[string][]byte
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte) error {
	f.entries[key] = value
	return nil
}

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	return f.entries[key], nil
}

func addressedOrder() *order.Order {
	tax, shipping := 64.63, 10.0
	return &order.Order{
		ID:            1,
		TotalPrice:    56.20,
		TotalPriceTax: &tax,
		ShippingPrice: &shipping,
		Email:         "customer@uqam.ca",
		Shipping: order.ShippingInfo{
			Country: "Canada", Address: "201, rue Président-Kennedy",
			PostalCode: "G7X 3Y7", City: "Chicoutimi", Province: "QC",
		},
		Lines: []order.Line{{ProductID: 1, Quantity: 2, Name: "Brown eggs", UnitPrice: 28.1, Weight: 400}},
	}
}

func testWorker(gatewayURL string) (*Worker, *fakeStore, *fakeJobQueue, *fakeCache, *queue.PaymentJob) {
	store := &fakeStore{orders: map[int64]*order.Order{1: addressedOrder()}}
	q := newFakeJobQueue()
	c := &fakeCache{entries: make(map[string][]byte)}
	w := NewWorker(q, store, c, NewHTTPGateway(), nil)
	job := &queue.PaymentJob{
		ID:      "job-1",
		OrderID: 1,
		Amount:  74.63,
		Card: queue.Card{
			Number: "4242424242424242", ExpirationMonth: 9, ExpirationYear: 2029,
			CVV: "123", Name: "John Doe",
		},
		GatewayURL: gatewayURL,
	}
	return w, store, q, c, job
}

func TestProcessApprovedCharge(t *testing.T) {
	var got struct {
		CreditCard map[string]any `json:"credit_card"`
		Amount     float64        `json:"amount_charged"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"transaction":{"id":"txn-abc","success":"true","amount_charged":74.63}}`))
	}))
	defer srv.Close()

	w, store, q, c, job := testWorker(srv.URL)
	result := w.Process(context.Background(), job)

	assert.True(t, result.Success)
	assert.Empty(t, result.Error)

	// The gateway saw the full card but never the holder name.
	assert.Equal(t, "4242424242424242", got.CreditCard["number"])
	assert.NotContains(t, got.CreditCard, "name")
	assert.InDelta(t, 74.63, got.Amount, 0.001)

	o := store.orders[1]
	assert.True(t, o.Paid)
	assert.Equal(t, "txn-abc", o.TransactionID)

	// Guard released, snapshot cached with masked card.
	assert.Equal(t, []int64{1}, q.released)
	snap := string(c.entries["order:1"])
	require.NotEmpty(t, snap)
	assert.Contains(t, snap, `"first_digits":"4242"`)
	assert.Contains(t, snap, `"id":"txn-abc"`)
	assert.Contains(t, snap, `"paid":true`)
	assert.NotContains(t, snap, `"4242424242424242"`)
}

func TestProcessDeclinedCharge(t *testing.T) {
	decline := `{"errors":{"credit_card":{"code":"card-declined","name":"La carte de crédit a été déclinée"}}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(decline))
	}))
	defer srv.Close()

	w, store, q, c, job := testWorker(srv.URL)
	result := w.Process(context.Background(), job)

	assert.False(t, result.Success)
	assert.Equal(t, "payment-failed", result.Error)
	assert.JSONEq(t, decline, string(result.Details))

	o := store.orders[1]
	assert.False(t, o.Paid)
	assert.JSONEq(t, decline, o.TransactionError)

	assert.Equal(t, []int64{1}, q.released)
	assert.Contains(t, string(c.entries["order:1"]), "card-declined")
}

func TestProcessGatewayUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse every connection

	w, store, q, _, job := testWorker(srv.URL)
	result := w.Process(context.Background(), job)

	assert.Equal(t, "gateway-error", result.Error)
	assert.NotEmpty(t, result.Message)

	o := store.orders[1]
	assert.False(t, o.Paid)
	assert.Contains(t, o.TransactionError, "gateway-error")
	assert.Equal(t, []int64{1}, q.released)
}

func TestProcessOrderDeleted(t *testing.T) {
	w, _, q, _, job := testWorker("http://unused.invalid")
	job.OrderID = 99

	result := w.Process(context.Background(), job)

	assert.Equal(t, "order-not-found", result.Error)
	assert.Equal(t, []int64{99}, q.released)
}

func TestRetryAfterDeclineSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Content-Type", "application/json")
		if attempts == 1 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"errors":{"credit_card":{"code":"card-declined","name":"declined"}}}`))
			return
		}
		_, _ = w.Write([]byte(`{"transaction":{"id":"txn-retry","success":"true"}}`))
	}))
	defer srv.Close()

	w, store, _, _, job := testWorker(srv.URL)

	first := w.Process(context.Background(), job)
	assert.Equal(t, "payment-failed", first.Error)
	assert.False(t, store.orders[1].Paid)

	second := w.Process(context.Background(), job)
	assert.True(t, second.Success)
	assert.True(t, store.orders[1].Paid)
	assert.Equal(t, "txn-retry", store.orders[1].TransactionID)
	assert.Empty(t, store.orders[1].TransactionError)
}

func TestGatewayMalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway()
	outcome, err := g.Charge(context.Background(), srv.URL, 10, queue.Card{})
	require.NoError(t, err)

	assert.False(t, outcome.Approved)
	assert.Contains(t, string(outcome.ErrorBody), "gateway-error")
}
