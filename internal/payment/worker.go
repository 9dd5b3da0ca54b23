package payment

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jcmexdev/shop-orders/internal/order"
	"github.com/jcmexdev/shop-orders/internal/paylog"
	"github.com/jcmexdev/shop-orders/internal/pkg/cache"
	"github.com/jcmexdev/shop-orders/internal/queue"
)

const dequeueTimeout = time.Second

// JobQueue is the consume side of the payment queue.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.PaymentJob, error)
	SetResult(ctx context.Context, jobID string, result []byte, status queue.Status) error
	ReleasePending(ctx context.Context, orderID int64) error
}

// Result is the job result payload surfaced by the job status endpoint:
// {"success": true} on approval, {"error", "details"/"message"} otherwise.
type Result struct {
	Success bool            `json:"success,omitempty"`
	Error   string          `json:"error,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Worker pulls payment jobs and settles them against the gateway. Several
// instances may run concurrently; jobs for different orders share nothing,
// and the per-order pending guard keeps one order's attempts serialised.
type Worker struct {
	queue   JobQueue
	store   order.Store
	cache   cache.Cache
	gateway Gateway

	// log may be nil: auditing is skipped, settlement is unaffected.
	log paylog.Repository
}

func NewWorker(q JobQueue, store order.Store, c cache.Cache, g Gateway, log paylog.Repository) *Worker {
	return &Worker{
		queue:   q,
		store:   store,
		cache:   c,
		gateway: g,
		log:     log,
	}
}

// Run is the worker loop. It blocks on the queue, processes one job at a
// time, and exits when ctx is cancelled.
func (w *Worker) Run(ctx context.Context, workerID int) {
	slog.InfoContext(ctx, "payment worker started", "worker_id", workerID)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "payment worker stopped", "worker_id", workerID)
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			slog.ErrorContext(ctx, "dequeue failed", "worker_id", workerID, "error", err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		result := w.Process(ctx, job)

		resultJSON, err := json.Marshal(result)
		if err != nil {
			resultJSON = []byte(`{"error":"internal","message":"unencodable job result"}`)
		}
		if err := w.queue.SetResult(ctx, job.ID, resultJSON, queue.StatusFinished); err != nil {
			slog.ErrorContext(ctx, "failed to store job result", "job_id", job.ID, "error", err)
		}
	}
}

// Process runs one payment attempt end to end. It never panics outward and
// never leaves the job unresolved: every failure mode collapses into a
// structured Result, and the order row plus the snapshot cache are updated
// regardless of outcome.
func (w *Worker) Process(ctx context.Context, job *queue.PaymentJob) Result {
	defer func() {
		if err := w.queue.ReleasePending(ctx, job.OrderID); err != nil {
			slog.ErrorContext(ctx, "failed to release pending guard", "order_id", job.OrderID, "error", err)
		}
	}()

	// Re-read the order: queue payloads go stale, only the charge amount and
	// card data are trusted from the job.
	o, err := w.store.GetOrder(ctx, job.OrderID)
	if err != nil {
		slog.ErrorContext(ctx, "order load failed", "order_id", job.OrderID, "error", err)
		return Result{Error: "order-unavailable", Message: err.Error()}
	}
	if o == nil {
		return Result{Error: "order-not-found", Message: "order no longer exists"}
	}

	outcome, gwErr := w.gateway.Charge(ctx, job.GatewayURL, job.Amount, job.Card)

	var (
		result      Result
		transaction json.RawMessage
		logOutcome  paylog.Outcome
		errDetails  string
	)

	switch {
	case gwErr != nil:
		// Unreachable gateway, timeout, or unreadable response. Converted
		// into a structured error on the order; the job still finishes.
		errBody, _ := json.Marshal(map[string]string{
			"error":   "gateway-error",
			"message": gwErr.Error(),
		})
		errDetails = string(errBody)
		if err := w.store.RecordPaymentFailure(ctx, o.ID, errDetails); err != nil {
			slog.ErrorContext(ctx, "failed to persist transaction error", "order_id", o.ID, "error", err)
		}
		o.TransactionError = errDetails
		transaction = errBody
		result = Result{Error: "gateway-error", Message: gwErr.Error()}
		logOutcome = paylog.OutcomeError
		slog.WarnContext(ctx, "gateway unreachable", "order_id", o.ID, "job_id", job.ID, "error", gwErr)

	case !outcome.Approved:
		errDetails = string(outcome.ErrorBody)
		if err := w.store.RecordPaymentFailure(ctx, o.ID, errDetails); err != nil {
			slog.ErrorContext(ctx, "failed to persist transaction error", "order_id", o.ID, "error", err)
		}
		o.TransactionError = errDetails
		transaction = outcome.ErrorBody
		result = Result{Error: "payment-failed", Details: outcome.ErrorBody}
		logOutcome = paylog.OutcomeDeclined
		slog.InfoContext(ctx, "payment declined", "order_id", o.ID, "job_id", job.ID)

	default:
		if err := w.store.RecordPaymentSuccess(ctx, o.ID, outcome.TransactionID); err != nil {
			slog.ErrorContext(ctx, "failed to persist payment success", "order_id", o.ID, "error", err)
			return Result{Error: "order-unavailable", Message: err.Error()}
		}
		o.Paid = true
		o.TransactionID = outcome.TransactionID
		o.TransactionError = ""
		transaction = outcome.Transaction
		result = Result{Success: true}
		logOutcome = paylog.OutcomeApproved
		slog.InfoContext(ctx, "payment approved",
			"order_id", o.ID, "job_id", job.ID, "transaction_id", outcome.TransactionID)
	}

	w.refreshSnapshot(ctx, o, job, transaction)

	if w.log != nil {
		attempt := paylog.NewAttempt(ctx, o.ID, job.ID, logOutcome, job.Amount, errDetails)
		if err := w.log.Save(ctx, attempt); err != nil {
			slog.ErrorContext(ctx, "failed to record payment attempt", "order_id", o.ID, "error", err)
		}
	}

	return result
}

// refreshSnapshot rebuilds the externally-visible order representation with
// masked card data and writes it to the result cache. Cache failures are
// logged and swallowed: the store already holds the truth.
func (w *Worker) refreshSnapshot(ctx context.Context, o *order.Order, job *queue.PaymentJob, transaction json.RawMessage) {
	card := order.MaskCard(job.Card.Number, job.Card.Name, job.Card.ExpirationMonth, job.Card.ExpirationYear)
	snapshot := o.SettlementSnapshot(card, transaction)

	data, err := json.Marshal(snapshot)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode snapshot", "order_id", o.ID, "error", err)
		return
	}

	if err := w.cache.Set(ctx, cache.OrderKey(o.ID), data); err != nil {
		slog.ErrorContext(ctx, "failed to cache snapshot", "order_id", o.ID, "error", err)
	}
}
