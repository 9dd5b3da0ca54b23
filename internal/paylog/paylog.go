// Package paylog defines the payment attempt audit log.
//
// Every gateway attempt — approved, declined, or errored — appends one
// immutable row. It serves two purposes:
//
//  1. Observability: operators can query "why did order N's charge fail" and
//     correlate the row with a distributed trace via the trace_id field.
//
//  2. Dispute handling: the log survives cache overwrites and order updates,
//     so the full attempt history of an order is always reconstructible.
package paylog

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Outcome classifies a payment attempt.
type Outcome string

const (
	OutcomeApproved Outcome = "APPROVED"
	OutcomeDeclined Outcome = "DECLINED"
	OutcomeError    Outcome = "ERROR"
)

// Attempt is a single row in the payment_attempts table.
type Attempt struct {
	// OrderID joins the attempt with business data.
	OrderID int64

	// JobID is the queue job that performed this attempt.
	JobID string

	// Outcome is the attempt classification.
	Outcome Outcome

	// Amount is the amount submitted to the gateway.
	Amount float64

	// ErrorDetails is the JSON-serialised structured error for declined or
	// errored attempts, empty on approval.
	ErrorDetails string

	// TraceID is the W3C trace ID extracted from the OpenTelemetry span that
	// was active when the attempt ran. Lets you jump from a log row straight
	// to the full trace.
	TraceID string

	// SpanID pinpoints the exact span within the trace.
	SpanID string

	// CreatedAt is the wall-clock time of the attempt.
	CreatedAt time.Time
}

// Repository is the port for persisting attempts. The worker depends on this
// abstraction, not on SQLite directly, so tests can use an in-memory fake.
type Repository interface {
	// Save appends a row; the table is an append-only audit log.
	Save(ctx context.Context, attempt *Attempt) error
}

// NewAttempt builds an Attempt with trace info extracted from ctx. If the
// context carries no active span (e.g. in unit tests), the trace fields stay
// empty.
func NewAttempt(ctx context.Context, orderID int64, jobID string, outcome Outcome, amount float64, errorDetails string) *Attempt {
	attempt := &Attempt{
		OrderID:      orderID,
		JobID:        jobID,
		Outcome:      outcome,
		Amount:       amount,
		ErrorDetails: errorDetails,
		CreatedAt:    time.Now().UTC(),
	}

	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		attempt.TraceID = sc.TraceID().String()
		attempt.SpanID = sc.SpanID().String()
	}

	return attempt
}
