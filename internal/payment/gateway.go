// Package payment settles orders against the external card gateway: an HTTP
// adapter for the charge call and the background worker that drives it.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jcmexdev/shop-orders/internal/queue"
)

const (
	// A hung gateway would otherwise block a worker forever; the transport
	// timeout converts that into a gateway-unavailable error.
	gatewayTimeout      = 30 * time.Second
	maxResponseBodySize = 64 * 1024
)

// ChargeOutcome is the decoded result of one gateway call that got an HTTP
// response. Transport-level failures are returned as errors instead.
type ChargeOutcome struct {
	Approved bool

	// TransactionID and Transaction are set on approval: the gateway's id
	// and its full transaction object, kept raw for the snapshot.
	TransactionID string
	Transaction   json.RawMessage

	// ErrorBody is the structured decline error when not approved.
	ErrorBody json.RawMessage
}

// Gateway is the outbound port to the payment processor.
type Gateway interface {
	Charge(ctx context.Context, url string, amount float64, card queue.Card) (*ChargeOutcome, error)
}

// HTTPGateway calls the real gateway over HTTP.
type HTTPGateway struct {
	client *http.Client
}

func NewHTTPGateway() *HTTPGateway {
	return &HTTPGateway{
		client: &http.Client{
			Timeout: gatewayTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// chargeRequest is the gateway's wire format. The cardholder name is
// deliberately absent: the gateway does not need it.
type chargeRequest struct {
	CreditCard struct {
		Number          string `json:"number"`
		ExpirationMonth int    `json:"expiration_month"`
		ExpirationYear  int    `json:"expiration_year"`
		CVV             string `json:"cvv"`
	} `json:"credit_card"`
	AmountCharged float64 `json:"amount_charged"`
}

// Charge posts the payment to the gateway and classifies the response.
// A non-nil error means the gateway could not be reached or answered
// something unusable at the transport level.
func (g *HTTPGateway) Charge(ctx context.Context, url string, amount float64, card queue.Card) (*ChargeOutcome, error) {
	var reqBody chargeRequest
	reqBody.CreditCard.Number = card.Number
	reqBody.CreditCard.ExpirationMonth = card.ExpirationMonth
	reqBody.CreditCard.ExpirationYear = card.ExpirationYear
	reqBody.CreditCard.CVV = card.CVV
	reqBody.AmountCharged = amount

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("payment: marshal charge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("payment: build charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment: gateway call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("payment: read gateway response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &ChargeOutcome{
			Approved:  false,
			ErrorBody: declineBody(body),
		}, nil
	}

	var success struct {
		Transaction json.RawMessage `json:"transaction"`
	}
	var txn struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &success); err == nil && len(success.Transaction) > 0 {
		_ = json.Unmarshal(success.Transaction, &txn)
	}
	if txn.ID == "" {
		// 200 without a usable transaction object is a gateway bug; treat it
		// as a structured failure rather than an approval.
		errBody, _ := json.Marshal(map[string]string{
			"error":   "gateway-error",
			"message": "malformed gateway response",
		})
		return &ChargeOutcome{Approved: false, ErrorBody: errBody}, nil
	}

	return &ChargeOutcome{
		Approved:      true,
		TransactionID: txn.ID,
		Transaction:   success.Transaction,
	}, nil
}

// declineBody passes a JSON error body through untouched and wraps anything
// unparseable in a generic payment-failed envelope.
func declineBody(body []byte) json.RawMessage {
	if json.Valid(body) && len(body) > 0 {
		return json.RawMessage(body)
	}
	wrapped, _ := json.Marshal(map[string]string{
		"error":   "payment-failed",
		"details": string(body),
	})
	return wrapped
}
