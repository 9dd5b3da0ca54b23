package order

import (
	"fmt"
	"net/http"
)

// Error is a structured, user-correctable failure. It carries the wire-level
// {code, name} pair plus the scope key it nests under in the response
// envelope ({"errors": {<scope>: {"code": ..., "name": ...}}}) and the HTTP
// status the boundary should answer with.
type Error struct {
	Scope  string `json:"-"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Status int    `json:"-"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Name
}

func orderError(code, name string, status int) *Error {
	return &Error{Scope: "order", Code: code, Name: name, Status: status}
}

func productsError(code, name string) *Error {
	return &Error{Scope: "products", Code: code, Name: name, Status: http.StatusUnprocessableEntity}
}

// ErrOrderNotFound reports an unknown order id.
func ErrOrderNotFound() *Error {
	return orderError("not-found", "Order not found", http.StatusNotFound)
}

// ErrAlreadyPaid rejects any mutation of a settled order.
func ErrAlreadyPaid() *Error {
	return orderError("already-paid", "Order is already paid and cannot be modified", http.StatusConflict)
}

// ErrInvalidOperation rejects a request carrying both a shipping update and a
// payment submission.
func ErrInvalidOperation() *Error {
	return orderError("invalid-operation", "Cannot update shipping info and pay at the same time", http.StatusUnprocessableEntity)
}

// ErrShippingFieldsMissing reports an incomplete shipping update.
func ErrShippingFieldsMissing() *Error {
	return orderError("missing-fields", "Shipping info & email required", http.StatusUnprocessableEntity)
}

// ErrShippingRequired rejects a payment on an order that has no shipping
// information yet.
func ErrShippingRequired() *Error {
	return orderError("missing-fields", "Order must have email and shipping information before payment", http.StatusUnprocessableEntity)
}

// ErrPaymentPending rejects a second payment submission while a job for the
// same order is still in flight.
func ErrPaymentPending() *Error {
	return orderError("payment-pending", "A payment attempt for this order is already in progress", http.StatusConflict)
}

// ErrCardFieldsMissing reports incomplete credit card details.
func ErrCardFieldsMissing() *Error {
	return &Error{
		Scope:  "payment",
		Code:   "invalid-fields",
		Name:   "Incomplete credit card details",
		Status: http.StatusUnprocessableEntity,
	}
}

// ErrQueueUnavailable reports that the job queue backend is unreachable.
func ErrQueueUnavailable() *Error {
	return orderError("service-unavailable", "Payment queue is unavailable, try again later", http.StatusServiceUnavailable)
}

// ErrProductsMissing reports a create request without a product list.
func ErrProductsMissing() *Error {
	return productsError("missing-fields", "Missing or invalid 'product(s)'")
}

// ErrProductsEmpty reports a create request with an empty product list.
func ErrProductsEmpty() *Error {
	return productsError("empty", "No products provided")
}

// ErrInvalidEntry reports a line with a bad id or quantity.
func ErrInvalidEntry() *Error {
	return productsError("invalid-entry", "Invalid product ID or quantity")
}

// ErrProductNotFound reports an unknown item id in a create request.
func ErrProductNotFound(id int64) *Error {
	return productsError("not-found", fmt.Sprintf("Product ID %d not found", id))
}

// ErrOutOfInventory reports a known but out-of-stock item.
func ErrOutOfInventory(id int64) *Error {
	return productsError("out-of-inventory", fmt.Sprintf("Product ID %d is not in stock", id))
}
