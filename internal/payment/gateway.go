package payment

import (
	"time"
)

// Response is the gateway's answer to a charge or refund request. A decline
// comes back with Accepted false; an error return from the gateway methods
// means the gateway itself faulted.
type Response struct {
	Accepted      bool   `json:"accepted"`
	TransactionID string `json:"transaction_id,omitempty"`
	Message       string `json:"message"`
}

// Status describes a previously submitted payment.
type Status struct {
	Status        string     `json:"status"` // "completed" or "not_found"
	TransactionID string     `json:"transaction_id"`
	AmountCents   int64      `json:"amount,omitempty"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
	Message       string     `json:"message,omitempty"`
}

// Gateway is the external payment processor. Implementations must be safe to
// substitute in tests; the service never constructs one implicitly beyond its
// injected default. Amounts are in cents.
type Gateway interface {
	ProcessPayment(patronID string, amountCents int64, description string) (Response, error)
	RefundPayment(transactionID string, amountCents int64) (Response, error)
	VerifyPayment(transactionID string) (Status, error)
}
