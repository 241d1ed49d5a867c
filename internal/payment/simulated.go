package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// BaseURL is where a real integration would send requests; the simulated
	// gateway only reports it.
	BaseURL = "https://api.payment-gateway.example.com"

	// DefaultAPIKey is the sandbox credential used when none is configured.
	DefaultAPIKey = "test_key_12345"

	// TransactionPrefix marks transaction identifiers issued by this gateway.
	TransactionPrefix = "txn_"

	// MaxChargeCents is the largest single charge the gateway accepts ($1000).
	MaxChargeCents = 100_000
)

// SimulatedGateway stands in for the external payment processor. It applies
// the processor's documented accept/decline rules without any network calls.
type SimulatedGateway struct {
	APIKey string
}

// NewSimulatedGateway creates a gateway with the given API key, falling back
// to the sandbox key when empty.
func NewSimulatedGateway(apiKey string) *SimulatedGateway {
	if apiKey == "" {
		apiKey = DefaultAPIKey
	}
	return &SimulatedGateway{APIKey: apiKey}
}

// ProcessPayment charges the patron. Declines non-positive amounts, amounts
// over the charge ceiling, and malformed patron IDs.
func (g *SimulatedGateway) ProcessPayment(patronID string, amountCents int64, description string) (Response, error) {
	if amountCents <= 0 {
		return Response{Accepted: false, Message: "Invalid amount. Must be greater than 0."}, nil
	}
	if amountCents > MaxChargeCents {
		return Response{Accepted: false, Message: "Payment declined. Amount exceeds maximum allowed."}, nil
	}
	if !validPatronID(patronID) {
		return Response{Accepted: false, Message: "Invalid patron ID format."}, nil
	}

	txnID := TransactionPrefix + uuid.New().String()
	return Response{
		Accepted:      true,
		TransactionID: txnID,
		Message:       fmt.Sprintf("Payment of $%.2f processed successfully", dollars(amountCents)),
	}, nil
}

// RefundPayment refunds a previous charge. Rejects malformed transaction
// identifiers and non-positive amounts.
func (g *SimulatedGateway) RefundPayment(transactionID string, amountCents int64) (Response, error) {
	if !strings.HasPrefix(transactionID, TransactionPrefix) {
		return Response{Accepted: false, Message: "Invalid transaction ID format."}, nil
	}
	if amountCents <= 0 {
		return Response{Accepted: false, Message: "Invalid refund amount."}, nil
	}

	refundID := "ref_" + uuid.New().String()
	return Response{
		Accepted:      true,
		TransactionID: transactionID,
		Message:       fmt.Sprintf("Refund of $%.2f processed successfully. Refund ID: %s", dollars(amountCents), refundID),
	}, nil
}

// VerifyPayment reports the status of a transaction. The simulation treats
// every well-formed identifier as a completed payment.
func (g *SimulatedGateway) VerifyPayment(transactionID string) (Status, error) {
	if !strings.HasPrefix(transactionID, TransactionPrefix) {
		return Status{
			Status:        "not_found",
			TransactionID: transactionID,
			Message:       "Transaction not found.",
		}, nil
	}

	now := time.Now()
	return Status{
		Status:        "completed",
		TransactionID: transactionID,
		AmountCents:   1050,
		Timestamp:     &now,
	}, nil
}

func validPatronID(patronID string) bool {
	if len(patronID) != 6 {
		return false
	}
	for _, c := range patronID {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func dollars(cents int64) float64 {
	return float64(cents) / 100
}
