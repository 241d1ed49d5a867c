package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openshelf/services/circulation/internal/payment"
	"github.com/openshelf/services/circulation/internal/repo"
	"go.uber.org/zap"
)

// PaymentResult is the outcome of a late-fee payment attempt.
type PaymentResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id,omitempty"`
	AmountCents   int64  `json:"-"`
}

// RefundResult is the outcome of a refund attempt.
type RefundResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// PayLateFees charges the patron's current late fee for a book through the
// payment gateway. A zero fee is a successful no-op that must not touch the
// gateway. Passing a nil gateway uses the service's injected default. Gateway
// faults are converted into failure results, never propagated.
func (s *LibraryService) PayLateFees(ctx context.Context, patronID string, bookID int64, gw payment.Gateway) PaymentResult {
	if gw == nil {
		gw = s.gateway
	}

	if !validPatronID(patronID) {
		return PaymentResult{Success: false, Message: msgInvalidPatronID}
	}
	if bookID <= 0 {
		return PaymentResult{Success: false, Message: msgInvalidBookID}
	}

	cents, days, status := s.lateFeeCents(ctx, patronID, bookID)
	if !feeStatusOK(status) {
		return PaymentResult{Success: false, Message: status}
	}
	if cents == 0 {
		return PaymentResult{Success: true, Message: "No late fees to pay for this book."}
	}

	book, err := s.repo.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, repo.ErrBookNotFound) {
			return PaymentResult{Success: false, Message: msgBookNotFound}
		}
		return PaymentResult{Success: false, Message: msgStoreError}
	}

	description := fmt.Sprintf("Late fees for '%s'", book.Title)
	resp, err := gw.ProcessPayment(patronID, cents, description)
	if err != nil {
		s.log.Error("Payment gateway fault",
			zap.String("patron_id", patronID),
			zap.Int64("book_id", bookID),
			zap.Error(err),
		)
		return PaymentResult{Success: false, Message: "Payment processing error occurred. Please try again later."}
	}

	if !resp.Accepted {
		return PaymentResult{Success: false, Message: "Payment failed: " + resp.Message}
	}

	return PaymentResult{
		Success:       true,
		Message:       fmt.Sprintf("Payment successful. Paid $%.2f for late fees on %q (%d days overdue).", centsToDollars(cents), book.Title, days),
		TransactionID: resp.TransactionID,
		AmountCents:   cents,
	}
}

// RefundLateFeePayment refunds a previous late-fee payment. The amount must
// be positive and no more than the per-book fee ceiling. Gateway faults are
// converted into failure results.
func (s *LibraryService) RefundLateFeePayment(transactionID string, amountCents int64, gw payment.Gateway) RefundResult {
	if gw == nil {
		gw = s.gateway
	}

	if !strings.HasPrefix(transactionID, payment.TransactionPrefix) {
		return RefundResult{Success: false, Message: "Invalid transaction ID format."}
	}
	if amountCents <= 0 {
		return RefundResult{Success: false, Message: "Refund amount must be greater than 0."}
	}
	if amountCents > maxFeeCents {
		return RefundResult{Success: false, Message: "Refund amount exceeds maximum late fee."}
	}

	resp, err := gw.RefundPayment(transactionID, amountCents)
	if err != nil {
		s.log.Error("Refund gateway fault",
			zap.String("transaction_id", transactionID),
			zap.Error(err),
		)
		return RefundResult{Success: false, Message: "Refund processing error occurred. Please try again later."}
	}

	if !resp.Accepted {
		return RefundResult{Success: false, Message: "Refund failed: " + resp.Message}
	}

	return RefundResult{Success: true, Message: resp.Message}
}

// VerifyPayment looks up a transaction's status with the gateway.
func (s *LibraryService) VerifyPayment(transactionID string, gw payment.Gateway) (payment.Status, error) {
	if gw == nil {
		gw = s.gateway
	}
	return gw.VerifyPayment(transactionID)
}
