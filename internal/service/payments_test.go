package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openshelf/services/circulation/internal/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// borrowOverdueBook sets up a loan that is five days overdue ($2.50 owed).
func borrowOverdueBook(t *testing.T, svc *LibraryService, clock *fakeClock) int64 {
	bookID := addTestBook(t, svc, "Test Book", "Test Author", "1234567890123", 1)
	_, err := svc.BorrowBook(context.Background(), "123456", bookID)
	require.NoError(t, err)
	clock.Advance(19 * 24 * time.Hour)
	return bookID
}

func TestPayLateFees(t *testing.T) {
	svc, clock, gateway := setupService(t)
	bookID := borrowOverdueBook(t, svc, clock)

	result := svc.PayLateFees(context.Background(), "123456", bookID, nil)
	assert.True(t, result.Success)
	assert.Equal(t, "txn_123456", result.TransactionID)
	assert.Contains(t, result.Message, "Payment successful")

	assert.Equal(t, 1, gateway.processCalls)
	assert.Equal(t, "123456", gateway.lastPatronID)
	assert.Equal(t, int64(250), gateway.lastAmountCents)
	assert.Equal(t, "Late fees for 'Test Book'", gateway.lastDescription)
}

// A zero fee is a successful no-op and must not reach the gateway.
func TestPayLateFeesNothingOwed(t *testing.T) {
	svc, _, gateway := setupService(t)
	ctx := context.Background()

	bookID := addTestBook(t, svc, "Test Book", "Test Author", "1234567890123", 1)
	_, err := svc.BorrowBook(ctx, "123456", bookID)
	require.NoError(t, err)

	result := svc.PayLateFees(ctx, "123456", bookID, nil)
	assert.True(t, result.Success)
	assert.Empty(t, result.TransactionID)
	assert.Contains(t, result.Message, "No late fees to pay")
	assert.Zero(t, gateway.processCalls)
}

func TestPayLateFeesDeclined(t *testing.T) {
	svc, clock, gateway := setupService(t)
	bookID := borrowOverdueBook(t, svc, clock)

	gateway.processResp = payment.Response{Accepted: false, Message: "Payment declined"}

	result := svc.PayLateFees(context.Background(), "123456", bookID, nil)
	assert.False(t, result.Success)
	assert.Empty(t, result.TransactionID)
	assert.Contains(t, result.Message, "Payment failed")
	assert.Equal(t, 1, gateway.processCalls)
}

func TestPayLateFeesInvalidPatron(t *testing.T) {
	svc, _, gateway := setupService(t)

	// Validation happens before any external call.
	result := svc.PayLateFees(context.Background(), "12345", 1, nil)
	assert.False(t, result.Success)
	assert.Empty(t, result.TransactionID)
	assert.Contains(t, result.Message, "Invalid patron ID")
	assert.Zero(t, gateway.processCalls)
}

// A gateway fault is caught and converted into a failure result.
func TestPayLateFeesGatewayFault(t *testing.T) {
	svc, clock, gateway := setupService(t)
	bookID := borrowOverdueBook(t, svc, clock)

	gateway.processErr = errors.New("network error")

	result := svc.PayLateFees(context.Background(), "123456", bookID, nil)
	assert.False(t, result.Success)
	assert.Empty(t, result.TransactionID)
	assert.Contains(t, result.Message, "error")
	assert.Equal(t, 1, gateway.processCalls)
}

// An explicitly supplied gateway overrides the injected default.
func TestPayLateFeesOverrideGateway(t *testing.T) {
	svc, clock, defaultGateway := setupService(t)
	bookID := borrowOverdueBook(t, svc, clock)

	override := &fakeGateway{
		processResp: payment.Response{Accepted: true, TransactionID: "txn_override", Message: "ok"},
	}

	result := svc.PayLateFees(context.Background(), "123456", bookID, override)
	assert.True(t, result.Success)
	assert.Equal(t, "txn_override", result.TransactionID)
	assert.Equal(t, 1, override.processCalls)
	assert.Zero(t, defaultGateway.processCalls)
}

func TestRefundLateFeePayment(t *testing.T) {
	svc, _, gateway := setupService(t)

	result := svc.RefundLateFeePayment("txn_123456", 1000, nil)
	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "Refund processed successfully")
	assert.Equal(t, 1, gateway.refundCalls)
	assert.Equal(t, int64(1000), gateway.lastAmountCents)
}

func TestRefundLateFeePaymentValidation(t *testing.T) {
	svc, _, gateway := setupService(t)

	tests := []struct {
		name          string
		transactionID string
		amountCents   int64
		wantMsg       string
	}{
		{"bad transaction id", "invalid_id", 1000, "Invalid transaction ID format."},
		{"zero amount", "txn_123456", 0, "Refund amount must be greater than 0."},
		{"negative amount", "txn_123456", -500, "Refund amount must be greater than 0."},
		{"over fee ceiling", "txn_123456", 2000, "Refund amount exceeds maximum late fee."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := svc.RefundLateFeePayment(tt.transactionID, tt.amountCents, nil)
			assert.False(t, result.Success)
			assert.Equal(t, tt.wantMsg, result.Message)
		})
	}
	assert.Zero(t, gateway.refundCalls)
}

// The refund ceiling is inclusive: exactly $15.00 is refundable.
func TestRefundLateFeePaymentAtCeiling(t *testing.T) {
	svc, _, gateway := setupService(t)

	result := svc.RefundLateFeePayment("txn_123456", 1500, nil)
	assert.True(t, result.Success)
	assert.Equal(t, 1, gateway.refundCalls)
}

func TestRefundLateFeePaymentGatewayFault(t *testing.T) {
	svc, _, gateway := setupService(t)
	gateway.refundErr = errors.New("gateway error")

	result := svc.RefundLateFeePayment("txn_123456", 1000, nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "error")
	assert.Equal(t, 1, gateway.refundCalls)
}

func TestVerifyPayment(t *testing.T) {
	svc, _, _ := setupService(t)

	status, err := svc.VerifyPayment("txn_123456", nil)
	require.NoError(t, err)
	assert.Equal(t, "completed", status.Status)
	assert.Equal(t, "txn_123456", status.TransactionID)
}
