package service

import (
	"context"
	"testing"
	"time"

	"github.com/openshelf/services/circulation/internal/db"
	"github.com/openshelf/services/circulation/internal/payment"
	"github.com/openshelf/services/circulation/internal/repo"
	"github.com/openshelf/services/circulation/pkg/logger"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fakeClock is a settable time source shared by a service under test.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// fakeGateway records payment calls and returns programmed responses.
type fakeGateway struct {
	processCalls    int
	refundCalls     int
	lastPatronID    string
	lastAmountCents int64
	lastDescription string

	processResp payment.Response
	processErr  error
	refundResp  payment.Response
	refundErr   error
}

func (g *fakeGateway) ProcessPayment(patronID string, amountCents int64, description string) (payment.Response, error) {
	g.processCalls++
	g.lastPatronID = patronID
	g.lastAmountCents = amountCents
	g.lastDescription = description
	return g.processResp, g.processErr
}

func (g *fakeGateway) RefundPayment(transactionID string, amountCents int64) (payment.Response, error) {
	g.refundCalls++
	g.lastAmountCents = amountCents
	return g.refundResp, g.refundErr
}

func (g *fakeGateway) VerifyPayment(transactionID string) (payment.Status, error) {
	return payment.Status{Status: "completed", TransactionID: transactionID}, nil
}

func setupTestDB(t *testing.T) *db.DB {
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = gormDB.AutoMigrate(&db.Book{}, &db.BorrowRecord{})
	require.NoError(t, err)

	return &db.DB{DB: gormDB}
}

func setupService(t *testing.T, opts ...Option) (*LibraryService, *fakeClock, *fakeGateway) {
	database := setupTestDB(t)
	log := logger.NewLogger("test", "error")
	libraryRepo := repo.NewLibraryRepository(database, log)

	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	gateway := &fakeGateway{
		processResp: payment.Response{Accepted: true, TransactionID: "txn_123456", Message: "Payment processed successfully"},
		refundResp:  payment.Response{Accepted: true, Message: "Refund processed successfully"},
	}

	opts = append([]Option{WithClock(clock)}, opts...)
	svc := NewLibraryService(libraryRepo, gateway, log, opts...)
	return svc, clock, gateway
}

// addTestBook admits a book and returns its ID.
func addTestBook(t *testing.T, svc *LibraryService, title, author, isbn string, copies int) int64 {
	result, err := svc.AddBook(context.Background(), title, author, isbn, copies)
	require.NoError(t, err)
	require.NotNil(t, result.Book)
	return result.Book.ID
}
