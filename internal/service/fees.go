package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openshelf/services/circulation/internal/repo"
)

// Fee schedule, in cents: 50¢ per day for the first seven overdue days, then
// $1.00 per additional day, capped at $15.00 per book.
const (
	earlyFeeCentsPerDay = 50
	lateFeeCentsPerDay  = 100
	earlyFeeDays        = 7
	maxFeeCents         = 1500
)

// FeeResult is the outcome of a late-fee computation. FeeAmount is in
// dollars, rounded to cents. Status is "Success" when nothing is owed,
// "Overdue by N days" when a fee applies, or a descriptive error string when
// the computation could not be performed. It never raises.
type FeeResult struct {
	FeeAmount   float64 `json:"fee_amount"`
	DaysOverdue int     `json:"days_overdue"`
	Status      string  `json:"status"`
}

// CalculateLateFee computes the current late fee for the patron's outstanding
// loan of the given book. Pure with respect to stored data: it mutates
// nothing and may be called repeatedly by return processing and status
// reporting.
func (s *LibraryService) CalculateLateFee(ctx context.Context, patronID string, bookID int64) FeeResult {
	cents, days, status := s.lateFeeCents(ctx, patronID, bookID)
	return FeeResult{
		FeeAmount:   centsToDollars(cents),
		DaysOverdue: days,
		Status:      status,
	}
}

// lateFeeCents is the integer-cents core of CalculateLateFee, shared with
// status aggregation so fee totals sum exactly.
func (s *LibraryService) lateFeeCents(ctx context.Context, patronID string, bookID int64) (cents int64, daysOverdue int, status string) {
	if !validPatronID(patronID) {
		return 0, 0, msgInvalidPatronID
	}
	if bookID <= 0 {
		return 0, 0, msgInvalidBookID
	}

	known, err := s.repo.HasAnyRecord(ctx, patronID)
	if err != nil {
		return 0, 0, msgStoreError
	}
	if !known {
		return 0, 0, msgPatronNotFound
	}

	if _, err := s.repo.GetBook(ctx, bookID); err != nil {
		if errors.Is(err, repo.ErrBookNotFound) {
			return 0, 0, msgBookNotFound
		}
		return 0, 0, msgStoreError
	}

	record, err := s.repo.GetOutstandingRecord(ctx, patronID, bookID)
	if err != nil {
		if errors.Is(err, repo.ErrNoOutstandingLoan) {
			return 0, 0, msgNotBorrowed
		}
		return 0, 0, msgStoreError
	}

	daysOverdue = wholeDaysOverdue(s.clock.Now().Sub(record.DueDate))
	if daysOverdue == 0 {
		return 0, 0, statusSuccess
	}

	return feeForDays(daysOverdue), daysOverdue, fmt.Sprintf("%s%d days", overduePrefix, daysOverdue)
}

// wholeDaysOverdue floors the elapsed time past due to whole days; partial
// days do not count.
func wholeDaysOverdue(past time.Duration) int {
	days := int(past.Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func feeForDays(daysOverdue int) int64 {
	if daysOverdue <= 0 {
		return 0
	}

	var cents int64
	if daysOverdue <= earlyFeeDays {
		cents = int64(daysOverdue) * earlyFeeCentsPerDay
	} else {
		cents = earlyFeeDays*earlyFeeCentsPerDay + int64(daysOverdue-earlyFeeDays)*lateFeeCentsPerDay
	}

	if cents > maxFeeCents {
		cents = maxFeeCents
	}
	return cents
}

// feeStatusOK reports whether a fee-calculation status represents a valid
// loan (on time or overdue) rather than an error state.
func feeStatusOK(status string) bool {
	return status == statusSuccess || strings.HasPrefix(status, overduePrefix)
}
