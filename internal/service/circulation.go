package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openshelf/services/circulation/internal/db"
	"github.com/openshelf/services/circulation/internal/repo"
)

// BorrowResult reports a successful borrow.
type BorrowResult struct {
	Message string    `json:"message"`
	DueDate time.Time `json:"due_date"`
}

// ReturnResult reports a successful return together with any late fee that
// was assessed.
type ReturnResult struct {
	Message     string  `json:"message"`
	FeeAmount   float64 `json:"fee_amount"`
	DaysOverdue int     `json:"days_overdue"`
	FeeCents    int64   `json:"-"`
}

// BorrowBook checks the book out to the patron. Availability, the borrowing
// limit, and the loan record are all settled in one pass; the record insert
// and the availability decrement commit together or not at all.
func (s *LibraryService) BorrowBook(ctx context.Context, patronID string, bookID int64) (*BorrowResult, error) {
	if !validPatronID(patronID) {
		return nil, NewInvalidArgumentError(msgInvalidPatronID)
	}

	book, err := s.repo.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, repo.ErrBookNotFound) {
			return nil, NewNotFoundError(msgBookNotFound)
		}
		return nil, NewStoreError("Database error occurred while creating borrow record.")
	}

	if book.AvailableCopies <= 0 {
		return nil, NewPolicyViolationError("This book is currently not available.")
	}

	outstanding, err := s.repo.CountOutstanding(ctx, patronID)
	if err != nil {
		return nil, NewStoreError("Database error occurred while creating borrow record.")
	}
	if outstanding > borrowLimit {
		return nil, NewPolicyViolationError("You have reached the maximum borrowing limit of 5 books.")
	}

	borrowDate := s.clock.Now()
	dueDate := borrowDate.Add(db.LoanPeriod)

	if _, err := s.repo.CreateLoan(ctx, patronID, bookID, borrowDate, dueDate); err != nil {
		if errors.Is(err, repo.ErrBookUnavailable) {
			return nil, NewPolicyViolationError("This book is currently not available.")
		}
		return nil, NewStoreError("Database error occurred while creating borrow record.")
	}

	return &BorrowResult{
		Message: fmt.Sprintf("Successfully borrowed %q. Due date: %s.", book.Title, dueDate.Format(dateLayout)),
		DueDate: dueDate,
	}, nil
}

// ReturnBook checks the book back in. Eligibility is delegated to the fee
// calculator: any status it reports other than on-time or overdue is
// propagated verbatim as the failure reason. The return stamp and the
// availability increment commit together.
func (s *LibraryService) ReturnBook(ctx context.Context, patronID string, bookID int64) (*ReturnResult, error) {
	if !validPatronID(patronID) {
		return nil, NewInvalidArgumentError(msgInvalidPatronID)
	}
	if bookID <= 0 {
		return nil, NewInvalidArgumentError(msgInvalidBookID)
	}

	known, err := s.repo.HasAnyRecord(ctx, patronID)
	if err != nil {
		return nil, NewStoreError("Database error occurred while recording return date.")
	}
	if !known {
		return nil, NewNotFoundError(msgPatronNotFound)
	}

	feeCents, daysOverdue, status := s.lateFeeCents(ctx, patronID, bookID)
	if !feeStatusOK(status) {
		switch status {
		case msgBookNotFound, msgPatronNotFound, msgNotBorrowed:
			return nil, NewNotFoundError(status)
		case msgStoreError:
			return nil, NewStoreError(status)
		default:
			return nil, NewInvalidArgumentError(status)
		}
	}

	book, err := s.repo.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, repo.ErrBookNotFound) {
			return nil, NewNotFoundError(msgBookNotFound)
		}
		return nil, NewStoreError("Database error occurred while recording return date.")
	}

	if err := s.repo.CloseLoan(ctx, patronID, bookID, s.clock.Now()); err != nil {
		if errors.Is(err, repo.ErrNoOutstandingLoan) {
			return nil, NewNotFoundError(msgNotBorrowed)
		}
		return nil, NewStoreError("Database error occurred while recording return date.")
	}

	message := fmt.Sprintf("Successfully returned %q.", book.Title)
	if feeCents > 0 {
		message += fmt.Sprintf(" Late fee: $%.2f (%d days overdue).", centsToDollars(feeCents), daysOverdue)
	} else {
		message += " No late fees."
	}

	return &ReturnResult{
		Message:     message,
		FeeAmount:   centsToDollars(feeCents),
		DaysOverdue: daysOverdue,
		FeeCents:    feeCents,
	}, nil
}
