package service

import (
	"context"
)

const dateLayout = "2006-01-02"

// BorrowedBook is one currently outstanding loan in a status report.
type BorrowedBook struct {
	BookID     int64  `json:"book_id"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	BorrowDate string `json:"borrow_date"`
	DueDate    string `json:"due_date"`
	IsOverdue  bool   `json:"is_overdue"`
}

// HistoryEntry is one loan, open or closed, in a patron's borrowing history.
type HistoryEntry struct {
	BookID     int64  `json:"book_id"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	BorrowDate string `json:"borrow_date"`
	DueDate    string `json:"due_date"`
	Status     string `json:"status"` // "Borrowed" or "Returned"
	ReturnDate string `json:"return_date,omitempty"`
}

// StatusReport aggregates everything the desk needs to know about a patron.
// It is always uniformly shaped: on failure Error is set and the collections
// are empty, never nil.
type StatusReport struct {
	Error             string         `json:"error,omitempty"`
	CurrentlyBorrowed []BorrowedBook `json:"currently_borrowed"`
	TotalLateFees     float64        `json:"total_late_fees"`
	BooksCount        int            `json:"books_count"`
	BorrowingHistory  []HistoryEntry `json:"borrowing_history"`
}

func errorReport(msg string) StatusReport {
	return StatusReport{
		Error:             msg,
		CurrentlyBorrowed: []BorrowedBook{},
		BorrowingHistory:  []HistoryEntry{},
	}
}

// PatronStatus builds the status report for a patron: outstanding loans with
// per-loan overdue flags, the summed late fees across them, and the full
// borrowing history in reverse borrow order. It never fails with an error
// value; the report's Error field carries any failure.
func (s *LibraryService) PatronStatus(ctx context.Context, patronID string) StatusReport {
	if !validPatronID(patronID) {
		return errorReport(msgInvalidPatronID)
	}

	known, err := s.repo.HasAnyRecord(ctx, patronID)
	if err != nil {
		return errorReport(msgStoreError)
	}
	if !known && patronID != s.sentinelPatronID {
		return errorReport(msgPatronNotFound)
	}

	outstanding, err := s.repo.ListOutstanding(ctx, patronID)
	if err != nil {
		return errorReport(msgStoreError)
	}

	now := s.clock.Now()
	borrowed := make([]BorrowedBook, 0, len(outstanding))
	var totalFeeCents int64
	for _, rec := range outstanding {
		borrowed = append(borrowed, BorrowedBook{
			BookID:     rec.BookID,
			Title:      rec.Title,
			Author:     rec.Author,
			BorrowDate: rec.BorrowDate.Format(dateLayout),
			DueDate:    rec.DueDate.Format(dateLayout),
			IsOverdue:  now.After(rec.DueDate),
		})

		cents, _, _ := s.lateFeeCents(ctx, patronID, rec.BookID)
		totalFeeCents += cents
	}

	history, err := s.repo.ListAllRecords(ctx, patronID)
	if err != nil {
		return errorReport(msgStoreError)
	}

	entries := make([]HistoryEntry, 0, len(history))
	for _, rec := range history {
		entry := HistoryEntry{
			BookID:     rec.BookID,
			Title:      rec.Title,
			Author:     rec.Author,
			BorrowDate: rec.BorrowDate.Format(dateLayout),
			DueDate:    rec.DueDate.Format(dateLayout),
			Status:     "Borrowed",
		}
		if rec.ReturnDate != nil {
			entry.Status = "Returned"
			entry.ReturnDate = rec.ReturnDate.Format(dateLayout)
		}
		entries = append(entries, entry)
	}

	return StatusReport{
		CurrentlyBorrowed: borrowed,
		TotalLateFees:     centsToDollars(totalFeeCents),
		BooksCount:        len(borrowed),
		BorrowingHistory:  entries,
	}
}
