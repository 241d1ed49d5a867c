package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openshelf/services/circulation/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrBookNotFound is returned when a book is not found
	ErrBookNotFound = errors.New("book not found")

	// ErrDuplicateISBN is returned when a book with the same ISBN already exists
	ErrDuplicateISBN = errors.New("a book with this ISBN already exists")

	// ErrBookUnavailable is returned when a loan would take available copies below zero
	ErrBookUnavailable = errors.New("book has no available copies")

	// ErrNoOutstandingLoan is returned when a return has no outstanding record to close
	ErrNoOutstandingLoan = errors.New("no outstanding loan for this patron and book")
)

// SearchKind selects which field a catalog search matches against.
type SearchKind string

const (
	SearchByTitle  SearchKind = "title"
	SearchByAuthor SearchKind = "author"
	SearchByISBN   SearchKind = "isbn"
)

// LibraryRepository handles book catalog and borrow record persistence
type LibraryRepository struct {
	db  *db.DB
	log *zap.Logger
}

// NewLibraryRepository creates a new library repository
func NewLibraryRepository(database *db.DB, logger *zap.Logger) *LibraryRepository {
	return &LibraryRepository{
		db:  database,
		log: logger,
	}
}

// GetBook retrieves a book by ID
func (r *LibraryRepository) GetBook(ctx context.Context, bookID int64) (*db.Book, error) {
	var book db.Book
	err := r.db.WithContext(ctx).First(&book, bookID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		r.log.Error("Failed to get book", zap.Int64("book_id", bookID), zap.Error(err))
		return nil, err
	}

	return &book, nil
}

// GetBookByISBN retrieves a book by its ISBN
func (r *LibraryRepository) GetBookByISBN(ctx context.Context, isbn string) (*db.Book, error) {
	var book db.Book
	err := r.db.WithContext(ctx).Where("isbn = ?", isbn).First(&book).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		r.log.Error("Failed to get book by ISBN", zap.String("isbn", isbn), zap.Error(err))
		return nil, err
	}

	return &book, nil
}

// ListBooks returns the whole catalog ordered by title
func (r *LibraryRepository) ListBooks(ctx context.Context) ([]*db.Book, error) {
	var books []*db.Book
	if err := r.db.WithContext(ctx).Order("title").Find(&books).Error; err != nil {
		r.log.Error("Failed to list books", zap.Error(err))
		return nil, err
	}

	return books, nil
}

// CreateBook adds a new book to the catalog. The duplicate-ISBN check is a
// read-before-write; the unique index backs it up at the store level.
func (r *LibraryRepository) CreateBook(ctx context.Context, book *db.Book) error {
	var existing db.Book
	err := r.db.WithContext(ctx).Where("isbn = ?", book.ISBN).First(&existing).Error
	if err == nil {
		return ErrDuplicateISBN
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		r.log.Error("Failed to check ISBN uniqueness", zap.String("isbn", book.ISBN), zap.Error(err))
		return err
	}

	if err := r.db.WithContext(ctx).Create(book).Error; err != nil {
		r.log.Error("Failed to create book", zap.String("isbn", book.ISBN), zap.Error(err))
		return err
	}

	r.log.Info("Book created",
		zap.Int64("book_id", book.ID),
		zap.String("title", book.Title),
		zap.String("isbn", book.ISBN),
	)
	return nil
}

// SearchBooks searches the catalog. Title and author searches are
// case-insensitive substring matches; ISBN search is exact. Results come back
// in title order.
func (r *LibraryRepository) SearchBooks(ctx context.Context, term string, kind SearchKind) ([]*db.Book, error) {
	query := r.db.WithContext(ctx).Model(&db.Book{})

	switch kind {
	case SearchByISBN:
		query = query.Where("isbn = ?", term)
	case SearchByTitle:
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(term)+"%")
	case SearchByAuthor:
		query = query.Where("LOWER(author) LIKE ?", "%"+strings.ToLower(term)+"%")
	default:
		return []*db.Book{}, nil
	}

	books := []*db.Book{}
	if err := query.Order("title").Find(&books).Error; err != nil {
		r.log.Error("Failed to search books", zap.String("kind", string(kind)), zap.Error(err))
		return nil, err
	}

	return books, nil
}

// CountOutstanding returns how many books the patron currently has checked out
func (r *LibraryRepository) CountOutstanding(ctx context.Context, patronID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.BorrowRecord{}).
		Where("patron_id = ? AND return_date IS NULL", patronID).
		Count(&count).Error
	if err != nil {
		r.log.Error("Failed to count outstanding loans", zap.String("patron_id", patronID), zap.Error(err))
		return 0, err
	}

	return int(count), nil
}

// HasAnyRecord reports whether the patron appears in the borrow history at all
func (r *LibraryRepository) HasAnyRecord(ctx context.Context, patronID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.BorrowRecord{}).
		Where("patron_id = ?", patronID).
		Count(&count).Error
	if err != nil {
		r.log.Error("Failed to check patron history", zap.String("patron_id", patronID), zap.Error(err))
		return false, err
	}

	return count > 0, nil
}

// GetOutstandingRecord fetches the open loan for a (patron, book) pair, if any
func (r *LibraryRepository) GetOutstandingRecord(ctx context.Context, patronID string, bookID int64) (*db.BorrowRecord, error) {
	var record db.BorrowRecord
	err := r.db.WithContext(ctx).
		Where("patron_id = ? AND book_id = ? AND return_date IS NULL", patronID, bookID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoOutstandingLoan
		}
		r.log.Error("Failed to get outstanding record",
			zap.String("patron_id", patronID),
			zap.Int64("book_id", bookID),
			zap.Error(err),
		)
		return nil, err
	}

	return &record, nil
}

// CreateLoan records a borrow as one transaction: the availability decrement
// is guarded so it can never go below zero, and the borrow record insert rolls
// back if the decrement did not apply.
func (r *LibraryRepository) CreateLoan(ctx context.Context, patronID string, bookID int64, borrowDate, dueDate time.Time) (*db.BorrowRecord, error) {
	record := &db.BorrowRecord{
		PatronID:   patronID,
		BookID:     bookID,
		BorrowDate: borrowDate,
		DueDate:    dueDate,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&db.Book{}).
			Where("id = ? AND available_copies > 0", bookID).
			Update("available_copies", gorm.Expr("available_copies - 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrBookUnavailable
		}

		return tx.Create(record).Error
	})
	if err != nil {
		if !errors.Is(err, ErrBookUnavailable) {
			r.log.Error("Failed to create loan",
				zap.String("patron_id", patronID),
				zap.Int64("book_id", bookID),
				zap.Error(err),
			)
		}
		return nil, err
	}

	r.log.Info("Loan created",
		zap.Int64("record_id", record.ID),
		zap.String("patron_id", patronID),
		zap.Int64("book_id", bookID),
	)
	return record, nil
}

// CloseLoan records a return as one transaction: it stamps the outstanding
// record's return date and gives the copy back, guarded so availability never
// exceeds total copies. A second return of the same loan finds no outstanding
// record and fails with ErrNoOutstandingLoan.
func (r *LibraryRepository) CloseLoan(ctx context.Context, patronID string, bookID int64, returnDate time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stamped := tx.Model(&db.BorrowRecord{}).
			Where("patron_id = ? AND book_id = ? AND return_date IS NULL", patronID, bookID).
			Update("return_date", returnDate)
		if stamped.Error != nil {
			return stamped.Error
		}
		if stamped.RowsAffected == 0 {
			return ErrNoOutstandingLoan
		}

		restored := tx.Model(&db.Book{}).
			Where("id = ? AND available_copies < total_copies", bookID).
			Update("available_copies", gorm.Expr("available_copies + 1"))
		if restored.Error != nil {
			return restored.Error
		}
		if restored.RowsAffected == 0 {
			return ErrBookNotFound
		}

		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNoOutstandingLoan) {
			r.log.Error("Failed to close loan",
				zap.String("patron_id", patronID),
				zap.Int64("book_id", bookID),
				zap.Error(err),
			)
		}
		return err
	}

	r.log.Info("Loan closed",
		zap.String("patron_id", patronID),
		zap.Int64("book_id", bookID),
	)
	return nil
}

// ListOutstanding returns the patron's open loans joined with book title and
// author, oldest borrow first
func (r *LibraryRepository) ListOutstanding(ctx context.Context, patronID string) ([]*db.PatronRecord, error) {
	return r.listPatronRecords(ctx, patronID, true)
}

// ListAllRecords returns the patron's full borrow history joined with book
// title and author, most recent borrow first
func (r *LibraryRepository) ListAllRecords(ctx context.Context, patronID string) ([]*db.PatronRecord, error) {
	return r.listPatronRecords(ctx, patronID, false)
}

func (r *LibraryRepository) listPatronRecords(ctx context.Context, patronID string, outstandingOnly bool) ([]*db.PatronRecord, error) {
	query := r.db.WithContext(ctx).Model(&db.BorrowRecord{}).
		Select("borrow_records.id AS record_id, borrow_records.book_id, books.title, books.author, borrow_records.patron_id, borrow_records.borrow_date, borrow_records.due_date, borrow_records.return_date").
		Joins("JOIN books ON books.id = borrow_records.book_id").
		Where("borrow_records.patron_id = ?", patronID)

	if outstandingOnly {
		query = query.Where("borrow_records.return_date IS NULL").
			Order("borrow_records.borrow_date")
	} else {
		query = query.Order("borrow_records.borrow_date DESC")
	}

	records := []*db.PatronRecord{}
	if err := query.Scan(&records).Error; err != nil {
		r.log.Error("Failed to list patron records", zap.String("patron_id", patronID), zap.Error(err))
		return nil, err
	}

	return records, nil
}
