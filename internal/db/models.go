package db

import (
	"time"
)

// LoanPeriod is how long a patron may keep a book before it is due.
const LoanPeriod = 14 * 24 * time.Hour

// Book represents a catalog entry. AvailableCopies moves between 0 and
// TotalCopies through paired borrow/return operations only.
type Book struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Title           string    `gorm:"type:varchar(200);not null;index:idx_books_title" json:"title"`
	Author          string    `gorm:"type:varchar(100);not null;index:idx_books_author" json:"author"`
	ISBN            string    `gorm:"type:varchar(13);not null;uniqueIndex:idx_books_isbn" json:"isbn"`
	TotalCopies     int       `gorm:"not null" json:"total_copies"`
	AvailableCopies int       `gorm:"not null" json:"available_copies"`
	CreatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName specifies the table name for the Book model
func (Book) TableName() string {
	return "books"
}

// BorrowRecord is one loan of one book to one patron. A nil ReturnDate means
// the loan is outstanding; at most one outstanding record may exist per
// (patron, book) pair. Records are never deleted.
type BorrowRecord struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	PatronID   string     `gorm:"type:varchar(6);not null;index:idx_borrow_records_patron" json:"patron_id"`
	BookID     int64      `gorm:"not null;index:idx_borrow_records_book" json:"book_id"`
	BorrowDate time.Time  `gorm:"not null" json:"borrow_date"`
	DueDate    time.Time  `gorm:"not null" json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
	CreatedAt  time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	Book Book `gorm:"foreignKey:BookID" json:"-"`
}

// TableName specifies the table name for the BorrowRecord model
func (BorrowRecord) TableName() string {
	return "borrow_records"
}

// Outstanding reports whether the book is still checked out.
func (r *BorrowRecord) Outstanding() bool {
	return r.ReturnDate == nil
}

// PatronRecord is a borrow record joined with its book's title and author,
// as returned by the patron-facing listing queries.
type PatronRecord struct {
	RecordID   int64      `json:"record_id"`
	BookID     int64      `json:"book_id"`
	Title      string     `json:"title"`
	Author     string     `json:"author"`
	PatronID   string     `json:"patron_id"`
	BorrowDate time.Time  `json:"borrow_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
}
