package db

import (
	"gorm.io/gorm"
)

// RunMigrations runs all database migrations
func RunMigrations(db *DB) error {
	if err := db.AutoMigrate(&Book{}, &BorrowRecord{}); err != nil {
		return err
	}

	return createIndexes(db.DB)
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Partial index for the hot outstanding-loan lookups
		`CREATE INDEX IF NOT EXISTS idx_borrow_records_outstanding ON borrow_records(patron_id, book_id) WHERE return_date IS NULL`,

		// History listings scan per patron in reverse borrow order
		`CREATE INDEX IF NOT EXISTS idx_borrow_records_patron_borrowed ON borrow_records(patron_id, borrow_date DESC)`,
	}

	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			return err
		}
	}

	return nil
}
