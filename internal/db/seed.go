package db

import (
	"time"

	"gorm.io/gorm"
)

// SeedSampleData loads a small demo catalog when the books table is empty.
// One copy of 1984 is pre-checked-out to patron 123456 so the demo environment
// has an outstanding loan to play with.
func SeedSampleData(db *DB) error {
	var count int64
	if err := db.Model(&Book{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	books := []Book{
		{Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", ISBN: "9780743273565", TotalCopies: 3, AvailableCopies: 3},
		{Title: "To Kill a Mockingbird", Author: "Harper Lee", ISBN: "9780061120084", TotalCopies: 2, AvailableCopies: 2},
		{Title: "1984", Author: "George Orwell", ISBN: "9780451524935", TotalCopies: 1, AvailableCopies: 0},
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for i := range books {
			if err := tx.Create(&books[i]).Error; err != nil {
				return err
			}
		}

		borrowed := time.Now().Add(-5 * 24 * time.Hour)
		record := BorrowRecord{
			PatronID:   "123456",
			BookID:     books[2].ID,
			BorrowDate: borrowed,
			DueDate:    borrowed.Add(LoanPeriod),
		}
		return tx.Create(&record).Error
	})
}
