package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openshelf/services/circulation/internal/db"
	"github.com/openshelf/services/circulation/internal/repo"
	"go.uber.org/zap"
)

// AddBookResult reports a successful catalog admission.
type AddBookResult struct {
	Message string   `json:"message"`
	Book    *db.Book `json:"book"`
}

// AddBook validates and admits a new book to the catalog.
func (s *LibraryService) AddBook(ctx context.Context, title, author, isbn string, totalCopies int) (*AddBookResult, error) {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)

	if title == "" {
		return nil, NewInvalidArgumentError("Title is required.")
	}
	if len(title) > 200 {
		return nil, NewInvalidArgumentError("Title must be less than 200 characters.")
	}
	if author == "" {
		return nil, NewInvalidArgumentError("Author is required.")
	}
	if len(author) > 100 {
		return nil, NewInvalidArgumentError("Author must be less than 100 characters.")
	}
	if len(isbn) != 13 {
		return nil, NewInvalidArgumentError("ISBN must be exactly 13 digits.")
	}
	if totalCopies <= 0 {
		return nil, NewInvalidArgumentError("Total copies must be a positive integer.")
	}

	// Read-before-write duplicate check; the unique index is the backstop.
	_, err := s.repo.GetBookByISBN(ctx, isbn)
	if err == nil {
		return nil, NewPolicyViolationError("A book with this ISBN already exists.")
	}
	if !errors.Is(err, repo.ErrBookNotFound) {
		return nil, NewStoreError("Database error occurred while adding the book.")
	}

	book := &db.Book{
		Title:           title,
		Author:          author,
		ISBN:            isbn,
		TotalCopies:     totalCopies,
		AvailableCopies: totalCopies,
	}
	if err := s.repo.CreateBook(ctx, book); err != nil {
		if errors.Is(err, repo.ErrDuplicateISBN) {
			return nil, NewPolicyViolationError("A book with this ISBN already exists.")
		}
		return nil, NewStoreError("Database error occurred while adding the book.")
	}

	return &AddBookResult{
		Message: fmt.Sprintf("Book %q has been successfully added to the catalog.", title),
		Book:    book,
	}, nil
}

// ListBooks returns the whole catalog in title order.
func (s *LibraryService) ListBooks(ctx context.Context) ([]*db.Book, error) {
	books, err := s.repo.ListBooks(ctx)
	if err != nil {
		return nil, NewStoreError("Database error occurred while listing books.")
	}
	return books, nil
}

// SearchBooks searches the catalog. An empty or whitespace-only term, or an
// unknown search kind, yields an empty result rather than an error.
func (s *LibraryService) SearchBooks(ctx context.Context, term, kind string) ([]*db.Book, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []*db.Book{}, nil
	}

	switch repo.SearchKind(kind) {
	case repo.SearchByTitle, repo.SearchByAuthor, repo.SearchByISBN:
	default:
		return []*db.Book{}, nil
	}

	books, err := s.repo.SearchBooks(ctx, term, repo.SearchKind(kind))
	if err != nil {
		s.log.Error("Catalog search failed", zap.String("kind", kind), zap.Error(err))
		return nil, NewStoreError("Database error occurred while searching books.")
	}
	return books, nil
}
