package service

import (
	"time"

	"github.com/openshelf/services/circulation/internal/payment"
	"github.com/openshelf/services/circulation/internal/repo"
	"go.uber.org/zap"
)

// Message vocabulary shared between late-fee computation, return processing,
// and status reporting. Return eligibility is gated on the fee calculator's
// status string, so these must stay in sync across operations.
const (
	msgInvalidPatronID = "Invalid patron ID. Must be exactly 6 digits."
	msgInvalidBookID   = "Invalid book ID. Must be a positive integer."
	msgPatronNotFound  = "Patron not found."
	msgBookNotFound    = "Book not found."
	msgNotBorrowed     = "Book is not currently borrowed by the patron."
	msgStoreError      = "Database error occurred."

	statusSuccess = "Success"
	overduePrefix = "Overdue by "
)

// borrowLimit is the outstanding-loan count above which a borrow is refused.
// The comparison is strictly greater-than: a patron already holding six books
// is the first to be blocked. Historical desk behavior; do not tighten to >=
// without coordinating with the front-desk software.
const borrowLimit = 5

// Clock supplies the current time so due dates and fees are testable.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// LibraryService implements the circulation business rules: catalog
// admission, borrow eligibility, late fees, returns, status reporting, and
// the payment flow. It keeps no state of its own; every operation reads what
// it needs from the repository and writes results back immediately.
type LibraryService struct {
	repo    *repo.LibraryRepository
	gateway payment.Gateway
	clock   Clock
	log     *zap.Logger

	// sentinelPatronID, when non-empty, is treated by status reporting as an
	// existing patron even without borrow history. Test scaffolding only.
	sentinelPatronID string
}

// Option configures a LibraryService.
type Option func(*LibraryService)

// WithClock substitutes the time source.
func WithClock(c Clock) Option {
	return func(s *LibraryService) { s.clock = c }
}

// WithSentinelPatron enables the always-exists patron carve-out in status
// reporting. An empty ID disables it (the default).
func WithSentinelPatron(patronID string) Option {
	return func(s *LibraryService) { s.sentinelPatronID = patronID }
}

// NewLibraryService creates the service with its production defaults: a real
// clock and the supplied payment gateway.
func NewLibraryService(r *repo.LibraryRepository, gateway payment.Gateway, log *zap.Logger, opts ...Option) *LibraryService {
	s := &LibraryService{
		repo:    r,
		gateway: gateway,
		clock:   realClock{},
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// validPatronID reports whether the ID is an all-numeric string of exactly
// six characters. Leading zeros are significant, which is why patron IDs are
// strings everywhere.
func validPatronID(patronID string) bool {
	if len(patronID) != 6 {
		return false
	}
	for _, c := range patronID {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func centsToDollars(cents int64) float64 {
	return float64(cents) / 100
}
