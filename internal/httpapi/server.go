package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openshelf/services/circulation/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// EventPublisher is the slice of the events publisher the HTTP layer uses.
// A nil publisher disables event publishing.
type EventPublisher interface {
	PublishBookCreated(ctx context.Context, bookID int64, title, author, isbn string, totalCopies int) error
	PublishLoanCreated(ctx context.Context, patronID string, bookID int64, dueDate time.Time) error
	PublishLoanReturned(ctx context.Context, patronID string, bookID int64, lateFeeCents int64) error
	PublishPaymentCaptured(ctx context.Context, patronID, transactionID string, amountCents int64) error
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Ping() error
}

// Server is the thin HTTP glue over the library service. All business rules
// live in the service; handlers only bind, delegate, and translate outcomes.
type Server struct {
	svc       *service.LibraryService
	publisher EventPublisher
	health    HealthChecker
	metrics   *Metrics
	log       *zap.Logger
}

// NewServer creates the HTTP server glue.
func NewServer(svc *service.LibraryService, publisher EventPublisher, health HealthChecker, metrics *Metrics, log *zap.Logger) *Server {
	return &Server{
		svc:       svc,
		publisher: publisher,
		health:    health,
		metrics:   metrics,
		log:       log,
	}
}

// Router builds the Gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.POST("/books", s.addBook)
	router.GET("/books", s.listBooks)
	router.GET("/books/search", s.searchBooks)

	router.POST("/loans", s.borrowBook)
	router.POST("/returns", s.returnBook)

	router.GET("/patrons/:patronID/status", s.patronStatus)
	router.GET("/patrons/:patronID/fees/:bookID", s.lateFee)

	router.POST("/payments", s.payLateFees)
	router.POST("/refunds", s.refund)
	router.GET("/payments/:transactionID", s.verifyPayment)

	router.GET("/healthz", s.healthz)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})))

	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if s.metrics != nil {
			s.metrics.RequestsTotal.WithLabelValues(c.Request.Method, c.FullPath(), strconv.Itoa(status)).Inc()
		}
		s.log.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// writeError maps service error codes onto HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	var domainErr *service.DomainError
	if !errors.As(err, &domainErr) {
		c.JSON(http.StatusInternalServerError, errorBody{Code: "INTERNAL", Error: "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch domainErr.Code {
	case service.CodeInvalidArgument:
		status = http.StatusBadRequest
	case service.CodeNotFound:
		status = http.StatusNotFound
	case service.CodePolicyViolation:
		status = http.StatusConflict
	case service.CodeStoreError:
		status = http.StatusInternalServerError
	case service.CodeGatewayError:
		status = http.StatusBadGateway
	}

	c.JSON(status, errorBody{Code: domainErr.Code, Error: domainErr.Message})
}

// publishAsync fires an event without failing the request when the broker is
// down or slow.
func (s *Server) publishAsync(publish func(ctx context.Context) error) {
	if s.publisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := publish(ctx); err != nil {
			s.log.Error("Failed to publish event", zap.Error(err))
		}
	}()
}

// ---------- catalog ----------

type addBookRequest struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	ISBN        string `json:"isbn"`
	TotalCopies int    `json:"total_copies"`
}

func (s *Server) addBook(c *gin.Context) {
	var req addBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: service.CodeInvalidArgument, Error: "invalid json body"})
		return
	}

	result, err := s.svc.AddBook(c.Request.Context(), req.Title, req.Author, req.ISBN, req.TotalCopies)
	if err != nil {
		s.writeError(c, err)
		return
	}

	if s.metrics != nil {
		s.metrics.BooksAdded.Inc()
	}
	book := result.Book
	s.publishAsync(func(ctx context.Context) error {
		return s.publisher.PublishBookCreated(ctx, book.ID, book.Title, book.Author, book.ISBN, book.TotalCopies)
	})

	c.JSON(http.StatusCreated, result)
}

func (s *Server) listBooks(c *gin.Context) {
	books, err := s.svc.ListBooks(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"books": books})
}

func (s *Server) searchBooks(c *gin.Context) {
	books, err := s.svc.SearchBooks(c.Request.Context(), c.Query("term"), c.Query("type"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"books": books})
}

// ---------- circulation ----------

type loanRequest struct {
	PatronID string `json:"patron_id"`
	BookID   int64  `json:"book_id"`
}

func (s *Server) borrowBook(c *gin.Context) {
	var req loanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: service.CodeInvalidArgument, Error: "invalid json body"})
		return
	}

	result, err := s.svc.BorrowBook(c.Request.Context(), req.PatronID, req.BookID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	if s.metrics != nil {
		s.metrics.LoansCreated.Inc()
	}
	s.publishAsync(func(ctx context.Context) error {
		return s.publisher.PublishLoanCreated(ctx, req.PatronID, req.BookID, result.DueDate)
	})

	c.JSON(http.StatusCreated, result)
}

func (s *Server) returnBook(c *gin.Context) {
	var req loanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: service.CodeInvalidArgument, Error: "invalid json body"})
		return
	}

	result, err := s.svc.ReturnBook(c.Request.Context(), req.PatronID, req.BookID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	if s.metrics != nil {
		s.metrics.LoansReturned.Inc()
		s.metrics.LateFeeCentsOwed.Add(float64(result.FeeCents))
	}
	s.publishAsync(func(ctx context.Context) error {
		return s.publisher.PublishLoanReturned(ctx, req.PatronID, req.BookID, result.FeeCents)
	})

	c.JSON(http.StatusOK, result)
}

// ---------- patrons ----------

func (s *Server) patronStatus(c *gin.Context) {
	report := s.svc.PatronStatus(c.Request.Context(), c.Param("patronID"))
	if report.Error != "" {
		status := http.StatusBadRequest
		if report.Error == "Patron not found." {
			status = http.StatusNotFound
		}
		c.JSON(status, report)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) lateFee(c *gin.Context) {
	bookID, err := strconv.ParseInt(c.Param("bookID"), 10, 64)
	if err != nil {
		bookID = 0 // let the service produce its invalid-book-id status
	}

	result := s.svc.CalculateLateFee(c.Request.Context(), c.Param("patronID"), bookID)
	c.JSON(http.StatusOK, result)
}

// ---------- payments ----------

type paymentRequest struct {
	PatronID string `json:"patron_id"`
	BookID   int64  `json:"book_id"`
}

func (s *Server) payLateFees(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: service.CodeInvalidArgument, Error: "invalid json body"})
		return
	}

	result := s.svc.PayLateFees(c.Request.Context(), req.PatronID, req.BookID, nil)
	if !result.Success {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}

	if result.TransactionID != "" {
		if s.metrics != nil {
			s.metrics.LateFeeCentsPaid.Add(float64(result.AmountCents))
		}
		s.publishAsync(func(ctx context.Context) error {
			return s.publisher.PublishPaymentCaptured(ctx, req.PatronID, result.TransactionID, result.AmountCents)
		})
	}

	c.JSON(http.StatusOK, result)
}

type refundRequest struct {
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
}

func (s *Server) refund(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: service.CodeInvalidArgument, Error: "invalid json body"})
		return
	}

	amountCents := int64(req.Amount*100 + 0.5)
	result := s.svc.RefundLateFeePayment(req.TransactionID, amountCents, nil)
	if !result.Success {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) verifyPayment(c *gin.Context) {
	status, err := s.svc.VerifyPayment(c.Param("transactionID"), nil)
	if err != nil {
		c.JSON(http.StatusBadGateway, errorBody{Code: service.CodeGatewayError, Error: "payment gateway unavailable"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// ---------- health ----------

func (s *Server) healthz(c *gin.Context) {
	if s.health != nil {
		if err := s.health.Ping(); err != nil {
			s.log.Error("Database health check failed", zap.Error(err))
			c.String(http.StatusServiceUnavailable, "unhealthy: database connection failed")
			return
		}
	}
	c.String(http.StatusOK, "healthy")
}
