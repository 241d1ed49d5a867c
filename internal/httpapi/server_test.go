package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/openshelf/services/circulation/internal/db"
	"github.com/openshelf/services/circulation/internal/payment"
	"github.com/openshelf/services/circulation/internal/repo"
	"github.com/openshelf/services/circulation/internal/service"
	"github.com/openshelf/services/circulation/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gormDB.AutoMigrate(&db.Book{}, &db.BorrowRecord{}))

	log := logger.NewLogger("test", "error")
	r := repo.NewLibraryRepository(&db.DB{DB: gormDB}, log)
	svc := service.NewLibraryService(r, payment.NewSimulatedGateway(""), log)

	// No publisher, no health checker, no metrics: the handlers must
	// tolerate all three being absent.
	server := NewServer(svc, nil, nil, nil, log)
	return server.Router()
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func addBookHTTP(t *testing.T, router *gin.Engine, title, isbn string, copies int) {
	rec := doJSON(t, router, http.MethodPost, "/books", gin.H{
		"title":        title,
		"author":       "Test Author",
		"isbn":         isbn,
		"total_copies": copies,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestAddBookEndpoint(t *testing.T) {
	router := setupRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/books", gin.H{
		"title":        "The Great Gatsby",
		"author":       "F. Scott Fitzgerald",
		"isbn":         "9780743273565",
		"total_copies": 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, `Book "The Great Gatsby" has been successfully added to the catalog.`, body["message"])
}

func TestAddBookEndpointValidation(t *testing.T) {
	router := setupRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/books", gin.H{
		"title":        "",
		"author":       "A",
		"isbn":         "9780743273565",
		"total_copies": 1,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "INVALID_ARGUMENT", body["code"])
	assert.Equal(t, "Title is required.", body["error"])
}

func TestAddBookEndpointDuplicateISBN(t *testing.T) {
	router := setupRouter(t)
	addBookHTTP(t, router, "First", "9780743273565", 1)

	rec := doJSON(t, router, http.MethodPost, "/books", gin.H{
		"title":        "Second",
		"author":       "B",
		"isbn":         "9780743273565",
		"total_copies": 1,
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "POLICY_VIOLATION", body["code"])
}

func TestAddBookEndpointBadJSON(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/books", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAndSearchEndpoints(t *testing.T) {
	router := setupRouter(t)
	addBookHTTP(t, router, "The Great Gatsby", "9780743273565", 1)
	addBookHTTP(t, router, "1984", "9780451524935", 1)

	rec := doJSON(t, router, http.MethodGet, "/books", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["books"], 2)

	rec = doJSON(t, router, http.MethodGet, "/books/search?term=gatsby&type=title", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Len(t, body["books"], 1)

	// Unknown search type comes back empty, not as an error.
	rec = doJSON(t, router, http.MethodGet, "/books/search?term=gatsby&type=publisher", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Len(t, body["books"], 0)
}

func TestBorrowAndReturnEndpoints(t *testing.T) {
	router := setupRouter(t)
	addBookHTTP(t, router, "1984", "9780451524935", 1)

	rec := doJSON(t, router, http.MethodPost, "/loans", gin.H{"patron_id": "123456", "book_id": 1})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Contains(t, body["message"], `Successfully borrowed "1984"`)

	// The only copy is out.
	rec = doJSON(t, router, http.MethodPost, "/loans", gin.H{"patron_id": "654321", "book_id": 1})
	require.Equal(t, http.StatusConflict, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "POLICY_VIOLATION", body["code"])

	rec = doJSON(t, router, http.MethodPost, "/returns", gin.H{"patron_id": "123456", "book_id": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Contains(t, body["message"], "No late fees.")

	// Already returned.
	rec = doJSON(t, router, http.MethodPost, "/returns", gin.H{"patron_id": "123456", "book_id": 1})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBorrowEndpointInvalidPatron(t *testing.T) {
	router := setupRouter(t)
	addBookHTTP(t, router, "1984", "9780451524935", 1)

	rec := doJSON(t, router, http.MethodPost, "/loans", gin.H{"patron_id": "12345", "book_id": 1})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Invalid patron ID. Must be exactly 6 digits.", body["error"])
}

func TestPatronStatusEndpoint(t *testing.T) {
	router := setupRouter(t)
	addBookHTTP(t, router, "1984", "9780451524935", 1)

	rec := doJSON(t, router, http.MethodPost, "/loans", gin.H{"patron_id": "123456", "book_id": 1})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/patrons/123456/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["currently_borrowed"], 1)
	assert.Equal(t, float64(1), body["books_count"])

	rec = doJSON(t, router, http.MethodGet, "/patrons/999999/status", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "Patron not found.", body["error"])

	rec = doJSON(t, router, http.MethodGet, "/patrons/12x456/status", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLateFeeEndpoint(t *testing.T) {
	router := setupRouter(t)
	addBookHTTP(t, router, "1984", "9780451524935", 1)

	rec := doJSON(t, router, http.MethodPost, "/loans", gin.H{"patron_id": "123456", "book_id": 1})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/patrons/123456/fees/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Success", body["status"])
	assert.Equal(t, float64(0), body["fee_amount"])

	// Non-numeric book IDs fall through to the service's own validation.
	rec = doJSON(t, router, http.MethodGet, "/patrons/123456/fees/abc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "Invalid book ID. Must be a positive integer.", body["status"])
}

func TestPaymentEndpoints(t *testing.T) {
	router := setupRouter(t)
	addBookHTTP(t, router, "1984", "9780451524935", 1)

	rec := doJSON(t, router, http.MethodPost, "/loans", gin.H{"patron_id": "123456", "book_id": 1})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Nothing is owed yet, so the payment is a successful no-op.
	rec = doJSON(t, router, http.MethodPost, "/payments", gin.H{"patron_id": "123456", "book_id": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "No late fees to pay for this book.", body["message"])

	rec = doJSON(t, router, http.MethodPost, "/payments", gin.H{"patron_id": "12345", "book_id": 1})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/refunds", gin.H{"transaction_id": "txn_abc", "amount": 2.5})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, true, body["success"])

	rec = doJSON(t, router, http.MethodPost, "/refunds", gin.H{"transaction_id": "bogus", "amount": 2.5})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/payments/txn_abc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "completed", body["status"])
}

func TestHealthzEndpoint(t *testing.T) {
	router := setupRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", rec.Body.String())
}

func TestBorrowLimitOverHTTP(t *testing.T) {
	router := setupRouter(t)
	for i := 1; i <= 7; i++ {
		addBookHTTP(t, router, fmt.Sprintf("Book %d", i), fmt.Sprintf("978000000000%d", i), 1)
	}

	for i := 1; i <= 6; i++ {
		rec := doJSON(t, router, http.MethodPost, "/loans", gin.H{"patron_id": "123456", "book_id": i})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := doJSON(t, router, http.MethodPost, "/loans", gin.H{"patron_id": "123456", "book_id": 7})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "You have reached the maximum borrowing limit of 5 books.", body["error"])
}
