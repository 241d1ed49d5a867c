package service

import "fmt"

// Error codes classify operation failures for the presentation layer.
const (
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeNotFound        = "NOT_FOUND"
	CodePolicyViolation = "POLICY_VIOLATION"
	CodeStoreError      = "STORE_ERROR"
	CodeGatewayError    = "GATEWAY_ERROR"
)

// DomainError carries a machine-readable code alongside the human-readable
// message shown to patrons and librarians.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewInvalidArgumentError(msg string) error {
	return &DomainError{Code: CodeInvalidArgument, Message: msg}
}

func NewNotFoundError(msg string) error {
	return &DomainError{Code: CodeNotFound, Message: msg}
}

func NewPolicyViolationError(msg string) error {
	return &DomainError{Code: CodePolicyViolation, Message: msg}
}

func NewStoreError(msg string) error {
	return &DomainError{Code: CodeStoreError, Message: msg}
}
