package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeConfiguration    = "CONFIGURATION_ERROR"
	ErrCodeUpstream         = "UPSTREAM_ERROR"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrMissingRequiredField  = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidProcessStatus  = NewDomainError(ErrCodeValidation, "invalid process status")
	ErrInvalidIngestionState = NewDomainError(ErrCodeValidation, "invalid ingestion state")
	ErrInvalidChunkType      = NewDomainError(ErrCodeValidation, "invalid chunk type")
	ErrEmptyQuery            = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrEmptyMessage          = NewDomainError(ErrCodeValidation, "message cannot be empty")
)

// Not found errors
var (
	ErrProcessNotFound         = NewDomainError(ErrCodeNotFound, "process not found")
	ErrProcessVersionNotFound  = NewDomainError(ErrCodeNotFound, "process version not found")
	ErrDocumentNotFound        = NewDomainError(ErrCodeNotFound, "document not found")
	ErrIngestionStatusNotFound = NewDomainError(ErrCodeNotFound, "ingestion status not found")
)

// Precondition errors
var (
	ErrProcessNotApproved = NewDomainError(ErrCodeInvalidOperation, "process is not approved")
	ErrDocumentNoContent  = NewDomainError(ErrCodeInvalidOperation, "document has no content to ingest")
)

// Configuration errors
var (
	ErrEmbeddingNotConfigured = NewDomainError(ErrCodeConfiguration, "embedding provider not configured: OPENAI_API_KEY required")
	ErrChatNotConfigured      = NewDomainError(ErrCodeConfiguration, "chat provider not configured: OPENAI_API_KEY required")
)
