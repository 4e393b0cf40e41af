package common

import (
	"errors"
	"fmt"
)

// Kind classifies an AppError so callers can choose a retry or response policy.
type Kind int

const (
	// KindInfrastructure marks upstream or transport failures. It is also the
	// kind reported for errors that were never classified.
	KindInfrastructure Kind = iota
	// KindValidation marks client-correctable business rule violations.
	KindValidation
	// KindNotFound marks entities missing upstream.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	default:
		return "infrastructure"
	}
}

// Stable error codes shared with callers.
const (
	CodeEmptyItems              = "empty-items"
	CodeInvalidAmount           = "invalid-amount"
	CodeInvalidItem             = "invalid-item"
	CodeRefundQuantityExceeded  = "refund-quantity-exceeded"
	CodeInvalidRefundQuantity   = "invalid-refund-quantity"
	CodeOrderItemNotFound       = "order-item-not-found"
	CodeOrderNotPaid            = "order-not-paid"
	CodeMerchantIDMissing       = "merchant-id-missing"
	CodeRefundGatewayNotAllowed = "refund-gateway-not-allowed"
	CodeOrderNotFound           = "order-not-found"
	CodeRefundNotFound          = "refund-not-found"
	CodePaymentNotFound         = "payment-not-found"
	CodeProductNotFound         = "product-not-found"
	CodeUpstreamFailure         = "upstream-failure"
	CodeInternal                = "internal-error"
)

// AppError represents an error with an attached kind and stable code.
type AppError struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
	Details any
}

// Error implements the error interface. The wrapped cause is included so logs
// keep it; use Public for caller-facing output.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Public returns the caller-facing representation without the cause.
func (e *AppError) Public() ErrorBody {
	if e == nil {
		return ErrorBody{}
	}
	return ErrorBody{Code: e.Code, Message: e.Message, Details: e.Details}
}

// WithDetails returns a copy of e carrying details.
func (e *AppError) WithDetails(details any) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// NewAppError constructs an AppError.
func NewAppError(kind Kind, code, message string, err error) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, Err: err}
}

// Validation constructs a client-correctable error.
func Validation(code, message string) *AppError {
	return NewAppError(KindValidation, code, message, nil)
}

// NotFound constructs an error for an entity missing upstream.
func NotFound(code, message string) *AppError {
	return NewAppError(KindNotFound, code, message, nil)
}

// Infrastructure wraps an upstream or transport failure, keeping the cause.
func Infrastructure(code, message string, err error) *AppError {
	return NewAppError(KindInfrastructure, code, message, err)
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// AsAppError returns the AppError in err's chain. Errors that carry none are
// wrapped as internal infrastructure failures.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var target *AppError
	if errors.As(err, &target) {
		return target
	}
	return Infrastructure(CodeInternal, "internal error", err)
}

// KindOf reports the kind of err.
func KindOf(err error) Kind {
	var target *AppError
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindInfrastructure
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	var target *AppError
	return errors.As(err, &target) && target.Kind == kind
}
