package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/pinoerp/wms-backend/pkg/i18n"
)

// Standard error types
var (
	ErrNotFound         = errors.New("resource not found")
	ErrBadRequest       = errors.New("bad request")
	ErrConflict         = errors.New("resource conflict")
	ErrInternal         = errors.New("internal server error")
	ErrValidation       = errors.New("validation error")
	ErrEmptyOrder       = errors.New("order has no items")
	ErrExcess           = errors.New("fulfilled quantity would exceed requested")
	ErrUnknownBarcode   = errors.New("barcode not recognized")
	ErrDuplicateNumber  = errors.New("order number already exists")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrInvalidState     = errors.New("invalid state transition")
	ErrNoValidOrders    = errors.New("no orders eligible for batching")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	MessageKey string            `json:"-"` // i18n key for localization
	Params     map[string]string `json:"-"` // Parameters for i18n interpolation
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Localize returns a localized version of the error message
func (e *AppError) Localize(ctx context.Context) string {
	if e.MessageKey == "" {
		return e.Message
	}
	return i18n.TFromContext(ctx, e.MessageKey, e.Params)
}

// LocalizeWith returns a localized version using a specific localizer
func (e *AppError) LocalizeWith(l *i18n.Localizer) string {
	if e.MessageKey == "" {
		return e.Message
	}
	return l.T(e.MessageKey, e.Params)
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewWithKey creates a new AppError with an i18n key
func NewWithKey(code string, messageKey string, statusCode int, params ...map[string]string) *AppError {
	var p map[string]string
	if len(params) > 0 {
		p = params[0]
	}
	return &AppError{
		Code:       code,
		Message:    i18n.T(messageKey, p), // Default message in English
		MessageKey: messageKey,
		Params:     p,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		MessageKey: "errors.not_found",
		Params:     map[string]string{"resource": resource},
		StatusCode: http.StatusNotFound,
	}
}

// NotFoundWithKey creates a not found error with localized resource name
func NotFoundWithKey(resourceKey string) *AppError {
	resourceName := i18n.T("resources." + resourceKey)
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resourceName),
		MessageKey: "errors.not_found",
		Params:     map[string]string{"resource": resourceName},
		StatusCode: http.StatusNotFound,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		MessageKey: "errors.bad_request",
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		MessageKey: "errors.conflict",
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		MessageKey: "errors.internal",
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		MessageKey: "errors.validation_failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// Domain error constructors

// EmptyOrder signals that an order without items attempted to leave the
// pending state or be finalized.
func EmptyOrder(orderNumber string) *AppError {
	return &AppError{
		Err:        ErrEmptyOrder,
		Code:       "EMPTY_ORDER",
		Message:    fmt.Sprintf("order %s has no items", orderNumber),
		MessageKey: "errors.empty_order",
		Params:     map[string]string{"order": orderNumber},
		StatusCode: http.StatusConflict,
		Details:    map[string]string{"order_number": orderNumber},
	}
}

// Excess signals that a scan would push an item's fulfilled quantity past
// its requested quantity. It carries the offending sku and both quantities.
func Excess(sku string, fulfilled, requested int) *AppError {
	return &AppError{
		Err:        ErrExcess,
		Code:       "EXCESS",
		Message:    fmt.Sprintf("sku %s already complete (%d of %d)", sku, fulfilled, requested),
		MessageKey: "errors.excess",
		Params:     map[string]string{"sku": sku},
		StatusCode: http.StatusConflict,
		Details: map[string]string{
			"sku":       sku,
			"fulfilled": strconv.Itoa(fulfilled),
			"requested": strconv.Itoa(requested),
		},
	}
}

// UnknownBarcode signals a scanned code that resolved to nothing. The raw
// code is carried so the client can offer to link it.
func UnknownBarcode(code string) *AppError {
	return &AppError{
		Err:        ErrUnknownBarcode,
		Code:       "UNKNOWN_BARCODE",
		Message:    fmt.Sprintf("code %s does not match any item", code),
		MessageKey: "errors.unknown_barcode",
		Params:     map[string]string{"code": code},
		StatusCode: http.StatusNotFound,
		Details:    map[string]string{"scanned_code": code},
	}
}

func DuplicateNumber(number string) *AppError {
	return &AppError{
		Err:        ErrDuplicateNumber,
		Code:       "DUPLICATE_NUMBER",
		Message:    fmt.Sprintf("order number %s already exists", number),
		MessageKey: "errors.duplicate_number",
		Params:     map[string]string{"number": number},
		StatusCode: http.StatusConflict,
		Details:    map[string]string{"order_number": number},
	}
}

func AlreadyProcessed(what string) *AppError {
	return &AppError{
		Err:        ErrAlreadyProcessed,
		Code:       "ALREADY_PROCESSED",
		Message:    fmt.Sprintf("%s was already processed", what),
		MessageKey: "errors.already_processed",
		Params:     map[string]string{"resource": what},
		StatusCode: http.StatusConflict,
	}
}

// InvalidStateTransition signals a lifecycle move the state machine does
// not allow for the order's channel and current status.
func InvalidStateTransition(from, to string) *AppError {
	return &AppError{
		Err:        ErrInvalidState,
		Code:       "INVALID_STATE_TRANSITION",
		Message:    fmt.Sprintf("cannot move order from %s to %s", from, to),
		MessageKey: "errors.invalid_state_transition",
		Params:     map[string]string{"from": from, "to": to},
		StatusCode: http.StatusConflict,
		Details:    map[string]string{"from": from, "to": to},
	}
}

func NoValidOrders() *AppError {
	return &AppError{
		Err:        ErrNoValidOrders,
		Code:       "NO_VALID_ORDERS",
		Message:    "no orders eligible for batching",
		MessageKey: "errors.no_valid_orders",
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
