// Package apperror defines the error taxonomy shared by the order and payment
// services. Handlers translate a Kind into an HTTP status; callers compare
// errors with errors.Is, which matches on Code.
package apperror

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthorization
	KindNotFound
	KindConflict
	KindGateway
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindAuthorization:
		return "AuthorizationError"
	case KindNotFound:
		return "NotFoundError"
	case KindConflict:
		return "ConflictError"
	case KindGateway:
		return "GatewayError"
	default:
		return "InternalError"
	}
}

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Withf returns a copy of e with a formatted message.
func (e *Error) Withf(format string, args ...interface{}) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// Wrap returns a copy of e with cause attached.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrEmptyCart           = newErr(KindValidation, "EmptyCart", "cart must contain at least one item")
	ErrInvalidQuantity     = newErr(KindValidation, "InvalidQuantity", "quantity must be greater than zero")
	ErrMissingDeliveryInfo = newErr(KindValidation, "MissingDeliveryInfo", "delivery address and phone number are required")
	ErrInvalidItem         = newErr(KindValidation, "InvalidItem", "menu item not available")
	ErrRestaurantClosed    = newErr(KindValidation, "RestaurantClosed", "restaurant is not accepting orders")
	ErrInvalidAgent        = newErr(KindValidation, "InvalidAgent", "agent cannot be assigned")
	ErrInvalidPhone        = newErr(KindValidation, "InvalidPhone", "invalid phone number format")
	ErrInvalidLocation     = newErr(KindValidation, "InvalidLocation", "latitude or longitude out of range")
	ErrValidation          = newErr(KindValidation, "ValidationError", "invalid request")

	ErrForbidden = newErr(KindAuthorization, "Forbidden", "not authorized to perform this action")

	ErrOrderNotFound      = newErr(KindNotFound, "OrderNotFound", "order not found")
	ErrRestaurantNotFound = newErr(KindNotFound, "RestaurantNotFound", "restaurant not found")
	ErrMenuItemNotFound   = newErr(KindNotFound, "MenuItemNotFound", "menu item not found")
	ErrPaymentNotFound    = newErr(KindNotFound, "PaymentNotFound", "payment not found")
	ErrUserNotFound       = newErr(KindNotFound, "UserNotFound", "user not found")

	ErrInvalidTransition   = newErr(KindConflict, "InvalidTransition", "status transition not allowed")
	ErrNotAvailable        = newErr(KindConflict, "NotAvailable", "order not available for pickup")
	ErrAlreadyPaid         = newErr(KindConflict, "AlreadyPaid", "order is already paid")
	ErrPaymentInProgress   = newErr(KindConflict, "PaymentInProgress", "a payment for this order is already being processed")
	ErrDuplicateRestaurant = newErr(KindConflict, "DuplicateRestaurant", "owner already has a restaurant")
	ErrAdminExists         = newErr(KindConflict, "AdminExists", "an admin account already exists")
	ErrEmailTaken          = newErr(KindConflict, "EmailTaken", "email already registered")
	ErrNotTracking         = newErr(KindConflict, "NotTracking", "order is not in transit")

	ErrGateway = newErr(KindGateway, "GatewayError", "payment gateway error")

	ErrInternal = newErr(KindInternal, "InternalError", "internal error")
)

// As extracts the *Error from err. Anything that is not an *Error is
// reported as ErrInternal wrapping it.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal.Wrap(err)
}
