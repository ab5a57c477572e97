// Package service implements the core ticket sales operations:
// checkout commit, receipt rendering and ticket transfer. Handlers
// translate the sentinel errors defined here into HTTP responses.
package service

import "errors"

// ErrEmptyBasket is returned when a commit is attempted with no
// selected tickets or a zero total. Nothing is persisted.
var ErrEmptyBasket = errors.New("basket is empty")

// ErrDuplicateAccount is returned when implicit signup during
// checkout races with an existing account for the same email. The
// whole commit aborts with zero writes; the basket survives so the
// buyer can sign in and retry.
var ErrDuplicateAccount = errors.New("account already exists")

// ErrMissingContact is returned when an anonymous commit has no
// email or name captured in the session to create the account from.
var ErrMissingContact = errors.New("missing contact details for signup")

// ErrInfoMismatch is returned when the submitted info entries do
// not line up one-to-one with the basket's form-bearing positions.
var ErrInfoMismatch = errors.New("ticket info does not match basket")

// ErrInvalidMethod is returned for unknown payment methods.
var ErrInvalidMethod = errors.New("invalid payment method")

// ErrNotFound is returned when a receipt request resolves to an
// empty ticket set: unpaid tickets, cancelled payments, bad codes,
// or another user's tickets all look the same from outside.
var ErrNotFound = errors.New("not found")

// ErrTransferIneligible is returned when a transfer's preconditions
// fail: not the caller's ticket, unpaid, or a non-transferable
// type. Handlers redirect quietly instead of erroring so ticket
// ownership cannot be probed.
var ErrTransferIneligible = errors.New("ticket is not eligible for transfer")
