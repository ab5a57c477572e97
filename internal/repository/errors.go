// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between failure scenarios
// without string matching. ErrForbidden indicates that the current
// user is not authorized to touch a resource owned by someone else;
// ErrEmailExists signals the unique constraint on users.email fired,
// which is how a racing double submission during implicit signup
// surfaces.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrEmailExists is returned by user creation when the email is
// already registered. The insert that triggered it performed no
// writes; MySQL rejects the row atomically.
var ErrEmailExists = errors.New("email already exists")
