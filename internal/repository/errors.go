// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without depending on driver specific errors.
package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist.
// Callers in the auth core translate it into a generic credentials
// or token failure rather than exposing it.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert or update violates a unique
// constraint (MySQL error 1062), such as a duplicate email or
// username. Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
