// Package repository holds the MySQL-backed stores and the sentinel errors
// they share.  Handlers translate the sentinels into HTTP statuses:
// ErrNotFound to 404, ErrForbidden to 403 and ErrConflict to 409.
package repository

import "errors"

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller asks for a record that belongs
// to another actor.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be applied because of the
// row's current state, such as attaching a payment session to an order
// that already has one.
var ErrConflict = errors.New("conflict")
