// Package repository defines the ledger store contract the core is written
// against and its implementations. The sentinel values below let the
// service layer tell a missing row from a lost race.
package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist. Handlers
// translate it into a 404.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a guarded write finds the row no longer in
// the state the caller read it in, or a uniqueness rule is hit. The losing
// write changes nothing.
var ErrConflict = errors.New("conflict")
