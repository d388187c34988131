// Package store persists the notified-offer ledger, convocatoria snapshots
// and notification records.
package store

import "errors"

// ErrConflict is returned when a write violates a uniqueness invariant, e.g.
// recording a ledger entry for an offer id that is already recorded. It
// signals a race between concurrent runs, never a normal condition.
var ErrConflict = errors.New("record already exists")

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")
