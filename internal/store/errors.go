package store

import "errors"

// ErrNotFound is returned when an entry id does not exist in the
// short-term tier, typically because it was already promoted or evicted.
var ErrNotFound = errors.New("entry not found")

// ErrStorageUnavailable is returned when the backing medium rejects a
// write. Read paths degrade to empty results instead of returning it.
var ErrStorageUnavailable = errors.New("storage unavailable")
