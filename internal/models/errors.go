package models

import "errors"

// ErrResyncRequired is not a failure: it is the protocol signal telling a
// client that its sync cursor can no longer be satisfied from the retained
// event log and a full snapshot is needed.
var ErrResyncRequired = errors.New("sync cursor is stale, full resync required")

// ErrNotFound is returned when a requested entity does not exist or is not
// visible to the requesting user. Visibility failures are indistinguishable
// from absence on purpose.
var ErrNotFound = errors.New("not found")
