package sentinel

import "errors"

// Sentinel errors for store facts. The contact store returns these (wrapped
// with context) so the reconciler can classify failures without depending on
// driver error types.
//
// - ErrUniqueConflict: insert rejected by the (email, phone, linked_id) index
// - ErrSerialization: transaction aborted by a conflicting interleaving
// - ErrTimeout: transaction exceeded its wait or runtime bound
// - ErrNotFound: row does not exist or is soft-deleted
// - ErrInvalidState: row exists but is in the wrong state for the operation
// - ErrUnavailable: transport or connectivity failure
var (
	ErrUniqueConflict = errors.New("unique conflict")
	ErrSerialization  = errors.New("serialization failure")
	ErrTimeout        = errors.New("timeout")
	ErrNotFound       = errors.New("not found")
	ErrInvalidState   = errors.New("invalid state")
	ErrUnavailable    = errors.New("unavailable")
)
