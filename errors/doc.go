// Package errors defines the error taxonomy shared by all refbridge
// components.
//
// Errors fall into three classes:
//
//   - Transient: temporary failures (connection loss, storage
//     unavailability) that a caller may retry.
//   - Invalid: caller mistakes such as scheduling conflicts, missing
//     reference fields, or unregistered types. Retrying without fixing
//     the input will fail again.
//   - Fatal: unrecoverable conditions such as internal-consistency
//     violations or corrupted data.
//
// Components wrap errors with WrapTransient, WrapInvalid, or WrapFatal,
// which produce messages of the form "component.method: action failed: ..."
// and attach the classification so callers can branch on IsTransient,
// IsInvalid, or IsFatal without string matching.
//
// Sentinel errors (ErrSchedulingConflict, ErrUniqueIDNotFound, ...) are
// matched through the chain with Is, so wrapping never hides them.
package errors
