// Package errors implements the closed error taxonomy surfaced to every
// caller of the core (CLI, MCP shell, or a future network front-end): a
// fixed set of Kinds, each with a known retry/fatal disposition, so
// outer layers never have to guess what a failure means.
package errors

import "fmt"

// Kind is one of the closed set of error categories the core ever returns.
type Kind string

const (
	// KindValidation means the input violated a declared constraint
	// (size, range, enum membership). Never retryable.
	KindValidation Kind = "ValidationError"
	// KindNotFound means an id or path does not exist. Never retryable.
	KindNotFound Kind = "NotFoundError"
	// KindStorage means a vector-store or BM25 I/O failure. Retryable
	// at the caller's discretion; the core only retries idempotent ops.
	KindStorage Kind = "StorageError"
	// KindEmbedding means a model load or inference failure.
	KindEmbedding Kind = "EmbeddingError"
	// KindParser means an unrecoverable grammar failure for a language
	// the caller explicitly requested (not a best-effort parse error,
	// which is absorbed as a diagnostic instead).
	KindParser Kind = "ParserError"
	// KindPoolExhausted means a connection pool had no client available
	// within the acquire timeout. Transient, retryable.
	KindPoolExhausted Kind = "PoolExhausted"
	// KindTimeout means an operation exceeded its deadline. Transient,
	// retryable.
	KindTimeout Kind = "TimeoutError"
	// KindReadOnly means a write was attempted with the read-only flag set.
	KindReadOnly Kind = "ReadOnlyError"
	// KindConflict means a concurrent write invariant was violated.
	// Rare; resolved by retry.
	KindConflict Kind = "ConflictError"
)

// retryableKinds are kinds that a caller may safely retry after backoff.
var retryableKinds = map[Kind]bool{
	KindStorage:       true,
	KindEmbedding:     true,
	KindPoolExhausted: true,
	KindTimeout:       true,
	KindConflict:      true,
}

// CoreError is the structured error type returned from every core operation.
type CoreError struct {
	Kind    Kind
	Message string
	Hint    string
	Cause   error
}

// Error implements the error interface.
func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap supports errors.Is/errors.As over the wrapped cause.
func (e *CoreError) Unwrap() error {
	return e.Cause
}

// Is matches another *CoreError by Kind, so errors.Is(err, errors.New(KindNotFound, "", nil)) works.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Retryable reports whether this error's Kind is ever worth retrying.
func (e *CoreError) Retryable() bool {
	return retryableKinds[e.Kind]
}

// New creates a CoreError of the given kind.
func New(kind Kind, message string, cause error) *CoreError {
	return &CoreError{Kind: kind, Message: message, Cause: cause}
}

// WithHint attaches an actionable suggestion and returns the error for chaining.
func (e *CoreError) WithHint(hint string) *CoreError {
	e.Hint = hint
	return e
}

// Validation is a convenience constructor for KindValidation.
func Validation(message string) *CoreError {
	return New(KindValidation, message, nil)
}

// NotFound is a convenience constructor for KindNotFound.
func NotFound(message string) *CoreError {
	return New(KindNotFound, message, nil)
}

// Storage wraps a cause as a KindStorage error.
func Storage(message string, cause error) *CoreError {
	return New(KindStorage, message, cause)
}

// Embedding wraps a cause as a KindEmbedding error.
func Embedding(message string, cause error) *CoreError {
	return New(KindEmbedding, message, cause)
}

// ReadOnly is a convenience constructor for KindReadOnly.
func ReadOnly(message string) *CoreError {
	return New(KindReadOnly, message, nil)
}

// KindOf extracts the Kind from err, or "" if err is not a *CoreError.
func KindOf(err error) Kind {
	var ce *CoreError
	if as(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsRetryable reports whether err is a *CoreError whose Kind is retryable.
func IsRetryable(err error) bool {
	var ce *CoreError
	if as(err, &ce) {
		return ce.Retryable()
	}
	return false
}

// as is a tiny local shim over errors.As to avoid importing the stdlib
// package under the same name as this one inside this file's public API.
func as(err error, target **CoreError) bool {
	for err != nil {
		if ce, ok := err.(*CoreError); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
