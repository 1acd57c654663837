package domain

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// ErrorCode is the namespace of engine failures. Every error surfaced by the
// inscriber pipeline carries exactly one code from the taxonomy below.
type ErrorCode struct {
	Code uint16
	Name string
}

var (
	// SchemaError: malformed instruction document. Non-retryable, the caller
	// must fix the input.
	SchemaError = ErrorCode{1, "schema_error"}
	// AuthenticationMismatch: origin and destination differ on a privileged
	// instruction. Fatal, never retried, never silently corrected.
	AuthenticationMismatch = ErrorCode{2, "authentication_mismatch"}
	// PayloadTooLarge: the encoded envelope exceeds the size ceiling.
	PayloadTooLarge = ErrorCode{3, "payload_too_large"}
	// EncodingError: the instruction has unrepresentable field values.
	EncodingError = ErrorCode{4, "encoding_error"}
	// InsufficientFunds: no subset of spendable outputs covers the target.
	InsufficientFunds = ErrorCode{5, "insufficient_funds"}
	// FeeMismatch: actual transaction sizes diverged from the estimate beyond
	// tolerance even after one internal rebuild.
	FeeMismatch = ErrorCode{6, "fee_mismatch"}
	// SigningError: a required key could not be obtained from the wallet.
	SigningError = ErrorCode{7, "signing_error"}
	// BroadcastError: a transaction was rejected by the broadcast
	// collaborator. Metadata carries whatever is needed for manual recovery.
	BroadcastError = ErrorCode{8, "broadcast_error"}
)

// New creates an error with the given code and message.
func (c ErrorCode) New(msg string, args ...any) *Error {
	return &Error{code: c, cause: fmt.Errorf(msg, args...)}
}

// Wrap creates an error with the given code and cause.
func (c ErrorCode) Wrap(cause error) *Error {
	return &Error{code: c, cause: cause}
}

func (c ErrorCode) String() string {
	return fmt.Sprintf("%s (%d)", c.Name, c.Code)
}

// Error is a failure tagged with a taxonomy code and optional recovery
// metadata.
type Error struct {
	code     ErrorCode
	cause    error
	metadata map[string]string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.code.Name, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Code() ErrorCode { return e.code }

// WithMetadata attaches recovery details, e.g. the commit txid and the
// pending reveal hex after a partial broadcast failure.
func (e *Error) WithMetadata(md map[string]string) *Error {
	if e.metadata == nil {
		e.metadata = make(map[string]string)
	}
	for k, v := range md {
		e.metadata[k] = v
	}
	return e
}

func (e *Error) Metadata() map[string]string { return e.metadata }

func (e *Error) Log() *log.Entry {
	return log.WithField("name", e.code.Name).
		WithField("code", e.code.Code).
		WithField("metadata", e.metadata)
}

// Is lets errors.Is match two tagged errors by code.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.code == other.code
	}
	return false
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code ErrorCode) bool {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.code == code
	}
	return false
}
