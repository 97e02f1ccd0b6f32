package dbusgen

import (
	"errors"
	"fmt"
)

// ErrVariant is the reason reported by a [TypeError] for types that
// contain a variant, which code generators do not marshal.
var ErrVariant = errors.New("variant values are not supported")

// SignatureError is the error returned when a type signature string
// is malformed.
type SignatureError struct {
	// Signature is the signature string that failed to parse.
	Signature string
	// Reason is an explanation of what is wrong with the signature.
	Reason error
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("invalid type signature %q: %s", e.Signature, e.Reason)
}

func (e *SignatureError) Unwrap() error {
	return e.Reason
}

func sigErr(sig string, reason string, args ...any) error {
	return &SignatureError{sig, fmt.Errorf(reason, args...)}
}

// TypeError is the error returned when a well-formed type cannot be
// handled by a code generator.
type TypeError struct {
	// Type is the signature of the type that caused the error.
	Type string
	// Reason is an explanation of why the type isn't supported.
	Reason error
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("cannot generate code for %s: %s", e.Type, e.Reason)
}

func (e *TypeError) Unwrap() error {
	return e.Reason
}
