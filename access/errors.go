package access

import (
	"errors"
	"fmt"
)

// FailureKind categorizes why an authentication attempt did not succeed
type FailureKind string

const (
	KindConfigurationMissing FailureKind = "configuration_missing"
	KindNetworkError         FailureKind = "network_error"
	KindKeySetEmpty          FailureKind = "keyset_empty"
	KindNoToken              FailureKind = "no_token"
	KindInvalidToken         FailureKind = "invalid_token"
	KindAccountNotFound      FailureKind = "account_not_found"
)

// Failure is the error value returned by every pipeline stage.
// Callers should depend on Kind, never on the wrapped cause.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

// Error implements the error interface
func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Unwrap implements errors.Unwrap
func (f *Failure) Unwrap() error {
	return f.Err
}

// Is matches any Failure of the same kind
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	if !ok {
		return false
	}
	return f.Kind == t.Kind
}

func newFailure(kind FailureKind, message string, err error) *Failure {
	return &Failure{Kind: kind, Message: message, Err: err}
}

var (
	ErrConfigurationMissing = newFailure(KindConfigurationMissing, "configuration missing", nil)
	ErrNetwork              = newFailure(KindNetworkError, "key set fetch failed", nil)
	ErrKeySetEmpty          = newFailure(KindKeySetEmpty, "no usable keys", nil)
	ErrNoToken              = newFailure(KindNoToken, "no token presented", nil)
	ErrInvalidToken         = newFailure(KindInvalidToken, "token rejected", nil)
	ErrAccountNotFound      = newFailure(KindAccountNotFound, "no matching account", nil)
)

// KindOf returns the failure kind carried by err, or "" when err is not a Failure
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}
