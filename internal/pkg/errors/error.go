package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidInput   = errors.New("invalid input")
	ErrConflict       = errors.New("conflict: resource already exists")
	ErrInternal       = errors.New("internal server error")
	ErrSessionExpired = errors.New("session expired or invalid")
	ErrBadRequest     = errors.New("bad request")
	ErrSyncInProgress = errors.New("a sync of this kind is already running")
)

// AuthenticationError is returned when the remote login exchange fails.
// Rejected is true when the remote side refused the credentials.
type AuthenticationError struct {
	Reason   string
	Rejected bool
	Err      error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return "authentication failed: " + e.Reason
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// SessionExpiredError signals that the remote rejected a call because the
// session token is no longer valid.
type SessionExpiredError struct {
	Message string
}

func (e *SessionExpiredError) Error() string {
	if e.Message == "" {
		return ErrSessionExpired.Error()
	}
	return "session expired: " + e.Message
}

func (e *SessionExpiredError) Unwrap() error { return ErrSessionExpired }

// RemoteCallError wraps any RPC-level failure of a model/method call.
type RemoteCallError struct {
	Model   string
	Method  string
	Code    int
	Name    string
	Message string
	Err     error
}

func (e *RemoteCallError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != 0 {
		return fmt.Sprintf("remote call %s.%s failed (code %d): %s", e.Model, e.Method, e.Code, msg)
	}
	return fmt.Sprintf("remote call %s.%s failed: %s", e.Model, e.Method, msg)
}

func (e *RemoteCallError) Unwrap() error { return e.Err }

// PersistenceError wraps a local store write failure for one unit.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s [%s]: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsAuthentication reports whether err is (or wraps) an AuthenticationError.
func IsAuthentication(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}
