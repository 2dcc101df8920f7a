package jsonrpc

import (
	"errors"
	"fmt"
	"strings"
)

// RPCError is the error object returned by the remote side, or a non-200
// HTTP status folded into the same shape.
type RPCError struct {
	Code        int
	Message     string
	Name        string
	DataMessage string
}

func (e *RPCError) Error() string {
	switch {
	case e.DataMessage != "" && e.Name != "":
		return fmt.Sprintf("%s: %s", e.Name, e.DataMessage)
	case e.DataMessage != "":
		return e.DataMessage
	default:
		return e.Message
	}
}

// IsAccessDenied reports whether err is the remote refusing the credentials,
// as opposed to a server fault or an unknown database.
func IsAccessDenied(err error) bool {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	return strings.Contains(rpcErr.Name, "AccessDenied")
}

// IsSessionExpired reports whether err is the remote's way of saying the
// session token is no longer valid.
func IsSessionExpired(err error) bool {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	if strings.Contains(rpcErr.Name, "SessionExpired") {
		return true
	}
	for _, msg := range []string{rpcErr.Message, rpcErr.DataMessage} {
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "session") && strings.Contains(lower, "expired") {
			return true
		}
	}
	return false
}
