package protocol

import "fmt"

// Gateway error codes, as documented by the Janus core.
const (
	ErrUnauthorized            = 403
	ErrUnauthorizedPlugin      = 405
	ErrUnknown                 = 490
	ErrTransportSpecific       = 450
	ErrMissingRequest          = 452
	ErrUnknownRequest          = 453
	ErrInvalidJSON             = 454
	ErrInvalidJSONObject       = 455
	ErrMissingMandatoryElement = 456
	ErrInvalidRequestPath      = 457
	ErrSessionNotFound         = 458
	ErrHandleNotFound          = 459
	ErrPluginNotFound          = 460
	ErrPluginAttach            = 461
	ErrPluginMessage           = 462
	ErrPluginDetach            = 463
	ErrJsepUnknownType         = 464
	ErrJsepInvalidSDP          = 465
	ErrTrickleInvalidStream    = 466
	ErrInvalidElementType      = 467
	ErrSessionConflict         = 468
	ErrUnexpectedAnswer        = 469
	ErrTokenNotFound           = 470
)

// ProtocolError is a failure reported by the gateway itself: the response
// envelope carried "janus": "error" with a {code, reason} payload.
type ProtocolError struct {
	Code   int
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("janus error %d: %s", e.Code, e.Reason)
}

// TransportError is an HTTP-layer failure: connection refused, timeout, or
// a non-2xx status. Status is zero when the request never completed.
type TransportError struct {
	Op     string // "get" or "post"
	Path   string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Op, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// LifecycleError means a required identifier was zero or absent when a
// dependent operation was attempted: attaching to a session that was never
// created, messaging a destroyed session, or the gateway allocating no id.
type LifecycleError struct {
	Reason string
}

func (e *LifecycleError) Error() string { return e.Reason }

// DecodeError means a response body was not valid JSON or did not match
// the envelope shape.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode envelope: %v", e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }
