package vurmerr

import "fmt"

// Wire is the flattened, gob-friendly representation of an error crossing
// an RPC boundary: a type tag plus a human message. net/rpc has no concept
// of typed errors (a method's returned error becomes a plain string on the
// client), so every RPC reply struct embeds a *Wire and the real error is
// reconstructed from it after the call returns.
type Wire struct {
	Tag     string
	Message string
}

// Encode flattens err for the wire. If err implements Remotable its Tag and
// message are preserved; otherwise, unless debug is true, the message is
// replaced with a generic one so internal detail never crosses the
// boundary.
func Encode(err error, debug bool) *Wire {
	if err == nil {
		return nil
	}

	if r, ok := err.(Remotable); ok {
		return &Wire{Tag: r.Tag(), Message: r.Error()}
	}

	msg := "internal error"
	if debug {
		msg = err.Error()
	}
	return &Wire{Tag: "Internal", Message: msg}
}

// Decode reconstructs a Go error from a Wire. Known tags are turned back
// into their typed sentinel (stripped of payload fields the wire format
// doesn't carry, since callers only need to compare the error's identity
// via errors.As/errors.Is against the taxonomy types); unknown tags become
// a plain error carrying the message.
func Decode(w *Wire) error {
	if w == nil {
		return nil
	}

	switch w.Tag {
	case "InsufficientResources":
		return &InsufficientResources{}
	case "ReconfigurationError":
		return &ReconfigurationError{}
	case "InvalidClusterName":
		return &InvalidClusterName{}
	case "UnknownDomain":
		return &UnknownDomain{}
	case "ConnectError":
		return &ConnectError{}
	case "CloneFailed":
		return &CloneFailed{}
	default:
		return fmt.Errorf("%s", w.Message)
	}
}

// DecodeWithMessage is like Decode but preserves the original message in
// the returned error's Error() string, for callers (CLI commands) that just
// want to print something useful rather than type-switch on it.
func DecodeWithMessage(w *Wire) error {
	if w == nil {
		return nil
	}
	return fmt.Errorf("%s: %s", w.Tag, w.Message)
}
