// Package protocol defines the wire-level message shapes exchanged with a
// Janus gateway over its HTTP transport: the request/response envelope, the
// operation verbs carried in the "janus" field, the JSEP negotiation payload
// and the trickle ICE candidate object. The package is pure data; it
// performs no I/O.
package protocol

import "encoding/json"

// Opcode is the control verb carried in the "janus" field of every message.
type Opcode string

// Request verbs.
const (
	OpCreate    Opcode = "create"
	OpAttach    Opcode = "attach"
	OpDestroy   Opcode = "destroy"
	OpDetach    Opcode = "detach"
	OpMessage   Opcode = "message"
	OpTrickle   Opcode = "trickle"
	OpKeepalive Opcode = "keepalive"
	OpInfo      Opcode = "info"
)

// Response and event verbs.
const (
	OpSuccess    Opcode = "success"
	OpError      Opcode = "error"
	OpEvent      Opcode = "event"
	OpAck        Opcode = "ack"
	OpHint       Opcode = "hint"
	OpServerInfo Opcode = "server_info"
	OpWebRTCUp   Opcode = "webrtcup"
	OpMedia      Opcode = "media"
	OpSlowLink   Opcode = "slowlink"
	OpHangup     Opcode = "hangup"
	OpDetached   Opcode = "detached"
	OpTimeout    Opcode = "timeout"
)

// OpUnknown is the sentinel for verbs this client does not know about. The
// gateway is free to introduce new ones; decoding must not fail on them.
const OpUnknown Opcode = "unknown"

var opcodes = map[string]Opcode{}

func init() {
	for _, op := range []Opcode{
		OpCreate, OpAttach, OpDestroy, OpDetach, OpMessage, OpTrickle,
		OpKeepalive, OpInfo, OpSuccess, OpError, OpEvent, OpAck, OpHint,
		OpServerInfo, OpWebRTCUp, OpMedia, OpSlowLink, OpHangup,
		OpDetached, OpTimeout,
	} {
		opcodes[string(op)] = op
	}
}

// UnmarshalJSON decodes an opcode from its wire string. Unrecognized verbs
// decode to OpUnknown instead of failing.
func (o *Opcode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if op, ok := opcodes[s]; ok {
		*o = op
	} else {
		*o = OpUnknown
	}
	return nil
}

// Body is a schema-less plugin-defined payload. Its shape is determined by
// the target plugin and the "request" key it carries; the protocol layer
// passes it through untouched.
type Body map[string]any

// Jsep is the SDP negotiation payload embedded in messages and events.
type Jsep struct {
	Type    string `json:"type,omitempty"` // "offer" or "answer"
	SDP     string `json:"sdp,omitempty"`
	Trickle *bool  `json:"trickle,omitempty"`
}

// TrickleEnabled reports whether trickle ICE is in effect. Trickle defaults
// to enabled unless the payload explicitly negotiates it off.
func (j *Jsep) TrickleEnabled() bool {
	return j == nil || j.Trickle == nil || *j.Trickle
}

// Candidate is a trickle ICE candidate. The zero-value candidate with
// Completed set signals end-of-candidates.
type Candidate struct {
	Candidate     string `json:"candidate,omitempty"`
	SDPMid        string `json:"sdpMid,omitempty"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex"`
	Completed     bool   `json:"completed,omitempty"`
}

// Request is the outbound envelope POSTed to the gateway.
type Request struct {
	Janus       Opcode     `json:"janus"`
	Transaction string     `json:"transaction,omitempty"`
	Plugin      string     `json:"plugin,omitempty"`
	Body        Body       `json:"body,omitempty"`
	Candidate   *Candidate `json:"candidate,omitempty"`
	Jsep        *Jsep      `json:"jsep,omitempty"`
}

// IDData is the allocation payload returned by create and attach.
type IDData struct {
	ID uint64 `json:"id"`
}

// ErrorData is the gateway's {code, reason} failure payload.
type ErrorData struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// PluginData wraps a plugin's schema-less event payload together with the
// plugin that produced it.
type PluginData struct {
	Plugin string `json:"plugin"`
	Data   Body   `json:"data"`
}

// Event is the inbound envelope, used both for direct HTTP responses and
// for items delivered on the long-poll channel. Sender carries the handle
// an event pertains to; it is zero for session-scoped messages.
type Event struct {
	Janus       Opcode      `json:"janus"`
	Transaction string      `json:"transaction,omitempty"`
	SessionID   uint64      `json:"session_id,omitempty"`
	Sender      uint64      `json:"sender,omitempty"`
	Data        *IDData     `json:"data,omitempty"`
	Error       *ErrorData  `json:"error,omitempty"`
	PluginData  *PluginData `json:"plugindata,omitempty"`
	Candidate   *Candidate  `json:"candidate,omitempty"`
	Jsep        *Jsep       `json:"jsep,omitempty"`
}

// IsKeepalive reports whether the event is a liveness no-op that must be
// filtered before delivery to subscribers.
func (e *Event) IsKeepalive() bool {
	return e.Janus == OpKeepalive
}

// Err returns the gateway failure carried by the event, or nil if the event
// is not an error envelope.
func (e *Event) Err() error {
	if e.Janus != OpError {
		return nil
	}
	if e.Error == nil {
		return &ProtocolError{Code: ErrUnknown, Reason: "error envelope without error payload"}
	}
	return &ProtocolError{Code: e.Error.Code, Reason: e.Error.Reason}
}
