package api

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EventHello is the distinguished event the extension sends once after
// connecting to claim the extension slot.
const EventHello = "hello"

// ErrNotConnected is the error string of the reply synthesized when a
// request arrives while no extension is connected.
const ErrNotConnected = "extension not connected"

// FrameKind enumerates the shapes a wire frame can take. Every inbound
// frame is decoded exactly once into one of these variants; routing is
// a single switch over the kind.
type FrameKind int

const (
	// FrameMalformed covers unparseable frames, non-object JSON, and
	// objects matching no recognized shape. Always dropped silently.
	FrameMalformed FrameKind = iota
	// FrameHello is {"event":"hello", ...}; claims the extension slot.
	FrameHello
	// FrameEvent is {"event":<anything else>, ...}; passive, ignored.
	FrameEvent
	// FrameRequest is {"id":<string>, "tool":<string>, ...}.
	FrameRequest
	// FrameReply is {"id":<string>} plus an "ok" or "error" field.
	FrameReply
)

func (k FrameKind) String() string {
	switch k {
	case FrameHello:
		return "hello"
	case FrameEvent:
		return "event"
	case FrameRequest:
		return "request"
	case FrameReply:
		return "reply"
	default:
		return "malformed"
	}
}

// Frame is the decoded form of one wire frame. Raw keeps the original
// bytes so requests and replies are forwarded verbatim.
type Frame struct {
	Kind  FrameKind
	Event string // event name, Hello/Event only
	ID    string // correlation id, Request/Reply only
	Tool  string // tool name, Request only
	Raw   []byte
}

// DecodeFrame classifies one raw text frame.
//
// Shape rules, checked in order:
//  1. an object with an "event" field is Hello when the value is the
//     string "hello", otherwise a passive Event
//  2. an object with string "id" and string "tool" is a Request
//  3. an object with string "id" and an "ok" or "error" field is a Reply
//  4. everything else is Malformed
//
// Correlation ids are strings on the wire; an object with a non-string
// id matches no shape and falls through to Malformed.
func DecodeFrame(raw []byte) Frame {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return Frame{Kind: FrameMalformed, Raw: raw}
	}

	if ev, present := obj["event"]; present {
		name, _ := ev.(string)
		if name == EventHello {
			return Frame{Kind: FrameHello, Event: name, Raw: raw}
		}
		return Frame{Kind: FrameEvent, Event: name, Raw: raw}
	}

	id, hasID := obj["id"].(string)
	tool, hasTool := obj["tool"].(string)
	_, hasOK := obj["ok"]
	_, hasErr := obj["error"]

	switch {
	case hasID && hasTool:
		return Frame{Kind: FrameRequest, ID: id, Tool: tool, Raw: raw}
	case hasID && (hasOK || hasErr):
		return Frame{Kind: FrameReply, ID: id, Raw: raw}
	default:
		return Frame{Kind: FrameMalformed, Raw: raw}
	}
}

// Request is the wire shape controllers send.
type Request struct {
	ID   string `json:"id"`
	Tool string `json:"tool"`
	Args any    `json:"args"`
}

// ReplyEnvelope is the outcome portion of a reply frame. Extension
// replies usually carry additional payload fields alongside these;
// callers that need them work on the raw bytes.
type ReplyEnvelope struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// NotConnectedReply builds the reply synthesized for a request that
// arrives while the extension slot is empty.
func NotConnectedReply(id string) []byte {
	data, _ := json.Marshal(ReplyEnvelope{ID: id, OK: false, Error: ErrNotConnected})
	return data
}
