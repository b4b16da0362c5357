package server

import (
	"errors"
	"fmt"
)

// FrameKind classifies an inbound or outbound frame on the duplex channel.
type FrameKind int

const (
	FrameText FrameKind = iota
	FrameBinary
	FramePing
	FramePong
	FrameClose
)

func (k FrameKind) String() string {
	switch k {
	case FrameText:
		return "text"
	case FrameBinary:
		return "binary"
	case FramePing:
		return "ping"
	case FramePong:
		return "pong"
	case FrameClose:
		return "close"
	default:
		return fmt.Sprintf("frame(%d)", int(k))
	}
}

// Frame is one message or control frame. CloseCode and CloseText are only
// meaningful for FrameClose.
type Frame struct {
	Kind      FrameKind
	Data      []byte
	CloseCode int
	CloseText string
}

// ProtocolError reports a frame kind the session does not accept. It ends
// the session.
type ProtocolError struct {
	Kind FrameKind
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unsupported %s frame", e.Kind)
}

// ErrHeartbeatTimeout ends a session whose client stopped answering.
var ErrHeartbeatTimeout = errors.New("client heartbeat timed out")
