package server

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is a duplex connection seen as a stream of frames.
type Transport interface {
	// Receive delivers inbound frames, control frames included, to out until
	// the connection fails or done is closed. It returns the read error.
	Receive(out chan<- Frame, done <-chan struct{}) error
	// Send writes one frame. It is only called from the session loop.
	Send(f Frame) error
	// Close releases the connection without a close handshake.
	Close() error
}

// WebSocketTransport adapts a gorilla/websocket connection. Control frames
// are surfaced through the connection's handlers instead of being answered
// automatically, so the session sees every ping, pong and close.
type WebSocketTransport struct {
	conn      *websocket.Conn
	writeWait time.Duration
}

// NewWebSocketTransport wraps conn. maxMessageBytes <= 0 leaves the read
// limit unset.
func NewWebSocketTransport(conn *websocket.Conn, writeWait time.Duration, maxMessageBytes int64) *WebSocketTransport {
	if maxMessageBytes > 0 {
		conn.SetReadLimit(maxMessageBytes)
	}
	return &WebSocketTransport{conn: conn, writeWait: writeWait}
}

// Receive implements Transport. Handlers run on the calling goroutine from
// inside ReadMessage.
func (t *WebSocketTransport) Receive(out chan<- Frame, done <-chan struct{}) error {
	deliver := func(f Frame) error {
		select {
		case out <- f:
			return nil
		case <-done:
			return errSessionDone
		}
	}
	t.conn.SetPingHandler(func(data string) error {
		return deliver(Frame{Kind: FramePing, Data: []byte(data)})
	})
	t.conn.SetPongHandler(func(data string) error {
		return deliver(Frame{Kind: FramePong, Data: []byte(data)})
	})
	t.conn.SetCloseHandler(func(code int, text string) error {
		return deliver(Frame{Kind: FrameClose, CloseCode: code, CloseText: text})
	})

	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			return err
		}
		kind := FrameBinary
		if msgType == websocket.TextMessage {
			kind = FrameText
		}
		if err := deliver(Frame{Kind: kind, Data: data}); err != nil {
			return err
		}
	}
}

// Send implements Transport.
func (t *WebSocketTransport) Send(f Frame) error {
	deadline := time.Now().Add(t.writeWait)
	switch f.Kind {
	case FrameText:
		if err := t.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
		return t.conn.WriteMessage(websocket.TextMessage, f.Data)
	case FrameBinary:
		if err := t.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
		return t.conn.WriteMessage(websocket.BinaryMessage, f.Data)
	case FramePing:
		return t.conn.WriteControl(websocket.PingMessage, f.Data, deadline)
	case FramePong:
		return t.conn.WriteControl(websocket.PongMessage, f.Data, deadline)
	case FrameClose:
		return t.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(f.CloseCode, f.CloseText), deadline)
	default:
		return &ProtocolError{Kind: f.Kind}
	}
}

// Close implements Transport.
func (t *WebSocketTransport) Close() error {
	return t.conn.Close()
}

var errSessionDone = errors.New("session finished")
