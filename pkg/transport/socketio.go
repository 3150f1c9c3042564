package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Engine.IO v4 packet types.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
)

// Socket.IO packet types, carried inside an Engine.IO message.
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioAck          = '3'
	sioConnectError = '4'
)

var errMalformedFrame = errors.New("socketio: malformed frame")

// frame is a decoded websocket text frame.
type frame struct {
	engine  byte
	sio     byte
	event   string
	payload json.RawMessage
}

// openPayload is the Engine.IO handshake sent by the server.
type openPayload struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// pingDeadline is how long the client waits for any frame before treating
// the connection as dead.
func (o openPayload) pingDeadline() time.Duration {
	d := time.Duration(o.PingInterval+o.PingTimeout) * time.Millisecond
	if d <= 0 {
		d = 45 * time.Second
	}
	return d
}

// socketURL turns an http(s) server URL into the Socket.IO websocket URL.
func socketURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/socket.io/"
	q := url.Values{}
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// encodeConnect builds the namespace connect packet with an auth payload.
func encodeConnect(auth any) ([]byte, error) {
	data, err := json.Marshal(auth)
	if err != nil {
		return nil, err
	}
	return append([]byte{eioMessage, sioConnect}, data...), nil
}

// encodeEvent builds an event packet.
func encodeEvent(name string, payload any) ([]byte, error) {
	data, err := json.Marshal([]any{name, payload})
	if err != nil {
		return nil, err
	}
	return append([]byte{eioMessage, sioEvent}, data...), nil
}

// parseFrame decodes a text frame.
func parseFrame(b []byte) (frame, error) {
	if len(b) == 0 {
		return frame{}, errMalformedFrame
	}
	f := frame{engine: b[0]}
	rest := b[1:]

	if f.engine != eioMessage {
		f.payload = json.RawMessage(rest)
		return f, nil
	}
	if len(rest) == 0 {
		return frame{}, errMalformedFrame
	}
	f.sio = rest[0]
	rest = rest[1:]

	// Skip the optional namespace ("/ns,") and ack id digits.
	if len(rest) > 0 && rest[0] == '/' {
		i := strings.IndexByte(string(rest), ',')
		if i < 0 {
			return frame{}, errMalformedFrame
		}
		rest = rest[i+1:]
	}
	for len(rest) > 0 && rest[0] >= '0' && rest[0] <= '9' {
		rest = rest[1:]
	}

	if f.sio != sioEvent && f.sio != sioAck {
		f.payload = json.RawMessage(rest)
		return f, nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(rest, &parts); err != nil {
		return frame{}, fmt.Errorf("%w: %v", errMalformedFrame, err)
	}
	if f.sio == sioEvent {
		if len(parts) == 0 {
			return frame{}, errMalformedFrame
		}
		if err := json.Unmarshal(parts[0], &f.event); err != nil {
			return frame{}, fmt.Errorf("%w: event name: %v", errMalformedFrame, err)
		}
		parts = parts[1:]
	}
	if len(parts) > 0 {
		f.payload = parts[0]
	}
	return f, nil
}
