package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned when sending while the socket is not connected.
var ErrClosed = errors.New("transport: socket not connected")

// ErrBackpressure is returned when the outbound queue is full.
var ErrBackpressure = errors.New("transport: outbound queue full")

// EventsConfig configures the event channel.
type EventsConfig struct {
	ServerURL    string
	ClientID     string
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	QueueSize    int
}

// Events is a Socket.IO client over a single websocket. It reconnects on its
// own; callers observe connectivity through SocketState messages and
// Connected.
type Events struct {
	url      string
	clientID string
	minDelay time.Duration
	maxDelay time.Duration
	dialer   *websocket.Dialer

	connected atomic.Bool
	out       chan []byte
	in        chan Inbound
}

// NewEvents creates an event client. Call Run to connect.
func NewEvents(cfg EventsConfig) (*Events, error) {
	u, err := socketURL(cfg.ServerURL)
	if err != nil {
		return nil, err
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = time.Second
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = cfg.ReconnectMin
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	return &Events{
		url:      u,
		clientID: cfg.ClientID,
		minDelay: cfg.ReconnectMin,
		maxDelay: cfg.ReconnectMax,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		out:      make(chan []byte, cfg.QueueSize),
		in:       make(chan Inbound, cfg.QueueSize),
	}, nil
}

// Inbound returns the channel of decoded server events.
func (e *Events) Inbound() <-chan Inbound {
	return e.in
}

// Connected reports whether the socket is currently up.
func (e *Events) Connected() bool {
	return e.connected.Load()
}

// SendKey emits control:key.
func (e *Events) SendKey(cmd KeyCommand) error {
	return e.emit(EventControlKey, cmd)
}

// SendSlider emits control:slider.
func (e *Events) SendSlider(cmd SliderCommand) error {
	return e.emit(EventControlSlider, cmd)
}

func (e *Events) emit(name string, payload any) error {
	if !e.Connected() {
		return ErrClosed
	}
	data, err := encodeEvent(name, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	select {
	case e.out <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

// Run connects and keeps reconnecting until ctx is cancelled. The delay
// between attempts doubles from ReconnectMin up to ReconnectMax and resets
// after a successful connection.
func (e *Events) Run(ctx context.Context) error {
	delay := e.minDelay
	attempt := 0
	for {
		attempt++
		err := e.session(ctx, attempt)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			delay = e.minDelay
			attempt = 0
		}
		e.publish(SocketState{Connected: false, Attempt: attempt, Err: err})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, e.maxDelay)
	}
}

// session runs one websocket connection to completion. It returns nil when
// a connection was established and later closed, and the dial or handshake
// error otherwise.
func (e *Events) session(ctx context.Context, attempt int) error {
	conn, _, err := e.dialer.DialContext(ctx, e.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	open, err := e.handshake(conn)
	if err != nil {
		return err
	}

	e.drainOutbound()
	e.connected.Store(true)
	e.publish(SocketState{Connected: true, Attempt: attempt})
	defer e.connected.Store(false)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.writePump(conn, done)
	}()

	e.readPump(ctx, conn, open.pingDeadline())
	close(done)
	wg.Wait()
	return nil
}

// handshake reads the Engine.IO open packet and joins the default namespace.
func (e *Events) handshake(conn *websocket.Conn) (openPayload, error) {
	var open openPayload

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		return open, fmt.Errorf("read open: %w", err)
	}
	f, err := parseFrame(data)
	if err != nil || f.engine != eioOpen {
		return open, fmt.Errorf("expected open packet, got %q", data)
	}
	if err := json.Unmarshal(f.payload, &open); err != nil {
		return open, fmt.Errorf("parse open packet: %w", err)
	}

	connect, err := encodeConnect(map[string]string{"client_id": e.clientID})
	if err != nil {
		return open, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, connect); err != nil {
		return open, fmt.Errorf("send connect: %w", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return open, fmt.Errorf("read connect ack: %w", err)
		}
		f, err := parseFrame(data)
		if err != nil {
			return open, err
		}
		switch {
		case f.engine == eioPing:
			if err := conn.WriteMessage(websocket.TextMessage, []byte{eioPong}); err != nil {
				return open, err
			}
		case f.engine == eioMessage && f.sio == sioConnect:
			return open, nil
		case f.engine == eioMessage && f.sio == sioConnectError:
			return open, fmt.Errorf("connect refused: %s", f.payload)
		}
	}
}

// readPump decodes frames until the connection fails or ctx is cancelled.
func (e *Events) readPump(ctx context.Context, conn *websocket.Conn, deadline time.Duration) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		conn.SetReadDeadline(time.Now().Add(deadline))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		f, err := parseFrame(data)
		if err != nil {
			continue
		}

		switch f.engine {
		case eioPing:
			select {
			case e.out <- []byte{eioPong}:
			default:
			}
		case eioClose:
			return
		case eioMessage:
			if f.sio == sioDisconnect {
				return
			}
			if f.sio != sioEvent {
				continue
			}
			msg, err := decodeInbound(f.event, f.payload)
			if err != nil || msg == nil {
				continue
			}
			e.publish(msg)
		}
	}
}

// writePump is the only writer on conn while the session is up.
func (e *Events) writePump(conn *websocket.Conn, done <-chan struct{}) {
	for {
		select {
		case <-done:
			conn.SetWriteDeadline(time.Now().Add(time.Second))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-e.out:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				conn.Close()
				return
			}
		}
	}
}

// drainOutbound discards anything queued for a previous connection.
func (e *Events) drainOutbound() {
	for {
		select {
		case <-e.out:
		default:
			return
		}
	}
}

func (e *Events) publish(msg Inbound) {
	select {
	case e.in <- msg:
	default:
		// Full: drop the oldest.
		select {
		case <-e.in:
		default:
		}
		select {
		case e.in <- msg:
		default:
		}
	}
}
