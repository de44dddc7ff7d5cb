package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var (
	ErrViewerClosed = errors.New("viewer connection closed")
	ErrSlowViewer   = errors.New("viewer send buffer full")
)

// Viewer is a dashboard connection. Sends are queued and written by a single
// write pump, so a slow socket never blocks the broadcaster.
type Viewer struct {
	conn         *websocket.Conn
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	pingInterval time.Duration
}

func newViewer(conn *websocket.Conn, buffer int, pingInterval time.Duration) *Viewer {
	if buffer <= 0 {
		buffer = 64
	}
	return &Viewer{
		conn:         conn,
		send:         make(chan []byte, buffer),
		done:         make(chan struct{}),
		pingInterval: pingInterval,
	}
}

func (v *Viewer) Send(payload []byte) error {
	select {
	case <-v.done:
		return ErrViewerClosed
	default:
	}

	select {
	case v.send <- payload:
		return nil
	case <-v.done:
		return ErrViewerClosed
	default:
		return ErrSlowViewer
	}
}

// Close stops the pumps and closes the socket. It is safe to call more than once.
func (v *Viewer) Close() error {
	var err error
	v.closeOnce.Do(func() {
		close(v.done)
		err = v.conn.Close()
	})
	return err
}

func (v *Viewer) writePump() {
	var tick <-chan time.Time
	if v.pingInterval > 0 {
		ticker := time.NewTicker(v.pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case payload := <-v.send:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				_ = v.Close()
				return
			}
		case <-tick:
			if err := v.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = v.Close()
				return
			}
		case <-v.done:
			return
		}
	}
}

// readPump discards inbound frames and returns when the viewer goes away.
func (v *Viewer) readPump() {
	if v.pingInterval > 0 {
		pongWait := 2 * v.pingInterval
		_ = v.conn.SetReadDeadline(time.Now().Add(pongWait))
		v.conn.SetPongHandler(func(string) error {
			return v.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	v.conn.SetReadLimit(4096)
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			return
		}
	}
}
