// Package proxy implements the forwarding module (§3, §4.8): a Proxy
// writes constructor/call/assignment lines to a remote peer over a
// byte channel owned by an Expander, and routes inbound broadcast
// lines back into the proxy's own property cache.
package proxy

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ctrlscript/internal/errors"
)

// WebSocketExpanderLink is a module.LineChannel backed by a WebSocket
// connection, grounded on the teacher's network/websocket.go dial and
// reader-goroutine pattern. It lets an Expander's byte channel be a
// real network socket in a multi-process or networked-MCU deployment
// instead of an in-process UART.
type WebSocketExpanderLink struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	onLine func(line string)
}

// DialExpanderLink connects to a remote expander endpoint and starts
// the inbound reader goroutine. onLine is invoked, off the connection's
// own goroutine, for every complete text message received — the caller
// is expected to feed these into process_line (§4.7), since inbound
// `!!<module>.<prop>=<value>` lines are exactly the proxy broadcast
// format (§4.8).
func DialExpanderLink(url string, onLine func(line string)) (*WebSocketExpanderLink, error) {
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, errors.NewDeviceError("websocket dial to %q failed: %s", url, err)
	}

	link := &WebSocketExpanderLink{conn: conn, onLine: onLine}
	go link.readLoop()
	return link, nil
}

// ListenExpanderLink starts an HTTP server that upgrades the first
// incoming connection on addr to a WebSocket and returns a link over
// it, for the expander-as-server deployment shape.
func ListenExpanderLink(addr string, onLine func(line string)) (*WebSocketExpanderLink, error) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	ready := make(chan *WebSocketExpanderLink, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		link := &WebSocketExpanderLink{conn: conn, onLine: onLine}
		go link.readLoop()
		select {
		case ready <- link:
		default:
		}
	})
	server := &http.Server{Addr: addr, Handler: mux}
	go server.ListenAndServe()

	select {
	case link := <-ready:
		return link, nil
	case <-time.After(30 * time.Second):
		return nil, errors.NewDeviceError("no expander connected to %q within timeout", addr)
	}
}

// WriteLine implements module.LineChannel.
func (l *WebSocketExpanderLink) WriteLine(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errors.NewDeviceError("expander link is closed")
	}
	return l.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (l *WebSocketExpanderLink) readLoop() {
	for {
		messageType, data, err := l.conn.ReadMessage()
		if err != nil {
			l.mu.Lock()
			l.closed = true
			l.mu.Unlock()
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		if l.onLine != nil {
			l.onLine(string(data))
		}
	}
}

// Close terminates the underlying connection.
func (l *WebSocketExpanderLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	_ = l.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return l.conn.Close()
}
