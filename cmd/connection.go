// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Photonforge Instruments

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/term"

	"github.com/photonforge/xcorr/pkg/xc"
)

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = fmt.Errorf("websocket connection closed")

// WebSocketTransport bridges the correlator byte protocol over a WebSocket
// link, for correlators hanging off a remote serial bridge. Binary messages
// carry raw device bytes in both directions.
//
// gorilla read deadlines poison the connection, so inbound messages are pumped
// by a dedicated goroutine into a channel and timeouts are enforced on the
// channel receive instead.
type WebSocketTransport struct {
	conn *websocket.Conn

	incoming chan []byte
	closed   chan struct{}
	done     chan struct{}

	// current partially consumed message
	buf []byte
	off int
}

// NewWebSocketTransport wraps an established WebSocket connection.
func NewWebSocketTransport(conn *websocket.Conn) *WebSocketTransport {
	w := &WebSocketTransport{
		conn:     conn,
		incoming: make(chan []byte, 16),
		closed:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.pump()
	return w
}

func (w *WebSocketTransport) pump() {
	defer close(w.closed)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			return
		}
		// only binary messages carry device bytes
		if messageType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		select {
		case w.incoming <- data:
		case <-w.done:
			return
		}
	}
}

// next blocks until another inbound message is buffered or the deadline
// passes.
func (w *WebSocketTransport) next(deadline time.Time) error {
	if w.off < len(w.buf) {
		return nil
	}
	wait := time.Until(deadline)
	if wait <= 0 {
		return xc.ErrTimeout
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case data := <-w.incoming:
		w.buf = data
		w.off = 0
		return nil
	case <-w.closed:
		return ErrConnectionClosed
	case <-timer.C:
		return xc.ErrTimeout
	}
}

func (w *WebSocketTransport) SendByte(b byte) error {
	return w.conn.WriteMessage(websocket.BinaryMessage, []byte{b})
}

func (w *WebSocketTransport) ReadExact(buf []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	total := 0
	for total < len(buf) {
		if err := w.next(deadline); err != nil {
			if err == xc.ErrTimeout {
				break
			}
			return total, err
		}
		n := copy(buf[total:], w.buf[w.off:])
		w.off += n
		total += n
	}
	if total == 0 {
		return 0, xc.ErrTimeout
	}
	return total, nil
}

func (w *WebSocketTransport) FlushTX() error {
	return nil // messages are sent whole, nothing to discard
}

func (w *WebSocketTransport) FlushRX() error {
	w.buf = nil
	w.off = 0
	for {
		select {
		case <-w.incoming:
		default:
			return nil
		}
	}
}

func (w *WebSocketTransport) AlignFrame(terminator byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := w.next(deadline); err != nil {
			return err
		}
		for w.off < len(w.buf) {
			b := w.buf[w.off]
			w.off++
			if b == terminator {
				return nil
			}
		}
	}
}

// SetRate is a no-op: the remote bridge owns the physical link rate.
func (w *WebSocketTransport) SetRate(baud int) error {
	return nil
}

func (w *WebSocketTransport) Close() error {
	close(w.done)
	return w.conn.Close()
}

// OpenWebSocketTransport opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketTransport(wsURL, username, password string, skipSSLVerify bool) (*WebSocketTransport, error) {
	// Parse and validate URL
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	// Validate scheme
	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	// Create dialer with timeout
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	// Configure TLS for wss://
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	// Build HTTP headers with Basic auth
	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	// Connect
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %v", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %v", err)
	}

	return NewWebSocketTransport(conn), nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("XCORR_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// sessionRate maps the --baud flag to the device's rate index.
func sessionRate() (xc.BaudRate, error) {
	switch baudRate {
	case 57600:
		return xc.Rate57600, nil
	case 115200:
		return xc.Rate115200, nil
	case 230400:
		return xc.Rate230400, nil
	case 460800:
		return xc.Rate460800, nil
	}
	return 0, fmt.Errorf("unsupported baud rate %d (use 57600, 115200, 230400 or 460800)", baudRate)
}

// OpenDevice opens a correlator session over serial or WebSocket based on
// flags and runs the property negotiation handshake.
func OpenDevice() (*xc.Device, string, error) {
	if wsURL != "" {
		// WebSocket mode
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		tr, err := OpenWebSocketTransport(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}

		dev := xc.NewDevice(tr)
		if err := dev.GetProperties(); err != nil {
			dev.Disconnect()
			return nil, "", fmt.Errorf("negotiation failed: %v", err)
		}
		return dev, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if portName != "" {
		// Serial mode
		rate, err := sessionRate()
		if err != nil {
			return nil, "", err
		}

		dev, err := xc.Connect(portName)
		if err != nil {
			return nil, "", err
		}
		if rate != xc.Rate57600 {
			if err := dev.SetBaudRate(rate); err != nil {
				dev.Disconnect()
				return nil, "", fmt.Errorf("baud rate change failed: %v", err)
			}
		}
		if err := dev.GetProperties(); err != nil {
			dev.Disconnect()
			return nil, "", fmt.Errorf("negotiation failed: %v", err)
		}

		return dev, fmt.Sprintf("Serial: %s @ %d baud", portName, dev.BaudRate()), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}
