// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/Thermoquad/joystat/internal/config"
	"github.com/Thermoquad/joystat/pkg/joybus"
	"github.com/Thermoquad/joystat/pkg/joybus/bridge"
	"github.com/Thermoquad/joystat/pkg/joybus/sim"
	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// Connection provides a common interface for reading/writing bytes from serial or WebSocket
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = fmt.Errorf("websocket connection closed")

// WebSocketConnection wraps a WebSocket connection as a byte stream.
// Both the client and the bridge_sim server side use it.
type WebSocketConnection struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    bool
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}

	// If we have buffered data, return it first
	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}

		// Bridge frames only travel in binary messages
		if messageType != websocket.BinaryMessage {
			continue
		}

		w.buf = data
		w.bufOffset = 0
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	err := w.conn.WriteMessage(websocket.BinaryMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &WebSocketConnection{conn: conn}, nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("JOYSTAT_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenConnection opens either a serial or WebSocket connection to the bridge
func OpenConnection(cc config.ConnectionConfig) (Connection, string, error) {
	if cc.URL != "" {
		password := ""
		if cc.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocketConnection(cc.URL, cc.Username, password, cc.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("WebSocket: %s", cc.URL), nil
	}

	if cc.Port != "" {
		conn, err := OpenSerialConnection(cc.Port, cc.Baud)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("Serial: %s @ %d baud", cc.Port, cc.Baud), nil
	}

	return nil, "", fmt.Errorf("either --port, --url or --sim must be specified")
}

// busSession is an open transceiver and whatever backs it
type busSession struct {
	tr       *joybus.Transceiver
	pin      joybus.Pin
	info     string
	bridge   *bridge.Bridge
	sim      *sim.Controller
	closeFns []func() error
}

func (s *busSession) Close() error {
	var first error
	for i := len(s.closeFns) - 1; i >= 0; i-- {
		if err := s.closeFns[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// openBus builds a transceiver on a simulated bus or on a bridge link
func openBus(c *config.Config, recorders ...joybus.Recorder) (*busSession, error) {
	s := &busSession{pin: joybus.Pin(c.Bus.Pin)}

	opts := []joybus.Option{
		joybus.WithReceiveTimeout(c.Bus.ReceiveTimeout()),
		joybus.WithLogger(logger.WithField("component", "transceiver")),
	}
	for _, r := range recorders {
		opts = append(opts, joybus.WithRecorder(r))
	}

	if c.Connection.Simulate {
		s.sim = sim.NewController()
		bus := sim.NewBus(s.sim)
		s.tr = joybus.NewTransceiver(bus, bus, bus, opts...)
		s.info = "Simulated GameCube controller"
		return s, nil
	}

	conn, info, err := OpenConnection(c.Connection)
	if err != nil {
		return nil, err
	}
	s.bridge = bridge.New(conn,
		bridge.WithResponseTimeout(c.Connection.ResponseTimeout),
		bridge.WithLogger(logger.WithField("component", "bridge")),
	)
	s.closeFns = append(s.closeFns, s.bridge.Close)
	s.tr = joybus.NewTransceiver(s.bridge, s.bridge, s.bridge, opts...)
	s.info = info
	return s, nil
}
