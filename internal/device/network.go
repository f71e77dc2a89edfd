package device

import (
	"fmt"
	"net"
	"sync"
	"time"
)

const (
	// networkDialTimeout caps a TCP connection attempt so the control surface
	// never stalls on an unreachable host.
	networkDialTimeout = 5 * time.Second
	networkReadTimeout = 100 * time.Millisecond
)

// NetworkLink drives the device over a TCP socket (e.g. an ESP32 on WiFi).
type NetworkLink struct {
	conn net.Conn
	addr string

	mu     sync.Mutex
	closed bool
	buf    lineBuffer
}

// DialResult carries the outcome of an asynchronous connection attempt.
type DialResult struct {
	Link *NetworkLink
	Err  error
}

// DialNetwork connects synchronously with the dial timeout applied.
func DialNetwork(host string, port int) (*NetworkLink, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := net.DialTimeout("tcp", addr, networkDialTimeout)
	if err != nil {
		return nil, &ConnectionError{Target: addr, Err: err}
	}
	return &NetworkLink{conn: conn, addr: addr}, nil
}

// DialNetworkAsync runs the connection attempt off the caller's goroutine and
// delivers exactly one DialResult on the returned channel.
func DialNetworkAsync(host string, port int) <-chan DialResult {
	ch := make(chan DialResult, 1)
	go func() {
		link, err := DialNetwork(host, port)
		ch <- DialResult{Link: link, Err: err}
	}()
	return ch
}

func (l *NetworkLink) Kind() Kind { return KindNetwork }

func (l *NetworkLink) Describe() string { return l.addr }

func (l *NetworkLink) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed
}

func (l *NetworkLink) Send(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrNotConnected
	}
	if _, err := l.conn.Write([]byte(line + "\n")); err != nil {
		return &LinkError{Op: "write", Err: err}
	}
	return nil
}

func (l *NetworkLink) ReceiveLine() (string, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return "", ErrNotConnected
	}
	conn := l.conn
	l.mu.Unlock()

	if line, ok := l.buf.next(); ok {
		return line, nil
	}
	if err := conn.SetReadDeadline(time.Now().Add(networkReadTimeout)); err != nil {
		return "", &LinkError{Op: "read", Err: err}
	}
	chunk := make([]byte, 1024)
	n, err := conn.Read(chunk)
	if n > 0 {
		l.buf.feed(chunk[:n])
	}
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			// No data this poll cycle.
		} else {
			return "", &LinkError{Op: "read", Err: err}
		}
	}
	if line, ok := l.buf.next(); ok {
		return line, nil
	}
	return "", nil
}

func (l *NetworkLink) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.conn.Close()
}
