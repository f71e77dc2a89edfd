package device

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// serialReadTimeout bounds a single poll read so ReceiveLine never blocks the
// monitor loop for longer than its poll granularity.
const serialReadTimeout = 100 * time.Millisecond

// SerialLink drives the device over a USB serial port.
type SerialLink struct {
	port     serial.Port
	portName string
	baud     int

	mu     sync.Mutex
	closed bool
	buf    lineBuffer
}

// DialSerial opens the serial port synchronously. Serial opens are expected to
// return quickly or fail; a failure yields a ConnectionError.
func DialSerial(portName string, baud int) (*SerialLink, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, &ConnectionError{Target: portName, Err: err}
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close()
		return nil, &ConnectionError{Target: portName, Err: err}
	}
	return &SerialLink{port: port, portName: portName, baud: baud}, nil
}

// ListPorts returns the serial port names present on this machine, for the
// presentation layer's connection dialog.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

func (l *SerialLink) Kind() Kind { return KindSerial }

func (l *SerialLink) Describe() string {
	return fmt.Sprintf("%s@%d", l.portName, l.baud)
}

func (l *SerialLink) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed
}

func (l *SerialLink) Send(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrNotConnected
	}
	if _, err := l.port.Write([]byte(line + "\n")); err != nil {
		return &LinkError{Op: "write", Err: err}
	}
	return nil
}

func (l *SerialLink) ReceiveLine() (string, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return "", ErrNotConnected
	}
	port := l.port
	l.mu.Unlock()

	if line, ok := l.buf.next(); ok {
		return line, nil
	}
	chunk := make([]byte, 256)
	n, err := port.Read(chunk)
	if err != nil {
		return "", &LinkError{Op: "read", Err: err}
	}
	if n > 0 {
		l.buf.feed(chunk[:n])
	}
	if line, ok := l.buf.next(); ok {
		return line, nil
	}
	return "", nil
}

func (l *SerialLink) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.port.Close()
}
