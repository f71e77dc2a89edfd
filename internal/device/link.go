// Package device provides the transport-agnostic link to the irrigation
// controller. The device speaks newline-terminated ASCII commands; serial and
// TCP links differ only in how bytes move.
package device

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies the transport behind a Link.
type Kind string

const (
	KindSerial  Kind = "serial"
	KindNetwork Kind = "network"
)

// ErrNotConnected is returned by operations on a closed or never-opened link.
var ErrNotConnected = errors.New("device link not connected")

// ConnectionError reports a failed connection attempt. The link stays down;
// reconnection is always an explicit new action.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// LinkError reports a read or write failure on an assumed-open link.
type LinkError struct {
	Op  string
	Err error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("link %s: %v", e.Op, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }

// Link is a connected line-oriented channel to the device. Send appends the
// newline terminator; ReceiveLine strips it. One concurrent reader and one
// concurrent writer are supported; Disconnect is idempotent.
type Link interface {
	Kind() Kind
	// Describe returns a short human-readable target, e.g. "/dev/ttyUSB0@9600".
	Describe() string
	Connected() bool
	Send(line string) error
	// ReceiveLine returns the next complete line, or "" with a nil error when
	// no full line arrived within the poll deadline.
	ReceiveLine() (string, error)
	Disconnect() error
}

// lineBuffer accumulates raw reads and yields complete newline-terminated
// lines, tolerating partial reads across poll cycles.
type lineBuffer struct {
	pending []byte
}

func (b *lineBuffer) feed(p []byte) {
	b.pending = append(b.pending, p...)
}

func (b *lineBuffer) next() (string, bool) {
	i := -1
	for j, c := range b.pending {
		if c == '\n' {
			i = j
			break
		}
	}
	if i < 0 {
		return "", false
	}
	line := strings.TrimSpace(string(b.pending[:i]))
	b.pending = b.pending[i+1:]
	return line, true
}
