// Package transport provides a uniform send abstraction over the ways a
// label printer can be attached: raw TCP socket, serial port, USB device
// file and the OS print spooler. Nothing above this layer knows which one a
// printer uses.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind selects the physical attachment of a printer.
type Kind string

const (
	KindNetwork Kind = "network"
	KindSerial  Kind = "serial"
	KindUSB     Kind = "usb"
	KindSpooler Kind = "spooler"
)

// Health is the last-known reachability of a printer.
type Health string

const (
	HealthUnknown Health = "unknown"
	HealthOnline  Health = "online"
	HealthOffline Health = "offline"
)

// Descriptor tells a transport how to reach one printer.
type Descriptor struct {
	Kind Kind `json:"kind"`
	// Address is host:port for network, the port device for serial
	// (COM3, /dev/ttyUSB0) and the device file for usb (/dev/usb/lp0).
	Address string `json:"address,omitempty"`
	// Baud applies to serial only; defaults to 9600 like most thermal units.
	Baud int `json:"baud,omitempty"`
	// Queue is the OS spooler queue name.
	Queue string `json:"queue,omitempty"`
}

func (d Descriptor) String() string {
	switch d.Kind {
	case KindSerial:
		return fmt.Sprintf("serial://%s@%d", d.Address, d.Baud)
	case KindSpooler:
		return fmt.Sprintf("spooler://%s", d.Queue)
	default:
		return fmt.Sprintf("%s://%s", d.Kind, d.Address)
	}
}

// Conn is one open printer connection. Send transmits a complete command
// stream, bounded by the context deadline; Close flushes and releases the
// handle.
type Conn interface {
	Send(ctx context.Context, data []byte) error
	Close() error
}

// Transport opens connections to a single printer and probes its health.
// Probe is bounded by a short timeout so health checks never stall dispatch.
type Transport interface {
	Open(ctx context.Context) (Conn, error)
	Probe(ctx context.Context) Health
}

// Probe timeouts stay in low single digits so dispatch never waits on them.
// DefaultSendTimeout bounds one payload write when the caller sets nothing.
const (
	networkProbeTimeout = 2 * time.Second
	localProbeTimeout   = 1 * time.Second
	DefaultSendTimeout  = 10 * time.Second
)

// Error wraps a transport failure with the operation and target, and marks
// whether a retry is worthwhile (timeouts and resets are, a missing device
// is not).
type Error struct {
	Op        string
	Target    string
	Err       error
	Retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Target, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transport error worth retrying.
func IsRetryable(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Retryable
	}
	return false
}

// New builds the transport for a connection descriptor.
func New(desc Descriptor) (Transport, error) {
	switch desc.Kind {
	case KindNetwork:
		if desc.Address == "" {
			return nil, fmt.Errorf("network transport: address is required")
		}
		return &networkTransport{addr: desc.Address, timeout: DefaultSendTimeout}, nil
	case KindSerial:
		if desc.Address == "" {
			return nil, fmt.Errorf("serial transport: port is required")
		}
		return &serialTransport{port: desc.Address, baud: desc.Baud}, nil
	case KindUSB:
		if desc.Address == "" {
			return nil, fmt.Errorf("usb transport: device path is required")
		}
		return &usbTransport{device: desc.Address}, nil
	case KindSpooler:
		if desc.Queue == "" {
			return nil, fmt.Errorf("spooler transport: queue name is required")
		}
		return &spoolerTransport{queue: desc.Queue}, nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", desc.Kind)
	}
}
