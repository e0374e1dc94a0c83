package transport

import (
	"context"

	"go.bug.st/serial"
)

// serialTransport opens a parameterized port/baud connection. Most thermal
// units default to 9600 8N1. The write path drains explicitly before close so
// a label is fully transferred before the handle is released.
type serialTransport struct {
	port string
	baud int
}

type serialConn struct {
	port serial.Port
	name string
}

func (t *serialTransport) mode() *serial.Mode {
	baud := t.baud
	if baud == 0 {
		baud = 9600
	}
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

func (t *serialTransport) Open(_ context.Context) (Conn, error) {
	port, err := serial.Open(t.port, t.mode())
	if err != nil {
		return nil, &Error{Op: "open", Target: t.port, Err: err, Retryable: true}
	}
	return &serialConn{port: port, name: t.port}, nil
}

func (c *serialConn) Send(ctx context.Context, data []byte) error {
	written := 0
	for written < len(data) {
		// serial.Port has no context support; honor cancellation between
		// chunk writes.
		if err := ctx.Err(); err != nil {
			return &Error{Op: "send", Target: c.name, Err: err, Retryable: false}
		}
		n, err := c.port.Write(data[written:])
		if err != nil {
			return &Error{Op: "send", Target: c.name, Err: err, Retryable: true}
		}
		written += n
	}
	return nil
}

func (c *serialConn) Close() error {
	// Flush the OS buffer so the tail of the label is not dropped.
	if err := c.port.Drain(); err != nil {
		_ = c.port.Close()
		return &Error{Op: "close", Target: c.name, Err: err, Retryable: false}
	}
	if err := c.port.Close(); err != nil {
		return &Error{Op: "close", Target: c.name, Err: err, Retryable: false}
	}
	return nil
}

func (t *serialTransport) Probe(ctx context.Context) Health {
	done := make(chan Health, 1)
	go func() {
		port, err := serial.Open(t.port, t.mode())
		if err != nil {
			done <- HealthOffline
			return
		}
		_ = port.Close()
		done <- HealthOnline
	}()

	probeCtx, cancel := context.WithTimeout(ctx, localProbeTimeout)
	defer cancel()

	select {
	case h := <-done:
		return h
	case <-probeCtx.Done():
		// The open is stuck on a wedged port; report unknown rather than
		// blocking the prober.
		return HealthUnknown
	}
}
