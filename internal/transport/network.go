package transport

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"
)

// networkTransport writes a raw byte stream to the printer's TCP port
// (conventionally 9100). A connect timeout distinguishes "host unreachable"
// from "host reachable, port refused".
type networkTransport struct {
	addr    string
	timeout time.Duration
}

type networkConn struct {
	conn    net.Conn
	addr    string
	timeout time.Duration
}

func (t *networkTransport) Open(ctx context.Context) (Conn, error) {
	dialer := net.Dialer{Timeout: t.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return nil, &Error{Op: "open", Target: t.addr, Err: describeDialError(err), Retryable: true}
	}
	return &networkConn{conn: conn, addr: t.addr, timeout: t.timeout}, nil
}

func (c *networkConn) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return &Error{Op: "send", Target: c.addr, Err: err, Retryable: false}
	}
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return &Error{Op: "send", Target: c.addr, Err: err, Retryable: true}
	}
	if _, err := c.conn.Write(data); err != nil {
		return &Error{Op: "send", Target: c.addr, Err: err, Retryable: true}
	}
	return nil
}

func (c *networkConn) Close() error {
	if err := c.conn.Close(); err != nil {
		return &Error{Op: "close", Target: c.addr, Err: err, Retryable: false}
	}
	return nil
}

func (t *networkTransport) Probe(ctx context.Context) Health {
	dialer := net.Dialer{Timeout: networkProbeTimeout}
	probeCtx, cancel := context.WithTimeout(ctx, networkProbeTimeout)
	defer cancel()

	conn, err := dialer.DialContext(probeCtx, "tcp", t.addr)
	if err != nil {
		return HealthOffline
	}
	_ = conn.Close()
	return HealthOnline
}

// describeDialError names the two failure families operators care about.
func describeDialError(err error) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return errors.New("host reachable, connection refused: " + err.Error())
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.New("host unreachable, connect timeout: " + err.Error())
	}
	return err
}
