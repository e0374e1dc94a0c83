package transport

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// spoolerTransport hands a raw command stream to an OS print queue via lp.
// The spooler owns delivery from there, so Send returning ok means accepted,
// not printed; Probe asks lpstat whether the queue exists and is enabled.
type spoolerTransport struct {
	queue string
}

type spoolerConn struct {
	queue string
}

func (t *spoolerTransport) Open(ctx context.Context) (Conn, error) {
	// lp is invoked per send; Open only verifies the queue is known.
	if h := t.Probe(ctx); h == HealthOffline {
		return nil, &Error{
			Op:        "open",
			Target:    t.queue,
			Err:       fmt.Errorf("print queue %q not available", t.queue),
			Retryable: true,
		}
	}
	return &spoolerConn{queue: t.queue}, nil
}

func (c *spoolerConn) Send(ctx context.Context, data []byte) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultSendTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "lp", "-d", c.queue, "-o", "raw", "-s", "-")
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &Error{
			Op:        "send",
			Target:    c.queue,
			Err:       fmt.Errorf("lp: %v: %s", err, strings.TrimSpace(stderr.String())),
			Retryable: true,
		}
	}
	return nil
}

func (c *spoolerConn) Close() error { return nil }

func (t *spoolerTransport) Probe(ctx context.Context) Health {
	probeCtx, cancel := context.WithTimeout(ctx, localProbeTimeout)
	defer cancel()

	out, err := exec.CommandContext(probeCtx, "lpstat", "-p", t.queue).CombinedOutput()
	if err != nil {
		return HealthOffline
	}
	if strings.Contains(strings.ToLower(string(out)), "disabled") {
		return HealthOffline
	}
	return HealthOnline
}
